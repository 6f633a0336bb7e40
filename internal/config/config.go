package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port        string
	Environment string
	BaseURL     string

	// Database
	DBPath string

	// Logging
	LogLevel string

	// Signed session tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Face matching
	FaceMatchThreshold float64

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Postmark
	PostmarkServerToken string
	FromEmail           string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

// Load reads configuration from the environment. TOKEN_SECRET is required;
// everything else has a development default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PULSEFIT_PORT", "8080"),
		Environment:         getEnv("PULSEFIT_ENV", "development"),
		BaseURL:             getEnv("PULSEFIT_BASE_URL", "http://localhost:8080"),
		DBPath:              getEnv("PULSEFIT_DB_PATH", "pulsefit.db"),
		LogLevel:            getEnv("PULSEFIT_LOG_LEVEL", "info"),
		TokenSecret:         getEnv("PULSEFIT_TOKEN_SECRET", ""),
		TokenTTL:            time.Duration(getEnvInt("PULSEFIT_TOKEN_TTL_HOURS", 24*7)) * time.Hour,
		FaceMatchThreshold:  getEnvFloat("PULSEFIT_FACE_MATCH_THRESHOLD", 0.85),
		StripeSecretKey:     getEnv("PULSEFIT_STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("PULSEFIT_STRIPE_WEBHOOK_SECRET", ""),
		PostmarkServerToken: getEnv("PULSEFIT_POSTMARK_TOKEN", ""),
		FromEmail:           getEnv("PULSEFIT_FROM_EMAIL", "noreply@pulsefit.app"),
		VAPIDPublicKey:      getEnv("PULSEFIT_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:     getEnv("PULSEFIT_VAPID_PRIVATE_KEY", ""),
	}

	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("PULSEFIT_TOKEN_SECRET environment variable is required")
	}

	return cfg, nil
}

// Production reports whether the server runs with production hardening
// (secure cookies, no debug session cookie).
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
