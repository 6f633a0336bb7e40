package push

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rowanhale/pulsefit/internal/model"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrExpired marks a subscription the push service reported gone (410).
// Callers should prune the stored subscription rather than retry.
var ErrExpired = errors.New("push subscription expired")

// subscriber is the contact the push service may use to reach the operator
// about misbehaving senders.
const subscriber = "mailto:noreply@pulsefit.app"

// notificationTTL is how long the push service holds an undelivered
// notification. A payment receipt older than a day is stale anyway.
const notificationTTL = 86400

// Payload is the JSON delivered to the service worker. Badge drives the
// app-icon badge count in the installed PWA.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Badge int    `json:"badge,omitempty"`
}

// Service sends web push notifications signed with the server's VAPID keys.
type Service struct {
	publicKey  string
	privateKey string
}

func NewService(publicKey, privateKey string) *Service {
	return &Service{publicKey: publicKey, privateKey: privateKey}
}

// Configured reports whether VAPID keys are set.
func (s *Service) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// VAPIDPublicKey returns the public key browsers need to subscribe.
func (s *Service) VAPIDPublicKey() string {
	return s.publicKey
}

// Send pushes payload to one subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      subscriber,
		TTL:             notificationTTL,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys creates a fresh ECDSA P-256 key pair encoded the way
// the Push API expects.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	return base64.RawURLEncoding.EncodeToString(pubBytes),
		base64.RawURLEncoding.EncodeToString(key.D.Bytes()),
		nil
}
