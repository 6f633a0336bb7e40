package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 5; i++ {
		if !rl.Allow("10.0.0.1", 5, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1", 5, time.Minute) {
		t.Error("request over the limit should be denied")
	}
	if !rl.Allow("10.0.0.2", 5, time.Minute) {
		t.Error("a different key should not be affected")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		rl.Allow("key", 3, time.Minute)
	}
	if rl.Allow("key", 3, time.Minute) {
		t.Error("should be blocked within the window")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("key", 3, time.Minute) {
		t.Error("should be allowed after the window resets")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("stale", 5, time.Minute)
	now = now.Add(2 * time.Minute)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.buckets["stale"]; ok {
		t.Error("stale bucket should have been removed")
	}
	if _, ok := rl.buckets["active"]; !ok {
		t.Error("active bucket should survive cleanup")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	keyFunc := func(r *http.Request) string { return RealIP(r) }

	handler := RateLimit(rl, keyFunc, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/auth/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("rejected request should carry Retry-After")
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *http.Request)
		remote string
		want   string
	}{
		{
			name:   "cloudflare header wins",
			setup:  func(r *http.Request) { r.Header.Set("CF-Connecting-IP", "203.0.113.9") },
			remote: "10.0.0.1:5000",
			want:   "203.0.113.9",
		},
		{
			name:   "first forwarded hop",
			setup:  func(r *http.Request) { r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.2") },
			remote: "10.0.0.1:5000",
			want:   "198.51.100.4",
		},
		{
			name:   "falls back to peer",
			setup:  func(r *http.Request) {},
			remote: "192.0.2.7:44123",
			want:   "192.0.2.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			tt.setup(r)
			if got := RealIP(r); got != tt.want {
				t.Errorf("RealIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
