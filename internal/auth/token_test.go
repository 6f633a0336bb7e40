package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/rowanhale/pulsefit/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)

	token, err := codec.Issue(42, "jo@example.com", model.RoleTrainer, "Jo")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("userId = %d, want 42", claims.UserID)
	}
	if claims.Email != "jo@example.com" {
		t.Errorf("email = %q, want %q", claims.Email, "jo@example.com")
	}
	if claims.Role != model.RoleTrainer {
		t.Errorf("role = %q, want %q", claims.Role, model.RoleTrainer)
	}
	if claims.Name != "Jo" {
		t.Errorf("name = %q, want %q", claims.Name, "Jo")
	}
}

func TestTokenExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	codec := NewCodec("test-secret", time.Hour)
	codec.now = func() time.Time { return issued }

	token, err := codec.Issue(1, "a@b.com", model.RoleMember, "A")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"just issued", issued, true},
		{"one second before expiry", issued.Add(time.Hour - time.Second), true},
		{"exactly at expiry", issued.Add(time.Hour), false},
		{"one second after expiry", issued.Add(time.Hour + time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codec.now = func() time.Time { return tc.at }
			_, err := codec.Verify(token)
			if tc.valid && err != nil {
				t.Errorf("verify at %v: %v", tc.at, err)
			}
			if !tc.valid && err != ErrTokenInvalid {
				t.Errorf("verify at %v: err = %v, want ErrTokenInvalid", tc.at, err)
			}
		})
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewCodec("secret-one", time.Hour).Issue(1, "a@b.com", model.RoleMember, "A")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewCodec("secret-two", time.Hour).Verify(token); err != ErrTokenInvalid {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenTampered(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	token, err := codec.Issue(1, "a@b.com", model.RoleMember, "A")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Flip a character in the payload segment.
	parts := strings.SplitN(token, ".", 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	if _, err := codec.Verify(tampered); err != ErrTokenInvalid {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenUnknownRole(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	token, err := codec.Issue(1, "a@b.com", model.Role("owner"), "A")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.Verify(token); err != ErrTokenInvalid {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	codec := NewCodec("test-secret", time.Hour)
	for _, bad := range []string{"", "not-a-token", "a.b.c", "abc123def456"} {
		if _, err := codec.Verify(bad); err != ErrTokenInvalid {
			t.Errorf("Verify(%q): err = %v, want ErrTokenInvalid", bad, err)
		}
	}
}
