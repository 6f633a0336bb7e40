package auth

import (
	"net/http/httptest"
	"testing"
)

func TestResolveCredentialPrecedence(t *testing.T) {
	cases := []struct {
		name       string
		cookies    map[string]string
		authHeader string
		wantSource Source
		wantValue  string
		wantOK     bool
	}{
		{
			name:       "session cookie wins over everything",
			cookies:    map[string]string{CookieSession: "s1", CookieAuthToken: "a1", CookieDebugSession: "d1"},
			authHeader: "Bearer b1",
			wantSource: SourceSessionCookie,
			wantValue:  "s1",
			wantOK:     true,
		},
		{
			name:       "auth token cookie next",
			cookies:    map[string]string{CookieAuthToken: "a1", CookieDebugSession: "d1"},
			authHeader: "Bearer b1",
			wantSource: SourceAuthCookie,
			wantValue:  "a1",
			wantOK:     true,
		},
		{
			name:       "debug cookie next",
			cookies:    map[string]string{CookieDebugSession: "d1"},
			authHeader: "Bearer b1",
			wantSource: SourceDebugCookie,
			wantValue:  "d1",
			wantOK:     true,
		},
		{
			name:       "bearer header last",
			cookies:    map[string]string{},
			authHeader: "Bearer b1",
			wantSource: SourceBearerHeader,
			wantValue:  "b1",
			wantOK:     true,
		},
		{
			name:   "nothing present",
			wantOK: false,
		},
		{
			name:       "empty cookie values are skipped",
			cookies:    map[string]string{CookieSession: "", CookieAuthToken: ""},
			authHeader: "Bearer b1",
			wantSource: SourceBearerHeader,
			wantValue:  "b1",
			wantOK:     true,
		},
		{
			name:    "role hint cookie is never a credential",
			cookies: map[string]string{CookieRoleHint: "admin"},
			wantOK:  false,
		},
		{
			name:       "malformed authorization header",
			authHeader: "Basic dXNlcjpwYXNz",
			wantOK:     false,
		},
		{
			name:       "bearer with no token",
			authHeader: "Bearer ",
			wantOK:     false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cred, ok := ResolveCredential(Carriers{Cookies: tc.cookies, Authorization: tc.authHeader})
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if cred.Source != tc.wantSource {
				t.Errorf("source = %q, want %q", cred.Source, tc.wantSource)
			}
			if cred.Value != tc.wantValue {
				t.Errorf("value = %q, want %q", cred.Value, tc.wantValue)
			}
		})
	}
}

func TestCarriersFromRequestExtractsAll(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/auth/me", nil)
	r.Header.Set("Cookie", CookieSession+"=tok1; "+CookieRoleHint+"=member")
	r.Header.Set("Authorization", "Bearer abc")

	c := CarriersFromRequest(r)
	if c.Cookies[CookieSession] != "tok1" {
		t.Errorf("session cookie = %q, want %q", c.Cookies[CookieSession], "tok1")
	}
	if c.Cookies[CookieRoleHint] != "member" {
		t.Errorf("role hint = %q, want %q", c.Cookies[CookieRoleHint], "member")
	}
	if c.Authorization != "Bearer abc" {
		t.Errorf("authorization = %q", c.Authorization)
	}
}

func TestCarriersFromRequestDuplicateCookie(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Cookie", CookieSession+"=first; "+CookieSession+"=second")

	c := CarriersFromRequest(r)
	if c.Cookies[CookieSession] != "first" {
		t.Errorf("duplicate cookie: got %q, want first occurrence", c.Cookies[CookieSession])
	}
}
