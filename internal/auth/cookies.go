package auth

import (
	"net/http"
	"time"

	"github.com/rowanhale/pulsefit/internal/model"
)

// CookieMaxAge matches the default token TTL.
const CookieMaxAge = 7 * 24 * time.Hour

// WriteSessionCookies sets both the primary and the auth-token cookie to
// the same value. The dual write is intentional: if one cookie name is
// blocked or cleared by a client extension, the other still carries the
// session. A non-HTTP-only role hint is written alongside so the client
// shell can pick a dashboard skeleton before the first API round trip.
func WriteSessionCookies(w http.ResponseWriter, token string, role model.Role, secure bool) {
	maxAge := int(CookieMaxAge.Seconds())
	for _, name := range []string{CookieSession, CookieAuthToken} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    token,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieRoleHint,
		Value:    string(role),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookies expires every credential cookie plus the role hint.
// Called on logout and whenever resolution finds a stale credential.
func ClearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{CookieSession, CookieAuthToken, CookieDebugSession, CookieRoleHint} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name != CookieRoleHint,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
