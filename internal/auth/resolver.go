package auth

import (
	"net/http"
	"strings"
)

// Cookie names, in resolver precedence order. The primary session cookie is
// the one refreshed on profile mutation, so it must win when present. The
// debug cookie exists only for non-production diagnosis and ranks last
// among cookies. The role-hint cookie is readable by the client and never
// carries a credential.
const (
	CookieSession      = "pulsefit_session"
	CookieAuthToken    = "pulsefit_auth_token"
	CookieDebugSession = "pulsefit_debug_session"
	CookieRoleHint     = "pulsefit_role"
)

// Source identifies which carrier yielded a credential.
type Source string

const (
	SourceSessionCookie Source = "session_cookie"
	SourceAuthCookie    Source = "auth_cookie"
	SourceDebugCookie   Source = "debug_cookie"
	SourceBearerHeader  Source = "bearer_header"
)

// Credential is one raw token plus the carrier it came from. The resolver
// makes no claim about validity; it only picks the carrier.
type Credential struct {
	Source Source
	Value  string
}

// Carriers is the request-level input to credential resolution: the cookie
// jar and the Authorization header value.
type Carriers struct {
	Cookies       map[string]string
	Authorization string
}

// CarriersFromRequest extracts the cookie jar and Authorization header.
func CarriersFromRequest(r *http.Request) Carriers {
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, ok := cookies[c.Name]; !ok {
			cookies[c.Name] = c.Value
		}
	}
	return Carriers{
		Cookies:       cookies,
		Authorization: r.Header.Get("Authorization"),
	}
}

// cookiePrecedence is the single place the cookie order is declared.
var cookiePrecedence = []struct {
	name   string
	source Source
}{
	{CookieSession, SourceSessionCookie},
	{CookieAuthToken, SourceAuthCookie},
	{CookieDebugSession, SourceDebugCookie},
}

// ResolveCredential returns the first non-empty carrier in the fixed
// precedence order: primary cookie, auth-token cookie, debug cookie,
// bearer header. Pure; no side effects. Exactly one carrier is chosen per
// call — presence decides, not validity.
func ResolveCredential(c Carriers) (Credential, bool) {
	for _, p := range cookiePrecedence {
		if v := c.Cookies[p.name]; v != "" {
			return Credential{Source: p.source, Value: v}, true
		}
	}
	if token := bearerToken(c.Authorization); token != "" {
		return Credential{Source: SourceBearerHeader, Value: token}, true
	}
	return Credential{}, false
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
