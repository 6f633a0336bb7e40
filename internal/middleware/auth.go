package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/model"
)

// RequireAuth resolves the caller through the auth resolution service and
// populates AuthContext. On failure it clears stale credential cookies
// when resolution says so and answers 401; resolution errors are
// indistinguishable from absence to the caller.
func RequireAuth(resolver *auth.Service, secureCookies bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := resolver.Resolve(r.Context(), auth.CarriersFromRequest(r))
			if !result.Authenticated {
				if result.ClearCookies {
					auth.ClearSessionCookies(w, secureCookies)
				}
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID: result.User.ID,
				Email:  result.User.Email,
				Name:   result.User.Name,
				Role:   result.User.Role,
				System: result.System,
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a subtree on the role hierarchy. It must run inside
// RequireAuth.
func RequireRole(min model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.FromContext(r.Context())
			if !ok || !ac.Role.AtLeast(min) {
				forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePathAccess enforces the prefix policy against the request path,
// for routers that mount whole dashboard subtrees behind one handler.
func RequirePathAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok || !auth.CanAccess(ac.Role, r.URL.Path) {
			forbidden(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "please sign in"})
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
}
