package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/email"
	"github.com/rowanhale/pulsefit/internal/model"
	"github.com/rowanhale/pulsefit/internal/oauth"
	"github.com/rowanhale/pulsefit/internal/store"
)

type AuthHandler struct {
	users         *store.UserStore
	sessions      *store.SessionStore
	oauthStore    *oauth.Store
	codec         *auth.Codec
	resolver      *auth.Service
	emailClient   *email.Client
	secureCookies bool
	logger        *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	os *oauth.Store,
	codec *auth.Codec,
	resolver *auth.Service,
	ec *email.Client,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:         us,
		sessions:      ss,
		oauthStore:    os,
		codec:         codec,
		resolver:      resolver,
		emailClient:   ec,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Redirect string `json:"redirect"`
}

type authResponse struct {
	User         *auth.ResolvedUser `json:"user"`
	DashboardURL string             `json:"dashboardUrl"`
	Redirect     string             `json:"redirect,omitempty"`
}

// Register handles POST /api/auth/register. New accounts are always plain
// members; staff roles are assigned by an admin afterwards.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "email, name, and a password of at least 8 characters are required")
		return
	}

	existing, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "an account with that email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.Create(req.Email, req.Name, model.RoleMember, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if h.emailClient.Configured() {
		go func() {
			if err := h.emailClient.SendWelcome(context.Background(), user.Email, user.Name); err != nil {
				h.logger.Error("send welcome email", "error", err)
			}
		}()
	}

	h.mintAndRespond(w, user, "")
}

// Login handles POST /api/auth/login: the password credential path. On
// success a signed token is written to both session cookies.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Same response whether the account is missing or the password is
	// wrong.
	if user == nil || user.PasswordHash == "" {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.mintAndRespond(w, user, req.Redirect)
}

// Resolve handles GET /api/auth/resolve. It is public: the SPA shell calls
// it on boot to learn who is signed in and where to land. Stale cookies
// are cleared here as a side effect of resolution saying so.
func (h *AuthHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	result := h.resolver.Resolve(r.Context(), auth.CarriersFromRequest(r))
	if result.ClearCookies {
		auth.ClearSessionCookies(w, h.secureCookies)
	}
	if result.Authenticated {
		if requested := r.URL.Query().Get("redirect"); requested != "" {
			result.DashboardURL = auth.ResolveRedirect(requested, result.User.Role)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "please sign in")
		return
	}
	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile. Profile mutation re-issues
// the signed token so the refreshed primary cookie reflects the change.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "please sign in")
		return
	}

	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := h.users.UpdateProfile(ac.UserID, req.Name, req.Avatar)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.mintAndRespond(w, user, "")
}

// Logout handles POST /api/auth/logout. Whatever carrier is present, its
// backing session (if any) is destroyed and every credential cookie is
// cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cred, ok := auth.ResolveCredential(auth.CarriersFromRequest(r)); ok {
		if err := h.sessions.DeleteByToken(cred.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	if c, err := r.Cookie(oauth.SessionCookie); err == nil && c.Value != "" {
		if err := h.oauthStore.DeleteByToken(c.Value); err != nil {
			h.logger.Error("delete oauth session", "error", err)
		}
		oauth.ClearSessionCookie(w, h.secureCookies)
	}
	auth.ClearSessionCookies(w, h.secureCookies)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) mintAndRespond(w http.ResponseWriter, user *model.User, requestedRedirect string) {
	token, err := h.codec.Issue(user.ID, user.Email, user.Role, user.Name)
	if err != nil {
		h.logger.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	auth.WriteSessionCookies(w, token, user.Role, h.secureCookies)

	resp := authResponse{
		User: &auth.ResolvedUser{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
			Avatar: user.Avatar,
		},
		DashboardURL: auth.DashboardFor(user.Role),
	}
	if requestedRedirect != "" {
		resp.Redirect = auth.ResolveRedirect(requestedRedirect, user.Role)
	}
	writeJSON(w, http.StatusOK, resp)
}
