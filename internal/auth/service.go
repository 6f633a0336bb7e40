package auth

import (
	"context"
	"log/slog"

	"github.com/rowanhale/pulsefit/internal/model"
)

// System names which mechanism authenticated the request.
type System string

const (
	SystemOAuth System = "oauth"
	SystemToken System = "token"
	SystemNone  System = "none"
	SystemError System = "error"
)

// ResolvedUser is the single user shape resolution produces, regardless of
// which mechanism authenticated the request.
type ResolvedUser struct {
	ID     int64      `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
	Avatar string     `json:"avatar"`
}

// Result answers "is this request authenticated, as whom, and where should
// it land." ClearCookies instructs the transport layer to expire every
// credential cookie; resolution itself never writes to the response and
// never mutates the session store.
type Result struct {
	Authenticated bool          `json:"authenticated"`
	User          *ResolvedUser `json:"user,omitempty"`
	System        System        `json:"system"`
	DashboardURL  string        `json:"dashboardUrl,omitempty"`
	ClearCookies  bool          `json:"-"`
}

// ProviderSession is what the OAuth collaborator hands back for a live
// provider session. Providers disagree on where the avatar lives, so all
// three fields are carried and normalized here.
type ProviderSession struct {
	UserID  int64
	Email   string
	Name    string
	Role    model.Role
	Avatar  string
	Picture string
	Image   string
}

// OAuthSessions is the external OAuth session store collaborator.
// A nil session with a nil error means "no provider session present".
type OAuthSessions interface {
	Session(ctx context.Context, carriers Carriers) (*ProviderSession, error)
}

// SessionLookup resolves opaque custom-session tokens. Expired sessions
// are reported as absent, not as errors.
type SessionLookup interface {
	GetByToken(token string) (*model.Session, error)
}

// UserLookup fetches the user record backing a credential.
type UserLookup interface {
	GetByID(id int64) (*model.User, error)
}

// Service orchestrates credential resolution: OAuth session first, then
// exactly one resolved carrier verified as a signed token or as an opaque
// session id. One carrier per pass — an invalid primary cookie does not
// fall back to the secondary; it fails the pass and triggers cleanup.
type Service struct {
	codec    *Codec
	oauth    OAuthSessions
	sessions SessionLookup
	users    UserLookup
	logger   *slog.Logger
}

func NewService(codec *Codec, oauth OAuthSessions, sessions SessionLookup, users UserLookup, logger *slog.Logger) *Service {
	return &Service{
		codec:    codec,
		oauth:    oauth,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Resolve is total: it always returns a Result and never propagates an
// error or panic to the transport layer.
func (s *Service) Resolve(ctx context.Context, carriers Carriers) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auth resolution panic", "panic", r)
			res = Result{System: SystemError}
		}
	}()

	// Step 1: provider-native session.
	if s.oauth != nil {
		ps, err := s.oauth.Session(ctx, carriers)
		if err != nil {
			s.logger.Error("oauth session lookup", "error", err)
			return Result{System: SystemError}
		}
		if ps != nil {
			if !ps.Role.Valid() {
				s.logger.Warn("oauth session with unknown role rejected", "role", ps.Role)
			} else {
				user := &ResolvedUser{
					ID:     ps.UserID,
					Email:  ps.Email,
					Name:   ps.Name,
					Role:   ps.Role,
					Avatar: normalizeAvatar(ps),
				}
				return Result{
					Authenticated: true,
					User:          user,
					System:        SystemOAuth,
					DashboardURL:  DashboardFor(user.Role),
				}
			}
		}
	}

	// Step 2: pick one credential carrier.
	cred, ok := ResolveCredential(carriers)
	if !ok {
		return Result{System: SystemNone}
	}

	// Step 3: verify it — signed token first, opaque session id otherwise.
	if claims, err := s.codec.Verify(cred.Value); err == nil {
		return s.fromClaims(claims)
	}

	sess, err := s.sessions.GetByToken(cred.Value)
	if err != nil {
		s.logger.Error("session lookup", "error", err)
		return Result{System: SystemError}
	}
	if sess == nil {
		// A credential was present but nothing honors it: stale cookies
		// must be cleared. This is part of the contract, not optional.
		return Result{System: SystemNone, ClearCookies: true}
	}

	user, err := s.users.GetByID(sess.UserID)
	if err != nil {
		s.logger.Error("session user lookup", "error", err)
		return Result{System: SystemError}
	}
	if user == nil || !sess.Role.Valid() {
		return Result{System: SystemNone, ClearCookies: true}
	}

	return Result{
		Authenticated: true,
		User: &ResolvedUser{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   sess.Role,
			Avatar: user.Avatar,
		},
		System:       SystemToken,
		DashboardURL: DashboardFor(sess.Role),
	}
}

func (s *Service) fromClaims(claims *Claims) Result {
	user := &ResolvedUser{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}
	// Claims carry no avatar; pick it up from the user record when we can.
	if s.users != nil {
		u, err := s.users.GetByID(claims.UserID)
		if err != nil {
			s.logger.Error("claims user lookup", "error", err)
			return Result{System: SystemError}
		}
		if u == nil {
			// Token is cryptographically fine but the account is gone.
			return Result{System: SystemNone, ClearCookies: true}
		}
		user.Avatar = u.Avatar
	}
	return Result{
		Authenticated: true,
		User:          user,
		System:        SystemToken,
		DashboardURL:  DashboardFor(user.Role),
	}
}

func normalizeAvatar(ps *ProviderSession) string {
	for _, v := range []string{ps.Avatar, ps.Picture, ps.Image} {
		if v != "" {
			return v
		}
	}
	return ""
}
