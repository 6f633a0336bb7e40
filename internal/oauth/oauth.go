// Package oauth adapts the external OAuth provider's session storage to
// the auth resolution service. The provider handles the authorization
// dance itself; after its callback we hold a provider session row keyed by
// the provider's own cookie, which is all resolution ever consults.
package oauth

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/rowanhale/pulsefit/internal/auth"
	"github.com/rowanhale/pulsefit/internal/model"
)

// SessionCookie is the provider-managed session cookie. It is not part of
// the custom credential precedence chain; the resolution service checks it
// before any of our own carriers.
const SessionCookie = "pulsefit_oauth_session"

// SessionReader looks up provider sessions for the auth resolution
// service. It implements auth.OAuthSessions.
type SessionReader struct {
	db *sql.DB
}

func NewSessionReader(db *sql.DB) *SessionReader {
	return &SessionReader{db: db}
}

// Session returns the live provider session carried by the request, or
// (nil, nil) when none is present or it has expired.
func (r *SessionReader) Session(ctx context.Context, carriers auth.Carriers) (*auth.ProviderSession, error) {
	token := carriers.Cookies[SessionCookie]
	if token == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email, u.name, u.role, u.avatar, o.picture, o.image
		 FROM oauth_sessions o
		 JOIN users u ON u.id = o.user_id
		 WHERE o.token = ? AND o.expires_at > datetime('now')`,
		token,
	)

	var ps auth.ProviderSession
	var role string
	err := row.Scan(&ps.UserID, &ps.Email, &ps.Name, &role, &ps.Avatar, &ps.Picture, &ps.Image)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth session: %w", err)
	}
	ps.Role = model.Role(role)
	return &ps, nil
}

// Store persists provider sessions minted by the callback handler.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(token string, userID int64, provider, picture, image string, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO oauth_sessions (token, user_id, provider, picture, image, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		token, userID, provider, picture, image, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert oauth session: %w", err)
	}
	return nil
}

func (s *Store) DeleteByToken(token string) error {
	_, err := s.db.Exec(`DELETE FROM oauth_sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete oauth session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpired() error {
	_, err := s.db.Exec(`DELETE FROM oauth_sessions WHERE expires_at <= datetime('now')`)
	if err != nil {
		return fmt.Errorf("delete expired oauth sessions: %w", err)
	}
	return nil
}

// ClearSessionCookie expires the provider session cookie on logout.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
