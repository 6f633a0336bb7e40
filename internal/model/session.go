package model

import "time"

// Session is one authenticated browser context backed by the database.
// Expiry is lazy: a session is treated as absent once expires_at has
// passed; there is no background reaper.
type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OAuthSession is a provider-backed session record. The OAuth provider
// itself is an external collaborator; we only persist what it hands back
// after the callback exchange.
type OAuthSession struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Provider  string    `json:"provider"`
	Picture   string    `json:"picture"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
