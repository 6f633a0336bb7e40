package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rowanhale/pulsefit/internal/model"
)

// ErrTokenInvalid is the single failure mode of Codec.Verify. Callers treat
// it as "unauthenticated"; the reason (bad signature, expiry, structure) is
// deliberately not distinguished to the outside.
var ErrTokenInvalid = errors.New("invalid token")

// Claims is the signed session payload carried in cookies and bearer
// headers. Times are epoch seconds via the registered iat/exp claims.
type Claims struct {
	UserID int64      `json:"userId"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Name   string     `json:"name"`
	jwt.RegisteredClaims
}

// Codec issues and verifies signed session tokens (HS256).
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs the given identity into a token with iat=now and exp=now+ttl.
func (c *Codec) Issue(userID int64, email string, role model.Role, name string) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature and expiry and returns the claims, or
// ErrTokenInvalid. A token expired by even one second is invalid; there is
// no skew leeway. Verify never panics and never partially succeeds.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))

	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// exp is optional in JWT but mandatory here: a token that cannot expire
	// must not be honored.
	if claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenInvalid
	}

	if !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}
