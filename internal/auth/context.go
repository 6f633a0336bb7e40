package auth

import (
	"context"

	"github.com/rowanhale/pulsefit/internal/model"
)

type contextKey struct{}

// AuthContext is the resolved caller identity attached to a request.
type AuthContext struct {
	UserID int64
	Email  string
	Name   string
	Role   model.Role
	System System
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func RoleOf(ctx context.Context) model.Role {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.Role
}
