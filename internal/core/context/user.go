// Package context carries the authenticated caller and request tracing ids
// through a request.
package context

import (
	"context"
)

// UserContext is the caller decoded from the bearer token. Permissions hold
// action strings such as "purchase:update" and are evaluated by the policy
// authorizer; IsAdmin bypasses the policy.
type UserContext struct {
	UserID      string
	Email       string
	Roles       []string
	Permissions []string
	IsAdmin     bool
}

type userContextKey struct{}

func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns nil for unauthenticated contexts (background jobs, tests).
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID is the audit actor; empty when no user is attached.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}
