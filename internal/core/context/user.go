// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// UserContext identifies the caller of an operation.
// Authentication happens upstream; the calling layer forwards the actor id.
type UserContext struct {
	UserID string
	Source string // e.g. "http", "worker"
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or "system" for background work.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil && u.UserID != "" {
		return u.UserID
	}
	return "system"
}
