// Package actor provides request-scoped admin identity extraction.
package actor

import (
	"context"
)

// Context contains the authenticated admin identity for a request or
// remediation session.
type Context struct {
	ActorID   string
	Email     string
	Role      string
	SessionID string
	IP        string
	Device    string
}

type actorContextKey struct{}

// WithActor adds the actor Context to context.
func WithActor(ctx context.Context, a *Context) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// Get returns the actor Context from context or nil.
func Get(ctx context.Context) *Context {
	if v, ok := ctx.Value(actorContextKey{}).(*Context); ok {
		return v
	}
	return nil
}

// ID returns the actor ID from context or empty string.
func ID(ctx context.Context) string {
	if a := Get(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// SessionID returns the session ID from context or empty string.
func SessionID(ctx context.Context) string {
	if a := Get(ctx); a != nil {
		return a.SessionID
	}
	return ""
}

// HasRole checks if the actor has a specific role.
func HasRole(ctx context.Context, role string) bool {
	a := Get(ctx)
	return a != nil && a.Role == role
}
