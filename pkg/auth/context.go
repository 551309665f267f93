package auth

import (
	"context"
	"errors"
)

// contextKey is an unexported type to prevent key collisions in context.
type contextKey string

const adminIDKey contextKey = "admin_id"

// ErrAdminIDNotFound is returned when no admin identity exists in the request context.
// Handlers should return 401 when this error occurs.
var ErrAdminIDNotFound = errors.New("admin_id not found in context")

// AdminIDFromCtx extracts the authenticated admin identity from the request context.
// Returns "" and ErrAdminIDNotFound if no admin identity is set (unauthenticated request).
func AdminIDFromCtx(ctx context.Context) (string, error) {
	adminID, ok := ctx.Value(adminIDKey).(string)
	if !ok || adminID == "" {
		return "", ErrAdminIDNotFound
	}
	return adminID, nil
}

// WithAdminID returns a new context with the given admin identity attached.
// Used by authentication middleware after validating the session.
func WithAdminID(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, adminIDKey, adminID)
}
