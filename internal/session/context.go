package session

import (
	"context"
	"strings"

	"payloom.io/internal/identity"
)

type recordContextKey struct{}
type userContextKey struct{}

// ContextWithRecord attaches the active session record to the context.
func ContextWithRecord(ctx context.Context, rec *Record) context.Context {
	if rec == nil {
		return ctx
	}
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// RecordFromContext extracts the active session record from the context.
func RecordFromContext(ctx context.Context) (*Record, bool) {
	if ctx == nil {
		return nil, false
	}
	rec, ok := ctx.Value(recordContextKey{}).(*Record)
	return rec, ok && rec != nil
}

// ContextWithUser attaches the resolved user projection to the context.
func ContextWithUser(ctx context.Context, user *identity.AuthUser) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the resolved user projection from the context.
func UserFromContext(ctx context.Context) (*identity.AuthUser, bool) {
	if ctx == nil {
		return nil, false
	}
	user, ok := ctx.Value(userContextKey{}).(*identity.AuthUser)
	return user, ok && user != nil
}

// UserIDFromContext extracts the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if user, ok := UserFromContext(ctx); ok && strings.TrimSpace(user.ID) != "" {
		return user.ID, true
	}
	if rec, ok := RecordFromContext(ctx); ok && strings.TrimSpace(rec.UserID) != "" {
		return rec.UserID, true
	}
	return "", false
}
