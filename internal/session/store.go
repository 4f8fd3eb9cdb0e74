package session

import (
	"context"
	"errors"
	"time"

	"payloom.io/internal/identity"
)

var (
	// ErrNotFound indicates no session record exists for the id.
	ErrNotFound = errors.New("session: not found")
	// ErrRevoked indicates the record exists but has been torn down.
	ErrRevoked = errors.New("session: revoked")
)

// Record is one console session. It owns the upstream token pair so the
// browser never sees the refresh token; the cookie only carries the record
// id inside a signed JWT.
type Record struct {
	ID              string
	UserID          string
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
	ExpiresAt       time.Time
	User            *identity.AuthUser
	CreatedAt       time.Time
	Revoked         bool
}

// Expired reports whether the session itself (not the access token) is past
// its lifetime.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// Store persists session records. Find returns ErrNotFound for unknown ids
// and ErrRevoked for revoked or expired records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Find(ctx context.Context, id string) (*Record, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, accessExpiresAt time.Time) error
	SaveUser(ctx context.Context, id string, user *identity.AuthUser) error
	Revoke(ctx context.Context, id string) error
	RevokeByUser(ctx context.Context, userID string) (int, error)
}
