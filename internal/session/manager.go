// Package session owns console sessions: the signed cookie, the persisted
// record holding the upstream token pair, and the cached user projection.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/identity"
	"payloom.io/internal/ids"
)

// DefaultTTL bounds a console session regardless of upstream token
// rotation.
const DefaultTTL = 12 * time.Hour

// Manager drives the session lifecycle against the platform auth API.
type Manager struct {
	store Store
	api   *backend.Client
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithTTL overrides the session lifetime.
func WithTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager wires the session manager.
func NewManager(store Store, api *backend.Client, c *cache.Cache, opts ...ManagerOption) *Manager {
	m := &Manager{
		store: store,
		api:   api,
		cache: c,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Login authenticates upstream and creates a session record holding the
// token pair and the user snapshot.
func (m *Manager) Login(ctx context.Context, email, password string) (*Record, error) {
	tokens, user, err := m.api.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	rec := &Record{
		ID:              ids.New(),
		AccessToken:     tokens.AccessToken,
		RefreshToken:    tokens.RefreshToken,
		AccessExpiresAt: tokens.ExpiresAt,
		ExpiresAt:       now.Add(m.ttl),
		User:            user,
		CreatedAt:       now,
	}
	if user != nil {
		rec.UserID = user.ID
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

// Find loads an active session record.
func (m *Manager) Find(ctx context.Context, id string) (*Record, error) {
	return m.store.Find(ctx, id)
}

// CurrentUser returns the session's user projection, served from cache and
// refreshed from /me when stale. The fetched projection replaces the stored
// snapshot wholesale.
func (m *Manager) CurrentUser(ctx context.Context, rec *Record) (*identity.AuthUser, error) {
	key := cache.Key("me", rec.ID)
	return cache.Fetch(ctx, m.cache, key, cache.TTLDefault, func(ctx context.Context) (*identity.AuthUser, error) {
		user, err := m.api.Auth.Me(ctx)
		if err != nil {
			// Session teardown races the fetch; fall back to the snapshot
			// only for transient upstream failures.
			if rec.User != nil && errors.Is(err, backend.ErrUnavailable) {
				return rec.User, nil
			}
			return nil, err
		}
		rec.User = user
		_ = m.store.SaveUser(ctx, rec.ID, user)
		return user, nil
	})
}

// Refresh rotates the upstream token pair and persists the new one. The
// caller re-issues cookies from the updated record.
func (m *Manager) Refresh(ctx context.Context, rec *Record) error {
	tokens, err := m.api.Auth.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		return err
	}
	if err := m.store.UpdateTokens(ctx, rec.ID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return fmt.Errorf("persist rotated tokens: %w", err)
	}
	rec.AccessToken = tokens.AccessToken
	rec.RefreshToken = tokens.RefreshToken
	rec.AccessExpiresAt = tokens.ExpiresAt
	return nil
}

// Logout revokes the session everywhere: upstream (best effort), the
// store, and every cache entry scoped to the session.
func (m *Manager) Logout(ctx context.Context, rec *Record) error {
	_ = m.api.Auth.Logout(ctx)
	if err := m.store.Revoke(ctx, rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	m.InvalidateUser(rec.ID)
	return nil
}

// Invalidate tears down local session state without the upstream call,
// used when the refresh flow reports the session dead.
func (m *Manager) Invalidate(ctx context.Context, rec *Record) error {
	err := m.store.Revoke(ctx, rec.ID)
	m.InvalidateUser(rec.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// ReplaceUser swaps the cached and persisted user projection after a
// mutation that changes it (profile edit, role changes on self).
func (m *Manager) ReplaceUser(ctx context.Context, rec *Record, user *identity.AuthUser) error {
	rec.User = user
	m.InvalidateUser(rec.ID)
	return m.store.SaveUser(ctx, rec.ID, user)
}

// InvalidateUser drops the cached user projection for a session.
func (m *Manager) InvalidateUser(sessionID string) {
	m.cache.Invalidate(cache.Key("me", sessionID))
}
