package session

import (
	"context"
	"sync"
	"time"

	"payloom.io/internal/identity"
)

// MemoryStore is an in-memory Store used by tests and by deployments that
// run without Postgres. Sessions do not survive a restart.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]*Record
	now  func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs: make(map[string]*Record),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Revoked || rec.Expired(s.now()) {
		return nil, ErrRevoked
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) UpdateTokens(_ context.Context, id, accessToken, refreshToken string, accessExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Revoked {
		return ErrRevoked
	}
	rec.AccessToken = accessToken
	rec.RefreshToken = refreshToken
	rec.AccessExpiresAt = accessExpiresAt
	return nil
}

func (s *MemoryStore) SaveUser(_ context.Context, id string, user *identity.AuthUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	rec.User = user
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	rec.Revoked = true
	return nil
}

func (s *MemoryStore) RevokeByUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, rec := range s.recs {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			n++
		}
	}
	return n, nil
}
