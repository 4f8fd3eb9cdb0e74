// Package cache is a stale-while-revalidate response cache keyed by
// resource + filter parameters. It deduplicates concurrent fetches of the
// same key and supports prefix invalidation after mutations. The backend
// stays authoritative: staleness windows are hints, not guarantees.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"payloom.io/internal/obs"
)

// ErrTypeMismatch reports a cached value of an unexpected type. It can only
// happen when two call sites share a key but expect different result types,
// which is a key-construction bug that must surface, not an empty response.
var ErrTypeMismatch = errors.New("cache: cached value has unexpected type")

// Staleness windows per resource class. Frequently-changing lists refresh
// aggressively; reference data such as bank lists barely moves.
const (
	TTLTransactions = 30 * time.Second
	TTLDefault      = 5 * time.Minute
	TTLReference    = 24 * time.Hour
)

// FetchFunc loads a value from the backend on miss or revalidation.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value     any
	fetchedAt time.Time
}

type call struct {
	done chan struct{}
	val  any
	err  error
}

// Cache is safe for concurrent use. All state is guarded by mu; in-flight
// fetches are tracked so one upstream request serves every waiter.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]entry
	inflight map[string]*call
	now      func() time.Time
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		entries:  make(map[string]entry),
		inflight: make(map[string]*call),
		now:      time.Now,
	}
}

// Key builds a canonical cache key from a resource name and the filter
// parameters that shaped the request. Order matters: callers pass params
// in a fixed order so equivalent requests collapse onto one key.
func Key(resource string, params ...string) string {
	if len(params) == 0 {
		return resource
	}
	return resource + "|" + strings.Join(params, "|")
}

// GetOrFetch returns the cached value for key when present. A fresh entry
// is returned as-is. A stale entry is returned immediately while a single
// background revalidation refreshes it. A missing entry blocks on one
// shared fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		age := c.now().Sub(e.fetchedAt)
		if age < ttl {
			c.mu.Unlock()
			obs.ObserveCache("hit")
			return e.value, nil
		}
		// Serve stale, revalidate in the background unless a refresh for
		// this key is already running.
		if _, running := c.inflight[key]; !running {
			cl := &call{done: make(chan struct{})}
			c.inflight[key] = cl
			go c.revalidate(key, cl, fetch)
		}
		c.mu.Unlock()
		obs.ObserveCache("stale")
		return e.value, nil
	}

	// Miss: join the in-flight fetch when one exists.
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-cl.done:
			return cl.val, cl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight[key] = cl
	c.mu.Unlock()
	obs.ObserveCache("miss")

	val, err := fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = entry{value: val, fetchedAt: c.now()}
	}
	c.mu.Unlock()

	cl.val, cl.err = val, err
	close(cl.done)
	return val, err
}

// revalidate refreshes a stale entry outside any request. Failures keep
// the stale value in place; the next read will try again.
func (c *Cache) revalidate(key string, cl *call, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	val, err := fetch(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil {
		c.entries[key] = entry{value: val, fetchedAt: c.now()}
	}
	c.mu.Unlock()

	cl.val, cl.err = val, err
	close(cl.done)
}

// Invalidate drops every entry whose key equals prefix or begins with
// prefix + the key separator. Mutations call this with the broadest shared
// prefix ("roles" clears all role lists and details). Calling it twice is
// a no-op the second time; the next read triggers at most one fetch.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key == prefix || strings.HasPrefix(key, prefix+"|") {
			delete(c.entries, key)
		}
	}
}

// Clear drops everything. Used on logout and session expiry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Fetch is a typed wrapper around GetOrFetch.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	val, err := c.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q", ErrTypeMismatch, key)
	}
	return typed, nil
}
