package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrFetchCachesWithinTTL(t *testing.T) {
	c := New()
	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		val, err := c.GetOrFetch(ctx, Key("banks", "GH"), TTLReference, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		if val != "v1" {
			t.Fatalf("unexpected value %v", val)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	c := New()
	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "me", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := c.GetOrFetch(context.Background(), "me|sess-1", TTLDefault, fetch)
			if err != nil || val != "me" {
				t.Errorf("GetOrFetch: val=%v err=%v", val, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single deduplicated fetch, got %d", n)
	}
}

func TestStaleEntryServedWhileRevalidating(t *testing.T) {
	c := New()
	now := time.Now()
	c.now = func() time.Time { return now }

	var calls int32
	done := make(chan struct{}, 1)
	fetch := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n > 1 {
			done <- struct{}{}
			return "fresh", nil
		}
		return "stale", nil
	}

	ctx := context.Background()
	if _, err := c.GetOrFetch(ctx, "transactions|acme", TTLTransactions, fetch); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// Age the entry past its window; the stale value must come back
	// immediately while a background refresh runs.
	now = now.Add(TTLTransactions + time.Second)
	val, err := c.GetOrFetch(ctx, "transactions|acme", TTLTransactions, fetch)
	if err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if val != "stale" {
		t.Fatalf("expected stale value, got %v", val)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("revalidation never ran")
	}
}

func TestInvalidatePrefixIsIdempotent(t *testing.T) {
	c := New()
	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "roles", nil
	}

	ctx := context.Background()
	keys := []string{Key("roles"), Key("roles", "r-1"), Key("roles", "r-1", "permissions")}
	for _, k := range keys {
		if _, err := c.GetOrFetch(ctx, k, TTLDefault, fetch); err != nil {
			t.Fatalf("prime %s: %v", k, err)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}

	// A sibling resource must survive role invalidation.
	if _, err := c.GetOrFetch(ctx, Key("rolesets"), TTLDefault, fetch); err != nil {
		t.Fatalf("prime sibling: %v", err)
	}

	c.Invalidate("roles")
	c.Invalidate("roles") // repeat must be a no-op

	if c.Len() != 1 {
		t.Fatalf("expected only sibling to remain, got %d entries", c.Len())
	}

	before := atomic.LoadInt32(&calls)
	if _, err := c.GetOrFetch(ctx, Key("roles"), TTLDefault, fetch); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if got := atomic.LoadInt32(&calls) - before; got != 1 {
		t.Fatalf("double invalidation must cost exactly one fetch on next read, got %d", got)
	}
}

func TestFetchTyped(t *testing.T) {
	c := New()
	type bank struct{ Name string }

	got, err := Fetch(context.Background(), c, Key("banks", "NG"), TTLReference, func(ctx context.Context) ([]bank, error) {
		return []bank{{Name: "First Bank"}}, nil
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || got[0].Name != "First Bank" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestClearDropsEverything(t *testing.T) {
	c := New()
	_, _ = c.GetOrFetch(context.Background(), "me|s1", TTLDefault, func(ctx context.Context) (any, error) { return 1, nil })
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestFetchTypeMismatchSurfaces(t *testing.T) {
	c := New()
	ctx := context.Background()

	if _, err := Fetch(ctx, c, "shared-key", TTLDefault, func(context.Context) (string, error) {
		return "v1", nil
	}); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	_, err := Fetch(ctx, c, "shared-key", TTLDefault, func(context.Context) (int, error) {
		return 7, nil
	})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}
