package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// fakeResolver counts lookups per id and fails the ids listed in fail.
type fakeResolver struct {
	mu    sync.Mutex
	names map[string]string
	fail  map[string]bool
	calls map[string]int
}

func newFakeResolver(names map[string]string) *fakeResolver {
	return &fakeResolver{
		names: names,
		fail:  make(map[string]bool),
		calls: make(map[string]int),
	}
}

func (r *fakeResolver) UserName(ctx context.Context, userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[userID]++
	if r.fail[userID] {
		return "", errors.New("lookup failed")
	}
	name, ok := r.names[userID]
	if !ok {
		return "", fmt.Errorf("no such user %s", userID)
	}
	return name, nil
}

func (r *fakeResolver) callCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[userID]
}

func TestResolveCachesAndDedupes(t *testing.T) {
	r := newFakeResolver(map[string]string{"u1": "Alice", "u2": "Bob"})
	c := NewNameCache(r)

	c.Resolve(context.Background(), []string{"u1", "u2", "u1", ""})
	if got := c.DisplayName("u1"); got != "Alice" {
		t.Fatalf("u1 = %q, want Alice", got)
	}
	if got := c.DisplayName("u2"); got != "Bob" {
		t.Fatalf("u2 = %q, want Bob", got)
	}
	if n := r.callCount("u1"); n != 1 {
		t.Fatalf("u1 looked up %d times, want 1", n)
	}

	// second batch over cached ids issues zero new lookups
	c.Resolve(context.Background(), []string{"u1", "u2"})
	if n := r.callCount("u1"); n != 1 {
		t.Fatalf("cached id looked up again: %d calls", n)
	}
}

func TestResolvePartialBatchFailure(t *testing.T) {
	r := newFakeResolver(map[string]string{"u1": "Alice", "u3": "Carol"})
	c := NewNameCache(r)

	c.Resolve(context.Background(), []string{"u1", "u2", "u3"})
	if got := c.DisplayName("u1"); got != "Alice" {
		t.Fatalf("u1 = %q, want Alice", got)
	}
	if got := c.DisplayName("u3"); got != "Carol" {
		t.Fatalf("u3 = %q, want Carol", got)
	}
	if got := c.DisplayName("u2"); got != UnknownUserName {
		t.Fatalf("failed id = %q, want %q", got, UnknownUserName)
	}
	if c.Resolved("u2") {
		t.Fatal("failed id must not report resolved")
	}

	// the failure is cached too: resolving again is a no-op
	c.Resolve(context.Background(), []string{"u2"})
	if n := r.callCount("u2"); n != 1 {
		t.Fatalf("failed id re-looked-up by Resolve: %d calls", n)
	}
}

func TestRetryFailedHeals(t *testing.T) {
	r := newFakeResolver(map[string]string{"u2": "Bob"})
	r.fail["u2"] = true
	c := NewNameCache(r)

	c.Resolve(context.Background(), []string{"u2"})
	if got := c.DisplayName("u2"); got != UnknownUserName {
		t.Fatalf("before retry: %q", got)
	}

	r.mu.Lock()
	r.fail["u2"] = false
	r.mu.Unlock()

	c.RetryFailed(context.Background())
	if got := c.DisplayName("u2"); got != "Bob" {
		t.Fatalf("after retry: %q, want Bob", got)
	}
	if !c.Resolved("u2") {
		t.Fatal("healed id must report resolved")
	}
}

func TestRetryFailedSkipsResolved(t *testing.T) {
	r := newFakeResolver(map[string]string{"u1": "Alice"})
	c := NewNameCache(r)
	c.Resolve(context.Background(), []string{"u1"})
	c.RetryFailed(context.Background())
	if n := r.callCount("u1"); n != 1 {
		t.Fatalf("resolved id re-looked-up by RetryFailed: %d calls", n)
	}
}

func TestResolvedEntriesImmutable(t *testing.T) {
	r := newFakeResolver(map[string]string{"u1": "Alice"})
	c := NewNameCache(r)
	c.Resolve(context.Background(), []string{"u1"})

	// a stray late store must not clobber the resolved name
	c.store("u1", "Mallory", nil)
	if got := c.DisplayName("u1"); got != "Alice" {
		t.Fatalf("resolved entry overwritten: %q", got)
	}
	c.store("u1", "", errors.New("late failure"))
	if got := c.DisplayName("u1"); got != "Alice" {
		t.Fatalf("resolved entry demoted to failure: %q", got)
	}
}

func TestDisplayNameBeforeResolution(t *testing.T) {
	c := NewNameCache(newFakeResolver(nil))
	if got := c.DisplayName("u9"); got != Placeholder {
		t.Fatalf("unresolved id = %q, want %q", got, Placeholder)
	}
}

func TestMissingDistinctOrdered(t *testing.T) {
	r := newFakeResolver(map[string]string{"u1": "Alice"})
	c := NewNameCache(r)
	c.Resolve(context.Background(), []string{"u1"})

	missing := c.Missing([]string{"u2", "u1", "u3", "u2", ""})
	if len(missing) != 2 || missing[0] != "u2" || missing[1] != "u3" {
		t.Fatalf("missing = %v, want [u2 u3]", missing)
	}
}

func TestResolveConcurrentBatches(t *testing.T) {
	names := make(map[string]string)
	ids := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("u%d", i)
		names[id] = fmt.Sprintf("User %d", i)
		ids = append(ids, id)
	}
	r := newFakeResolver(names)
	c := NewNameCache(r)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Resolve(context.Background(), ids)
		}()
	}
	wg.Wait()

	if c.Len() != 20 {
		t.Fatalf("cache holds %d entries, want 20", c.Len())
	}
	for _, id := range ids {
		if n := r.callCount(id); n != 1 {
			t.Fatalf("%s looked up %d times under concurrent batches, want 1", id, n)
		}
	}
}
