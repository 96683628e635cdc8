package roster

import (
	"context"
	"sync"
)

// Resolver maps an opaque user id to a display name. api.Client implements it.
type Resolver interface {
	UserName(ctx context.Context, userID string) (string, error)
}

type nameEntry struct {
	name   string
	failed bool
}

// NameCache maps user ids to resolved display names for one console session.
// It is constructor-initialized and owned by its Session, never a package
// global. Entries are only ever inserted: a successful resolution is immutable
// for the cache lifetime, a failed one holds a sentinel until RetryFailed
// replaces it. The mutex guards the map because lookups fan out on goroutines.
type NameCache struct {
	resolver Resolver

	mu       sync.Mutex
	entries  map[string]nameEntry
	inflight map[string]bool
}

func NewNameCache(r Resolver) *NameCache {
	return &NameCache{
		resolver: r,
		entries:  make(map[string]nameEntry),
		inflight: make(map[string]bool),
	}
}

// Resolve issues one lookup per id in ids that has no cache entry, all in
// parallel with no concurrency bound, and blocks until the batch settles.
// A failed lookup stores the failure sentinel and never aborts its siblings.
// Ids already cached (resolved or failed) or already in flight are skipped,
// so a batch requested twice issues zero new lookups the second time.
func (c *NameCache) Resolve(ctx context.Context, ids []string) {
	c.fanOut(ctx, c.claim(ids))
}

// RetryFailed re-attempts every id currently holding the failure sentinel.
// Resolve itself never retries; the Session calls this once per refresh cycle
// so a transient backend failure heals on the next manual refresh.
func (c *NameCache) RetryFailed(ctx context.Context) {
	c.mu.Lock()
	var retry []string
	for id, e := range c.entries {
		if e.failed && !c.inflight[id] {
			c.inflight[id] = true
			retry = append(retry, id)
		}
	}
	c.mu.Unlock()
	c.fanOut(ctx, retry)
}

func (c *NameCache) claim(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var pending []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := c.entries[id]; ok {
			continue
		}
		if c.inflight[id] {
			continue
		}
		c.inflight[id] = true
		pending = append(pending, id)
	}
	return pending
}

func (c *NameCache) fanOut(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			name, err := c.resolver.UserName(ctx, id)
			c.store(id, name, err)
		}(id)
	}
	wg.Wait()
}

func (c *NameCache) store(id, name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	if cur, ok := c.entries[id]; ok && !cur.failed {
		// resolved entries are immutable
		return
	}
	if err != nil {
		c.entries[id] = nameEntry{failed: true}
		return
	}
	c.entries[id] = nameEntry{name: name}
}

// DisplayName returns the display value for id: the resolved name, the
// unknown-user placeholder after a failed resolution, or the generic
// placeholder while no resolution has landed.
func (c *NameCache) DisplayName(id string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	switch {
	case !ok:
		return Placeholder
	case e.failed:
		return UnknownUserName
	default:
		return e.name
	}
}

// Resolved reports whether id holds a successful resolution.
func (c *NameCache) Resolved(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && !e.failed
}

// Missing returns the distinct ids from ids that have no cache entry yet,
// preserving first-seen order.
func (c *NameCache) Missing(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]bool, len(ids))
	var missing []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.entries[id]; ok {
			continue
		}
		missing = append(missing, id)
	}
	return missing
}

// Len reports how many ids have a cache entry, resolved or failed.
func (c *NameCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
