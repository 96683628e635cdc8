package roster

import (
	"context"
	"fmt"
	"sync"

	"campusline/internal/domain"
)

// Fetcher is the slice of the collaborator API a roster session consumes.
type Fetcher interface {
	Activities(ctx context.Context) ([]domain.Activity, error)
	Signups(ctx context.Context) ([]domain.RawSignup, error)
	Resolver
}

// Session owns the signup view state for one console session: the identity
// cache, the last fetched collections, and the rows derived from them. It is
// created on mount and discarded with the session, so the cache can never
// leak across sessions.
//
// Each Refresh carries a monotonic generation token; when refreshes overlap,
// a superseded fetch's late response is dropped instead of merged. Cache
// inserts from a superseded refresh still land: they are additive and
// commutative, so merging them is safe.
type Session struct {
	api Fetcher

	mu         sync.Mutex
	names      *NameCache
	activities []domain.Activity
	signups    []domain.Signup
	rows       []domain.RosterRow
	gen        uint64

	onUpdate func()
}

func NewSession(api Fetcher) *Session {
	return &Session{
		api:   api,
		names: NewNameCache(api),
	}
}

// OnUpdate registers a re-render hook invoked after the visible rows change.
func (s *Session) OnUpdate(fn func()) {
	s.onUpdate = fn
}

// Refresh fetches activities and signups concurrently, normalizes the wire
// records, joins them against whatever the cache already holds, and then
// resolves the user ids the cache is missing, patching names in when the
// batch settles. Failed resolutions from earlier cycles are retried once per
// refresh. A fetch error leaves the previous view intact.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	var (
		wg       sync.WaitGroup
		acts     []domain.Activity
		raws     []domain.RawSignup
		actsErr  error
		signsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		acts, actsErr = s.api.Activities(ctx)
	}()
	go func() {
		defer wg.Done()
		raws, signsErr = s.api.Signups(ctx)
	}()
	wg.Wait()
	if actsErr != nil {
		return fmt.Errorf("load activities: %w", actsErr)
	}
	if signsErr != nil {
		return fmt.Errorf("load signups: %w", signsErr)
	}

	signups := NormalizeAll(raws)

	s.mu.Lock()
	if gen != s.gen {
		// superseded by a newer refresh
		s.mu.Unlock()
		return nil
	}
	s.activities = acts
	s.signups = signups
	s.rows = BuildRows(signups, acts, s.names)
	missing := s.names.Missing(UserIDs(signups))
	s.mu.Unlock()
	s.notify()

	s.names.RetryFailed(ctx)
	s.names.Resolve(ctx, missing)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	s.rows = BuildRows(s.signups, s.activities, s.names)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Rows returns a copy of the current display rows.
func (s *Session) Rows() []domain.RosterRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]domain.RosterRow, len(s.rows))
	copy(rows, s.rows)
	return rows
}

// Activities returns a copy of the last fetched activity catalog.
func (s *Session) Activities() []domain.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	acts := make([]domain.Activity, len(s.activities))
	copy(acts, s.activities)
	return acts
}

// Names exposes the session's identity cache.
func (s *Session) Names() *NameCache {
	return s.names
}

func (s *Session) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}
