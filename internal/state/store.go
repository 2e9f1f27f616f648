package state

import (
	"context"
	"sync"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// Loader reads a session's state from its backing stores.
type Loader func(ctx context.Context, session domain.Session) (State, error)

// Store caches State per session key.
//
// States load lazily on Get. Dispatch only touches sessions already cached.
// A Dispatch or Forget that lands while the session is loading marks the load
// stale; Get then discards its snapshot and loads again, so a write persisted
// during the load is never hidden behind an older cached copy.
type Store struct {
	mu      sync.Mutex
	states  map[string]State
	loading map[string]*pendingLoad
	load    Loader
}

// pendingLoad tracks the Get calls loading one session.
type pendingLoad struct {
	loaders int
	writes  uint64
}

// NewStore creates a store that loads sessions with load.
func NewStore(load Loader) *Store {
	return &Store{
		states:  make(map[string]State),
		loading: make(map[string]*pendingLoad),
		load:    load,
	}
}

// Get returns the session's state, loading it on first use.
func (s *Store) Get(ctx context.Context, session domain.Session) (State, error) {
	key := session.Key()

	for {
		s.mu.Lock()
		if st, ok := s.states[key]; ok {
			s.mu.Unlock()
			return st, nil
		}
		p := s.loading[key]
		if p == nil {
			p = &pendingLoad{}
			s.loading[key] = p
		}
		p.loaders++
		seen := p.writes
		s.mu.Unlock()

		loaded, err := s.load(ctx, session)

		s.mu.Lock()
		p.loaders--
		if p.loaders == 0 && s.loading[key] == p {
			delete(s.loading, key)
		}
		if err != nil {
			s.mu.Unlock()
			return State{}, err
		}
		// Another request may have loaded and dispatched meanwhile; keep its copy.
		if st, ok := s.states[key]; ok {
			s.mu.Unlock()
			return st, nil
		}
		if p.writes != seen {
			s.mu.Unlock()
			if err := ctx.Err(); err != nil {
				return State{}, err
			}
			continue
		}
		s.states[key] = loaded
		s.mu.Unlock()
		return loaded, nil
	}
}

// Dispatch applies a to a cached session and returns the new state. ok is
// false when the session was not cached and nothing was applied.
func (s *Store) Dispatch(session domain.Session, a Action) (st State, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := session.Key()
	cur, ok := s.states[key]
	if !ok {
		s.markStale(key)
		return State{}, false, nil
	}
	next, err := Reduce(cur, a)
	if err != nil {
		return cur, true, err
	}
	s.states[key] = next
	return next, true, nil
}

// markStale invalidates in-flight loads of key. Callers hold mu.
func (s *Store) markStale(key string) {
	if p := s.loading[key]; p != nil {
		p.writes++
	}
}

// Forget drops a cached session.
func (s *Store) Forget(session domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, session.Key())
	s.markStale(session.Key())
}

// Len returns the number of cached sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
