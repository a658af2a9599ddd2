package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrSessionNotFound = errors.New("billing session not found")

type storeEntry struct {
	mu      sync.Mutex
	session *Session
	touched time.Time
}

// Store keeps open sessions in memory. Each session is handed to one caller
// at a time through With; sessions idle longer than the TTL are evicted.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*storeEntry
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewStore(ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*storeEntry),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = &storeEntry{session: s, touched: st.now()}
}

// With runs fn while holding the session exclusively.
func (st *Store) With(id uuid.UUID, fn func(s *Session) error) error {
	st.mu.Lock()
	e, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// Evicted or deleted while we waited for the lock.
	st.mu.Lock()
	current, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok || current != e {
		return ErrSessionNotFound
	}

	e.touched = st.now()
	return fn(e.session)
}

// Take runs fn like With and, when fn succeeds, removes the session before
// releasing it. Callers waiting on the same session then get
// ErrSessionNotFound.
func (st *Store) Take(id uuid.UUID, fn func(s *Session) error) error {
	return st.With(id, func(s *Session) error {
		if err := fn(s); err != nil {
			return err
		}
		st.mu.Lock()
		delete(st.sessions, id)
		st.mu.Unlock()
		return nil
	})
}

func (st *Store) Delete(id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep evicts idle sessions and returns how many were removed. Sessions in
// use by With are skipped.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	defer st.mu.Unlock()
	evicted := 0
	for id, e := range st.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.touched.Before(cutoff) {
			delete(st.sessions, id)
			evicted++
		}
		e.mu.Unlock()
	}
	if evicted > 0 {
		st.logger.Info().Int("evicted", evicted).Int("open", len(st.sessions)).Msg("billing sessions expired")
	}
	return evicted
}

// Run sweeps every interval until ctx is cancelled.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}
