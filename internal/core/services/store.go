package services

import (
	"context"
	"sync"
	"time"

	"github.com/ewilliams-labs/tunnetilasi/internal/core/domain"
	"github.com/ewilliams-labs/tunnetilasi/internal/logging"
	"github.com/ewilliams-labs/tunnetilasi/internal/metrics"
)

// SessionStore keeps sessions in memory. Stored sessions are snapshots: Get
// hands out copies and Put replaces the snapshot wholesale.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]storedSession
	ttl      time.Duration
	now      func() time.Time
}

type storedSession struct {
	session *domain.Session
	touched time.Time
}

// NewSessionStore returns a store that forgets sessions idle for longer than
// ttl. A ttl of zero keeps sessions until they are deleted.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]storedSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the session.
func (s *SessionStore) Get(id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry.session.Clone(), nil
}

// Put stores a snapshot of sess.
func (s *SessionStore) Put(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = storedSession{session: sess.Clone(), touched: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
}

// Replace swaps in a new snapshot of a session that is still stored. It
// reports false when the session was deleted or swept in the meantime.
func (s *SessionStore) Replace(sess *domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return false
	}
	s.sessions[sess.ID] = storedSession{session: sess.Clone(), touched: s.now()}
	return true
}

func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if entry.touched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logging.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}
