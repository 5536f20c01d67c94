package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/lockbox/vault"
)

// sessionEntry is a live vault session bound to a cookie token.
type sessionEntry struct {
	session        *vault.Session
	lastAccessedAt time.Time
}

// sessionStore maps cookie tokens to vault sessions. The vault is
// single-user, so storing a new session locks and evicts every other one.
// Sessions idle for longer than idleTimeout are locked on next access or on
// the next sweep.
type sessionStore struct {
	mu          sync.Mutex
	data        map[string]*sessionEntry
	idleTimeout time.Duration
	now         func() time.Time
}

func newSessionStore(idleTimeout time.Duration) *sessionStore {
	return &sessionStore{
		data:        make(map[string]*sessionEntry),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

func (s *sessionStore) put(token string, vs *vault.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, e := range s.data {
		e.session.Lock()
		delete(s.data, t)
	}
	s.data[token] = &sessionEntry{session: vs, lastAccessedAt: s.now()}
}

// get returns the session for token and refreshes its idle timer.
func (s *sessionStore) get(token string) (*vault.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[token]
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		e.session.Lock()
		delete(s.data, token)
		slog.Info("session auto-locked after idle timeout")
		return nil, false
	}
	e.lastAccessedAt = s.now()
	return e.session, true
}

func (s *sessionStore) remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[token]; ok {
		e.session.Lock()
		delete(s.data, token)
	}
}

// lockAll locks every session. Used on shutdown and vault reset.
func (s *sessionStore) lockAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, e := range s.data {
		e.session.Lock()
		delete(s.data, t)
	}
}

// sweep locks idle sessions and returns how many it locked.
func (s *sessionStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t, e := range s.data {
		if s.expired(e) {
			e.session.Lock()
			delete(s.data, t)
			n++
		}
	}
	return n
}

func (s *sessionStore) expired(e *sessionEntry) bool {
	return s.idleTimeout > 0 && s.now().Sub(e.lastAccessedAt) > s.idleTimeout
}
