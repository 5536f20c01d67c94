package api

import (
	"sync"
	"time"

	"github.com/jmcleod/lockbox/internal/uuid"
	"github.com/jmcleod/lockbox/vault"
)

// recoveryTTL bounds the gap between presenting a recovery key and choosing
// a new master password.
const recoveryTTL = 10 * time.Minute

type pendingRecovery struct {
	recovery  *vault.Recovery
	expiresAt time.Time
}

// recoveryStore holds accepted recoveries between the two recovery steps,
// keyed by an opaque token handed to the client.
type recoveryStore struct {
	mu   sync.Mutex
	data map[string]pendingRecovery
	now  func() time.Time
}

func newRecoveryStore() *recoveryStore {
	return &recoveryStore{
		data: make(map[string]pendingRecovery),
		now:  time.Now,
	}
}

func (s *recoveryStore) put(rec *vault.Recovery) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Only one recovery can be in flight.
	clear(s.data)
	token := uuid.New()
	expiresAt := s.now().Add(recoveryTTL)
	s.data[token] = pendingRecovery{recovery: rec, expiresAt: expiresAt}
	return token, expiresAt
}

// get returns the recovery for token if it has not expired.
func (s *recoveryStore) get(token string) (*vault.Recovery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data[token]
	if !ok {
		return nil, false
	}
	if s.now().After(p.expiresAt) {
		delete(s.data, token)
		return nil, false
	}
	return p.recovery, true
}

func (s *recoveryStore) remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, token)
}

func (s *recoveryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for t, p := range s.data {
		if now.After(p.expiresAt) {
			delete(s.data, t)
		}
	}
}
