package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ineyio/quotaledger"
)

// LockStore is an in-memory LockStore with TTL expiry. It only excludes
// goroutines within one process.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

type heldLock struct {
	token     string
	expiresAt time.Time
}

var _ quotaledger.LockStore = (*LockStore)(nil)

// NewLockStore creates an empty lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]heldLock),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for expiry checks.
func (s *LockStore) WithClock(now func() time.Time) *LockStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Acquire sets key to token unless an unexpired lock holds it.
func (s *LockStore) Acquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if held, ok := s.locks[key]; ok && now.Before(held.expiresAt) {
		return false, nil
	}
	s.locks[key] = heldLock{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

// Release deletes key if token still owns it.
func (s *LockStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, ok := s.locks[key]; ok && held.token == token {
		delete(s.locks, key)
	}
	return nil
}

// Held reports whether key is currently locked.
func (s *LockStore) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.locks[key]
	return ok && s.now().Before(held.expiresAt)
}
