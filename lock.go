package quotaledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultLockTTL        = 10 * time.Second
	DefaultLockRetries    = 3
	DefaultLockRetryDelay = 100 * time.Millisecond

	lockKeyPrefix  = "period-lock:"
	releaseTimeout = 2 * time.Second
)

// LockStore is the shared key-value store backing Mutex.
type LockStore interface {
	// Acquire sets key to token only if key is absent, expiring it after ttl.
	// Returns whether the caller now holds the lock.
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Release deletes key if it still holds token.
	Release(ctx context.Context, key, token string) error
}

// LockKey returns the lock key guarding a tenant's periods.
func LockKey(tenantID string) string {
	return lockKeyPrefix + tenantID
}

// Mutex provides cross-process mutual exclusion over a LockStore.
// Correctness holds as long as the store's set-if-absent is atomic and the
// critical section finishes within the TTL.
type Mutex struct {
	store      LockStore
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
	logger     *zap.Logger
	meter      Meter
	health     *StoreHealth
	sleep      func(ctx context.Context, d time.Duration) error
}

// MutexOption configures a Mutex.
type MutexOption func(*Mutex)

// WithTTL sets the lock expiry (default 10s).
func WithTTL(ttl time.Duration) MutexOption {
	return func(m *Mutex) { m.ttl = ttl }
}

// WithRetries sets the number of acquisition attempts (default 3).
func WithRetries(n int) MutexOption {
	return func(m *Mutex) { m.retries = n }
}

// WithRetryDelay sets the base backoff; attempt n waits delay*n (default 100ms).
func WithRetryDelay(d time.Duration) MutexOption {
	return func(m *Mutex) { m.retryDelay = d }
}

// WithMutexLogger sets the logger used for store failures.
func WithMutexLogger(l *zap.Logger) MutexOption {
	return func(m *Mutex) { m.logger = l }
}

// WithMutexMeter sets the meter receiving lock events.
func WithMutexMeter(meter Meter) MutexOption {
	return func(m *Mutex) { m.meter = meter }
}

// WithStoreHealth puts a circuit breaker in front of the store.
func WithStoreHealth(h *StoreHealth) MutexOption {
	return func(m *Mutex) { m.health = h }
}

// NewMutex creates a Mutex over store.
func NewMutex(store LockStore, opts ...MutexOption) *Mutex {
	m := &Mutex{
		store:      store,
		ttl:        DefaultLockTTL,
		retries:    DefaultLockRetries,
		retryDelay: DefaultLockRetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.retries < 1 {
		m.retries = 1
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.meter == nil {
		m.meter = noopMeter{}
	}
	return m
}

// Acquire makes a single attempt to take key. Store errors count as not acquired.
func (m *Mutex) Acquire(ctx context.Context, key string) (string, bool) {
	if !m.health.Allow() {
		m.meter.OnLock(LockEvent{Key: key, Outcome: LockStoreError, Err: ErrStoreUnhealthy})
		return "", false
	}

	token := uuid.New().String()
	ok, err := m.store.Acquire(ctx, key, token, m.ttl)
	if err != nil {
		m.health.RecordFailure()
		m.logger.Error("lock acquire failed", zap.String("key", key), zap.Error(err))
		m.meter.OnLock(LockEvent{Key: key, Outcome: LockStoreError, Err: err})
		return "", false
	}
	m.health.RecordSuccess()
	if !ok {
		return "", false
	}
	return token, true
}

// Release gives up key. Failures are logged and otherwise ignored; the TTL
// removes a lock that could not be released.
func (m *Mutex) Release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := m.store.Release(ctx, key, token); err != nil {
		m.logger.Warn("lock release failed", zap.String("key", key), zap.Error(err))
		m.meter.OnLock(LockEvent{Key: key, Outcome: LockReleaseFailed, Err: err})
	}
}

// Do runs fn while holding key. It retries acquisition with linear backoff and
// returns a *LockError wrapping ErrLockUnavailable when the budget is spent.
// The lock is released on every exit path of fn, panics included.
func (m *Mutex) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	start := time.Now()

	var (
		token    string
		acquired bool
	)
	for attempt := 1; attempt <= m.retries; attempt++ {
		token, acquired = m.Acquire(ctx, key)
		if acquired {
			m.meter.OnLock(LockEvent{Key: key, Outcome: LockAcquired, Attempt: attempt, Duration: time.Since(start)})
			break
		}
		m.meter.OnLock(LockEvent{Key: key, Outcome: LockContended, Attempt: attempt})

		if attempt == m.retries {
			break
		}
		if err := m.sleep(ctx, m.retryDelay*time.Duration(attempt)); err != nil {
			m.meter.OnLock(LockEvent{Key: key, Outcome: LockUnavailable, Attempt: attempt, Err: err})
			return &LockError{Key: key, Attempts: attempt, Err: err}
		}
	}

	if !acquired {
		m.meter.OnLock(LockEvent{Key: key, Outcome: LockUnavailable, Attempt: m.retries, Duration: time.Since(start)})
		return &LockError{Key: key, Attempts: m.retries}
	}

	defer m.Release(ctx, key, token)
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
