package quotaledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ql "github.com/ineyio/quotaledger"
	"github.com/ineyio/quotaledger/store/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// recordingMeter captures every event for assertions.
type recordingMeter struct {
	mu       sync.Mutex
	consumes []ql.ConsumeEvent
	credits  []ql.CreditEvent
	limits   []ql.LimitChangeEvent
	created  []ql.PeriodEvent
	rejects  []ql.RejectEvent
	locks    []ql.LockEvent
}

func (m *recordingMeter) OnConsume(e ql.ConsumeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumes = append(m.consumes, e)
}

func (m *recordingMeter) OnCredit(e ql.CreditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits = append(m.credits, e)
}

func (m *recordingMeter) OnLimitChange(e ql.LimitChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits = append(m.limits, e)
}

func (m *recordingMeter) OnPeriodCreated(e ql.PeriodEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, e)
}

func (m *recordingMeter) OnReject(e ql.RejectEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects = append(m.rejects, e)
}

func (m *recordingMeter) OnLock(e ql.LockEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, e)
}

func (m *recordingMeter) lockOutcomes() []ql.LockOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ql.LockOutcome, 0, len(m.locks))
	for _, e := range m.locks {
		out = append(out, e.Outcome)
	}
	return out
}

type testEnv struct {
	ledger  *ql.Ledger
	tenants *memory.TenantStore
	periods *memory.PeriodStore
	locks   *memory.LockStore
	clock   *fakeClock
	meter   *recordingMeter
}

// newTestEnv builds a ledger over in-memory stores with a fixed clock. The lock
// retry budget is generous so that contention in concurrency tests never
// surfaces as ErrLockUnavailable.
func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	env := &testEnv{
		tenants: memory.NewTenantStore(),
		periods: memory.NewPeriodStore(),
		locks:   memory.NewLockStore(),
		clock:   newFakeClock(now),
		meter:   &recordingMeter{},
	}
	mutex := ql.NewMutex(env.locks,
		ql.WithRetries(200),
		ql.WithRetryDelay(50*time.Microsecond),
	)
	l, err := ql.NewLedger(env.tenants, env.periods, mutex,
		ql.WithClock(env.clock.Now),
		ql.WithMeter(env.meter),
	)
	require.NoError(t, err)
	env.ledger = l
	return env
}

func (env *testEnv) addTenant(t *testing.T, limit int64, contract time.Time) *ql.Tenant {
	t.Helper()
	tenant, err := ql.NewTenant("Springfield", limit, contract)
	require.NoError(t, err)
	saved, err := env.tenants.Save(context.Background(), tenant)
	require.NoError(t, err)
	return saved
}
