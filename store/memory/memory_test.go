package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/quotaledger"
	"github.com/ineyio/quotaledger/store/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTenant(t *testing.T) *quotaledger.Tenant {
	t.Helper()
	tenant, err := quotaledger.NewTenant("Springfield", 1000, date(2024, 1, 1))
	require.NoError(t, err)
	return tenant
}

func newPeriod(t *testing.T, tenant *quotaledger.Tenant, ref time.Time) *quotaledger.UsagePeriod {
	t.Helper()
	w, err := quotaledger.CalculateWindow(tenant.ContractAnchorDay, ref)
	require.NoError(t, err)
	p, err := quotaledger.NewUsagePeriod(tenant, w, time.Now())
	require.NoError(t, err)
	return p
}

func TestTenantStore(t *testing.T) {
	s := memory.NewTenantStore()
	ctx := context.Background()
	tenant := newTenant(t)

	_, err := s.FindByID(ctx, tenant.ID)
	assert.ErrorIs(t, err, quotaledger.ErrNotFound)

	_, err = s.Save(ctx, tenant)
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the store.
	tenant.Name = "changed"
	got, err := s.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Springfield", got.Name)

	invalid := got.Clone()
	invalid.BaseMonthlyLimit = 0
	_, err = s.Save(ctx, invalid)
	assert.ErrorIs(t, err, quotaledger.ErrInvalidAmount)
}

func TestPeriodStore_FindCurrent(t *testing.T) {
	s := memory.NewPeriodStore()
	ctx := context.Background()
	tenant := newTenant(t)

	march := newPeriod(t, tenant, date(2024, 3, 10))
	april := newPeriod(t, tenant, date(2024, 4, 10))
	_, err := s.Save(ctx, march)
	require.NoError(t, err)
	_, err = s.Save(ctx, april)
	require.NoError(t, err)

	got, err := s.FindCurrent(ctx, tenant.ID, date(2024, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, march.ID, got.ID)

	got, err = s.FindCurrent(ctx, tenant.ID, date(2024, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, april.ID, got.ID)

	_, err = s.FindCurrent(ctx, tenant.ID, date(2024, 5, 1))
	assert.ErrorIs(t, err, quotaledger.ErrNotFound)
	_, err = s.FindCurrent(ctx, "other", date(2024, 3, 10))
	assert.ErrorIs(t, err, quotaledger.ErrNotFound)
}

func TestPeriodStore_SaveUpsert(t *testing.T) {
	s := memory.NewPeriodStore()
	ctx := context.Background()
	tenant := newTenant(t)
	p := newPeriod(t, tenant, date(2024, 3, 10))

	_, err := s.Save(ctx, p)
	require.NoError(t, err)

	updated := p.Clone()
	require.NoError(t, updated.Consume(300, time.Now()))
	updated.PeriodEnd = updated.PeriodEnd.AddDate(0, 0, 3)
	_, err = s.Save(ctx, updated)
	require.NoError(t, err)

	got, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.TokensConsumed)
	assert.Equal(t, p.PeriodEnd, got.PeriodEnd, "window is fixed at creation")
}

func TestPeriodStore_DuplicateStart(t *testing.T) {
	s := memory.NewPeriodStore()
	ctx := context.Background()
	tenant := newTenant(t)

	_, err := s.Save(ctx, newPeriod(t, tenant, date(2024, 3, 10)))
	require.NoError(t, err)
	_, err = s.Save(ctx, newPeriod(t, tenant, date(2024, 3, 20)))
	assert.ErrorIs(t, err, quotaledger.ErrPeriodExists)
}

func TestPeriodStore_Validates(t *testing.T) {
	s := memory.NewPeriodStore()
	p := newPeriod(t, newTenant(t), date(2024, 3, 10))
	p.TokensConsumed = p.TotalLimit() + 1

	_, err := s.Save(context.Background(), p)
	assert.ErrorIs(t, err, quotaledger.ErrInvalidPeriod)
}

func TestPeriodStore_FindByTenantAndExpired(t *testing.T) {
	s := memory.NewPeriodStore()
	ctx := context.Background()
	tenant := newTenant(t)
	other := newTenant(t)

	for m := time.January; m <= time.April; m++ {
		_, err := s.Save(ctx, newPeriod(t, tenant, date(2024, m, 5)))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, newPeriod(t, other, date(2024, 1, 5)))
	require.NoError(t, err)

	all, err := s.FindByTenant(ctx, tenant.ID, quotaledger.PeriodFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, date(2024, 4, 1), all[0].PeriodStart)

	limited, err := s.FindByTenant(ctx, tenant.ID, quotaledger.PeriodFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, date(2024, 4, 1), limited[0].PeriodStart)

	ranged, err := s.FindByTenant(ctx, tenant.ID, quotaledger.PeriodFilter{From: date(2024, 2, 29), To: date(2024, 3, 1)})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	expired, err := s.FindExpired(ctx, date(2024, 3, 15), 0)
	require.NoError(t, err)
	require.Len(t, expired, 3)
	assert.Equal(t, date(2024, 2, 29), expired[0].PeriodEnd)
}

func TestLockStore(t *testing.T) {
	now := date(2024, 1, 1)
	s := memory.NewLockStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "k", "a", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Acquire(ctx, "k", "b", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner may release.
	require.NoError(t, s.Release(ctx, "k", "b"))
	assert.True(t, s.Held("k"))
	require.NoError(t, s.Release(ctx, "k", "a"))
	assert.False(t, s.Held("k"))

	ok, _ = s.Acquire(ctx, "k", "c", time.Second)
	require.True(t, ok)
	now = now.Add(time.Second)
	assert.False(t, s.Held("k"), "lock expires after its TTL")
	ok, _ = s.Acquire(ctx, "k", "d", time.Second)
	assert.True(t, ok)
}
