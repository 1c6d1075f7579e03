package quotaledger_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ql "github.com/ineyio/quotaledger"
)

func TestNewTenant(t *testing.T) {
	tenant, err := ql.NewTenant("  Springfield  ", 0, date(2024, 1, 31))
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, "Springfield", tenant.Name)
	assert.True(t, tenant.Active)
	assert.Equal(t, ql.DefaultMonthlyLimit, tenant.BaseMonthlyLimit)
	assert.Equal(t, 31, tenant.ContractAnchorDay)
}

func TestTenant_Validate(t *testing.T) {
	_, err := ql.NewTenant("", 1000, date(2024, 1, 1))
	assert.ErrorIs(t, err, ql.ErrInvalidAmount)

	_, err = ql.NewTenant(strings.Repeat("x", 256), 1000, date(2024, 1, 1))
	assert.ErrorIs(t, err, ql.ErrInvalidAmount)

	_, err = ql.NewTenant("Springfield", -1, date(2024, 1, 1))
	assert.ErrorIs(t, err, ql.ErrInvalidAmount)

	_, err = ql.NewTenant("Springfield", ql.MaxMonthlyLimit+1, date(2024, 1, 1))
	assert.ErrorIs(t, err, ql.ErrInvalidAmount)
}

func TestTenant_Lifecycle(t *testing.T) {
	tenant, err := ql.NewTenant("Springfield", 1000, date(2024, 1, 1))
	require.NoError(t, err)

	tenant.Deactivate()
	assert.False(t, tenant.CanRenewPeriod())
	tenant.Activate()
	assert.True(t, tenant.CanRenewPeriod())

	assert.ErrorIs(t, tenant.UpdateMonthlyLimit(0), ql.ErrInvalidAmount)
	require.NoError(t, tenant.UpdateMonthlyLimit(ql.MaxMonthlyLimit))
	assert.Equal(t, ql.MaxMonthlyLimit, tenant.BaseMonthlyLimit)

	clone := tenant.Clone()
	clone.Name = "Shelbyville"
	assert.Equal(t, "Springfield", tenant.Name)
}

func newPeriod(t *testing.T, limit int64) *ql.UsagePeriod {
	t.Helper()
	tenant, err := ql.NewTenant("Springfield", limit, date(2024, 1, 1))
	require.NoError(t, err)
	w, err := ql.CalculateWindow(1, date(2024, 3, 10))
	require.NoError(t, err)
	p, err := ql.NewUsagePeriod(tenant, w, time.Now())
	require.NoError(t, err)
	return p
}

func TestUsagePeriod_Derived(t *testing.T) {
	p := newPeriod(t, 3000)
	assert.Equal(t, int64(3000), p.TotalLimit())
	assert.Equal(t, int64(3000), p.Remaining())
	assert.Equal(t, 0.0, p.UsagePercentage())

	require.NoError(t, p.Consume(1000, time.Now()))
	assert.Equal(t, int64(2000), p.Remaining())
	assert.Equal(t, 33.33, p.UsagePercentage())

	require.NoError(t, p.AddCredits(1000, time.Now()))
	assert.Equal(t, int64(4000), p.TotalLimit())
	assert.Equal(t, 25.0, p.UsagePercentage())

	assert.Equal(t, 21, p.DaysRemaining(date(2024, 3, 10)))
	assert.Equal(t, 0, p.DaysRemaining(date(2024, 4, 1)))
	assert.True(t, p.IsExpired(date(2024, 4, 1)))
	assert.False(t, p.IsExpired(date(2024, 3, 31)))
}

func TestUsagePeriod_ConsumeOverLimit(t *testing.T) {
	p := newPeriod(t, 100)
	require.NoError(t, p.Consume(60, time.Now()))

	err := p.Consume(41, time.Now())
	var exceeded *ql.QuotaExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int64(40), exceeded.Remaining)
	assert.Equal(t, int64(41), exceeded.Requested)
	assert.Equal(t, int64(100), exceeded.TotalLimit)
	assert.Equal(t, int64(60), p.TokensConsumed, "failed consume must not change state")

	require.NoError(t, p.Consume(40, time.Now()))
	assert.Equal(t, int64(0), p.Remaining())
}

// An amount near the int64 ceiling is rejected as over quota, never wrapped.
func TestUsagePeriod_ConsumeHugeAmount(t *testing.T) {
	p := newPeriod(t, 100)
	require.NoError(t, p.Consume(60, time.Now()))

	err := p.Consume(math.MaxInt64-10, time.Now())
	var exceeded *ql.QuotaExceededError
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, int64(40), exceeded.Remaining)
	assert.Equal(t, int64(60), p.TokensConsumed)
}

func TestUsagePeriod_InvalidMutations(t *testing.T) {
	p := newPeriod(t, 100)
	assert.ErrorIs(t, p.Consume(0, time.Now()), ql.ErrInvalidAmount)
	assert.ErrorIs(t, p.AddCredits(0, time.Now()), ql.ErrInvalidAmount)
	assert.ErrorIs(t, p.AddCredits(ql.MaxCreditPurchase+1, time.Now()), ql.ErrInvalidAmount)

	require.NoError(t, p.Consume(80, time.Now()))
	assert.ErrorIs(t, p.SetBaseLimit(50, time.Now()), ql.ErrInvalidAmount)
	require.NoError(t, p.SetBaseLimit(80, time.Now()))
	assert.Equal(t, int64(0), p.Remaining())
}

func TestUsagePeriod_Validate(t *testing.T) {
	p := newPeriod(t, 100)

	bad := p.Clone()
	bad.PeriodEnd = bad.PeriodStart
	assert.ErrorIs(t, bad.Validate(), ql.ErrInvalidPeriod)

	bad = p.Clone()
	bad.PeriodEnd = bad.PeriodStart.AddDate(0, 0, 46)
	assert.ErrorIs(t, bad.Validate(), ql.ErrInvalidPeriod)

	bad = p.Clone()
	bad.TokensConsumed = 101
	assert.ErrorIs(t, bad.Validate(), ql.ErrInvalidPeriod)

	bad = p.Clone()
	bad.ExtraCredits = -1
	assert.ErrorIs(t, bad.Validate(), ql.ErrInvalidPeriod)
}

func TestErrorClassification(t *testing.T) {
	lockErr := &ql.LockError{Key: "period-lock:t1", Attempts: 3}
	assert.True(t, ql.IsRetryable(lockErr))
	assert.False(t, ql.IsBusinessRule(lockErr))

	wrapped := &ql.LedgerError{Op: "consume", TenantID: "t1", Err: &ql.QuotaExceededError{TenantID: "t1"}}
	assert.True(t, ql.IsBusinessRule(wrapped))
	assert.False(t, ql.IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, ql.ErrQuotaExceeded)
}
