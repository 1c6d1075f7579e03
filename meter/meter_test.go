package meter_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ineyio/quotaledger"
	"github.com/ineyio/quotaledger/meter"
)

func newObservedMeter(level zapcore.Level) (*meter.LogMeter, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return meter.NewLogMeter(zap.New(core)), logs
}

func TestLogMeter_ConsumeRecord(t *testing.T) {
	m, logs := newObservedMeter(zapcore.InfoLevel)

	m.OnConsume(quotaledger.ConsumeEvent{
		TenantID:        "t1",
		PeriodID:        "p1",
		Amount:          500,
		Remaining:       500,
		TotalLimit:      1000,
		UsagePercentage: 50,
		Metadata:        map[string]string{"model": "gpt"},
	})

	entries := logs.FilterMessage("token_consumption").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "t1", fields["tenant_id"])
	assert.Equal(t, int64(500), fields["tokens"])
	assert.Equal(t, int64(500), fields["remaining"])
	assert.Equal(t, 50.0, fields["usage_percentage"])
	assert.Contains(t, fields, "metadata")
}

func TestLogMeter_AuditMessages(t *testing.T) {
	m, logs := newObservedMeter(zapcore.InfoLevel)

	m.OnCredit(quotaledger.CreditEvent{TenantID: "t1", Amount: 200, Reason: "purchase"})
	m.OnLimitChange(quotaledger.LimitChangeEvent{TenantID: "t1", OldLimit: 1000, NewLimit: 2000, ChangedBy: "admin"})
	m.OnPeriodCreated(quotaledger.PeriodEvent{
		TenantID: "t1",
		Start:    time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, 1, logs.FilterMessage("extra_credits_added").Len())
	assert.Equal(t, 1, logs.FilterMessage("monthly_limit_updated").Len())

	created := logs.FilterMessage("new_period_created").All()
	require.Len(t, created, 1)
	assert.Equal(t, "2024-03-15", created[0].ContextMap()["period_start"])
	assert.Equal(t, "2024-04-14", created[0].ContextMap()["period_end"])
}

func TestLogMeter_RejectLevels(t *testing.T) {
	m, logs := newObservedMeter(zapcore.InfoLevel)

	m.OnReject(quotaledger.RejectEvent{TenantID: "t1", Op: "consume", Err: quotaledger.ErrQuotaExceeded})
	m.OnReject(quotaledger.RejectEvent{TenantID: "t1", Op: "consume", Err: quotaledger.ErrPersistence})

	rejected := logs.FilterMessage("ledger_rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zapcore.InfoLevel, rejected[0].Level)
	assert.Equal(t, "quota_exceeded", rejected[0].ContextMap()["reason"])

	failed := logs.FilterMessage("ledger_failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
}

func TestLogMeter_LockOutcomes(t *testing.T) {
	m, logs := newObservedMeter(zapcore.InfoLevel)

	// Acquisitions are debug-level and filtered out here.
	m.OnLock(quotaledger.LockEvent{Key: "period-lock:t1", Outcome: quotaledger.LockAcquired, Attempt: 1})
	m.OnLock(quotaledger.LockEvent{Key: "period-lock:t1", Outcome: quotaledger.LockUnavailable, Attempt: 3})

	entries := logs.FilterMessage("lock").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unavailable", entries[0].ContextMap()["outcome"])
}

func TestPrometheusMeter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := meter.NewPrometheusMeter(reg, "quotaledger")

	m.OnConsume(quotaledger.ConsumeEvent{TenantID: "t1", Amount: 300, UsagePercentage: 30})
	m.OnConsume(quotaledger.ConsumeEvent{TenantID: "t1", Amount: 200, UsagePercentage: 50})
	m.OnCredit(quotaledger.CreditEvent{TenantID: "t1", Amount: 1000})
	m.OnPeriodCreated(quotaledger.PeriodEvent{TenantID: "t2"})
	m.OnReject(quotaledger.RejectEvent{Op: "consume", Err: &quotaledger.QuotaExceededError{TenantID: "t1"}})
	m.OnLock(quotaledger.LockEvent{Outcome: quotaledger.LockContended})
	m.OnLock(quotaledger.LockEvent{Outcome: quotaledger.LockContended})

	assert.Equal(t, 500.0, testutil.ToFloat64(m.TokensConsumed.WithLabelValues("t1")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.UsagePercentage.WithLabelValues("t1")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.CreditsAdded.WithLabelValues("t1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PeriodsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("consume", "quota_exceeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LockEvents.WithLabelValues("contended")))

	count, err := testutil.GatherAndCount(reg, "quotaledger_tokens_consumed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&quotaledger.QuotaExceededError{}, "quota_exceeded"},
		{fmt.Errorf("wrap: %w", quotaledger.ErrTenantInactive), "tenant_inactive"},
		{quotaledger.ErrInvalidAmount, "invalid_amount"},
		{&quotaledger.LockError{Key: "k", Attempts: 3}, "lock_unavailable"},
		{quotaledger.ErrNotFound, "not_found"},
		{quotaledger.ErrPersistence, "persistence"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, meter.Reason(tt.err))
	}
}

func TestMulti(t *testing.T) {
	first, firstLogs := newObservedMeter(zapcore.InfoLevel)
	second, secondLogs := newObservedMeter(zapcore.InfoLevel)
	m := meter.Multi{first, &meter.NoopMeter{}, second}

	m.OnCredit(quotaledger.CreditEvent{TenantID: "t1", Amount: 10})

	assert.Equal(t, 1, firstLogs.Len())
	assert.Equal(t, 1, secondLogs.Len())
}
