package meter

import (
	"go.uber.org/zap"

	"github.com/ineyio/quotaledger"
)

// LogMeter writes ledger events as structured zap audit records.
type LogMeter struct {
	Logger *zap.Logger
}

var _ quotaledger.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, zap.L() is used.
func NewLogMeter(logger *zap.Logger) *LogMeter {
	if logger == nil {
		logger = zap.L()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnConsume(e quotaledger.ConsumeEvent) {
	fields := []zap.Field{
		zap.String("tenant_id", e.TenantID),
		zap.String("period_id", e.PeriodID),
		zap.Int64("tokens", e.Amount),
		zap.Int64("remaining", e.Remaining),
		zap.Int64("total_limit", e.TotalLimit),
		zap.Float64("usage_percentage", e.UsagePercentage),
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", e.Metadata))
	}
	m.Logger.Info("token_consumption", fields...)
}

func (m *LogMeter) OnCredit(e quotaledger.CreditEvent) {
	m.Logger.Info("extra_credits_added",
		zap.String("tenant_id", e.TenantID),
		zap.String("period_id", e.PeriodID),
		zap.Int64("credits", e.Amount),
		zap.Int64("total_limit", e.TotalLimit),
		zap.String("reason", e.Reason),
	)
}

func (m *LogMeter) OnLimitChange(e quotaledger.LimitChangeEvent) {
	m.Logger.Info("monthly_limit_updated",
		zap.String("tenant_id", e.TenantID),
		zap.Int64("old_limit", e.OldLimit),
		zap.Int64("new_limit", e.NewLimit),
		zap.String("changed_by", e.ChangedBy),
		zap.Bool("period_updated", e.PeriodUpdated),
	)
}

func (m *LogMeter) OnPeriodCreated(e quotaledger.PeriodEvent) {
	m.Logger.Info("new_period_created",
		zap.String("tenant_id", e.TenantID),
		zap.String("period_id", e.PeriodID),
		zap.String("period_start", e.Start.Format("2006-01-02")),
		zap.String("period_end", e.End.Format("2006-01-02")),
		zap.Int64("base_limit", e.BaseLimit),
	)
}

func (m *LogMeter) OnReject(e quotaledger.RejectEvent) {
	fields := []zap.Field{
		zap.String("tenant_id", e.TenantID),
		zap.String("op", e.Op),
		zap.String("reason", Reason(e.Err)),
		zap.Error(e.Err),
	}
	if quotaledger.IsBusinessRule(e.Err) {
		m.Logger.Info("ledger_rejected", fields...)
		return
	}
	m.Logger.Warn("ledger_failed", fields...)
}

func (m *LogMeter) OnLock(e quotaledger.LockEvent) {
	fields := []zap.Field{
		zap.String("key", e.Key),
		zap.String("outcome", string(e.Outcome)),
		zap.Int("attempt", e.Attempt),
		zap.Duration("duration", e.Duration),
	}
	switch e.Outcome {
	case quotaledger.LockAcquired, quotaledger.LockContended:
		m.Logger.Debug("lock", fields...)
	default:
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		m.Logger.Warn("lock", fields...)
	}
}
