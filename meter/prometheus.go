package meter

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ineyio/quotaledger"
)

// PrometheusMeter exports ledger events as Prometheus metrics.
type PrometheusMeter struct {
	TokensConsumed  *prometheus.CounterVec
	CreditsAdded    *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	PeriodsCreated  prometheus.Counter
	LockEvents      *prometheus.CounterVec
	UsagePercentage *prometheus.GaugeVec
}

var _ quotaledger.Meter = (*PrometheusMeter)(nil)

// NewPrometheusMeter registers the ledger metrics on reg under namespace.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMeter(reg prometheus.Registerer, namespace string) *PrometheusMeter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMeter{
		TokensConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_consumed_total",
				Help:      "Total number of tokens debited from tenant periods",
			},
			[]string{"tenant_id"},
		),
		CreditsAdded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credits_added_total",
				Help:      "Total number of extra credits purchased",
			},
			[]string{"tenant_id"},
		),
		Rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_rejections_total",
				Help:      "Total number of failed ledger mutations",
			},
			[]string{"op", "reason"},
		),
		PeriodsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "periods_created_total",
				Help:      "Total number of billing periods opened",
			},
		),
		LockEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_events_total",
				Help:      "Tenant lock outcomes",
			},
			[]string{"outcome"},
		),
		UsagePercentage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "period_usage_percentage",
				Help:      "Usage percentage of the tenant's current period",
			},
			[]string{"tenant_id"},
		),
	}
}

func (m *PrometheusMeter) OnConsume(e quotaledger.ConsumeEvent) {
	m.TokensConsumed.WithLabelValues(e.TenantID).Add(float64(e.Amount))
	m.UsagePercentage.WithLabelValues(e.TenantID).Set(e.UsagePercentage)
}

func (m *PrometheusMeter) OnCredit(e quotaledger.CreditEvent) {
	m.CreditsAdded.WithLabelValues(e.TenantID).Add(float64(e.Amount))
}

func (m *PrometheusMeter) OnLimitChange(quotaledger.LimitChangeEvent) {}

func (m *PrometheusMeter) OnPeriodCreated(e quotaledger.PeriodEvent) {
	m.PeriodsCreated.Inc()
	m.UsagePercentage.WithLabelValues(e.TenantID).Set(0)
}

func (m *PrometheusMeter) OnReject(e quotaledger.RejectEvent) {
	m.Rejections.WithLabelValues(e.Op, Reason(e.Err)).Inc()
}

func (m *PrometheusMeter) OnLock(e quotaledger.LockEvent) {
	m.LockEvents.WithLabelValues(string(e.Outcome)).Inc()
}

// Reason maps a ledger error onto a short, bounded label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, quotaledger.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, quotaledger.ErrTenantInactive):
		return "tenant_inactive"
	case errors.Is(err, quotaledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, quotaledger.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, quotaledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, quotaledger.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, quotaledger.ErrPersistence):
		return "persistence"
	default:
		return "internal"
	}
}
