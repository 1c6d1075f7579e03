package quotaledger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Status states.
const (
	StateActive    = "active"
	StateSuspended = "suspended"
	StateError     = "error"
)

// Status is a dashboard snapshot of a tenant's quota.
type Status struct {
	TenantID        string  `json:"tenant_id" yaml:"tenant_id"`
	Active          bool    `json:"active" yaml:"active"`
	State           string  `json:"status" yaml:"status"`
	Message         string  `json:"message,omitempty" yaml:"message,omitempty"`
	PeriodID        string  `json:"period_id,omitempty" yaml:"period_id,omitempty"`
	BaseLimit       int64   `json:"base_limit" yaml:"base_limit"`
	ExtraCredits    int64   `json:"extra_credits" yaml:"extra_credits"`
	TotalLimit      int64   `json:"total_limit" yaml:"total_limit"`
	Consumed        int64   `json:"consumed" yaml:"consumed"`
	Remaining       int64   `json:"remaining" yaml:"remaining"`
	UsagePercentage float64 `json:"usage_percentage" yaml:"usage_percentage"`
	PeriodStart     string  `json:"period_start,omitempty" yaml:"period_start,omitempty"`
	PeriodEnd       string  `json:"period_end,omitempty" yaml:"period_end,omitempty"`
	DaysRemaining   int     `json:"days_remaining" yaml:"days_remaining"`
	NextDueDate     string  `json:"next_due_date,omitempty" yaml:"next_due_date,omitempty"`
	Error           string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Status returns the tenant's quota snapshot. It never fails: problems are
// reported in the Error field with State set to StateError. A suspended
// tenant always reports zero capacity.
func (l *Ledger) Status(ctx context.Context, tenantID string) Status {
	tenant, err := l.loadTenant(ctx, tenantID)
	if err != nil {
		return l.statusError(tenantID, err)
	}

	if !tenant.Active {
		return Status{
			TenantID: tenantID,
			Active:   false,
			State:    StateSuspended,
			Message:  "tenant suspended for overdue payment",
		}
	}

	period, err := l.currentFor(ctx, tenant)
	if err != nil {
		return l.statusError(tenantID, err)
	}

	today := l.today()
	st := Status{
		TenantID:        tenantID,
		Active:          true,
		State:           StateActive,
		PeriodID:        period.ID,
		BaseLimit:       period.BaseLimit,
		ExtraCredits:    period.ExtraCredits,
		TotalLimit:      period.TotalLimit(),
		Consumed:        period.TokensConsumed,
		Remaining:       period.Remaining(),
		UsagePercentage: period.UsagePercentage(),
		PeriodStart:     period.PeriodStart.Format(time.DateOnly),
		PeriodEnd:       period.PeriodEnd.Format(time.DateOnly),
		DaysRemaining:   period.DaysRemaining(today),
	}
	if due, err := NextDueDate(tenant.ContractAnchorDay, today); err == nil {
		st.NextDueDate = due.Format(time.DateOnly)
	}
	return st
}

func (l *Ledger) statusError(tenantID string, err error) Status {
	st := Status{TenantID: tenantID, State: StateError}
	if errors.Is(err, ErrNotFound) {
		st.Error = "tenant not found"
		return st
	}
	l.logger.Warn("status degraded", zap.String("tenant_id", tenantID), zap.Error(err))
	st.Error = "internal error"
	return st
}
