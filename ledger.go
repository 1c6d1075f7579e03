package quotaledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCreditReason = "extra credits purchase"
	defaultChangedBy    = "system"

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Ledger is the only writer of period counters. Every mutation runs under the
// tenant's Mutex so check-then-update sequences are serialized per tenant.
type Ledger struct {
	tenants TenantRepository
	periods PeriodRepository
	mutex   *Mutex
	meter   Meter
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMeter sets the meter receiving audit events.
func WithMeter(m Meter) Option {
	return func(l *Ledger) { l.meter = m }
}

// WithLogger sets the logger for operational warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the wall clock used to decide which period is current.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger.
func NewLedger(tenants TenantRepository, periods PeriodRepository, mutex *Mutex, opts ...Option) (*Ledger, error) {
	if tenants == nil || periods == nil {
		return nil, fmt.Errorf("quotaledger: tenant and period repositories are required")
	}
	if mutex == nil {
		return nil, fmt.Errorf("quotaledger: mutex is required")
	}

	l := &Ledger{
		tenants: tenants,
		periods: periods,
		mutex:   mutex,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.meter == nil {
		l.meter = noopMeter{}
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l, nil
}

// CurrentPeriod returns the tenant's current period, opening a new one when
// none exists or the last one expired. It does not take the tenant lock.
func (l *Ledger) CurrentPeriod(ctx context.Context, tenantID string) (*UsagePeriod, error) {
	tenant, err := l.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, &LedgerError{Op: "current_period", TenantID: tenantID, Err: err}
	}
	period, err := l.currentFor(ctx, tenant)
	if err != nil {
		return nil, &LedgerError{Op: "current_period", TenantID: tenantID, Err: err}
	}
	return period, nil
}

// Consume debits amount tokens from the tenant's current period.
// metadata is attached to the audit record only.
func (l *Ledger) Consume(ctx context.Context, tenantID string, amount int64, metadata map[string]string) (*UsagePeriod, error) {
	const op = "consume"
	if amount <= 0 {
		return nil, l.reject(op, tenantID, fmt.Errorf("%w: consumption must be positive, got %d", ErrInvalidAmount, amount))
	}

	var result *UsagePeriod
	err := l.mutex.Do(ctx, LockKey(tenantID), func(ctx context.Context) error {
		tenant, err := l.loadTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		period, err := l.currentFor(ctx, tenant)
		if err != nil {
			return err
		}

		updated := period.Clone()
		if err := updated.Consume(amount, l.now()); err != nil {
			return err
		}
		saved, err := l.periods.Save(ctx, updated)
		if err != nil {
			return persistenceError("save period", err)
		}
		result = saved
		return nil
	})
	if err != nil {
		return nil, l.reject(op, tenantID, err)
	}

	l.meter.OnConsume(ConsumeEvent{
		TenantID:        tenantID,
		PeriodID:        result.ID,
		Amount:          amount,
		Remaining:       result.Remaining(),
		TotalLimit:      result.TotalLimit(),
		UsagePercentage: result.UsagePercentage(),
		Metadata:        metadata,
	})
	return result, nil
}

// AddCredits adds purchased tokens to the tenant's current period.
func (l *Ledger) AddCredits(ctx context.Context, tenantID string, amount int64, reason string) (*UsagePeriod, error) {
	const op = "add_credits"
	if amount <= 0 || amount > MaxCreditPurchase {
		return nil, l.reject(op, tenantID, fmt.Errorf("%w: credits must be within 1..%d, got %d",
			ErrInvalidAmount, MaxCreditPurchase, amount))
	}
	if reason == "" {
		reason = defaultCreditReason
	}

	var result *UsagePeriod
	err := l.mutex.Do(ctx, LockKey(tenantID), func(ctx context.Context) error {
		tenant, err := l.loadTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		period, err := l.currentFor(ctx, tenant)
		if err != nil {
			return err
		}

		updated := period.Clone()
		if err := updated.AddCredits(amount, l.now()); err != nil {
			return err
		}
		saved, err := l.periods.Save(ctx, updated)
		if err != nil {
			return persistenceError("save period", err)
		}
		result = saved
		return nil
	})
	if err != nil {
		return nil, l.reject(op, tenantID, err)
	}

	l.meter.OnCredit(CreditEvent{
		TenantID:   tenantID,
		PeriodID:   result.ID,
		Amount:     amount,
		TotalLimit: result.TotalLimit(),
		Reason:     reason,
	})
	return result, nil
}

// UpdateMonthlyLimit changes the tenant's base monthly limit. The current
// period, if any, picks up the new limit; past periods keep theirs.
// The returned period is nil when the tenant has no current period.
func (l *Ledger) UpdateMonthlyLimit(ctx context.Context, tenantID string, newLimit int64, changedBy string) (*Tenant, *UsagePeriod, error) {
	const op = "update_monthly_limit"
	if err := validateMonthlyLimit(newLimit); err != nil {
		return nil, nil, l.reject(op, tenantID, err)
	}
	if changedBy == "" {
		changedBy = defaultChangedBy
	}

	var (
		oldLimit    int64
		savedTenant *Tenant
		savedPeriod *UsagePeriod
	)
	err := l.mutex.Do(ctx, LockKey(tenantID), func(ctx context.Context) error {
		tenant, err := l.loadTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		oldLimit = tenant.BaseMonthlyLimit

		updatedTenant := tenant.Clone()
		if err := updatedTenant.UpdateMonthlyLimit(newLimit); err != nil {
			return err
		}

		today := l.today()
		var updatedPeriod *UsagePeriod
		current, err := l.periods.FindCurrent(ctx, tenantID, today)
		switch {
		case err == nil && !current.IsExpired(today):
			updatedPeriod = current.Clone()
			if err := updatedPeriod.SetBaseLimit(newLimit, l.now()); err != nil {
				return err
			}
		case err != nil && !errors.Is(err, ErrNotFound):
			return persistenceError("find current period", err)
		}

		savedTenant, err = l.tenants.Save(ctx, updatedTenant)
		if err != nil {
			return persistenceError("save tenant", err)
		}
		if updatedPeriod == nil {
			return nil
		}

		savedPeriod, err = l.periods.Save(ctx, updatedPeriod)
		if err != nil {
			l.restoreTenant(ctx, tenant)
			return persistenceError("save period", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, l.reject(op, tenantID, err)
	}

	l.meter.OnLimitChange(LimitChangeEvent{
		TenantID:      tenantID,
		OldLimit:      oldLimit,
		NewLimit:      newLimit,
		ChangedBy:     changedBy,
		PeriodUpdated: savedPeriod != nil,
	})
	return savedTenant, savedPeriod, nil
}

// HasAvailable reports whether the tenant can currently consume needed tokens.
// Any failure, including a suspended tenant, reports false.
func (l *Ledger) HasAvailable(ctx context.Context, tenantID string, needed int64) bool {
	if needed < 1 {
		needed = 1
	}
	period, err := l.CurrentPeriod(ctx, tenantID)
	if err != nil {
		if !IsBusinessRule(err) {
			l.logger.Warn("availability check failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return false
	}
	return period.Remaining() >= needed
}

// History returns the tenant's periods overlapping the filter, newest first.
// A zero limit returns the 10 most recent periods.
func (l *Ledger) History(ctx context.Context, tenantID string, filter PeriodFilter) ([]*UsagePeriod, error) {
	const op = "history"
	switch {
	case filter.Limit == 0:
		filter.Limit = defaultHistoryLimit
	case filter.Limit < 0 || filter.Limit > maxHistoryLimit:
		return nil, &LedgerError{Op: op, TenantID: tenantID,
			Err: fmt.Errorf("%w: history limit must be within 1..%d", ErrInvalidAmount, maxHistoryLimit)}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, &LedgerError{Op: op, TenantID: tenantID,
			Err: fmt.Errorf("%w: history range ends before it starts", ErrInvalidAmount)}
	}

	if _, err := l.loadTenant(ctx, tenantID); err != nil {
		return nil, &LedgerError{Op: op, TenantID: tenantID, Err: err}
	}
	periods, err := l.periods.FindByTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, &LedgerError{Op: op, TenantID: tenantID, Err: persistenceError("find periods", err)}
	}
	return periods, nil
}

// Expired returns periods that ended before today, most recent first.
func (l *Ledger) Expired(ctx context.Context, limit int) ([]*UsagePeriod, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit cannot be negative", ErrInvalidAmount)
	}
	periods, err := l.periods.FindExpired(ctx, l.today(), limit)
	if err != nil {
		return nil, persistenceError("find expired periods", err)
	}
	return periods, nil
}

// currentFor resolves the current period of an already loaded tenant.
func (l *Ledger) currentFor(ctx context.Context, tenant *Tenant) (*UsagePeriod, error) {
	if !tenant.Active {
		return nil, fmt.Errorf("%w: tenant %s is suspended", ErrTenantInactive, tenant.ID)
	}

	today := l.today()
	current, err := l.periods.FindCurrent(ctx, tenant.ID, today)
	switch {
	case err == nil && !current.IsExpired(today):
		return current, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, persistenceError("find current period", err)
	}

	if !tenant.CanRenewPeriod() {
		return nil, fmt.Errorf("%w: tenant %s cannot renew its period", ErrTenantInactive, tenant.ID)
	}
	return l.openPeriod(ctx, tenant, today)
}

func (l *Ledger) openPeriod(ctx context.Context, tenant *Tenant, today time.Time) (*UsagePeriod, error) {
	w, err := CalculateWindow(tenant.ContractAnchorDay, today)
	if err != nil {
		return nil, err
	}
	period, err := NewUsagePeriod(tenant, w, l.now())
	if err != nil {
		return nil, err
	}

	saved, err := l.periods.Save(ctx, period)
	if errors.Is(err, ErrPeriodExists) {
		// A concurrent reader opened the same window first.
		existing, ferr := l.periods.FindCurrent(ctx, tenant.ID, today)
		if ferr != nil {
			return nil, persistenceError("reload current period", ferr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, persistenceError("save period", err)
	}

	l.meter.OnPeriodCreated(PeriodEvent{
		TenantID:  tenant.ID,
		PeriodID:  saved.ID,
		Start:     saved.PeriodStart,
		End:       saved.PeriodEnd,
		BaseLimit: saved.BaseLimit,
	})
	return saved, nil
}

func (l *Ledger) loadTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	tenant, err := l.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
		}
		return nil, persistenceError("find tenant", err)
	}
	return tenant, nil
}

// restoreTenant undoes a tenant write whose paired period write failed.
func (l *Ledger) restoreTenant(ctx context.Context, original *Tenant) {
	if _, err := l.tenants.Save(ctx, original); err != nil {
		l.logger.Error("tenant limit rollback failed",
			zap.String("tenant_id", original.ID),
			zap.Int64("limit", original.BaseMonthlyLimit),
			zap.Error(err),
		)
	}
}

func (l *Ledger) reject(op, tenantID string, err error) error {
	l.meter.OnReject(RejectEvent{TenantID: tenantID, Op: op, Err: err})
	return &LedgerError{Op: op, TenantID: tenantID, Err: err}
}

func (l *Ledger) today() time.Time {
	return DateOf(l.now())
}
