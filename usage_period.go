package quotaledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// MaxCreditPurchase is the sanity ceiling for a single extra-credit purchase.
const MaxCreditPurchase int64 = 500_000

// UsagePeriod tracks a tenant's token consumption for one billing window.
// Only TokensConsumed, ExtraCredits and BaseLimit change after creation.
type UsagePeriod struct {
	ID             string
	TenantID       string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	BaseLimit      int64
	ExtraCredits   int64
	TokensConsumed int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUsagePeriod opens a fresh period for tenant over w. Counters start at zero
// and the base limit is a snapshot of the tenant's current monthly limit.
func NewUsagePeriod(tenant *Tenant, w Window, now time.Time) (*UsagePeriod, error) {
	p := &UsagePeriod{
		ID:          uuid.New().String(),
		TenantID:    tenant.ID,
		PeriodStart: DateOf(w.Start),
		PeriodEnd:   DateOf(w.End),
		BaseLimit:   tenant.BaseMonthlyLimit,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the period invariants.
func (p *UsagePeriod) Validate() error {
	switch {
	case !p.PeriodStart.Before(p.PeriodEnd):
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidPeriod,
			p.PeriodStart.Format(time.DateOnly), p.PeriodEnd.Format(time.DateOnly))
	case daysBetween(p.PeriodStart, p.PeriodEnd) > MaxPeriodDays:
		return fmt.Errorf("%w: period exceeds %d days", ErrInvalidPeriod, MaxPeriodDays)
	case p.BaseLimit <= 0:
		return fmt.Errorf("%w: base limit must be positive", ErrInvalidPeriod)
	case p.ExtraCredits < 0:
		return fmt.Errorf("%w: extra credits cannot be negative", ErrInvalidPeriod)
	case p.TokensConsumed < 0:
		return fmt.Errorf("%w: tokens consumed cannot be negative", ErrInvalidPeriod)
	case p.TokensConsumed > p.TotalLimit():
		return fmt.Errorf("%w: tokens consumed %d exceed total limit %d", ErrInvalidPeriod,
			p.TokensConsumed, p.TotalLimit())
	}
	return nil
}

// TotalLimit is the base limit plus purchased credits.
func (p *UsagePeriod) TotalLimit() int64 {
	return p.BaseLimit + p.ExtraCredits
}

// Remaining returns the tokens still available, never negative.
func (p *UsagePeriod) Remaining() int64 {
	return max(0, p.TotalLimit()-p.TokensConsumed)
}

// UsagePercentage returns consumption as a percentage of the total limit, rounded to 2 places.
func (p *UsagePeriod) UsagePercentage() float64 {
	total := p.TotalLimit()
	if total == 0 {
		return 0
	}
	return math.Round(float64(p.TokensConsumed)/float64(total)*10000) / 100
}

// Window returns the period's billing window.
func (p *UsagePeriod) Window() Window {
	return Window{Start: p.PeriodStart, End: p.PeriodEnd}
}

// Contains reports whether day falls inside the period.
func (p *UsagePeriod) Contains(day time.Time) bool {
	return p.Window().Contains(day)
}

// IsExpired reports whether today is past the period's last day.
func (p *UsagePeriod) IsExpired(today time.Time) bool {
	return DateOf(today).After(p.PeriodEnd)
}

// DaysRemaining returns the number of days until the period's last day.
func (p *UsagePeriod) DaysRemaining(today time.Time) int {
	if p.IsExpired(today) {
		return 0
	}
	return daysBetween(today, p.PeriodEnd)
}

// Consume debits amount tokens.
func (p *UsagePeriod) Consume(amount int64, now time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("%w: consumption must be positive, got %d", ErrInvalidAmount, amount)
	}
	if amount > p.Remaining() {
		return &QuotaExceededError{
			TenantID:   p.TenantID,
			Remaining:  p.Remaining(),
			Requested:  amount,
			TotalLimit: p.TotalLimit(),
		}
	}
	p.TokensConsumed += amount
	p.UpdatedAt = now.UTC()
	return nil
}

// AddCredits adds purchased tokens to the period.
func (p *UsagePeriod) AddCredits(amount int64, now time.Time) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credits must be positive, got %d", ErrInvalidAmount, amount)
	}
	if amount > MaxCreditPurchase {
		return fmt.Errorf("%w: at most %d tokens per purchase, got %d", ErrInvalidAmount, MaxCreditPurchase, amount)
	}
	p.ExtraCredits += amount
	p.UpdatedAt = now.UTC()
	return nil
}

// SetBaseLimit overwrites the base limit. The new total may not fall below what
// has already been consumed.
func (p *UsagePeriod) SetBaseLimit(limit int64, now time.Time) error {
	if err := validateMonthlyLimit(limit); err != nil {
		return err
	}
	if limit+p.ExtraCredits < p.TokensConsumed {
		return fmt.Errorf("%w: limit %d leaves total %d below consumed %d", ErrInvalidAmount,
			limit, limit+p.ExtraCredits, p.TokensConsumed)
	}
	p.BaseLimit = limit
	p.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a copy that can be mutated without touching p.
func (p *UsagePeriod) Clone() *UsagePeriod {
	c := *p
	return &c
}
