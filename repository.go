package quotaledger

import (
	"context"
	"time"
)

// TenantRepository loads and stores tenants.
type TenantRepository interface {
	// FindByID returns ErrNotFound when the tenant does not exist.
	FindByID(ctx context.Context, id string) (*Tenant, error)

	// Save upserts the tenant keyed by ID.
	Save(ctx context.Context, tenant *Tenant) (*Tenant, error)
}

// PeriodRepository loads and stores usage periods.
type PeriodRepository interface {
	// FindByID returns ErrNotFound when the period does not exist.
	FindByID(ctx context.Context, id string) (*UsagePeriod, error)

	// FindCurrent returns the tenant's period whose window contains day,
	// or ErrNotFound.
	FindCurrent(ctx context.Context, tenantID string, day time.Time) (*UsagePeriod, error)

	// Save upserts the period keyed by ID. Inserting a second period with the
	// same (tenant, start) returns ErrPeriodExists.
	Save(ctx context.Context, period *UsagePeriod) (*UsagePeriod, error)

	// FindByTenant returns the tenant's periods overlapping the filter, newest first.
	FindByTenant(ctx context.Context, tenantID string, filter PeriodFilter) ([]*UsagePeriod, error)

	// FindExpired returns periods whose last day is before day, most recently ended first.
	// A limit of 0 means no limit.
	FindExpired(ctx context.Context, day time.Time, limit int) ([]*UsagePeriod, error)
}

// PeriodFilter narrows FindByTenant. Zero values disable a bound.
type PeriodFilter struct {
	// From keeps periods ending on or after From.
	From time.Time
	// To keeps periods starting on or before To.
	To    time.Time
	Limit int
}

// Matches reports whether p satisfies the date bounds of the filter.
func (f PeriodFilter) Matches(p *UsagePeriod) bool {
	if !f.From.IsZero() && p.PeriodEnd.Before(DateOf(f.From)) {
		return false
	}
	if !f.To.IsZero() && p.PeriodStart.After(DateOf(f.To)) {
		return false
	}
	return true
}
