package quotaledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxMonthlyLimit is the largest base monthly limit a tenant may hold.
	MaxMonthlyLimit int64 = 1_000_000

	// DefaultMonthlyLimit is applied by NewTenant when no limit is given.
	DefaultMonthlyLimit int64 = 20_000

	maxTenantNameLen = 255
)

// Tenant is a billed organization (a municipality) with its own token quota.
type Tenant struct {
	ID                string
	Name              string
	Active            bool
	BaseMonthlyLimit  int64
	ContractAnchorDay int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTenant creates an active tenant anchored on the day of contractDate.
// A zero limit falls back to DefaultMonthlyLimit.
func NewTenant(name string, monthlyLimit int64, contractDate time.Time) (*Tenant, error) {
	if monthlyLimit == 0 {
		monthlyLimit = DefaultMonthlyLimit
	}
	now := time.Now().UTC()
	t := &Tenant{
		ID:                uuid.New().String(),
		Name:              strings.TrimSpace(name),
		Active:            true,
		BaseMonthlyLimit:  monthlyLimit,
		ContractAnchorDay: contractDate.Day(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the tenant's business rules.
func (t *Tenant) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return fmt.Errorf("%w: tenant name is required", ErrInvalidAmount)
	}
	if len(name) > maxTenantNameLen {
		return fmt.Errorf("%w: tenant name exceeds %d characters", ErrInvalidAmount, maxTenantNameLen)
	}
	if err := validateMonthlyLimit(t.BaseMonthlyLimit); err != nil {
		return err
	}
	if t.ContractAnchorDay < 1 || t.ContractAnchorDay > 31 {
		return fmt.Errorf("%w: contract anchor day %d outside 1..31", ErrInvalidAmount, t.ContractAnchorDay)
	}
	return nil
}

// CanRenewPeriod reports whether a new period may be opened. Suspended tenants never renew.
func (t *Tenant) CanRenewPeriod() bool {
	return t.Active
}

// UpdateMonthlyLimit replaces the base monthly limit.
func (t *Tenant) UpdateMonthlyLimit(limit int64) error {
	if err := validateMonthlyLimit(limit); err != nil {
		return err
	}
	t.BaseMonthlyLimit = limit
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Activate marks the tenant as paid up.
func (t *Tenant) Activate() {
	t.Active = true
	t.UpdatedAt = time.Now().UTC()
}

// Deactivate suspends the tenant.
func (t *Tenant) Deactivate() {
	t.Active = false
	t.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy that can be mutated without touching t.
func (t *Tenant) Clone() *Tenant {
	c := *t
	return &c
}

func validateMonthlyLimit(limit int64) error {
	if limit <= 0 {
		return fmt.Errorf("%w: monthly limit must be positive, got %d", ErrInvalidAmount, limit)
	}
	if limit > MaxMonthlyLimit {
		return fmt.Errorf("%w: monthly limit %d exceeds %d", ErrInvalidAmount, limit, MaxMonthlyLimit)
	}
	return nil
}
