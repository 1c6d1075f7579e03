package quotaledger

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrInvalidAmount   = errors.New("quotaledger: invalid amount")
	ErrTenantInactive  = errors.New("quotaledger: tenant inactive")
	ErrQuotaExceeded   = errors.New("quotaledger: quota exceeded")
	ErrLockUnavailable = errors.New("quotaledger: lock unavailable")
	ErrNotFound        = errors.New("quotaledger: not found")
	ErrPersistence     = errors.New("quotaledger: persistence failure")
	ErrInvalidPeriod   = errors.New("quotaledger: invalid period")
	ErrPeriodExists    = errors.New("quotaledger: period already exists")
	ErrStoreUnhealthy  = errors.New("quotaledger: lock store unhealthy")
)

// QuotaExceededError reports a consumption that does not fit the remaining capacity.
type QuotaExceededError struct {
	TenantID   string
	Remaining  int64
	Requested  int64
	TotalLimit int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quotaledger: quota exceeded for tenant %s: remaining=%d requested=%d total=%d",
		e.TenantID, e.Remaining, e.Requested, e.TotalLimit)
}

func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// LockError is returned when a tenant lock could not be obtained.
type LockError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *LockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quotaledger: lock %s unavailable after %d attempts: %v", e.Key, e.Attempts, e.Err)
	}
	return fmt.Sprintf("quotaledger: lock %s unavailable after %d attempts", e.Key, e.Attempts)
}

func (e *LockError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLockUnavailable, e.Err}
	}
	return []error{ErrLockUnavailable}
}

// LedgerError wraps an error with ledger operation context.
type LedgerError struct {
	Op       string
	TenantID string
	Err      error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("quotaledger: op=%s tenant=%s: %v", e.Op, e.TenantID, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the caller may retry the operation later.
// Only lock contention qualifies; business rule failures never do.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockUnavailable)
}

// IsBusinessRule returns true for validation failures that must be reported to the caller as-is.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrTenantInactive) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrInvalidPeriod)
}

func persistenceError(op string, err error) error {
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPeriodExists) || IsBusinessRule(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
