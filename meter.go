package quotaledger

import "time"

// Meter observes ledger events for auditing and monitoring.
type Meter interface {
	// OnConsume is called after a consumption has been persisted.
	OnConsume(event ConsumeEvent)

	// OnCredit is called after extra credits have been persisted.
	OnCredit(event CreditEvent)

	// OnLimitChange is called after a tenant's monthly limit changed.
	OnLimitChange(event LimitChangeEvent)

	// OnPeriodCreated is called when a new billing period is opened.
	OnPeriodCreated(event PeriodEvent)

	// OnReject is called when a mutation fails.
	OnReject(event RejectEvent)

	// OnLock is called for lock acquisition and release outcomes.
	OnLock(event LockEvent)
}

// ConsumeEvent is the audit record of a successful consumption.
type ConsumeEvent struct {
	TenantID        string
	PeriodID        string
	Amount          int64
	Remaining       int64
	TotalLimit      int64
	UsagePercentage float64
	Metadata        map[string]string
}

// CreditEvent describes a credit top-up.
type CreditEvent struct {
	TenantID   string
	PeriodID   string
	Amount     int64
	TotalLimit int64
	Reason     string
}

// LimitChangeEvent describes a monthly limit update.
type LimitChangeEvent struct {
	TenantID      string
	OldLimit      int64
	NewLimit      int64
	ChangedBy     string
	PeriodUpdated bool
}

// PeriodEvent describes a newly opened period.
type PeriodEvent struct {
	TenantID  string
	PeriodID  string
	Start     time.Time
	End       time.Time
	BaseLimit int64
}

// RejectEvent describes a failed mutation.
type RejectEvent struct {
	TenantID string
	Op       string
	Err      error
}

// LockOutcome classifies a LockEvent.
type LockOutcome string

const (
	LockAcquired      LockOutcome = "acquired"
	LockContended     LockOutcome = "contended"
	LockStoreError    LockOutcome = "store_error"
	LockUnavailable   LockOutcome = "unavailable"
	LockReleaseFailed LockOutcome = "release_failed"
)

// LockEvent describes a lock acquisition attempt or release.
type LockEvent struct {
	Key      string
	Outcome  LockOutcome
	Attempt  int
	Duration time.Duration
	Err      error
}

// noopMeter is a meter that does nothing.
type noopMeter struct{}

func (noopMeter) OnConsume(ConsumeEvent)         {}
func (noopMeter) OnCredit(CreditEvent)           {}
func (noopMeter) OnLimitChange(LimitChangeEvent) {}
func (noopMeter) OnPeriodCreated(PeriodEvent)    {}
func (noopMeter) OnReject(RejectEvent)           {}
func (noopMeter) OnLock(LockEvent)               {}
