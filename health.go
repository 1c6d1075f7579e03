package quotaledger

import (
	"sync"
	"time"
)

const (
	healthFailureThreshold = 3
	healthFailureWindow    = 5 * time.Minute
	healthUnhealthyPeriod  = 30 * time.Second
)

// HealthState is the circuit state of a lock store.
type HealthState int

const (
	HealthHealthy HealthState = iota
	HealthUnhealthy
	HealthHalfOpen
)

func (s HealthState) String() string {
	switch s {
	case HealthUnhealthy:
		return "unhealthy"
	case HealthHalfOpen:
		return "half_open"
	default:
		return "healthy"
	}
}

// StoreHealth is a circuit breaker in front of a LockStore. After repeated
// store errors the Mutex stops calling the store for a cool-down period and
// reports the lock as unavailable straight away; it never grants a lock
// without the store.
type StoreHealth struct {
	mu          sync.Mutex
	state       HealthState
	failures    []time.Time // sliding window of failure timestamps
	unhealthyAt time.Time
	probing     bool // a half-open probe is in flight
	now         func() time.Time
}

// NewStoreHealth creates a healthy breaker.
func NewStoreHealth() *StoreHealth {
	return &StoreHealth{now: time.Now}
}

// WithClock replaces the clock used for the failure window and cool-down.
func (h *StoreHealth) WithClock(now func() time.Time) *StoreHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = now
	return h
}

// State returns the current circuit state.
func (h *StoreHealth) State() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked()
}

// Allow reports whether the store may be called. A half-open circuit admits a
// single probe; other callers are refused until that probe is recorded.
func (h *StoreHealth) Allow() bool {
	if h == nil {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.stateLocked() {
	case HealthUnhealthy:
		return false
	case HealthHalfOpen:
		if h.probing {
			return false
		}
		h.probing = true
	}
	return true
}

// RecordSuccess closes the circuit.
func (h *StoreHealth) RecordSuccess() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state = HealthHealthy
	h.probing = false
	h.failures = h.failures[:0]
}

// RecordFailure counts a store error and opens the circuit once the threshold
// is reached within the window. A failed probe reopens it at once.
func (h *StoreHealth) RecordFailure() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	switch h.stateLocked() {
	case HealthUnhealthy:
		return
	case HealthHalfOpen:
		h.state = HealthUnhealthy
		h.unhealthyAt = now
		h.probing = false
		return
	}

	// Prune old failures outside the window.
	cutoff := now.Add(-healthFailureWindow)
	valid := h.failures[:0]
	for _, t := range h.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	h.failures = append(valid, now)

	if len(h.failures) >= healthFailureThreshold {
		h.state = HealthUnhealthy
		h.unhealthyAt = now
		h.failures = h.failures[:0]
	}
}

func (h *StoreHealth) stateLocked() HealthState {
	// Unhealthy period elapsed: let a probe through.
	if h.state == HealthUnhealthy && h.now().Sub(h.unhealthyAt) >= healthUnhealthyPeriod {
		h.state = HealthHalfOpen
		h.probing = false
	}
	return h.state
}
