// Package memory provides in-process tenant, period and lock stores.
//
// Values are copied on the way in and out so callers never share state with
// the store. Suitable for tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ineyio/quotaledger"
)

// TenantStore is an in-memory TenantRepository.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*quotaledger.Tenant
}

var _ quotaledger.TenantRepository = (*TenantStore)(nil)

// NewTenantStore creates an empty tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[string]*quotaledger.Tenant)}
}

// FindByID returns a copy of the tenant.
func (s *TenantStore) FindByID(_ context.Context, id string) (*quotaledger.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, quotaledger.ErrNotFound
	}
	return t.Clone(), nil
}

// Save upserts the tenant.
func (s *TenantStore) Save(_ context.Context, tenant *quotaledger.Tenant) (*quotaledger.Tenant, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[tenant.ID] = tenant.Clone()
	return tenant.Clone(), nil
}

// PeriodStore is an in-memory PeriodRepository.
type PeriodStore struct {
	mu      sync.RWMutex
	periods map[string]*quotaledger.UsagePeriod
	// starts indexes period IDs by tenant and start date.
	starts map[periodKey]string
}

type periodKey struct {
	tenantID string
	start    time.Time
}

var _ quotaledger.PeriodRepository = (*PeriodStore)(nil)

// NewPeriodStore creates an empty period store.
func NewPeriodStore() *PeriodStore {
	return &PeriodStore{
		periods: make(map[string]*quotaledger.UsagePeriod),
		starts:  make(map[periodKey]string),
	}
}

// FindByID returns a copy of the period.
func (s *PeriodStore) FindByID(_ context.Context, id string) (*quotaledger.UsagePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[id]
	if !ok {
		return nil, quotaledger.ErrNotFound
	}
	return p.Clone(), nil
}

// FindCurrent returns the tenant's period containing day.
func (s *PeriodStore) FindCurrent(_ context.Context, tenantID string, day time.Time) (*quotaledger.UsagePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *quotaledger.UsagePeriod
	for _, p := range s.periods {
		if p.TenantID != tenantID || !p.Contains(day) {
			continue
		}
		if found == nil || p.PeriodStart.After(found.PeriodStart) {
			found = p
		}
	}
	if found == nil {
		return nil, quotaledger.ErrNotFound
	}
	return found.Clone(), nil
}

// Save upserts the period. Start and end of an existing period never change.
func (s *PeriodStore) Save(_ context.Context, period *quotaledger.UsagePeriod) (*quotaledger.UsagePeriod, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey{tenantID: period.TenantID, start: quotaledger.DateOf(period.PeriodStart)}
	if existing, ok := s.periods[period.ID]; ok {
		stored := period.Clone()
		stored.TenantID = existing.TenantID
		stored.PeriodStart = existing.PeriodStart
		stored.PeriodEnd = existing.PeriodEnd
		stored.CreatedAt = existing.CreatedAt
		s.periods[period.ID] = stored
		return stored.Clone(), nil
	}

	if id, ok := s.starts[key]; ok && id != period.ID {
		return nil, quotaledger.ErrPeriodExists
	}
	s.starts[key] = period.ID
	s.periods[period.ID] = period.Clone()
	return period.Clone(), nil
}

// FindByTenant returns the tenant's periods overlapping filter, newest first.
func (s *PeriodStore) FindByTenant(_ context.Context, tenantID string, filter quotaledger.PeriodFilter) ([]*quotaledger.UsagePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*quotaledger.UsagePeriod
	for _, p := range s.periods {
		if p.TenantID == tenantID && filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FindExpired returns periods that ended before day, most recently ended first.
func (s *PeriodStore) FindExpired(_ context.Context, day time.Time, limit int) ([]*quotaledger.UsagePeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*quotaledger.UsagePeriod
	for _, p := range s.periods {
		if p.IsExpired(day) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodEnd.After(out[j].PeriodEnd)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
