package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ineyio/quotaledger"
)

// TenantStore is a PostgreSQL TenantRepository.
type TenantStore struct {
	store *Store
}

var _ quotaledger.TenantRepository = (*TenantStore)(nil)

const tenantColumns = `id, name, active, base_monthly_limit, contract_anchor_day, created_at, updated_at`

// FindByID returns the tenant or ErrNotFound.
func (r *TenantStore) FindByID(ctx context.Context, id string) (*quotaledger.Tenant, error) {
	row := r.store.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, tenantColumns, r.store.tenantsTable()),
		id,
	)
	t, err := scanTenant(row)
	if err != nil {
		return nil, wrapErr("find tenant", err)
	}
	return t, nil
}

// Save upserts the tenant keyed by ID.
func (r *TenantStore) Save(ctx context.Context, tenant *quotaledger.Tenant) (*quotaledger.Tenant, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	row := r.store.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				active = EXCLUDED.active,
				base_monthly_limit = EXCLUDED.base_monthly_limit,
				contract_anchor_day = EXCLUDED.contract_anchor_day,
				updated_at = EXCLUDED.updated_at
			RETURNING %s`, r.store.tenantsTable(), tenantColumns, tenantColumns),
		tenant.ID, tenant.Name, tenant.Active, tenant.BaseMonthlyLimit,
		tenant.ContractAnchorDay, tenant.CreatedAt, tenant.UpdatedAt,
	)
	saved, err := scanTenant(row)
	if err != nil {
		return nil, wrapErr("save tenant", err)
	}
	return saved, nil
}

func scanTenant(row pgx.Row) (*quotaledger.Tenant, error) {
	var t quotaledger.Tenant
	var anchor int16
	if err := row.Scan(&t.ID, &t.Name, &t.Active, &t.BaseMonthlyLimit, &anchor, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ContractAnchorDay = int(anchor)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
