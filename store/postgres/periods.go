package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ineyio/quotaledger"
)

// PeriodStore is a PostgreSQL PeriodRepository.
type PeriodStore struct {
	store *Store
}

var _ quotaledger.PeriodRepository = (*PeriodStore)(nil)

const periodColumns = `id, tenant_id, period_start, period_end, base_limit, extra_credits, tokens_consumed, created_at, updated_at`

// FindByID returns the period or ErrNotFound.
func (r *PeriodStore) FindByID(ctx context.Context, id string) (*quotaledger.UsagePeriod, error) {
	row := r.store.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, periodColumns, r.store.periodsTable()),
		id,
	)
	p, err := scanPeriod(row)
	if err != nil {
		return nil, wrapErr("find period", err)
	}
	return p, nil
}

// FindCurrent returns the tenant's period whose window contains day.
func (r *PeriodStore) FindCurrent(ctx context.Context, tenantID string, day time.Time) (*quotaledger.UsagePeriod, error) {
	row := r.store.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s
			WHERE tenant_id = $1 AND period_start <= $2 AND period_end >= $2
			ORDER BY period_start DESC
			LIMIT 1`, periodColumns, r.store.periodsTable()),
		tenantID, quotaledger.DateOf(day),
	)
	p, err := scanPeriod(row)
	if err != nil {
		return nil, wrapErr("find current period", err)
	}
	return p, nil
}

// Save upserts the period keyed by ID. Only the counters, base limit and
// updated_at change on conflict; the window is fixed at creation.
func (r *PeriodStore) Save(ctx context.Context, period *quotaledger.UsagePeriod) (*quotaledger.UsagePeriod, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	row := r.store.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				base_limit = EXCLUDED.base_limit,
				extra_credits = EXCLUDED.extra_credits,
				tokens_consumed = EXCLUDED.tokens_consumed,
				updated_at = EXCLUDED.updated_at
			RETURNING %s`, r.store.periodsTable(), periodColumns, periodColumns),
		period.ID, period.TenantID,
		quotaledger.DateOf(period.PeriodStart), quotaledger.DateOf(period.PeriodEnd),
		period.BaseLimit, period.ExtraCredits, period.TokensConsumed,
		period.CreatedAt, period.UpdatedAt,
	)
	saved, err := scanPeriod(row)
	if err != nil {
		return nil, wrapErr("save period", err)
	}
	return saved, nil
}

// FindByTenant returns the tenant's periods overlapping filter, newest first.
func (r *PeriodStore) FindByTenant(ctx context.Context, tenantID string, filter quotaledger.PeriodFilter) ([]*quotaledger.UsagePeriod, error) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if !filter.From.IsZero() {
		args = append(args, quotaledger.DateOf(filter.From))
		conds = append(conds, fmt.Sprintf("period_end >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, quotaledger.DateOf(filter.To))
		conds = append(conds, fmt.Sprintf("period_start <= $%d", len(args)))
	}

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY period_start DESC`,
		periodColumns, r.store.periodsTable(), strings.Join(conds, " AND "))
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, "find periods by tenant", q, args...)
}

// FindExpired returns periods that ended before day, most recently ended first.
func (r *PeriodStore) FindExpired(ctx context.Context, day time.Time, limit int) ([]*quotaledger.UsagePeriod, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE period_end < $1 ORDER BY period_end DESC`,
		periodColumns, r.store.periodsTable())
	args := []any{quotaledger.DateOf(day)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	return r.query(ctx, "find expired periods", q, args...)
}

func (r *PeriodStore) query(ctx context.Context, op, q string, args ...any) ([]*quotaledger.UsagePeriod, error) {
	rows, err := r.store.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	periods, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*quotaledger.UsagePeriod, error) {
		return scanPeriod(row)
	})
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return periods, nil
}

func scanPeriod(row pgx.Row) (*quotaledger.UsagePeriod, error) {
	var p quotaledger.UsagePeriod
	err := row.Scan(&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd,
		&p.BaseLimit, &p.ExtraCredits, &p.TokensConsumed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.PeriodStart = quotaledger.DateOf(p.PeriodStart)
	p.PeriodEnd = quotaledger.DateOf(p.PeriodEnd)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
