// Package postgres provides PostgreSQL-backed tenant and period repositories for quotaledger.
//
// Each write is a single statement, so a period creation, a counter update or
// a limit change is never observed half-applied. Database constraints repeat
// the period invariants and the one-period-per-start rule.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/quotaledger"
)

// Postgres SQLSTATE codes mapped to ledger errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// Store owns the pool and table naming shared by the repositories.
type Store struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

// Option configures Store.
type Option func(*Store)

// WithTablePrefix sets the table name prefix (default "quotaledger_").
func WithTablePrefix(prefix string) Option {
	return func(s *Store) { s.tablePrefix = prefix }
}

// New creates a new PostgreSQL-backed store.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:        pool,
		tablePrefix: "quotaledger_",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tenantsTable() string { return s.tablePrefix + "tenants" }
func (s *Store) periodsTable() string { return s.tablePrefix + "usage_periods" }

// Tenants returns the tenant repository.
func (s *Store) Tenants() *TenantStore {
	return &TenantStore{store: s}
}

// Periods returns the usage period repository.
func (s *Store) Periods() *PeriodStore {
	return &PeriodStore{store: s}
}

// EnsureSchema creates the required tables and indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT true,
			base_monthly_limit BIGINT NOT NULL
				CHECK (base_monthly_limit > 0 AND base_monthly_limit <= 1000000),
			contract_anchor_day SMALLINT NOT NULL
				CHECK (contract_anchor_day BETWEEN 1 AND 31),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS %[2]s (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES %[1]s (id),
			period_start DATE NOT NULL,
			period_end DATE NOT NULL,
			base_limit BIGINT NOT NULL CHECK (base_limit > 0),
			extra_credits BIGINT NOT NULL DEFAULT 0 CHECK (extra_credits >= 0),
			tokens_consumed BIGINT NOT NULL DEFAULT 0 CHECK (tokens_consumed >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (period_start < period_end),
			CHECK (period_end - period_start <= 45),
			CHECK (tokens_consumed <= base_limit + extra_credits),
			UNIQUE (tenant_id, period_start)
		);
		CREATE INDEX IF NOT EXISTS %[2]s_current_idx ON %[2]s (tenant_id, period_start, period_end);
		CREATE INDEX IF NOT EXISTS %[2]s_end_idx ON %[2]s (period_end);
	`, s.tenantsTable(), s.periodsTable())
	_, err := s.pool.Exec(ctx, q)
	if err != nil {
		return fmt.Errorf("quotaledger/postgres: ensure schema: %w", err)
	}
	return nil
}

// DropSchema removes the tables created by EnsureSchema.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s`, s.periodsTable(), s.tenantsTable()))
	if err != nil {
		return fmt.Errorf("quotaledger/postgres: drop schema: %w", err)
	}
	return nil
}

// wrapErr maps driver errors onto ledger errors.
func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return quotaledger.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("quotaledger/postgres: %s: %w", op, quotaledger.ErrPeriodExists)
		case codeForeignKeyViolation:
			return fmt.Errorf("quotaledger/postgres: %s: tenant: %w", op, quotaledger.ErrNotFound)
		case codeCheckViolation:
			return fmt.Errorf("quotaledger/postgres: %s: %w: constraint %s", op, quotaledger.ErrInvalidPeriod, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("quotaledger/postgres: %s: %w: %w", op, quotaledger.ErrPersistence, err)
}
