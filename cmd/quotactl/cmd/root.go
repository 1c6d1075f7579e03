package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ineyio/quotaledger"
	lockredis "github.com/ineyio/quotaledger/lock/redis"
	"github.com/ineyio/quotaledger/meter"
	"github.com/ineyio/quotaledger/store/postgres"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
	pushGateway  string

	// Shared state set during PersistentPreRun
	backend  *Backend
	injected bool
)

// Backend is everything a subcommand needs to reach the ledger.
type Backend struct {
	Ledger  *quotaledger.Ledger
	Tenants quotaledger.TenantRepository

	// Migrate creates the storage schema. Nil when the backend has none.
	Migrate func(ctx context.Context) error

	// Registry collects ledger metrics for --push-gateway. May be nil.
	Registry *prometheus.Registry

	closers []func()
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// rootCmd is the base command for quotactl.
var rootCmd = &cobra.Command{
	Use:   "quotactl",
	Short: "Operate tenant token quotas",
	Long: `quotactl inspects and adjusts per-tenant token quotas: current period
status, consumption, extra credits, monthly limits and period history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if injected {
			return nil
		}
		cfg, err := quotaledger.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		backend, err = Open(cmd.Context(), cfg)
		return err
	},
}

// Open connects to Postgres and Redis as configured and assembles a Ledger.
func Open(ctx context.Context, cfg quotaledger.Config) (*Backend, error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	b := &Backend{closers: []func(){func() { _ = logger.Sync() }}}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.closers = append(b.closers, pool.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	b.closers = append(b.closers, func() { _ = rdb.Close() })

	store := postgres.New(pool, postgres.WithTablePrefix(cfg.Postgres.TablePrefix))
	b.Tenants = store.Tenants()
	b.Migrate = store.EnsureSchema

	meters := meter.Multi{meter.NewLogMeter(logger.Named("audit"))}
	if cfg.Metrics.Enabled {
		b.Registry = prometheus.NewRegistry()
		meters = append(meters, meter.NewPrometheusMeter(b.Registry, cfg.Metrics.Namespace))
	}

	mutexOpts := append(cfg.MutexOptions(),
		quotaledger.WithMutexLogger(logger.Named("lock")),
		quotaledger.WithMutexMeter(meters),
		quotaledger.WithStoreHealth(quotaledger.NewStoreHealth()),
	)
	mutex := quotaledger.NewMutex(lockredis.New(rdb, lockredis.WithKeyPrefix(cfg.Redis.KeyPrefix)), mutexOpts...)

	b.Ledger, err = quotaledger.NewLedger(store.Tenants(), store.Periods(), mutex,
		quotaledger.WithMeter(meters),
		quotaledger.WithLogger(logger.Named("ledger")),
	)
	if err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// NewLogger builds a zap logger from the log section of the config.
func NewLogger(cfg quotaledger.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// Execute runs the root command.
func Execute() {
	if err := Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Run executes the root command and then pushes metrics and closes the
// backend. Both happen whether or not the command failed.
func Run() error {
	err := rootCmd.Execute()
	return errors.Join(err, finish())
}

func finish() error {
	if backend == nil {
		return nil
	}
	if !injected {
		defer func() {
			backend.Close()
			backend = nil
		}()
	}

	if pushGateway == "" || backend.Registry == nil {
		return nil
	}
	if err := push.New(pushGateway, "quotactl").Gatherer(backend.Registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// SetBackend allows tests to inject a backend; config loading is skipped.
func SetBackend(b *Backend) {
	backend = b
	injected = b != nil
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "quotaledger.yaml", "config file")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json, yaml")
	rootCmd.PersistentFlags().StringVar(&pushGateway, "push-gateway", "", "Prometheus Pushgateway URL to push metrics to on exit")
}
