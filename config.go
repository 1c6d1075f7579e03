package quotaledger

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ledger configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Lock     LockConfig     `yaml:"lock"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PostgresConfig configures the period and tenant store.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
}

// RedisConfig configures the lock store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LockConfig tunes the tenant Mutex. TTL must exceed the slowest critical section.
type LockConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("quotaledger: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes, applying defaults and validation.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("quotaledger: parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Postgres.TablePrefix == "" {
		c.Postgres.TablePrefix = "quotaledger_"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "quotaledger:"
	}
	if c.Lock.TTL == 0 {
		c.Lock.TTL = DefaultLockTTL
	}
	if c.Lock.Retries == 0 {
		c.Lock.Retries = DefaultLockRetries
	}
	if c.Lock.RetryDelay == 0 {
		c.Lock.RetryDelay = DefaultLockRetryDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "quotaledger"
	}
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("quotaledger: config: postgres.dsn is required")
	}
	if c.Lock.TTL < time.Second {
		return fmt.Errorf("quotaledger: config: lock.ttl must be at least 1s, got %s", c.Lock.TTL)
	}
	if c.Lock.Retries < 1 {
		return fmt.Errorf("quotaledger: config: lock.retries must be positive, got %d", c.Lock.Retries)
	}
	if c.Lock.RetryDelay < 0 {
		return fmt.Errorf("quotaledger: config: lock.retry_delay cannot be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("quotaledger: config: invalid log.level %q", c.Log.Level)
	}
	return nil
}

// MutexOptions converts the lock section into Mutex options.
func (c Config) MutexOptions() []MutexOption {
	return []MutexOption{
		WithTTL(c.Lock.TTL),
		WithRetries(c.Lock.Retries),
		WithRetryDelay(c.Lock.RetryDelay),
	}
}
