package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fastygo/agritrace/domain"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Outbox      OutboxConfig
	Audit       AuditConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
	Ledger      LedgerConfig
	Dashboard   DashboardConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnablePprof   bool
	EnableMetrics bool
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	SSLMode         string
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Password string
	DB       int
	Channel  string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

// OutboxConfig controls the local queue of committed events awaiting
// publication.
type OutboxConfig struct {
	Enabled        bool
	Path           string
	Bucket         string
	Schedule       string
	BatchSize      int
	MaxRetry       int
	RetentionHours int
}

// AuditConfig schedules the periodic stock reconciliation.
type AuditConfig struct {
	Enabled  bool
	Schedule string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// LedgerConfig selects the store of record and the optional invariants
// enforced on append.
type LedgerConfig struct {
	Store               string
	EnforceMonotonic    bool
	RejectNegativeStock bool
	StrictTransitions   bool
}

type DashboardConfig struct {
	ProducerEvents int
	OperatorEvents int
	CacheTTL       time.Duration
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "agritrace"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "8080"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnablePprof:   getBool("SERVER_ENABLE_PPROF", false),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "agritrace"),
			User:            getString("DB_USER", "agritrace"),
			Password:        os.Getenv("DB_PASSWORD"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			SSLMode:         getString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", true),
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			Channel:  getString("REDIS_LEDGER_CHANNEL", "ledger.events"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "agritrace"),
		},
		Outbox: OutboxConfig{
			Enabled:        getBool("OUTBOX_ENABLED", true),
			Path:           getString("OUTBOX_PATH", "./data/outbox.db"),
			Bucket:         getString("OUTBOX_BUCKET", "ledger_outbox"),
			Schedule:       getString("OUTBOX_SCHEDULE", "@every 5s"),
			BatchSize:      getInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetry:       getInt("OUTBOX_MAX_RETRY", 5),
			RetentionHours: getInt("OUTBOX_RETENTION_HOURS", 72),
		},
		Audit: AuditConfig{
			Enabled:  getBool("AUDIT_ENABLED", true),
			Schedule: getString("AUDIT_SCHEDULE", "@every 10m"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 5*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    getString("MIGRATIONS_PATH", "./assets/migrations"),
		},
		Ledger: LedgerConfig{
			Store:               strings.ToLower(getString("LEDGER_STORE", StorePostgres)),
			EnforceMonotonic:    getBool("LEDGER_ENFORCE_MONOTONIC", true),
			RejectNegativeStock: getBool("LEDGER_REJECT_NEGATIVE_STOCK", false),
			StrictTransitions:   getBool("LEDGER_STRICT_TRANSITIONS", false),
		},
		Dashboard: DashboardConfig{
			ProducerEvents: getInt("DASHBOARD_PRODUCER_EVENTS", 10),
			OperatorEvents: getInt("DASHBOARD_OPERATOR_EVENTS", 20),
			CacheTTL:       getDuration("DASHBOARD_CACHE_TTL", 30*time.Second),
		},
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = buildPostgresURL(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Ledger.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("config: unsupported LEDGER_STORE %q", c.Ledger.Store)
	}
	if c.Dashboard.ProducerEvents <= 0 || c.Dashboard.OperatorEvents <= 0 {
		return fmt.Errorf("config: dashboard event limits must be positive")
	}
	return nil
}

// Policy returns the ledger invariants selected by configuration.
func (c LedgerConfig) Policy() domain.LedgerPolicy {
	return domain.LedgerPolicy{
		EnforceMonotonic:    c.EnforceMonotonic,
		RejectNegativeStock: c.RejectNegativeStock,
		StrictTransitions:   c.StrictTransitions,
	}
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func buildPostgresURL(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
