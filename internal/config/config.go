// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/qazasd2518995/racing10-lottery-website-sub005/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        `env:"SERVER_PORT"            envDefault:"8080"`
	BackofficePort       string        `env:"BACKOFFICE_PORT"        envDefault:"8081"`
	Env                  string        `env:"ENVIRONMENT"            envDefault:"development"`
	ReadTimeout          time.Duration `env:"SERVER_READ_TIMEOUT"    envDefault:"10s"`
	WriteTimeout         time.Duration `env:"SERVER_WRITE_TIMEOUT"   envDefault:"10s"`
	BackofficeAllowedIPs []string      `env:"BACKOFFICE_ALLOWED_IPS" envSeparator:","` // empty = allow all
	WSAllowedOrigins     []string      `env:"WS_ALLOWED_ORIGINS"     envSeparator:","`
	// AdminWriteRPS limits mutating back-office requests per operator; 0 disables it.
	AdminWriteRPS        int           `env:"BACKOFFICE_WRITE_RPS"   envDefault:"5"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Driver          string        `env:"DB_DRIVER"            envDefault:"postgres"` // postgres | sqlite
	DSN             string        `env:"DATABASE_DSN"         envDefault:"host=localhost port=5432 user=postgres dbname=racing10 sslmode=disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig points at the store holding the current-round pointer. An
// empty URL keeps the pointer in process memory.
type RedisConfig struct {
	URL        string `env:"REDIS_URL"`
	CurrentKey string `env:"REDIS_CURRENT_ROUND_KEY" envDefault:"racing10:current_round"`
}

// DrawConfig holds round cadence and recovery settings.
type DrawConfig struct {
	// RoundSchedule is a six-field cron spec (with seconds); each tick closes
	// the open round and opens the next.
	RoundSchedule    string        `env:"DRAW_ROUND_SCHEDULE"    envDefault:"0 */5 * * * *"`
	RecoverySchedule string        `env:"DRAW_RECOVERY_SCHEDULE" envDefault:"@every 30s"`
	StaleClaimAfter  time.Duration `env:"DRAW_STALE_CLAIM_AFTER" envDefault:"2m"`
	SettleTimeout    time.Duration `env:"DRAW_SETTLE_TIMEOUT"    envDefault:"60s"`
	PipelineBuffer   int           `env:"DRAW_PIPELINE_BUFFER"   envDefault:"4"`
}

// RebateConfig holds commission settings. Caps are fractions of stake.
type RebateConfig struct {
	CapA       decimal.Decimal `env:"REBATE_CAP_A"       envDefault:"0.011"`
	CapD       decimal.Decimal `env:"REBATE_CAP_D"       envDefault:"0.041"`
	Workers    int             `env:"REBATE_WORKERS"     envDefault:"8"`
	RetryBatch int             `env:"REBATE_RETRY_BATCH" envDefault:"200"`
}

// Caps returns the per-market-class commission caps.
func (r RebateConfig) Caps() domain.MarketCaps {
	return domain.MarketCaps{domain.MarketA: r.CapA, domain.MarketD: r.CapD}
}

// JWTConfig holds the operator token settings for the back-office.
type JWTConfig struct {
	AccessSecret string `env:"JWT_ACCESS_SECRET"`
	Issuer       string `env:"JWT_ISSUER" envDefault:"racing10"`
}

// TelemetryConfig holds OpenTelemetry trace export settings.
type TelemetryConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"                envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	Insecure    bool    `env:"OTEL_EXPORTER_INSECURE"      envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME"           envDefault:"racing10"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO"           envDefault:"1"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Redis     RedisConfig
	Draw      DrawConfig
	Rebate    RebateConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DB.Driver))
	}
	if c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set"))
	}

	one := decimal.NewFromInt(1)
	for name, v := range map[string]decimal.Decimal{"REBATE_CAP_A": c.Rebate.CapA, "REBATE_CAP_D": c.Rebate.CapD} {
		if !v.IsPositive() || v.GreaterThanOrEqual(one) {
			errs = append(errs, fmt.Errorf("%s must be between 0 and 1 (exclusive), got %s", name, v))
		}
	}
	if c.Rebate.Workers < 1 {
		errs = append(errs, fmt.Errorf("REBATE_WORKERS must be at least 1, got %d", c.Rebate.Workers))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Draw.RoundSchedule); err != nil {
		errs = append(errs, fmt.Errorf("DRAW_ROUND_SCHEDULE: %w", err))
	}
	if _, err := parser.Parse(c.Draw.RecoverySchedule); err != nil {
		errs = append(errs, fmt.Errorf("DRAW_RECOVERY_SCHEDULE: %w", err))
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATIO must be within [0, 1], got %v", c.Telemetry.SampleRatio))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails. Call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// Load parses a fresh Config from the environment without validating it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}
