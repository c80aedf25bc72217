// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"landedcost/internal/core/security"
	"landedcost/internal/domain/costing"
	"landedcost/internal/domain/fx"
)

// Config holds runtime configuration for the server and worker.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppAddr         string        `envconfig:"APP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Storage is "postgres" or "memory". Memory keeps everything in process
	// and is meant for local runs.
	Storage     string `envconfig:"STORAGE" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`

	// RedisAddr enables the distributed completion lock and idempotency keys.
	RedisAddr          string        `envconfig:"REDIS_ADDR"`
	RedisPassword      string        `envconfig:"REDIS_PASSWORD"`
	RedisDB            int           `envconfig:"REDIS_DB" default:"0"`
	CompletionLockTTL  time.Duration `envconfig:"COMPLETION_LOCK_TTL" default:"30s"`
	IdempotencyKeysTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"landedcost"`

	AuthPolicy string `envconfig:"AUTH_POLICY"`

	LocalCurrency      string `envconfig:"APP_LOCAL_CURRENCY" default:"ARS"`
	CostingRounding    string `envconfig:"COSTING_ROUNDING" default:"output"`
	CostingProductCost string `envconfig:"COSTING_PRODUCT_COST" default:"last_cost"`

	AuditCompressThreshold int `envconfig:"AUDIT_COMPRESS_THRESHOLD" default:"0"`

	OutboxBatchSize int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxInterval  time.Duration `envconfig:"OUTBOX_INTERVAL" default:"2s"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enums and cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage {
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE must be postgres or memory, got %q", c.Storage)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 bytes in production")
	}

	if err := fx.ValidateCode(fx.NormalizeCode(c.LocalCurrency)); err != nil {
		return fmt.Errorf("APP_LOCAL_CURRENCY: %w", err)
	}
	if _, err := costing.ParseRoundingPolicy(c.CostingRounding); err != nil {
		return fmt.Errorf("COSTING_ROUNDING: %w", err)
	}
	if _, err := costing.ParseProductCostPolicy(c.CostingProductCost); err != nil {
		return fmt.Errorf("COSTING_PRODUCT_COST: %w", err)
	}
	if c.OutboxBatchSize <= 0 {
		return errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Rounding returns the parsed rounding policy. Call after Validate.
func (c *Config) Rounding() costing.RoundingPolicy {
	p, _ := costing.ParseRoundingPolicy(c.CostingRounding)
	return p
}

// ProductCost returns the parsed product cost policy. Call after Validate.
func (c *Config) ProductCost() costing.ProductCostPolicy {
	p, _ := costing.ParseProductCostPolicy(c.CostingProductCost)
	return p
}

// Policy returns the authorization expression, falling back to the default.
func (c *Config) Policy() string {
	if c.AuthPolicy == "" {
		return security.DefaultPolicy
	}
	return c.AuthPolicy
}
