package config

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/joho/godotenv"
)

// Environment name constants used in ENVIRONMENT config field.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config holds all configuration for the journal query engine and its HTTP gateway.
type Config struct {
	// Redis — the journal store: per-identifier and per-tag sorted sets, pub/sub channels.
	RedisURL string `conf:"default:redis://localhost:6379,env:REDIS_URL"`

	// PageSize bounds every range read issued against the store and doubles as the
	// soft bound on each source's internal FIFO buffer. Must be a positive integer.
	PageSize uint64 `conf:"default:256,env:PAGE_SIZE"`

	// Application
	LogLevel    string `conf:"default:info,env:LOG_LEVEL"`
	Environment string `conf:"default:development,enum:development|testing|production,env:ENVIRONMENT"`

	// Admin session — guards the /admin/sources introspection endpoint.
	AdminSessionAuthKey       string `conf:"default:dev-auth-key-of-exactly-32-byte!,env:ADMIN_SESSION_AUTH_KEY"`
	AdminSessionEncryptionKey string `conf:"default:dev-encrypt-key-of-exactly-32-by,env:ADMIN_SESSION_ENCRYPTION_KEY"`

	// CORS — comma-separated list of allowed origins; use * to allow all (dev only)
	CORSAllowedOrigins string `conf:"default:*,env:CORS_ALLOWED_ORIGINS"`

	// Observability
	ServiceName    string `conf:"default:persistredis,env:SERVICE_NAME"`
	ServiceVersion string `conf:"default:dev,env:SERVICE_VERSION"`
	OtelEndpoint   string `conf:"default:http://localhost,env:OTEL_ENDPOINT"`
	SentryDSN      string `conf:"default:http://localhost,env:SENTRY_DSN,noprint"`
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	var cfg Config
	_ = godotenv.Load()
	if _, err := conf.Parse("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// ValidateForProduction enforces security requirements when ENVIRONMENT=production.
// Returns an error if any critical settings are missing or unsafe.
// No-ops for non-production environments.
func ValidateForProduction(cfg *Config) error {
	if cfg.Environment != EnvProduction {
		return nil
	}

	var errs []string

	if cfg.PageSize == 0 {
		errs = append(errs, "PAGE_SIZE must be a positive integer")
	}

	if len(cfg.AdminSessionAuthKey) < 32 {
		errs = append(errs, fmt.Sprintf(
			"ADMIN_SESSION_AUTH_KEY must be at least 32 bytes (got %d); generate with: openssl rand -base64 32",
			len(cfg.AdminSessionAuthKey),
		))
	}

	switch len(cfg.AdminSessionEncryptionKey) {
	case 16, 24, 32:
	default:
		errs = append(errs, fmt.Sprintf(
			"ADMIN_SESSION_ENCRYPTION_KEY must be exactly 16, 24, or 32 bytes for AES (got %d); generate with: openssl rand -base64 24 | head -c 32",
			len(cfg.AdminSessionEncryptionKey),
		))
	}

	if cfg.LogLevel == "debug" {
		errs = append(errs, "LOG_LEVEL must not be 'debug' in production (may leak sensitive data)")
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("production config validation failed: %s", strings.Join(errs, "; "))
}
