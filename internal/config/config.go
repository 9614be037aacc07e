package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Storage engine names accepted in record_store.engine
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineRedis    = "redis"
	EngineMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	CA          CAConfig          `yaml:"ca"`
	Policy      PolicyConfig      `yaml:"policy"`
	Issuer      IssuerConfig      `yaml:"issuer"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// CAConfig contains CA key configuration
type CAConfig struct {
	PrivateKeyPath string `yaml:"private_key_path"`
	PublicKeyPath  string `yaml:"public_key_path"`
	KeyType        string `yaml:"key_type"`
}

// PolicyConfig contains certificate signing policy
type PolicyConfig struct {
	DefaultValidity string   `yaml:"default_validity"`
	MaxValidity     string   `yaml:"max_validity"`
	AllowedServices []string `yaml:"allowed_services"`
}

// IssuerConfig authenticates the front service allowed to request certificates
type IssuerConfig struct {
	Token string `yaml:"token"`
}

// RecordStoreConfig selects and configures the issuance record storage engine.
// Table is not validated here: an empty or unknown table is reported by the
// record store when a connection is requested.
type RecordStoreConfig struct {
	Engine           string         `yaml:"engine"`
	Table            string         `yaml:"table"`
	OperationTimeout string         `yaml:"operation_timeout"`
	RecordTTL        string         `yaml:"record_ttl"`
	SQLite           SQLiteConfig   `yaml:"sqlite"`
	Postgres         PostgresConfig `yaml:"postgres"`
	Redis            RedisConfig    `yaml:"redis"`
}

// SQLiteConfig contains SQLite engine configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL engine configuration
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// RedisConfig contains Redis engine configuration
type RedisConfig struct {
	URL    string `yaml:"url"`
	MaxLen int64  `yaml:"max_len"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// CA validation
	if c.CA.PrivateKeyPath == "" {
		return fmt.Errorf("ca.private_key_path is required")
	}
	if c.CA.PublicKeyPath == "" {
		return fmt.Errorf("ca.public_key_path is required")
	}
	if c.CA.KeyType != "ed25519" && c.CA.KeyType != "rsa" {
		return fmt.Errorf("ca.key_type must be 'ed25519' or 'rsa'")
	}

	// Policy validation
	if _, err := time.ParseDuration(c.Policy.DefaultValidity); err != nil {
		return fmt.Errorf("policy.default_validity is invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.Policy.MaxValidity); err != nil {
		return fmt.Errorf("policy.max_validity is invalid: %w", err)
	}
	if c.GetDefaultValidityDuration() > c.GetMaxValidityDuration() {
		return fmt.Errorf("policy.default_validity must not exceed policy.max_validity")
	}

	// Issuer validation
	if c.Issuer.Token == "" {
		return fmt.Errorf("issuer.token is required")
	}
	if c.Issuer.Token == "change-me" {
		fmt.Fprintf(os.Stderr, "WARNING: Using default issuer token. Please change it in production!\n")
	}

	if err := c.RecordStore.Validate(); err != nil {
		return err
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}

	return nil
}

// Validate checks the record store section on its own, for tools that only need storage
func (r *RecordStoreConfig) Validate() error {
	switch r.Engine {
	case EngineSQLite:
		if r.SQLite.Path == "" {
			return fmt.Errorf("record_store.sqlite.path is required")
		}
	case EnginePostgres:
		if r.Postgres.DSN == "" {
			return fmt.Errorf("record_store.postgres.dsn is required")
		}
		if r.Postgres.MaxConns < 0 {
			return fmt.Errorf("record_store.postgres.max_conns must not be negative")
		}
	case EngineRedis:
		if r.Redis.URL == "" {
			return fmt.Errorf("record_store.redis.url is required")
		}
		if r.Redis.MaxLen < 0 {
			return fmt.Errorf("record_store.redis.max_len must not be negative")
		}
	case EngineMemory:
	default:
		return fmt.Errorf("record_store.engine must be one of: sqlite, postgres, redis, memory")
	}

	if d, err := parseOptionalDuration(r.OperationTimeout); err != nil {
		return fmt.Errorf("record_store.operation_timeout is invalid: %w", err)
	} else if d < 0 {
		return fmt.Errorf("record_store.operation_timeout must not be negative")
	}
	if d, err := parseOptionalDuration(r.RecordTTL); err != nil {
		return fmt.Errorf("record_store.record_ttl is invalid: %w", err)
	} else if d < 0 {
		return fmt.Errorf("record_store.record_ttl must not be negative")
	}

	return nil
}

// GetDefaultValidityDuration returns the default validity as time.Duration
func (c *Config) GetDefaultValidityDuration() time.Duration {
	d, _ := time.ParseDuration(c.Policy.DefaultValidity)
	return d
}

// GetMaxValidityDuration returns the max validity as time.Duration
func (c *Config) GetMaxValidityDuration() time.Duration {
	d, _ := time.ParseDuration(c.Policy.MaxValidity)
	return d
}

// GetOperationTimeout returns the operation timeout; zero means engine default
func (r *RecordStoreConfig) GetOperationTimeout() time.Duration {
	d, _ := parseOptionalDuration(r.OperationTimeout)
	return d
}

// GetRecordTTL returns the record TTL; zero means records never expire
func (r *RecordStoreConfig) GetRecordTTL() time.Duration {
	d, _ := parseOptionalDuration(r.RecordTTL)
	return d
}

// parseOptionalDuration is parseDuration with "" meaning zero
func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return parseDuration(s)
}

// parseDuration parses duration with support for days (e.g., "90d")
func parseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		d, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", days)
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
