package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment variable overrides
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadRecordStoreWithEnv loads only the record store and logging sections,
// for tools that never sign certificates
func LoadRecordStoreWithEnv(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.RecordStore.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SSH_RECORD_ENGINE"); v != "" {
		cfg.RecordStore.Engine = v
	}

	if v := os.Getenv("SSH_RECORD_TABLE"); v != "" {
		cfg.RecordStore.Table = v
	}

	if v := os.Getenv("SSH_RECORD_OPERATION_TIMEOUT"); v != "" {
		cfg.RecordStore.OperationTimeout = v
	}

	if v := os.Getenv("SSH_RECORD_SQLITE_PATH"); v != "" {
		cfg.RecordStore.SQLite.Path = v
	}

	if v := os.Getenv("SSH_RECORD_POSTGRES_DSN"); v != "" {
		cfg.RecordStore.Postgres.DSN = v
	}

	if v := os.Getenv("SSH_RECORD_REDIS_URL"); v != "" {
		cfg.RecordStore.Redis.URL = v
	}

	if v := os.Getenv("SSH_CA_PRIVATE_KEY"); v != "" {
		cfg.CA.PrivateKeyPath = v
	}

	if v := os.Getenv("SSH_CA_PUBLIC_KEY"); v != "" {
		cfg.CA.PublicKeyPath = v
	}

	if v := os.Getenv("SSH_CA_ISSUER_TOKEN"); v != "" {
		cfg.Issuer.Token = v
	}

	if v := os.Getenv("SSH_CA_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
}
