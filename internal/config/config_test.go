package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  listen_addr: ":8080"
ca:
  private_key_path: /etc/sshrecord/ca
  public_key_path: /etc/sshrecord/ca.pub
  key_type: ed25519
policy:
  default_validity: 8h
  max_validity: 24h
  allowed_services: [athenz.api]
issuer:
  token: s3cret
record_store:
  engine: sqlite
  table: Athenz-ZTS-Table
  operation_timeout: 250ms
  record_ttl: 90d
  sqlite:
    path: /var/lib/sshrecord/records.db
logging:
  level: info
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, EngineSQLite, cfg.RecordStore.Engine)
	assert.Equal(t, "Athenz-ZTS-Table", cfg.RecordStore.Table)
	assert.Equal(t, 250*time.Millisecond, cfg.RecordStore.GetOperationTimeout())
	assert.Equal(t, 90*24*time.Hour, cfg.RecordStore.GetRecordTTL())
	assert.Equal(t, 8*time.Hour, cfg.GetDefaultValidityDuration())
	assert.Equal(t, []string{"athenz.api"}, cfg.Policy.AllowedServices)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EmptyTableIsAccepted(t *testing.T) {
	cfg, err := LoadRecordStoreWithEnv(writeConfig(t, "record_store:\n  engine: memory\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.RecordStore.Table)
	assert.Zero(t, cfg.RecordStore.GetOperationTimeout())
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("SSH_RECORD_ENGINE", "postgres")
	t.Setenv("SSH_RECORD_POSTGRES_DSN", "postgres://localhost/records")
	t.Setenv("SSH_RECORD_TABLE", "other")
	t.Setenv("SSH_RECORD_OPERATION_TIMEOUT", "2s")

	cfg, err := LoadWithEnv(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, EnginePostgres, cfg.RecordStore.Engine)
	assert.Equal(t, "other", cfg.RecordStore.Table)
	assert.Equal(t, 2*time.Second, cfg.RecordStore.GetOperationTimeout())
}

func TestRecordStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RecordStoreConfig
		wantErr string
	}{
		{"memory", RecordStoreConfig{Engine: EngineMemory}, ""},
		{"unknown engine", RecordStoreConfig{Engine: "dynamo"}, "record_store.engine"},
		{"sqlite without path", RecordStoreConfig{Engine: EngineSQLite}, "sqlite.path"},
		{"postgres without dsn", RecordStoreConfig{Engine: EnginePostgres}, "postgres.dsn"},
		{"redis without url", RecordStoreConfig{Engine: EngineRedis}, "redis.url"},
		{"bad timeout", RecordStoreConfig{Engine: EngineMemory, OperationTimeout: "soon"}, "operation_timeout"},
		{"negative timeout", RecordStoreConfig{Engine: EngineMemory, OperationTimeout: "-1s"}, "must not be negative"},
		{"bad ttl", RecordStoreConfig{Engine: EngineMemory, RecordTTL: "xd"}, "record_ttl"},
		{"fractional days", RecordStoreConfig{Engine: EngineMemory, RecordTTL: "1.5d"}, "record_ttl"},
		{"trailing garbage in days", RecordStoreConfig{Engine: EngineMemory, RecordTTL: "7xd"}, "record_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_DefaultExceedsMax(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cfg.Policy.DefaultValidity = "48h"
	assert.Error(t, cfg.Validate())
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90d")
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, d)

	d, err = parseDuration("36h")
	require.NoError(t, err)
	assert.Equal(t, 36*time.Hour, d)

	for _, bad := range []string{"1.5d", "2 d", "d", "tomorrow"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}
