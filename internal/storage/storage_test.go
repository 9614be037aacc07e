package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/sshrecord/internal/config"
	"github.com/adamscao/sshrecord/internal/db"
	"github.com/adamscao/sshrecord/internal/db/memory"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	engine, err := Open(ctx, config.RecordStoreConfig{Engine: config.EngineMemory, Table: "records"})
	require.NoError(t, err)
	defer engine.Close()

	assert.IsType(t, &memory.Store{}, engine)
	assert.NoError(t, engine.DescribeTable(ctx, "records"))
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.RecordStoreConfig{
		Engine: config.EngineSQLite,
		Table:  "records",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "records.db")},
	}
	engine, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer engine.Close()

	assert.IsType(t, &db.DB{}, engine)
	assert.ErrorIs(t, engine.DescribeTable(ctx, "records"), recordstore.ErrTableNotFound)
	require.NoError(t, engine.CreateTable(ctx, "records"))
	assert.NoError(t, engine.DescribeTable(ctx, "records"))
}

func TestOpen_UnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), config.RecordStoreConfig{Engine: "dynamo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown record store engine")
}

func TestOpen_PostgresBadDSN(t *testing.T) {
	_, err := Open(context.Background(), config.RecordStoreConfig{
		Engine:   config.EnginePostgres,
		Postgres: config.PostgresConfig{DSN: "postgres://localhost:99999/x"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres engine")
}

func TestNewRecordStore_AppliesConfig(t *testing.T) {
	engine := memory.New("records")
	store := NewRecordStore(engine, config.RecordStoreConfig{
		Engine:           config.EngineMemory,
		Table:            "records",
		OperationTimeout: "150ms",
	})

	assert.Equal(t, "records", store.Table())
	assert.Equal(t, 150*time.Millisecond, store.OperationTimeout())
	_, err := store.GetConnection(context.Background())
	assert.NoError(t, err)
}
