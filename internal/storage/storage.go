// Package storage opens the configured record storage engine.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/adamscao/sshrecord/internal/config"
	"github.com/adamscao/sshrecord/internal/db"
	"github.com/adamscao/sshrecord/internal/db/memory"
	"github.com/adamscao/sshrecord/internal/db/postgres"
	"github.com/adamscao/sshrecord/internal/db/redis"
	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

// Engine is a storage engine the record store writes through, plus the
// administrative operations the tooling needs.
type Engine interface {
	recordstore.Client
	recordstore.TableDescriber
	CreateTable(ctx context.Context, table string) error
	ListRecords(ctx context.Context, table string, filter models.RecordFilter) ([]*models.SSHRecord, error)
	PurgeExpired(ctx context.Context, table string, before time.Time) (int64, error)
	Close() error
}

var (
	_ Engine = (*db.DB)(nil)
	_ Engine = (*postgres.DB)(nil)
	_ Engine = (*redis.Client)(nil)
	_ Engine = (*memory.Store)(nil)
)

// Open connects to the engine named in cfg.Engine
func Open(ctx context.Context, cfg config.RecordStoreConfig) (Engine, error) {
	switch cfg.Engine {
	case config.EngineSQLite:
		d, err := db.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite engine: %w", err)
		}
		return d, nil
	case config.EnginePostgres:
		d, err := postgres.New(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres engine: %w", err)
		}
		return d, nil
	case config.EngineRedis:
		c, err := redis.New(ctx, redis.Config{URL: cfg.Redis.URL, MaxLen: cfg.Redis.MaxLen})
		if err != nil {
			return nil, fmt.Errorf("open redis engine: %w", err)
		}
		return c, nil
	case config.EngineMemory:
		// the memory engine starts with the configured table so a fresh
		// process can issue immediately
		if cfg.Table == "" {
			return memory.New(), nil
		}
		return memory.New(cfg.Table), nil
	default:
		return nil, fmt.Errorf("unknown record store engine %q", cfg.Engine)
	}
}

// NewRecordStore builds the record store for engine using the timeout and TTL from cfg
func NewRecordStore(engine Engine, cfg config.RecordStoreConfig, opts ...recordstore.Option) *recordstore.Store {
	all := append([]recordstore.Option{
		recordstore.WithOperationTimeout(cfg.GetOperationTimeout()),
		recordstore.WithRecordTTL(cfg.GetRecordTTL()),
	}, opts...)
	return recordstore.New(engine, cfg.Table, all...)
}
