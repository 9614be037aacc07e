// Package postgres stores SSH issuance records in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

const defaultListLimit = 100

// Config configures the PostgreSQL engine
type Config struct {
	DSN      string
	MaxConns int32
}

// DB is a PostgreSQL storage engine client
type DB struct {
	pool *pgxpool.Pool
}

// New connects a pool to the database described by cfg.DSN
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes every pooled connection
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// DescribeTable resolves table through the search path
func (db *DB) DescribeTable(ctx context.Context, table string) error {
	var oid *uint32
	err := db.pool.QueryRow(ctx, `SELECT to_regclass($1)::oid`, ident(table)).Scan(&oid)
	if err != nil {
		return fmt.Errorf("describe table %q: %w", table, err)
	}
	if oid == nil {
		return fmt.Errorf("postgres table %q: %w", table, recordstore.ErrTableNotFound)
	}
	return nil
}

// ClearIdleConnections closes the pool's connections; busy ones are closed on release
func (db *DB) ClearIdleConnections() error {
	db.pool.Reset()
	return nil
}

// CreateTable creates the record table and its indexes if they do not exist
func (db *DB) CreateTable(ctx context.Context, table string) error {
	if table == "" {
		return errors.New("table name is required")
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, stmt := range recordSchema(table) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table %q: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

// PutRecord inserts an issuance record into table
func (db *DB) PutRecord(ctx context.Context, table string, record *models.SSHRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, principal, principal_domain, principal_name, issuer,
			source_ip, target_service, certificate_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ident(table))

	var issuer *string
	if record.Issuer != "" {
		issuer = &record.Issuer
	}
	var expiresAt *time.Time
	if !record.ExpiresAt.IsZero() {
		expiresAt = &record.ExpiresAt
	}

	_, err := db.pool.Exec(ctx, query,
		record.ID,
		record.Principal,
		record.PrincipalDomain,
		record.PrincipalName,
		issuer,
		record.SourceIP,
		record.TargetService,
		record.CertificateID,
		record.IssuedAt,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert ssh record: %w", err)
	}
	return nil
}

// ListRecords lists the most recent records in table matching filter
func (db *DB) ListRecords(ctx context.Context, table string, filter models.RecordFilter) ([]*models.SSHRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(`
		SELECT id, principal, principal_domain, principal_name, issuer,
			source_ip, target_service, certificate_id, issued_at, expires_at
		FROM %s
		WHERE ($1 = '' OR principal = $1)
		  AND ($2 = '' OR target_service = $2)
		ORDER BY issued_at DESC
		LIMIT $3
	`, ident(table))

	rows, err := db.pool.Query(ctx, query, filter.Principal, filter.TargetService, limit)
	if err != nil {
		return nil, fmt.Errorf("query ssh records: %w", err)
	}
	defer rows.Close()

	var records []*models.SSHRecord
	for rows.Next() {
		var (
			record    models.SSHRecord
			issuer    *string
			expiresAt *time.Time
		)
		err := rows.Scan(
			&record.ID,
			&record.Principal,
			&record.PrincipalDomain,
			&record.PrincipalName,
			&issuer,
			&record.SourceIP,
			&record.TargetService,
			&record.CertificateID,
			&record.IssuedAt,
			&expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ssh record: %w", err)
		}
		if issuer != nil {
			record.Issuer = *issuer
		}
		if expiresAt != nil {
			record.ExpiresAt = *expiresAt
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ssh records: %w", err)
	}

	return records, nil
}

// PurgeExpired deletes records whose expiry is before the given time
func (db *DB) PurgeExpired(ctx context.Context, table string, before time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at < $1`, ident(table))

	tag, err := db.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired ssh records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func recordSchema(table string) []string {
	t := ident(table)
	return []string{
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    principal TEXT NOT NULL,
    principal_domain TEXT NOT NULL,
    principal_name TEXT NOT NULL,
    issuer TEXT,
    source_ip TEXT NOT NULL,
    target_service TEXT NOT NULL,
    certificate_id TEXT NOT NULL,
    issued_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ
)`, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (principal, issued_at DESC)`,
			ident("idx_"+table+"_principal"), t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at) WHERE expires_at IS NOT NULL`,
			ident("idx_"+table+"_expires_at"), t),
	}
}
