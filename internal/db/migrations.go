package db

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// CreateTable creates the record table and its indexes if they do not exist
// and records the schema version applied to it
func (db *DB) CreateTable(ctx context.Context, table string) error {
	if table == "" {
		return fmt.Errorf("table name is required")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execSQL(ctx, tx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version WHERE table_name = ?`,
		table,
	).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("table %q has schema version %d, newer than supported %d", table, current, schemaVersion)
	}

	for _, stmt := range recordSchema(table) {
		if err := execSQL(ctx, tx, stmt); err != nil {
			return fmt.Errorf("failed to create table %q: %w", table, err)
		}
	}

	if current < schemaVersion {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (table_name, version) VALUES (?, ?)`,
			table, schemaVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	return tx.Commit()
}

// execSQL executes a SQL statement
func execSQL(ctx context.Context, tx *sql.Tx, query string) error {
	_, err := tx.ExecContext(ctx, query)
	return err
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    table_name TEXT NOT NULL,
    version INTEGER NOT NULL,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func recordSchema(table string) []string {
	t := quoteIdent(table)
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
    issued_at DATETIME NOT NULL,
    expires_at DATETIME
)`, t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(principal, issued_at)`,
			quoteIdent("idx_"+table+"_principal"), t),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(expires_at)`,
			quoteIdent("idx_"+table+"_expires_at"), t),
	}
}
