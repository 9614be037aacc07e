package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/adamscao/sshrecord/internal/recordstore"
)

const defaultMaxIdleConns = 1

// DB wraps a SQLite database used as an SSH record storage engine
type DB struct {
	*sql.DB
	maxIdleConns int
}

// New creates a new database connection
func New(path string) (*DB, error) {
	// Open database with recommended pragmas
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=ON", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(defaultMaxIdleConns)

	return &DB{DB: db, maxIdleConns: defaultMaxIdleConns}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// DescribeTable reports whether table exists in the database
func (db *DB) DescribeTable(ctx context.Context, table string) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		table,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to describe table %q: %w", table, err)
	}
	if count == 0 {
		return fmt.Errorf("sqlite table %q: %w", table, recordstore.ErrTableNotFound)
	}
	return nil
}

// ClearIdleConnections closes pooled idle connections; the pool refills on demand
func (db *DB) ClearIdleConnections() error {
	db.SetMaxIdleConns(0)
	db.SetMaxIdleConns(db.maxIdleConns)
	return nil
}

// quoteIdent quotes a table or index name for interpolation into SQL
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
