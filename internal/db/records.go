package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adamscao/sshrecord/internal/models"
)

const defaultListLimit = 100

// PutRecord inserts an issuance record into table
func (db *DB) PutRecord(ctx context.Context, table string, record *models.SSHRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, principal, principal_domain, principal_name, issuer,
			source_ip, target_service, certificate_id, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, quoteIdent(table))

	var expiresAt sql.NullTime
	if !record.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: record.ExpiresAt.UTC(), Valid: true}
	}

	_, err := db.ExecContext(ctx, query,
		record.ID,
		record.Principal,
		record.PrincipalDomain,
		record.PrincipalName,
		nullString(record.Issuer),
		record.SourceIP,
		record.TargetService,
		record.CertificateID,
		record.IssuedAt.UTC(),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ssh record: %w", err)
	}

	return nil
}

// ListRecords lists the most recent records in table matching filter
func (db *DB) ListRecords(ctx context.Context, table string, filter models.RecordFilter) ([]*models.SSHRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, principal, principal_domain, principal_name, issuer,
			source_ip, target_service, certificate_id, issued_at, expires_at
		FROM %s
		WHERE 1=1
	`, quoteIdent(table))
	args := []interface{}{}

	if filter.Principal != "" {
		query += " AND principal = ?"
		args = append(args, filter.Principal)
	}

	if filter.TargetService != "" {
		query += " AND target_service = ?"
		args = append(args, filter.TargetService)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY issued_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ssh records: %w", err)
	}
	defer rows.Close()

	var records []*models.SSHRecord

	for rows.Next() {
		record := &models.SSHRecord{}
		var issuer sql.NullString
		var expiresAt sql.NullTime

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
			return nil, fmt.Errorf("failed to scan ssh record: %w", err)
		}

		if issuer.Valid {
			record.Issuer = issuer.String
		}
		if expiresAt.Valid {
			record.ExpiresAt = expiresAt.Time
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ssh records: %w", err)
	}

	return records, nil
}

// PurgeExpired deletes records whose expiry is before the given time
func (db *DB) PurgeExpired(ctx context.Context, table string, before time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, quoteIdent(table))

	result, err := db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired ssh records: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
