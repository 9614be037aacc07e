// Package memory is an in-process storage engine for development and tests
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

const defaultListLimit = 100

// Store keeps records per table in memory
type Store struct {
	mu     sync.RWMutex
	tables map[string][]*models.SSHRecord
}

// New creates an empty in-memory engine with the given tables pre-created
func New(tables ...string) *Store {
	s := &Store{tables: make(map[string][]*models.SSHRecord)}
	for _, t := range tables {
		s.tables[t] = nil
	}
	return s
}

func (s *Store) DescribeTable(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.tables[table]; !ok {
		return fmt.Errorf("memory table %q: %w", table, recordstore.ErrTableNotFound)
	}
	return nil
}

func (s *Store) CreateTable(_ context.Context, table string) error {
	if table == "" {
		return errors.New("table name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = nil
	}
	return nil
}

// DropTable removes table and its records
func (s *Store) DropTable(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, table)
}

func (s *Store) PutRecord(ctx context.Context, table string, record *models.SSHRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.tables[table]
	if !ok {
		return fmt.Errorf("memory table %q: %w", table, recordstore.ErrTableNotFound)
	}
	cp := *record
	s.tables[table] = append(records, &cp)
	return nil
}

// ListRecords returns matching records newest first
func (s *Store) ListRecords(_ context.Context, table string, filter models.RecordFilter) ([]*models.SSHRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("memory table %q: %w", table, recordstore.ErrTableNotFound)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var out []*models.SSHRecord
	for _, r := range records {
		if filter.Matches(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PurgeExpired(_ context.Context, table string, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, ok := s.tables[table]
	if !ok {
		return 0, fmt.Errorf("memory table %q: %w", table, recordstore.ErrTableNotFound)
	}

	kept := records[:0]
	var purged int64
	for _, r := range records {
		if r.Expired(before) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.tables[table] = kept
	return purged, nil
}

// Close is a no-op
func (s *Store) Close() error { return nil }
