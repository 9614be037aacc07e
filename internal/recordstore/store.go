// Package recordstore records SSH certificate issuances for later audit.
//
// A Store is created once at startup around a shared storage engine client
// and a table name. Callers obtain a short-lived Connection per issuance,
// call Log, and Close it. Log never fails from the caller's point of view:
// write errors are reported to the logger and metrics only, so a storage
// outage degrades audit coverage without blocking certificate issuance.
package recordstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/adamscao/sshrecord/internal/logger"
	"github.com/adamscao/sshrecord/internal/metrics"
)

const tracerName = "github.com/adamscao/sshrecord/internal/recordstore"

// Store hands out connections bound to a single table of the storage engine
type Store struct {
	client  Client
	table   string
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	recordTTL time.Duration
	now       func() time.Time
	newID     func() string

	// operation timeout in nanoseconds, shared by every connection
	timeout atomic.Int64
	// generation is bumped by ClearConnections; validated holds the
	// generation the table last resolved in, plus one (zero means never)
	generation atomic.Uint64
	validated  atomic.Uint64
	describe   singleflight.Group
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger that receives write and cleanup failures
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithTracerProvider sets the provider used for write spans
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithRecordTTL stamps records with an expiry ttl after issuance. Zero disables expiry.
func WithRecordTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.recordTTL = ttl
		}
	}
}

// WithOperationTimeout sets the initial operation timeout
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.SetOperationTimeout(d)
	}
}

// WithClock overrides the time source used to stamp records
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store writing to table through client. Nothing is validated
// here; misconfiguration surfaces from GetConnection.
func New(client Client, table string, opts ...Option) *Store {
	s := &Store{
		client: client,
		table:  table,
		logger: logger.Discard(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Table returns the configured table name
func (s *Store) Table() string {
	return s.table
}

// GetConnection returns a connection bound to the store's table.
//
// The table is validated synchronously: an empty name, a missing client, or
// (when the client implements TableDescriber) a table the engine cannot
// resolve fails with a *ConfigurationError. A successful resolution is
// cached until ClearConnections; failures are never cached.
func (s *Store) GetConnection(ctx context.Context) (*Connection, error) {
	if err := s.validate(ctx, false); err != nil {
		s.metrics.IncConfigurationErrors()
		return nil, err
	}

	s.metrics.IncConnections()
	return &Connection{store: s, table: s.table}, nil
}

// CheckTable resolves the table against the engine even when an earlier
// resolution is cached. A failure drops the cached resolution so the next
// GetConnection fails too.
func (s *Store) CheckTable(ctx context.Context) error {
	if err := s.validate(ctx, true); err != nil {
		s.metrics.IncConfigurationErrors()
		return err
	}
	return nil
}

func (s *Store) validate(ctx context.Context, force bool) error {
	if s.table == "" {
		return &ConfigurationError{Table: s.table, Reason: "table name is empty"}
	}
	if s.client == nil {
		return &ConfigurationError{Table: s.table, Reason: "storage client is not set"}
	}
	gen := s.generation.Load()
	if !force && s.validated.Load() == gen+1 {
		return nil
	}

	describer, ok := s.client.(TableDescriber)
	if !ok {
		s.markValidated(gen)
		return nil
	}

	// Concurrent first callers share one round-trip. The shared call must
	// not inherit the cancellation of whichever caller started it, and a
	// call started before ClearConnections is not joined after it.
	key := s.table + "#" + strconv.FormatUint(gen, 10)
	_, err, _ := s.describe.Do(key, func() (interface{}, error) {
		dctx, cancel := s.operationContext(context.WithoutCancel(ctx))
		defer cancel()
		return nil, describeTable(dctx, describer, s.table)
	})
	if err != nil {
		s.validated.Store(0)
		return &ConfigurationError{Table: s.table, Reason: "table does not resolve", Err: err}
	}

	s.markValidated(gen)
	return nil
}

// markValidated records a resolution made in generation gen. A resolution
// from before the latest ClearConnections never satisfies a later check.
func (s *Store) markValidated(gen uint64) {
	for {
		cur := s.validated.Load()
		if cur >= gen+1 || s.validated.CompareAndSwap(cur, gen+1) {
			return
		}
	}
}

func describeTable(ctx context.Context, describer TableDescriber, table string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while describing table: %v", r)
		}
	}()
	return describer.DescribeTable(ctx, table)
}

// SetOperationTimeout sets the timeout applied to every subsequent storage
// operation issued through this store. The value is store-wide: connections
// already handed out read it at operation time and pick up the change on
// their next Log. Zero or a negative value defers to the engine's default.
func (s *Store) SetOperationTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.timeout.Store(int64(d))
}

// OperationTimeout returns the current store-wide operation timeout
func (s *Store) OperationTimeout() time.Duration {
	return time.Duration(s.timeout.Load())
}

// operationContext derives a context bounded by the current operation timeout
func (s *Store) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := s.OperationTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// ClearConnections asks the client to drop idle pooled connections and
// forgets the cached table validation. It never fails: a client without a
// pool makes this a no-op and cleanup errors are only logged.
func (s *Store) ClearConnections() {
	s.generation.Add(1)

	clearer, ok := s.client.(IdleConnClearer)
	if !ok {
		return
	}

	if err := clearIdle(clearer); err != nil {
		s.metrics.IncCleanupFailures()
		s.logger.Warn("failed to clear record store connections",
			"table", s.table,
			"error", &CleanupError{Err: err},
		)
	}
}

func clearIdle(clearer IdleConnClearer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return clearer.ClearIdleConnections()
}
