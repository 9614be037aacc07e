package recordstore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamscao/sshrecord/internal/auth"
	"github.com/adamscao/sshrecord/internal/metrics"
	"github.com/adamscao/sshrecord/internal/models"
)

// State is the lifecycle position of a Connection
type State int32

const (
	StateCreated State = iota
	StateActive
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connection issues issuance record writes against one table.
// Use one connection per issuance; do not share it between goroutines
// handling different issuances. Calling Log after Close is a programming
// error and is not guarded.
type Connection struct {
	store *Store
	table string
	state atomic.Int32
}

// Table returns the table the connection is bound to
func (c *Connection) Table() string {
	return c.table
}

// State returns the connection's lifecycle state
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Log records that a certificate identified by certificateID was issued to
// principal from sourceIP for targetService. sourceIP, targetService and
// certificateID are stored as given.
//
// Log always returns normally. A failed write (timeout, connectivity,
// engine rejection, a nil principal, or a panicking client) is reported to
// the store's logger, metrics and trace span and then dropped. Log blocks
// for at most the store's operation timeout when one is set.
func (c *Connection) Log(ctx context.Context, principal auth.Principal, sourceIP, targetService, certificateID string) {
	c.state.CompareAndSwap(int32(StateCreated), int32(StateActive))

	start := time.Now()
	err := c.write(ctx, principal, sourceIP, targetService, certificateID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		c.store.metrics.ObserveWrite(metrics.ResultFailure, elapsed)
		c.store.logger.ErrorContext(ctx, "failed to record ssh certificate issuance",
			"table", c.table,
			"target_service", targetService,
			"source_ip", sourceIP,
			"certificate_id", certificateID,
			"error", err,
		)
		return
	}

	c.store.metrics.ObserveWrite(metrics.ResultSuccess, elapsed)
}

func (c *Connection) write(ctx context.Context, principal auth.Principal, sourceIP, targetService, certificateID string) (err error) {
	var principalName string
	fail := func(cause error) error {
		return &AuditWriteError{
			Table:         c.table,
			Principal:     principalName,
			CertificateID: certificateID,
			Err:           cause,
		}
	}

	// Engines and Principal implementations are outside this package; a
	// panic in either is converted like any other write failure.
	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("panic while writing record: %v", r))
		}
	}()

	if principal == nil {
		return fail(ErrMissingPrincipal)
	}

	record := c.store.newRecord(principal, sourceIP, targetService, certificateID)
	principalName = record.Principal

	ctx, span := c.store.tracer.Start(ctx, "recordstore.Log",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sshrecord.table", c.table),
			attribute.String("sshrecord.principal", record.Principal),
			attribute.String("sshrecord.target_service", targetService),
		),
	)
	defer span.End()

	opCtx, cancel := c.store.operationContext(ctx)
	defer cancel()

	if perr := c.store.client.PutRecord(opCtx, c.table, record); perr != nil {
		span.RecordError(perr)
		span.SetStatus(codes.Error, "put record failed")
		return fail(perr)
	}

	return nil
}

// Close releases the connection. It is idempotent and always returns nil;
// pooled network resources are owned and recycled by the storage client.
func (c *Connection) Close() error {
	c.state.Store(int32(StateReleased))
	return nil
}

func (s *Store) newRecord(principal auth.Principal, sourceIP, targetService, certificateID string) *models.SSHRecord {
	issuedAt := s.now().UTC()

	record := &models.SSHRecord{
		ID:              s.newID(),
		Principal:       principal.FullName(),
		PrincipalDomain: principal.Domain(),
		PrincipalName:   principal.Name(),
		Issuer:          principal.Issuer(),
		SourceIP:        sourceIP,
		TargetService:   targetService,
		CertificateID:   certificateID,
		IssuedAt:        issuedAt,
	}
	if s.recordTTL > 0 {
		record.ExpiresAt = issuedAt.Add(s.recordTTL)
	}
	return record
}
