package recordstore

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks Client,TableDescriber,IdleConnClearer

import (
	"context"

	"github.com/adamscao/sshrecord/internal/models"
)

// Client is the storage engine handle the store writes through.
// It is shared and long-lived; the store never closes it.
type Client interface {
	// PutRecord durably writes one record to table. Implementations must
	// honor ctx cancellation and deadlines.
	PutRecord(ctx context.Context, table string, record *models.SSHRecord) error
}

// TableDescriber is implemented by clients that can resolve a table name
// against the engine. DescribeTable returns an error wrapping
// ErrTableNotFound when the table does not exist.
type TableDescriber interface {
	DescribeTable(ctx context.Context, table string) error
}

// IdleConnClearer is implemented by clients that keep a connection pool
// whose idle entries can be dropped on request.
type IdleConnClearer interface {
	ClearIdleConnections() error
}
