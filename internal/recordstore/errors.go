package recordstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches every *ConfigurationError via errors.Is
	ErrConfiguration = errors.New("record store misconfigured")
	// ErrTableNotFound is returned by engines when a table does not resolve
	ErrTableNotFound = errors.New("table not found")
	// ErrMissingPrincipal is the cause of an AuditWriteError for a nil principal
	ErrMissingPrincipal = errors.New("principal is required")
)

// ConfigurationError is returned by GetConnection when the table is missing
// or cannot be resolved against the storage engine. It is never retried.
type ConfigurationError struct {
	Table  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("record store configuration error for table %q: %s", e.Table, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// AuditWriteError describes a failed issuance record write.
// It never leaves Connection.Log; it is only reported to the logger.
type AuditWriteError struct {
	Table         string
	Principal     string
	CertificateID string
	Err           error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("write ssh record %q for %q to table %q: %v", e.CertificateID, e.Principal, e.Table, e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }

// CleanupError describes a swallowed failure from ClearConnections
type CleanupError struct {
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("clear record store connections: %v", e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
