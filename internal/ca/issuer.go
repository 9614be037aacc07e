package ca

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/adamscao/sshrecord/internal/auth"
	"github.com/adamscao/sshrecord/internal/logger"
	"github.com/adamscao/sshrecord/internal/metrics"
	"github.com/adamscao/sshrecord/internal/policy"
	"github.com/adamscao/sshrecord/internal/recordstore"
	"github.com/adamscao/sshrecord/pkg/sshutil"
)

// ErrIssuerClosed is returned by Issue after Close
var ErrIssuerClosed = errors.New("issuer is closed")

// Recorder hands out record store connections
type Recorder interface {
	GetConnection(ctx context.Context) (*recordstore.Connection, error)
}

// IssueRequest is an authenticated request for a user certificate
type IssueRequest struct {
	Principal     auth.Principal
	PublicKey     string
	SourceIP      string
	TargetService string
	Validity      time.Duration
}

// IssuedCertificate is the result of a successful issuance
type IssuedCertificate struct {
	Certificate   string    `json:"certificate"`
	CertificateID string    `json:"certificate_id"`
	SerialNumber  uint64    `json:"serial_number"`
	ValidAfter    time.Time `json:"valid_after"`
	ValidBefore   time.Time `json:"valid_before"`
}

// Issuer signs user certificates and records every issuance
type Issuer struct {
	keyPair   *KeyPair
	validator *policy.Validator
	recorder  Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// IssuerOption configures an Issuer
type IssuerOption func(*Issuer)

// WithIssuerLogger sets the issuer logger
func WithIssuerLogger(l *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithIssuerMetrics sets the metrics sink for pending audit writes
func WithIssuerMetrics(m *metrics.Metrics) IssuerOption {
	return func(i *Issuer) { i.metrics = m }
}

// WithIssuerClock overrides the signing clock
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewIssuer creates an issuer signing with kp and recording through recorder
func NewIssuer(kp *KeyPair, validator *policy.Validator, recorder Recorder, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		keyPair:   kp,
		validator: validator,
		recorder:  recorder,
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// PublicKey returns the CA public key in authorized_keys format
func (i *Issuer) PublicKey() string {
	return i.keyPair.GetPublicKeyString()
}

// Issue validates req, signs the certificate and schedules the audit record.
// Recording never delays or fails the issuance.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*IssuedCertificate, error) {
	validity, err := i.validator.ValidateIssueRequest(req.Principal, req.TargetService, req.Validity)
	if err != nil {
		return nil, err
	}

	fingerprint, err := sshutil.GetFingerprint(req.PublicKey)
	if err != nil {
		return nil, err
	}

	serial, err := NewSerial()
	if err != nil {
		return nil, err
	}
	certID := strconv.FormatUint(serial, 10)

	certString, cert, err := SignCertificate(i.keyPair, &SignRequest{
		PublicKey:      req.PublicKey,
		Principal:      req.Principal.Name(),
		KeyID:          fmt.Sprintf("%s@%s", req.Principal.FullName(), req.TargetService),
		ValidityPeriod: validity,
		SerialNumber:   serial,
		Now:            i.now(),
	})
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return nil, ErrIssuerClosed
	}
	i.pending.Add(1)
	i.mu.RUnlock()

	i.metrics.IncPendingAuditWrites()
	go i.record(context.WithoutCancel(ctx), req, certID)

	i.logger.InfoContext(ctx, "certificate issued",
		"principal", req.Principal.FullName(),
		"target_service", req.TargetService,
		"certificate_id", certID,
		"fingerprint", fingerprint,
		"validity", validity.String(),
	)

	return &IssuedCertificate{
		Certificate:   certString,
		CertificateID: certID,
		SerialNumber:  serial,
		ValidAfter:    time.Unix(int64(cert.ValidAfter), 0).UTC(),
		ValidBefore:   time.Unix(int64(cert.ValidBefore), 0).UTC(),
	}, nil
}

func (i *Issuer) record(ctx context.Context, req IssueRequest, certID string) {
	defer i.pending.Done()
	defer i.metrics.DecPendingAuditWrites()

	conn, err := i.recorder.GetConnection(ctx)
	if err != nil {
		i.logger.ErrorContext(ctx, "issuance not recorded",
			"certificate_id", certID,
			"error", err,
		)
		return
	}
	defer conn.Close()

	conn.Log(ctx, req.Principal, req.SourceIP, req.TargetService, certID)
}

// Close stops accepting issuances and waits for pending audit writes
func (i *Issuer) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	i.pending.Wait()
	return nil
}
