package models

import "time"

// SSHRecord represents one SSH certificate issuance written to the record store
type SSHRecord struct {
	ID              string    `json:"id"`
	Principal       string    `json:"principal"`
	PrincipalDomain string    `json:"principal_domain"`
	PrincipalName   string    `json:"principal_name"`
	Issuer          string    `json:"issuer,omitempty"`
	SourceIP        string    `json:"source_ip"`
	TargetService   string    `json:"target_service"`
	CertificateID   string    `json:"certificate_id"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"` // zero when records never expire
}

// Expired reports whether the record carries an expiry earlier than t
func (r *SSHRecord) Expired(t time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(t)
}

// RecordFilter narrows admin listings of issuance records
type RecordFilter struct {
	Principal     string
	TargetService string
	Limit         int
}

// Matches reports whether the record passes the filter's field constraints
func (f RecordFilter) Matches(r *SSHRecord) bool {
	if f.Principal != "" && r.Principal != f.Principal {
		return false
	}
	if f.TargetService != "" && r.TargetService != f.TargetService {
		return false
	}
	return true
}

// Record field names shared by the key-value style engines
const (
	FieldID              = "id"
	FieldPrincipal       = "principal"
	FieldPrincipalDomain = "principal_domain"
	FieldPrincipalName   = "principal_name"
	FieldIssuer          = "issuer"
	FieldSourceIP        = "source_ip"
	FieldTargetService   = "target_service"
	FieldCertificateID   = "certificate_id"
	FieldIssuedAt        = "issued_at"
	FieldExpiresAt       = "expires_at"
)
