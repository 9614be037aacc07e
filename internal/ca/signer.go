package ca

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// clock skew tolerated on the validity window start
const backdate = time.Minute

// SignRequest represents a certificate signing request
type SignRequest struct {
	PublicKey      string
	Principal      string
	KeyID          string
	ValidityPeriod time.Duration
	SerialNumber   uint64
	Now            time.Time
}

// SignCertificate signs an SSH user certificate and returns it in
// authorized_keys format along with the parsed certificate
func SignCertificate(kp *KeyPair, req *SignRequest) (string, *ssh.Certificate, error) {
	userPubKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(req.PublicKey))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	if _, ok := userPubKey.(*ssh.Certificate); ok {
		return "", nil, fmt.Errorf("public key must not be a certificate")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	cert := &ssh.Certificate{
		Key:             userPubKey,
		Serial:          req.SerialNumber,
		CertType:        ssh.UserCert,
		KeyId:           req.KeyID,
		ValidPrincipals: []string{req.Principal},
		ValidAfter:      uint64(now.Add(-backdate).Unix()),
		ValidBefore:     uint64(now.Add(req.ValidityPeriod).Unix()),
		Permissions: ssh.Permissions{
			Extensions: map[string]string{
				"permit-agent-forwarding": "",
				"permit-port-forwarding":  "",
				"permit-pty":              "",
				"permit-user-rc":          "",
			},
		},
	}

	if err := cert.SignCert(rand.Reader, kp.signer); err != nil {
		return "", nil, fmt.Errorf("failed to sign certificate: %w", err)
	}

	// trailing newline would break JSON consumers
	return string(bytes.TrimSpace(ssh.MarshalAuthorizedKey(cert))), cert, nil
}

// NewSerial returns a random non-zero certificate serial number
func NewSerial() (uint64, error) {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to generate serial: %w", err)
		}
		if s := binary.BigEndian.Uint64(b[:]); s != 0 {
			return s, nil
		}
	}
}

// ParseCertificate parses an SSH certificate
func ParseCertificate(certData string) (*ssh.Certificate, error) {
	pubKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(certData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	cert, ok := pubKey.(*ssh.Certificate)
	if !ok {
		return nil, fmt.Errorf("not a certificate")
	}

	return cert, nil
}

// ValidateCertificate verifies that a certificate was signed by the CA
func ValidateCertificate(cert *ssh.Certificate, caPubKey ssh.PublicKey) error {
	if len(cert.ValidPrincipals) == 0 {
		return fmt.Errorf("certificate has no principals")
	}
	// CheckCert only verifies the signature against the key embedded in the
	// certificate, so the authority has to be matched here
	if cert.SignatureKey == nil || !bytes.Equal(cert.SignatureKey.Marshal(), caPubKey.Marshal()) {
		return fmt.Errorf("certificate validation failed: not signed by this CA")
	}

	checker := &ssh.CertChecker{}
	if err := checker.CheckCert(cert.ValidPrincipals[0], cert); err != nil {
		return fmt.Errorf("certificate validation failed: %w", err)
	}

	return nil
}
