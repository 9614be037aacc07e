package auth

import (
	"fmt"
	"strings"
)

// Principal is an authenticated identity on whose behalf a certificate is issued.
// Principals are produced by the authentication layer in front of the CA.
type Principal interface {
	// Domain is the trust domain the identity belongs to (e.g. "user")
	Domain() string
	// Name is the identity name within its domain (e.g. "joe")
	Name() string
	// FullName joins domain and name ("user.joe")
	FullName() string
	// Issuer names the authority that authenticated the principal, if known
	Issuer() string
}

// SimplePrincipal is a value implementation of Principal
type SimplePrincipal struct {
	domain      string
	name        string
	credentials string
	issuer      string
}

// NewSimplePrincipal creates a principal for domain and name.
// Both must be non-empty and the name must not contain the domain separator.
func NewSimplePrincipal(domain, name, credentials string) (*SimplePrincipal, error) {
	if domain == "" {
		return nil, fmt.Errorf("principal domain is required")
	}
	if name == "" {
		return nil, fmt.Errorf("principal name is required")
	}
	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("principal name %q must not contain '.'", name)
	}

	return &SimplePrincipal{
		domain:      domain,
		name:        name,
		credentials: credentials,
	}, nil
}

// ParsePrincipal splits a full name such as "user.joe" at its last separator
func ParsePrincipal(fullName, credentials string) (*SimplePrincipal, error) {
	idx := strings.LastIndex(fullName, ".")
	if idx <= 0 || idx == len(fullName)-1 {
		return nil, fmt.Errorf("invalid principal full name %q", fullName)
	}
	return NewSimplePrincipal(fullName[:idx], fullName[idx+1:], credentials)
}

// WithIssuer returns a copy of the principal carrying the given issuer
func (p *SimplePrincipal) WithIssuer(issuer string) *SimplePrincipal {
	cp := *p
	cp.issuer = issuer
	return &cp
}

func (p *SimplePrincipal) Domain() string { return p.domain }

func (p *SimplePrincipal) Name() string { return p.name }

func (p *SimplePrincipal) FullName() string { return p.domain + "." + p.name }

func (p *SimplePrincipal) Issuer() string { return p.issuer }

// Credentials returns the raw credentials the principal authenticated with
func (p *SimplePrincipal) Credentials() string { return p.credentials }

func (p *SimplePrincipal) String() string { return p.FullName() }
