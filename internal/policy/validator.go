package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/adamscao/sshrecord/internal/auth"
	"github.com/adamscao/sshrecord/internal/config"
)

var (
	// ErrPrincipalRequired is returned when a request carries no principal
	ErrPrincipalRequired = errors.New("principal is required")
	// ErrServiceNotAllowed is returned for a target service outside the allowlist
	ErrServiceNotAllowed = errors.New("target service is not allowed")
)

// Validator validates certificate signing requests against policy
type Validator struct {
	defaultValidity time.Duration
	maxValidity     time.Duration
	allowed         map[string]struct{}
}

// NewValidator creates a new policy validator. An empty allowed_services
// list permits every target service.
func NewValidator(cfg config.PolicyConfig) *Validator {
	v := &Validator{}
	v.defaultValidity, _ = time.ParseDuration(cfg.DefaultValidity)
	v.maxValidity, _ = time.ParseDuration(cfg.MaxValidity)
	if len(cfg.AllowedServices) > 0 {
		v.allowed = make(map[string]struct{}, len(cfg.AllowedServices))
		for _, s := range cfg.AllowedServices {
			v.allowed[s] = struct{}{}
		}
	}
	return v
}

// ValidateIssueRequest checks the principal and target service and returns
// the validity period the certificate will be signed with
func (v *Validator) ValidateIssueRequest(principal auth.Principal, targetService string, requestedValidity time.Duration) (time.Duration, error) {
	if principal == nil || principal.FullName() == "" {
		return 0, ErrPrincipalRequired
	}

	if targetService == "" {
		return 0, fmt.Errorf("%w: empty target service", ErrServiceNotAllowed)
	}
	if v.allowed != nil {
		if _, ok := v.allowed[targetService]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrServiceNotAllowed, targetService)
		}
	}

	return v.adjustValidity(requestedValidity), nil
}

// adjustValidity adjusts the requested validity to comply with policy
func (v *Validator) adjustValidity(requested time.Duration) time.Duration {
	// If requested is zero or negative, use default
	if requested <= 0 {
		return v.defaultValidity
	}

	// If requested exceeds max, cap at max
	if requested > v.maxValidity {
		return v.maxValidity
	}

	return requested
}

// GetMaxValidity returns the maximum allowed validity period
func (v *Validator) GetMaxValidity() time.Duration {
	return v.maxValidity
}

// GetDefaultValidity returns the default validity period
func (v *Validator) GetDefaultValidity() time.Duration {
	return v.defaultValidity
}
