package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamscao/sshrecord/internal/auth"
	"github.com/adamscao/sshrecord/internal/config"
)

func newValidator(services ...string) *Validator {
	return NewValidator(config.PolicyConfig{
		DefaultValidity: "8h",
		MaxValidity:     "24h",
		AllowedServices: services,
	})
}

func TestValidateIssueRequest_Validity(t *testing.T) {
	v := newValidator()
	p, err := auth.NewSimplePrincipal("user", "joe", "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		requested time.Duration
		want      time.Duration
	}{
		{"zero uses default", 0, 8 * time.Hour},
		{"negative uses default", -time.Hour, 8 * time.Hour},
		{"within bounds", 2 * time.Hour, 2 * time.Hour},
		{"capped at max", 72 * time.Hour, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.ValidateIssueRequest(p, "athenz.api", tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateIssueRequest_Principal(t *testing.T) {
	v := newValidator()

	_, err := v.ValidateIssueRequest(nil, "athenz.api", 0)
	assert.ErrorIs(t, err, ErrPrincipalRequired)
}

func TestValidateIssueRequest_Allowlist(t *testing.T) {
	v := newValidator("athenz.api")
	p, err := auth.NewSimplePrincipal("user", "joe", "")
	require.NoError(t, err)

	_, err = v.ValidateIssueRequest(p, "athenz.api", 0)
	assert.NoError(t, err)

	_, err = v.ValidateIssueRequest(p, "athenz.ui", 0)
	assert.ErrorIs(t, err, ErrServiceNotAllowed)

	_, err = v.ValidateIssueRequest(p, "", 0)
	assert.ErrorIs(t, err, ErrServiceNotAllowed)
}

func TestValidator_Bounds(t *testing.T) {
	v := newValidator()
	assert.Equal(t, 8*time.Hour, v.GetDefaultValidity())
	assert.Equal(t, 24*time.Hour, v.GetMaxValidity())
}
