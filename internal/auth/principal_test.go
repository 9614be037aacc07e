package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimplePrincipal(t *testing.T) {
	p, err := NewSimplePrincipal("user", "joe", "creds")
	require.NoError(t, err)

	assert.Equal(t, "user", p.Domain())
	assert.Equal(t, "joe", p.Name())
	assert.Equal(t, "user.joe", p.FullName())
	assert.Equal(t, "creds", p.Credentials())
	assert.Empty(t, p.Issuer())
}

func TestNewSimplePrincipal_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		user   string
	}{
		{"empty domain", "", "joe"},
		{"empty name", "user", ""},
		{"dotted name", "user", "joe.smith"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimplePrincipal(tt.domain, tt.user, "")
			assert.Error(t, err)
		})
	}
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal("sports.api.backend", "")
	require.NoError(t, err)
	assert.Equal(t, "sports.api", p.Domain())
	assert.Equal(t, "backend", p.Name())

	for _, bad := range []string{"", "joe", ".joe", "user."} {
		_, err := ParsePrincipal(bad, "")
		assert.Error(t, err, bad)
	}
}

func TestWithIssuer(t *testing.T) {
	p, err := NewSimplePrincipal("user", "joe", "")
	require.NoError(t, err)

	q := p.WithIssuer("sys.auth.zms")
	assert.Equal(t, "sys.auth.zms", q.Issuer())
	assert.Empty(t, p.Issuer())
	assert.Equal(t, p.FullName(), q.FullName())
}

func TestVerifyToken(t *testing.T) {
	assert.True(t, VerifyToken("secret", "secret"))
	assert.False(t, VerifyToken("secret", "other"))
	assert.False(t, VerifyToken("", ""))
	assert.NotEqual(t, "secret", HashToken("secret"))
}
