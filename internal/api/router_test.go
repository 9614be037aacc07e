package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/adamscao/sshrecord/internal/api/middleware"
	"github.com/adamscao/sshrecord/internal/ca"
	"github.com/adamscao/sshrecord/internal/config"
	"github.com/adamscao/sshrecord/internal/db/memory"
	"github.com/adamscao/sshrecord/internal/logger"
	"github.com/adamscao/sshrecord/internal/metrics"
	"github.com/adamscao/sshrecord/internal/models"
	"github.com/adamscao/sshrecord/internal/policy"
	"github.com/adamscao/sshrecord/internal/recordstore"
)

const (
	testTable = "Athenz-ZTS-Table"
	testToken = "front-service-token"
)

type testServer struct {
	server *Server
	issuer *ca.Issuer
	engine *memory.Store
}

func newTestServer(t *testing.T, table string, services ...string) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":0"},
		Policy: config.PolicyConfig{DefaultValidity: "8h", MaxValidity: "24h", AllowedServices: services},
		Issuer: config.IssuerConfig{Token: testToken},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := memory.New(testTable)
	store := recordstore.New(engine, table, recordstore.WithMetrics(m))

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	kp, err := ca.NewKeyPair(priv)
	require.NoError(t, err)
	issuer := ca.NewIssuer(kp, policy.NewValidator(cfg.Policy), store, ca.WithIssuerMetrics(m))
	t.Cleanup(func() { issuer.Close() })

	return &testServer{
		server: NewServer(cfg, issuer, store, reg, logger.Discard()),
		issuer: issuer,
		engine: engine,
	}
}

func userKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return string(ssh.MarshalAuthorizedKey(sshPub))
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)
	return w
}

func issueRequest(t *testing.T, token string, body map[string]string) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/certs/issue", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.IssuerTokenHeader, token)
	}
	return req
}

func TestIssue_RecordsIssuance(t *testing.T) {
	ts := newTestServer(t, testTable)

	w := ts.do(issueRequest(t, testToken, map[string]string{
		"principal":      "user.joe",
		"public_key":     userKey(t),
		"target_service": "athenz.api",
		"source_ip":      "10.11.12.13",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var issued ca.IssuedCertificate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	cert, err := ca.ParseCertificate(issued.Certificate)
	require.NoError(t, err)
	assert.Equal(t, []string{"joe"}, cert.ValidPrincipals)

	require.NoError(t, ts.issuer.Close())
	records, err := ts.engine.ListRecords(context.Background(), testTable, models.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user.joe", records[0].Principal)
	assert.Equal(t, "10.11.12.13", records[0].SourceIP)
	assert.Equal(t, issued.CertificateID, records[0].CertificateID)
}

func TestIssue_MisconfiguredTableStillIssues(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(issueRequest(t, testToken, map[string]string{
		"principal":      "user.joe",
		"public_key":     userKey(t),
		"target_service": "athenz.api",
	}))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssue_TokenRequired(t *testing.T) {
	ts := newTestServer(t, testTable)
	body := map[string]string{"principal": "user.joe", "public_key": userKey(t), "target_service": "athenz.api"}

	assert.Equal(t, http.StatusUnauthorized, ts.do(issueRequest(t, "", body)).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(issueRequest(t, "wrong", body)).Code)

	req := issueRequest(t, "", body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	assert.Equal(t, http.StatusOK, ts.do(req).Code)
}

func TestIssue_BadRequests(t *testing.T) {
	ts := newTestServer(t, testTable, "athenz.api")
	key := userKey(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing fields", map[string]string{"principal": "user.joe"}, http.StatusBadRequest},
		{"bad principal", map[string]string{"principal": "joe", "public_key": key, "target_service": "athenz.api"}, http.StatusBadRequest},
		{"bad validity", map[string]string{"principal": "user.joe", "public_key": key, "target_service": "athenz.api", "requested_validity": "forever"}, http.StatusBadRequest},
		{"bad key", map[string]string{"principal": "user.joe", "public_key": "nope", "target_service": "athenz.api"}, http.StatusBadRequest},
		{"service not allowed", map[string]string{"principal": "user.joe", "public_key": key, "target_service": "athenz.ui"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ts.do(issueRequest(t, testToken, tt.body)).Code)
		})
	}
}

func TestGetUserCAPublicKey(t *testing.T) {
	ts := newTestServer(t, testTable)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/v1/ca/user", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ts.issuer.PublicKey(), w.Body.String())
}

func TestHealth(t *testing.T) {
	ok := newTestServer(t, testTable)
	w := ok.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testTable)

	for _, table := range []string{"", "Unknown-Table"} {
		bad := newTestServer(t, table)
		w := bad.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "record_store_misconfigured")
	}
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, testTable)
	ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "sshrecord_connections_total"))
}

func TestHealth_TableDroppedAfterValidation(t *testing.T) {
	ts := newTestServer(t, testTable)
	require.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	ts.engine.DropTable(testTable)

	w := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "record_store_misconfigured")
}
