package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/sshrecord/internal/auth"
	"github.com/adamscao/sshrecord/internal/ca"
	"github.com/adamscao/sshrecord/internal/policy"
)

// CertIssuer signs certificates
type CertIssuer interface {
	Issue(ctx context.Context, req ca.IssueRequest) (*ca.IssuedCertificate, error)
}

// CertHandler handles certificate issuance
type CertHandler struct {
	issuer CertIssuer
	logger *slog.Logger
}

// NewCertHandler creates a new certificate handler
func NewCertHandler(issuer CertIssuer, logger *slog.Logger) *CertHandler {
	return &CertHandler{issuer: issuer, logger: logger}
}

// IssueRequest is sent by the front service after it authenticated the principal
type IssueRequest struct {
	Principal         string `json:"principal" binding:"required"`
	PrincipalIssuer   string `json:"principal_issuer"`
	PublicKey         string `json:"public_key" binding:"required"`
	TargetService     string `json:"target_service" binding:"required"`
	SourceIP          string `json:"source_ip"`
	RequestedValidity string `json:"requested_validity"`
}

// IssueCertificate handles certificate issuance
// POST /v1/certs/issue
func (h *CertHandler) IssueCertificate(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	principal, err := auth.ParsePrincipal(req.Principal, "")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_principal", err.Error())
		return
	}
	if req.PrincipalIssuer != "" {
		principal = principal.WithIssuer(req.PrincipalIssuer)
	}

	var requestedValidity time.Duration
	if req.RequestedValidity != "" {
		requestedValidity, err = time.ParseDuration(req.RequestedValidity)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_validity", "Invalid validity format")
			return
		}
	}

	// the front service reports the end user's address; fall back to the caller
	sourceIP := req.SourceIP
	if sourceIP == "" {
		sourceIP = GetClientIP(c)
	}

	issued, err := h.issuer.Issue(c.Request.Context(), ca.IssueRequest{
		Principal:     principal,
		PublicKey:     req.PublicKey,
		SourceIP:      sourceIP,
		TargetService: req.TargetService,
		Validity:      requestedValidity,
	})
	switch {
	case err == nil:
	case errors.Is(err, policy.ErrPrincipalRequired), errors.Is(err, policy.ErrServiceNotAllowed):
		RespondError(c, http.StatusForbidden, "policy_violation", err.Error())
		return
	case errors.Is(err, ca.ErrIssuerClosed):
		RespondError(c, http.StatusServiceUnavailable, "shutting_down", "Issuer is shutting down")
		return
	default:
		h.logger.ErrorContext(c.Request.Context(), "certificate issuance failed",
			"principal", principal.FullName(),
			"error", err,
		)
		RespondError(c, http.StatusBadRequest, "issue_failed", "Failed to issue certificate")
		return
	}

	c.JSON(http.StatusOK, issued)
}
