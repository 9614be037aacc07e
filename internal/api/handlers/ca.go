package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PublicKeySource exposes the CA public key
type PublicKeySource interface {
	PublicKey() string
}

// CAHandler handles CA-related requests
type CAHandler struct {
	source PublicKeySource
}

// NewCAHandler creates a new CA handler
func NewCAHandler(source PublicKeySource) *CAHandler {
	return &CAHandler{source: source}
}

// GetUserCAPublicKey returns the CA public key
// GET /v1/ca/user
func (h *CAHandler) GetUserCAPublicKey(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(h.source.PublicKey()))
}
