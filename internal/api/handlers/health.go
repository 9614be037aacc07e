package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adamscao/sshrecord/internal/recordstore"
)

// ConnectionSource hands out record store connections
type ConnectionSource interface {
	GetConnection(ctx context.Context) (*recordstore.Connection, error)
	CheckTable(ctx context.Context) error
	Table() string
}

// HealthHandler reports whether issuances can currently be recorded
type HealthHandler struct {
	store  ConnectionSource
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store ConnectionSource, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// Health resolves the record store table on every call, bypassing the
// resolution GetConnection caches, so a table dropped after startup shows up here
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	conn, err := h.connect(c.Request.Context())
	if err != nil {
		h.logger.WarnContext(c.Request.Context(), "health check failed", "table", h.store.Table(), "error", err)
		code := "record_store_unavailable"
		if errors.Is(err, recordstore.ErrConfiguration) {
			code = "record_store_misconfigured"
		}
		RespondError(c, http.StatusServiceUnavailable, code, err.Error())
		return
	}
	defer conn.Close()

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"table":  conn.Table(),
	})
}

func (h *HealthHandler) connect(ctx context.Context) (*recordstore.Connection, error) {
	if err := h.store.CheckTable(ctx); err != nil {
		return nil, err
	}
	return h.store.GetConnection(ctx)
}
