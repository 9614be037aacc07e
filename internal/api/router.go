package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adamscao/sshrecord/internal/api/handlers"
	"github.com/adamscao/sshrecord/internal/api/middleware"
	"github.com/adamscao/sshrecord/internal/config"
)

// Issuer is what the HTTP surface needs from the certificate issuer
type Issuer interface {
	handlers.CertIssuer
	handlers.PublicKeySource
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	issuer Issuer,
	store handlers.ConnectionSource,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	caHandler := handlers.NewCAHandler(issuer)
	certHandler := handlers.NewCertHandler(issuer, logger)
	healthHandler := handlers.NewHealthHandler(store, logger)

	v1 := router.Group("/v1")
	{
		// Public endpoints
		ca := v1.Group("/ca")
		{
			ca.GET("/user", caHandler.GetUserCAPublicKey)
		}

		// Certificate endpoints (require issuer token)
		certs := v1.Group("/certs")
		certs.Use(middleware.IssuerAuth(cfg.Issuer.Token))
		{
			certs.POST("/issue", certHandler.IssueCertificate)
		}
	}

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Router returns the underlying Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
