package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adamscao/sshrecord/internal/api"
	"github.com/adamscao/sshrecord/internal/ca"
	"github.com/adamscao/sshrecord/internal/config"
	"github.com/adamscao/sshrecord/internal/logger"
	"github.com/adamscao/sshrecord/internal/metrics"
	"github.com/adamscao/sshrecord/internal/policy"
	"github.com/adamscao/sshrecord/internal/recordstore"
	"github.com/adamscao/sshrecord/internal/storage"
)

var (
	// Version information (set via ldflags)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/ssh-ca/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SSH CA Server\n")
		fmt.Printf("Version:    %s\n", Version)
		fmt.Printf("Commit:     %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "caserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.Info("starting SSH CA server", "version", Version, "commit", Commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	log.Info("opening record store", "engine", cfg.RecordStore.Engine, "table", cfg.RecordStore.Table)
	engine, err := storage.Open(ctx, cfg.RecordStore)
	if err != nil {
		return err
	}
	defer engine.Close()

	store := storage.NewRecordStore(engine, cfg.RecordStore,
		recordstore.WithLogger(log),
		recordstore.WithMetrics(m),
	)

	// refuse to start when issuances cannot be recorded
	conn, err := store.GetConnection(ctx)
	if err != nil {
		return fmt.Errorf("record store check: %w", err)
	}
	conn.Close()

	keyPair, err := ca.LoadOrGenerateKeyPair(cfg.CA)
	if err != nil {
		return fmt.Errorf("load CA key pair: %w", err)
	}
	log.Info("CA key pair loaded", "type", keyPair.KeyType)

	issuer := ca.NewIssuer(keyPair, policy.NewValidator(cfg.Policy), store,
		ca.WithIssuerLogger(log),
		ca.WithIssuerMetrics(m),
	)

	server := api.NewServer(cfg, issuer, store, reg, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "addr", cfg.Server.ListenAddr)
		errCh <- server.Run()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
	}

	// drain issuance records before the engine closes
	issuer.Close()
	store.ClearConnections()
	log.Info("server stopped")
	return err
}
