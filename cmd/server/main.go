package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/conclave-games/conclave-server/internal/card"
	"github.com/conclave-games/conclave-server/internal/config"
	"github.com/conclave-games/conclave-server/internal/engine"
	"github.com/conclave-games/conclave-server/internal/eventlog"
	"github.com/conclave-games/conclave-server/internal/gateway"
	"github.com/conclave-games/conclave-server/internal/metrics"
	"github.com/conclave-games/conclave-server/internal/session"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting conclave server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Create context that listens for termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Load the card catalog
	catalog, err := card.LoadCatalog(cfg.Cards.Path)
	if err != nil {
		logger.Fatal("failed to load card catalog",
			zap.String("path", cfg.Cards.Path),
			zap.Error(err),
		)
	}
	logger.Info("card catalog loaded",
		zap.String("path", cfg.Cards.Path),
		zap.Int("cards", catalog.Len()),
	)

	// Open the event log store
	store, err := openEventLog(ctx, cfg.EventLog)
	if err != nil {
		logger.Fatal("failed to open event log", zap.Error(err))
	}
	defer store.Close()
	logger.Info("event log opened", zap.String("backend", cfg.EventLog.Backend))

	// Initialize metrics
	var metricSet *metrics.Set
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metricSet = metrics.New(registry)
		logger.Info("metrics enabled", zap.String("address", cfg.Metrics.Address))
	}

	// Initialize session manager
	sessionMgr := session.NewManager(cfg.Server.LeasePeriod, cfg.Server.MaxSessions, logger)
	logger.Info("session manager initialized",
		zap.Duration("lease_period", cfg.Server.LeasePeriod),
	)
	go sessionMgr.CleanupExpiredSessions(ctx)

	// Initialize rules engine
	eng := engine.NewEngine(logger, catalog, card.NewTokenSet(), store, metricSet)
	logger.Info("rules engine initialized")

	// Initialize websocket gateway
	gw := gateway.New(cfg.Server, eng, sessionMgr, metricSet, logger)

	go func() {
		if gwErr := gw.Start(); gwErr != nil {
			logger.Error("gateway server error", zap.Error(gwErr))
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))
		metricsServer = &http.Server{Addr: cfg.Metrics.Address, Handler: mux}
		go func() {
			logger.Info("starting metrics server", zap.String("address", cfg.Metrics.Address))
			if mErr := metricsServer.ListenAndServe(); mErr != nil && mErr != http.ErrServerClosed {
				logger.Error("metrics server error", zap.Error(mErr))
			}
		}()
	}

	logger.Info("conclave server initialized",
		zap.String("version", version),
		zap.String("gateway_address", cfg.Server.Address),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sessionMgr.CloseAll()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	logger.Info("conclave server stopped")
}

// openEventLog selects the store backend from configuration.
func openEventLog(ctx context.Context, cfg config.EventLogConfig) (eventlog.Store, error) {
	switch cfg.Backend {
	case "memory":
		return eventlog.NewMemoryStore(), nil
	case "sqlite":
		return eventlog.NewSQLiteStore(cfg.Path)
	case "postgres":
		return eventlog.NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown eventlog backend %q", cfg.Backend)
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
