// Command gatekeeper runs the parking gate admission controller: the
// device scan endpoints, the operator dashboard API, and the background
// queue pruner, backed by a single SQLite database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/auth"
	"github.com/tranbichdiep/smart-parking-management/internal/config"
	"github.com/tranbichdiep/smart-parking-management/internal/db"
	"github.com/tranbichdiep/smart-parking-management/internal/httpapi"
	"github.com/tranbichdiep/smart-parking-management/internal/metrics"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/service"
	"github.com/tranbichdiep/smart-parking-management/internal/parking/store/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEKEEPER_CONFIG"), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting gatekeeper", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, database, db.SeedDevOptions{}); err != nil {
			logger.Error("seed dev data", "error", err)
			os.Exit(1)
		}
	}

	writer := db.NewWorker(database)
	defer writer.Close()

	cards := sqlite.NewCardStore(database, writer)
	transactions := sqlite.NewTransactionStore(database, writer)
	pending := sqlite.NewPendingActionStore(database, writer)
	settings := sqlite.NewSettingsStore(database)
	operators := sqlite.NewOperatorStore(database)

	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		logger.Error("create snapshot dir", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}
	camera := service.NewCamera(service.CameraConfig{
		SnapshotDir:     cfg.SnapshotDir,
		PlaceholderPath: cfg.PlaceholderPath,
		EntryURL:        cfg.Camera.EntryURL,
		ExitURL:         cfg.Camera.ExitURL,
		Timeout:         cfg.CameraTimeout(),
		TestMode:        cfg.Camera.TestMode,
	}, logger.With("component", "camera"))

	gate := service.NewGateService(service.GateDeps{
		Cards:        cards,
		Transactions: transactions,
		Pending:      pending,
		Settings:     settings,
		Logger:       logger.With("component", "gate"),
	})
	decisions := service.NewDecisionService(service.DecisionDeps{
		Cards:        cards,
		Transactions: transactions,
		Pending:      pending,
		Camera:       camera,
		Logger:       logger.With("component", "decisions"),
		PendingTTL:   cfg.PendingTTL(),
	})
	cardAdmin := service.NewCardService(cards, logger.With("component", "cards"))

	pruner := service.NewStalePruner(pending, service.PrunerConfig{
		AbandonAfter: cfg.AbandonAfter(),
		Interval:     cfg.PruneInterval(),
	}, logger.With("component", "pruner"))
	pruner.Start(ctx)
	defer pruner.Stop()

	metrics.Register()

	sessions := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL())
	server := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger.With("component", "http"),
		Addr:        cfg.HTTPAddr,
		DeviceToken: cfg.DeviceToken,
		Gate:        gate,
		Decisions:   decisions,
		CardAdmin:   cardAdmin,
		Operators:   operators,
		Auth:        sessions,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("gatekeeper stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
