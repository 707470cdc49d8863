package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"panoptic/internal/platform/config"
	"panoptic/internal/platform/logger"
	"panoptic/internal/platform/metrics"
	"panoptic/internal/platform/postgres"
	"panoptic/internal/playback"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backends playback.Backends
		store    *postgres.Store
	)
	switch cfg.CatalogBackend {
	case config.BackendPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.DSN(), log); err != nil {
				log.Error("database migration failed", "error", err)
				os.Exit(1)
			}
		}
		store, err = postgres.Connect(ctx, postgres.Options{
			DSN:            cfg.Database.DSN(),
			MaxConns:       int32(cfg.Database.MaxConns),
			ConnectRetries: cfg.Database.ConnectRetries,
			RetryDelay:     cfg.Database.RetryDelay,
			QueryRetries:   2,
		}, log)
		if err != nil {
			log.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		backends = playback.Backends{
			Catalog:         store,
			Streams:         store,
			Recordings:      store,
			DetectorConfigs: store,
		}
	default:
		fsCatalog := playback.NewFilesystemCatalog(cfg.RecordingsDir)
		backends = playback.Backends{Catalog: fsCatalog, Streams: fsCatalog}
	}

	svc := playback.NewService(playback.Config{
		RecordingsDir:   cfg.RecordingsDir,
		SegmentDuration: cfg.SegmentDuration,
	}, backends)
	met := metrics.New()
	var health pinger
	if store != nil {
		health = store
	}
	r := newRouter(cfg, log, svc, met, health)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"catalog_backend", cfg.CatalogBackend,
		"recordings_dir", cfg.RecordingsDir,
		"segment_duration", cfg.SegmentDuration.String(),
		"log_level", cfg.LogLevel,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return
	}

	log.Info("server stopped")
}
