package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"panoptic/internal/platform/config"
	"panoptic/internal/platform/logger"
	"panoptic/internal/platform/metrics"
	"panoptic/internal/platform/ratelimit"
	"panoptic/internal/playback"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// pinger is the health check of the metadata store; nil on the
// filesystem backend.
type pinger interface {
	Ping(ctx context.Context) error
}

// newRouter mounts health, metrics and the playback API behind the shared
// middleware chain. Only the API routes are rate limited.
func newRouter(cfg config.Config, log *slog.Logger, svc *playback.Service, met *metrics.Metrics, health pinger) http.Handler {
	h := playback.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSAllowOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range"},
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.Ping(r.Context()); err != nil {
				log.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if streams, err := svc.ListStreams(r.Context()); err == nil {
				met.SetStreams(len(streams))
			}
		}).ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.PerIP(cfg.RateLimitRPM, time.Minute))
		h.Routes(r)
	})
	return r
}
