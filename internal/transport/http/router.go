// Package http assembles the engine's HTTP surface: the health root,
// Prometheus metrics, and the four feature routers.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"governa/internal/platform/metrics"
	"governa/internal/platform/middleware"
	"governa/internal/transport/http/json"
)

// Registrar is anything that can mount its routes on the router. Each
// feature handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

// Config wires the router's dependencies.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Version string

	// FeedAuth guards the HR feed endpoint; nil disables the guard (tests).
	FeedAuth func(http.Handler) http.Handler

	Lifecycle  Registrar
	Identities Registrar
	Requests   Registrar
	Audit      Registrar
	Connectors Registrar
}

// NewRouter builds the chi router with the standard middleware chain.
func NewRouter(cfg Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		json.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "IGA engine running",
			"version": cfg.Version,
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The HR feed is a machine client behind its own bearer token. The
	// client-facing routers carry no end-user auth; that stays with the
	// client's own front door.
	r.Group(func(feed chi.Router) {
		if cfg.FeedAuth != nil {
			feed.Use(cfg.FeedAuth)
		}
		cfg.Lifecycle.Register(feed)
	})
	cfg.Identities.Register(r)
	cfg.Requests.Register(r)
	cfg.Audit.Register(r)
	cfg.Connectors.Register(r)

	return r
}
