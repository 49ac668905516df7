package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/platform/middleware"
)

const requestTimeout = 30 * time.Second

// Registrar is the common shape of the per-domain handlers.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig wires the handlers and cross-cutting middleware together.
type RouterConfig struct {
	Logger    *slog.Logger
	Validator middleware.JWTValidator

	// Public mounts outside the auth gate (registration, token issuance).
	Public []Registrar
	// Protected mounts behind the JWT gate.
	Protected []Registrar
}

// NewRouter builds the full HTTP surface: health and metrics endpoints,
// public auth routes, and the authenticated API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		for _, h := range cfg.Public {
			h.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, logger))
		r.Use(middleware.Device)
		for _, h := range cfg.Protected {
			h.Register(r)
		}
	})

	return r
}
