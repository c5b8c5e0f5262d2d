package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthCheckTimeout bounds each dependency probe on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID, s.accessLog, s.recoverPanics, s.cors)
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.With(s.requireAuth).Post("/ws-ticket", s.handleWSTicket)
	})

	// WebSocket (auth via ticket, validated in handler)
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Route("/gadgets", func(r chi.Router) {
		r.Get("/", s.handleListGadgets)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/", s.handleCreateGadget)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetGadget)
				r.Patch("/", s.handleUpdateGadget)
				r.Delete("/", s.handleDecommissionGadget)
				r.Post("/self-destruct", s.handleSelfDestruct)
			})
		})
	})

	r.With(s.requireAuth).Get("/audit-logs", s.handleListAuditLogs)

	return r
}

// wsPath returns the configured WebSocket path, defaulting to /ws.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the server and dependency health.
// A failing database makes the service unavailable; MQTT is informational.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := http.StatusOK

	if s.database != nil {
		if err := probe(r.Context(), s.database); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}
	if s.mqtt != nil {
		if err := probe(r.Context(), s.mqtt); err != nil {
			checks["mqtt"] = err.Error()
		} else {
			checks["mqtt"] = "ok"
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unavailable"
	}

	respond(w, status, map[string]any{
		"status":  state,
		"version": s.version,
		"checks":  checks,
	})
}

func probe(ctx context.Context, hc HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return hc.HealthCheck(ctx)
}
