// Package server assembles the HTTP router and server.
package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strikemap-systems/strikemap/internal/config"
	"github.com/strikemap-systems/strikemap/internal/handlers"
	"github.com/strikemap-systems/strikemap/internal/middleware"
)

// NewRouter builds the route table and wraps it with the middleware chain.
func NewRouter(h *handlers.Handler, ws *handlers.WSHandler, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.HandleFunc("GET /api/attacks/today", h.AttacksToday)
	mux.HandleFunc("GET /api/attacks/recent", h.AttacksRecent)
	mux.HandleFunc("GET /api/stats/top-countries", h.TopCountries)
	mux.HandleFunc("GET /api/stats/attack-types", h.AttackTypes)
	mux.HandleFunc("GET /api/country/{code}", h.CountryDetail)
	mux.Handle("GET /ws/attacks", ws)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// New creates the HTTP server with the configured timeouts.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
