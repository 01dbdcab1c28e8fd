package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strategylib/control-plane/internal/api/handlers"
	"github.com/strategylib/control-plane/internal/api/middleware"
	"github.com/strategylib/control-plane/internal/events"
)

// RouterConfig holds the collaborators NewRouter wires into the mux tree.
// There is no auth layer here: access control is assumed to be enforced
// by a gateway in front of this service.
type RouterConfig struct {
	EnableRateLimit   bool
	EnableCompression bool
	EnableCORS        bool
	EnableMetrics     bool

	RateLimitPerMinute int
	RateLimitBurst     int

	CORSConfig middleware.CORSConfig

	Logger *slog.Logger

	V1Prefix    string
	PageSizeMax int

	Entities    *handlers.EntityHandlers
	Deployments *handlers.DeploymentHandlers
	Swaps       *handlers.SwapHandlers
	Health      *handlers.HealthHandlers
	EventStream *events.Stream
}

// DefaultRouterConfig returns sane defaults for everything but the
// request-scoped handlers, which callers must supply.
func DefaultRouterConfig(logger *slog.Logger) RouterConfig {
	return RouterConfig{
		EnableRateLimit:    true,
		EnableCompression:  true,
		EnableCORS:         true,
		EnableMetrics:      true,
		RateLimitPerMinute: 100,
		RateLimitBurst:     20,
		CORSConfig:         middleware.DefaultCORSConfig(),
		Logger:             logger,
		V1Prefix:           "/api/v1",
		PageSizeMax:        100,
	}
}

// NewRouter builds the control plane's HTTP surface.
//
// The middleware stack is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (if enabled)
//  4. CORS (if enabled)
//  5. Compression (if enabled)
//  6. Route-scoped: rate limiting
//
// @title Strategy Library Control Plane API
// @version 1.0.0
// @description Registry and orchestration API for versioned trading artifacts
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /api/v1
// @schemes http https
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(cfg.Logger))

	if cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
	}
	if cfg.EnableCORS {
		router.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	}
	if cfg.EnableCompression {
		router.Use(middleware.CompressionMiddleware)
	}

	router.HandleFunc("/health", cfg.Health.Live).Methods("GET")
	router.HandleFunc("/health/detailed", cfg.Health.Detailed).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := router.PathPrefix(cfg.V1Prefix).Subrouter()
	if cfg.EnableRateLimit {
		v1.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	}

	setupEntityRoutes(v1, cfg)
	setupDeploymentRoutes(v1, cfg)
	setupSwapRoutes(v1, cfg)

	if cfg.EventStream != nil {
		v1.Handle("/events/stream", cfg.EventStream).Methods("GET")
	}

	setupDocumentationRoutes(router)

	return router
}

func setupEntityRoutes(router *mux.Router, cfg RouterConfig) {
	h := cfg.Entities
	entities := router.PathPrefix("/entities").Subrouter()

	entities.HandleFunc("", h.List).Methods("GET")
	entities.HandleFunc("", h.Create).Methods("POST")
	entities.HandleFunc("/search", h.Search).Methods("GET")
	entities.HandleFunc("/{id}", h.Get).Methods("GET")
	entities.HandleFunc("/{id}", h.Update).Methods("PUT")
	entities.HandleFunc("/{id}", h.Delete).Methods("DELETE")
	entities.HandleFunc("/{id}/dependencies", h.Dependencies).Methods("GET")
	entities.HandleFunc("/{id}/dependencies", h.AddDependency).Methods("POST")
}

func setupDeploymentRoutes(router *mux.Router, cfg RouterConfig) {
	h := cfg.Deployments
	deployments := router.PathPrefix("/deployments").Subrouter()

	deployments.HandleFunc("", h.List).Methods("GET")
	deployments.HandleFunc("", h.Create).Methods("POST")
	deployments.HandleFunc("/{id}", h.Get).Methods("GET")
	deployments.HandleFunc("/{id}/rollback", h.Rollback).Methods("POST")
	deployments.HandleFunc("/entity/{entity_id}/deployments", h.ListByEntity).Methods("GET")
}

func setupSwapRoutes(router *mux.Router, cfg RouterConfig) {
	h := cfg.Swaps
	swaps := router.PathPrefix("/swaps").Subrouter()

	swaps.HandleFunc("", h.List).Methods("GET")
	swaps.HandleFunc("", h.Create).Methods("POST")
	swaps.HandleFunc("/{id}", h.Get).Methods("GET")
	swaps.HandleFunc("/{id}/rollback", h.Rollback).Methods("POST")
	swaps.HandleFunc("/entity/{entity_id}/swaps", h.ListByEntity).Methods("GET")
}

// setupDocumentationRoutes serves the hand-authored OpenAPI document and
// the Swagger UI that renders it.
func setupDocumentationRoutes(router *mux.Router) {
	router.PathPrefix("/docs").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.json")))

	router.HandleFunc("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "docs/openapi.json")
	}).Methods("GET")
}
