// Package api provides the HTTP API for the trip detection service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/api/handler"
	"github.com/greenmobilitypass/tripdetect/internal/api/middleware"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version        string
	BuildTime      string
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	Controller     *controller.Controller
	JourneyService *journey.Service
	Permissions    controller.PermissionChecker
	StoreReady     handler.ReadyChecker
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tripdetect"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON request bodies

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Controller, cfg.StoreReady)
	journeysHandler := handler.NewJourneysHandler(cfg.JourneyService)
	detectionHandler := handler.NewDetectionHandler(cfg.Controller, cfg.Permissions)
	ingestHandler := handler.NewIngestHandler(cfg.Controller)
	eventsHandler := handler.NewEventsHandler(cfg.Controller)

	ingestRateLimit := middleware.RateLimitByIP(middleware.IngestRateLimit)     // 600 req/min
	controlRateLimit := middleware.RateLimitByIP(middleware.ControlRateLimit)   // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Journey review endpoints
		r.Route("/journeys", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", journeysHandler.ListJourneys)
			r.Post("/", journeysHandler.CreateJourney)
			r.Route("/{journeyId}", func(r chi.Router) {
				r.Get("/", journeysHandler.GetJourney)
				r.Patch("/", journeysHandler.UpdateJourney)
				r.Delete("/", journeysHandler.DeleteJourney)
				r.Post("/sent", journeysHandler.MarkJourneySent)
			})
		})

		// Detection lifecycle and debug endpoints
		r.Route("/detection", func(r chi.Router) {
			r.Use(controlRateLimit)
			r.Get("/", detectionHandler.Status)
			r.Post("/start", detectionHandler.Start)
			r.Post("/stop", detectionHandler.Stop)
			r.Put("/debug", detectionHandler.SetDebugMode)
			r.Post("/simulate", detectionHandler.SimulateTrip)
			r.Get("/permissions", detectionHandler.Permissions)
		})

		// Sensor ingest endpoints - high traffic during a trip
		r.Route("/ingest", func(r chi.Router) {
			r.Use(ingestRateLimit)
			r.Post("/activity", ingestHandler.IngestActivity)
			r.Post("/location", ingestHandler.IngestLocation)
		})

		// Event stream (SSE)
		r.Get("/events", eventsHandler.Stream)
	})

	return r
}
