// Package main provides the entrypoint for the trip detection service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/api"
	"github.com/greenmobilitypass/tripdetect/internal/api/handler"
	"github.com/greenmobilitypass/tripdetect/internal/api/middleware"
	"github.com/greenmobilitypass/tripdetect/internal/config"
	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/database"
	"github.com/greenmobilitypass/tripdetect/internal/engine"
	"github.com/greenmobilitypass/tripdetect/internal/geocode"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
	"github.com/greenmobilitypass/tripdetect/internal/notify"
	"github.com/greenmobilitypass/tripdetect/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tripdetect"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting trip detection service")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize HTTP metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	engineMetrics, err := engine.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize engine metrics")
		os.Exit(1)
	}

	// Journey store: Postgres by default, in-memory for local development.
	var (
		store      journey.Repository
		storeReady handler.ReadyChecker
	)
	if os.Getenv("STORE") == "memory" {
		store = journey.NewInMemoryRepository()
		log.Warn().Msg("using in-memory journey store, journeys are lost on restart")
	} else {
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to ensure database schema")
		}
		store = journey.NewPostgresRepository(pool)
		storeReady = pool.Ping
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")
	}

	// Reverse geocoding (optional)
	var geocoder engine.Geocoder
	if geoCfg := config.GeocodingFromEnv(); geoCfg.Enabled {
		geocoder = geocode.New(geoCfg.Client, log)
		log.Info().Str("base_url", geoCfg.Client.BaseURL).Msg("reverse geocoding enabled")
	}

	// Downstream trip publishing (optional)
	var publisher controller.TripPublisher
	if pubCfg := config.PublishingFromEnv(); pubCfg.Enabled {
		p, err := notify.NewPublisher(ctx, pubCfg.Client, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize trip publisher")
		}
		defer p.Close()
		publisher = p
		log.Info().
			Str("project", pubCfg.Client.ProjectID).
			Str("topic", pubCfg.Client.TopicName).
			Msg("trip publishing enabled")
	}

	// Detection controller
	detectCfg := config.DetectionFromEnv()
	ctl := controller.New(detectCfg.ControllerConfig(), controller.Deps{
		Logger:      log,
		Store:       store,
		Permissions: controller.StaticPermissions{Location: true, ActivityRecognition: true, Notifications: true},
		Geocoder:    geocoder,
		Metrics:     engineMetrics,
		Publisher:   publisher,
	})

	if detectCfg.AutoStart {
		if err := ctl.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start detection")
		}
		log.Info().Msg("detection pipeline started")
	}

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:        Version,
		BuildTime:      BuildTime,
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        httpMetrics,
		Controller:     ctl,
		JourneyService: journey.NewService(store),
		Permissions:    controller.StaticPermissions{Location: true, ActivityRecognition: true, Notifications: true},
		StoreReady:     storeReady,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop the pipeline last so in-flight persistence can finish.
	if ctl.IsRunning() {
		if err := ctl.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("detection pipeline shutdown failed")
		}
	}

	log.Info().Msg("stopped")
}
