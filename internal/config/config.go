// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/greenmobilitypass/tripdetect/internal/controller"
	"github.com/greenmobilitypass/tripdetect/internal/engine"
	"github.com/greenmobilitypass/tripdetect/internal/geocode"
	"github.com/greenmobilitypass/tripdetect/internal/notify"
)

// Detection holds the detection pipeline tunables.
type Detection struct {
	StartDebounce           time.Duration
	StopDebounce            time.Duration
	MinTripDurationMinutes  int
	MinTripDistanceKm       float64
	MinGpsPoints            int
	MaxFixGap               time.Duration
	QueueSize               int
	PersistTimeout          time.Duration
	AccuracyThresholdMeters float32
	AllowDegradedStart      bool
	AutoStart               bool
}

// DetectionFromEnv creates detection configuration from environment
// variables, falling back to the production defaults.
func DetectionFromEnv() Detection {
	startDebounce, _ := time.ParseDuration(getEnvOrDefault("DETECT_START_DEBOUNCE", "15s"))
	stopDebounce, _ := time.ParseDuration(getEnvOrDefault("DETECT_STOP_DEBOUNCE", "20s"))
	minDuration, _ := strconv.Atoi(getEnvOrDefault("DETECT_MIN_TRIP_DURATION_MIN", "3"))
	minDistance, _ := strconv.ParseFloat(getEnvOrDefault("DETECT_MIN_TRIP_DISTANCE_KM", "0.3"), 64)
	minPoints, _ := strconv.Atoi(getEnvOrDefault("DETECT_MIN_GPS_POINTS", "5"))
	maxFixGap, _ := time.ParseDuration(getEnvOrDefault("DETECT_MAX_FIX_GAP", "3m"))
	queueSize, _ := strconv.Atoi(getEnvOrDefault("DETECT_QUEUE_SIZE", "256"))
	persistTimeout, _ := time.ParseDuration(getEnvOrDefault("DETECT_PERSIST_TIMEOUT", "30s"))
	accuracy, _ := strconv.ParseFloat(getEnvOrDefault("DETECT_GPS_ACCURACY_THRESHOLD_M", "50"), 32)

	return Detection{
		StartDebounce:           startDebounce,
		StopDebounce:            stopDebounce,
		MinTripDurationMinutes:  minDuration,
		MinTripDistanceKm:       minDistance,
		MinGpsPoints:            minPoints,
		MaxFixGap:               maxFixGap,
		QueueSize:               queueSize,
		PersistTimeout:          persistTimeout,
		AccuracyThresholdMeters: float32(accuracy),
		AllowDegradedStart:      getEnvOrDefault("DETECT_ALLOW_DEGRADED_START", "false") == "true",
		AutoStart:               getEnvOrDefault("DETECT_AUTO_START", "true") == "true",
	}
}

// ControllerConfig maps the detection tunables onto the controller.
func (d Detection) ControllerConfig() controller.Config {
	return controller.Config{
		Engine: engine.Config{
			StartDebounce:          d.StartDebounce,
			StopDebounce:           d.StopDebounce,
			MinTripDurationMinutes: d.MinTripDurationMinutes,
			MinTripDistanceKm:      d.MinTripDistanceKm,
			MinGpsPoints:           d.MinGpsPoints,
			MaxFixGap:              d.MaxFixGap,
			QueueSize:              d.QueueSize,
			PersistTimeout:         d.PersistTimeout,
		},
		AccuracyThresholdMeters: d.AccuracyThresholdMeters,
		AllowDegradedStart:      d.AllowDegradedStart,
	}
}

// Geocoding holds reverse geocoding configuration.
type Geocoding struct {
	Enabled bool
	Client  geocode.Config
}

// GeocodingFromEnv creates geocoding configuration from environment
// variables. Disabled unless GEOCODE_ENABLED=true.
func GeocodingFromEnv() Geocoding {
	timeout, _ := time.ParseDuration(getEnvOrDefault("GEOCODE_TIMEOUT", "5s"))
	return Geocoding{
		Enabled: os.Getenv("GEOCODE_ENABLED") == "true",
		Client: geocode.Config{
			BaseURL:   getEnvOrDefault("GEOCODE_BASE_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnvOrDefault("GEOCODE_USER_AGENT", "tripdetect/1.0"),
			Timeout:   timeout,
		},
	}
}

// Publishing holds downstream Pub/Sub configuration.
type Publishing struct {
	Enabled bool
	Client  notify.Config
}

// PublishingFromEnv creates publishing configuration from environment
// variables. Disabled unless PUBSUB_ENABLED=true.
func PublishingFromEnv() Publishing {
	return Publishing{
		Enabled: os.Getenv("PUBSUB_ENABLED") == "true",
		Client: notify.Config{
			ProjectID: os.Getenv("PUBSUB_PROJECT_ID"),
			TopicName: getEnvOrDefault("PUBSUB_TOPIC", "trip-detected"),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
