package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greenmobilitypass/tripdetect/internal/config"
)

func TestDetectionFromEnv_Defaults(t *testing.T) {
	d := config.DetectionFromEnv()

	assert.Equal(t, 15*time.Second, d.StartDebounce)
	assert.Equal(t, 20*time.Second, d.StopDebounce)
	assert.Equal(t, 3, d.MinTripDurationMinutes)
	assert.InDelta(t, 0.3, d.MinTripDistanceKm, 1e-9)
	assert.Equal(t, 5, d.MinGpsPoints)
	assert.Equal(t, 3*time.Minute, d.MaxFixGap)
	assert.EqualValues(t, 50, d.AccuracyThresholdMeters)
	assert.False(t, d.AllowDegradedStart)
	assert.True(t, d.AutoStart)
}

func TestDetectionFromEnv_Overrides(t *testing.T) {
	t.Setenv("DETECT_START_DEBOUNCE", "5s")
	t.Setenv("DETECT_MIN_TRIP_DISTANCE_KM", "1.5")
	t.Setenv("DETECT_GPS_ACCURACY_THRESHOLD_M", "25")
	t.Setenv("DETECT_ALLOW_DEGRADED_START", "true")
	t.Setenv("DETECT_AUTO_START", "false")

	d := config.DetectionFromEnv()

	assert.Equal(t, 5*time.Second, d.StartDebounce)
	assert.InDelta(t, 1.5, d.MinTripDistanceKm, 1e-9)
	assert.EqualValues(t, 25, d.AccuracyThresholdMeters)
	assert.True(t, d.AllowDegradedStart)
	assert.False(t, d.AutoStart)
}

func TestControllerConfigMapping(t *testing.T) {
	d := config.Detection{
		StartDebounce:           7 * time.Second,
		StopDebounce:            9 * time.Second,
		MinTripDurationMinutes:  2,
		MinTripDistanceKm:       0.5,
		AccuracyThresholdMeters: 30,
		AllowDegradedStart:      true,
	}

	cfg := d.ControllerConfig()
	assert.Equal(t, 7*time.Second, cfg.Engine.StartDebounce)
	assert.Equal(t, 9*time.Second, cfg.Engine.StopDebounce)
	assert.Equal(t, 2, cfg.Engine.MinTripDurationMinutes)
	assert.EqualValues(t, 30, cfg.AccuracyThresholdMeters)
	assert.True(t, cfg.AllowDegradedStart)
}

func TestGeocodingFromEnv_DisabledByDefault(t *testing.T) {
	g := config.GeocodingFromEnv()
	assert.False(t, g.Enabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", g.Client.BaseURL)

	t.Setenv("GEOCODE_ENABLED", "true")
	t.Setenv("GEOCODE_BASE_URL", "http://localhost:8088")
	g = config.GeocodingFromEnv()
	assert.True(t, g.Enabled)
	assert.Equal(t, "http://localhost:8088", g.Client.BaseURL)
}
