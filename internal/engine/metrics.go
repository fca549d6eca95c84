package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/greenmobilitypass/tripdetect/internal/engine"

// Metrics holds the engine's OpenTelemetry instruments.
type Metrics struct {
	tripsDetected  metric.Int64Counter
	tripsDiscarded metric.Int64Counter
	fixesAccepted  metric.Int64Counter
	fixesRejected  metric.Int64Counter
}

// NewMetrics creates the engine metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	tripsDetected, err := meter.Int64Counter(
		"tripdetect.trips.detected",
		metric.WithDescription("Trips detected and persisted"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	tripsDiscarded, err := meter.Int64Counter(
		"tripdetect.trips.discarded",
		metric.WithDescription("Trip candidates discarded below thresholds"),
		metric.WithUnit("{trip}"),
	)
	if err != nil {
		return nil, err
	}

	fixesAccepted, err := meter.Int64Counter(
		"tripdetect.gps.fixes.accepted",
		metric.WithDescription("GPS fixes accepted into a trip"),
		metric.WithUnit("{fix}"),
	)
	if err != nil {
		return nil, err
	}

	fixesRejected, err := meter.Int64Counter(
		"tripdetect.gps.fixes.rejected",
		metric.WithDescription("GPS fixes rejected for low accuracy"),
		metric.WithUnit("{fix}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		tripsDetected:  tripsDetected,
		tripsDiscarded: tripsDiscarded,
		fixesAccepted:  fixesAccepted,
		fixesRejected:  fixesRejected,
	}, nil
}

// TripDetected records one persisted trip.
func (m *Metrics) TripDetected(ctx context.Context) {
	m.tripsDetected.Add(ctx, 1)
}

// TripDiscarded records one discarded trip candidate.
func (m *Metrics) TripDiscarded(ctx context.Context) {
	m.tripsDiscarded.Add(ctx, 1)
}

// FixAccepted records one accepted GPS fix.
func (m *Metrics) FixAccepted(ctx context.Context) {
	m.fixesAccepted.Add(ctx, 1)
}

// FixRejected records one rejected GPS fix.
func (m *Metrics) FixRejected(ctx context.Context) {
	m.fixesRejected.Add(ctx, 1)
}
