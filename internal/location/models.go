// Package location adapts the host's fused-location capability into typed
// GPS fixes consumed by the trip detection engine.
package location

import "time"

// Fix is a single normalized location fix. Immutable once created by the
// adapter.
type Fix struct {
	Lat            float64
	Lon            float64
	AccuracyMeters float32
	ObservedAt     time.Time
}

// RawFix is the shape delivered by the host fused-location service.
type RawFix struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	AccuracyMeters  float32 `json:"accuracyMeters"`
	TimestampMillis int64   `json:"timestampMillis"`
}
