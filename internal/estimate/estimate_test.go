package estimate_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
	"github.com/greenmobilitypass/tripdetect/internal/estimate"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
	"github.com/greenmobilitypass/tripdetect/internal/location"
)

func TestHaversineKm(t *testing.T) {
	// Paris Notre-Dame to Paris Gare de Lyon, roughly 2.3 km.
	d := estimate.HaversineKm(48.8530, 2.3499, 48.8443, 2.3743)
	assert.InDelta(t, 2.05, d, 0.3)

	// Same point is zero.
	assert.InDelta(t, 0, estimate.HaversineKm(48.85, 2.35, 48.85, 2.35), 1e-9)

	// Paris to Marseille, roughly 660 km.
	d = estimate.HaversineKm(48.8566, 2.3522, 43.2965, 5.3698)
	assert.InDelta(t, 660, d, 15)
}

// walkFixes builds n fixes heading north, stepMeters apart, interval apart
// in time, starting at base.
func walkFixes(n int, stepMeters float64, interval time.Duration, base time.Time) []location.Fix {
	const metersPerDegreeLat = 111_320.0
	fixes := make([]location.Fix, 0, n)
	for i := 0; i < n; i++ {
		fixes = append(fixes, location.Fix{
			Lat:            48.85 + float64(i)*stepMeters/metersPerDegreeLat,
			Lon:            2.35,
			AccuracyMeters: 10,
			ObservedAt:     base.Add(time.Duration(i) * interval),
		})
	}
	return fixes
}

func TestAccumulateDistanceKm(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	// 20 fixes, 47m apart: ~0.9 km total.
	fixes := walkFixes(20, 47.4, 38*time.Second, base)
	total := estimate.AccumulateDistanceKm(fixes, 3*time.Minute)
	assert.InDelta(t, 0.9, total, 0.02)

	assert.Zero(t, estimate.AccumulateDistanceKm(nil, time.Minute))
	assert.Zero(t, estimate.AccumulateDistanceKm(fixes[:1], time.Minute))
}

func TestAccumulateDistanceKm_SortsByTimestamp(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	fixes := walkFixes(20, 47.4, 38*time.Second, base)

	ordered := estimate.AccumulateDistanceKm(fixes, 3*time.Minute)

	shuffled := make([]location.Fix, len(fixes))
	copy(shuffled, fixes)
	rng := rand.New(rand.NewSource(7))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	// The accumulator sorts internally, so feeding the same fixes out of
	// order yields the identical total.
	assert.InDelta(t, ordered, estimate.AccumulateDistanceKm(shuffled, 3*time.Minute), 1e-9)

	// Whereas a naive pairwise walk over the shuffled order would not.
	var naive float64
	for i := 1; i < len(shuffled); i++ {
		naive += estimate.HaversineKm(shuffled[i-1].Lat, shuffled[i-1].Lon, shuffled[i].Lat, shuffled[i].Lon)
	}
	assert.Greater(t, naive, ordered)
}

func TestAccumulateDistanceKm_TrackingGap(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	fixes := walkFixes(5, 100, 30*time.Second, base)
	// Push the last fix far into the future: its leg becomes a tracking gap.
	fixes[4].ObservedAt = base.Add(30 * time.Minute)

	withGap := estimate.AccumulateDistanceKm(fixes, 3*time.Minute)
	withoutCut := estimate.AccumulateDistanceKm(fixes, 0) // zero maxGap disables the cut

	assert.InDelta(t, 0.3, withGap, 0.01)
	assert.InDelta(t, 0.4, withoutCut, 0.01)
}

func TestEstimateDistanceKm(t *testing.T) {
	tests := []struct {
		name      string
		duration  time.Duration
		transport journey.TransportType
		want      float64
	}{
		{name: "walking half hour", duration: 30 * time.Minute, transport: journey.TransportWalk, want: 2.5},
		{name: "cycling 8 minutes", duration: 8 * time.Minute, transport: journey.TransportBike, want: 2.0},
		{name: "driving one hour", duration: time.Hour, transport: journey.TransportCar, want: 30},
		{name: "unknown mode falls back to vehicle speed", duration: time.Hour, transport: journey.TransportType("x"), want: 30},
		{name: "negative duration", duration: -time.Minute, transport: journey.TransportWalk, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, estimate.EstimateDistanceKm(tt.duration, tt.transport), 1e-9)
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name     string
		samples  []estimate.Sample
		want     journey.TransportType
		wantConf int
	}{
		{
			name:     "empty defaults to vehicle",
			samples:  nil,
			want:     journey.TransportCar,
			wantConf: 0,
		},
		{
			name: "pure walking",
			samples: []estimate.Sample{
				{Activity: activity.TypeWalking, Confidence: 80},
				{Activity: activity.TypeWalking, Confidence: 90},
			},
			want:     journey.TransportWalk,
			wantConf: 85,
		},
		{
			name: "running counts as walking",
			samples: []estimate.Sample{
				{Activity: activity.TypeRunning, Confidence: 70},
				{Activity: activity.TypeWalking, Confidence: 60},
			},
			want:     journey.TransportWalk,
			wantConf: 65,
		},
		{
			name: "cycling outweighs brief vehicle blip",
			samples: []estimate.Sample{
				{Activity: activity.TypeOnBicycle, Confidence: 85},
				{Activity: activity.TypeOnBicycle, Confidence: 90},
				{Activity: activity.TypeInVehicle, Confidence: 40},
			},
			want:     journey.TransportBike,
			wantConf: 72,
		},
		{
			name: "weighted vote, not last entered",
			samples: []estimate.Sample{
				{Activity: activity.TypeInVehicle, Confidence: 95},
				{Activity: activity.TypeInVehicle, Confidence: 90},
				{Activity: activity.TypeWalking, Confidence: 30},
			},
			want:     journey.TransportCar,
			wantConf: 72,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf := estimate.ClassifyTransport(tt.samples)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantConf, conf)
		})
	}
}

func TestQualityScore(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.Zero(t, estimate.QualityScore(nil))

	good := walkFixes(20, 50, 30*time.Second, base)
	poor := []location.Fix{{Lat: 48.85, Lon: 2.35, AccuracyMeters: 95, ObservedAt: base}}

	assert.Greater(t, estimate.QualityScore(good), 0.8)
	assert.Less(t, estimate.QualityScore(poor), 0.1)
}
