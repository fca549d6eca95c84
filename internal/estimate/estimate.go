// Package estimate provides the pure calculation functions used by the trip
// state machine: haversine distance accumulation, duration-based distance
// fallback, transport classification and GPS quality scoring.
package estimate

import (
	"math"
	"sort"
	"time"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
	"github.com/greenmobilitypass/tripdetect/internal/location"
)

const earthRadiusKm = 6371.0

// Average urban speeds in km/h for the duration-based distance fallback.
// Deliberately rough; a fallback estimate is always flagged as non-GPS.
var fallbackSpeedKmh = map[journey.TransportType]float64{
	journey.TransportWalk:   5,
	journey.TransportBike:   15,
	journey.TransportCar:    30,
	journey.TransportPublic: 30,
}

// Sample is one recognizer confidence reading for an activity type,
// collected while a trip is active.
type Sample struct {
	Activity   activity.Type
	Confidence int
}

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// AccumulateDistanceKm sums pairwise haversine distances over the fixes,
// ordered by observation time. Consecutive fixes further apart than maxGap
// are treated as a tracking gap and contribute nothing. The input slice is
// not modified.
func AccumulateDistanceKm(fixes []location.Fix, maxGap time.Duration) float64 {
	if len(fixes) < 2 {
		return 0
	}

	sorted := make([]location.Fix, len(fixes))
	copy(sorted, fixes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	var total float64
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if maxGap > 0 && curr.ObservedAt.Sub(prev.ObservedAt) > maxGap {
			continue
		}
		total += HaversineKm(prev.Lat, prev.Lon, curr.Lat, curr.Lon)
	}
	return total
}

// EstimateDistanceKm estimates trip distance from duration and transport
// mode when too few GPS points were accepted.
func EstimateDistanceKm(duration time.Duration, transport journey.TransportType) float64 {
	speed, ok := fallbackSpeedKmh[transport]
	if !ok {
		speed = fallbackSpeedKmh[journey.TransportCar]
	}
	if duration < 0 {
		return 0
	}
	return speed * duration.Hours()
}

// ClassifyTransport runs a confidence-weighted vote over the activity
// samples collected during a trip and returns the winning transport type
// with the plain average confidence over all samples.
//
// Activity recognition cannot distinguish public transport from a car, so
// IN_VEHICLE always maps to voiture; the review step corrects it. An empty
// sample set also defaults to voiture with zero confidence.
func ClassifyTransport(samples []Sample) (journey.TransportType, int) {
	if len(samples) == 0 {
		return journey.TransportCar, 0
	}

	weights := make(map[journey.TransportType]int)
	sum := 0
	for _, s := range samples {
		sum += s.Confidence
		if t, ok := transportFor(s.Activity); ok {
			// A zero-confidence sample still counts as a (weak) vote.
			weights[t] += s.Confidence + 1
		}
	}

	best := journey.TransportCar
	bestWeight := 0
	for _, t := range []journey.TransportType{journey.TransportWalk, journey.TransportBike, journey.TransportCar} {
		if weights[t] > bestWeight {
			best = t
			bestWeight = weights[t]
		}
	}

	return best, int(math.Round(float64(sum) / float64(len(samples))))
}

// QualityScore rates the GPS coverage of a trip between 0 (unusable) and 1.
// Combines mean horizontal accuracy with the number of accepted fixes; used
// for diagnostics only, never for accept/reject decisions.
func QualityScore(fixes []location.Fix) float64 {
	if len(fixes) == 0 {
		return 0
	}

	var sum float64
	for _, f := range fixes {
		sum += float64(f.AccuracyMeters)
	}
	mean := sum / float64(len(fixes))

	accuracyScore := clamp01(1 - mean/100)
	densityScore := clamp01(float64(len(fixes)) / 10)
	return accuracyScore * densityScore
}

func transportFor(t activity.Type) (journey.TransportType, bool) {
	switch t {
	case activity.TypeWalking, activity.TypeRunning:
		return journey.TransportWalk, true
	case activity.TypeOnBicycle:
		return journey.TransportBike, true
	case activity.TypeInVehicle:
		return journey.TransportCar, true
	}
	return "", false
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
