// Package journey provides the durable local store for detected trip
// segments awaiting review and upload.
package journey

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrJourneyNotFound = errors.New("journey not found")
)

// TransportType is the transport mode as reported to the mobility backend.
type TransportType string

const (
	TransportWalk   TransportType = "marche"
	TransportBike   TransportType = "velo"
	TransportPublic TransportType = "transport_commun"
	TransportCar    TransportType = "voiture"
)

// Valid reports whether the transport type is one of the known modes.
func (t TransportType) Valid() bool {
	switch t {
	case TransportWalk, TransportBike, TransportPublic, TransportCar:
		return true
	}
	return false
}

// Status is the lifecycle status of a stored journey.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
)

// DetectionSource records whether a journey was detected automatically or
// entered by hand in the review UI.
type DetectionSource string

const (
	SourceAuto   DetectionSource = "auto"
	SourceManual DetectionSource = "manual"
)

// LocalJourney is a completed trip segment. Created by the detection engine
// when a trip session closes (or by hand through the review layer), edited
// by the review UI, and marked sent once the backend accepts it. The engine
// never mutates a journey after creation.
type LocalJourney struct {
	ID            string
	TimeDeparture time.Time
	TimeArrival   time.Time
	// DurationMinutes is round((TimeArrival-TimeDeparture)/1m).
	DurationMinutes int
	DistanceKm      float64

	DetectedTransportType TransportType
	// ConfidenceAvg is the average recognizer confidence over the trip, 0-100.
	ConfidenceAvg int

	PlaceDeparture string
	PlaceArrival   string

	StartLat *float64
	StartLon *float64
	EndLat   *float64
	EndLon   *float64

	// IsGpsBasedDistance is false when too few accepted fixes existed and
	// the distance was estimated from duration and transport mode instead.
	IsGpsBasedDistance bool
	GpsPointsCount     int
	// GpsTrace is the accepted fixes encoded as a Google polyline, for map
	// display in review tooling. Empty when no fixes were accepted.
	GpsTrace string

	DetectionSource DetectionSource
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UpdateFields carries the partial, review-editable fields of a journey.
// Nil fields are left untouched.
type UpdateFields struct {
	TransportType  *TransportType
	DistanceKm     *float64
	PlaceDeparture *string
	PlaceArrival   *string
}
