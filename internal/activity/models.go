// Package activity adapts the host's activity-recognition capability into
// typed observations consumed by the trip detection engine.
package activity

import "time"

// Type is a recognized activity category.
type Type string

const (
	TypeStill     Type = "STILL"
	TypeWalking   Type = "WALKING"
	TypeRunning   Type = "RUNNING"
	TypeOnBicycle Type = "ON_BICYCLE"
	TypeInVehicle Type = "IN_VEHICLE"
	TypeTilting   Type = "TILTING"
	TypeUnknown   Type = "UNKNOWN"
)

// Transition is the direction of an activity transition.
type Transition string

const (
	TransitionEnter Transition = "ENTER"
	TransitionExit  Transition = "EXIT"
)

// Moving reports whether the type belongs to the moving set that can open
// or sustain a trip.
func (t Type) Moving() bool {
	switch t {
	case TypeWalking, TypeRunning, TypeOnBicycle, TypeInVehicle:
		return true
	}
	return false
}

// ParseType maps a raw activity string to a Type. Unrecognized values map
// to TypeUnknown.
func ParseType(s string) Type {
	switch Type(s) {
	case TypeStill, TypeWalking, TypeRunning, TypeOnBicycle, TypeInVehicle, TypeTilting:
		return Type(s)
	}
	return TypeUnknown
}

// Observation is a single normalized activity transition. Immutable once
// created by the adapter.
type Observation struct {
	Activity   Type
	Transition Transition
	ObservedAt time.Time
	// Confidence is the recognizer's confidence in percent, clamped to 0-100.
	Confidence int
}

// RawTransition is the shape delivered by the host activity-recognition
// service. Timestamps are elapsed-realtime nanos as reported by the device.
type RawTransition struct {
	Activity             string `json:"activity"`
	Transition           string `json:"transition"`
	ElapsedRealtimeNanos int64  `json:"elapsedRealtimeNanos"`
	Confidence           int    `json:"confidence"`
}
