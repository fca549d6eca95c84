package engine

import (
	"time"

	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// State is a trip detection lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateCandidateMoving
	StateActiveTrip
	StateCandidateStill
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCandidateMoving:
		return "CANDIDATE_MOVING"
	case StateActiveTrip:
		return "ACTIVE_TRIP"
	case StateCandidateStill:
		return "CANDIDATE_STILL"
	case StateClosing:
		return "CLOSING"
	}
	return "UNKNOWN"
}

// StateChange describes one lifecycle transition.
type StateChange struct {
	From   State
	To     State
	Reason string
	At     time.Time
}

// Diagnostic is a raw engine event for developer tooling: activity
// transitions, GPS accept/reject decisions, discarded candidates.
type Diagnostic struct {
	Kind   string
	Detail string
	At     time.Time
}

// Diagnostic kinds.
const (
	DiagActivity      = "activity_transition"
	DiagGps           = "gps_fix"
	DiagGpsRejected   = "gps_fix_rejected"
	DiagTripDiscarded = "trip_discarded"
	DiagPersistence   = "persistence"
)

// Events receives engine notifications. Implementations must not block;
// fan-out and filtering is the subscriber side's concern. TripDetected is
// only called after the journey is durably stored (or queued durably for
// retry), so a listing made in response will already include it.
type Events interface {
	TripDetected(j journey.LocalJourney)
	StateChanged(change StateChange)
	Diagnostic(d Diagnostic)
}

// NopEvents discards all notifications.
type NopEvents struct{}

func (NopEvents) TripDetected(journey.LocalJourney) {}
func (NopEvents) StateChanged(StateChange)          {}
func (NopEvents) Diagnostic(Diagnostic)             {}
