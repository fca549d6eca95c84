package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives normalized observations. Implementations must not block;
// the adapter treats a false return as a dropped event, not an error.
type Sink interface {
	OfferObservation(Observation) bool
}

// Source is the narrow collaborator contract for a host activity-recognition
// service. Run blocks, delivering raw transitions until the context is
// cancelled. The service may be unavailable or delayed arbitrarily.
type Source interface {
	Run(ctx context.Context, deliver func(RawTransition)) error
}

// Adapter converts raw activity transitions into Observations and hands them
// to the sink. Malformed transitions are logged and dropped.
type Adapter struct {
	sink   Sink
	logger zerolog.Logger
}

// NewAdapter creates an activity adapter feeding the given sink.
func NewAdapter(sink Sink, logger zerolog.Logger) *Adapter {
	return &Adapter{
		sink:   sink,
		logger: logger.With().Str("component", "activity_adapter").Logger(),
	}
}

// Deliver normalizes one raw transition and forwards it. Transitions with an
// unknown activity or direction are dropped; the recognizer emits types the
// engine has no use for (screen tilts, unknowns) and those must never reach
// the state machine as moving signals.
func (a *Adapter) Deliver(raw RawTransition) {
	typ := ParseType(raw.Activity)
	if typ == TypeUnknown || typ == TypeTilting {
		a.logger.Debug().
			Str("activity", raw.Activity).
			Str("transition", raw.Transition).
			Msg("ignoring transition for unsupported activity")
		return
	}

	var transition Transition
	switch Transition(raw.Transition) {
	case TransitionEnter:
		transition = TransitionEnter
	case TransitionExit:
		transition = TransitionExit
	default:
		a.logger.Warn().
			Str("transition", raw.Transition).
			Msg("dropping transition with unknown direction")
		return
	}

	obs := Observation{
		Activity:   typ,
		Transition: transition,
		ObservedAt: observedAt(raw.ElapsedRealtimeNanos),
		Confidence: clampConfidence(raw.Confidence),
	}

	if !a.sink.OfferObservation(obs) {
		a.logger.Warn().
			Str("activity", string(obs.Activity)).
			Str("transition", string(obs.Transition)).
			Msg("observation dropped, engine queue full")
	}
}

// Run pumps a source through the adapter until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, src Source) error {
	return src.Run(ctx, a.Deliver)
}

// observedAt maps the device timestamp to wall time. The ingest surface
// reports epoch nanos; a zero timestamp falls back to receipt time.
func observedAt(nanos int64) time.Time {
	if nanos <= 0 {
		return time.Now()
	}
	return time.Unix(0, nanos)
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
