package location

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives fixes from the adapter. Accepted fixes extend the trip's
// point list; rejected fixes are counted but never contribute to distance.
// Implementations must not block.
type Sink interface {
	OfferFix(Fix) bool
	OfferRejectedFix(Fix) bool
}

// Provider is the narrow collaborator contract for a host fused-location
// service. Run blocks, delivering raw fixes until the context is cancelled.
// A provider silently ceasing to deliver fixes is not an error.
type Provider interface {
	Run(ctx context.Context, deliver func(RawFix)) error
}

// Adapter filters raw fixes by horizontal accuracy and forwards them to the
// sink. The engine arms the adapter when a trip opens and disarms it when
// the trip closes; fixes arriving while disarmed are dropped.
type Adapter struct {
	sink      Sink
	logger    zerolog.Logger
	threshold float32

	armed    atomic.Bool
	accepted atomic.Int64
	rejected atomic.Int64
}

// NewAdapter creates a location adapter with the given accuracy threshold
// in meters.
func NewAdapter(sink Sink, accuracyThresholdMeters float32, logger zerolog.Logger) *Adapter {
	return &Adapter{
		sink:      sink,
		threshold: accuracyThresholdMeters,
		logger:    logger.With().Str("component", "location_adapter").Logger(),
	}
}

// Arm starts accepting fixes. Called by the engine when a trip opens.
func (a *Adapter) Arm() {
	if a.armed.CompareAndSwap(false, true) {
		a.logger.Debug().Msg("location adapter armed")
	}
}

// Disarm stops accepting fixes. Called by the engine when a trip closes.
func (a *Adapter) Disarm() {
	if a.armed.CompareAndSwap(true, false) {
		a.logger.Debug().
			Int64("accepted", a.accepted.Load()).
			Int64("rejected", a.rejected.Load()).
			Msg("location adapter disarmed")
	}
}

// Armed reports whether the adapter is currently accepting fixes.
func (a *Adapter) Armed() bool {
	return a.armed.Load()
}

// Deliver normalizes one raw fix and forwards it if the adapter is armed.
// Fixes with out-of-range coordinates are dropped outright; fixes above the
// accuracy threshold are forwarded as rejected so the session can count them.
func (a *Adapter) Deliver(raw RawFix) {
	if !a.armed.Load() {
		a.logger.Debug().Msg("dropping fix, adapter not armed")
		return
	}

	if raw.Lat < -90 || raw.Lat > 90 || raw.Lon < -180 || raw.Lon > 180 {
		a.logger.Warn().
			Float64("lat", raw.Lat).
			Float64("lon", raw.Lon).
			Msg("dropping fix with out-of-range coordinates")
		return
	}

	fix := Fix{
		Lat:            raw.Lat,
		Lon:            raw.Lon,
		AccuracyMeters: raw.AccuracyMeters,
		ObservedAt:     observedAt(raw.TimestampMillis),
	}

	if fix.AccuracyMeters > a.threshold {
		a.rejected.Add(1)
		a.logger.Debug().
			Float32("accuracy_m", fix.AccuracyMeters).
			Float32("threshold_m", a.threshold).
			Msg("rejecting low quality fix")
		a.sink.OfferRejectedFix(fix)
		return
	}

	a.accepted.Add(1)
	if !a.sink.OfferFix(fix) {
		a.logger.Warn().Msg("fix dropped, engine queue full")
	}
}

// Run pumps a provider through the adapter until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context, provider Provider) error {
	return provider.Run(ctx, a.Deliver)
}

func observedAt(millis int64) time.Time {
	if millis <= 0 {
		return time.Now()
	}
	return time.UnixMilli(millis)
}
