// Package engine implements the trip detection state machine. It fuses
// activity transitions and GPS fixes, arriving from independent sources,
// into discrete classified journeys.
//
// All inputs are serialized through a single queue consumed by one
// goroutine, so trip state never sees concurrent mutation. Debounce timers
// post token-stamped events into the same queue; a timer that fires after
// the state it was armed for has been superseded is a no-op.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
	"github.com/greenmobilitypass/tripdetect/internal/estimate"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
	"github.com/greenmobilitypass/tripdetect/internal/location"
	"github.com/greenmobilitypass/tripdetect/pkg/polyline"
)

// Config holds the detection tunables. Zero values are replaced with
// conservative defaults.
type Config struct {
	// StartDebounce is how long a moving activity must persist before a
	// trip opens. Absorbs recognizer jitter.
	StartDebounce time.Duration
	// StopDebounce is how long stillness must persist before a trip
	// closes. Keeps traffic-light stops from splitting a trip.
	StopDebounce time.Duration
	// MinTripDurationMinutes and MinTripDistanceKm filter out noise such
	// as walking to another room; trips below either threshold are
	// discarded silently.
	MinTripDurationMinutes int
	MinTripDistanceKm      float64
	// MinGpsPoints is the accepted-fix count below which distance falls
	// back to the duration estimate.
	MinGpsPoints int
	// MaxFixGap is the largest time gap between consecutive fixes that
	// still contributes distance.
	MaxFixGap time.Duration
	// QueueSize bounds the serialized event queue.
	QueueSize int
	// PersistTimeout bounds the backoff retry loop for storing a closed
	// trip before it is parked in the unsaved queue.
	PersistTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StartDebounce <= 0 {
		c.StartDebounce = 15 * time.Second
	}
	if c.StopDebounce <= 0 {
		c.StopDebounce = 20 * time.Second
	}
	if c.MinTripDurationMinutes <= 0 {
		c.MinTripDurationMinutes = 3
	}
	if c.MinTripDistanceKm <= 0 {
		c.MinTripDistanceKm = 0.3
	}
	if c.MinGpsPoints <= 0 {
		c.MinGpsPoints = 5
	}
	if c.MaxFixGap <= 0 {
		c.MaxFixGap = 3 * time.Minute
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 30 * time.Second
	}
	return c
}

// LocationControl arms and disarms the location adapter around a trip.
type LocationControl interface {
	Arm()
	Disarm()
}

// Geocoder resolves a coordinate to a human-readable place name. Optional;
// failures leave place names empty for the review UI to fill in.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Deps are the engine's collaborators. Store is required; the rest may be
// nil and degrade gracefully.
type Deps struct {
	Logger    zerolog.Logger
	Store     journey.Repository
	Locations LocationControl
	Geocoder  Geocoder
	Events    Events
	Metrics   *Metrics
}

type queueEvent interface{ isQueueEvent() }

type obsEvent struct{ obs activity.Observation }
type fixEvent struct {
	fix      location.Fix
	rejected bool
}
type timerEvent struct{ token uint64 }

func (obsEvent) isQueueEvent()   {}
func (fixEvent) isQueueEvent()   {}
func (timerEvent) isQueueEvent() {}

// session is the in-memory state of one trip attempt. Owned exclusively by
// the run goroutine; lost on crash by design (completed journeys are not).
type session struct {
	id        string
	startedAt time.Time
	// candidate is the most recently entered moving type; classification
	// uses the full sample set, not just this.
	candidate activity.Type
	samples   []estimate.Sample
	// entered tracks concurrently entered moving types (sensor ambiguity).
	entered  map[activity.Type]bool
	points   []location.Fix
	rejected int
	// stillAt is the timestamp of the observation that began the current
	// stillness, used as arrival time if the trip closes.
	stillAt time.Time
}

func newSession(obs activity.Observation) *session {
	return &session{
		startedAt: obs.ObservedAt,
		candidate: obs.Activity,
		samples:   []estimate.Sample{{Activity: obs.Activity, Confidence: obs.Confidence}},
		entered:   map[activity.Type]bool{obs.Activity: true},
	}
}

func (s *session) noteMoving(obs activity.Observation) {
	s.candidate = obs.Activity
	s.entered[obs.Activity] = true
	s.samples = append(s.samples, estimate.Sample{Activity: obs.Activity, Confidence: obs.Confidence})
}

// Engine is the trip detection state machine.
type Engine struct {
	cfg       Config
	logger    zerolog.Logger
	store     journey.Repository
	locations LocationControl
	geocoder  Geocoder
	events    Events
	metrics   *Metrics

	queue   chan queueEvent
	state   atomic.Int32
	stopped atomic.Bool

	// Owned by the run goroutine.
	current    State
	session    *session
	timer      *time.Timer
	timerToken uint64

	persistWG sync.WaitGroup
	unsavedMu sync.Mutex
	unsaved   []*journey.LocalJourney
}

// New creates an engine. Run must be called before events are consumed.
func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()

	events := deps.Events
	if events == nil {
		events = NopEvents{}
	}

	metrics := deps.Metrics
	if metrics == nil {
		var err error
		metrics, err = NewMetrics()
		if err != nil {
			deps.Logger.Warn().Err(err).Msg("engine metrics unavailable")
		}
	}

	return &Engine{
		cfg:       cfg,
		logger:    deps.Logger.With().Str("component", "trip_engine").Logger(),
		store:     deps.Store,
		locations: deps.Locations,
		geocoder:  deps.Geocoder,
		events:    events,
		metrics:   metrics,
		queue:     make(chan queueEvent, cfg.QueueSize),
	}
}

// OfferObservation enqueues an activity observation. Returns false when the
// queue is full or the engine has stopped.
func (e *Engine) OfferObservation(obs activity.Observation) bool {
	return e.offer(obsEvent{obs: obs})
}

// OfferFix enqueues an accepted GPS fix.
func (e *Engine) OfferFix(fix location.Fix) bool {
	return e.offer(fixEvent{fix: fix})
}

// OfferRejectedFix enqueues a low-quality fix for counting only.
func (e *Engine) OfferRejectedFix(fix location.Fix) bool {
	return e.offer(fixEvent{fix: fix, rejected: true})
}

// State returns the current lifecycle state. Safe from any goroutine.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Run consumes the event queue until ctx is cancelled, then cancels any
// pending timer, waits for in-flight persistence and flushes the unsaved
// queue. An in-progress session is abandoned; that loss is acceptable,
// completed journeys are not.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info().
		Dur("start_debounce", e.cfg.StartDebounce).
		Dur("stop_debounce", e.cfg.StopDebounce).
		Int("min_duration_min", e.cfg.MinTripDurationMinutes).
		Float64("min_distance_km", e.cfg.MinTripDistanceKm).
		Msg("trip engine running")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case ev := <-e.queue:
			e.handle(ev)
		}
	}
}

// Flush retries journeys whose initial persistence failed. Each success
// emits the deferred trip-detected notification.
func (e *Engine) Flush(ctx context.Context) error {
	e.unsavedMu.Lock()
	pending := e.unsaved
	e.unsaved = nil
	e.unsavedMu.Unlock()

	var firstErr error
	for _, j := range pending {
		if err := e.store.Insert(ctx, j); err != nil {
			e.unsavedMu.Lock()
			e.unsaved = append(e.unsaved, j)
			e.unsavedMu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("flush journey %s: %w", j.ID, err)
			}
			continue
		}
		e.logger.Info().Str("journey_id", j.ID).Msg("unsaved journey flushed")
		e.events.TripDetected(*j)
	}
	return firstErr
}

// UnsavedCount reports journeys awaiting a successful flush.
func (e *Engine) UnsavedCount() int {
	e.unsavedMu.Lock()
	defer e.unsavedMu.Unlock()
	return len(e.unsaved)
}

func (e *Engine) offer(ev queueEvent) bool {
	if e.stopped.Load() {
		return false
	}
	select {
	case e.queue <- ev:
		return true
	default:
		return false
	}
}

func (e *Engine) shutdown() {
	e.stopped.Store(true)
	e.cancelTimer()
	if e.session != nil {
		e.logger.Warn().
			Str("state", e.current.String()).
			Msg("abandoning in-progress trip session on shutdown")
		e.session = nil
	}
	e.disarmLocations()
	e.transition(StateIdle, "engine stopped")

	e.persistWG.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()
	if err := e.Flush(flushCtx); err != nil {
		e.logger.Error().Err(err).Msg("failed to flush unsaved journeys on shutdown")
	}
	e.logger.Info().Msg("trip engine stopped")
}

func (e *Engine) handle(ev queueEvent) {
	switch ev := ev.(type) {
	case obsEvent:
		e.handleObservation(ev.obs)
	case fixEvent:
		if ev.rejected {
			e.handleRejectedFix(ev.fix)
		} else {
			e.handleFix(ev.fix)
		}
	case timerEvent:
		if ev.token != e.timerToken {
			// Stale timer from a superseded state.
			return
		}
		e.handleTimer()
	}
}

func (e *Engine) handleObservation(obs activity.Observation) {
	e.events.Diagnostic(Diagnostic{
		Kind:   DiagActivity,
		Detail: fmt.Sprintf("%s %s confidence=%d", obs.Transition, obs.Activity, obs.Confidence),
		At:     obs.ObservedAt,
	})

	switch e.current {
	case StateIdle:
		if obs.Transition == activity.TransitionEnter && obs.Activity.Moving() {
			e.session = newSession(obs)
			e.startTimer(e.cfg.StartDebounce)
			e.transition(StateCandidateMoving, "moving activity entered")
		}

	case StateCandidateMoving:
		switch {
		case obs.Transition == activity.TransitionEnter && obs.Activity.Moving():
			e.session.noteMoving(obs)
		case obs.Transition == activity.TransitionExit && obs.Activity.Moving():
			delete(e.session.entered, obs.Activity)
			if len(e.session.entered) == 0 {
				e.discardCandidate("moving activity exited before start debounce")
			}
		case obs.Transition == activity.TransitionEnter && obs.Activity == activity.TypeStill:
			e.discardCandidate("stillness before start debounce")
		}

	case StateActiveTrip:
		switch {
		case obs.Transition == activity.TransitionEnter && obs.Activity.Moving():
			e.session.noteMoving(obs)
		case obs.Transition == activity.TransitionEnter && obs.Activity == activity.TypeStill:
			e.beginStillCandidate(obs, "still entered")
		case obs.Transition == activity.TransitionExit && obs.Activity.Moving():
			delete(e.session.entered, obs.Activity)
			if len(e.session.entered) == 0 {
				e.beginStillCandidate(obs, "moving activity lost")
			}
		}

	case StateCandidateStill:
		if obs.Transition == activity.TransitionEnter && obs.Activity.Moving() {
			e.cancelTimer()
			e.session.noteMoving(obs)
			e.session.stillAt = time.Time{}
			e.transition(StateActiveTrip, "movement resumed before stop debounce")
		}
	}
}

func (e *Engine) handleFix(fix location.Fix) {
	if e.session == nil || (e.current != StateActiveTrip && e.current != StateCandidateStill) {
		return
	}
	e.session.points = append(e.session.points, fix)
	if e.metrics != nil {
		e.metrics.FixAccepted(context.Background())
	}
	e.events.Diagnostic(Diagnostic{
		Kind:   DiagGps,
		Detail: fmt.Sprintf("lat=%.5f lon=%.5f accuracy=%.0fm", fix.Lat, fix.Lon, fix.AccuracyMeters),
		At:     fix.ObservedAt,
	})
}

func (e *Engine) handleRejectedFix(fix location.Fix) {
	if e.session == nil {
		return
	}
	e.session.rejected++
	if e.metrics != nil {
		e.metrics.FixRejected(context.Background())
	}
	e.events.Diagnostic(Diagnostic{
		Kind:   DiagGpsRejected,
		Detail: fmt.Sprintf("accuracy=%.0fm", fix.AccuracyMeters),
		At:     fix.ObservedAt,
	})
}

func (e *Engine) handleTimer() {
	switch e.current {
	case StateCandidateMoving:
		// Moving activity survived the debounce: the trip is real.
		e.session.id = "jrn_" + uuid.New().String()[:22]
		e.armLocations()
		e.transition(StateActiveTrip, "start debounce elapsed")

	case StateCandidateStill:
		e.closeTrip()
	}
}

func (e *Engine) beginStillCandidate(obs activity.Observation, reason string) {
	e.session.stillAt = obs.ObservedAt
	e.startTimer(e.cfg.StopDebounce)
	e.transition(StateCandidateStill, reason)
}

func (e *Engine) discardCandidate(reason string) {
	e.cancelTimer()
	e.session = nil
	e.events.Diagnostic(Diagnostic{Kind: DiagTripDiscarded, Detail: reason, At: time.Now()})
	e.transition(StateIdle, reason)
}

func (e *Engine) closeTrip() {
	s := e.session
	e.session = nil
	e.transition(StateClosing, "stop debounce elapsed")
	e.disarmLocations()

	arrival := s.stillAt
	if arrival.IsZero() {
		arrival = time.Now()
	}

	transport, confidence := estimate.ClassifyTransport(s.samples)
	durationMinutes := journey.DurationMinutes(s.startedAt, arrival)

	gpsBased := len(s.points) >= e.cfg.MinGpsPoints
	var distanceKm float64
	if gpsBased {
		distanceKm = estimate.AccumulateDistanceKm(s.points, e.cfg.MaxFixGap)
	} else {
		distanceKm = estimate.EstimateDistanceKm(arrival.Sub(s.startedAt), transport)
	}

	if durationMinutes < e.cfg.MinTripDurationMinutes || distanceKm < e.cfg.MinTripDistanceKm {
		if e.metrics != nil {
			e.metrics.TripDiscarded(context.Background())
		}
		detail := fmt.Sprintf("duration=%dmin distance=%.2fkm below thresholds", durationMinutes, distanceKm)
		e.logger.Debug().Str("detail", detail).Msg("trip discarded")
		e.events.Diagnostic(Diagnostic{Kind: DiagTripDiscarded, Detail: detail, At: time.Now()})
		e.transition(StateIdle, "trip below thresholds")
		return
	}

	now := time.Now()
	j := &journey.LocalJourney{
		ID:                    s.id,
		TimeDeparture:         s.startedAt,
		TimeArrival:           arrival,
		DurationMinutes:       durationMinutes,
		DistanceKm:            distanceKm,
		DetectedTransportType: transport,
		ConfidenceAvg:         confidence,
		IsGpsBasedDistance:    gpsBased,
		GpsPointsCount:        len(s.points),
		DetectionSource:       journey.SourceAuto,
		Status:                journey.StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	attachTrace(j, s.points)

	e.logger.Info().
		Str("journey_id", j.ID).
		Str("transport", string(transport)).
		Int("duration_min", durationMinutes).
		Float64("distance_km", distanceKm).
		Bool("gps_based", gpsBased).
		Int("gps_points", len(s.points)).
		Int("rejected_fixes", s.rejected).
		Float64("gps_quality", estimate.QualityScore(s.points)).
		Msg("trip detected")

	// Persistence must not block the state machine, but the trip-detected
	// notification only fires once the journey is durable.
	e.persistWG.Add(1)
	go e.persistAndNotify(j)

	e.transition(StateIdle, "trip closed")
}

func (e *Engine) persistAndNotify(j *journey.LocalJourney) {
	defer e.persistWG.Done()

	e.resolvePlaces(j)

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PersistTimeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = e.cfg.PersistTimeout

	operation := func() error {
		return e.store.Insert(ctx, j)
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn().Err(err).Dur("retry_in", wait).
			Str("journey_id", j.ID).
			Msg("journey persistence failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		// Held in memory; flushed on the next Flush or at shutdown. The
		// notification is deferred until the journey is actually stored.
		e.logger.Error().Err(err).Str("journey_id", j.ID).Msg("journey persistence exhausted retries, holding in memory")
		e.events.Diagnostic(Diagnostic{Kind: DiagPersistence, Detail: "insert failed: " + err.Error(), At: time.Now()})
		e.unsavedMu.Lock()
		e.unsaved = append(e.unsaved, j)
		e.unsavedMu.Unlock()
		return
	}

	if e.metrics != nil {
		e.metrics.TripDetected(context.Background())
	}
	e.events.TripDetected(*j)
}

// resolvePlaces fills departure/arrival place names best-effort.
func (e *Engine) resolvePlaces(j *journey.LocalJourney) {
	if e.geocoder == nil {
		return
	}
	if j.StartLat != nil && j.StartLon != nil {
		j.PlaceDeparture = e.reverse(*j.StartLat, *j.StartLon)
	}
	if j.EndLat != nil && j.EndLon != nil {
		j.PlaceArrival = e.reverse(*j.EndLat, *j.EndLon)
	}
}

func (e *Engine) reverse(lat, lon float64) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name, err := e.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		e.logger.Warn().Err(err).Msg("reverse geocoding failed, leaving place empty")
		return ""
	}
	return name
}

func (e *Engine) transition(to State, reason string) {
	if e.current == to {
		return
	}
	from := e.current
	e.current = to
	e.state.Store(int32(to))
	e.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("reason", reason).
		Msg("state transition")
	e.events.StateChanged(StateChange{From: from, To: to, Reason: reason, At: time.Now()})
}

func (e *Engine) startTimer(d time.Duration) {
	e.cancelTimer()
	e.timerToken++
	token := e.timerToken
	e.timer = time.AfterFunc(d, func() {
		e.offer(timerEvent{token: token})
	})
}

func (e *Engine) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerToken++
}

func (e *Engine) armLocations() {
	if e.locations != nil {
		e.locations.Arm()
	}
}

func (e *Engine) disarmLocations() {
	if e.locations != nil {
		e.locations.Disarm()
	}
}

func attachTrace(j *journey.LocalJourney, points []location.Fix) {
	if len(points) == 0 {
		return
	}

	sorted := make([]location.Fix, len(points))
	copy(sorted, points)
	// Fixes can arrive out of order; departure and arrival coordinates
	// follow observation time, not arrival order.
	for i := 1; i < len(sorted); i++ {
		for k := i; k > 0 && sorted[k].ObservedAt.Before(sorted[k-1].ObservedAt); k-- {
			sorted[k], sorted[k-1] = sorted[k-1], sorted[k]
		}
	}

	first, last := sorted[0], sorted[len(sorted)-1]
	j.StartLat, j.StartLon = ptr(first.Lat), ptr(first.Lon)
	j.EndLat, j.EndLon = ptr(last.Lat), ptr(last.Lon)

	trace := make([]polyline.Point, len(sorted))
	for i, f := range sorted {
		trace[i] = polyline.Point{Lat: f.Lat, Lon: f.Lon}
	}
	j.GpsTrace = polyline.Encode(trace)
}

func ptr(v float64) *float64 {
	return &v
}
