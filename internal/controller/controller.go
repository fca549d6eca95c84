// Package controller owns the detection service lifecycle: it checks
// permissions, wires the adapters to the engine, starts and stops the
// pipeline, and exposes the debug surface.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/activity"
	"github.com/greenmobilitypass/tripdetect/internal/engine"
	"github.com/greenmobilitypass/tripdetect/internal/estimate"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
	"github.com/greenmobilitypass/tripdetect/internal/location"
)

// Predefined errors.
var (
	// ErrPermissionDenied is returned when detection cannot start because a
	// required permission is missing.
	ErrPermissionDenied = errors.New("required permission not granted")

	// ErrAlreadyRunning is returned when Start is called on a running
	// controller.
	ErrAlreadyRunning = errors.New("detection already running")

	// ErrNotRunning is returned by operations that require a running
	// detection pipeline.
	ErrNotRunning = errors.New("detection not running")
)

// Permissions reports the host permission grants relevant to detection.
type Permissions struct {
	Location            bool `json:"location"`
	ActivityRecognition bool `json:"activity_recognition"`
	Notifications       bool `json:"notifications"`
}

// DetectionGranted reports whether the permissions required for automatic
// detection are present. Notifications are cosmetic and not required.
func (p Permissions) DetectionGranted() bool {
	return p.Location && p.ActivityRecognition
}

// PermissionChecker reports the current permission grants.
type PermissionChecker interface {
	Check(ctx context.Context) (Permissions, error)
}

// StaticPermissions is a fixed-grant checker, used in tests and on hosts
// without a runtime permission model.
type StaticPermissions Permissions

func (p StaticPermissions) Check(context.Context) (Permissions, error) {
	return Permissions(p), nil
}

// TripPublisher publishes detected journeys downstream. Optional.
type TripPublisher interface {
	PublishTrip(ctx context.Context, j journey.LocalJourney) error
}

// Config holds controller configuration.
type Config struct {
	// Engine holds the detection tunables.
	Engine engine.Config

	// AccuracyThresholdMeters is the GPS accuracy cutoff. Default: 50.
	AccuracyThresholdMeters float32

	// AllowDegradedStart lets Start succeed without the detection
	// permissions; the pipeline runs but no trips open until observations
	// arrive, which lets manual journeys and the review API keep working.
	AllowDegradedStart bool

	// PublishTimeout bounds each downstream publish. Default: 10s.
	PublishTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AccuracyThresholdMeters <= 0 {
		c.AccuracyThresholdMeters = 50
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	return c
}

// Deps are the controller's collaborators. Store and Permissions are
// required; the rest may be nil.
type Deps struct {
	Logger           zerolog.Logger
	Store            journey.Repository
	Permissions      PermissionChecker
	ActivitySource   activity.Source
	LocationProvider location.Provider
	Geocoder         engine.Geocoder
	Metrics          *engine.Metrics
	Publisher        TripPublisher
}

// Controller manages the detection pipeline.
type Controller struct {
	cfg    Config
	logger zerolog.Logger
	store  journey.Repository
	perms  PermissionChecker
	hub    *Hub

	activitySource   activity.Source
	locationProvider location.Provider
	geocoder         engine.Geocoder
	metrics          *engine.Metrics
	publisher        TripPublisher

	mu         sync.Mutex
	running    bool
	degraded   bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	eng        *engine.Engine
	actAdapter *activity.Adapter
	locAdapter *location.Adapter
}

// New creates a detection controller.
func New(cfg Config, deps Deps) *Controller {
	return &Controller{
		cfg:              cfg.withDefaults(),
		logger:           deps.Logger.With().Str("component", "detection_controller").Logger(),
		store:            deps.Store,
		perms:            deps.Permissions,
		hub:              NewHub(deps.Logger),
		activitySource:   deps.ActivitySource,
		locationProvider: deps.LocationProvider,
		geocoder:         deps.Geocoder,
		metrics:          deps.Metrics,
		publisher:        deps.Publisher,
	}
}

// Hub returns the event hub for subscriptions.
func (c *Controller) Hub() *Hub {
	return c.hub
}

// Start checks permissions and brings the pipeline up. Starting twice
// returns ErrAlreadyRunning. With AllowDegradedStart the pipeline comes up
// even when detection permissions are missing, so the store-facing API keeps
// working; otherwise missing permissions fail with ErrPermissionDenied.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	perms, err := c.perms.Check(ctx)
	if err != nil {
		return fmt.Errorf("checking permissions: %w", err)
	}
	if !perms.DetectionGranted() {
		if !c.cfg.AllowDegradedStart {
			return fmt.Errorf("%w: location=%t activity_recognition=%t",
				ErrPermissionDenied, perms.Location, perms.ActivityRecognition)
		}
		c.logger.Warn().
			Bool("location", perms.Location).
			Bool("activity_recognition", perms.ActivityRecognition).
			Msg("starting degraded, automatic detection inactive until permissions are granted")
	}
	if !perms.Notifications {
		c.logger.Info().Msg("notification permission missing, detection alerts will be silent")
	}

	// The engine and the location adapter reference each other: the engine
	// arms GPS collection only while a trip is open, and the adapter feeds
	// accepted fixes back in. The control indirection breaks the cycle.
	control := &adapterControl{}
	eng := engine.New(c.cfg.Engine, engine.Deps{
		Logger:    c.logger,
		Store:     c.store,
		Locations: control,
		Geocoder:  c.geocoder,
		Events:    c.events(),
		Metrics:   c.metrics,
	})
	locAdapter := location.NewAdapter(eng, c.cfg.AccuracyThresholdMeters, c.logger)
	control.adapter = locAdapter
	actAdapter := activity.NewAdapter(eng, c.logger)

	runCtx, cancel := context.WithCancel(context.Background())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		eng.Run(runCtx)
	}()

	if c.activitySource != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := actAdapter.Run(runCtx, c.activitySource); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("activity source stopped")
			}
		}()
	}
	if c.locationProvider != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := locAdapter.Run(runCtx, c.locationProvider); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error().Err(err).Msg("location provider stopped")
			}
		}()
	}

	c.running = true
	c.degraded = !perms.DetectionGranted()
	c.cancel = cancel
	c.eng = eng
	c.actAdapter = actAdapter
	c.locAdapter = locAdapter

	c.logger.Info().Bool("degraded", c.degraded).Msg("detection started")
	return nil
}

// Stop tears the pipeline down, waiting for in-flight persistence. Stopping
// a stopped controller returns ErrNotRunning.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn().Msg("stop timed out waiting for pipeline shutdown")
	}

	c.running = false
	c.degraded = false
	c.eng = nil
	c.actAdapter = nil
	c.locAdapter = nil
	c.logger.Info().Msg("detection stopped")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// IsRunning reports whether the pipeline is up.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Degraded reports whether the pipeline came up without detection
// permissions.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running && c.degraded
}

// State returns the engine lifecycle state, StateIdle when stopped.
func (c *Controller) State() engine.State {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	if eng == nil {
		return engine.StateIdle
	}
	return eng.State()
}

// PendingCount reports stored journeys awaiting submission.
func (c *Controller) PendingCount(ctx context.Context) (int, error) {
	return c.store.CountPending(ctx)
}

// UnsavedCount reports detected journeys held in memory after persistence
// failures.
func (c *Controller) UnsavedCount() int {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	if eng == nil {
		return 0
	}
	return eng.UnsavedCount()
}

// Flush retries persistence of held journeys.
func (c *Controller) Flush(ctx context.Context) error {
	c.mu.Lock()
	eng := c.eng
	c.mu.Unlock()
	if eng == nil {
		return ErrNotRunning
	}
	return eng.Flush(ctx)
}

// SetDebugMode toggles diagnostic event fan-out.
func (c *Controller) SetDebugMode(enabled bool) {
	c.hub.SetDebug(enabled)
}

// DebugMode reports whether diagnostic fan-out is enabled.
func (c *Controller) DebugMode() bool {
	return c.hub.Debug()
}

// IngestActivity feeds one raw activity transition into the pipeline.
func (c *Controller) IngestActivity(raw activity.RawTransition) error {
	c.mu.Lock()
	adapter := c.actAdapter
	c.mu.Unlock()
	if adapter == nil {
		return ErrNotRunning
	}
	adapter.Deliver(raw)
	return nil
}

// IngestFix feeds one raw GPS fix into the pipeline.
func (c *Controller) IngestFix(raw location.RawFix) error {
	c.mu.Lock()
	adapter := c.locAdapter
	c.mu.Unlock()
	if adapter == nil {
		return ErrNotRunning
	}
	adapter.Deliver(raw)
	return nil
}

// SimulateTrip stores a synthetic completed journey and emits the
// trip-detected notification, exercising the full persistence and fan-out
// path without sensors. Debug tooling only.
func (c *Controller) SimulateTrip(ctx context.Context, transport journey.TransportType, duration time.Duration) (*journey.LocalJourney, error) {
	if !c.IsRunning() {
		return nil, ErrNotRunning
	}
	if !transport.Valid() {
		return nil, fmt.Errorf("invalid transport type %q", transport)
	}
	if duration <= 0 {
		duration = 10 * time.Minute
	}

	now := time.Now()
	j := &journey.LocalJourney{
		ID:                    "jrn_" + uuid.New().String()[:22],
		TimeDeparture:         now.Add(-duration),
		TimeArrival:           now,
		DurationMinutes:       journey.DurationMinutes(now.Add(-duration), now),
		DistanceKm:            estimate.EstimateDistanceKm(duration, transport),
		DetectedTransportType: transport,
		ConfidenceAvg:         100,
		DetectionSource:       journey.SourceAuto,
		Status:                journey.StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := c.store.Insert(ctx, j); err != nil {
		return nil, fmt.Errorf("storing simulated journey: %w", err)
	}

	c.logger.Info().
		Str("journey_id", j.ID).
		Str("transport", string(transport)).
		Msg("simulated trip stored")
	c.events().TripDetected(*j)
	return j, nil
}

// events builds the engine.Events sink: hub fan-out plus best-effort
// downstream publish.
func (c *Controller) events() engine.Events {
	return &fanout{
		hub:       c.hub,
		publisher: c.publisher,
		timeout:   c.cfg.PublishTimeout,
		logger:    c.logger,
	}
}

// adapterControl defers the engine's arm/disarm calls to an adapter that is
// constructed after the engine.
type adapterControl struct {
	adapter *location.Adapter
}

func (c *adapterControl) Arm() {
	if c.adapter != nil {
		c.adapter.Arm()
	}
}

func (c *adapterControl) Disarm() {
	if c.adapter != nil {
		c.adapter.Disarm()
	}
}

type fanout struct {
	hub       *Hub
	publisher TripPublisher
	timeout   time.Duration
	logger    zerolog.Logger
}

func (f *fanout) TripDetected(j journey.LocalJourney) {
	f.hub.TripDetected(j)
	if f.publisher == nil {
		return
	}
	// Downstream publish never blocks or fails detection.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		if err := f.publisher.PublishTrip(ctx, j); err != nil {
			f.logger.Warn().Err(err).Str("journey_id", j.ID).Msg("trip publish failed")
		}
	}()
}

func (f *fanout) StateChanged(change engine.StateChange) {
	f.hub.StateChanged(change)
}

func (f *fanout) Diagnostic(d engine.Diagnostic) {
	f.hub.Diagnostic(d)
}
