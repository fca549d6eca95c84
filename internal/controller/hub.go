package controller

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/engine"
	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// Hub fans engine notifications out to subscribers. It implements
// engine.Events, so sends never block: a subscriber that cannot keep up
// loses events rather than stalling the engine.
//
// Diagnostics are only fanned out while debug mode is enabled; trip and
// state events always flow.
type Hub struct {
	logger zerolog.Logger
	debug  atomic.Bool

	mu     sync.RWMutex
	nextID int
	trips  map[int]chan journey.LocalJourney
	states map[int]chan engine.StateChange
	diags  map[int]chan engine.Diagnostic

	dropped atomic.Int64
}

// NewHub creates an event hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "event_hub").Logger(),
		trips:  make(map[int]chan journey.LocalJourney),
		states: make(map[int]chan engine.StateChange),
		diags:  make(map[int]chan engine.Diagnostic),
	}
}

// SetDebug toggles diagnostic fan-out.
func (h *Hub) SetDebug(enabled bool) {
	if h.debug.Swap(enabled) != enabled {
		h.logger.Info().Bool("enabled", enabled).Msg("debug mode changed")
	}
}

// Debug reports whether diagnostic fan-out is enabled.
func (h *Hub) Debug() bool {
	return h.debug.Load()
}

// Dropped reports how many events were discarded on full subscriber buffers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscribeTrips registers a trip listener. The returned cancel func must be
// called to release the subscription; the channel is closed by cancel.
func (h *Hub) SubscribeTrips(buffer int) (<-chan journey.LocalJourney, func()) {
	ch := make(chan journey.LocalJourney, normalizeBuffer(buffer))
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.trips[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.trips[id]; ok {
			delete(h.trips, id)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// SubscribeStates registers a state-change listener.
func (h *Hub) SubscribeStates(buffer int) (<-chan engine.StateChange, func()) {
	ch := make(chan engine.StateChange, normalizeBuffer(buffer))
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.states[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.states[id]; ok {
			delete(h.states, id)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// SubscribeDiagnostics registers a raw diagnostic listener. Events only
// arrive while debug mode is enabled.
func (h *Hub) SubscribeDiagnostics(buffer int) (<-chan engine.Diagnostic, func()) {
	ch := make(chan engine.Diagnostic, normalizeBuffer(buffer))
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.diags[id] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		if _, ok := h.diags[id]; ok {
			delete(h.diags, id)
			close(ch)
		}
		h.mu.Unlock()
	}
}

// TripDetected implements engine.Events.
func (h *Hub) TripDetected(j journey.LocalJourney) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.trips {
		select {
		case ch <- j:
		default:
			h.dropped.Add(1)
		}
	}
}

// StateChanged implements engine.Events.
func (h *Hub) StateChanged(change engine.StateChange) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.states {
		select {
		case ch <- change:
		default:
			h.dropped.Add(1)
		}
	}
}

// Diagnostic implements engine.Events.
func (h *Hub) Diagnostic(d engine.Diagnostic) {
	if !h.debug.Load() {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.diags {
		select {
		case ch <- d:
		default:
			h.dropped.Add(1)
		}
	}
}

func normalizeBuffer(n int) int {
	if n <= 0 {
		return 16
	}
	return n
}
