package journey

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// Intended for tests and ephemeral deployments; production uses
// PostgresRepository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	journeys map[string]*LocalJourney
}

// NewInMemoryRepository creates a new in-memory journey repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		journeys: make(map[string]*LocalJourney),
	}
}

// Insert stores a new journey.
func (r *InMemoryRepository) Insert(_ context.Context, j *LocalJourney) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *j
	r.journeys[j.ID] = &cpy
	return nil
}

// Get retrieves a journey by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*LocalJourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.journeys[id]
	if !ok {
		return nil, ErrJourneyNotFound
	}

	cpy := *j
	return &cpy, nil
}

// List retrieves all journeys, newest departure first.
func (r *InMemoryRepository) List(_ context.Context) ([]*LocalJourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(*LocalJourney) bool { return true }), nil
}

// ListPending retrieves journeys awaiting review, newest departure first.
func (r *InMemoryRepository) ListPending(_ context.Context) ([]*LocalJourney, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(j *LocalJourney) bool { return j.Status == StatusPending }), nil
}

// CountPending returns the number of pending journeys.
func (r *InMemoryRepository) CountPending(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, j := range r.journeys {
		if j.Status == StatusPending {
			count++
		}
	}
	return count, nil
}

// Update applies the non-nil fields and bumps UpdatedAt.
func (r *InMemoryRepository) Update(_ context.Context, id string, fields UpdateFields) (*LocalJourney, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.journeys[id]
	if !ok {
		return nil, ErrJourneyNotFound
	}

	if fields.TransportType != nil {
		j.DetectedTransportType = *fields.TransportType
	}
	if fields.DistanceKm != nil {
		j.DistanceKm = *fields.DistanceKm
	}
	if fields.PlaceDeparture != nil {
		j.PlaceDeparture = *fields.PlaceDeparture
	}
	if fields.PlaceArrival != nil {
		j.PlaceArrival = *fields.PlaceArrival
	}
	j.UpdatedAt = time.Now()

	cpy := *j
	return &cpy, nil
}

// MarkSent transitions a journey to StatusSent. Idempotent.
func (r *InMemoryRepository) MarkSent(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.journeys[id]
	if !ok {
		return ErrJourneyNotFound
	}

	if j.Status != StatusSent {
		j.Status = StatusSent
		j.UpdatedAt = time.Now()
	}
	return nil
}

// Delete removes a journey.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.journeys, id)
	return nil
}

// collect copies matching journeys sorted by departure descending.
// Caller must hold at least a read lock.
func (r *InMemoryRepository) collect(match func(*LocalJourney) bool) []*LocalJourney {
	var journeys []*LocalJourney
	for _, j := range r.journeys {
		if match(j) {
			cpy := *j
			journeys = append(journeys, &cpy)
		}
	}

	sort.Slice(journeys, func(i, k int) bool {
		return journeys[i].TimeDeparture.After(journeys[k].TimeDeparture)
	})
	return journeys
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
