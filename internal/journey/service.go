package journey

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// Validation constants.
const (
	MaxPlaceLength = 120
	MaxDistanceKm  = 2000
)

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates field errors for a rejected input.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// CreateInput is a manually entered journey from the review layer.
type CreateInput struct {
	TimeDeparture  time.Time
	TimeArrival    time.Time
	DistanceKm     float64
	TransportType  TransportType
	PlaceDeparture string
	PlaceArrival   string
}

// Service provides review-layer operations over the journey store. The
// detection engine writes through the Repository directly; everything the
// human-facing side does goes through here.
type Service struct {
	repo Repository
}

// NewService creates a new journey service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List retrieves all journeys.
func (s *Service) List(ctx context.Context) ([]*LocalJourney, error) {
	return s.repo.List(ctx)
}

// ListPending retrieves journeys awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]*LocalJourney, error) {
	return s.repo.ListPending(ctx)
}

// Get retrieves a journey by ID.
func (s *Service) Get(ctx context.Context, id string) (*LocalJourney, error) {
	return s.repo.Get(ctx, id)
}

// PendingCount returns the number of journeys awaiting review.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.repo.CountPending(ctx)
}

// Update applies review corrections to a journey.
func (s *Service) Update(ctx context.Context, id string, fields UpdateFields) (*LocalJourney, error) {
	if fieldErrors := validateUpdate(fields); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}
	return s.repo.Update(ctx, id, fields)
}

// MarkSent records backend acceptance of a journey. Safe to call twice.
func (s *Service) MarkSent(ctx context.Context, id string) error {
	return s.repo.MarkSent(ctx, id)
}

// Delete removes a journey on explicit user request.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// CreateManual stores a hand-entered journey with detection_source manual.
func (s *Service) CreateManual(ctx context.Context, input CreateInput) (*LocalJourney, error) {
	if fieldErrors := validateCreate(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	now := time.Now()
	j := &LocalJourney{
		ID:                    "jrn_" + uuid.New().String()[:22],
		TimeDeparture:         input.TimeDeparture,
		TimeArrival:           input.TimeArrival,
		DurationMinutes:       DurationMinutes(input.TimeDeparture, input.TimeArrival),
		DistanceKm:            input.DistanceKm,
		DetectedTransportType: input.TransportType,
		PlaceDeparture:        input.PlaceDeparture,
		PlaceArrival:          input.PlaceArrival,
		IsGpsBasedDistance:    false,
		DetectionSource:       SourceManual,
		Status:                StatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Insert(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// DurationMinutes computes the journey duration, rounded to whole minutes.
func DurationMinutes(departure, arrival time.Time) int {
	return int(math.Round(arrival.Sub(departure).Minutes()))
}

func validateUpdate(fields UpdateFields) []FieldError {
	var errs []FieldError

	if fields.TransportType != nil && !fields.TransportType.Valid() {
		errs = append(errs, FieldError{Field: "transportType", Message: "unknown transport type"})
	}
	if fields.DistanceKm != nil {
		errs = append(errs, validateDistance(*fields.DistanceKm)...)
	}
	if fields.PlaceDeparture != nil && len(*fields.PlaceDeparture) > MaxPlaceLength {
		errs = append(errs, FieldError{Field: "placeDeparture", Message: "must be at most 120 characters"})
	}
	if fields.PlaceArrival != nil && len(*fields.PlaceArrival) > MaxPlaceLength {
		errs = append(errs, FieldError{Field: "placeArrival", Message: "must be at most 120 characters"})
	}

	return errs
}

func validateCreate(input CreateInput) []FieldError {
	var errs []FieldError

	if input.TimeDeparture.IsZero() {
		errs = append(errs, FieldError{Field: "timeDeparture", Message: "is required"})
	}
	if input.TimeArrival.IsZero() {
		errs = append(errs, FieldError{Field: "timeArrival", Message: "is required"})
	}
	if !input.TimeDeparture.IsZero() && !input.TimeArrival.IsZero() && !input.TimeArrival.After(input.TimeDeparture) {
		errs = append(errs, FieldError{Field: "timeArrival", Message: "must be after timeDeparture"})
	}
	if !input.TransportType.Valid() {
		errs = append(errs, FieldError{Field: "transportType", Message: "unknown transport type"})
	}
	errs = append(errs, validateDistance(input.DistanceKm)...)
	if len(input.PlaceDeparture) > MaxPlaceLength {
		errs = append(errs, FieldError{Field: "placeDeparture", Message: "must be at most 120 characters"})
	}
	if len(input.PlaceArrival) > MaxPlaceLength {
		errs = append(errs, FieldError{Field: "placeArrival", Message: "must be at most 120 characters"})
	}

	return errs
}

func validateDistance(km float64) []FieldError {
	if km < 0 {
		return []FieldError{{Field: "distanceKm", Message: "must not be negative"}}
	}
	if km > MaxDistanceKm {
		return []FieldError{{Field: "distanceKm", Message: "is implausibly large"}}
	}
	return nil
}
