package journey

import "context"

// Repository defines durable, per-record-atomic persistence for journeys.
// All operations survive process restarts in the production implementation.
type Repository interface {
	// Insert stores a new journey.
	Insert(ctx context.Context, j *LocalJourney) error

	// Get retrieves a journey by ID.
	// Returns ErrJourneyNotFound if it does not exist.
	Get(ctx context.Context, id string) (*LocalJourney, error)

	// List retrieves all journeys, newest departure first.
	List(ctx context.Context) ([]*LocalJourney, error)

	// ListPending retrieves journeys awaiting review, newest departure first.
	ListPending(ctx context.Context) ([]*LocalJourney, error)

	// CountPending returns the number of pending journeys.
	CountPending(ctx context.Context) (int, error)

	// Update applies the non-nil fields and bumps UpdatedAt.
	Update(ctx context.Context, id string, fields UpdateFields) (*LocalJourney, error)

	// MarkSent transitions a journey to StatusSent. Idempotent: marking an
	// already-sent journey is not an error, since network retries can
	// duplicate the call.
	MarkSent(ctx context.Context, id string) error

	// Delete removes a journey. Deletion is always an explicit user action.
	Delete(ctx context.Context, id string) error
}
