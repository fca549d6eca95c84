package journey

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const journeyColumns = `
	id, time_departure, time_arrival, duration_minutes, distance_km,
	detected_transport_type, confidence_avg,
	place_departure, place_arrival,
	start_lat, start_lon, end_lat, end_lon,
	is_gps_based_distance, gps_points_count, gps_trace,
	detection_source, status, created_at, updated_at
`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL journey repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores a new journey.
func (r *PostgresRepository) Insert(ctx context.Context, j *LocalJourney) error {
	query := `
		INSERT INTO journeys (` + journeyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.pool.Exec(ctx, query,
		j.ID,
		j.TimeDeparture,
		j.TimeArrival,
		j.DurationMinutes,
		j.DistanceKm,
		j.DetectedTransportType,
		j.ConfidenceAvg,
		j.PlaceDeparture,
		j.PlaceArrival,
		j.StartLat,
		j.StartLon,
		j.EndLat,
		j.EndLon,
		j.IsGpsBasedDistance,
		j.GpsPointsCount,
		j.GpsTrace,
		j.DetectionSource,
		j.Status,
		j.CreatedAt,
		j.UpdatedAt,
	)
	return err
}

// Get retrieves a journey by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*LocalJourney, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	j, err := scanJourney(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJourneyNotFound
		}
		return nil, err
	}
	return j, nil
}

// List retrieves all journeys, newest departure first.
func (r *PostgresRepository) List(ctx context.Context) ([]*LocalJourney, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys ORDER BY time_departure DESC`
	return r.queryJourneys(ctx, query)
}

// ListPending retrieves journeys awaiting review, newest departure first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*LocalJourney, error) {
	query := `SELECT ` + journeyColumns + ` FROM journeys WHERE status = $1 ORDER BY time_departure DESC`
	return r.queryJourneys(ctx, query, StatusPending)
}

// CountPending returns the number of pending journeys.
func (r *PostgresRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM journeys WHERE status = $1`, StatusPending,
	).Scan(&count)
	return count, err
}

// Update applies the non-nil fields and bumps updated_at. The update is a
// single statement, keeping the per-record atomicity guarantee.
func (r *PostgresRepository) Update(ctx context.Context, id string, fields UpdateFields) (*LocalJourney, error) {
	query := `
		UPDATE journeys SET
			detected_transport_type = COALESCE($2, detected_transport_type),
			distance_km = COALESCE($3, distance_km),
			place_departure = COALESCE($4, place_departure),
			place_arrival = COALESCE($5, place_arrival),
			updated_at = $6
		WHERE id = $1
		RETURNING ` + journeyColumns

	row := r.pool.QueryRow(ctx, query,
		id,
		fields.TransportType,
		fields.DistanceKm,
		fields.PlaceDeparture,
		fields.PlaceArrival,
		time.Now(),
	)

	j, err := scanJourney(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJourneyNotFound
		}
		return nil, err
	}
	return j, nil
}

// MarkSent transitions a journey to sent. Idempotent: an already-sent
// journey matches zero rows on the status predicate but still exists, so
// the existence check decides between success and ErrJourneyNotFound.
func (r *PostgresRepository) MarkSent(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE journeys SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`,
		id, StatusSent, time.Now(),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM journeys WHERE id = $1)`, id,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrJourneyNotFound
		}
	}
	return nil
}

// Delete removes a journey.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM journeys WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) queryJourneys(ctx context.Context, query string, args ...interface{}) ([]*LocalJourney, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journeys []*LocalJourney
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return journeys, nil
}

func scanJourney(row pgx.Row) (*LocalJourney, error) {
	var j LocalJourney
	err := row.Scan(
		&j.ID,
		&j.TimeDeparture,
		&j.TimeArrival,
		&j.DurationMinutes,
		&j.DistanceKm,
		&j.DetectedTransportType,
		&j.ConfidenceAvg,
		&j.PlaceDeparture,
		&j.PlaceArrival,
		&j.StartLat,
		&j.StartLon,
		&j.EndLat,
		&j.EndLon,
		&j.IsGpsBasedDistance,
		&j.GpsPointsCount,
		&j.GpsTrace,
		&j.DetectionSource,
		&j.Status,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
