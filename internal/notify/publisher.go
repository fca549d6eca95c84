// Package notify publishes detected journeys to Pub/Sub for downstream
// consumers (submission pipeline, analytics). Publishing is optional and
// best-effort: a failed publish never blocks or rolls back detection.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/greenmobilitypass/tripdetect/internal/journey"
)

// Config holds the Pub/Sub publisher configuration.
type Config struct {
	ProjectID string
	TopicName string
}

// TripMessage is the published payload for a detected journey.
type TripMessage struct {
	JourneyID       string    `json:"journey_id"`
	TransportType   string    `json:"transport_type"`
	DetectionSource string    `json:"detection_source"`
	TimeDeparture   time.Time `json:"time_departure"`
	TimeArrival     time.Time `json:"time_arrival"`
	DurationMinutes int       `json:"duration_minutes"`
	DistanceKm      float64   `json:"distance_km"`
	GpsBased        bool      `json:"gps_based"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Publisher publishes trip-detected messages.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// NewPublisher creates a Pub/Sub publisher for detected trips.
func NewPublisher(ctx context.Context, cfg Config, logger zerolog.Logger) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    logger.With().Str("component", "trip_publisher").Logger(),
	}, nil
}

// PublishTrip publishes one detected journey and waits for the server ack.
func (p *Publisher) PublishTrip(ctx context.Context, j journey.LocalJourney) error {
	msg := TripMessage{
		JourneyID:       j.ID,
		TransportType:   string(j.DetectedTransportType),
		DetectionSource: string(j.DetectionSource),
		TimeDeparture:   j.TimeDeparture.UTC(),
		TimeArrival:     j.TimeArrival.UTC(),
		DurationMinutes: j.DurationMinutes,
		DistanceKm:      j.DistanceKm,
		GpsBased:        j.IsGpsBasedDistance,
		DetectedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling trip message: %w", err)
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":     "trip_detected",
			"transport_type": string(j.DetectedTransportType),
		},
	})

	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing trip %s: %w", j.ID, err)
	}

	p.logger.Debug().
		Str("journey_id", j.ID).
		Str("message_id", id).
		Str("topic", p.topicName).
		Msg("trip published")
	return nil
}

// Close flushes and closes the underlying client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}
