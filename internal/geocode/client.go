// Package geocode resolves trip endpoint coordinates to human-readable
// place names via a Nominatim-compatible reverse geocoding service.
//
// The upstream is rate-limited and occasionally flaky, so calls go through
// a circuit breaker with exponential-backoff retries. Place names are
// cosmetic: callers treat every error as "leave the place empty".
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors.
var (
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("geocoding service unavailable")

	// ErrNoResult is returned when the service cannot resolve the coordinate.
	ErrNoResult = errors.New("no place found for coordinate")
)

// Config holds the reverse geocoding client configuration.
type Config struct {
	// BaseURL of the Nominatim-compatible endpoint, without trailing slash.
	BaseURL string

	// UserAgent sent with every request. Nominatim's usage policy requires
	// an identifying agent.
	UserAgent string

	// Timeout is the per-request timeout. Default: 5 seconds.
	Timeout time.Duration

	// MaxRetries bounds retry attempts on transient failures. Default: 2.
	MaxRetries uint64

	// InitialInterval is the first retry backoff interval. Default: 250ms.
	InitialInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if c.UserAgent == "" {
		c.UserAgent = "tripdetect/1.0"
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 250 * time.Millisecond
	}
	return c
}

// Client is a resilient reverse geocoding client.
type Client struct {
	cfg        Config
	logger     zerolog.Logger
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*reverseResponse]
}

// New creates a reverse geocoding client.
func New(cfg Config, logger zerolog.Logger) *Client {
	cfg = cfg.withDefaults()

	log := logger.With().Str("component", "geocoder").Logger()
	breaker := gobreaker.NewCircuitBreaker[*reverseResponse](gobreaker.Settings{
		Name:        "geocode",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geocoding circuit breaker state changed")
		},
	})

	return &Client{
		cfg:        cfg,
		logger:     log,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

// reverseResponse is the subset of the Nominatim reverse payload we use.
type reverseResponse struct {
	Error       string `json:"error"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Pedestrian    string `json:"pedestrian"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		Village       string `json:"village"`
		Town          string `json:"town"`
		City          string `json:"city"`
	} `json:"address"`
}

// serverError marks a 5xx reply so the breaker and retry loop treat it as
// transient.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return "geocode server error: " + http.StatusText(e.statusCode)
}

// Reverse resolves lat/lon to a short place name such as "Rue de Rivoli,
// Paris". Transient failures are retried with exponential backoff; while the
// circuit breaker is open it returns ErrUnavailable immediately.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	var result *reverseResponse
	operation := func() error {
		resp, err := c.breaker.Execute(func() (*reverseResponse, error) {
			return c.fetch(ctx, lat, lon)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrUnavailable)
			}
			var se *serverError
			if errors.As(err, &se) {
				return err
			}
			if errors.Is(err, ErrNoResult) {
				return backoff.Permanent(err)
			}
			// Network errors are retryable.
			return err
		}
		result = resp
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return placeName(result), nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (*reverseResponse, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lon))
	q.Set("zoom", "17")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build reverse request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &serverError{statusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request failed: %s", resp.Status)
	}

	var payload reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reverse response: %w", err)
	}
	if payload.Error != "" {
		return nil, ErrNoResult
	}
	return &payload, nil
}

// placeName composes a short "street, locality" label from the address
// fields, falling back to the display name.
func placeName(r *reverseResponse) string {
	if r == nil {
		return ""
	}

	street := r.Address.Road
	if street == "" {
		street = r.Address.Pedestrian
	}
	if street == "" {
		street = r.Address.Neighbourhood
	}

	locality := r.Address.City
	if locality == "" {
		locality = r.Address.Town
	}
	if locality == "" {
		locality = r.Address.Village
	}
	if locality == "" {
		locality = r.Address.Suburb
	}

	switch {
	case street != "" && locality != "":
		return street + ", " + locality
	case street != "":
		return street
	case locality != "":
		return locality
	}

	// display_name is a long comma-separated chain; keep the head.
	if parts := strings.SplitN(r.DisplayName, ",", 3); len(parts) >= 2 {
		return strings.TrimSpace(parts[0]) + "," + parts[1]
	}
	return r.DisplayName
}
