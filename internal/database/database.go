// Package database provides PostgreSQL connection management.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "tripdetect"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "tripdetect"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: lifetime,
	}
}

// ConnectionString returns the PostgreSQL connection string.
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Connect creates a new database connection pool.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // MaxOpenConns is bounded by config validation
	poolConfig.MinConns = int32(cfg.MaxIdleConns) //nolint:gosec // MaxIdleConns is bounded by config validation
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the journeys table if it does not exist. The daemon
// owns its local store, so schema bootstrap lives here rather than in an
// external migration pipeline.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS journeys (
			id                      TEXT PRIMARY KEY,
			time_departure          TIMESTAMPTZ NOT NULL,
			time_arrival            TIMESTAMPTZ NOT NULL,
			duration_minutes        INTEGER NOT NULL,
			distance_km             DOUBLE PRECISION NOT NULL,
			detected_transport_type TEXT NOT NULL,
			confidence_avg          INTEGER NOT NULL DEFAULT 0,
			place_departure         TEXT NOT NULL DEFAULT '',
			place_arrival           TEXT NOT NULL DEFAULT '',
			start_lat               DOUBLE PRECISION,
			start_lon               DOUBLE PRECISION,
			end_lat                 DOUBLE PRECISION,
			end_lon                 DOUBLE PRECISION,
			is_gps_based_distance   BOOLEAN NOT NULL DEFAULT FALSE,
			gps_points_count        INTEGER NOT NULL DEFAULT 0,
			gps_trace               TEXT NOT NULL DEFAULT '',
			detection_source        TEXT NOT NULL,
			status                  TEXT NOT NULL,
			created_at              TIMESTAMPTZ NOT NULL,
			updated_at              TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journeys_status ON journeys (status);
		CREATE INDEX IF NOT EXISTS idx_journeys_time_departure ON journeys (time_departure DESC);
	`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure journeys schema: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
