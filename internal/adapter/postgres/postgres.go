// Package postgres persists alerts in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/hailwatch/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id          BIGSERIAL PRIMARY KEY,
	alert_id    TEXT NOT NULL UNIQUE,
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	hail_size   DOUBLE PRECISION NOT NULL,
	source      TEXT NOT NULL,
	roof_count  INTEGER NOT NULL DEFAULT 0 CHECK (roof_count >= 0),
	city        TEXT,
	state       TEXT,
	county      TEXT,
	"timestamp" TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL     string
	MinConn int
	MaxConn int
}

// NewPool creates a pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MinConns = int32(cfg.MinConn)
	poolConfig.MaxConns = int32(cfg.MaxConn)
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store is the alert store gateway backed by the alerts table.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewStore wraps a pool. Every call is bounded by timeout.
func NewStore(pool *pgxpool.Pool, timeout time.Duration) *Store {
	return &Store{pool: pool, timeout: timeout}
}

// EnsureSchema creates the alerts table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exists reports whether an alert with the id is already stored.
func (s *Store) Exists(ctx context.Context, alertID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE alert_id = $1)`, alertID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup alert %s: %w", alertID, err)
	}
	return exists, nil
}

// Insert writes one alert. A unique violation on alert_id returns
// domain.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, a domain.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO alerts (alert_id, lat, lon, hail_size, source, roof_count, city, state, county, "timestamp")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.AlertID, a.Lat, a.Lon, a.HailSize, string(a.Source), a.RoofCount, a.City, a.State, a.County, a.Timestamp,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert alert %s: %w", a.AlertID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert alert %s: %w", a.AlertID, err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

// TryLock takes a session-level advisory lock keyed on name without waiting.
// The lock lives on a dedicated connection held until release is called, so it
// is also freed if the process dies.
func (s *Store) TryLock(ctx context.Context, name string) (release func(), acquired bool, err error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}
	if err := conn.QueryRow(acquireCtx, `SELECT pg_try_advisory_lock(hashtext($1))`, name).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock %s: %w", name, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtext($1))`, name); err != nil {
			// Drop the connection so the session, and its lock, end with it.
			_ = conn.Conn().Close(unlockCtx)
		}
		conn.Release()
	}, true, nil
}
