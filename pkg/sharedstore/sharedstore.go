// Package sharedstore provides the optional distributed backend used
// by the idempotency guard, two-level semaphore, decision history, and
// attestation ledger when an operator configures a shared Postgres
// instance. Its absence means every component falls back to its
// in-memory, single-instance backend.
//
// Grounded on the teacher's `pkg/database/client.go` connection-pool
// and health-probe pattern, rebuilt without the `ent.Client` wrapper
// (see DESIGN.md for why `entgo.io/ent` was dropped): a plain
// `database/sql` handle opened through the pgx stdlib driver, pooled
// the same way, migrated with `golang-migrate` the same way, but with
// hand-written SQL instead of a generated ORM client.
package sharedstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config configures the shared-store connection. An empty DSN means
// the shared store is disabled and every caller should use the
// in-memory backend instead.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 15 * time.Minute
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	return c
}

// Store wraps a pooled Postgres connection and exposes the tables the
// idempotency guard, semaphore, decision history, and ledger need.
type Store struct {
	db *sql.DB
}

// Enabled reports whether a DSN was configured at all.
func (c Config) Enabled() bool { return c.DSN != "" }

// Open connects, pings within cfg.ConnectTimeout, configures the pool,
// and runs embedded migrations. Returns (nil, err) on any failure; the
// caller is expected to fall back to in-memory backends and mark
// instance_mode degraded rather than fail startup, except when the
// operator explicitly requires the shared store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sharedstore: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sharedstore: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sharedstore: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	// Intentionally do not call m.Close(): it would close db too,
	// which this Store keeps open for the rest of the process.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw pool for components that issue their own SQL.
func (s *Store) DB() *sql.DB { return s.db }

// HealthStatus mirrors the teacher's `pkg/database/health.go` shape.
type HealthStatus struct {
	Healthy         bool          `json:"healthy"`
	ResponseTime    time.Duration `json:"response_time"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
}

// Health pings the store and reports pool statistics; it never
// returns an error — an unreachable store simply reports Healthy:false
// so callers can compute instance_mode=degraded without their own
// error-handling branch.
func (s *Store) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := s.db.PingContext(pingCtx)
	stats := s.db.Stats()
	return HealthStatus{
		Healthy:         err == nil,
		ResponseTime:    time.Since(start),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
	}
}
