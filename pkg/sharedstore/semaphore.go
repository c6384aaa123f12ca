package sharedstore

import (
	"context"
	"time"
)

// TryAcquireLease performs the atomic compare-and-increment described
// in spec.md §4.8's "shared-store scripting" note: in one transaction,
// read the current in-flight count for name, and if it's below max,
// increment it and refresh the lease's heartbeat timestamp; otherwise
// reject. Any lease whose updated_at is older than heartbeatTTL is
// treated as abandoned and its in_flight count reset to zero before
// the comparison, so a crashed holder cannot wedge the semaphore shut
// forever.
func (s *Store) TryAcquireLease(ctx context.Context, name string, max int, heartbeatTTL time.Duration) (acquired bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now()
	var inFlight int
	var updatedAt time.Time
	row := tx.QueryRowContext(ctx, `SELECT in_flight, updated_at FROM semaphore_leases WHERE name = $1 FOR UPDATE`, name)
	switch scanErr := row.Scan(&inFlight, &updatedAt); scanErr {
	case nil:
		if now.Sub(updatedAt) > heartbeatTTL {
			inFlight = 0
		}
	default:
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO semaphore_leases (name, in_flight, max_permits, updated_at) VALUES ($1, 0, $2, $3)
			 ON CONFLICT (name) DO NOTHING`, name, max, now); err != nil {
			return false, err
		}
		inFlight = 0
	}

	if inFlight >= max {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE semaphore_leases SET in_flight = $2, max_permits = $3, updated_at = $4 WHERE name = $1`,
		name, inFlight+1, max, now); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// ReleaseLease decrements name's in-flight count, never going below
// zero even if called more times than TryAcquireLease succeeded (a
// defensive floor matching the local backend's behavior).
func (s *Store) ReleaseLease(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE semaphore_leases SET in_flight = GREATEST(in_flight - 1, 0), updated_at = $2 WHERE name = $1`,
		name, time.Now())
	return err
}

// LeaseInFlight reads the current in-flight count for name, used by
// the metrics snapshot when the shared backend is active.
func (s *Store) LeaseInFlight(ctx context.Context, name string) (int, error) {
	var inFlight int
	err := s.db.QueryRowContext(ctx, `SELECT in_flight FROM semaphore_leases WHERE name = $1`, name).Scan(&inFlight)
	if err != nil {
		return 0, err
	}
	return inFlight, nil
}
