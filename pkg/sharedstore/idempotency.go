package sharedstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SetIfAbsent atomically inserts key with the given TTL unless it
// already exists (and hasn't expired). Returns (true, firstSeenAt) if
// the key was newly inserted, (false, firstSeenAt) if a live entry
// already existed. A stale (expired) row is overwritten in place.
func (s *Store) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (inserted bool, firstSeenAt time.Time, err error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, time.Time{}, err
	}
	defer tx.Rollback()

	var existingFirstSeen time.Time
	var existingExpiry time.Time
	row := tx.QueryRowContext(ctx, `SELECT first_seen_at, expires_at FROM idempotency_keys WHERE key = $1`, key)
	switch scanErr := row.Scan(&existingFirstSeen, &existingExpiry); {
	case errors.Is(scanErr, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO idempotency_keys (key, first_seen_at, expires_at) VALUES ($1, $2, $3)`,
			key, now, expiresAt); err != nil {
			return false, time.Time{}, err
		}
		if err := tx.Commit(); err != nil {
			return false, time.Time{}, err
		}
		return true, now, nil
	case scanErr != nil:
		return false, time.Time{}, scanErr
	default:
		if existingExpiry.Before(now) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE idempotency_keys SET first_seen_at = $2, expires_at = $3 WHERE key = $1`,
				key, now, expiresAt); err != nil {
				return false, time.Time{}, err
			}
			if err := tx.Commit(); err != nil {
				return false, time.Time{}, err
			}
			return true, now, nil
		}
		return false, existingFirstSeen, nil
	}
}
