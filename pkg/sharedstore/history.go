package sharedstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const sharedHistoryRetention = 500

// AppendDecision stores one decision record's JSON payload and prunes
// the table back to the 500 most recent entries.
func (s *Store) AppendDecision(ctx context.Context, reviewID string, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decision_history (review_id, recorded_at, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (review_id) DO UPDATE SET recorded_at = $2, payload = $3`,
		reviewID, time.Now(), payload); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM decision_history WHERE review_id IN (
			SELECT review_id FROM decision_history
			ORDER BY recorded_at DESC
			OFFSET $1
		)`, sharedHistoryRetention); err != nil {
		return err
	}

	return tx.Commit()
}

// RecentDecisions returns the n most recent decision payloads, newest first.
func (s *Store) RecentDecisions(ctx context.Context, n int) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM decision_history ORDER BY recorded_at DESC LIMIT $1`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// DecisionByID fetches one decision payload by review id.
func (s *Store) DecisionByID(ctx context.Context, reviewID string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM decision_history WHERE review_id = $1`, reviewID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}
