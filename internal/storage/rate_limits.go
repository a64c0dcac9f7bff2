package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CheckAndIncrement atomically checks whether action_type is under max for
// the given window, and if so increments its counter and returns true. The
// window resets (count goes back to 1) once windowStart is more than
// window old. This runs inside a transaction so concurrent callers for the
// same action_type serialize on SQLite's writer lock rather than racing.
func (s *Store) CheckAndIncrement(actionType string, max int, window time.Duration) (bool, int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin rate limit tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	var windowStart string
	var count int
	err = tx.QueryRow(`SELECT window_start, count FROM rate_limits WHERE action_type = ?`, actionType).Scan(&windowStart, &count)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(
			`INSERT INTO rate_limits (action_type, window_start, count) VALUES (?, ?, 1)`,
			actionType, now.Format(time.RFC3339),
		); err != nil {
			return false, 0, fmt.Errorf("failed to insert rate limit row: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("failed to commit rate limit tx: %w", err)
		}
		return true, 1, nil

	case err != nil:
		return false, 0, fmt.Errorf("failed to read rate limit row: %w", err)
	}

	start, parseErr := time.Parse(time.RFC3339, windowStart)
	if parseErr != nil {
		start = now
	}

	if now.Sub(start) >= window {
		if _, err := tx.Exec(
			`UPDATE rate_limits SET window_start = ?, count = 1 WHERE action_type = ?`,
			now.Format(time.RFC3339), actionType,
		); err != nil {
			return false, 0, fmt.Errorf("failed to reset rate limit window: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("failed to commit rate limit tx: %w", err)
		}
		return true, 1, nil
	}

	if count >= max {
		if err := tx.Commit(); err != nil {
			return false, 0, fmt.Errorf("failed to commit rate limit tx: %w", err)
		}
		return false, count, nil
	}

	newCount := count + 1
	if _, err := tx.Exec(`UPDATE rate_limits SET count = ? WHERE action_type = ?`, newCount, actionType); err != nil {
		return false, 0, fmt.Errorf("failed to increment rate limit count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit rate limit tx: %w", err)
	}

	return true, newCount, nil
}

// CurrentCount returns the live count for action_type without mutating it,
// used by the safety guard to report RateLimited{current, max} denials.
func (s *Store) CurrentCount(actionType string, window time.Duration) (int, error) {
	var windowStart string
	var count int
	err := s.db.QueryRow(`SELECT window_start, count FROM rate_limits WHERE action_type = ?`, actionType).Scan(&windowStart, &count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rate limit count: %w", err)
	}

	start, parseErr := time.Parse(time.RFC3339, windowStart)
	if parseErr != nil || time.Now().UTC().Sub(start) >= window {
		return 0, nil
	}
	return count, nil
}
