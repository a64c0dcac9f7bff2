package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// GetCursor returns the stored max_id for name, or "" if never set.
func (s *Store) GetCursor(name string) (string, error) {
	var maxID string
	err := s.db.QueryRow(`SELECT max_id FROM cursors WHERE name = ?`, name).Scan(&maxID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cursor %s: %w", name, err)
	}
	return maxID, nil
}

// UpdateMaxID advances the stored cursor to newID if and only if newID is
// numerically (or, failing that, lexicographically) greater than what is
// currently stored. This is the only comparison rule used anywhere for
// cursor advancement — restart semantics depend on never silently going
// backwards.
func (s *Store) UpdateMaxID(name, newID string) error {
	current, err := s.GetCursor(name)
	if err != nil {
		return err
	}

	if current != "" && !compareNumericID(newID, current) {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO cursors (name, max_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET max_id = excluded.max_id, updated_at = excluded.updated_at`,
		name, newID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to update cursor %s: %w", name, err)
	}
	return nil
}

// compareNumericID reports whether a is strictly greater than b, treating
// both as numeric-id strings: a longer digit string wins outright (it
// represents a larger number), and equal-length strings fall back to
// lexicographic comparison, which agrees with numeric comparison for
// same-length decimal strings.
func compareNumericID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
