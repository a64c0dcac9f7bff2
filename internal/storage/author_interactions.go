package storage

import (
	"database/sql"
	"fmt"
)

// IncrementAuthorInteraction bumps today's reply count for authorID and
// returns the new count, used by the safety guard's per-author daily cap.
func (s *Store) IncrementAuthorInteraction(authorID string) (int, error) {
	_, err := s.db.Exec(
		`INSERT INTO author_interactions (author_id, day, reply_count)
		 VALUES (?, date('now'), 1)
		 ON CONFLICT(author_id, day) DO UPDATE SET reply_count = reply_count + 1`,
		authorID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to increment author interaction: %w", err)
	}

	var count int
	err = s.db.QueryRow(
		`SELECT reply_count FROM author_interactions WHERE author_id = ? AND day = date('now')`,
		authorID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read author interaction count: %w", err)
	}
	return count, nil
}

// AuthorInteractionCount returns today's reply count for authorID without
// mutating it.
func (s *Store) AuthorInteractionCount(authorID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT reply_count FROM author_interactions WHERE author_id = ? AND day = date('now')`,
		authorID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read author interaction count: %w", err)
	}
	return count, nil
}
