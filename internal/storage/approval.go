package storage

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ApprovalItem is a row in the approval queue.
type ApprovalItem struct {
	ID               int64
	ActionType       string
	TargetTweetID    string
	TargetAuthor     string
	GeneratedContent string
	Topic            string
	Archetype        string
	Score            float64
	Status           string
	// MediaPaths is a JSON-encoded array, stored as a single TEXT column
	// rather than a side table — the queue only ever needs it round-tripped
	// whole, never queried by individual path.
	MediaPaths string
	CreatedAt  string
	ReviewedAt sql.NullString
	PostedTweetID sql.NullString
}

// ApprovalStats holds counts of approval items grouped by status.
type ApprovalStats struct {
	Pending  int64
	Approved int64
	Rejected int64
}

const approvalColumns = `id, action_type, target_tweet_id, target_author, generated_content,
	topic, archetype, score, status, created_at, reviewed_at, posted_tweet_id,
	COALESCE(media_paths, '[]')`

func scanApprovalItem(row interface{ Scan(...any) error }) (ApprovalItem, error) {
	var it ApprovalItem
	err := row.Scan(&it.ID, &it.ActionType, &it.TargetTweetID, &it.TargetAuthor,
		&it.GeneratedContent, &it.Topic, &it.Archetype, &it.Score, &it.Status,
		&it.CreatedAt, &it.ReviewedAt, &it.PostedTweetID, &it.MediaPaths)
	return it, err
}

// Enqueue inserts a new item into the approval queue and returns its id.
func (s *Store) Enqueue(actionType, targetTweetID, targetAuthor, generatedContent, topic, archetype string, score float64, mediaPaths string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO approval_queue (action_type, target_tweet_id, target_author, generated_content, topic, archetype, score, media_paths)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		actionType, targetTweetID, targetAuthor, generatedContent, topic, archetype, score, mediaPaths,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue approval item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted approval id: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"approval_id": id,
		"action_type": actionType,
		"target":      targetTweetID,
	}).Debug("enqueued approval item")

	return id, nil
}

// GetPending returns all pending items, oldest first.
func (s *Store) GetPending() ([]ApprovalItem, error) {
	return s.queryApprovalItems(
		`SELECT `+approvalColumns+` FROM approval_queue WHERE status = 'pending' ORDER BY created_at ASC`,
	)
}

// PendingCount returns the number of pending items.
func (s *Store) PendingCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM approval_queue WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending approval items: %w", err)
	}
	return n, nil
}

// UpdateStatus sets an item's status and stamps reviewed_at.
func (s *Store) UpdateStatus(id int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE approval_queue SET status = ?, reviewed_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update approval status: %w", err)
	}
	return nil
}

// UpdateContentAndApprove replaces the generated content and approves in
// one step, used when a reviewer edits a pending item before accepting it.
func (s *Store) UpdateContentAndApprove(id int64, newContent string) error {
	_, err := s.db.Exec(
		`UPDATE approval_queue SET generated_content = ?, status = 'approved', reviewed_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		newContent, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update and approve item: %w", err)
	}
	return nil
}

// UpdateContent replaces the generated content without changing status.
func (s *Store) UpdateContent(id int64, newContent string) error {
	_, err := s.db.Exec(`UPDATE approval_queue SET generated_content = ? WHERE id = ?`, newContent, id)
	if err != nil {
		return fmt.Errorf("failed to update approval content: %w", err)
	}
	return nil
}

// UpdateMediaPaths replaces the JSON-encoded media paths.
func (s *Store) UpdateMediaPaths(id int64, mediaPaths string) error {
	_, err := s.db.Exec(`UPDATE approval_queue SET media_paths = ? WHERE id = ?`, mediaPaths, id)
	if err != nil {
		return fmt.Errorf("failed to update media paths: %w", err)
	}
	return nil
}

// GetByID fetches a single item by id.
func (s *Store) GetByID(id int64) (*ApprovalItem, error) {
	row := s.db.QueryRow(`SELECT `+approvalColumns+` FROM approval_queue WHERE id = ?`, id)
	it, err := scanApprovalItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval item %d: %w", id, err)
	}
	return &it, nil
}

// GetStats returns counts grouped by status.
func (s *Store) GetStats() (ApprovalStats, error) {
	var stats ApprovalStats
	err := s.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		FROM approval_queue
	`).Scan(&stats.Pending, &stats.Approved, &stats.Rejected)
	if err != nil {
		return ApprovalStats{}, fmt.Errorf("failed to get approval stats: %w", err)
	}
	return stats, nil
}

// GetByStatuses returns items matching any of the given statuses, optionally
// filtered by action type, ordered oldest-first. An empty statuses slice
// returns an empty result rather than querying.
func (s *Store) GetByStatuses(statuses []string, actionType string) ([]ApprovalItem, error) {
	if len(statuses) == 0 {
		return []ApprovalItem{}, nil
	}

	placeholders := ""
	args := make([]any, 0, len(statuses)+1)
	for i, st := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, st)
	}

	query := `SELECT ` + approvalColumns + ` FROM approval_queue WHERE status IN (` + placeholders + `)`
	if actionType != "" {
		query += ` AND action_type = ?`
		args = append(args, actionType)
	}
	query += ` ORDER BY created_at ASC`

	return s.queryApprovalItems(query, args...)
}

// GetNextApproved returns the oldest approved-but-not-posted item.
func (s *Store) GetNextApproved() (*ApprovalItem, error) {
	row := s.db.QueryRow(`SELECT ` + approvalColumns + ` FROM approval_queue WHERE status = 'approved' ORDER BY reviewed_at ASC LIMIT 1`)
	it, err := scanApprovalItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next approved item: %w", err)
	}
	return &it, nil
}

// MarkPosted marks an approved item posted, recording the resulting tweet id.
func (s *Store) MarkPosted(id int64, tweetID string) error {
	_, err := s.db.Exec(`UPDATE approval_queue SET status = 'posted', posted_tweet_id = ? WHERE id = ?`, tweetID, id)
	if err != nil {
		return fmt.Errorf("failed to mark approval item posted: %w", err)
	}
	return nil
}

// ExpireOldItems marks pending items older than the given hour count as
// expired and returns how many rows changed.
func (s *Store) ExpireOldItems(hours int) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE approval_queue SET status = 'expired', reviewed_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		 WHERE status = 'pending' AND created_at < strftime('%Y-%m-%dT%H:%M:%SZ', 'now', ?)`,
		fmt.Sprintf("-%d hours", hours),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire old approval items: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryApprovalItems(query string, args ...any) ([]ApprovalItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query approval items: %w", err)
	}
	defer rows.Close()

	var items []ApprovalItem
	for rows.Next() {
		it, err := scanApprovalItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
