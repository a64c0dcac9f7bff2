package storage

import (
	"fmt"
)

// ReplySent is a record of a reply the agent has already posted.
type ReplySent struct {
	ID            int64
	TargetTweetID string
	ReplyTweetID  string
	Content       string
	AuthorID      string
	CreatedAt     string
}

// HasRepliedTo reports whether the agent has already replied to
// targetTweetID — the exact-dedup check.
func (s *Store) HasRepliedTo(targetTweetID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM replies_sent WHERE target_tweet_id = ?`, targetTweetID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check existing reply: %w", err)
	}
	return n > 0, nil
}

// RecordReply inserts a sent reply.
func (s *Store) RecordReply(targetTweetID, replyTweetID, content, authorID string) error {
	_, err := s.db.Exec(
		`INSERT INTO replies_sent (target_tweet_id, reply_tweet_id, content, author_id, created_at)
		 VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))`,
		targetTweetID, replyTweetID, content, authorID,
	)
	if err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	return nil
}

// RecentReplyContents returns the content of the n most recently sent
// replies, newest first, used for fuzzy phrasing-similarity dedup.
func (s *Store) RecentReplyContents(n int) ([]string, error) {
	rows, err := s.db.Query(`SELECT content FROM replies_sent ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent replies: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan recent reply: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// ReplyCountForAuthorToday returns how many replies were sent to authorID
// since the start of the current UTC day, for the per-author daily cap.
func (s *Store) ReplyCountForAuthorToday(authorID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM replies_sent WHERE author_id = ? AND date(created_at) = date('now')`,
		authorID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count author replies: %w", err)
	}
	return n, nil
}
