package storage

import (
	"fmt"
)

// DiscoveredTweetMetrics carries the engagement counters recorded for a
// discovered tweet at the time it was scored.
type DiscoveredTweetMetrics struct {
	Likes       int
	Retweets    int
	Replies     int
	Impressions int
}

// DiscoveredTweet is a tweet surfaced by the discovery loop.
type DiscoveredTweet struct {
	TweetID        string
	AuthorID       string
	AuthorUsername string
	Text           string
	Score          float64
	MatchedKeyword string
	Metrics        DiscoveredTweetMetrics
	DiscoveredAt   string
	Replied        bool
}

// UpsertDiscovered inserts a newly discovered tweet, or leaves an existing
// row untouched (the discovery loop may re-surface the same tweet across
// overlapping search windows).
func (s *Store) UpsertDiscovered(tweetID, authorID, authorUsername, text, matchedKeyword string, score float64, metrics DiscoveredTweetMetrics) error {
	_, err := s.db.Exec(
		`INSERT INTO discovered_tweets (
			tweet_id, author_id, author_username, text, score, matched_keyword,
			likes, retweets, replies, impressions, discovered_at, replied
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'), 0)
		 ON CONFLICT(tweet_id) DO NOTHING`,
		tweetID, authorID, authorUsername, text, score, matchedKeyword,
		metrics.Likes, metrics.Retweets, metrics.Replies, metrics.Impressions,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert discovered tweet: %w", err)
	}
	return nil
}

// ExistsDiscovered reports whether tweetID has already been recorded.
func (s *Store) ExistsDiscovered(tweetID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM discovered_tweets WHERE tweet_id = ?`, tweetID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check discovered tweet: %w", err)
	}
	return n > 0, nil
}

// MarkDiscoveredReplied flags a discovered tweet as having been replied to.
func (s *Store) MarkDiscoveredReplied(tweetID string) error {
	_, err := s.db.Exec(`UPDATE discovered_tweets SET replied = 1 WHERE tweet_id = ?`, tweetID)
	if err != nil {
		return fmt.Errorf("failed to mark discovered tweet replied: %w", err)
	}
	return nil
}

// UnrepliedDiscovered returns discovered tweets not yet replied to, highest
// score first, capped at limit.
func (s *Store) UnrepliedDiscovered(limit int) ([]DiscoveredTweet, error) {
	rows, err := s.db.Query(
		`SELECT tweet_id, author_id, author_username, text, score, matched_keyword,
			likes, retweets, replies, impressions, discovered_at, replied
		 FROM discovered_tweets WHERE replied = 0 ORDER BY score DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unreplied discovered tweets: %w", err)
	}
	defer rows.Close()

	var out []DiscoveredTweet
	for rows.Next() {
		var d DiscoveredTweet
		if err := rows.Scan(
			&d.TweetID, &d.AuthorID, &d.AuthorUsername, &d.Text, &d.Score, &d.MatchedKeyword,
			&d.Metrics.Likes, &d.Metrics.Retweets, &d.Metrics.Replies, &d.Metrics.Impressions,
			&d.DiscoveredAt, &d.Replied,
		); err != nil {
			return nil, fmt.Errorf("failed to scan discovered tweet: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
