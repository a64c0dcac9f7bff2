// Package approval sits between the posting pipeline and the storage
// layer's approval_queue table, translating pipeline actions into queued
// review items and exposing the review workflow (list, approve, reject,
// edit, post) used when approval_mode is enabled.
package approval

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/storage"
)

// store is the storage surface this package needs.
type store interface {
	Enqueue(actionType, targetTweetID, targetAuthor, generatedContent, topic, archetype string, score float64, mediaPaths string) (int64, error)
	GetPending() ([]storage.ApprovalItem, error)
	PendingCount() (int64, error)
	UpdateStatus(id int64, status string) error
	UpdateContentAndApprove(id int64, newContent string) error
	UpdateContent(id int64, newContent string) error
	UpdateMediaPaths(id int64, mediaPaths string) error
	GetByID(id int64) (*storage.ApprovalItem, error)
	GetStats() (storage.ApprovalStats, error)
	GetByStatuses(statuses []string, actionType string) ([]storage.ApprovalItem, error)
	GetNextApproved() (*storage.ApprovalItem, error)
	MarkPosted(id int64, tweetID string) error
	ExpireOldItems(hours int) (int64, error)
}

// Item mirrors storage.ApprovalItem; declared here too so this package's
// exported API doesn't leak storage's concrete type.
type Item struct {
	ID               int64
	ActionType       string
	TargetTweetID    string
	TargetAuthor     string
	GeneratedContent string
	Topic            string
	Archetype        string
	Score            float64
	Status           string
	MediaPaths       []string
	CreatedAt        string
	PostedTweetID    string
}

// Stats holds counts of approval items grouped by status.
type Stats struct {
	Pending  int64
	Approved int64
	Rejected int64
}

// Queue is the review-workflow facade over the approval_queue table.
type Queue struct {
	logger *logrus.Logger
	store  store
}

// New builds a Queue over store.
func New(logger *logrus.Logger, store store) *Queue {
	return &Queue{logger: logger, store: store}
}

// QueueReply enqueues a reply for human review. Implements
// pipeline.ApprovalQueue.
func (q *Queue) QueueReply(tweetID, content string) (int64, error) {
	return q.store.Enqueue("reply", tweetID, "", content, "", "", 0, "[]")
}

// QueueTweet enqueues an original tweet for human review. Implements
// pipeline.ApprovalQueue.
func (q *Queue) QueueTweet(content string) (int64, error) {
	return q.store.Enqueue("tweet", "", "", content, "", "", 0, "[]")
}

// Enqueue is the full-fidelity enqueue used by the content loop, which has
// topic/archetype/score metadata the bare pipeline routing doesn't.
func (q *Queue) Enqueue(actionType, targetTweetID, targetAuthor, content, topic, archetype string, score float64, mediaPaths []string) (int64, error) {
	encoded, err := json.Marshal(mediaPaths)
	if err != nil {
		return 0, fmt.Errorf("failed to encode media paths: %w", err)
	}
	return q.store.Enqueue(actionType, targetTweetID, targetAuthor, content, topic, archetype, score, string(encoded))
}

// GetPending returns all pending items oldest-first.
func (q *Queue) GetPending() ([]Item, error) {
	rows, err := q.store.GetPending()
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

// PendingCount returns how many items await review.
func (q *Queue) PendingCount() (int64, error) {
	return q.store.PendingCount()
}

// Approve marks an item approved.
func (q *Queue) Approve(id int64) error {
	return q.store.UpdateStatus(id, "approved")
}

// Reject marks an item rejected.
func (q *Queue) Reject(id int64) error {
	return q.store.UpdateStatus(id, "rejected")
}

// EditAndApprove replaces the generated content and approves in one step.
func (q *Queue) EditAndApprove(id int64, newContent string) error {
	return q.store.UpdateContentAndApprove(id, newContent)
}

// Edit replaces the generated content without changing status.
func (q *Queue) Edit(id int64, newContent string) error {
	return q.store.UpdateContent(id, newContent)
}

// Get fetches a single item by id.
func (q *Queue) Get(id int64) (*Item, error) {
	row, err := q.store.GetByID(id)
	if err != nil || row == nil {
		return nil, err
	}
	item := toItem(*row)
	return &item, nil
}

// Stats returns counts grouped by status.
func (q *Queue) Stats() (Stats, error) {
	s, err := q.store.GetStats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Pending: s.Pending, Approved: s.Approved, Rejected: s.Rejected}, nil
}

// NextApproved returns the oldest approved-but-unposted item, if any. The
// approval-consumer loop calls this to pull work off the queue.
func (q *Queue) NextApproved() (*Item, error) {
	row, err := q.store.GetNextApproved()
	if err != nil || row == nil {
		return nil, err
	}
	item := toItem(*row)
	return &item, nil
}

// MarkPosted records the tweet id produced by actually posting an approved
// item.
func (q *Queue) MarkPosted(id int64, tweetID string) error {
	q.logger.WithFields(logrus.Fields{"approval_id": id, "tweet_id": tweetID}).Info("approved item posted")
	return q.store.MarkPosted(id, tweetID)
}

// ByStatuses returns items matching any of the given statuses, optionally
// filtered by action type.
func (q *Queue) ByStatuses(statuses []string, actionType string) ([]Item, error) {
	rows, err := q.store.GetByStatuses(statuses, actionType)
	if err != nil {
		return nil, err
	}
	return toItems(rows), nil
}

func toItem(row storage.ApprovalItem) Item {
	var mediaPaths []string
	if err := json.Unmarshal([]byte(row.MediaPaths), &mediaPaths); err != nil {
		mediaPaths = []string{}
	}

	return Item{
		ID:               row.ID,
		ActionType:       row.ActionType,
		TargetTweetID:    row.TargetTweetID,
		TargetAuthor:     row.TargetAuthor,
		GeneratedContent: row.GeneratedContent,
		Topic:            row.Topic,
		Archetype:        row.Archetype,
		Score:            row.Score,
		Status:           row.Status,
		MediaPaths:       mediaPaths,
		CreatedAt:        row.CreatedAt,
		PostedTweetID:    row.PostedTweetID.String,
	}
}

func toItems(rows []storage.ApprovalItem) []Item {
	items := make([]Item, len(rows))
	for i, r := range rows {
		items[i] = toItem(r)
	}
	return items
}

// ExpireOlderThan marks pending items older than hours as expired and
// returns how many were affected.
func (q *Queue) ExpireOlderThan(hours int) (int64, error) {
	n, err := q.store.ExpireOldItems(hours)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.WithField("count", n).Info("expired stale pending approval items")
	}
	return n, nil
}
