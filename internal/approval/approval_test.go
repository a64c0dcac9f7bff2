package approval

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/storage"
)

type fakeStore struct {
	items  map[int64]*storage.ApprovalItem
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[int64]*storage.ApprovalItem{}}
}

func (f *fakeStore) Enqueue(actionType, targetTweetID, targetAuthor, generatedContent, topic, archetype string, score float64, mediaPaths string) (int64, error) {
	f.nextID++
	f.items[f.nextID] = &storage.ApprovalItem{
		ID: f.nextID, ActionType: actionType, TargetTweetID: targetTweetID,
		TargetAuthor: targetAuthor, GeneratedContent: generatedContent,
		Topic: topic, Archetype: archetype, Score: score, Status: "pending",
		MediaPaths: mediaPaths, CreatedAt: "2026-01-01T00:00:00Z",
	}
	return f.nextID, nil
}

func (f *fakeStore) GetPending() ([]storage.ApprovalItem, error) {
	var out []storage.ApprovalItem
	for _, it := range f.items {
		if it.Status == "pending" {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) PendingCount() (int64, error) {
	items, _ := f.GetPending()
	return int64(len(items)), nil
}

func (f *fakeStore) UpdateStatus(id int64, status string) error {
	f.items[id].Status = status
	return nil
}

func (f *fakeStore) UpdateContentAndApprove(id int64, newContent string) error {
	f.items[id].GeneratedContent = newContent
	f.items[id].Status = "approved"
	return nil
}

func (f *fakeStore) UpdateContent(id int64, newContent string) error {
	f.items[id].GeneratedContent = newContent
	return nil
}

func (f *fakeStore) UpdateMediaPaths(id int64, mediaPaths string) error {
	f.items[id].MediaPaths = mediaPaths
	return nil
}

func (f *fakeStore) GetByID(id int64) (*storage.ApprovalItem, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return it, nil
}

func (f *fakeStore) GetStats() (storage.ApprovalStats, error) {
	var s storage.ApprovalStats
	for _, it := range f.items {
		switch it.Status {
		case "pending":
			s.Pending++
		case "approved":
			s.Approved++
		case "rejected":
			s.Rejected++
		}
	}
	return s, nil
}

func (f *fakeStore) GetByStatuses(statuses []string, actionType string) ([]storage.ApprovalItem, error) {
	want := map[string]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []storage.ApprovalItem
	for _, it := range f.items {
		if want[it.Status] && (actionType == "" || it.ActionType == actionType) {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeStore) GetNextApproved() (*storage.ApprovalItem, error) {
	for _, it := range f.items {
		if it.Status == "approved" {
			return it, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkPosted(id int64, tweetID string) error {
	f.items[id].Status = "posted"
	f.items[id].PostedTweetID.String = tweetID
	f.items[id].PostedTweetID.Valid = true
	return nil
}

func (f *fakeStore) ExpireOldItems(hours int) (int64, error) {
	return 0, nil
}

func testQueue() (*Queue, *fakeStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	fs := newFakeStore()
	return New(logger, fs), fs
}

func TestApprovalStateMachinePendingToPosted(t *testing.T) {
	q, _ := testQueue()

	id, err := q.QueueReply("tweet-1", "nice point")
	if err != nil {
		t.Fatalf("QueueReply: %v", err)
	}

	pending, err := q.GetPending()
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %v (err=%v)", pending, err)
	}

	if err := q.Approve(id); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	next, err := q.NextApproved()
	if err != nil || next == nil || next.ID != id {
		t.Fatalf("expected approved item to be next, got %+v (err=%v)", next, err)
	}

	if err := q.MarkPosted(id, "posted-1"); err != nil {
		t.Fatalf("MarkPosted: %v", err)
	}

	item, err := q.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if item.Status != "posted" || item.PostedTweetID != "posted-1" {
		t.Errorf("expected posted status with tweet id, got %+v", item)
	}
}

func TestApprovalMediaPathsRoundTrip(t *testing.T) {
	q, _ := testQueue()

	id, err := q.Enqueue("tweet", "", "", "look at this", "topic", "archetype", 0.5, []string{"/tmp/a.jpg", "/tmp/b.jpg"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	item, err := q.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(item.MediaPaths) != 2 || item.MediaPaths[0] != "/tmp/a.jpg" {
		t.Errorf("expected media paths to round-trip, got %v", item.MediaPaths)
	}
}

func TestApprovalRejectedNeverSurfacesAsNextApproved(t *testing.T) {
	q, _ := testQueue()

	id, err := q.QueueTweet("spam")
	if err != nil {
		t.Fatalf("QueueTweet: %v", err)
	}
	if err := q.Reject(id); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	next, err := q.NextApproved()
	if err != nil {
		t.Fatalf("NextApproved: %v", err)
	}
	if next != nil {
		t.Errorf("expected no approved item, got %+v", next)
	}
}
