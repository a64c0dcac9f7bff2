package agent

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
)

type fakeMentionsFetcher struct {
	result platform.SearchResult
	err    error
}

func (f *fakeMentionsFetcher) GetMentions(ctx context.Context, userID, since, page string) (platform.SearchResult, error) {
	return f.result, f.err
}

type fakeReplyGenerator struct {
	reply string
	err   error
}

func (f *fakeReplyGenerator) GenerateReply(ctx context.Context, sourceText, authorHandle, topic string) (string, error) {
	return f.reply, f.err
}

type fakeGuardStore struct {
	replies          map[string]bool
	replyCount       map[string]int
	authorIncrements map[string]int
}

func newFakeGuardStore() *fakeGuardStore {
	return &fakeGuardStore{replies: map[string]bool{}, replyCount: map[string]int{}, authorIncrements: map[string]int{}}
}

func (s *fakeGuardStore) CheckAndIncrement(actionType string, max int, window time.Duration) (bool, int, error) {
	return true, 0, nil
}
func (s *fakeGuardStore) CurrentCount(actionType string, window time.Duration) (int, error) {
	return 0, nil
}
func (s *fakeGuardStore) HasRepliedTo(targetTweetID string) (bool, error) {
	return s.replies[targetTweetID], nil
}
func (s *fakeGuardStore) RecentReplyContents(n int) ([]string, error) { return nil, nil }
func (s *fakeGuardStore) ReplyCountForAuthorToday(authorID string) (int, error) {
	return s.replyCount[authorID], nil
}
func (s *fakeGuardStore) RecordReply(targetTweetID, replyTweetID, content, authorID string) error {
	s.replies[targetTweetID] = true
	s.replyCount[authorID]++
	return nil
}

type fakeLogStore struct {
	cursor    string
	logged    []string
	authorInc map[string]int
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{authorInc: map[string]int{}}
}

func (s *fakeLogStore) GetCursor(name string) (string, error) { return s.cursor, nil }
func (s *fakeLogStore) UpdateMaxID(name, newID string) error  { s.cursor = newID; return nil }
func (s *fakeLogStore) LogAction(action, tool, outcome, detail, correlationID string) error {
	s.logged = append(s.logged, outcome)
	return nil
}
func (s *fakeLogStore) IncrementAuthorInteraction(authorID string) (int, error) {
	s.authorInc[authorID]++
	return s.authorInc[authorID], nil
}

func testGuard(store *fakeGuardStore, ownUserID string) *safety.SafetyGuard {
	return safety.NewSafetyGuard(testLogger(), store, 50, 10, 3, ownUserID)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func noopGate() *policy.Gate {
	return policy.New(testLogger(), nopAuditStore{}, policy.Config{})
}

type nopAuditStore struct{}

func (nopAuditStore) LogAction(action, tool, outcome, detail, correlationID string) error { return nil }
func (nopAuditStore) CountActionsSince(action, cutoffRFC3339 string) (int, error)         { return 0, nil }

// testPipeline builds a Pipeline with its consumer goroutine running for
// the lifetime of the test process; tests are short-lived so the
// goroutine leaking past the test isn't worth the synchronization to
// avoid.
func testPipeline(executor pipeline.PostExecutor) *pipeline.Pipeline {
	pl := pipeline.New(testLogger(), executor, nil, nil)
	go pl.Run(context.Background())
	return pl
}

type fakeExecutor struct {
	nextID string
	err    error
}

func (e *fakeExecutor) ExecuteReply(ctx context.Context, tweetID, content string) (string, error) {
	return e.nextID, e.err
}
func (e *fakeExecutor) ExecuteTweet(ctx context.Context, content string) (string, error) {
	return e.nextID, e.err
}

func TestMentionsLoopRepliesToQualifyingMention(t *testing.T) {
	fetcher := &fakeMentionsFetcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "100", AuthorID: "author1", Text: "hey @bot check this out"}},
		Users:  []platform.User{{ID: "author1", Username: "someone"}},
	}}
	gen := &fakeReplyGenerator{reply: "thanks for the shoutout"}
	guardStore := newFakeGuardStore()
	guard := testGuard(guardStore, "own-id")
	logStore := newFakeLogStore()
	pl := testPipeline(&fakeExecutor{nextID: "200"})

	loop := NewMentionsLoop(testLogger(), fetcher, gen, guard, noopGate(), pl, logStore, "own-id", nil, 2, "product")

	results, newSince, err := loop.RunOnce(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(results) != 1 || results[0].Kind != MentionReplied {
		t.Fatalf("expected one replied result, got %+v", results)
	}
	if newSince != "100" {
		t.Errorf("expected cursor advanced to 100, got %q", newSince)
	}
	if !guardStore.replies["100"] {
		t.Error("expected reply recorded in guard store")
	}
	if logStore.authorInc["author1"] != 1 {
		t.Error("expected author interaction incremented")
	}
}

func TestMentionsLoopSkipsSelfReply(t *testing.T) {
	fetcher := &fakeMentionsFetcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "101", AuthorID: "own-id", Text: "talking to myself"}},
	}}
	gen := &fakeReplyGenerator{reply: "reply to own mention"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	logStore := newFakeLogStore()
	pl := testPipeline(&fakeExecutor{nextID: "999"})

	loop := NewMentionsLoop(testLogger(), fetcher, gen, guard, noopGate(), pl, logStore, "own-id", nil, 2, "product")

	results, _, err := loop.RunOnce(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(results) != 1 || results[0].Kind != MentionSkipped {
		t.Fatalf("expected skipped result, got %+v", results)
	}
}

func TestMentionsLoopSkipsAlreadyRepliedTweet(t *testing.T) {
	fetcher := &fakeMentionsFetcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "102", AuthorID: "author2", Text: "again?"}},
	}}
	gen := &fakeReplyGenerator{reply: "second reply"}
	guardStore := newFakeGuardStore()
	guardStore.replies["102"] = true
	guard := testGuard(guardStore, "own-id")
	logStore := newFakeLogStore()
	pl := testPipeline(&fakeExecutor{nextID: "999"})

	loop := NewMentionsLoop(testLogger(), fetcher, gen, guard, noopGate(), pl, logStore, "own-id", nil, 2, "product")

	results, _, err := loop.RunOnce(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(results) != 1 || results[0].Kind != MentionSkipped {
		t.Fatalf("expected skipped (already replied) result, got %+v", results)
	}
}

func TestMentionsLoopSkipsOnBannedPhrase(t *testing.T) {
	fetcher := &fakeMentionsFetcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "103", AuthorID: "author3", Text: "mention"}},
	}}
	gen := &fakeReplyGenerator{reply: "this contains forbiddenword in it"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	logStore := newFakeLogStore()
	pl := testPipeline(&fakeExecutor{nextID: "999"})

	loop := NewMentionsLoop(testLogger(), fetcher, gen, guard, noopGate(), pl, logStore, "own-id", []string{"forbiddenword"}, 2, "product")

	results, _, err := loop.RunOnce(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(results) != 1 || results[0].Kind != MentionSkipped {
		t.Fatalf("expected skipped (banned phrase) result, got %+v", results)
	}
}
