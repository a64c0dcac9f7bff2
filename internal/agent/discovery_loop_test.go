package agent

import (
	"context"
	"testing"

	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/storage"
)

type fakeSearcher struct {
	result platform.SearchResult
	err    error
}

func (f *fakeSearcher) SearchTweets(ctx context.Context, query string, max int, since, page string) (platform.SearchResult, error) {
	return f.result, f.err
}

type fixedScorer struct {
	score   float64
	keyword string
}

func (s fixedScorer) Score(tweet platform.Tweet, keyword string) (float64, string) {
	return s.score, s.keyword
}

type fakeDiscoveryStore struct {
	discovered map[string]bool
	logged     []string
	replied    map[string]bool
}

func newFakeDiscoveryStore() *fakeDiscoveryStore {
	return &fakeDiscoveryStore{discovered: map[string]bool{}, replied: map[string]bool{}}
}

func (s *fakeDiscoveryStore) ExistsDiscovered(tweetID string) (bool, error) {
	return s.discovered[tweetID], nil
}
func (s *fakeDiscoveryStore) UpsertDiscovered(tweetID, authorID, authorUsername, text, matchedKeyword string, score float64, metrics storage.DiscoveredTweetMetrics) error {
	s.discovered[tweetID] = true
	return nil
}
func (s *fakeDiscoveryStore) MarkDiscoveredReplied(tweetID string) error {
	s.replied[tweetID] = true
	return nil
}
func (s *fakeDiscoveryStore) LogAction(action, tool, outcome, detail, correlationID string) error {
	s.logged = append(s.logged, outcome)
	return nil
}

func TestDiscoveryLoopRepliesWhenAboveThreshold(t *testing.T) {
	searcher := &fakeSearcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "500", AuthorID: "author9", Text: "loving this workflow tool"}},
	}}
	gen := &fakeReplyGenerator{reply: "glad it works for you"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	pl := testPipeline(&fakeExecutor{nextID: "600"})

	loop := NewDiscoveryLoop(testLogger(), searcher, fixedScorer{score: 80}, gen, guard, noopGate(), pl, store,
		[]string{"workflow tool"}, 50, nil, "productivity")

	results, summary, err := loop.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Replied != 1 || summary.TweetsFound != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(results) != 1 || results[0].Kind != DiscoveryReplied {
		t.Fatalf("expected one replied result, got %+v", results)
	}
	if !store.replied["500"] {
		t.Error("expected discovered tweet marked replied")
	}
}

func TestDiscoveryLoopSkipsBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "501", AuthorID: "author10", Text: "unrelated post"}},
	}}
	gen := &fakeReplyGenerator{reply: "should not be called"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	pl := testPipeline(&fakeExecutor{nextID: "601"})

	loop := NewDiscoveryLoop(testLogger(), searcher, fixedScorer{score: 10}, gen, guard, noopGate(), pl, store,
		[]string{"workflow tool"}, 50, nil, "productivity")

	results, summary, err := loop.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Replied != 0 || summary.Skipped != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(results) != 1 || results[0].Kind != DiscoveryBelowThresh {
		t.Fatalf("expected below-threshold result, got %+v", results)
	}
	if !store.discovered["501"] {
		t.Error("expected tweet stored even though below threshold")
	}
}

func TestDiscoveryLoopSkipsAlreadyDiscovered(t *testing.T) {
	searcher := &fakeSearcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{{ID: "502", AuthorID: "author11", Text: "seen before"}},
	}}
	gen := &fakeReplyGenerator{reply: "n/a"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	store.discovered["502"] = true
	pl := testPipeline(&fakeExecutor{nextID: "602"})

	loop := NewDiscoveryLoop(testLogger(), searcher, fixedScorer{score: 90}, gen, guard, noopGate(), pl, store,
		[]string{"workflow tool"}, 50, nil, "productivity")

	results, summary, err := loop.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Replied != 0 {
		t.Fatalf("expected no reply for already-discovered tweet, got %+v", summary)
	}
	if len(results) != 1 || results[0].Kind != DiscoverySkippedResult {
		t.Fatalf("expected skipped result, got %+v", results)
	}
}

func TestDiscoveryLoopRunOnceSortsByScoreDescending(t *testing.T) {
	searcher := &fakeSearcher{result: platform.SearchResult{
		Tweets: []platform.Tweet{
			{ID: "700", AuthorID: "a1", Text: "low"},
			{ID: "701", AuthorID: "a2", Text: "high"},
		},
	}}
	gen := &fakeReplyGenerator{reply: "reply"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	pl := testPipeline(&fakeExecutor{nextID: "800"})

	scores := map[string]float64{"700": 20, "701": 90}
	loop := NewDiscoveryLoop(testLogger(), searcher, variableScorer{scores: scores}, gen, guard, noopGate(), pl, store,
		[]string{"k"}, 10, nil, "topic")

	results, _, err := loop.RunOnce(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(results) != 2 || results[0].TweetID != "701" || results[1].TweetID != "700" {
		t.Fatalf("expected results sorted by score descending, got %+v", results)
	}
}

type variableScorer struct {
	scores map[string]float64
}

func (s variableScorer) Score(tweet platform.Tweet, keyword string) (float64, string) {
	return s.scores[tweet.ID], keyword
}
