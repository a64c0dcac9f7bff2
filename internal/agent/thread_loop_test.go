package agent

import (
	"context"
	"testing"
)

type fakeThreadGenerator struct {
	posts []string
	err   error
}

func (f *fakeThreadGenerator) GenerateThread(ctx context.Context, topic string, count int) ([]string, error) {
	return f.posts, f.err
}

type sequentialExecutor struct {
	ids          []string
	next         int
	replyTargets []string
}

func (e *sequentialExecutor) ExecuteReply(ctx context.Context, tweetID, content string) (string, error) {
	e.replyTargets = append(e.replyTargets, tweetID)
	id := e.ids[e.next]
	e.next++
	return id, nil
}
func (e *sequentialExecutor) ExecuteTweet(ctx context.Context, content string) (string, error) {
	id := e.ids[e.next]
	e.next++
	return id, nil
}

func TestThreadLoopPostsEachTweetChainedToThePrevious(t *testing.T) {
	gen := &fakeThreadGenerator{posts: []string{"first", "second", "third"}}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	exec := &sequentialExecutor{ids: []string{"1000", "1001", "1002"}}
	pl := testPipeline(exec)

	loop := NewThreadLoop(testLogger(), gen, guard, noopGate(), pl, store, "topic", 3)

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(store.logged) != 1 || store.logged[0] != "success" {
		t.Fatalf("expected one success log entry, got %v", store.logged)
	}
	if len(exec.replyTargets) != 2 || exec.replyTargets[0] != "1000" || exec.replyTargets[1] != "1001" {
		t.Errorf("expected posts 2 and 3 to reply to 1000 and 1001, got %v", exec.replyTargets)
	}
}

func TestThreadLoopDefaultsPostCountWhenTooSmall(t *testing.T) {
	loop := NewThreadLoop(testLogger(), &fakeThreadGenerator{}, testGuard(newFakeGuardStore(), "own-id"), noopGate(),
		testPipeline(&fakeExecutor{}), newFakeDiscoveryStore(), "topic", 1)

	if loop.postCount != 6 {
		t.Errorf("expected default post count 6, got %d", loop.postCount)
	}
}

func TestThreadLoopDefaultsPostCountWhenTooLarge(t *testing.T) {
	loop := NewThreadLoop(testLogger(), &fakeThreadGenerator{}, testGuard(newFakeGuardStore(), "own-id"), noopGate(),
		testPipeline(&fakeExecutor{}), newFakeDiscoveryStore(), "topic", 20)

	if loop.postCount != 6 {
		t.Errorf("expected default post count 6, got %d", loop.postCount)
	}
}
