package agent

import (
	"context"
	"testing"
)

type fakeTweetGenerator struct {
	text string
	err  error
}

func (f *fakeTweetGenerator) GenerateTweet(ctx context.Context, topic, archetype string) (string, error) {
	return f.text, f.err
}

func TestContentLoopPostsOriginalTweet(t *testing.T) {
	gen := &fakeTweetGenerator{text: "shipping something new today"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	pl := testPipeline(&fakeExecutor{nextID: "900"})

	loop := NewContentLoop(testLogger(), gen, guard, noopGate(), pl, store, []string{"launch", "lesson"}, "product")

	if err := loop.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(store.logged) != 1 || store.logged[0] != "success" {
		t.Fatalf("expected one success log entry, got %v", store.logged)
	}
}

func TestContentLoopRotatesPillars(t *testing.T) {
	gen := &fakeTweetGenerator{text: "post"}
	guard := testGuard(newFakeGuardStore(), "own-id")
	store := newFakeDiscoveryStore()
	pl := testPipeline(&fakeExecutor{nextID: "901"})

	loop := NewContentLoop(testLogger(), gen, guard, noopGate(), pl, store, []string{"a", "b"}, "product")

	first := loop.nextPillar()
	second := loop.nextPillar()
	third := loop.nextPillar()
	if first != "a" || second != "b" || third != "a" {
		t.Fatalf("expected pillar rotation a,b,a got %s,%s,%s", first, second, third)
	}
}
