package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type recordingExecutor struct {
	mu    sync.Mutex
	order []string
}

func (r *recordingExecutor) ExecuteReply(ctx context.Context, tweetID, content string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, "reply:"+tweetID)
	return "posted-" + tweetID, nil
}

func (r *recordingExecutor) ExecuteTweet(ctx context.Context, content string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, "tweet:"+content)
	return "posted-tweet", nil
}

func noDelay() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestPipelinePreservesSubmissionOrder(t *testing.T) {
	exec := &recordingExecutor{}
	p := New(testLogger(), exec, nil, noDelay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	results := make([]chan Result, 5)
	for i := 0; i < 5; i++ {
		results[i] = make(chan Result, 1)
		action := PostAction{Kind: ActionReply, TweetID: string(rune('a' + i)), Result: results[i]}
		if err := p.Submit(context.Background(), action); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		select {
		case res := <-results[i]:
			if res.Err != nil {
				t.Fatalf("unexpected error: %v", res.Err)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for result %d", i)
		}
	}

	cancel()
	<-done

	exec.mu.Lock()
	defer exec.mu.Unlock()
	expected := []string{"reply:a", "reply:b", "reply:c", "reply:d", "reply:e"}
	if len(exec.order) != len(expected) {
		t.Fatalf("expected %d executions, got %d: %v", len(expected), len(exec.order), exec.order)
	}
	for i, e := range expected {
		if exec.order[i] != e {
			t.Errorf("execution %d: expected %q, got %q", i, e, exec.order[i])
		}
	}
}

func TestPipelineDrainsOnCancel(t *testing.T) {
	exec := &recordingExecutor{}
	p := New(testLogger(), exec, nil, noDelay)

	for i := 0; i < 3; i++ {
		action := PostAction{Kind: ActionTweet, Content: string(rune('a' + i))}
		if err := p.Submit(context.Background(), action); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop after cancellation")
	}

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.order) != 3 {
		t.Errorf("expected all 3 queued actions to be drained and executed, got %d: %v", len(exec.order), exec.order)
	}
}

func TestPipelineRoutesToApprovalQueueWhenSet(t *testing.T) {
	exec := &recordingExecutor{}
	approval := &fakeApprovalQueue{}
	p := New(testLogger(), exec, approval, noDelay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	result := make(chan Result, 1)
	if err := p.Submit(context.Background(), PostAction{Kind: ActionReply, TweetID: "42", Content: "hi", Result: result}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case res := <-result:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if res.PostedTweetID != "queued:1" {
			t.Errorf("expected queued:1, got %q", res.PostedTweetID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for approval result")
	}

	cancel()
	<-done

	exec.mu.Lock()
	defer exec.mu.Unlock()
	if len(exec.order) != 0 {
		t.Error("expected no direct executions when approval queue is set")
	}
}

type fakeApprovalQueue struct {
	mu     sync.Mutex
	nextID int64
}

func (f *fakeApprovalQueue) QueueReply(tweetID, content string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeApprovalQueue) QueueTweet(content string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}
