package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
	"github.com/loopforge/tuitbot/internal/toolkit"
)

type threadGenerator interface {
	GenerateThread(ctx context.Context, topic string, count int) ([]string, error)
}

// ThreadLoop periodically composes and posts a multi-tweet thread around a
// topic drawn from configuration.
type ThreadLoop struct {
	logger       *logrus.Logger
	generator    threadGenerator
	guard        *safety.SafetyGuard
	gate         *policy.Gate
	pipeline     *pipeline.Pipeline
	store        contentStore
	defaultTopic string
	postCount    int
}

// NewThreadLoop builds a ThreadLoop that composes threads of postCount
// tweets. postCount outside [5,8] falls back to 6.
func NewThreadLoop(
	logger *logrus.Logger,
	generator threadGenerator,
	guard *safety.SafetyGuard,
	gate *policy.Gate,
	pl *pipeline.Pipeline,
	store contentStore,
	defaultTopic string,
	postCount int,
) *ThreadLoop {
	if postCount < 5 || postCount > 8 {
		postCount = 6
	}
	return &ThreadLoop{
		logger:       logger,
		generator:    generator,
		guard:        guard,
		gate:         gate,
		pipeline:     pl,
		store:        store,
		defaultTopic: defaultTopic,
		postCount:    postCount,
	}
}

// Run executes the continuous thread loop until ctx is cancelled.
func (l *ThreadLoop) Run(ctx context.Context, interval time.Duration) {
	log := l.logger.WithField("loop", "thread")
	log.Info("thread loop started")

	tracker := NewConsecutiveErrorTracker(5, 10*time.Minute)

	for {
		if ctx.Err() != nil {
			break
		}

		if err := l.RunOnce(ctx); err != nil {
			if !sleepOnLoopError(ctx, log, tracker, err) {
				break
			}
			continue
		}

		tracker.RecordSuccess()

		if !sleepOrCancel(ctx, interval) {
			break
		}
	}

	log.Info("thread loop stopped")
}

// RunOnce composes and submits a single thread, posting each tweet in
// reply to the previous one so the chain stays linked even through the
// approval queue.
func (l *ThreadLoop) RunOnce(ctx context.Context) error {
	if reason, err := l.guard.CanPostThread(); err != nil {
		return err
	} else if reason != nil {
		l.log("skipped", reason.Error())
		return nil
	}

	posts, err := l.generator.GenerateThread(ctx, l.defaultTopic, l.postCount)
	if err != nil {
		return err
	}

	var previousID string
	for i, text := range posts {
		action := pipeline.PostAction{Kind: pipeline.ActionTweet, Content: text}
		if i > 0 {
			action = pipeline.PostAction{Kind: pipeline.ActionThreadTweet, InReplyTo: previousID, Content: text}
		}

		correlationID := toolkit.NewCorrelationID()
		result, decision, err := submitThroughPolicy(ctx, l.logger.WithField("loop", "thread"), l.gate, l.pipeline, "post_thread", correlationID, action)
		if err != nil {
			return fmt.Errorf("failed to submit thread post %d/%d: %w", i+1, len(posts), err)
		}
		if result.Err != nil {
			return fmt.Errorf("failed to post thread post %d/%d: %w", i+1, len(posts), result.Err)
		}
		if decision == policy.DecisionDenied {
			l.log("skipped", "denied by mutation policy mid-thread")
			return nil
		}
		if decision == policy.DecisionDryRun {
			previousID = fmt.Sprintf("dry_run_post_%d", i)
			continue
		}

		previousID = result.PostedTweetID
	}

	if err := l.guard.RecordThread(); err != nil {
		l.logger.WithError(err).Warn("failed to record thread after successful post")
	}
	l.log("success", fmt.Sprintf("posted %d-tweet thread", len(posts)))
	return nil
}

func (l *ThreadLoop) log(status, detail string) {
	if err := l.store.LogAction("post_thread", "thread_loop", status, detail, toolkit.NewCorrelationID()); err != nil {
		l.logger.WithError(err).Warn("failed to log thread action")
	}
}
