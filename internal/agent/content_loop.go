package agent

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
	"github.com/loopforge/tuitbot/internal/toolkit"
)

type tweetGenerator interface {
	GenerateTweet(ctx context.Context, topic, archetype string) (string, error)
}

type contentStore interface {
	LogAction(action, tool, outcome, detail, correlationID string) error
}

// ContentLoop periodically composes and posts an original tweet drawn from
// a rotating set of content pillars.
type ContentLoop struct {
	logger       *logrus.Logger
	generator    tweetGenerator
	guard        *safety.SafetyGuard
	gate         *policy.Gate
	pipeline     *pipeline.Pipeline
	store        contentStore
	pillars      []string
	defaultTopic string
	pillarIndex  int
}

// NewContentLoop builds a ContentLoop. pillars rotates the style archetype
// requested from the generator each iteration; an empty pillars list falls
// back to defaultTopic for every post.
func NewContentLoop(
	logger *logrus.Logger,
	generator tweetGenerator,
	guard *safety.SafetyGuard,
	gate *policy.Gate,
	pl *pipeline.Pipeline,
	store contentStore,
	pillars []string,
	defaultTopic string,
) *ContentLoop {
	return &ContentLoop{
		logger:       logger,
		generator:    generator,
		guard:        guard,
		gate:         gate,
		pipeline:     pl,
		store:        store,
		pillars:      pillars,
		defaultTopic: defaultTopic,
	}
}

// Run executes the continuous content loop until ctx is cancelled.
func (l *ContentLoop) Run(ctx context.Context, interval time.Duration) {
	log := l.logger.WithField("loop", "content")
	log.Info("content loop started")

	tracker := NewConsecutiveErrorTracker(10, 5*time.Minute)

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

	log.Info("content loop stopped")
}

// RunOnce composes and submits a single original tweet.
func (l *ContentLoop) RunOnce(ctx context.Context) error {
	archetype := l.nextPillar()

	if reason, err := l.guard.CanPostTweet(); err != nil {
		return err
	} else if reason != nil {
		l.logAttempt("skipped", reason.Error(), "")
		return nil
	}

	text, err := l.generator.GenerateTweet(ctx, l.defaultTopic, archetype)
	if err != nil {
		return err
	}

	correlationID := toolkit.NewCorrelationID()
	result, decision, err := submitThroughPolicy(ctx, l.logger.WithField("loop", "content"), l.gate, l.pipeline, "post_tweet", correlationID,
		pipeline.PostAction{Kind: pipeline.ActionTweet, Content: text})
	if err != nil {
		return err
	}
	if result.Err != nil {
		return result.Err
	}
	if decision == policy.DecisionDenied {
		l.logAttempt("skipped", "denied by mutation policy", text)
		return nil
	}
	if decision == policy.DecisionDryRun {
		l.logAttempt("dry_run", "", text)
		return nil
	}

	if err := l.guard.RecordTweet(); err != nil {
		l.logger.WithError(err).Warn("failed to record tweet after successful post")
	}
	l.logAttempt("success", "", text)
	return nil
}

func (l *ContentLoop) nextPillar() string {
	if len(l.pillars) == 0 {
		return ""
	}
	p := l.pillars[l.pillarIndex%len(l.pillars)]
	l.pillarIndex++
	return p
}

func (l *ContentLoop) logAttempt(status, detail, text string) {
	if detail == "" {
		detail = truncateForLog(text, 80)
	}
	if err := l.store.LogAction("post_tweet", "content_loop", status, detail, toolkit.NewCorrelationID()); err != nil {
		l.logger.WithError(err).Warn("failed to log content action")
	}
}
