package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/approval"
	"github.com/loopforge/tuitbot/internal/safety"
)

type approvalQueue interface {
	NextApproved() (*approval.Item, error)
	MarkPosted(id int64, tweetID string) error
}

type approvalExecutor interface {
	ExecuteReply(ctx context.Context, tweetID, content string) (string, error)
	ExecuteTweet(ctx context.Context, content string) (string, error)
}

// ApprovalConsumerLoop polls the approval queue for human-approved items
// and posts them through the platform executor, recording the result the
// same way a direct-post action would.
type ApprovalConsumerLoop struct {
	logger   *logrus.Logger
	queue    approvalQueue
	executor approvalExecutor
	guard    *safety.SafetyGuard
}

// NewApprovalConsumerLoop builds an ApprovalConsumerLoop.
func NewApprovalConsumerLoop(logger *logrus.Logger, queue approvalQueue, executor approvalExecutor, guard *safety.SafetyGuard) *ApprovalConsumerLoop {
	return &ApprovalConsumerLoop{logger: logger, queue: queue, executor: executor, guard: guard}
}

// Run polls for approved items until ctx is cancelled.
func (l *ApprovalConsumerLoop) Run(ctx context.Context, interval time.Duration) {
	log := l.logger.WithField("loop", "approval_consumer")
	log.Info("approval consumer loop started")

	for {
		if ctx.Err() != nil {
			break
		}

		posted, err := l.RunOnce(ctx)
		if err != nil {
			log.WithError(err).Warn("approval consumer iteration failed")
		}

		wait := interval
		if posted {
			wait = 0 // drain the queue without delay while there's approved backlog
		}
		if !sleepOrCancel(ctx, wait) {
			break
		}
	}

	log.Info("approval consumer loop stopped")
}

// RunOnce posts at most one approved item, reporting whether one was
// found and posted.
func (l *ApprovalConsumerLoop) RunOnce(ctx context.Context) (bool, error) {
	item, err := l.queue.NextApproved()
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}

	var tweetID string
	switch item.ActionType {
	case "reply":
		tweetID, err = l.executor.ExecuteReply(ctx, item.TargetTweetID, item.GeneratedContent)
	case "tweet":
		tweetID, err = l.executor.ExecuteTweet(ctx, item.GeneratedContent)
	default:
		return false, fmt.Errorf("unknown approval action type %q for item %d", item.ActionType, item.ID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to post approved item %d: %w", item.ID, err)
	}

	if err := l.queue.MarkPosted(item.ID, tweetID); err != nil {
		l.logger.WithError(err).Warn("failed to mark approved item posted")
	}

	if item.ActionType == "reply" {
		if err := l.guard.RecordReply(item.TargetTweetID, tweetID, item.GeneratedContent, item.TargetAuthor); err != nil {
			l.logger.WithError(err).Warn("failed to record approved reply")
		}
	} else {
		if err := l.guard.RecordTweet(); err != nil {
			l.logger.WithError(err).Warn("failed to record approved tweet")
		}
	}

	return true, nil
}
