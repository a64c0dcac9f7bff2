// Package pipeline serializes every mutating post action from the agent's
// concurrent scheduling loops through a single bounded channel and a
// single consumer goroutine, so the rate limiter and posting order stay
// globally consistent no matter how many loops are producing actions.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// QueueCapacity is the default bounded channel capacity for the posting
// pipeline.
const QueueCapacity = 100

// ActionKind identifies the shape of a queued PostAction.
type ActionKind int

const (
	ActionReply ActionKind = iota
	ActionTweet
	ActionThreadTweet
)

// PostAction is a single unit of work submitted to the pipeline. Result,
// if non-nil, receives exactly one Result before the action is considered
// complete — callers that don't need the outcome may leave it nil.
type PostAction struct {
	Kind       ActionKind
	TweetID    string // reply target, for ActionReply
	InReplyTo  string // previous tweet in thread, for ActionThreadTweet
	Content    string
	Result     chan Result
}

// Result is the outcome of executing or queuing a PostAction.
type Result struct {
	PostedTweetID string
	Err           error
}

func (a PostAction) respond(r Result) {
	if a.Result != nil {
		a.Result <- r
	}
}

// PostExecutor posts actions directly to the platform.
type PostExecutor interface {
	ExecuteReply(ctx context.Context, tweetID, content string) (string, error)
	ExecuteTweet(ctx context.Context, content string) (string, error)
}

// ApprovalQueue queues actions for human review instead of posting them.
type ApprovalQueue interface {
	QueueReply(tweetID, content string) (int64, error)
	QueueTweet(content string) (int64, error)
}

// Pipeline owns the bounded channel and runs its single consumer.
type Pipeline struct {
	logger   *logrus.Logger
	actions  chan PostAction
	executor PostExecutor
	approval ApprovalQueue // nil unless approval_mode is enabled
	minDelay func() <-chan struct{}
}

// New builds a Pipeline. approval may be nil to post directly via executor;
// delay is a function returning a channel that closes after the configured
// minimum inter-post delay — injected so tests don't have to wait on a real
// timer.
func New(logger *logrus.Logger, executor PostExecutor, approval ApprovalQueue, delay func() <-chan struct{}) *Pipeline {
	return &Pipeline{
		logger:   logger,
		actions:  make(chan PostAction, QueueCapacity),
		executor: executor,
		approval: approval,
		minDelay: delay,
	}
}

// Submit enqueues action, blocking if the channel is full or until ctx is
// canceled.
func (p *Pipeline) Submit(ctx context.Context, action PostAction) error {
	select {
	case p.actions <- action:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Actions returns the channel callers should send PostActions on, for
// callers that want direct channel semantics (select with their own
// cancellation) instead of the blocking Submit helper.
func (p *Pipeline) Actions() chan<- PostAction {
	return p.actions
}

// Run consumes actions until ctx is canceled, then drains whatever remains
// in the channel before returning. Submission order is preserved exactly:
// actions execute in the order they were sent, one at a time.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("posting pipeline consumer started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("posting pipeline received cancellation, draining remaining actions")
			p.drain()
			p.logger.Info("posting pipeline consumer stopped")
			return
		case action, ok := <-p.actions:
			if !ok {
				p.logger.Info("posting pipeline channel closed")
				return
			}
			p.executeOrQueue(ctx, action)
			p.waitMinDelay()
		}
	}
}

func (p *Pipeline) drain() {
	drained := 0
	for {
		select {
		case action, ok := <-p.actions:
			if !ok {
				p.logDrained(drained)
				return
			}
			p.executeOrQueue(context.Background(), action)
			drained++
		default:
			p.logDrained(drained)
			return
		}
	}
}

func (p *Pipeline) logDrained(n int) {
	if n > 0 {
		p.logger.WithField("count", n).Info("drained remaining actions from posting pipeline")
	}
}

func (p *Pipeline) waitMinDelay() {
	if p.minDelay == nil {
		return
	}
	<-p.minDelay()
}

func (p *Pipeline) executeOrQueue(ctx context.Context, action PostAction) {
	if p.approval != nil {
		p.queueForApproval(action)
		return
	}
	p.executeAndRespond(ctx, action)
}

func (p *Pipeline) queueForApproval(action PostAction) {
	var id int64
	var err error

	switch action.Kind {
	case ActionReply:
		p.logger.WithField("tweet_id", action.TweetID).Info("queuing reply for approval")
		id, err = p.approval.QueueReply(action.TweetID, action.Content)
	case ActionTweet:
		p.logger.Info("queuing tweet for approval")
		id, err = p.approval.QueueTweet(action.Content)
	case ActionThreadTweet:
		p.logger.WithField("in_reply_to", action.InReplyTo).Info("queuing thread tweet for approval")
		id, err = p.approval.QueueReply(action.InReplyTo, action.Content)
	}

	if err != nil {
		p.logger.WithError(err).Warn("failed to queue action for approval")
		action.respond(Result{Err: err})
		return
	}

	p.logger.WithField("queue_id", id).Info("action queued for approval")
	action.respond(Result{PostedTweetID: fmt.Sprintf("queued:%d", id)})
}

func (p *Pipeline) executeAndRespond(ctx context.Context, action PostAction) {
	var id string
	var err error

	switch action.Kind {
	case ActionReply:
		p.logger.WithField("tweet_id", action.TweetID).Debug("executing reply action")
		id, err = p.executor.ExecuteReply(ctx, action.TweetID, action.Content)
	case ActionTweet:
		p.logger.Debug("executing tweet action")
		id, err = p.executor.ExecuteTweet(ctx, action.Content)
	case ActionThreadTweet:
		p.logger.WithField("in_reply_to", action.InReplyTo).Debug("executing thread tweet action")
		id, err = p.executor.ExecuteReply(ctx, action.InReplyTo, action.Content)
	}

	if err != nil {
		p.logger.WithError(err).Warn("post action failed")
	}
	action.respond(Result{PostedTweetID: id, Err: err})
}
