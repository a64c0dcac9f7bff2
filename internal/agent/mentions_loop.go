package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
	"github.com/loopforge/tuitbot/internal/toolkit"
)

// MentionResultKind classifies the outcome of processing a single mention.
type MentionResultKind string

const (
	MentionReplied MentionResultKind = "replied"
	MentionSkipped MentionResultKind = "skipped"
	MentionFailed  MentionResultKind = "failed"
)

// MentionResult is the outcome of processing a single mention.
type MentionResult struct {
	Kind    MentionResultKind
	TweetID string
	Author  string
	Reply   string
	Reason  string
	Err     error
	DryRun  bool
}

type mentionsFetcher interface {
	GetMentions(ctx context.Context, userID, since, page string) (platform.SearchResult, error)
}

type mentionReplyGenerator interface {
	GenerateReply(ctx context.Context, sourceText, authorHandle, topic string) (string, error)
}

type mentionsStore interface {
	GetCursor(name string) (string, error)
	UpdateMaxID(name, newID string) error
	LogAction(action, tool, outcome, detail, correlationID string) error
	IncrementAuthorInteraction(authorID string) (int, error)
}

// MentionsLoop fetches and replies to @-mentions since the last persisted
// cursor, advancing the cursor to the highest tweet id seen.
type MentionsLoop struct {
	logger        *logrus.Logger
	fetcher       mentionsFetcher
	generator     mentionReplyGenerator
	guard         *safety.SafetyGuard
	gate          *policy.Gate
	pipeline      *pipeline.Pipeline
	store         mentionsStore
	ownUserID     string
	bannedPhrases []string
	maxPerAuthor  int
	defaultTopic  string
}

// NewMentionsLoop builds a MentionsLoop.
func NewMentionsLoop(
	logger *logrus.Logger,
	fetcher mentionsFetcher,
	generator mentionReplyGenerator,
	guard *safety.SafetyGuard,
	gate *policy.Gate,
	pl *pipeline.Pipeline,
	store mentionsStore,
	ownUserID string,
	bannedPhrases []string,
	maxPerAuthor int,
	defaultTopic string,
) *MentionsLoop {
	return &MentionsLoop{
		logger:        logger,
		fetcher:       fetcher,
		generator:     generator,
		guard:         guard,
		gate:          gate,
		pipeline:      pl,
		store:         store,
		ownUserID:     ownUserID,
		bannedPhrases: bannedPhrases,
		maxPerAuthor:  maxPerAuthor,
		defaultTopic:  defaultTopic,
	}
}

// Run executes the continuous mentions loop until ctx is cancelled.
func (l *MentionsLoop) Run(ctx context.Context, interval time.Duration) {
	log := l.logger.WithField("loop", "mentions")
	log.Info("mentions loop started")

	tracker := NewConsecutiveErrorTracker(10, 5*time.Minute)

	since, err := l.store.GetCursor("mentions_since_id")
	if err != nil {
		log.WithError(err).Warn("failed to load mentions cursor, starting fresh")
		since = ""
	} else if since != "" {
		log.WithField("since_id", since).Info("resuming mentions from stored cursor")
	}

	for {
		if ctx.Err() != nil {
			break
		}

		results, newSince, err := l.RunOnce(ctx, since, 0)
		if err != nil {
			if !sleepOnLoopError(ctx, log, tracker, err) {
				break
			}
			continue
		}

		tracker.RecordSuccess()
		if newSince != "" {
			since = newSince
			if err := l.store.UpdateMaxID("mentions_since_id", newSince); err != nil {
				log.WithError(err).Warn("failed to persist mentions cursor")
			}
		}

		replied := 0
		for _, r := range results {
			if r.Kind == MentionReplied {
				replied++
			}
		}
		if len(results) > 0 {
			log.WithFields(logrus.Fields{"total": len(results), "replied": replied}).Info("mentions iteration complete")
		}

		if !sleepOrCancel(ctx, interval) {
			break
		}
	}

	log.Info("mentions loop stopped")
}

// RunOnce fetches and processes mentions since since, up to limit (0 means
// no limit), returning results and the new cursor value if any mention was
// seen.
func (l *MentionsLoop) RunOnce(ctx context.Context, since string, limit int) ([]MentionResult, string, error) {
	mentions, err := l.fetcher.GetMentions(ctx, l.ownUserID, since, "")
	if err != nil {
		return nil, "", err
	}

	if len(mentions.Tweets) == 0 {
		return nil, "", nil
	}

	toProcess := mentions.Tweets
	if limit > 0 && len(toProcess) > limit {
		toProcess = toProcess[:limit]
	}

	authors := indexUsersByID(mentions.Users)

	var results []MentionResult
	var maxID string

	for _, tweet := range toProcess {
		maxID = higherNumericID(maxID, tweet.ID)

		authorHandle := tweet.AuthorID
		if u, ok := authors[tweet.AuthorID]; ok {
			authorHandle = u.Username
		}

		result := l.processMention(ctx, tweet.ID, tweet.AuthorID, authorHandle, tweet.Text)

		status, detail := mentionLogDetail(result)
		if err := l.store.LogAction("mention_reply", "mentions_loop", status, detail, tweet.ID); err != nil {
			l.logger.WithError(err).Warn("failed to log mention action")
		}

		results = append(results, result)
	}

	return results, maxID, nil
}

func mentionLogDetail(r MentionResult) (string, string) {
	switch r.Kind {
	case MentionReplied:
		if r.DryRun {
			return "dry_run", fmt.Sprintf("would reply to mention %s: %s", r.TweetID, truncateForLog(r.Reply, 50))
		}
		return "success", fmt.Sprintf("replied to mention %s: %s", r.TweetID, truncateForLog(r.Reply, 50))
	case MentionSkipped:
		return "skipped", fmt.Sprintf("skipped mention %s: %s", r.TweetID, r.Reason)
	default:
		return "failure", fmt.Sprintf("failed on mention %s: %v", r.TweetID, r.Err)
	}
}

// processMention runs the safety chain in order (rate limit, exact dedup,
// phrasing similarity, per-author cap, banned phrase, self-reply),
// returning at the first denial. The cheap rate-limit/dedup precheck runs
// before generation; phrasing similarity can only be evaluated once the
// reply text exists, so it rides the second CanReplyTo call alongside a
// redundant (harmless) re-check of rate-limit/dedup.
func (l *MentionsLoop) processMention(ctx context.Context, tweetID, authorID, authorHandle, sourceText string) MentionResult {
	if reason, err := l.guard.CanReplyTo(tweetID, authorID, ""); err != nil {
		return MentionResult{Kind: MentionFailed, TweetID: tweetID, Err: err}
	} else if reason != nil {
		return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: reason.Error()}
	}

	replyText, err := l.generator.GenerateReply(ctx, sourceText, authorHandle, l.defaultTopic)
	if err != nil {
		return MentionResult{Kind: MentionFailed, TweetID: tweetID, Err: err}
	}

	if reason, err := l.guard.CanReplyTo(tweetID, authorID, replyText); err != nil {
		return MentionResult{Kind: MentionFailed, TweetID: tweetID, Err: err}
	} else if reason != nil {
		return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: reason.Error()}
	}

	if l.maxPerAuthor > 0 {
		if reason, err := l.guard.CheckAuthorLimit(authorID, l.maxPerAuthor); err != nil {
			return MentionResult{Kind: MentionFailed, TweetID: tweetID, Err: err}
		} else if reason != nil {
			return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: reason.Error()}
		}
	}

	if reason := safety.CheckBannedPhrases(replyText, l.bannedPhrases); reason != nil {
		return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: reason.Error()}
	}

	if reason := l.guard.CheckSelfReply(authorID); reason != nil {
		return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: reason.Error()}
	}

	correlationID := toolkit.NewCorrelationID()
	result, decision, err := submitThroughPolicy(ctx, l.logger.WithField("loop", "mentions"), l.gate, l.pipeline, "reply_to_tweet", correlationID,
		pipeline.PostAction{Kind: pipeline.ActionReply, TweetID: tweetID, Content: replyText})
	if err != nil || result.Err != nil {
		if err == nil {
			err = result.Err
		}
		return MentionResult{Kind: MentionFailed, TweetID: tweetID, Err: err}
	}
	if decision == policy.DecisionDenied {
		return MentionResult{Kind: MentionSkipped, TweetID: tweetID, Reason: "denied by mutation policy"}
	}
	if decision == policy.DecisionDryRun {
		l.logger.WithFields(logrus.Fields{"tweet_id": tweetID, "reply": truncateForLog(replyText, 80)}).Info("dry run: would reply")
		return MentionResult{Kind: MentionReplied, TweetID: tweetID, Author: authorHandle, Reply: replyText, DryRun: true}
	}

	if err := l.guard.RecordReply(tweetID, result.PostedTweetID, replyText, authorID); err != nil {
		l.logger.WithError(err).Warn("failed to record reply after successful post")
	}
	if _, err := l.store.IncrementAuthorInteraction(authorID); err != nil {
		l.logger.WithError(err).Warn("failed to record author interaction")
	}

	return MentionResult{Kind: MentionReplied, TweetID: tweetID, Author: authorHandle, Reply: replyText}
}
