package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
	"github.com/loopforge/tuitbot/internal/storage"
	"github.com/loopforge/tuitbot/internal/toolkit"
)

// DiscoveryResultKind classifies the outcome of processing a single
// discovered tweet.
type DiscoveryResultKind string

const (
	DiscoveryReplied       DiscoveryResultKind = "replied"
	DiscoveryBelowThresh   DiscoveryResultKind = "below_threshold"
	DiscoverySkippedResult DiscoveryResultKind = "skipped"
	DiscoveryFailed        DiscoveryResultKind = "failed"
)

// DiscoveryResult is the outcome of processing a single discovered tweet.
type DiscoveryResult struct {
	Kind    DiscoveryResultKind
	TweetID string
	Author  string
	Score   float64
	Reply   string
	Reason  string
	Err     error
	DryRun  bool
}

// DiscoverySummary tallies a discovery iteration or run-once pass.
type DiscoverySummary struct {
	TweetsFound int
	Qualifying  int
	Replied     int
	Skipped     int
	Failed      int
}

func (s *DiscoverySummary) tally(r DiscoveryResult) {
	switch r.Kind {
	case DiscoveryReplied:
		s.Qualifying++
		s.Replied++
	case DiscoveryBelowThresh, DiscoverySkippedResult:
		s.Skipped++
	case DiscoveryFailed:
		s.Failed++
	}
}

type tweetSearcher interface {
	SearchTweets(ctx context.Context, query string, max int, since, page string) (platform.SearchResult, error)
}

type discoveryReplyGenerator interface {
	GenerateReply(ctx context.Context, sourceText, authorHandle, topic string) (string, error)
}

// TweetScorer scores a discovered tweet's relevance; internals are
// implementation-defined, the loop only consumes the resulting pair.
type TweetScorer interface {
	Score(tweet platform.Tweet, keyword string) (score float64, matchedKeyword string)
}

type discoveryStore interface {
	ExistsDiscovered(tweetID string) (bool, error)
	UpsertDiscovered(tweetID, authorID, authorUsername, text, matchedKeyword string, score float64, metrics storage.DiscoveredTweetMetrics) error
	MarkDiscoveredReplied(tweetID string) error
	LogAction(action, tool, outcome, detail, correlationID string) error
}

// DiscoveryLoop searches configured keywords round-robin, scores each
// result, and replies to whatever clears the configured threshold.
type DiscoveryLoop struct {
	logger        *logrus.Logger
	searcher      tweetSearcher
	scorer        TweetScorer
	generator     discoveryReplyGenerator
	guard         *safety.SafetyGuard
	gate          *policy.Gate
	pipeline      *pipeline.Pipeline
	store         discoveryStore
	keywords      []string
	threshold     float64
	bannedPhrases []string
	defaultTopic  string
	keywordIndex  int
}

// NewDiscoveryLoop builds a DiscoveryLoop.
func NewDiscoveryLoop(
	logger *logrus.Logger,
	searcher tweetSearcher,
	scorer TweetScorer,
	generator discoveryReplyGenerator,
	guard *safety.SafetyGuard,
	gate *policy.Gate,
	pl *pipeline.Pipeline,
	store discoveryStore,
	keywords []string,
	threshold float64,
	bannedPhrases []string,
	defaultTopic string,
) *DiscoveryLoop {
	return &DiscoveryLoop{
		logger:        logger,
		searcher:      searcher,
		scorer:        scorer,
		generator:     generator,
		guard:         guard,
		gate:          gate,
		pipeline:      pl,
		store:         store,
		keywords:      keywords,
		threshold:     threshold,
		bannedPhrases: bannedPhrases,
		defaultTopic:  defaultTopic,
	}
}

// Run executes the continuous discovery loop until ctx is cancelled,
// rotating through one configured keyword per iteration to distribute API
// usage across the search surface.
func (l *DiscoveryLoop) Run(ctx context.Context, interval time.Duration) {
	log := l.logger.WithField("loop", "discovery")
	log.Info("discovery loop started")

	if len(l.keywords) == 0 {
		log.Warn("no keywords configured, discovery loop has nothing to search")
		<-ctx.Done()
		log.Info("discovery loop stopped")
		return
	}

	tracker := NewConsecutiveErrorTracker(10, 5*time.Minute)

	for {
		if ctx.Err() != nil {
			break
		}

		keyword := l.keywords[l.keywordIndex%len(l.keywords)]
		l.keywordIndex++

		_, summary, err := l.searchAndProcess(ctx, keyword, 0)
		if err != nil {
			if !sleepOnLoopError(ctx, log.WithField("keyword", keyword), tracker, err) {
				break
			}
			continue
		}

		tracker.RecordSuccess()
		if summary.TweetsFound > 0 {
			log.WithFields(logrus.Fields{
				"keyword": keyword, "found": summary.TweetsFound,
				"qualifying": summary.Qualifying, "replied": summary.Replied,
			}).Info("discovery iteration complete")
		}

		if !sleepOrCancel(ctx, interval) {
			break
		}
	}

	log.Info("discovery loop stopped")
}

// RunOnce searches every configured keyword (no rotation), processes
// results up to limit total tweets (0 means no limit), and returns all
// results sorted by score descending.
func (l *DiscoveryLoop) RunOnce(ctx context.Context, limit int) ([]DiscoveryResult, DiscoverySummary, error) {
	var all []DiscoveryResult
	var total DiscoverySummary
	processed := 0

	for _, keyword := range l.keywords {
		if limit > 0 && processed >= limit {
			break
		}

		remaining := 0
		if limit > 0 {
			remaining = limit - processed
		}

		results, summary, err := l.searchAndProcess(ctx, keyword, remaining)
		if err != nil {
			l.logger.WithError(err).WithField("keyword", keyword).Warn("search failed for keyword")
			continue
		}

		total.TweetsFound += summary.TweetsFound
		total.Qualifying += summary.Qualifying
		total.Replied += summary.Replied
		total.Skipped += summary.Skipped
		total.Failed += summary.Failed
		processed += summary.TweetsFound
		all = append(all, results...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })

	return all, total, nil
}

func (l *DiscoveryLoop) searchAndProcess(ctx context.Context, keyword string, limit int) ([]DiscoveryResult, DiscoverySummary, error) {
	search, err := l.searcher.SearchTweets(ctx, keyword, 0, "", "")
	if err != nil {
		return nil, DiscoverySummary{}, err
	}

	summary := DiscoverySummary{TweetsFound: len(search.Tweets)}

	toProcess := search.Tweets
	if limit > 0 && len(toProcess) > limit {
		toProcess = toProcess[:limit]
	}

	authors := indexUsersByID(search.Users)

	results := make([]DiscoveryResult, 0, len(toProcess))
	for _, tweet := range toProcess {
		authorHandle := tweet.AuthorID
		if u, ok := authors[tweet.AuthorID]; ok {
			authorHandle = u.Username
		}

		result := l.processTweet(ctx, tweet, authorHandle, keyword)
		summary.tally(result)

		status, detail := discoveryLogDetail(result)
		if err := l.store.LogAction("discovery_reply", "discovery_loop", status, detail, tweet.ID); err != nil {
			l.logger.WithError(err).Warn("failed to log discovery action")
		}

		results = append(results, result)
	}

	return results, summary, nil
}

func discoveryLogDetail(r DiscoveryResult) (string, string) {
	switch r.Kind {
	case DiscoveryReplied:
		if r.DryRun {
			return "dry_run", fmt.Sprintf("would reply to %s (score %.0f): %s", r.TweetID, r.Score, truncateForLog(r.Reply, 50))
		}
		return "success", fmt.Sprintf("replied to %s (score %.0f): %s", r.TweetID, r.Score, truncateForLog(r.Reply, 50))
	case DiscoveryBelowThresh:
		return "skipped", fmt.Sprintf("tweet %s scored %.0f, below threshold", r.TweetID, r.Score)
	case DiscoverySkippedResult:
		return "skipped", fmt.Sprintf("skipped tweet %s: %s", r.TweetID, r.Reason)
	default:
		return "failure", fmt.Sprintf("failed on tweet %s: %v", r.TweetID, r.Err)
	}
}

// processTweet implements the per-tweet ordering: dedup, score (storing
// the result even when it misses threshold, for later analytics), then
// the safety chain in order (rate limit, exact dedup, phrasing similarity,
// banned phrase, self-reply), generation, submission.
func (l *DiscoveryLoop) processTweet(ctx context.Context, tweet platform.Tweet, authorHandle, keyword string) DiscoveryResult {
	exists, err := l.store.ExistsDiscovered(tweet.ID)
	if err != nil {
		return DiscoveryResult{Kind: DiscoveryFailed, TweetID: tweet.ID, Err: err}
	}
	if exists {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Reason: "already discovered"}
	}

	score, matchedKeyword := l.scorer.Score(tweet, keyword)
	if matchedKeyword == "" {
		matchedKeyword = keyword
	}

	metrics := storage.DiscoveredTweetMetrics{
		Likes:       tweet.PublicMetrics.LikeCount,
		Retweets:    tweet.PublicMetrics.RetweetCount,
		Replies:     tweet.PublicMetrics.ReplyCount,
		Impressions: tweet.PublicMetrics.ImpressionCount,
	}
	if err := l.store.UpsertDiscovered(tweet.ID, tweet.AuthorID, authorHandle, tweet.Text, matchedKeyword, score, metrics); err != nil {
		l.logger.WithError(err).Warn("failed to store discovered tweet")
	}

	if score < l.threshold {
		return DiscoveryResult{Kind: DiscoveryBelowThresh, TweetID: tweet.ID, Score: score}
	}

	if reason, err := l.guard.CanReplyTo(tweet.ID, tweet.AuthorID, ""); err != nil {
		return DiscoveryResult{Kind: DiscoveryFailed, TweetID: tweet.ID, Err: err}
	} else if reason != nil {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Score: score, Reason: reason.Error()}
	}

	replyText, err := l.generator.GenerateReply(ctx, tweet.Text, authorHandle, l.defaultTopic)
	if err != nil {
		return DiscoveryResult{Kind: DiscoveryFailed, TweetID: tweet.ID, Err: err}
	}

	if reason, err := l.guard.CanReplyTo(tweet.ID, tweet.AuthorID, replyText); err != nil {
		return DiscoveryResult{Kind: DiscoveryFailed, TweetID: tweet.ID, Err: err}
	} else if reason != nil {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Score: score, Reason: reason.Error()}
	}

	if reason := safety.CheckBannedPhrases(replyText, l.bannedPhrases); reason != nil {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Score: score, Reason: reason.Error()}
	}

	if reason := l.guard.CheckSelfReply(tweet.AuthorID); reason != nil {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Score: score, Reason: reason.Error()}
	}

	correlationID := toolkit.NewCorrelationID()
	result, decision, err := submitThroughPolicy(ctx, l.logger.WithField("loop", "discovery"), l.gate, l.pipeline, "reply_to_tweet", correlationID,
		pipeline.PostAction{Kind: pipeline.ActionReply, TweetID: tweet.ID, Content: replyText})
	if err != nil || result.Err != nil {
		if err == nil {
			err = result.Err
		}
		return DiscoveryResult{Kind: DiscoveryFailed, TweetID: tweet.ID, Err: err}
	}
	if decision == policy.DecisionDenied {
		return DiscoveryResult{Kind: DiscoverySkippedResult, TweetID: tweet.ID, Score: score, Reason: "denied by mutation policy"}
	}
	if decision == policy.DecisionDryRun {
		return DiscoveryResult{Kind: DiscoveryReplied, TweetID: tweet.ID, Author: authorHandle, Score: score, Reply: replyText, DryRun: true}
	}

	if err := l.guard.RecordReply(tweet.ID, result.PostedTweetID, replyText, tweet.AuthorID); err != nil {
		l.logger.WithError(err).Warn("failed to record reply after successful post")
	}
	if err := l.store.MarkDiscoveredReplied(tweet.ID); err != nil {
		l.logger.WithError(err).Warn("failed to mark discovered tweet replied")
	}

	return DiscoveryResult{Kind: DiscoveryReplied, TweetID: tweet.ID, Author: authorHandle, Score: score, Reply: replyText}
}
