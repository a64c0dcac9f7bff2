package safety

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// DenialReasonKind is the closed set of reasons a safety check can fail.
type DenialReasonKind string

const (
	DenialRateLimited        DenialReasonKind = "rate_limited"
	DenialAlreadyReplied     DenialReasonKind = "already_replied"
	DenialSimilarPhrasing    DenialReasonKind = "similar_phrasing"
	DenialBannedPhrase       DenialReasonKind = "banned_phrase"
	DenialAuthorLimitReached DenialReasonKind = "author_limit_reached"
	DenialSelfReply          DenialReasonKind = "self_reply"
)

// DenialReason explains why the safety guard refused an action. Only the
// fields relevant to Kind are populated.
type DenialReason struct {
	Kind       DenialReasonKind
	ActionType string
	Current    int
	Max        int
	TweetID    string
	Phrase     string
}

func (d DenialReason) Error() string {
	switch d.Kind {
	case DenialRateLimited:
		return fmt.Sprintf("rate limited: %s (%d/%d)", d.ActionType, d.Current, d.Max)
	case DenialAlreadyReplied:
		return fmt.Sprintf("already replied to tweet %s", d.TweetID)
	case DenialSimilarPhrasing:
		return "reply phrasing too similar to recent replies"
	case DenialBannedPhrase:
		return fmt.Sprintf("reply contains banned phrase: %q", d.Phrase)
	case DenialAuthorLimitReached:
		return "already reached daily reply limit for this author"
	case DenialSelfReply:
		return "cannot reply to own tweets"
	default:
		return "denied"
	}
}

// guardStore is the storage surface SafetyGuard needs beyond the rate
// limiter and dedup checker.
type guardStore interface {
	rateLimitStore
	dedupStore
	ReplyCountForAuthorToday(authorID string) (int, error)
	RecordReply(targetTweetID, replyTweetID, content, authorID string) error
}

// SafetyGuard holds the pre-flight checks the posting loops call before
// handing an action to the posting pipeline. Each check is a separate
// method; the calling loop decides the order in which they run.
type SafetyGuard struct {
	logger  *logrus.Logger
	store   guardStore
	limiter *RateLimiter
	dedup   *DedupChecker
	ownUserID string
}

// NewSafetyGuard builds a guard over store, with rate limit ceilings drawn
// from configuration and ownUserID used for self-reply detection.
func NewSafetyGuard(logger *logrus.Logger, store guardStore, maxRepliesPerDay, maxTweetsPerDay, maxThreadsPerWeek int, ownUserID string) *SafetyGuard {
	return &SafetyGuard{
		logger:    logger,
		store:     store,
		limiter:   NewRateLimiter(store, maxRepliesPerDay, maxTweetsPerDay, maxThreadsPerWeek, 0),
		dedup:     NewDedupChecker(store),
		ownUserID: ownUserID,
	}
}

// CanReplyTo runs the reply precondition chain in order: rate limit,
// exact dedup, then (if proposedReply is non-empty) phrasing similarity.
// A nil return means the action is permitted. authorID is not consulted
// here: the author cap, banned phrases and self-reply are checked
// separately by the caller (CheckAuthorLimit, CheckBannedPhrases,
// CheckSelfReply), after this chain.
func (g *SafetyGuard) CanReplyTo(tweetID, authorID, proposedReply string) (*DenialReason, error) {
	if ok, err := g.limiter.CanDo("reply"); err != nil {
		return nil, err
	} else if !ok {
		current, max, err := g.limiter.CurrentAndMax("reply")
		if err != nil {
			return nil, err
		}
		g.logger.WithFields(logrus.Fields{"action": "reply", "current": current, "max": max}).Debug("action denied: rate limited")
		return &DenialReason{Kind: DenialRateLimited, ActionType: "reply", Current: current, Max: max}, nil
	}

	replied, err := g.dedup.HasRepliedTo(tweetID)
	if err != nil {
		return nil, err
	}
	if replied {
		g.logger.WithField("tweet_id", tweetID).Debug("action denied: already replied")
		return &DenialReason{Kind: DenialAlreadyReplied, TweetID: tweetID}, nil
	}

	if proposedReply != "" {
		similar, err := g.dedup.IsPhrasingSimilar(proposedReply, 20)
		if err != nil {
			return nil, err
		}
		if similar {
			g.logger.Debug("action denied: similar phrasing")
			return &DenialReason{Kind: DenialSimilarPhrasing}, nil
		}
	}

	return nil, nil
}

// CanPostTweet checks only the rate limit — original tweets are not
// deduplicated against prior content.
func (g *SafetyGuard) CanPostTweet() (*DenialReason, error) {
	return g.checkRateLimitOnly("tweet")
}

// CanPostThread checks only the rate limit.
func (g *SafetyGuard) CanPostThread() (*DenialReason, error) {
	return g.checkRateLimitOnly("thread")
}

func (g *SafetyGuard) checkRateLimitOnly(actionType string) (*DenialReason, error) {
	ok, err := g.limiter.CanDo(actionType)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	current, max, err := g.limiter.CurrentAndMax(actionType)
	if err != nil {
		return nil, err
	}
	g.logger.WithFields(logrus.Fields{"action": actionType, "current": current, "max": max}).Debug("action denied: rate limited")
	return &DenialReason{Kind: DenialRateLimited, ActionType: actionType, Current: current, Max: max}, nil
}

// CheckAuthorLimit reports whether authorID has already hit maxPerDay
// replies today.
func (g *SafetyGuard) CheckAuthorLimit(authorID string, maxPerDay int) (*DenialReason, error) {
	count, err := g.store.ReplyCountForAuthorToday(authorID)
	if err != nil {
		return nil, err
	}
	if count >= maxPerDay {
		g.logger.WithFields(logrus.Fields{"author_id": authorID, "count": count, "max": maxPerDay}).Debug("action denied: author daily limit reached")
		return &DenialReason{Kind: DenialAuthorLimitReached}, nil
	}
	return nil, nil
}

// CheckBannedPhrases reports the first banned phrase found in text, if any.
func CheckBannedPhrases(text string, banned []string) *DenialReason {
	if phrase, ok := ContainsBannedPhrase(text, banned); ok {
		return &DenialReason{Kind: DenialBannedPhrase, Phrase: phrase}
	}
	return nil
}

// ContainsBannedPhrase reports the first banned phrase appearing in text
// (case-insensitive), or ok=false if none matched.
func ContainsBannedPhrase(text string, banned []string) (phrase string, ok bool) {
	lower := strings.ToLower(text)
	for _, p := range banned {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

// IsSelfReply reports whether tweetAuthorID is the agent's own account.
func IsSelfReply(tweetAuthorID, ownUserID string) bool {
	return tweetAuthorID != "" && ownUserID != "" && tweetAuthorID == ownUserID
}

// CheckSelfReply reports whether authorID is the agent's own account.
func (g *SafetyGuard) CheckSelfReply(authorID string) *DenialReason {
	if IsSelfReply(authorID, g.ownUserID) {
		g.logger.Debug("action denied: self reply")
		return &DenialReason{Kind: DenialSelfReply}
	}
	return nil
}

// RecordReply claims a reply rate-limit slot and persists the sent reply.
// Call only after the platform client confirms the post succeeded.
func (g *SafetyGuard) RecordReply(targetTweetID, replyTweetID, content, authorID string) error {
	if _, err := g.limiter.AcquirePostingPermit("reply"); err != nil {
		return err
	}
	return g.store.RecordReply(targetTweetID, replyTweetID, content, authorID)
}

// RecordTweet claims a tweet rate-limit slot.
func (g *SafetyGuard) RecordTweet() error {
	_, err := g.limiter.AcquirePostingPermit("tweet")
	return err
}

// RecordThread claims a thread rate-limit slot.
func (g *SafetyGuard) RecordThread() error {
	_, err := g.limiter.AcquirePostingPermit("thread")
	return err
}
