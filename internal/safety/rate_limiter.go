// Package safety implements the pre-flight checks every automation loop
// must pass before taking a mutating action: rate limiting, duplicate
// detection, banned-phrase screening, the per-author daily cap, and
// self-reply detection. SafetyGuard.CanReplyTo runs the rate limit, exact
// dedup and phrasing checks as one chain; the author cap, banned-phrase
// and self-reply checks are separate methods that the caller runs itself.
package safety

import (
	"fmt"
	"time"
)

const (
	dailyWindow  = 24 * time.Hour
	weeklyWindow = 7 * 24 * time.Hour
)

// rateLimitStore is the storage surface RateLimiter needs. Defined here
// rather than depending on the concrete storage package directly, so the
// safety package stays testable with a fake.
type rateLimitStore interface {
	CheckAndIncrement(actionType string, max int, window time.Duration) (bool, int, error)
	CurrentCount(actionType string, window time.Duration) (int, error)
}

// RateLimiter wraps the rate-limit storage with the fixed action kinds the
// agent posts: reply, tweet, thread and search.
type RateLimiter struct {
	store   rateLimitStore
	maxima  map[string]int
	windows map[string]time.Duration
}

// NewRateLimiter builds a limiter with the per-action-type maxima drawn
// from configuration (max replies/day, max tweets/day, max threads/week).
// Search has no configured cap of its own; maxSearchesPerDay lets callers
// still bound it, defaulting to a generous ceiling when zero.
func NewRateLimiter(store rateLimitStore, maxRepliesPerDay, maxTweetsPerDay, maxThreadsPerWeek, maxSearchesPerDay int) *RateLimiter {
	if maxSearchesPerDay <= 0 {
		maxSearchesPerDay = 1000
	}

	return &RateLimiter{
		store: store,
		maxima: map[string]int{
			"reply":  maxRepliesPerDay,
			"tweet":  maxTweetsPerDay,
			"thread": maxThreadsPerWeek,
			"search": maxSearchesPerDay,
		},
		windows: map[string]time.Duration{
			"reply":  dailyWindow,
			"tweet":  dailyWindow,
			"thread": weeklyWindow,
			"search": dailyWindow,
		},
	}
}

// CanDo reports whether actionType is currently under its cap without
// claiming a slot. Used for early, non-mutating precondition checks;
// actually posting must still go through AcquirePostingPermit to avoid a
// check-then-act race between concurrent loops.
func (r *RateLimiter) CanDo(actionType string) (bool, error) {
	current, max, err := r.CurrentAndMax(actionType)
	if err != nil {
		return false, err
	}
	return current < max, nil
}

// AcquirePostingPermit atomically checks and claims a slot for actionType.
// This is the only method that should be used immediately before posting —
// it closes the check-then-act race a separate Can/Record pair would leave
// open under concurrent loops.
func (r *RateLimiter) AcquirePostingPermit(actionType string) (bool, error) {
	max, ok := r.maxima[actionType]
	if !ok {
		return false, fmt.Errorf("unknown rate limit action type: %s", actionType)
	}
	ok2, _, err := r.store.CheckAndIncrement(actionType, max, r.windows[actionType])
	return ok2, err
}

// CurrentAndMax returns the live count and configured ceiling for
// actionType, used to build a RateLimited denial's current/max fields.
func (r *RateLimiter) CurrentAndMax(actionType string) (current, max int, err error) {
	max, ok := r.maxima[actionType]
	if !ok {
		return 0, 0, fmt.Errorf("unknown rate limit action type: %s", actionType)
	}
	current, err = r.store.CurrentCount(actionType, r.windows[actionType])
	return current, max, err
}
