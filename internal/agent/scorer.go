package agent

import (
	"strings"

	"github.com/loopforge/tuitbot/internal/platform"
)

// DefaultScorer is a simple relevance heuristic: a keyword hit in the
// tweet body anchors the score, and engagement counts nudge it upward on
// a diminishing curve so a handful of popular tweets can't dominate every
// iteration's reply budget.
type DefaultScorer struct {
	KeywordWeight    float64
	EngagementWeight float64
}

// NewDefaultScorer builds a DefaultScorer with reasonable default weights.
func NewDefaultScorer() *DefaultScorer {
	return &DefaultScorer{KeywordWeight: 60, EngagementWeight: 40}
}

// Score returns a 0-100 relevance score for tweet against keyword.
func (s *DefaultScorer) Score(tweet platform.Tweet, keyword string) (float64, string) {
	score := 0.0
	matched := ""

	if keyword != "" && strings.Contains(strings.ToLower(tweet.Text), strings.ToLower(keyword)) {
		score += s.KeywordWeight
		matched = keyword
	}

	engagement := tweet.PublicMetrics.LikeCount + tweet.PublicMetrics.ReplyCount + tweet.PublicMetrics.RetweetCount
	score += s.EngagementWeight * engagementCurve(engagement)

	if score > 100 {
		score = 100
	}
	return score, matched
}

// engagementCurve maps a raw engagement count onto a 0-1 range with
// diminishing returns, so a single viral tweet doesn't crowd out every
// other qualifying result.
func engagementCurve(n int) float64 {
	if n <= 0 {
		return 0
	}
	curve := 0.0
	remaining := float64(n)
	step := 0.1
	for i := 0; i < 10 && remaining > 0; i++ {
		curve += step
		remaining -= 10
		step *= 0.7
	}
	if curve > 1 {
		curve = 1
	}
	return curve
}
