package safety

import "strings"

// dedupStore is the storage surface DedupChecker needs.
type dedupStore interface {
	HasRepliedTo(targetTweetID string) (bool, error)
	RecentReplyContents(n int) ([]string, error)
}

// similarityThreshold is the word-overlap ratio above which two replies are
// considered the same phrasing. |A∩B| / min(|A|,|B|) >= threshold.
const similarityThreshold = 0.70

// DedupChecker detects exact and near-duplicate replies.
type DedupChecker struct {
	store dedupStore
}

// NewDedupChecker builds a checker backed by store.
func NewDedupChecker(store dedupStore) *DedupChecker {
	return &DedupChecker{store: store}
}

// HasRepliedTo reports whether the agent has already replied to tweetID —
// the exact-dedup check, by target tweet id rather than content.
func (d *DedupChecker) HasRepliedTo(tweetID string) (bool, error) {
	return d.store.HasRepliedTo(tweetID)
}

// IsPhrasingSimilar reports whether text's word set overlaps any of the n
// most recently sent replies above similarityThreshold.
func (d *DedupChecker) IsPhrasingSimilar(text string, n int) (bool, error) {
	recent, err := d.store.RecentReplyContents(n)
	if err != nil {
		return false, err
	}

	words := wordSet(text)
	if len(words) == 0 {
		return false, nil
	}

	for _, other := range recent {
		if wordOverlapRatio(words, wordSet(other)) >= similarityThreshold {
			return true, nil
		}
	}
	return false, nil
}

// wordOverlapRatio computes |a∩b| / min(|a|,|b|), the symmetric similarity
// measure used for phrasing-dedup: swapping a and b yields the same ratio.
func wordOverlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for w := range small {
		if _, ok := large[w]; ok {
			intersection++
		}
	}

	return float64(intersection) / float64(len(small))
}

func wordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}
