package toolkit

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxTweetLength is the platform's character cap, measured in Unicode
// code points.
const MaxTweetLength = 280

// NewCorrelationID generates a fresh correlation id for a mutation's audit
// trail.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ValidateNonEmpty returns an invalid_input ToolResponse if text is empty
// or all whitespace, or ok=true otherwise.
func ValidateNonEmpty(field, text string) (resp ToolResponse, ok bool) {
	if strings.TrimSpace(text) == "" {
		return Error(ErrInvalidInput, field+" must not be empty"), false
	}
	return ToolResponse{}, true
}

// ValidateTweetLength returns a tweet_too_long ToolResponse if text exceeds
// MaxTweetLength code points, or ok=true otherwise.
func ValidateTweetLength(text string) (resp ToolResponse, ok bool) {
	if utf8.RuneCountInString(text) > MaxTweetLength {
		return Error(ErrTweetTooLong, "content exceeds the platform's character limit"), false
	}
	return ToolResponse{}, true
}
