package agent

import (
	"context"

	"github.com/loopforge/tuitbot/internal/platform"
)

type tweetPoster interface {
	PostTweet(ctx context.Context, text string) (platform.Tweet, error)
	ReplyToTweet(ctx context.Context, text, inReplyTo string) (platform.Tweet, error)
}

// PlatformExecutor implements pipeline.PostExecutor directly against a
// platform client. The pipeline uses it to post immediately when
// approval_mode is off, and the approval consumer loop uses it to post
// approved items.
type PlatformExecutor struct {
	client tweetPoster
}

// NewPlatformExecutor builds a PlatformExecutor over client.
func NewPlatformExecutor(client tweetPoster) *PlatformExecutor {
	return &PlatformExecutor{client: client}
}

// ExecuteReply posts content as a reply to tweetID.
func (e *PlatformExecutor) ExecuteReply(ctx context.Context, tweetID, content string) (string, error) {
	tweet, err := e.client.ReplyToTweet(ctx, content, tweetID)
	if err != nil {
		return "", err
	}
	return tweet.ID, nil
}

// ExecuteTweet posts content as a new top-level tweet.
func (e *PlatformExecutor) ExecuteTweet(ctx context.Context, content string) (string, error) {
	tweet, err := e.client.PostTweet(ctx, content)
	if err != nil {
		return "", err
	}
	return tweet.ID, nil
}
