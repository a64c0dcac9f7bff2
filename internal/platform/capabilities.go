package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// PlatformClient is the capability surface the agent core depends on.
// Client implements it against the real wire API.
type PlatformClient interface {
	SearchTweets(ctx context.Context, query string, max int, since, page string) (SearchResult, error)
	GetMentions(ctx context.Context, userID string, since, page string) (SearchResult, error)
	PostTweet(ctx context.Context, text string) (Tweet, error)
	ReplyToTweet(ctx context.Context, text, inReplyTo string) (Tweet, error)
	QuoteTweet(ctx context.Context, text, quotedTweetID string) (Tweet, error)
	GetTweet(ctx context.Context, id string) (Tweet, error)
	GetMe(ctx context.Context) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserTweets(ctx context.Context, userID string, max int, page string) (SearchResult, error)
	GetHomeTimeline(ctx context.Context, userID string, max int, page string) (SearchResult, error)
	GetFollowers(ctx context.Context, userID string, max int, page string) ([]User, string, error)
	GetFollowing(ctx context.Context, userID string, max int, page string) ([]User, string, error)
	GetLikedTweets(ctx context.Context, userID string, max int, page string) (SearchResult, error)
	GetBookmarks(ctx context.Context, userID string, max int, page string) (SearchResult, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	GetTweetLikingUsers(ctx context.Context, tweetID string) ([]User, error)
	LikeTweet(ctx context.Context, userID, tweetID string) error
	UnlikeTweet(ctx context.Context, userID, tweetID string) error
	FollowUser(ctx context.Context, userID, targetID string) error
	UnfollowUser(ctx context.Context, userID, targetID string) error
	Retweet(ctx context.Context, userID, tweetID string) error
	Unretweet(ctx context.Context, userID, tweetID string) error
	BookmarkTweet(ctx context.Context, userID, tweetID string) error
	UnbookmarkTweet(ctx context.Context, userID, tweetID string) error
	DeleteTweet(ctx context.Context, tweetID string) error
}

var _ PlatformClient = (*Client)(nil)

func fromEnvelope(env tweetsEnvelope) SearchResult {
	result := SearchResult{Tweets: env.Data, NextToken: env.Meta.NextToken}
	if env.Includes != nil {
		result.Users = env.Includes.Users
	}
	return result
}

// SearchTweets finds recent tweets matching query.
func (c *Client) SearchTweets(ctx context.Context, query string, max int, since, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{
		"query":        query,
		"max_results":  strconv.Itoa(nonZero(max, 10)),
		"start_time":   since,
		"next_token":   page,
		"tweet.fields": "created_at,author_id,conversation_id,public_metrics",
		"expansions":   "author_id",
	}
	if err := c.request(ctx, http.MethodGet, "/tweets/search/recent", q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// GetMentions fetches tweets mentioning userID.
func (c *Client) GetMentions(ctx context.Context, userID string, since, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{
		"since_id":          since,
		"pagination_token":  page,
		"tweet.fields":      "created_at,author_id,conversation_id,public_metrics",
		"expansions":        "author_id",
	}
	path := fmt.Sprintf("/users/%s/mentions", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// PostTweet creates a new top-level tweet.
func (c *Client) PostTweet(ctx context.Context, text string) (Tweet, error) {
	var env tweetEnvelope
	body := map[string]any{"text": text}
	if err := c.request(ctx, http.MethodPost, "/tweets", nil, body, &env); err != nil {
		return Tweet{}, err
	}
	return env.Data, nil
}

// ReplyToTweet posts text as a reply to inReplyTo.
func (c *Client) ReplyToTweet(ctx context.Context, text, inReplyTo string) (Tweet, error) {
	var env tweetEnvelope
	body := map[string]any{
		"text": text,
		"reply": map[string]string{
			"in_reply_to_tweet_id": inReplyTo,
		},
	}
	if err := c.request(ctx, http.MethodPost, "/tweets", nil, body, &env); err != nil {
		return Tweet{}, err
	}
	return env.Data, nil
}

// QuoteTweet posts text as a quote of quotedTweetID.
func (c *Client) QuoteTweet(ctx context.Context, text, quotedTweetID string) (Tweet, error) {
	var env tweetEnvelope
	body := map[string]any{
		"text":           text,
		"quote_tweet_id": quotedTweetID,
	}
	if err := c.request(ctx, http.MethodPost, "/tweets", nil, body, &env); err != nil {
		return Tweet{}, err
	}
	return env.Data, nil
}

// GetTweet fetches a single tweet by id.
func (c *Client) GetTweet(ctx context.Context, id string) (Tweet, error) {
	var env tweetEnvelope
	q := map[string]string{"tweet.fields": "created_at,author_id,conversation_id,public_metrics"}
	if err := c.request(ctx, http.MethodGet, "/tweets/"+id, q, nil, &env); err != nil {
		return Tweet{}, err
	}
	return env.Data, nil
}

// GetMe fetches the authenticated account's own user object.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var env userEnvelope
	if err := c.request(ctx, http.MethodGet, "/users/me", nil, nil, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

// GetUserByUsername looks up a user by their handle.
func (c *Client) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var env userEnvelope
	if err := c.request(ctx, http.MethodGet, "/users/by/username/"+username, nil, nil, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

// GetUserByID looks up a user by id.
func (c *Client) GetUserByID(ctx context.Context, id string) (User, error) {
	var env userEnvelope
	if err := c.request(ctx, http.MethodGet, "/users/"+id, nil, nil, &env); err != nil {
		return User{}, err
	}
	return env.Data, nil
}

// GetUserTweets fetches userID's own timeline.
func (c *Client) GetUserTweets(ctx context.Context, userID string, max int, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 10)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/tweets", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// GetHomeTimeline fetches userID's reverse-chronological home timeline.
func (c *Client) GetHomeTimeline(ctx context.Context, userID string, max int, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 10)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/timelines/reverse_chronological", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// GetFollowers lists userID's followers.
func (c *Client) GetFollowers(ctx context.Context, userID string, max int, page string) ([]User, string, error) {
	var env usersEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 100)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/followers", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return nil, "", err
	}
	return env.Data, env.Meta.NextToken, nil
}

// GetFollowing lists accounts userID follows.
func (c *Client) GetFollowing(ctx context.Context, userID string, max int, page string) ([]User, string, error) {
	var env usersEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 100)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/following", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return nil, "", err
	}
	return env.Data, env.Meta.NextToken, nil
}

// GetLikedTweets lists tweets userID has liked.
func (c *Client) GetLikedTweets(ctx context.Context, userID string, max int, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 10)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/liked_tweets", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// GetBookmarks lists userID's bookmarked tweets.
func (c *Client) GetBookmarks(ctx context.Context, userID string, max int, page string) (SearchResult, error) {
	var env tweetsEnvelope
	q := map[string]string{"max_results": strconv.Itoa(nonZero(max, 10)), "pagination_token": page}
	path := fmt.Sprintf("/users/%s/bookmarks", userID)
	if err := c.request(ctx, http.MethodGet, path, q, nil, &env); err != nil {
		return SearchResult{}, err
	}
	return fromEnvelope(env), nil
}

// GetUsersByIDs batch-looks-up users.
func (c *Client) GetUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	var env usersEnvelope
	q := map[string]string{"ids": strings.Join(ids, ",")}
	if err := c.request(ctx, http.MethodGet, "/users", q, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetTweetLikingUsers lists users who liked tweetID.
func (c *Client) GetTweetLikingUsers(ctx context.Context, tweetID string) ([]User, error) {
	var env usersEnvelope
	path := fmt.Sprintf("/tweets/%s/liking_users", tweetID)
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// LikeTweet has userID like tweetID.
func (c *Client) LikeTweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/likes", userID)
	return c.request(ctx, http.MethodPost, path, nil, map[string]string{"tweet_id": tweetID}, &dataEnvelope{})
}

// UnlikeTweet has userID remove their like of tweetID.
func (c *Client) UnlikeTweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/likes/%s", userID, tweetID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, &dataEnvelope{})
}

// FollowUser has userID follow targetID.
func (c *Client) FollowUser(ctx context.Context, userID, targetID string) error {
	path := fmt.Sprintf("/users/%s/following", userID)
	return c.request(ctx, http.MethodPost, path, nil, map[string]string{"target_user_id": targetID}, &dataEnvelope{})
}

// UnfollowUser has userID unfollow targetID.
func (c *Client) UnfollowUser(ctx context.Context, userID, targetID string) error {
	path := fmt.Sprintf("/users/%s/following/%s", userID, targetID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, &dataEnvelope{})
}

// Retweet has userID retweet tweetID.
func (c *Client) Retweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/retweets", userID)
	return c.request(ctx, http.MethodPost, path, nil, map[string]string{"tweet_id": tweetID}, &dataEnvelope{})
}

// Unretweet has userID undo a retweet of tweetID.
func (c *Client) Unretweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/retweets/%s", userID, tweetID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, &dataEnvelope{})
}

// BookmarkTweet has userID bookmark tweetID.
func (c *Client) BookmarkTweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/bookmarks", userID)
	return c.request(ctx, http.MethodPost, path, nil, map[string]string{"tweet_id": tweetID}, &dataEnvelope{})
}

// UnbookmarkTweet has userID remove a bookmark of tweetID.
func (c *Client) UnbookmarkTweet(ctx context.Context, userID, tweetID string) error {
	path := fmt.Sprintf("/users/%s/bookmarks/%s", userID, tweetID)
	return c.request(ctx, http.MethodDelete, path, nil, nil, &dataEnvelope{})
}

// DeleteTweet deletes tweetID, owned by the authenticated account.
func (c *Client) DeleteTweet(ctx context.Context, tweetID string) error {
	return c.request(ctx, http.MethodDelete, "/tweets/"+tweetID, nil, nil, &dataEnvelope{})
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
