package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := New(testLogger(), Config{BearerToken: "test-bearer-token", BaseURL: server.URL, RequestsPerSecond: 1000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestPostTweetReturnsDecodedTweet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "123", "text": "hello world"},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	tweet, err := c.PostTweet(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("PostTweet: %v", err)
	}
	if tweet.ID != "123" || tweet.Text != "hello world" {
		t.Errorf("unexpected tweet: %+v", tweet)
	}
}

func TestRequestClassifiesRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", "9999999999")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"title": "Too Many Requests", "detail": "rate limited"}},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetTweet(context.Background(), "1")

	var platformErr *Error
	if err == nil {
		t.Fatal("expected error")
	}
	if e, ok := err.(*Error); !ok || e.Kind != ErrRateLimited {
		t.Errorf("expected ErrRateLimited, got %v (%T)", err, err)
	} else {
		platformErr = e
	}
	if platformErr != nil && platformErr.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %v", platformErr.RetryAfter)
	}
}

func TestRequestClassifiesAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetMe(context.Background())
	if e, ok := err.(*Error); !ok || e.Kind != ErrAuthExpired {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
}

func TestRequestRedactsTokenShapedSubstrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"title": "forbidden", "detail": "token AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA is invalid"}},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetMe(context.Background())
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Kind != ErrForbidden {
		t.Errorf("expected ErrForbidden, got %s", e.Kind)
	}
	if wantNoSubstring := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"; strings.Contains(e.Message, wantNoSubstring) {
		t.Errorf("expected token-shaped substring to be redacted, got %q", e.Message)
	}
}

func TestSearchTweetsParsesIncludedUsers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "1", "text": "post one", "author_id": "u1"}},
			"includes": map[string]any{
				"users": []map[string]string{{"id": "u1", "username": "someone"}},
			},
			"meta": map[string]string{"next_token": "abc"},
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	result, err := c.SearchTweets(context.Background(), "golang", 10, "", "")
	if err != nil {
		t.Fatalf("SearchTweets: %v", err)
	}
	if len(result.Tweets) != 1 || len(result.Users) != 1 || result.NextToken != "abc" {
		t.Errorf("unexpected result: %+v", result)
	}
}
