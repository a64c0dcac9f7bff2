// Package platform implements the microblogging platform client: OAuth1
// (for write operations) or Bearer (for read-only operations) HTTP access
// to the v2-style wire API, satisfying the PlatformClient capability the
// agent core depends on. Every error surfaced to a caller is classified
// into a small closed set and redacted of anything token-shaped.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/mrjones/oauth"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	requestTokenURL   = "https://api.twitter.com/oauth/request_token"
	authorizeTokenURL = "https://api.twitter.com/oauth/authorize"
	accessTokenURL    = "https://api.twitter.com/oauth/access_token"
)

// ErrorKind classifies a platform error into the closed set the agent
// core's callers branch on.
type ErrorKind string

const (
	ErrRateLimited       ErrorKind = "x_rate_limited"
	ErrAuthExpired       ErrorKind = "x_auth_expired"
	ErrForbidden         ErrorKind = "x_forbidden"
	ErrScopeInsufficient ErrorKind = "x_scope_insufficient"
	ErrNetwork           ErrorKind = "x_network_error"
	ErrAPIError          ErrorKind = "x_api_error"
)

// Error is the error type every Client method returns on failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	Status     int
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// tokenShapedPattern matches long alphanumeric runs that look like bearer
// tokens, access tokens or secrets rather than prose, so error messages
// echoed back from the platform never leak credentials into logs.
var tokenShapedPattern = regexp.MustCompile(`[A-Za-z0-9_\-]{25,}`)

func redact(msg string) string {
	return tokenShapedPattern.ReplaceAllString(msg, "[redacted]")
}

// Config configures a Client.
type Config struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
	BaseURL           string
	RequestsPerSecond float64
}

// Client is the platform client. A single instance may use either OAuth1
// (when consumer/access credentials are present, required for mutations)
// or Bearer token auth (read-only).
type Client struct {
	cfg        Config
	logger     *logrus.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New builds a Client. OAuth1 credentials take priority for the HTTP
// client's transport when present, since only OAuth1 can authenticate
// mutations; Bearer-only configuration is valid for read-only deployments.
func New(logger *logrus.Logger, cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twitter.com/2"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	if cfg.ConsumerKey != "" && cfg.AccessToken != "" {
		consumer := oauth.NewConsumer(cfg.ConsumerKey, cfg.ConsumerSecret, oauth.ServiceProvider{
			RequestTokenUrl:   requestTokenURL,
			AuthorizeTokenUrl: authorizeTokenURL,
			AccessTokenUrl:    accessTokenURL,
		})
		consumer.HttpClient = httpClient

		token := &oauth.AccessToken{Token: cfg.AccessToken, Secret: cfg.AccessTokenSecret}
		signedClient, err := consumer.MakeHttpClient(token)
		if err != nil {
			return nil, fmt.Errorf("failed to build oauth1 http client: %w", err)
		}
		httpClient = signedClient
	} else if cfg.BearerToken == "" {
		return nil, fmt.Errorf("either oauth1 credentials or a bearer token must be configured")
	}

	return &Client{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

func (c *Client) usesOAuth1() bool {
	return c.cfg.ConsumerKey != "" && c.cfg.AccessToken != ""
}

// request issues an HTTP call against path, optionally JSON-encoding body,
// and decodes the response into out. It applies outbound pacing via the
// rate limiter and classifies any failure into the closed error set.
func (c *Client) request(ctx context.Context, method, path string, query map[string]string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Kind: ErrNetwork, Message: redact(err.Error())}
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: ErrAPIError, Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		bodyReader = bytes.NewReader(payload)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return &Error{Kind: ErrAPIError, Message: fmt.Sprintf("failed to build request: %v", err)}
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !c.usesOAuth1() {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}

	if query != nil {
		q := req.URL.Query()
		for k, v := range query {
			if v != "" {
				q.Set(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	c.logger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("calling platform api")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: ErrNetwork, Message: redact(err.Error())}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: ErrNetwork, Message: redact(err.Error())}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(rawBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(rawBody, out); err != nil {
			return &Error{Kind: ErrAPIError, Message: fmt.Sprintf("failed to decode response: %v", err), Status: resp.StatusCode}
		}
		return nil
	}

	return classifyHTTPError(resp, rawBody)
}

func classifyHTTPError(resp *http.Response, rawBody []byte) *Error {
	message := redact(extractWireErrorMessage(rawBody, resp.StatusCode))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
			if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
				retryAfter = time.Until(time.Unix(unix, 0))
			}
		}
		return &Error{Kind: ErrRateLimited, Message: message, Status: resp.StatusCode, RetryAfter: retryAfter}
	case http.StatusUnauthorized:
		return &Error{Kind: ErrAuthExpired, Message: message, Status: resp.StatusCode}
	case http.StatusForbidden:
		return &Error{Kind: ErrForbidden, Message: message, Status: resp.StatusCode}
	case 451:
		return &Error{Kind: ErrScopeInsufficient, Message: message, Status: resp.StatusCode}
	default:
		return &Error{Kind: ErrAPIError, Message: message, Status: resp.StatusCode}
	}
}

func extractWireErrorMessage(rawBody []byte, status int) string {
	var errs struct {
		Errors []wireError `json:"errors"`
		Title  string      `json:"title"`
		Detail string      `json:"detail"`
	}
	if err := json.Unmarshal(rawBody, &errs); err == nil {
		if len(errs.Errors) > 0 {
			if errs.Errors[0].Detail != "" {
				return errs.Errors[0].Detail
			}
			return errs.Errors[0].Title
		}
		if errs.Detail != "" {
			return errs.Detail
		}
		if errs.Title != "" {
			return errs.Title
		}
	}
	return fmt.Sprintf("platform api error: status=%d", status)
}
