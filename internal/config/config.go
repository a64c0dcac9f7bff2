// Package config loads and validates the agent's effective configuration:
// a structured TOML tree for policy/business settings, layered with
// environment variables (via .env, using godotenv) for secrets and
// per-deployment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// LimitsConfig controls posting caps and safety thresholds.
type LimitsConfig struct {
	MaxRepliesPerDay          int      `toml:"max_replies_per_day"`
	MaxTweetsPerDay           int      `toml:"max_tweets_per_day"`
	MaxThreadsPerWeek         int      `toml:"max_threads_per_week"`
	MinActionDelaySeconds     int      `toml:"min_action_delay_seconds"`
	MaxActionDelaySeconds     int      `toml:"max_action_delay_seconds"`
	MaxRepliesPerAuthorPerDay int      `toml:"max_replies_per_author_per_day"`
	BannedPhrases             []string `toml:"banned_phrases"`
	ProductMentionRatio       float64  `toml:"product_mention_ratio"`
}

// IntervalsConfig controls how often each scheduling loop runs.
type IntervalsConfig struct {
	MentionsCheckSeconds     int `toml:"mentions_check_seconds"`
	DiscoverySearchSeconds   int `toml:"discovery_search_seconds"`
	ContentPostWindowSeconds int `toml:"content_post_window_seconds"`
	ThreadIntervalSeconds    int `toml:"thread_interval_seconds"`
}

// ScoringConfig controls the discovery loop's relevance threshold.
type ScoringConfig struct {
	Threshold   float64 `toml:"threshold"`
	LikesMax    float64 `toml:"likes_max"`
	RetweetsMax float64 `toml:"retweets_max"`
	RepliesMax  float64 `toml:"replies_max"`
}

// DiscoveryConfig controls which search keywords the discovery loop
// rotates through.
type DiscoveryConfig struct {
	Keywords []string `toml:"keywords"`
}

// BusinessConfig carries the persona/product context used when assembling
// generation prompts.
type BusinessConfig struct {
	ProductName        string   `toml:"product_name"`
	ProductKeywords    []string `toml:"product_keywords"`
	TargetAudience     string   `toml:"target_audience"`
	BrandVoice         string   `toml:"brand_voice"`
	PersonaOpinions    []string `toml:"persona_opinions"`
	PersonaExperiences []string `toml:"persona_experiences"`
	ContentPillars     []string `toml:"content_pillars"`
	ThreadPostCount    int      `toml:"thread_post_count"`
}

// MCPPolicyConfig controls the mutation policy gate.
type MCPPolicyConfig struct {
	EnforceForMutations   bool     `toml:"enforce_for_mutations"`
	BlockedTools          []string `toml:"blocked_tools"`
	RequireApprovalFor    []string `toml:"require_approval_for"`
	DryRunMutations       bool     `toml:"dry_run_mutations"`
	MaxMutationsPerHour   int      `toml:"max_mutations_per_hour"`
	ScraperAllowMutations bool     `toml:"scraper_allow_mutations"`
}

// StorageConfig controls where the SQLite database lives and retention.
type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the fully merged, validated effective configuration.
type Config struct {
	Limits       LimitsConfig    `toml:"limits"`
	Intervals    IntervalsConfig `toml:"intervals"`
	Scoring      ScoringConfig   `toml:"scoring"`
	Discovery    DiscoveryConfig `toml:"discovery"`
	Business     BusinessConfig  `toml:"business"`
	MCPPolicy    MCPPolicyConfig `toml:"mcp_policy"`
	ApprovalMode bool            `toml:"approval_mode"`
	Storage      StorageConfig   `toml:"storage"`

	// Secrets, sourced from the environment only — never from TOML.
	Platform PlatformCredentials `toml:"-"`
	LLM      LLMCredentials      `toml:"-"`
	LogLevel string              `toml:"-"`
}

// PlatformCredentials holds the OAuth1/Bearer credentials for the
// microblogging platform client.
type PlatformCredentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
	UserID            string
}

// LLMCredentials holds the text-generator provider credentials.
type LLMCredentials struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Default returns a Config populated with sane defaults used when no TOML
// file is present (e.g. in tests).
func Default() Config {
	return Config{
		Business: BusinessConfig{
			ThreadPostCount: 6,
		},
		Limits: LimitsConfig{
			MaxRepliesPerDay:          50,
			MaxTweetsPerDay:           10,
			MaxThreadsPerWeek:         3,
			MinActionDelaySeconds:     30,
			MaxActionDelaySeconds:     120,
			MaxRepliesPerAuthorPerDay: 2,
			ProductMentionRatio:       0.2,
		},
		Intervals: IntervalsConfig{
			MentionsCheckSeconds:     60,
			DiscoverySearchSeconds:   300,
			ContentPostWindowSeconds: 14400,
			ThreadIntervalSeconds:    604800,
		},
		Scoring: ScoringConfig{
			Threshold:   50,
			LikesMax:    100,
			RetweetsMax: 50,
			RepliesMax:  20,
		},
		MCPPolicy: MCPPolicyConfig{
			MaxMutationsPerHour: 20,
		},
		Storage: StorageConfig{
			DBPath:        "tuitbot.db",
			RetentionDays: 30,
		},
	}
}

// Load reads the TOML configuration at path (if it exists), layers
// environment variables for secrets, and validates the result. A missing
// TOML file is not an error — the built-in defaults apply and only
// environment overrides take effect, keeping .env entirely optional.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("TUITBOT_CONFIG")
	}
	if path == "" {
		path = "config.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Platform = PlatformCredentials{
		ConsumerKey:       os.Getenv("TWITTER_CONSUMER_KEY"),
		ConsumerSecret:    os.Getenv("TWITTER_CONSUMER_SECRET"),
		AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
		AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
		BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
		UserID:            os.Getenv("TWITTER_USER_ID"),
	}

	c.LLM = LLMCredentials{
		APIKey:      os.Getenv("LLM_API_KEY"),
		Model:       envOrDefault("LLM_MODEL", "gpt-4"),
		Temperature: 0.7,
		MaxTokens:   1000,
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}

	c.LogLevel = os.Getenv("LOG_LEVEL")
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Validate enforces the invariants that must hold before the agent can
// safely start: positive mentions and discovery intervals, a non-negative
// minimum action delay no larger than the maximum, a database path, and a
// thread_post_count that is either unset (0) or between 5 and 8.
// Credentials are not checked here.
func (c Config) Validate() error {
	if c.Intervals.MentionsCheckSeconds <= 0 {
		return fmt.Errorf("intervals.mentions_check_seconds must be positive")
	}
	if c.Intervals.DiscoverySearchSeconds <= 0 {
		return fmt.Errorf("intervals.discovery_search_seconds must be positive")
	}
	if c.Limits.MinActionDelaySeconds < 0 {
		return fmt.Errorf("limits.min_action_delay_seconds must not be negative")
	}
	if c.Limits.MaxActionDelaySeconds < c.Limits.MinActionDelaySeconds {
		return fmt.Errorf("limits.max_action_delay_seconds must be >= min_action_delay_seconds")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Business.ThreadPostCount != 0 && (c.Business.ThreadPostCount < 5 || c.Business.ThreadPostCount > 8) {
		return fmt.Errorf("business.thread_post_count must be between 5 and 8")
	}
	return nil
}

// MinActionDelay returns the configured minimum inter-post delay.
func (c Config) MinActionDelay() time.Duration {
	return time.Duration(c.Limits.MinActionDelaySeconds) * time.Second
}

// MaxActionDelay returns the configured maximum inter-post delay.
func (c Config) MaxActionDelay() time.Duration {
	return time.Duration(c.Limits.MaxActionDelaySeconds) * time.Second
}

// MentionsCheckInterval returns the mentions loop polling interval.
func (c Config) MentionsCheckInterval() time.Duration {
	return time.Duration(c.Intervals.MentionsCheckSeconds) * time.Second
}

// DiscoverySearchInterval returns the discovery loop polling interval.
func (c Config) DiscoverySearchInterval() time.Duration {
	return time.Duration(c.Intervals.DiscoverySearchSeconds) * time.Second
}

// ContentPostInterval returns the content loop posting window.
func (c Config) ContentPostInterval() time.Duration {
	return time.Duration(c.Intervals.ContentPostWindowSeconds) * time.Second
}

// ThreadInterval returns the thread loop interval.
func (c Config) ThreadInterval() time.Duration {
	return time.Duration(c.Intervals.ThreadIntervalSeconds) * time.Second
}
