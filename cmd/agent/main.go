// Command agent wires the social engagement core together and runs it
// until an interrupt or SIGTERM asks it to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	internalagent "github.com/loopforge/tuitbot/internal/agent"
	"github.com/loopforge/tuitbot/internal/approval"
	"github.com/loopforge/tuitbot/internal/config"
	"github.com/loopforge/tuitbot/internal/content"
	"github.com/loopforge/tuitbot/internal/llm"
	"github.com/loopforge/tuitbot/internal/logging"
	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/safety"
	"github.com/loopforge/tuitbot/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	runOnceDiscovery := flag.Bool("run-once-discovery", false, "search all configured keywords once, print scored results, and exit")
	discoveryLimit := flag.Int("limit", 50, "maximum tweets to consider in total across all keywords in -run-once-discovery mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewLogger(cfg.LogLevel)

	store, err := storage.Open(log, cfg.Storage.DBPath, "migrations")
	if err != nil {
		log.WithError(err).Fatal("failed to open storage")
	}
	defer store.Close()

	platformClient, err := platform.New(log, platform.Config{
		ConsumerKey:       cfg.Platform.ConsumerKey,
		ConsumerSecret:    cfg.Platform.ConsumerSecret,
		AccessToken:       cfg.Platform.AccessToken,
		AccessTokenSecret: cfg.Platform.AccessTokenSecret,
		BearerToken:       cfg.Platform.BearerToken,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to initialize platform client")
	}

	textGenerator, err := llm.New(log, cfg.LLM.APIKey)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize language model client")
	}

	persona := content.Persona{
		ProductName:        cfg.Business.ProductName,
		ProductKeywords:    cfg.Business.ProductKeywords,
		TargetAudience:     cfg.Business.TargetAudience,
		BrandVoice:         cfg.Business.BrandVoice,
		PersonaOpinions:    cfg.Business.PersonaOpinions,
		PersonaExperiences: cfg.Business.PersonaExperiences,
		ContentPillars:     cfg.Business.ContentPillars,
	}
	generator := content.New(log, textGenerator, persona)

	if *runOnceDiscovery {
		runDiscoveryOnce(log, platformClient, generator, store, cfg, *discoveryLimit)
		return
	}

	guard := safety.NewSafetyGuard(log, store, cfg.Limits.MaxRepliesPerDay, cfg.Limits.MaxTweetsPerDay,
		cfg.Limits.MaxThreadsPerWeek, cfg.Platform.UserID)

	gate := policy.New(log, store, policy.Config{
		EnforceForMutations:   cfg.MCPPolicy.EnforceForMutations,
		BlockedTools:          cfg.MCPPolicy.BlockedTools,
		RequireApprovalFor:    cfg.MCPPolicy.RequireApprovalFor,
		DryRunMutations:       cfg.MCPPolicy.DryRunMutations,
		MaxMutationsPerHour:   cfg.MCPPolicy.MaxMutationsPerHour,
		ScraperAllowMutations: cfg.MCPPolicy.ScraperAllowMutations,
	})

	var approvalQueue *approval.Queue
	var pipelineApproval pipeline.ApprovalQueue
	if cfg.ApprovalMode {
		approvalQueue = approval.New(log, store)
		pipelineApproval = approvalQueue
	}

	executor := internalagent.NewPlatformExecutor(platformClient)
	delay := internalagent.JitteredDelay(cfg.MinActionDelay(), cfg.MaxActionDelay())
	pl := pipeline.New(log, executor, pipelineApproval, delay)

	scorer := internalagent.NewDefaultScorer()

	mentionsLoop := internalagent.NewMentionsLoop(log, platformClient, generator, guard, gate, pl, store,
		cfg.Platform.UserID, cfg.Limits.BannedPhrases, cfg.Limits.MaxRepliesPerAuthorPerDay, cfg.Business.ProductName)

	discoveryLoop := internalagent.NewDiscoveryLoop(log, platformClient, scorer, generator, guard, gate, pl, store,
		cfg.Discovery.Keywords, cfg.Scoring.Threshold, cfg.Limits.BannedPhrases, cfg.Business.ProductName)

	contentLoop := internalagent.NewContentLoop(log, generator, guard, gate, pl, store,
		cfg.Business.ContentPillars, cfg.Business.ProductName)

	threadLoop := internalagent.NewThreadLoop(log, generator, guard, gate, pl, store, cfg.Business.ProductName, cfg.Business.ThreadPostCount)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(5)
	go func() { defer wg.Done(); pl.Run(ctx) }()
	go func() { defer wg.Done(); mentionsLoop.Run(ctx, cfg.MentionsCheckInterval()) }()
	go func() { defer wg.Done(); discoveryLoop.Run(ctx, cfg.DiscoverySearchInterval()) }()
	go func() { defer wg.Done(); contentLoop.Run(ctx, cfg.ContentPostInterval()) }()
	go func() { defer wg.Done(); threadLoop.Run(ctx, cfg.ThreadInterval()) }()

	if cfg.ApprovalMode {
		approvalConsumer := internalagent.NewApprovalConsumerLoop(log, approvalQueue, executor, guard)
		wg.Add(1)
		go func() { defer wg.Done(); approvalConsumer.Run(ctx, cfg.MentionsCheckInterval()) }()
	}

	log.Info("agent started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining")
	cancel()
	wg.Wait()
	log.Info("shutdown complete")
}

// runDiscoveryOnce runs the discovery loop's search-and-score path across
// every configured keyword up to limit tweets in total, prints the results
// sorted by score, and exits without touching the posting pipeline.
func runDiscoveryOnce(log *logrus.Logger, platformClient *platform.Client, generator *content.Generator, store *storage.Store, cfg config.Config, limit int) {
	guard := safety.NewSafetyGuard(log, store, cfg.Limits.MaxRepliesPerDay, cfg.Limits.MaxTweetsPerDay,
		cfg.Limits.MaxThreadsPerWeek, cfg.Platform.UserID)
	gate := policy.New(log, store, policy.Config{EnforceForMutations: true, DryRunMutations: true})
	pl := pipeline.New(log, internalagent.NewPlatformExecutor(platformClient), nil, nil)

	loop := internalagent.NewDiscoveryLoop(log, platformClient, internalagent.NewDefaultScorer(), generator, guard, gate, pl, store,
		cfg.Discovery.Keywords, cfg.Scoring.Threshold, cfg.Limits.BannedPhrases, cfg.Business.ProductName)

	results, summary, err := loop.RunOnce(context.Background(), limit)
	if err != nil {
		log.WithError(err).Fatal("discovery run-once failed")
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	fmt.Printf("found %d tweets, %d qualifying, %d would-reply, %d skipped, %d failed\n",
		summary.TweetsFound, summary.Qualifying, summary.Replied, summary.Skipped, summary.Failed)
	for _, r := range results {
		fmt.Printf("%-20s score=%.1f author=%-15s kind=%v reply=%q\n", r.TweetID, r.Score, r.Author, r.Kind, r.Reply)
	}
}
