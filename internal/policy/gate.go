// Package policy implements the mutation policy gate: every mutating
// toolkit call passes through Gate.Check before it reaches the platform
// client, so blocked tools, approval routing, dry-run mode, and the
// mutation-rate ceiling are enforced in one place regardless of which
// scheduling loop originated the call.
package policy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/toolkit"
)

// auditStore is the storage surface the policy gate needs for its
// mutation-rate ceiling and audit trail.
type auditStore interface {
	LogAction(action, tool, outcome, detail, correlationID string) error
	CountActionsSince(action, cutoffRFC3339 string) (int, error)
}

// Config mirrors config.MCPPolicyConfig; declared locally so this package
// doesn't need to import internal/config just for six fields.
type Config struct {
	EnforceForMutations   bool
	BlockedTools          []string
	RequireApprovalFor    []string
	DryRunMutations       bool
	MaxMutationsPerHour   int
	ScraperAllowMutations bool
}

// Decision is the outcome of a policy check.
type Decision string

const (
	DecisionAllowed        Decision = "allowed"
	DecisionDenied         Decision = "denied"
	DecisionRoutedApproval Decision = "routed_to_approval"
	DecisionDryRun         Decision = "dry_run"
)

// Gate enforces the mutation policy ahead of any write to the platform.
type Gate struct {
	logger *logrus.Logger
	store  auditStore
	cfg    Config
}

// New builds a Gate over store with the given policy configuration.
func New(logger *logrus.Logger, store auditStore, cfg Config) *Gate {
	return &Gate{logger: logger, store: store, cfg: cfg}
}

// Check evaluates whether tool (a mutating action name, e.g.
// "post_tweet") is permitted right now, and logs the decision with
// correlationID for audit. If enforcement is disabled, every call is
// allowed without consulting the remaining rules.
func (g *Gate) Check(tool, correlationID string) (Decision, *toolkit.ToolResponse) {
	if !g.cfg.EnforceForMutations {
		return DecisionAllowed, nil
	}

	if g.isBlocked(tool) {
		resp := toolkit.PolicyDeniedBlocked(fmt.Sprintf("tool %q is blocked by policy", tool)).WithPolicyDecision(string(DecisionDenied))
		g.audit(tool, DecisionDenied, "blocked_tools", correlationID)
		return DecisionDenied, &resp
	}

	if g.cfg.MaxMutationsPerHour > 0 {
		cutoff := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
		count, err := g.store.CountActionsSince("mutation", cutoff)
		if err != nil {
			resp := toolkit.DbError(err.Error())
			return DecisionDenied, &resp
		}
		if count >= g.cfg.MaxMutationsPerHour {
			resp := toolkit.PolicyDeniedRateLimited("mutation rate ceiling reached for this hour").WithPolicyDecision(string(DecisionDenied))
			g.audit(tool, DecisionDenied, "max_mutations_per_hour", correlationID)
			return DecisionDenied, &resp
		}
	}

	if g.requiresApproval(tool) {
		g.audit(tool, DecisionRoutedApproval, "require_approval_for", correlationID)
		return DecisionRoutedApproval, nil
	}

	if g.cfg.DryRunMutations {
		g.audit(tool, DecisionDryRun, "dry_run_mutations", correlationID)
		return DecisionDryRun, nil
	}

	g.audit(tool, DecisionAllowed, "", correlationID)
	return DecisionAllowed, nil
}

// CheckScraperMutation additionally blocks mutations when the configured
// provider backend is a read-only scraper and scraper_allow_mutations is
// not set, independent of whether enforcement is on for other rules.
func (g *Gate) CheckScraperMutation(usingScraperBackend bool) *toolkit.ToolResponse {
	if usingScraperBackend && !g.cfg.ScraperAllowMutations {
		resp := toolkit.ScraperMutationBlocked()
		return &resp
	}
	return nil
}

func (g *Gate) isBlocked(tool string) bool {
	for _, t := range g.cfg.BlockedTools {
		if t == tool {
			return true
		}
	}
	return false
}

func (g *Gate) requiresApproval(tool string) bool {
	for _, t := range g.cfg.RequireApprovalFor {
		if t == tool {
			return true
		}
	}
	return false
}

func (g *Gate) audit(tool string, decision Decision, reason, correlationID string) {
	detail, _ := json.Marshal(map[string]string{"reason": reason})
	if err := g.store.LogAction("mutation", tool, string(decision), string(detail), correlationID); err != nil {
		g.logger.WithError(err).Warn("failed to write policy audit log entry")
	}
}
