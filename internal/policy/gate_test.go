package policy

import (
	"testing"

	"github.com/sirupsen/logrus"
)

type fakeAuditStore struct {
	logged []string
	count  int
}

func (f *fakeAuditStore) LogAction(action, tool, outcome, detail, correlationID string) error {
	f.logged = append(f.logged, outcome)
	return nil
}

func (f *fakeAuditStore) CountActionsSince(action, cutoffRFC3339 string) (int, error) {
	return f.count, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestGateAllowsWhenEnforcementDisabled(t *testing.T) {
	store := &fakeAuditStore{}
	g := New(testLogger(), store, Config{EnforceForMutations: false, BlockedTools: []string{"post_tweet"}})

	decision, resp := g.Check("post_tweet", "corr-1")
	if decision != DecisionAllowed || resp != nil {
		t.Errorf("expected allowed with no enforcement, got %v %+v", decision, resp)
	}
}

func TestGateBlocksListedTool(t *testing.T) {
	store := &fakeAuditStore{}
	g := New(testLogger(), store, Config{EnforceForMutations: true, BlockedTools: []string{"delete_tweet"}})

	decision, resp := g.Check("delete_tweet", "corr-1")
	if decision != DecisionDenied || resp == nil {
		t.Fatalf("expected denied, got %v %+v", decision, resp)
	}
	if resp.Error.Code != "policy_denied_blocked" {
		t.Errorf("expected policy_denied_blocked code, got %s", resp.Error.Code)
	}
}

func TestGateRoutesToApproval(t *testing.T) {
	store := &fakeAuditStore{}
	g := New(testLogger(), store, Config{EnforceForMutations: true, RequireApprovalFor: []string{"post_tweet"}})

	decision, resp := g.Check("post_tweet", "corr-1")
	if decision != DecisionRoutedApproval || resp != nil {
		t.Fatalf("expected routed_to_approval with no error payload, got %v %+v", decision, resp)
	}
}

func TestGateEnforcesMutationCeiling(t *testing.T) {
	store := &fakeAuditStore{count: 20}
	g := New(testLogger(), store, Config{EnforceForMutations: true, MaxMutationsPerHour: 20})

	decision, resp := g.Check("post_tweet", "corr-1")
	if decision != DecisionDenied || resp == nil {
		t.Fatalf("expected denied at ceiling, got %v %+v", decision, resp)
	}
	if resp.Error.Code != "policy_denied_rate_limited" {
		t.Errorf("expected policy_denied_rate_limited code, got %s", resp.Error.Code)
	}
}

func TestGateDryRunShortCircuits(t *testing.T) {
	store := &fakeAuditStore{}
	g := New(testLogger(), store, Config{EnforceForMutations: true, DryRunMutations: true})

	decision, resp := g.Check("post_tweet", "corr-1")
	if decision != DecisionDryRun || resp != nil {
		t.Fatalf("expected dry_run, got %v %+v", decision, resp)
	}
}

func TestGateScraperMutationBlocked(t *testing.T) {
	store := &fakeAuditStore{}
	g := New(testLogger(), store, Config{ScraperAllowMutations: false})

	resp := g.CheckScraperMutation(true)
	if resp == nil || resp.Error.Code != "scraper_mutation_blocked" {
		t.Fatalf("expected scraper_mutation_blocked, got %+v", resp)
	}

	if r := g.CheckScraperMutation(false); r != nil {
		t.Errorf("expected no block when not using scraper backend, got %+v", r)
	}
}
