package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/pipeline"
	"github.com/loopforge/tuitbot/internal/platform"
	"github.com/loopforge/tuitbot/internal/policy"
	"github.com/loopforge/tuitbot/internal/toolkit"
)

func indexUsersByID(users []platform.User) map[string]platform.User {
	m := make(map[string]platform.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return m
}

// higherNumericID returns whichever of a, b represents the larger id,
// treating both as numeric-id strings the same way storage's cursor
// comparison does: a longer digit string wins outright, equal-length
// strings fall back to lexicographic comparison. An empty argument loses
// to any non-empty one.
func higherNumericID(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if len(a) != len(b) {
		if len(a) > len(b) {
			return a
		}
		return b
	}
	if a > b {
		return a
	}
	return b
}

func truncateForLog(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// submitAndAwait submits action to the pipeline and blocks for its result,
// attaching a fresh buffered result channel so callers don't have to.
func submitAndAwait(ctx context.Context, pl *pipeline.Pipeline, action pipeline.PostAction) (pipeline.Result, error) {
	resultCh := make(chan pipeline.Result, 1)
	action.Result = resultCh

	if err := pl.Submit(ctx, action); err != nil {
		return pipeline.Result{}, err
	}

	select {
	case res := <-resultCh:
		return res, nil
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
}

// validateAction runs the tool-boundary input validation every mutation
// must pass before it is even offered to the policy gate: non-empty
// content, within the platform's character limit.
func validateAction(action pipeline.PostAction) (toolkit.ToolResponse, bool) {
	if resp, ok := toolkit.ValidateNonEmpty("content", action.Content); !ok {
		return resp, false
	}
	if resp, ok := toolkit.ValidateTweetLength(action.Content); !ok {
		return resp, false
	}
	return toolkit.ToolResponse{}, true
}

// rollbackHintFor returns the advisory rollback payload for a successfully
// posted action: every post this agent makes can be undone by deleting it.
func rollbackHintFor(postedTweetID string) json.RawMessage {
	encoded, err := json.Marshal(map[string]string{"delete_tweet": postedTweetID})
	if err != nil {
		return nil
	}
	return encoded
}

// submitThroughPolicy validates action's content, checks tool against the
// policy gate, and hands it to the pipeline: invalid content or a denied
// tool never reaches the pipeline, a dry-run tool short-circuits to a
// synthetic success, and an allowed or approval-routed tool is submitted
// normally (approval routing itself is the pipeline's job once approval
// mode is configured). Every outcome is logged through the tool response
// envelope, stamped with correlationID and, on a real post, a rollback
// hint sufficient to undo it.
func submitThroughPolicy(ctx context.Context, log *logrus.Entry, gate *policy.Gate, pl *pipeline.Pipeline, toolName, correlationID string, action pipeline.PostAction) (pipeline.Result, policy.Decision, error) {
	start := time.Now()

	if resp, ok := validateAction(action); !ok {
		resp = resp.WithMeta(toolkit.NewToolMeta(start).WithCorrelationID(correlationID))
		log.WithField("tool", toolName).Debug(resp.ToJSON())
		return pipeline.Result{}, policy.DecisionDenied, fmt.Errorf("%s: %s", toolName, resp.Error.Message)
	}

	decision, denial := gate.Check(toolName, correlationID)

	switch decision {
	case policy.DecisionDenied:
		resp := toolkit.PolicyDeniedBlocked(fmt.Sprintf("tool %q denied by policy gate", toolName))
		if denial != nil {
			resp = *denial
		}
		resp = resp.WithMeta(toolkit.NewToolMeta(start).WithCorrelationID(correlationID))
		log.WithField("tool", toolName).Debug(resp.ToJSON())
		return pipeline.Result{}, decision, nil
	case policy.DecisionDryRun:
		resp := toolkit.Success(map[string]string{"posted_tweet_id": "dry_run"}).
			WithMeta(toolkit.NewToolMeta(start).WithCorrelationID(correlationID))
		log.WithField("tool", toolName).Debug(resp.ToJSON())
		return pipeline.Result{PostedTweetID: "dry_run"}, decision, nil
	default:
		result, err := submitAndAwait(ctx, pl, action)
		if err != nil || result.Err != nil {
			return result, decision, err
		}
		resp := toolkit.Success(map[string]string{"posted_tweet_id": result.PostedTweetID}).
			WithMeta(toolkit.NewToolMeta(start).
				WithCorrelationID(correlationID).
				WithRollback(rollbackHintFor(result.PostedTweetID)))
		log.WithField("tool", toolName).Debug(resp.ToJSON())
		return result, decision, err
	}
}

// sleepOnLoopError records a loop iteration failure against tracker,
// pausing for the configured duration if the consecutive-failure
// threshold is reached, and reports whether the loop should continue
// (false means ctx was cancelled while sleeping).
func sleepOnLoopError(ctx context.Context, log *logrus.Entry, tracker *ConsecutiveErrorTracker, err error) bool {
	log.WithError(err).Warn("loop iteration failed")

	if !tracker.RecordError() {
		return sleepOrCancel(ctx, 5*time.Second)
	}

	log.WithField("consecutive_errors", tracker.Count()).Warn("pausing loop after consecutive failures")
	if !sleepOrCancel(ctx, tracker.PauseDuration()) {
		return false
	}
	tracker.Reset()
	return true
}
