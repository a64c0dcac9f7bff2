package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func TestNewWithoutAPIKeyIsNotConfigured(t *testing.T) {
	g, err := New(testLogger(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = g.Complete(context.Background(), "sys", "hi", Params{})
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != FailureNotConfigured {
		t.Fatalf("expected FailureNotConfigured, got %v", err)
	}
}

func TestHealthCheckWithoutAPIKeyIsNotConfigured(t *testing.T) {
	g, err := New(testLogger(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = g.HealthCheck(context.Background())
	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != FailureNotConfigured {
		t.Fatalf("expected FailureNotConfigured, got %v", err)
	}
}

func TestClassifyErrorKinds(t *testing.T) {
	cases := []struct {
		msg  string
		kind FailureKind
	}{
		{"received 429 too many requests", FailureRateLimited},
		{"rate limit exceeded", FailureRateLimited},
		{"dial tcp: connection refused", FailureNetwork},
		{"context deadline exceeded: timeout", FailureNetwork},
		{"invalid request: malformed payload", FailureGenerationFailed},
	}

	for _, c := range cases {
		got := classifyError(errors.New(c.msg))
		if got.Kind != c.kind {
			t.Errorf("message %q: expected kind %s, got %s", c.msg, c.kind, got.Kind)
		}
	}
}
