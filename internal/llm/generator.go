// Package llm adapts a langchaingo chat model to the narrow TextGenerator
// contract the content package needs: complete a system/user prompt pair
// and report usage, with failures classified into a small closed set the
// caller can act on (configuration, transient network, or rate limit).
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// FailureKind classifies why a completion attempt failed.
type FailureKind string

const (
	FailureNotConfigured    FailureKind = "not_configured"
	FailureGenerationFailed FailureKind = "generation_failed"
	FailureNetwork          FailureKind = "network"
	FailureRateLimited      FailureKind = "rate_limited"
)

// GenerationError wraps an underlying error with its classified kind.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Params controls a single completion request.
type Params struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// Usage reports token accounting for a completion, when the backend
// supplies it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the result of a successful TextGenerator.Complete call.
type Completion struct {
	Text  string
	Usage Usage
	Model string
}

// TextGenerator is the narrow surface the content package depends on.
type TextGenerator interface {
	Complete(ctx context.Context, system, userMessage string, params Params) (Completion, error)
	HealthCheck(ctx context.Context) error
}

// Generator adapts a langchaingo llms.Model (OpenAI-compatible by default)
// to TextGenerator.
type Generator struct {
	logger *logrus.Logger
	model  llms.Model
	apiKey string
}

// New builds a Generator. An empty apiKey means the LLM is not
// configured — Complete and HealthCheck both report FailureNotConfigured
// immediately rather than attempting a call that will fail at the
// transport layer.
func New(logger *logrus.Logger, apiKey string) (*Generator, error) {
	if apiKey == "" {
		return &Generator{logger: logger}, nil
	}

	model, err := openai.New(openai.WithToken(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize language model client: %w", err)
	}

	return &Generator{logger: logger, model: model, apiKey: apiKey}, nil
}

// Complete generates a single completion from a system instruction and a
// user message.
func (g *Generator) Complete(ctx context.Context, system, userMessage string, params Params) (Completion, error) {
	if g.model == nil {
		return Completion{}, &GenerationError{Kind: FailureNotConfigured, Err: errors.New("llm is not configured")}
	}

	if params.Temperature == 0 {
		params.Temperature = 0.7
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1000
	}

	g.logger.WithFields(logrus.Fields{
		"temperature": params.Temperature,
		"max_tokens":  params.MaxTokens,
		"model":       params.Model,
	}).Debug("generating completion")

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, userMessage),
	}

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(params.Temperature),
		llms.WithMaxTokens(params.MaxTokens),
	)
	if err != nil {
		return Completion{}, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, &GenerationError{Kind: FailureGenerationFailed, Err: errors.New("no completion choices returned")}
	}

	choice := resp.Choices[0]
	return Completion{
		Text:  choice.Content,
		Model: params.Model,
		Usage: usageFrom(choice.GenerationInfo),
	}, nil
}

// HealthCheck reports whether the configured backend is reachable.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if g.model == nil {
		return &GenerationError{Kind: FailureNotConfigured, Err: errors.New("llm is not configured")}
	}
	_, err := g.Complete(ctx, "respond with ok", "ping", Params{MaxTokens: 5})
	return err
}

func usageFrom(info map[string]any) Usage {
	var u Usage
	if v, ok := info["PromptTokens"].(int); ok {
		u.PromptTokens = v
	}
	if v, ok := info["CompletionTokens"].(int); ok {
		u.CompletionTokens = v
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func classifyError(err error) *GenerationError {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return &GenerationError{Kind: FailureRateLimited, Err: err}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") || strings.Contains(msg, "dial"):
		return &GenerationError{Kind: FailureNetwork, Err: err}
	default:
		return &GenerationError{Kind: FailureGenerationFailed, Err: err}
	}
}
