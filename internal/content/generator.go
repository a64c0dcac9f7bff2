// Package content assembles prompts for reply, tweet and thread generation
// and remediates whatever the language model hands back so it always fits
// the platform's character limit before it reaches the safety guard.
package content

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/loopforge/tuitbot/internal/llm"
)

// MaxTweetLength mirrors toolkit.MaxTweetLength; content declares its own
// untyped copy rather than importing toolkit.
const MaxTweetLength = 280

// Persona carries the business/brand context every prompt is assembled
// with.
type Persona struct {
	ProductName        string
	ProductKeywords    []string
	TargetAudience     string
	BrandVoice         string
	PersonaOpinions    []string
	PersonaExperiences []string
	ContentPillars     []string
}

// Generator produces reply, tweet and thread content from a persona and a
// topic or source tweet, retrying once with a stricter prompt and falling
// back to truncation if the model still overshoots the length limit.
type Generator struct {
	logger    *logrus.Logger
	generator llm.TextGenerator
	persona   Persona
}

// New builds a Generator over a TextGenerator and fixed persona.
func New(logger *logrus.Logger, generator llm.TextGenerator, persona Persona) *Generator {
	return &Generator{logger: logger, generator: generator, persona: persona}
}

func (g *Generator) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the social voice for %s, speaking to %s.\n", g.persona.ProductName, g.persona.TargetAudience)
	if g.persona.BrandVoice != "" {
		fmt.Fprintf(&b, "Brand voice: %s\n", g.persona.BrandVoice)
	}
	if len(g.persona.PersonaOpinions) > 0 {
		fmt.Fprintf(&b, "Opinions you hold: %s\n", strings.Join(g.persona.PersonaOpinions, "; "))
	}
	if len(g.persona.PersonaExperiences) > 0 {
		fmt.Fprintf(&b, "Experiences you draw on: %s\n", strings.Join(g.persona.PersonaExperiences, "; "))
	}
	b.WriteString("Reply in plain text only, no hashtags, no markdown, under 280 characters.")
	return b.String()
}

// GenerateReply produces a reply to sourceText, authored by authorHandle,
// grounded in the given topic.
func (g *Generator) GenerateReply(ctx context.Context, sourceText, authorHandle, topic string) (string, error) {
	user := fmt.Sprintf("Write a reply to @%s's post: %q\nTopic focus: %s", authorHandle, sourceText, topic)
	return g.generateWithRemediation(ctx, user)
}

// GenerateTweet produces an original tweet about topic.
func (g *Generator) GenerateTweet(ctx context.Context, topic, archetype string) (string, error) {
	user := fmt.Sprintf("Write an original post about: %s\nStyle archetype: %s", topic, archetype)
	return g.generateWithRemediation(ctx, user)
}

// GenerateThread produces count tweets continuing a single narrative about
// topic, retrying up to twice if the model returns the wrong number of
// tweets or any tweet overshoots the length limit.
func (g *Generator) GenerateThread(ctx context.Context, topic string, count int) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		user := fmt.Sprintf(
			"Write a %d-post thread about: %s\nSeparate each post with a line containing only \"---\". Do not number the posts.",
			count, topic,
		)
		if attempt > 0 {
			user += "\nYour previous attempt did not match the required post count or length; follow the format exactly."
		}

		completion, err := g.generator.Complete(ctx, g.systemPrompt(), user, llm.Params{MaxTokens: 280 * count})
		if err != nil {
			lastErr = err
			continue
		}

		posts := splitThread(completion.Text)
		if len(posts) != count {
			lastErr = fmt.Errorf("expected %d thread posts, got %d", count, len(posts))
			continue
		}

		overlong := false
		for _, p := range posts {
			if utf8.RuneCountInString(p) > MaxTweetLength {
				overlong = true
				break
			}
		}
		if overlong {
			lastErr = fmt.Errorf("one or more thread posts exceeded %d characters", MaxTweetLength)
			continue
		}

		return posts, nil
	}
	return nil, fmt.Errorf("failed to generate thread after retries: %w", lastErr)
}

func splitThread(text string) []string {
	parts := strings.Split(text, "---")
	var posts []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			posts = append(posts, p)
		}
	}
	return posts
}

// generateWithRemediation requests a completion, and if it overshoots the
// length limit, retries once with a stricter prompt before falling back to
// boundary truncation.
func (g *Generator) generateWithRemediation(ctx context.Context, user string) (string, error) {
	completion, err := g.generator.Complete(ctx, g.systemPrompt(), user, llm.Params{MaxTokens: 120})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(completion.Text)
	if utf8.RuneCountInString(text) <= MaxTweetLength {
		return text, nil
	}

	g.logger.WithField("length", utf8.RuneCountInString(text)).Debug("generated content exceeded length limit, retrying with stricter prompt")

	stricter := user + fmt.Sprintf("\nYour previous response was too long. Respond in under %d characters.", MaxTweetLength)
	completion, err = g.generator.Complete(ctx, g.systemPrompt(), stricter, llm.Params{MaxTokens: 100})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(completion.Text)
	if utf8.RuneCountInString(text) <= MaxTweetLength {
		return text, nil
	}

	g.logger.Debug("generated content still too long after retry, truncating at boundary")
	return truncateAtBoundary(text, MaxTweetLength), nil
}

// truncateAtBoundary cuts text to at most max runes, preferring to break at
// the last sentence-ending punctuation within the limit; failing that, at
// a word boundary with a trailing ellipsis.
func truncateAtBoundary(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	window := string(runes[:max])

	if idx := lastIndexAny(window, ".!?"); idx > 0 {
		return strings.TrimSpace(window[:idx+1])
	}

	wordWindow := string(runes[:max-3])
	if idx := strings.LastIndex(wordWindow, " "); idx > 0 {
		return strings.TrimSpace(wordWindow[:idx]) + "..."
	}

	return strings.TrimSpace(wordWindow) + "..."
}

func lastIndexAny(s, chars string) int {
	idx := -1
	for _, c := range chars {
		if i := strings.LastIndexByte(s, byte(c)); i > idx {
			idx = i
		}
	}
	return idx
}
