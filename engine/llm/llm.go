// Package llm generates answers from a single prompt string. Each provider
// (Ollama, OpenAI-compatible endpoints, Anthropic, Gemini) is exposed through
// the Generator interface; failures and empty completions are reported as
// generation errors.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/resilience"
)

// Generator produces a completion for prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options are the sampling parameters shared by all providers.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// DefaultOptions returns the default sampling parameters.
func DefaultOptions() Options {
	return Options{MaxTokens: 200, Temperature: 0.7}
}

// Named is implemented by generators that can report which model they call.
type Named interface {
	Name() string
}

// NameOf returns g's model name, or "unknown".
func NameOf(g Generator) string {
	if n, ok := g.(Named); ok {
		return n.Name()
	}
	return "unknown"
}

// finish trims the completion and converts failures into generation errors.
func finish(op, text string, err error) (string, error) {
	if err != nil {
		return "", domain.GenerationError(op, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.GenerationError(op, domain.ErrEmptyOutput)
	}
	return text, nil
}

// Guarded wraps a generator with a circuit breaker so a dead provider fails
// fast instead of timing out on every question.
type Guarded struct {
	inner   Generator
	breaker *resilience.Breaker
}

// WithBreaker wraps g. State changes are logged through logger.
func WithBreaker(g Generator, opts resilience.BreakerOpts, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	name := NameOf(g)
	opts.OnStateChange = func(from, to resilience.State) {
		logger.Warn("generator breaker", "model", name, "from", from.String(), "to", to.String())
	}
	return &Guarded{inner: g, breaker: resilience.NewBreaker(opts)}
}

func (g *Guarded) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := resilience.Execute(g.breaker, ctx, func(ctx context.Context) (string, error) {
		return g.inner.Generate(ctx, prompt)
	})
	if err != nil {
		return "", domain.GenerationError("generate", err)
	}
	return out, nil
}

func (g *Guarded) Name() string { return NameOf(g.inner) }

// New builds the generator named in cfg.
func New(ctx context.Context, cfg config.GeneratorConfig) (Generator, error) {
	opts := Options{MaxTokens: cfg.MaxTokens, Temperature: cfg.Temperature}
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.Model, opts), nil
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, opts)
	case "deepseek":
		return NewDeepSeek(cfg.APIKey, cfg.Model, opts)
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.BaseURL, cfg.Model, opts)
	case "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, opts)
	case "echo":
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
