// Package embed turns text into fixed-length vectors. Providers (Ollama,
// OpenAI, Gemini, and a local hashing encoder) sit behind the Embedder
// interface; Batched adds truncation, batching, bounded concurrency, rate
// limiting and progress logging on top of any of them.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/fn"
	"golang.org/x/time/rate"
)

// Embedder maps text to vectors. EmbedBatch returns exactly one vector per
// input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures Batched.
type Options struct {
	MaxTokens int        // inputs are cut to this many whitespace-delimited tokens
	BatchSize int        // texts per provider call
	Workers   int        // concurrent provider calls
	RateLimit rate.Limit // provider calls per second; 0 means unlimited
}

// DefaultOptions returns the default batching parameters.
func DefaultOptions() Options {
	return Options{MaxTokens: 512, BatchSize: 8, Workers: 1}
}

// Batched wraps a provider with truncation, batching and bounded parallelism.
type Batched struct {
	inner   Embedder
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	// OnBatch, if set, observes every provider call.
	OnBatch func(size int, took time.Duration, err error)
}

// NewBatched wraps inner. Zero option fields take DefaultOptions values.
func NewBatched(inner Embedder, opts Options, logger *slog.Logger) *Batched {
	def := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Batched{inner: inner, opts: opts, logger: logger}
	if opts.RateLimit > 0 {
		b.limiter = rate.NewLimiter(opts.RateLimit, opts.Workers)
	}
	return b
}

// Embed truncates and embeds a single text.
func (b *Batched) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := b.wait(ctx); err != nil {
		return nil, domain.EmbeddingError("embed", err)
	}
	start := time.Now()
	v, err := b.inner.Embed(ctx, Truncate(text, b.opts.MaxTokens))
	b.observe(1, start, err)
	if err != nil {
		return nil, domain.EmbeddingError("embed", err)
	}
	if len(v) == 0 {
		return nil, domain.EmbeddingError("embed", fmt.Errorf("provider returned an empty vector"))
	}
	return v, nil
}

// EmbedBatch embeds texts in batches of BatchSize, running up to Workers
// batches at once. The result is in input order regardless of completion order.
func (b *Batched) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	truncated := fn.Map(texts, func(s string) string { return Truncate(s, b.opts.MaxTokens) })

	type batch struct {
		n     int
		texts []string
	}
	groups := fn.Chunk(truncated, b.opts.BatchSize)
	batches := make([]batch, len(groups))
	for i, g := range groups {
		batches[i] = batch{n: i + 1, texts: g}
	}

	results := fn.ParMapResult(ctx, batches, b.opts.Workers, func(ctx context.Context, bt batch) fn.Result[[][]float32] {
		b.logger.Info("embedding batch", "batch", bt.n, "total", len(batches), "size", len(bt.texts))
		if err := b.wait(ctx); err != nil {
			return fn.Err[[][]float32](err)
		}
		start := time.Now()
		vecs, err := b.inner.EmbedBatch(ctx, bt.texts)
		b.observe(len(bt.texts), start, err)
		if err != nil {
			return fn.Errf[[][]float32]("batch %d/%d: %w", bt.n, len(batches), err)
		}
		if len(vecs) != len(bt.texts) {
			return fn.Errf[[][]float32]("batch %d/%d: got %d vectors for %d texts", bt.n, len(batches), len(vecs), len(bt.texts))
		}
		return fn.Ok(vecs)
	})

	out := make([][]float32, 0, len(texts))
	for _, r := range results {
		vecs, err := r.Unwrap()
		if err != nil {
			return nil, domain.EmbeddingError("embed batch", err)
		}
		out = append(out, vecs...)
	}
	if err := checkDims(out); err != nil {
		return nil, domain.EmbeddingError("embed batch", err)
	}
	return out, nil
}

func (b *Batched) wait(ctx context.Context) error {
	if b.limiter == nil {
		return ctx.Err()
	}
	return b.limiter.Wait(ctx)
}

func (b *Batched) observe(n int, start time.Time, err error) {
	if b.OnBatch != nil {
		b.OnBatch(n, time.Since(start), err)
	}
}

func checkDims(vecs [][]float32) error {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0])
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("vector %d is empty", i)
		}
		if len(v) != dim {
			return fmt.Errorf("vector %d: %w: %d != %d", i, domain.ErrDimensionMismatch, len(v), dim)
		}
	}
	return nil
}

// Truncate keeps the first maxTokens whitespace-delimited tokens of text,
// preserving the spacing between them. Whitespace after the last kept token
// is dropped.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	tokens := 0
	inToken := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inToken = false
			continue
		}
		if !inToken {
			if tokens == maxTokens {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace)
			}
			tokens++
			inToken = true
		}
	}
	return text
}

// New builds the provider named in cfg and wraps it in Batched.
func New(ctx context.Context, cfg config.EmbedderConfig, logger *slog.Logger) (*Batched, error) {
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		inner = NewOllama(cfg.BaseURL, cfg.Model, cfg.MaxTokens)
	case "openai":
		inner, err = NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimension)
	case "gemini":
		inner, err = NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
	case "hash":
		inner = NewHash(cfg.Dimension)
	default:
		err = fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewBatched(inner, Options{
		MaxTokens: cfg.MaxTokens,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		RateLimit: rate.Limit(cfg.RateLimit),
	}, logger), nil
}
