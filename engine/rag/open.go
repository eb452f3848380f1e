package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/embed"
	"github.com/WessleyAI/docrag/engine/ingest"
	"github.com/WessleyAI/docrag/engine/llm"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/semantic"
	"github.com/WessleyAI/docrag/pkg/metrics"
	"github.com/WessleyAI/docrag/pkg/resilience"
)

// Open builds a Service from cfg: splitter and chunker, the configured
// embedding provider, vector store backend and generator (behind a circuit
// breaker). reg may be nil to disable metrics. The caller owns the returned
// service and must Close it.
func Open(ctx context.Context, cfg config.Config, reg *metrics.Registry, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m *Metrics
	if reg != nil {
		m = NewMetrics(reg)
	}

	split, err := ingest.NewSplitter(cfg.Chunker.Splitter)
	if err != nil {
		return nil, err
	}
	chunker, err := ingest.NewChunker(cfg.Chunker.WindowSize, cfg.Chunker.Overlap, split)
	if err != nil {
		return nil, fmt.Errorf("rag: chunker: %w", err)
	}

	embedder, err := embed.New(ctx, cfg.Embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("rag: embedder: %w", err)
	}
	embedder.OnBatch = m.ObserveEmbedBatch

	gen, err := llm.New(ctx, cfg.Generator)
	if err != nil {
		return nil, fmt.Errorf("rag: generator: %w", err)
	}

	store, err := semantic.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("rag: store: %w", err)
	}
	logger.Info("vector store opened", "backend", cfg.Store.Backend, "collection", cfg.Store.Collection)

	svc, err := New(ctx, Deps{
		Loader:    loader.New(logger),
		Chunker:   chunker,
		Embedder:  embedder,
		Store:     store,
		Generator: llm.WithBreaker(gen, resilience.DefaultBreakerOpts, logger),
		Metrics:   m,
		Logger:    logger,
		TopK:      cfg.Query.TopK,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return svc, nil
}
