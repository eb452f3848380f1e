// Package ingest turns a document on disk into stored chunk embeddings:
// Load -> Chunk -> Embed -> Store, composed from fn stages with logging and
// tracing around each one. It also carries the sentence-window chunker and a
// NATS consumer that runs ingestion jobs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/semantic"
	"github.com/WessleyAI/docrag/pkg/fn"
)

// DefaultStoreBatch is the number of records written per store call.
const DefaultStoreBatch = 64

// DocumentLoader reads a document by path.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (loader.Document, error)
}

// BatchEmbedder is the part of embed.Embedder the pipeline needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the collaborators of the ingestion pipeline.
type Deps struct {
	Loader     DocumentLoader
	Chunker    *Chunker
	Embedder   BatchEmbedder
	Store      semantic.Store
	Logger     *slog.Logger
	StoreBatch int
	// OnStage, if set, observes every stage duration.
	OnStage func(stage string, took time.Duration, err error)
}

// --- Pipeline Stages ---

// NewLoad creates the stage that reads the document text.
func NewLoad(l DocumentLoader) fn.Stage[string, loader.Document] {
	return fn.LiftStage(l.Load)
}

// NewChunk creates the stage that splits the text into sentence windows.
func NewChunk(c *Chunker) fn.Stage[loader.Document, ChunkedDoc] {
	return func(_ context.Context, doc loader.Document) fn.Result[ChunkedDoc] {
		sents := c.Sentences(doc.Text)
		return fn.Ok(ChunkedDoc{Doc: doc, Sentences: len(sents), Chunks: c.ChunkSentences(sents)})
	}
}

// NewEmbed creates the stage that embeds every chunk in order.
func NewEmbed(e BatchEmbedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		if len(doc.Chunks) == 0 {
			return fn.Ok(EmbeddedDoc{ChunkedDoc: doc})
		}
		texts := fn.Map(doc.Chunks, func(c domain.Chunk) string { return c.Text })
		vecs, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return fn.Err[EmbeddedDoc](domain.EmbeddingError("embed chunks", err))
		}
		if len(vecs) != len(texts) {
			return fn.Err[EmbeddedDoc](domain.EmbeddingError("embed chunks",
				fmt.Errorf("%w: %d chunks, %d embeddings", domain.ErrLengthMismatch, len(texts), len(vecs))))
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: vecs})
	}
}

// NewStore creates the stage that writes records in batches. Batches written
// before a failure stay in the store.
func NewStore(s semantic.Store, batch int, log *slog.Logger) fn.Stage[EmbeddedDoc, Report] {
	if batch <= 0 {
		batch = DefaultStoreBatch
	}
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Report] {
		chunkBatches := fn.Chunk(doc.Chunks, batch)
		vecBatches := fn.Chunk(doc.Embeddings, batch)
		for i := range chunkBatches {
			if err := s.Add(ctx, chunkBatches[i], vecBatches[i]); err != nil {
				return fn.Err[Report](domain.StoreError("store chunks", err))
			}
			log.Debug("stored batch", "batch", i+1, "total", len(chunkBatches))
		}
		return fn.Ok(reportFor(doc.ChunkedDoc))
	}
}

// observed wraps a stage with an entry/exit log, a span and the OnStage hook.
func observed[In, Out any](name string, deps Deps, log *slog.Logger, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	timed := func(ctx context.Context, in In) fn.Result[Out] {
		start := time.Now()
		r := stage(ctx, in)
		took := time.Since(start)
		_, err := r.Unwrap()
		if err != nil {
			log.Error("stage failed", "stage", name, "duration", took, "error", err)
		} else {
			log.Info("stage.exit", "stage", name, "duration", took)
		}
		if deps.OnStage != nil {
			deps.OnStage(name, took, err)
		}
		return r
	}
	return fn.Then(fn.TapStage(func(context.Context, In) {
		log.Info("stage.enter", "stage", name)
	}), fn.TracedStage("ingest."+name, timed))
}

// NewPipeline wires Load -> Chunk -> Embed -> Store.
func NewPipeline(deps Deps) fn.Stage[string, Report] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	loaded := observed("load", deps, log, NewLoad(deps.Loader))
	chunked := fn.Then(loaded, observed("chunk", deps, log, NewChunk(deps.Chunker)))
	embedded := fn.Then(chunked, observed("embed", deps, log, NewEmbed(deps.Embedder)))
	stored := fn.Then(embedded, observed("store", deps, log, NewStore(deps.Store, deps.StoreBatch, log)))

	return func(ctx context.Context, path string) fn.Result[Report] {
		start := time.Now()
		r := stored(ctx, path)
		return fn.MapResult(r, func(rep Report) Report {
			rep.Duration = time.Since(start)
			return rep
		})
	}
}
