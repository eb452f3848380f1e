//go:build integration

package ingest

import (
	"context"
	"os"
	"testing"

	"github.com/WessleyAI/docrag/engine/embed"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/semantic"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Requires a running Ollama with the embedding model pulled, and Qdrant.
func TestIngestPipeline_OllamaQdrant(t *testing.T) {
	ctx := context.Background()

	store, err := semantic.NewQdrant(envOr("QDRANT_URL", "localhost:6334"), "docrag_test_ingest")
	if err != nil {
		t.Fatalf("qdrant connect: %v", err)
	}
	defer func() {
		store.Reset(ctx)
		store.Close()
	}()
	store.Reset(ctx)

	c, err := NewChunker(DefaultWindowSize, DefaultOverlap, nil)
	if err != nil {
		t.Fatal(err)
	}
	emb := embed.NewBatched(embed.NewOllama(envOr("OLLAMA_URL", ""), envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"), 512), embed.DefaultOptions(), nil)

	pipeline := NewPipeline(Deps{
		Loader:   loader.New(nil),
		Chunker:  c,
		Embedder: emb,
		Store:    store,
	})

	path := writeDoc(t, "Step one: drain the old oil. Step two: replace the filter. Step three: add new oil. Make sure to use the correct weight.")
	rep, err := pipeline(ctx, path).Unwrap()
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if rep.Chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", rep.Chunks)
	}

	q, err := emb.Embed(ctx, "How do I replace the filter?")
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	hits, err := store.Search(ctx, q, 2)
	if err != nil || len(hits) != 2 {
		t.Fatalf("Search = %v, %v", hits, err)
	}
}
