//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"

	"github.com/WessleyAI/docrag/engine/domain"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testQdrant(t *testing.T, collection string) *Qdrant {
	t.Helper()
	q, err := NewQdrant(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		q.Reset(context.Background())
		q.Close()
	})
	return q
}

func TestQdrant_Live_EmptyThenSearch(t *testing.T) {
	q := testQdrant(t, "docrag_test_empty")
	ctx := context.Background()
	q.Reset(ctx)

	res, err := q.Search(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil || len(res) != 0 {
		t.Fatalf("empty search = %v, %v", res, err)
	}

	chunks := []domain.Chunk{chunk(0, "oil change"), chunk(1, "brake pads"), chunk(2, "oil filter")}
	vecs := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}, {0.9, 0.1, 0, 0}}
	if err := q.Add(ctx, chunks, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res, err = q.Search(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 3 || res[0].Text != "oil change" || res[0].Similarity < 0.999 {
		t.Fatalf("unexpected results %+v", res)
	}
	if n, err := q.Count(ctx); err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestQdrant_Live_Upsert(t *testing.T) {
	q := testQdrant(t, "docrag_test_upsert")
	ctx := context.Background()
	q.Reset(ctx)

	q.Add(ctx, []domain.Chunk{chunk(0, "old")}, [][]float32{{1, 0}})
	q.Add(ctx, []domain.Chunk{chunk(0, "new")}, [][]float32{{1, 0}})
	if n, _ := q.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	res, _ := q.Search(ctx, []float32{1, 0}, 1)
	if len(res) != 1 || res[0].Text != "new" {
		t.Fatalf("unexpected %+v", res)
	}
}
