// Package semantic stores chunk embeddings and answers nearest-neighbour
// queries by cosine similarity. Three backends share one contract: an
// in-memory map, an embedded badgerhold database persisted on disk, and a
// remote Qdrant collection.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/fn"
)

// Store persists chunk records and retrieves the nearest ones.
//
// Add writes nothing when the call is invalid (length mismatch, duplicate ids
// within the call, inconsistent dimensions). Across calls an existing id is
// overwritten: last write wins.
//
// Search returns at most k hits ordered by descending similarity, where
// similarity is 1 - cosine distance. An empty store yields an empty result
// and no error.
type Store interface {
	Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error
	Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

// New opens the backend named in cfg.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "badger":
		return OpenBadger(cfg.PersistDir, cfg.Collection)
	case "qdrant":
		return NewQdrant(cfg.QdrantAddr, cfg.Collection)
	default:
		return nil, fmt.Errorf("semantic: unknown backend %q", cfg.Backend)
	}
}

// prepare validates an Add call and pairs chunks with their vectors.
// It returns the common vector dimension.
func prepare(chunks []domain.Chunk, embeddings [][]float32) ([]domain.Record, int, error) {
	if len(chunks) != len(embeddings) {
		return nil, 0, domain.StoreError("add", fmt.Errorf("%w: %d chunks, %d embeddings", domain.ErrLengthMismatch, len(chunks), len(embeddings)))
	}
	if dups := fn.Duplicates(chunks, domain.Chunk.ID); len(dups) > 0 {
		return nil, 0, domain.StoreError("add", fmt.Errorf("%w: %v", domain.ErrDuplicateID, dups))
	}
	records := make([]domain.Record, len(chunks))
	dim := 0
	for i, c := range chunks {
		v := embeddings[i]
		if len(v) == 0 {
			return nil, 0, domain.StoreError("add", fmt.Errorf("record %s has an empty embedding", c.ID()))
		}
		if i == 0 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, 0, domain.StoreError("add", mismatch(dim, len(v)))
		}
		records[i] = domain.NewRecord(c, v)
	}
	return records, dim, nil
}

func mismatch(want, got int) error {
	return fmt.Errorf("%w: store has %d dimensions, got %d", domain.ErrDimensionMismatch, want, got)
}

// cosine returns the cosine similarity of a and b, 0 when either is a zero vector.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// rank scores records against query and keeps the k best. Ties keep chunk order.
func rank(records []domain.Record, query []float32, k int) domain.RetrievalResult {
	hits := make(domain.RetrievalResult, len(records))
	for i, r := range records {
		hits[i] = domain.Hit{Record: r, Similarity: cosine(query, r.Embedding)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
