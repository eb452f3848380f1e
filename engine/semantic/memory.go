package semantic

import (
	"context"
	"sync"

	"github.com/WessleyAI/docrag/engine/domain"
)

// Memory is a process-local Store. Search is an exhaustive scan.
type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	dim     int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Record)}
}

func (m *Memory) Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("add", err)
	}
	records, dim, err := prepare(chunks, embeddings)
	if err != nil || len(records) == 0 {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) > 0 && m.dim != dim {
		return domain.StoreError("add", mismatch(m.dim, dim))
	}
	m.dim = dim
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("search", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 || k <= 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(query) != m.dim {
		return nil, domain.StoreError("search", mismatch(m.dim, len(query)))
	}
	all := make([]domain.Record, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, r)
	}
	return rank(all, query, k), nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]domain.Record)
	m.dim = 0
	return nil
}

func (m *Memory) Close() error { return nil }
