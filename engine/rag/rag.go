// Package rag orchestrates retrieval-augmented generation over ingested
// documents. Ingest runs load -> chunk -> embed -> store; Query embeds the
// question, retrieves the nearest chunks, builds a grounded prompt and asks
// the generator for an answer. A Service allows one ingestion at a time and
// rejects work that would race it with domain.ErrBusy.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/engine/ingest"
	"github.com/WessleyAI/docrag/engine/llm"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/semantic"
	"github.com/WessleyAI/docrag/pkg/fn"
)

// DefaultTopK is the number of contexts retrieved per question.
const DefaultTopK = 3

// State is the lifecycle of a Service.
type State int

const (
	StateEmpty State = iota
	StateIngesting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateIngesting:
		return "ingesting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Embedder is the embedding interface the service needs: single texts for
// questions, batches for chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the collaborators of a Service. Loader and Chunker default to
// loader.New and a rule-based chunker with the default window.
type Deps struct {
	Loader     ingest.DocumentLoader
	Chunker    *ingest.Chunker
	Embedder   Embedder
	Store      semantic.Store
	Generator  llm.Generator
	Metrics    *Metrics
	Logger     *slog.Logger
	TopK       int
	StoreBatch int
}

// Service is the RAG orchestrator.
type Service struct {
	embedder  Embedder
	store     semantic.Store
	generator llm.Generator
	metrics   *Metrics
	logger    *slog.Logger
	topK      int
	pipeline  fn.Stage[string, ingest.Report]

	mu      sync.Mutex
	state   State
	queries int
}

// Context is a retrieved chunk as returned to callers.
type Context struct {
	Text          string  `json:"text"`
	ChunkID       int     `json:"chunk_id"`
	StartSentence int     `json:"start_sentence"`
	EndSentence   int     `json:"end_sentence"`
	NumSentences  int     `json:"num_sentences"`
	Similarity    float32 `json:"similarity"`
}

// Answer is the generator's reply and the contexts it was given, most
// similar first.
type Answer struct {
	Question string    `json:"question"`
	Text     string    `json:"answer"`
	Contexts []Context `json:"contexts"`
	Model    string    `json:"model,omitempty"`
}

// Status reports the service state and the number of stored records.
type Status struct {
	State   string `json:"state"`
	Records int    `json:"records"`
}

// New builds a Service. The initial state is Ready when the store already
// holds records and Empty otherwise.
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Embedder == nil || deps.Store == nil || deps.Generator == nil {
		return nil, fmt.Errorf("rag: embedder, store and generator are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Loader == nil {
		deps.Loader = loader.New(logger)
	}
	if deps.Chunker == nil {
		c, err := ingest.NewChunker(ingest.DefaultWindowSize, ingest.DefaultOverlap, nil)
		if err != nil {
			return nil, err
		}
		deps.Chunker = c
	}
	topK := deps.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	s := &Service{
		embedder:  deps.Embedder,
		store:     deps.Store,
		generator: deps.Generator,
		metrics:   deps.Metrics,
		logger:    logger,
		topK:      topK,
	}
	s.pipeline = ingest.NewPipeline(ingest.Deps{
		Loader:     deps.Loader,
		Chunker:    deps.Chunker,
		Embedder:   deps.Embedder,
		Store:      deps.Store,
		Logger:     logger,
		StoreBatch: deps.StoreBatch,
		OnStage:    deps.Metrics.ObserveStage,
	})

	n, err := deps.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: count records: %w", domain.StoreError("count", err))
	}
	if n > 0 {
		s.state = StateReady
	}
	s.metrics.setState(s.state)
	s.metrics.setRecords(n)
	logger.Info("rag service ready", "state", s.state, "records", n, "generator", llm.NameOf(deps.Generator))
	return s, nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(st State) {
	s.state = st
	s.metrics.setState(st)
}

// Ingest loads, chunks, embeds and stores the document at path. It fails
// with domain.ErrBusy while another ingestion or any question is running.
// Records written before a failure are kept and the previous state is
// restored.
func (s *Service) Ingest(ctx context.Context, path string) (*ingest.Report, error) {
	s.mu.Lock()
	if s.state == StateIngesting || s.queries > 0 {
		s.mu.Unlock()
		return nil, domain.ErrBusy
	}
	prev := s.state
	s.setState(StateIngesting)
	s.mu.Unlock()

	s.logger.Info("ingest start", "path", path)
	rep, err := s.pipeline(ctx, path).Unwrap()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setState(prev)
		s.logger.Error("ingest failed", "path", path, "err", err)
		return nil, fmt.Errorf("rag: ingest %s: %w", path, err)
	}
	s.setState(StateReady)
	s.metrics.ingested(rep.Chunks)
	s.logger.Info("ingest done", "path", path, "pages", rep.Pages, "sentences", rep.Sentences,
		"chunks", rep.Chunks, "duration", rep.Duration)
	return &rep, nil
}

// Query answers question from the n most similar chunks; n <= 0 uses the
// configured top-k. An empty store still produces a prompt, with an empty
// context section.
func (s *Service) Query(ctx context.Context, question string, n int) (*Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = s.topK
	}

	s.mu.Lock()
	if s.state == StateIngesting {
		s.mu.Unlock()
		return nil, domain.ErrBusy
	}
	s.queries++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.queries--
		s.mu.Unlock()
	}()

	start := time.Now()
	q := strings.TrimSpace(question)
	s.logger.Info("rag query start", "question_len", len(q), "n_results", n)

	ans, err := s.answer(n)(ctx, q).Unwrap()
	if err != nil {
		s.metrics.queryFailed(err)
		s.logger.Error("rag query failed", "err", err)
		return nil, err
	}
	s.metrics.answered(time.Since(start), &ans)
	s.logger.Info("rag query done", "contexts", len(ans.Contexts), "duration", time.Since(start))
	return &ans, nil
}

type retrieval struct {
	question string
	vector   []float32
	hits     domain.RetrievalResult
}

// answer composes embed -> search -> generate for one question.
func (s *Service) answer(n int) fn.Stage[string, Answer] {
	embedQ := fn.TracedStage("rag.embed", func(ctx context.Context, q string) fn.Result[retrieval] {
		v, err := s.embedder.Embed(ctx, q)
		if err != nil {
			return fn.Errf[retrieval]("rag: embed query: %w", domain.EmbeddingError("embed query", err))
		}
		return fn.Ok(retrieval{question: q, vector: v})
	})
	search := fn.TracedStage("rag.search", func(ctx context.Context, r retrieval) fn.Result[retrieval] {
		hits, err := s.store.Search(ctx, r.vector, n)
		if err != nil {
			return fn.Errf[retrieval]("rag: search: %w", domain.StoreError("search", err))
		}
		s.logger.Info("rag semantic search done", "results", len(hits))
		r.hits = hits
		return fn.Ok(r)
	})
	generate := fn.TracedStage("rag.generate", func(ctx context.Context, r retrieval) fn.Result[Answer] {
		texts := fn.Map(r.hits, func(h domain.Hit) string { return h.Text })
		text, err := s.generator.Generate(ctx, BuildPrompt(r.question, texts))
		if err != nil {
			return fn.Errf[Answer]("rag: generate: %w", domain.GenerationError("generate", err))
		}
		return fn.Ok(Answer{
			Question: r.question,
			Text:     strings.TrimSpace(text),
			Contexts: contextsOf(r.hits),
			Model:    llm.NameOf(s.generator),
		})
	})
	return fn.Then(fn.Then(embedQ, search), generate)
}

func contextsOf(hits domain.RetrievalResult) []Context {
	out := make([]Context, len(hits))
	for i, h := range hits {
		out[i] = Context{
			Text:          h.Text,
			ChunkID:       h.ChunkID,
			StartSentence: h.StartSentence,
			EndSentence:   h.EndSentence,
			NumSentences:  h.NumSentences,
			Similarity:    h.Similarity,
		}
	}
	return out
}

// Status returns the state and the current record count.
func (s *Service) Status(ctx context.Context) (Status, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("rag: status: %w", domain.StoreError("count", err))
	}
	s.metrics.setRecords(n)
	return Status{State: s.State().String(), Records: n}, nil
}

// Reset deletes every record and returns the service to Empty.
func (s *Service) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIngesting || s.queries > 0 {
		return domain.ErrBusy
	}
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("rag: reset: %w", domain.StoreError("reset", err))
	}
	s.setState(StateEmpty)
	s.metrics.setRecords(0)
	s.logger.Info("store reset")
	return nil
}

// Close releases the vector store.
func (s *Service) Close() error {
	return s.store.Close()
}
