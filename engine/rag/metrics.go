package rag

import (
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/metrics"
)

// Metrics records pipeline counters and latencies in a metrics.Registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *metrics.Registry

	documents  *metrics.Counter
	chunks     *metrics.Counter
	queries    *metrics.Counter
	contexts   *metrics.Histogram
	queryDur   *metrics.Histogram
	records    *metrics.Gauge
	state      *metrics.Gauge
	similarity *metrics.Gauge
}

// NewMetrics registers the docrag metrics in reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		reg:        reg,
		documents:  reg.Counter("docrag_documents_ingested_total", "Documents ingested successfully"),
		chunks:     reg.Counter("docrag_chunks_stored_total", "Chunks written to the vector store"),
		queries:    reg.Counter("docrag_queries_total", "Questions answered"),
		contexts:   reg.Histogram("docrag_query_contexts", "Contexts retrieved per question", []float64{0, 1, 2, 3, 5, 10, 20}),
		queryDur:   reg.Histogram("docrag_query_duration_seconds", "End-to-end question latency", nil),
		records:    reg.Gauge("docrag_store_records", "Records in the vector store at the last status check"),
		state:      reg.Gauge("docrag_state", "Service state (0 empty, 1 ingesting, 2 ready)"),
		similarity: reg.Gauge("docrag_top_similarity", "Similarity of the best context of the last question"),
	}
}

// ObserveStage records an ingestion stage duration and its failure, if any.
func (m *Metrics) ObserveStage(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.reg.Histogram(metrics.WithLabels("docrag_ingest_stage_duration_seconds", "stage", stage), "Per-stage ingestion duration", nil).ObserveDuration(took)
	if err != nil {
		m.errored(stage, err)
	}
}

// ObserveEmbedBatch records one embedding provider call.
func (m *Metrics) ObserveEmbedBatch(size int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.reg.Counter("docrag_embeddings_total", "Texts sent to the embedding provider").Add(int64(size))
	m.reg.Histogram("docrag_embed_batch_duration_seconds", "Embedding provider call latency", nil).ObserveDuration(took)
	if err != nil {
		m.errored("embed_batch", err)
	}
}

func (m *Metrics) ingested(chunks int) {
	if m == nil {
		return
	}
	m.documents.Inc()
	m.chunks.Add(int64(chunks))
}

func (m *Metrics) answered(took time.Duration, a *Answer) {
	if m == nil {
		return
	}
	m.queries.Inc()
	m.queryDur.ObserveDuration(took)
	m.contexts.Observe(float64(len(a.Contexts)))
	if len(a.Contexts) > 0 {
		m.similarity.Set(float64(a.Contexts[0].Similarity))
	}
}

func (m *Metrics) queryFailed(err error) {
	if m == nil {
		return
	}
	m.errored("query", err)
}

func (m *Metrics) setState(s State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) setRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

func (m *Metrics) errored(stage string, err error) {
	kind := "other"
	if k := domain.Kind(err); k != nil {
		kind = k.Error()
	}
	m.reg.Counter(metrics.WithLabels("docrag_errors_total", "stage", stage, "kind", kind), "Pipeline errors by stage and kind").Inc()
}
