package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockEmbedder encodes the text length and first byte so order can be checked.
type mockEmbedder struct {
	mu       sync.Mutex
	batches  [][]string
	inflight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	failOn   string
	short    bool
}

func vecFor(s string) []float32 {
	first := float32(0)
	if s != "" {
		first = float32(s[0])
	}
	return []float32{float32(len(s)), first}
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == m.failOn {
		return nil, errors.New("provider down")
	}
	return vecFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	n := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(m.delay)

	m.mu.Lock()
	m.batches = append(m.batches, texts)
	m.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if t == m.failOn {
			return nil, errors.New("provider down")
		}
		out = append(out, vecFor(t))
	}
	if m.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1)
	}
	return out
}

func TestEmbedBatch_OrderMatchesSingleEmbed(t *testing.T) {
	m := &mockEmbedder{delay: time.Millisecond}
	b := NewBatched(m, Options{BatchSize: 3, Workers: 4}, quiet)
	in := texts(20)

	got, err := b.EmbedBatch(context.Background(), in)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d vectors, want %d", len(got), len(in))
	}
	for i, s := range in {
		single, err := b.Embed(context.Background(), s)
		if err != nil {
			t.Fatalf("Embed: %v", err)
		}
		if got[i][0] != single[0] || got[i][1] != single[1] {
			t.Fatalf("vector %d = %v, single embed = %v", i, got[i], single)
		}
	}
}

func TestEmbedBatch_BatchSizes(t *testing.T) {
	m := &mockEmbedder{}
	b := NewBatched(m, Options{BatchSize: 8}, quiet)
	if _, err := b.EmbedBatch(context.Background(), texts(19)); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(m.batches) != 3 {
		t.Fatalf("expected 3 provider calls, got %d", len(m.batches))
	}
	sizes := map[int]int{}
	for _, bt := range m.batches {
		sizes[len(bt)]++
	}
	if sizes[8] != 2 || sizes[3] != 1 {
		t.Fatalf("unexpected batch sizes %v", sizes)
	}
}

func TestEmbedBatch_WorkersBound(t *testing.T) {
	m := &mockEmbedder{delay: 5 * time.Millisecond}
	b := NewBatched(m, Options{BatchSize: 1, Workers: 2}, quiet)
	if _, err := b.EmbedBatch(context.Background(), texts(10)); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if p := m.peak.Load(); p > 2 {
		t.Fatalf("peak concurrency %d exceeds 2 workers", p)
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	b := NewBatched(&mockEmbedder{}, Options{}, quiet)
	got, err := b.EmbedBatch(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestEmbedBatch_ProviderErrorIsEmbeddingError(t *testing.T) {
	in := texts(5)
	m := &mockEmbedder{failOn: in[3]}
	b := NewBatched(m, Options{BatchSize: 2}, quiet)
	_, err := b.EmbedBatch(context.Background(), in)
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	b := NewBatched(&mockEmbedder{short: true}, Options{}, quiet)
	_, err := b.EmbedBatch(context.Background(), texts(4))
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
}

func TestEmbed_ErrorKind(t *testing.T) {
	b := NewBatched(&mockEmbedder{failOn: "boom"}, Options{}, quiet)
	if _, err := b.Embed(context.Background(), "boom"); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected embedding error, got %v", err)
	}
}

func TestEmbed_Truncates(t *testing.T) {
	m := &mockEmbedder{}
	b := NewBatched(m, Options{MaxTokens: 2}, quiet)
	v, err := b.Embed(context.Background(), "one two three four")
	if err != nil {
		t.Fatal(err)
	}
	if v[0] != float32(len("one two")) {
		t.Fatalf("input was not truncated: %v", v)
	}
}

func TestEmbed_RateLimitedCancel(t *testing.T) {
	b := NewBatched(&mockEmbedder{}, Options{RateLimit: 0.001, Workers: 1}, quiet)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := b.Embed(ctx, "first"); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}
	cancel()
	if _, err := b.Embed(ctx, "second"); err == nil {
		t.Fatal("expected error on cancelled wait")
	}
}

func TestOnBatch(t *testing.T) {
	var calls atomic.Int32
	b := NewBatched(&mockEmbedder{}, Options{BatchSize: 2}, quiet)
	b.OnBatch = func(size int, _ time.Duration, err error) {
		if err != nil {
			t.Errorf("unexpected err %v", err)
		}
		calls.Add(1)
	}
	b.EmbedBatch(context.Background(), texts(5))
	if calls.Load() != 3 {
		t.Fatalf("OnBatch called %d times, want 3", calls.Load())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"a b c", 2, "a b"},
		{"a  b\n\tc", 2, "a  b"},
		{"a b c", 3, "a b c"},
		{"a b c", 0, "a b c"},
		{"  lead  space", 1, "  lead"},
		{"", 5, ""},
		{"één twee drie", 2, "één twee"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHash(t *testing.T) {
	h := NewHash(0)
	if h.Dim() != DefaultHashDim {
		t.Fatalf("dim = %d", h.Dim())
	}
	ctx := context.Background()
	a, _ := h.Embed(ctx, "PostgreSQL uses multiversion concurrency control")
	b, _ := h.Embed(ctx, "postgresql uses multiversion concurrency control.")
	c, _ := h.Embed(ctx, "The weather in Lisbon is sunny")
	if dot(a, b) < 0.99 {
		t.Fatalf("case and punctuation should not matter: %f", dot(a, b))
	}
	if dot(a, c) > dot(a, b) {
		t.Fatal("unrelated text scored higher than related text")
	}
	if n := dot(a, a); n < 0.999 || n > 1.001 {
		t.Fatalf("vector not unit length: %f", n)
	}
	batch, err := h.EmbedBatch(ctx, []string{"x", "y"})
	if err != nil || len(batch) != 2 || len(batch[0]) != DefaultHashDim {
		t.Fatalf("EmbedBatch: %v %v", batch, err)
	}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestOpenAI_PlacesVectorsByIndex(t *testing.T) {
	var gotDims int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Input      []string `json:"input"`
			Dimensions int      `json:"dimensions"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotDims = req.Dimensions
		// reply in reverse order
		var data []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d]}`, i, len(req.Input[i])))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"m","data":[%s]}`, strings.Join(data, ","))
	}))
	defer srv.Close()

	o, err := NewOpenAI("sk-test", srv.URL+"/v1", "", 64)
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := o.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Fatalf("vector %d = %v", i, v)
		}
	}
	if gotDims != 64 {
		t.Fatalf("dimensions = %d", gotDims)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI("", "", "", 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		out := map[string][][]float32{}
		for _, s := range req.Input {
			out["embeddings"] = append(out["embeddings"], vecFor(s))
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "", 512)
	v, err := o.Embed(context.Background(), "abc")
	if err != nil || v[0] != 3 {
		t.Fatalf("Embed = %v, %v", v, err)
	}
	vs, err := o.EmbedBatch(context.Background(), []string{"a", "bb"})
	if err != nil || len(vs) != 2 || vs[1][0] != 2 {
		t.Fatalf("EmbedBatch = %v, %v", vs, err)
	}
}
