//go:build integration

package main

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/rag"
)

// TestAPI_LiveOllama runs the HTTP handlers over the default Ollama stack
// with a throwaway badger store. Requires a running Ollama daemon with the
// configured models pulled.
func TestAPI_LiveOllama(t *testing.T) {
	if os.Getenv("OLLAMA_URL") == "" {
		t.Skip("OLLAMA_URL not set")
	}
	cfg := config.Default()
	cfg.Embedder.BaseURL = os.Getenv("OLLAMA_URL")
	cfg.Generator.BaseURL = os.Getenv("OLLAMA_URL")
	cfg.Store.PersistDir = t.TempDir()

	svc, err := rag.Open(context.Background(), cfg, nil, quiet)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()

	srv, docs := httptestServer(t, svc)
	body := `{"path":` + strconvQuote(writeDoc(t, docs)) + `}`
	if code := do(t, srv, "POST", "/api/ingest", body, nil); code != http.StatusOK {
		t.Fatalf("ingest: status %d", code)
	}
	var ans rag.Answer
	if code := do(t, srv, "POST", "/api/query", `{"question":"What does vacuum do?"}`, &ans); code != http.StatusOK {
		t.Fatalf("query: status %d", code)
	}
	if ans.Text == "" || len(ans.Contexts) == 0 {
		t.Fatalf("unexpected answer %+v", ans)
	}
}
