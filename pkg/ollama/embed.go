// Package ollama is a small client for the Ollama HTTP API: batch embeddings
// and non-streaming chat completions.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the local Ollama daemon.
const DefaultURL = "http://localhost:11434"

// EmbedClient calls POST /api/embed.
type EmbedClient struct {
	baseURL string
	model   string
	numCtx  int
	client  *http.Client
}

// NewEmbedClient creates an Ollama embedding client. numCtx bounds the
// context window; inputs beyond it are truncated by the server.
func NewEmbedClient(baseURL, model string, numCtx int) *EmbedClient {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &EmbedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		numCtx:  numCtx,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

type embedReq struct {
	Model    string         `json:"model"`
	Input    []string       `json:"input"`
	Truncate bool           `json:"truncate"`
	Options  map[string]any `json:"options,omitempty"`
}

type embedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per input, in input order.
func (c *EmbedClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	req := embedReq{Model: c.model, Input: inputs, Truncate: true}
	if c.numCtx > 0 {
		req.Options = map[string]any{"num_ctx": c.numCtx}
	}
	var out embedResp
	if err := postJSON(ctx, c.client, c.baseURL+"/api/embed", req, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(out.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(out.Embeddings), len(inputs))
	}
	return out.Embeddings, nil
}

func postJSON(ctx context.Context, hc *http.Client, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
