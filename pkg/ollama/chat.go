package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions are the sampling parameters sent with each request.
type ChatOptions struct {
	Temperature float64
	NumPredict  int
}

// ChatClient calls POST /api/chat with streaming disabled.
type ChatClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewChatClient creates an Ollama chat client.
func NewChatClient(baseURL, model string) *ChatClient {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &ChatClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResp struct {
	Model   string  `json:"model"`
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Chat sends the conversation and returns the assistant reply.
func (c *ChatClient) Chat(ctx context.Context, msgs []Message, opts ChatOptions) (string, error) {
	req := chatReq{
		Model:    c.model,
		Messages: msgs,
		Options: map[string]any{
			"temperature": opts.Temperature,
		},
	}
	if opts.NumPredict > 0 {
		req.Options["num_predict"] = opts.NumPredict
	}
	var out chatResp
	if err := postJSON(ctx, c.client, c.baseURL+"/api/chat", req, &out); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out.Message.Content, nil
}
