package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/WessleyAI/docrag/pkg/ollama"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	// DeepSeekURL is the OpenAI-compatible DeepSeek endpoint.
	DeepSeekURL = "https://api.deepseek.com"
	// DefaultOllamaModel is used when no Ollama model is configured.
	DefaultOllamaModel = "llama3.1:8b"
)

// Ollama generates with a local model through /api/chat.
type Ollama struct {
	client *ollama.ChatClient
	model  string
	opts   Options
}

// NewOllama creates an Ollama generator.
func NewOllama(baseURL, model string, opts Options) *Ollama {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &Ollama{client: ollama.NewChatClient(baseURL, model), model: model, opts: opts}
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := o.client.Chat(ctx, []ollama.Message{{Role: "user", Content: prompt}}, ollama.ChatOptions{
		Temperature: o.opts.Temperature,
		NumPredict:  o.opts.MaxTokens,
	})
	return finish("ollama generate", out, err)
}

func (o *Ollama) Name() string { return o.model }

// OpenAI generates through any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	opts   Options
}

// NewOpenAI creates an OpenAI generator. An empty baseURL targets api.openai.com.
func NewOpenAI(apiKey, baseURL, model string, opts Options) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai generator: api key is required")
	}
	if model == "" {
		model = openai.GPT4o
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, opts: opts}, nil
}

// NewDeepSeek creates a generator for the DeepSeek chat API.
func NewDeepSeek(apiKey, model string, opts Options) (*OpenAI, error) {
	if model == "" {
		model = "deepseek-chat"
	}
	return NewOpenAI(apiKey, DeepSeekURL, model, opts)
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: float32(o.opts.Temperature),
	})
	if err != nil {
		return finish("openai generate", "", err)
	}
	if len(resp.Choices) == 0 {
		return finish("openai generate", "", nil)
	}
	return finish("openai generate", resp.Choices[0].Message.Content, nil)
}

func (o *OpenAI) Name() string { return o.model }

// Anthropic generates with Claude models.
type Anthropic struct {
	client anthropic.Client
	model  string
	opts   Options
}

// NewAnthropic creates a Claude generator. SDK-level retries are disabled.
func NewAnthropic(apiKey, baseURL, model string, opts Options) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic generator: api key is required")
	}
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{client: anthropic.NewClient(reqOpts...), model: model, opts: opts}, nil
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(a.opts.Temperature),
	}
	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return finish("anthropic generate", "", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return finish("anthropic generate", b.String(), nil)
}

func (a *Anthropic) Name() string { return a.model }

// Gemini generates with Google Gemini models.
type Gemini struct {
	client *genai.Client
	model  string
	opts   Options
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, model string, opts Options) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini generator: api key is required")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Gemini{client: client, model: model, opts: opts}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.opts.Temperature)),
		MaxOutputTokens: int32(g.opts.MaxTokens),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, cfg)
	if err != nil {
		return finish("gemini generate", "", err)
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
		break
	}
	return finish("gemini generate", b.String(), nil)
}

func (g *Gemini) Name() string { return g.model }

// Echo is an offline generator. It answers from the first context block of
// the prompt, or with the fallback sentence when the prompt carries none.
type Echo struct{}

// FallbackAnswer is the reply for questions the context cannot answer.
const FallbackAnswer = "I cannot find information about that in the provided documentation."

func (Echo) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return finish("echo generate", "", err)
	}
	_, rest, ok := strings.Cut(prompt, "[Context 1]: ")
	if !ok {
		return FallbackAnswer, nil
	}
	answer, _, _ := strings.Cut(rest, "\n\n")
	return finish("echo generate", answer, nil)
}

func (Echo) Name() string { return "echo" }
