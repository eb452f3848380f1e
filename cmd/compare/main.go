// Command compare sends one prompt to several LLM providers and prints each
// raw response under a banner, in a fixed provider order.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/llm"
	"github.com/WessleyAI/docrag/pkg/fn"
	"golang.org/x/time/rate"
)

// bannerWidth is the width of the "=" rules around each section.
const bannerWidth = 80

// provider is one comparison target. KeyEnv is empty for local providers.
type provider struct {
	Name   string
	KeyEnv string
	build  func(ctx context.Context, key string, opts llm.Options) (llm.Generator, error)
}

func defaultProviders(ollamaURL, ollamaModel string) []provider {
	return []provider{
		{Name: "GPT-4o", KeyEnv: config.ProviderKeyEnv["openai"], build: func(_ context.Context, key string, o llm.Options) (llm.Generator, error) {
			return llm.NewOpenAI(key, "", "gpt-4o", o)
		}},
		{Name: "Claude Sonnet 4", KeyEnv: config.ProviderKeyEnv["anthropic"], build: func(_ context.Context, key string, o llm.Options) (llm.Generator, error) {
			return llm.NewAnthropic(key, "", "claude-sonnet-4-20250514", o)
		}},
		{Name: "Gemini Flash", KeyEnv: config.ProviderKeyEnv["gemini"], build: func(ctx context.Context, key string, o llm.Options) (llm.Generator, error) {
			return llm.NewGemini(ctx, key, "gemini-1.5-flash", o)
		}},
		{Name: "DeepSeek Coder", KeyEnv: config.ProviderKeyEnv["deepseek"], build: func(_ context.Context, key string, o llm.Options) (llm.Generator, error) {
			return llm.NewDeepSeek(key, "deepseek-coder", o)
		}},
		{Name: "Ollama " + ollamaModel, build: func(_ context.Context, _ string, o llm.Options) (llm.Generator, error) {
			return llm.NewOllama(ollamaURL, ollamaModel, o), nil
		}},
	}
}

// result is one provider's outcome. Skipped is set when its key is missing.
type result struct {
	Name    string
	Text    string
	Err     error
	Skipped string
	Took    time.Duration
}

func main() {
	var (
		task        = flag.String("task", "devops", "preset task: "+strings.Join(presetNames(), ", "))
		prompt      = flag.String("prompt", "", "custom prompt (overrides -task)")
		only        = flag.String("only", "", "comma-separated provider names to run (default all)")
		maxTokens   = flag.Int("max-tokens", 2000, "maximum tokens per response")
		temperature = flag.Float64("temperature", 0.7, "sampling temperature")
		ollamaURL   = flag.String("ollama", "", "Ollama base URL (default local daemon)")
		ollamaModel = flag.String("ollama-model", "gemma:2b", "Ollama model")
		rps         = flag.Float64("rps", 0, "provider calls started per second (0 = all at once)")
		timeout     = flag.Duration("timeout", 5*time.Minute, "overall timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	p, ok := presets[*task]
	if *prompt != "" {
		p = preset{Title: "CUSTOM PROMPT COMPARISON", Task: "Custom Prompt", Prompt: *prompt}
	} else if !ok {
		fmt.Fprintf(os.Stderr, "unknown task %q (want one of %s)\n", *task, strings.Join(presetNames(), ", "))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var lim *rate.Limiter
	if *rps > 0 {
		lim = rate.NewLimiter(rate.Limit(*rps), 1)
	}
	provs := filterProviders(defaultProviders(*ollamaURL, *ollamaModel), *only)
	opts := llm.Options{MaxTokens: *maxTokens, Temperature: *temperature}

	results := compare(ctx, provs, p.Prompt, opts, lim, os.Getenv, logger)
	render(os.Stdout, p, results)
}

func presetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func filterProviders(provs []provider, only string) []provider {
	if only == "" {
		return provs
	}
	want := map[string]bool{}
	for _, n := range strings.Split(only, ",") {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var out []provider
	for _, p := range provs {
		if want[strings.ToLower(p.Name)] {
			out = append(out, p)
		}
	}
	return out
}

// compare runs every provider concurrently. Results keep the order of provs;
// one provider failing does not affect the others.
func compare(ctx context.Context, provs []provider, prompt string, opts llm.Options, lim *rate.Limiter, getenv func(string) string, logger *slog.Logger) []result {
	calls := make([]func() result, len(provs))
	for i, p := range provs {
		calls[i] = func() result {
			res := result{Name: p.Name}
			var key string
			if p.KeyEnv != "" {
				if key = getenv(p.KeyEnv); key == "" {
					res.Skipped = p.KeyEnv
					return res
				}
			}
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					res.Err = err
					return res
				}
			}
			start := time.Now()
			gen, err := p.build(ctx, key, opts)
			if err == nil {
				res.Text, err = gen.Generate(ctx, prompt)
			}
			res.Err, res.Took = err, time.Since(start)
			logger.Info("provider done", "provider", p.Name, "duration", res.Took, "ok", err == nil)
			return res
		}
	}
	return fn.FanOut(calls...)
}

func render(w io.Writer, p preset, results []result) {
	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintf(w, "\n%s\n%s\n%s\n\n", rule, p.Title, rule)
	for _, r := range results {
		switch {
		case r.Skipped != "":
			fmt.Fprintf(w, "%s: No API key provided (%s)\n\n", r.Name, r.Skipped)
		case r.Err != nil:
			fmt.Fprintf(w, "%s Error: %v\n\n", r.Name, r.Err)
		default:
			fmt.Fprintf(w, "%s\n%s - %s\n%s\n", rule, r.Name, p.Task, rule)
			fmt.Fprintf(w, "%s\n\n", r.Text)
		}
	}
}
