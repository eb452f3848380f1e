// Command docrag ingests a document and answers questions about it from the
// terminal until the user types BYE.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/rag"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		doc        = flag.String("doc", "", "document to ingest before the session")
		reset      = flag.Bool("reset", false, "delete every stored record first")
		nResults   = flag.Int("n", 0, "contexts per question (0 = config n_results)")
		store      = flag.String("store", "", "vector store backend: badger, qdrant or memory")
		embedProv  = flag.String("embed", "", "embedding provider: ollama, openai, gemini or hash")
		llmProv    = flag.String("llm", "", "generator: ollama, openai, deepseek, anthropic, gemini or echo")
		llmModel   = flag.String("model", "", "generator model")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	overrideStr(&cfg.Store.Backend, *store)
	cfg.Embedder.SetProvider(*embedProv)
	cfg.Generator.SetProvider(*llmProv)
	overrideStr(&cfg.Generator.Model, *llmModel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, *doc, *reset, *nResults, logger); err != nil {
		logger.Error("docrag exited with error", "err", err)
		os.Exit(1)
	}
}

func overrideStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg config.Config, doc string, reset bool, n int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := rag.Open(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if reset {
		if err := svc.Reset(ctx); err != nil {
			return err
		}
	}

	switch {
	case doc != "":
		printBanner(os.Stdout, "STARTING DOCUMENT INGESTION")
		rep, err := svc.Ingest(ctx, doc)
		if err != nil {
			return err
		}
		printReport(os.Stdout, rep)
	case svc.State() == rag.StateEmpty:
		return fmt.Errorf("store %q is empty: pass -doc to ingest a document", cfg.Store.Collection)
	default:
		st, err := svc.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Using %d stored chunks from %q\n", st.Records, cfg.Store.Collection)
	}

	return repl(ctx, os.Stdin, os.Stdout, svc, n)
}
