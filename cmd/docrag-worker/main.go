// Command docrag-worker consumes ingestion jobs from NATS, or with -submit
// sends one job and prints its result. Job paths are resolved against
// server.docs_dir.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/ingest"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/rag"
	"github.com/WessleyAI/docrag/pkg/metrics"
	"github.com/WessleyAI/docrag/pkg/natsutil"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		submitPath = flag.String("submit", "", "submit this document as a job and wait for the result")
		jobTimeout = flag.Duration("timeout", 30*time.Minute, "per-job ingestion timeout (and -submit wait)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("docrag-worker"), nats.MaxReconnects(-1))
	if err != nil {
		logger.Error("nats connect failed", "url", cfg.NATS.URL, "err", err)
		os.Exit(1)
	}
	defer nc.Drain()

	if *submitPath != "" {
		ctx, cancel := context.WithTimeout(ctx, *jobTimeout)
		defer cancel()
		if err := submit(ctx, nc, *submitPath, os.Stdout); err != nil {
			logger.Error("job failed", "path", *submitPath, "err", err)
			os.Exit(1)
		}
		return
	}

	if err := consume(ctx, cfg, nc, *jobTimeout, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

// submit sends one ingestion job and prints the result as JSON.
func submit(ctx context.Context, nc *nats.Conn, path string, out io.Writer) error {
	job := ingest.Job{ID: uuid.NewString(), Path: path}
	res, err := natsutil.Request[ingest.Job, ingest.JobResult](ctx, nc, ingest.JobSubject, job)
	if err != nil {
		return fmt.Errorf("submit %s: %w", job.ID, err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	switch {
	case res.Error == "":
		return nil
	case res.Kind == "":
		return errors.New(res.Error)
	default:
		return fmt.Errorf("%s: %s", res.Kind, res.Error)
	}
}

// confined resolves job paths against the document root before ingesting.
type confined struct {
	ing  ingest.Ingester
	root *loader.Root
}

func (c confined) Ingest(ctx context.Context, path string) (*ingest.Report, error) {
	resolved, err := c.root.Resolve(path)
	if err != nil {
		return nil, err
	}
	return c.ing.Ingest(ctx, resolved)
}

// consume serves ingestion jobs until ctx is cancelled.
func consume(ctx context.Context, cfg config.Config, nc *nats.Conn, timeout time.Duration, logger *slog.Logger) error {
	root, err := loader.NewRoot(cfg.Server.DocsDir, cfg.Server.AllowRemote)
	if err != nil {
		return err
	}

	reg := metrics.New()
	go reg.CollectRuntime(ctx, 15*time.Second)
	reg.ServeAsync(ctx, cfg.Server.MetricsPort, logger)

	svc, err := rag.Open(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	sub, err := ingest.StartConsumer(nc, confined{ing: svc, root: root}, timeout, logger)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ingest.JobSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("worker ready", "subject", ingest.JobSubject, "queue", ingest.QueueGroup,
		"docs_dir", root.Dir(), "state", svc.State())
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}
