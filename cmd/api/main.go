// Package main implements the docrag HTTP API: document ingestion, grounded
// question answering and service status.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WessleyAI/docrag/engine/config"
	"github.com/WessleyAI/docrag/engine/loader"
	"github.com/WessleyAI/docrag/engine/rag"
	"github.com/WessleyAI/docrag/pkg/metrics"
	"github.com/WessleyAI/docrag/pkg/mid"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.ParseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	go reg.CollectRuntime(ctx, 15*time.Second)
	reg.ServeAsync(ctx, cfg.Server.MetricsPort, logger)

	root, err := loader.NewRoot(cfg.Server.DocsDir, cfg.Server.AllowRemote)
	if err != nil {
		return err
	}
	logger.Info("ingest confined to document root", "dir", root.Dir(), "allow_remote", cfg.Server.AllowRemote)

	svc, err := rag.Open(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	handler := mid.Chain(newMux(svc, root, logger),
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.Server.CORSOrigin),
		mid.MaxBody(maxBodyBytes),
		mid.OTel("docrag-api"),
		mid.Metrics(reg),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // ingesting a large PDF is slow
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
