package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

const (
	// JobSubject receives ingestion jobs.
	JobSubject = "docrag.ingest"
	// DoneSubject receives the result of every successful job.
	DoneSubject = "docrag.ingest.done"
	// DLQSubject receives failed jobs. Jobs are not retried.
	DLQSubject = "docrag.ingest.dlq"
	// QueueGroup lets several workers share the job stream.
	QueueGroup = "docrag-workers"
)

// Job asks a worker to ingest one document.
type Job struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// JobResult is the outcome of a Job. Error is empty on success.
type JobResult struct {
	ID     string  `json:"id"`
	Path   string  `json:"path"`
	Report *Report `json:"report,omitempty"`
	Error  string  `json:"error,omitempty"`
	Kind   string  `json:"kind,omitempty"`
}

// Ingester runs one ingestion.
type Ingester interface {
	Ingest(ctx context.Context, path string) (*Report, error)
}

// RunJob ingests a job and builds its result.
func RunJob(ctx context.Context, ing Ingester, job Job) JobResult {
	res := JobResult{ID: job.ID, Path: job.Path}
	rep, err := ing.Ingest(ctx, job.Path)
	if err != nil {
		res.Error = err.Error()
		if k := domain.Kind(err); k != nil {
			res.Kind = k.Error()
		}
		return res
	}
	res.Report = rep
	return res
}

// StartConsumer subscribes to JobSubject in QueueGroup. Each job's result is
// sent to the request's reply subject if any, and published to DoneSubject or,
// on failure, to DLQSubject.
func StartConsumer(nc *nats.Conn, ing Ingester, timeout time.Duration, log *slog.Logger) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return natsutil.Handle(nc, JobSubject, QueueGroup, func(ctx context.Context, job Job) JobResult {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		log.Info("ingest: job received", "id", job.ID, "path", job.Path)
		res := RunJob(ctx, ing, job)

		subject := DoneSubject
		if res.Error != "" {
			subject = DLQSubject
			log.Error("ingest: job failed", "id", job.ID, "path", job.Path, "kind", res.Kind, "error", res.Error)
		} else {
			log.Info("ingest: job done", "id", job.ID, "chunks", res.Report.Chunks, "duration", res.Report.Duration)
		}
		if err := natsutil.Publish(ctx, nc, subject, res); err != nil {
			log.Error("ingest: publish result", "subject", subject, "error", err)
		}
		return res
	})
}
