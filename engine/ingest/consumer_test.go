package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/pkg/natsutil"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

type stubIngester struct {
	rep *Report
	err error
}

func (s stubIngester) Ingest(context.Context, string) (*Report, error) { return s.rep, s.err }

func TestRunJob(t *testing.T) {
	ok := RunJob(context.Background(), stubIngester{rep: &Report{Chunks: 5}}, Job{ID: "1", Path: "a.pdf"})
	if ok.Error != "" || ok.Report.Chunks != 5 || ok.ID != "1" {
		t.Fatalf("unexpected %+v", ok)
	}
	bad := RunJob(context.Background(), stubIngester{err: domain.DocumentLoadError("load", errors.New("missing"))}, Job{ID: "2"})
	if bad.Error == "" || bad.Kind != domain.ErrDocumentLoad.Error() || bad.Report != nil {
		t.Fatalf("unexpected %+v", bad)
	}
}

func startNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestStartConsumer_RoutesResults(t *testing.T) {
	nc := startNATS(t)
	doneCh := make(chan JobResult, 1)
	dlqCh := make(chan JobResult, 1)
	s1, _ := natsutil.Subscribe(nc, DoneSubject, "", func(_ context.Context, r JobResult) { doneCh <- r })
	s2, _ := natsutil.Subscribe(nc, DLQSubject, "", func(_ context.Context, r JobResult) { dlqCh <- r })
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	ing := &switchIngester{}
	sub, err := StartConsumer(nc, ing, time.Second, quiet)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	nc.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := natsutil.Request[Job, JobResult](ctx, nc, JobSubject, Job{ID: "ok", Path: "good.pdf"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if res.Error != "" || res.Report == nil {
		t.Fatalf("unexpected reply %+v", res)
	}
	select {
	case r := <-doneCh:
		if r.ID != "ok" {
			t.Fatalf("done = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no done message")
	}

	natsutil.Publish(context.Background(), nc, JobSubject, Job{ID: "bad", Path: "bad.pdf"})
	select {
	case r := <-dlqCh:
		if r.ID != "bad" || r.Kind != domain.ErrDocumentLoad.Error() {
			t.Fatalf("dlq = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dlq message")
	}
}

type switchIngester struct{}

func (switchIngester) Ingest(_ context.Context, path string) (*Report, error) {
	if path == "bad.pdf" {
		return nil, domain.DocumentLoadError("load "+path, domain.ErrEmptyDocument)
	}
	return &Report{Path: path, Chunks: 3}, nil
}
