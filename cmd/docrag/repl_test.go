package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/docrag/engine/ingest"
	"github.com/WessleyAI/docrag/engine/rag"
)

type scriptedAsker struct {
	asked []string
	err   error
}

func (s *scriptedAsker) Query(_ context.Context, q string, n int) (*rag.Answer, error) {
	s.asked = append(s.asked, q)
	if s.err != nil {
		return nil, s.err
	}
	return &rag.Answer{
		Question: q,
		Text:     "answer to " + q,
		Contexts: []rag.Context{{Text: strings.Repeat("x", 250), Similarity: 0.9123, StartSentence: 0, EndSentence: 3}},
	}, nil
}

func TestREPL_EveryLineIsAQuestion(t *testing.T) {
	a := &scriptedAsker{}
	var out bytes.Buffer
	in := strings.NewReader("What is MVCC?\n\nHow does vacuum work?\n  bye  \nnever asked\n")

	if err := repl(context.Background(), in, &out, a, 3); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if len(a.asked) != 2 || a.asked[0] != "What is MVCC?" || a.asked[1] != "How does vacuum work?" {
		t.Fatalf("asked %q", a.asked)
	}
	got := out.String()
	for _, want := range []string{
		"[QUERY] What is MVCC?",
		"answer to How does vacuum work?",
		"[Context 1] Similarity: 0.912",
		"Text: " + strings.Repeat("x", 200) + "...",
		"Goodbye.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestREPL_UpperCaseBye(t *testing.T) {
	a := &scriptedAsker{}
	if err := repl(context.Background(), strings.NewReader("BYE\n"), &bytes.Buffer{}, a, 3); err != nil {
		t.Fatal(err)
	}
	if len(a.asked) != 0 {
		t.Fatalf("BYE should not be asked, got %q", a.asked)
	}
}

func TestREPL_ByeMustMatchWholeLine(t *testing.T) {
	a := &scriptedAsker{}
	repl(context.Background(), strings.NewReader("bye bye\nBYE\n"), &bytes.Buffer{}, a, 3)
	if len(a.asked) != 1 || a.asked[0] != "bye bye" {
		t.Fatalf("asked %q", a.asked)
	}
}

func TestREPL_ErrorsDoNotEndSession(t *testing.T) {
	a := &scriptedAsker{err: errors.New("generation error: model overloaded")}
	var out bytes.Buffer
	if err := repl(context.Background(), strings.NewReader("q1\nq2\n"), &out, a, 3); err != nil {
		t.Fatalf("repl: %v", err)
	}
	if len(a.asked) != 2 {
		t.Fatalf("expected both questions asked, got %q", a.asked)
	}
	if strings.Count(out.String(), "error: generation error") != 2 {
		t.Fatalf("errors not reported:\n%s", out.String())
	}
}

func TestREPL_EOF(t *testing.T) {
	if err := repl(context.Background(), strings.NewReader("q"), &bytes.Buffer{}, &scriptedAsker{}, 3); err != nil {
		t.Fatalf("EOF should end cleanly, got %v", err)
	}
}

func TestSnippet(t *testing.T) {
	if snippet("héllo", 10) != "héllo" {
		t.Fatal("short text should be unchanged")
	}
	if got := snippet("héllo wörld", 5); got != "héllo..." {
		t.Fatalf("got %q", got)
	}
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &ingest.Report{Path: "docs.pdf", Title: "PostgreSQL Manual", Pages: 12, Sentences: 40, Chunks: 20, Duration: 1500 * time.Millisecond})
	got := out.String()
	if !strings.Contains(got, "PostgreSQL Manual (docs.pdf)") || !strings.Contains(got, "Chunks: 20") || !strings.Contains(got, "INGESTION COMPLETE") {
		t.Fatalf("unexpected report:\n%s", got)
	}
}
