package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/WessleyAI/docrag/engine/ingest"
	"github.com/WessleyAI/docrag/engine/rag"
)

// quitWord ends the session, compared case-insensitively.
const quitWord = "BYE"

// snippetLen is how much of each context is echoed under an answer.
const snippetLen = 200

type asker interface {
	Query(ctx context.Context, question string, n int) (*rag.Answer, error)
}

// repl reads one question per line and prints each answer with its
// contexts. Blank lines are ignored. A failed question is reported and the
// session continues. It returns at BYE, EOF or cancellation.
func repl(ctx context.Context, in io.Reader, out io.Writer, svc asker, n int) error {
	fmt.Fprintf(out, "\nAsk a question about the document (%s to quit).\n", quitWord)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, quitWord):
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		ans, err := svc.Query(ctx, line, n)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printAnswer(out, ans)
	}
}

func printAnswer(out io.Writer, ans *rag.Answer) {
	fmt.Fprintf(out, "\n[QUERY] %s\n", ans.Question)
	fmt.Fprintf(out, "\n%s\n", ans.Text)
	for i, c := range ans.Contexts {
		fmt.Fprintf(out, "\n[Context %d] Similarity: %.3f (sentences %d-%d)\n", i+1, c.Similarity, c.StartSentence, c.EndSentence)
		fmt.Fprintf(out, "Text: %s\n", snippet(c.Text, snippetLen))
	}
	fmt.Fprintln(out)
}

// snippet cuts s to at most n runes, marking the cut with "...".
func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func printBanner(out io.Writer, title string) {
	line := strings.Repeat("=", 60)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n", line, title, line)
}

func printReport(out io.Writer, rep *ingest.Report) {
	if rep.Title != "" {
		fmt.Fprintf(out, "Document: %s (%s)\n", rep.Title, rep.Path)
	} else {
		fmt.Fprintf(out, "Document: %s\n", rep.Path)
	}
	fmt.Fprintf(out, "Pages: %d  Sentences: %d  Chunks: %d  Took: %s\n", rep.Pages, rep.Sentences, rep.Chunks, rep.Duration.Round(time.Millisecond))
	printBanner(out, "INGESTION COMPLETE")
}
