package ingest

import (
	"time"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/WessleyAI/docrag/engine/loader"
)

// ChunkedDoc is a loaded document split into sentence windows.
type ChunkedDoc struct {
	Doc       loader.Document
	Sentences int
	Chunks    []domain.Chunk
}

// EmbeddedDoc pairs every chunk with its vector.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// Report summarises one ingestion run.
type Report struct {
	Path      string        `json:"path"`
	Title     string        `json:"title,omitempty"`
	Pages     int           `json:"pages"`
	Sentences int           `json:"sentences"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration_ns"`
}

func reportFor(doc ChunkedDoc) Report {
	return Report{
		Path:      doc.Doc.Path,
		Title:     doc.Doc.Title,
		Pages:     doc.Doc.Pages,
		Sentences: doc.Sentences,
		Chunks:    len(doc.Chunks),
	}
}
