// Package loader turns a document into plain text. PDFs are inspected with
// pdfcpu and their text is extracted page by page; anything else is read as
// UTF-8 text. http(s) URLs are downloaded first.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Document is the extracted text of one source file.
type Document struct {
	Path  string `json:"path"`
	Title string `json:"title,omitempty"`
	Pages int    `json:"pages"`
	Text  string `json:"-"`
}

// Loader loads documents by path.
type Loader struct {
	logger  *slog.Logger
	fetcher *Fetcher
}

// New creates a Loader. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, fetcher: NewFetcher(nil, "", 0)}
}

// WithFetcher replaces the Fetcher used for remote documents.
func (l *Loader) WithFetcher(f *Fetcher) *Loader {
	l.fetcher = f
	return l
}

// Load returns the document text. It fails with a DocumentLoadError when the
// file is missing or unreadable, or when no text can be extracted.
func (l *Loader) Load(ctx context.Context, path string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, domain.DocumentLoadError("load "+path, err)
	}
	if IsRemote(path) {
		local, err := l.fetcher.Fetch(ctx, path)
		if err != nil {
			return Document{}, domain.DocumentLoadError("load "+path, err)
		}
		l.logger.Info("document downloaded", "url", path, "local", local)
		doc, err := l.Load(ctx, local)
		if err != nil {
			return Document{}, err
		}
		doc.Path = path
		return doc, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, domain.DocumentLoadError("load "+path, err)
	}
	if info.IsDir() {
		return Document{}, domain.DocumentLoadError("load "+path, fmt.Errorf("%s is a directory", path))
	}

	var doc Document
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		doc, err = l.loadPDF(path)
	} else {
		doc, err = loadText(path)
	}
	if err != nil {
		return Document{}, domain.DocumentLoadError("load "+path, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, domain.DocumentLoadError("load "+path, domain.ErrEmptyDocument)
	}

	l.logger.Info("document loaded", "path", path, "pages", doc.Pages, "chars", len(doc.Text))
	return doc, nil
}

func loadText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	if !utf8.Valid(data) {
		return Document{}, fmt.Errorf("%w: %s is not UTF-8 text", domain.ErrUnsupportedFormat, filepath.Base(path))
	}
	return Document{
		Path:  path,
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Pages: 1,
		Text:  string(data),
	}, nil
}

func (l *Loader) loadPDF(path string) (Document, error) {
	doc := Document{Path: path, Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	// pdfcpu validates the structure and gives us metadata; extraction can
	// still succeed on files it is strict about, so a failure here is soft.
	if pctx, err := api.ReadContextFile(path); err != nil {
		l.logger.Debug("pdf inspect failed", "path", path, "err", err)
	} else {
		doc.Pages = pctx.PageCount
		if t := strings.TrimSpace(pctx.Title); t != "" {
			doc.Title = t
		}
	}

	pages, err := extractPages(path)
	if err != nil {
		return Document{}, err
	}
	if doc.Pages == 0 {
		doc.Pages = len(pages)
	}
	doc.Text = JoinPages(pages)
	return doc, nil
}

// extractPages returns the plain text of every page, in page order.
func extractPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf: open: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("pdf: page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	if n == 0 {
		return nil, errors.New("pdf: document has no pages")
	}
	return pages, nil
}

// JoinPages joins page texts with newlines, skipping blank pages.
func JoinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
