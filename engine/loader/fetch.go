package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFetchSize caps remote downloads.
const DefaultMaxFetchSize = 100 << 20

// Fetcher downloads remote PDFs into a cache directory so they can be loaded
// like local files. Interrupted downloads resume from the partial file.
type Fetcher struct {
	client    *http.Client
	dir       string
	maxSize   int64
	userAgent string
}

// NewFetcher creates a Fetcher that stores files under dir. An empty dir uses
// a docrag directory under os.TempDir.
func NewFetcher(client *http.Client, dir string, maxSize int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "docrag-downloads")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFetchSize
	}
	return &Fetcher{client: client, dir: dir, maxSize: maxSize, userAgent: "docrag/1.0"}
}

// IsRemote reports whether p is an http(s) URL.
func IsRemote(p string) bool {
	u, err := url.Parse(p)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads rawURL and returns the local path. A file already in the
// cache is returned without a request.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: mkdir: %w", err)
	}
	localPath := filepath.Join(f.dir, cacheName(u))
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	var existing int64
	tmpPath := localPath + ".tmp"
	if info, err := os.Stat(tmpPath); err == nil {
		existing = info.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existing))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", fmt.Errorf("fetch %s: http status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > f.maxSize {
		return "", fmt.Errorf("fetch %s: file too large: %d bytes", rawURL, resp.ContentLength)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resp.StatusCode == http.StatusPartialContent {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
		existing = 0
	}
	out, err := os.OpenFile(tmpPath, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("fetch: open: %w", err)
	}
	// One byte past the cap tells an oversized body from one that fits exactly.
	n, err := io.Copy(out, io.LimitReader(resp.Body, f.maxSize-existing+1))
	out.Close()
	if err != nil {
		return "", fmt.Errorf("fetch: write: %w", err)
	}
	if existing+n > f.maxSize {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fetch %s: file too large: more than %d bytes", rawURL, f.maxSize)
	}

	if err := verifyPDF(tmpPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return "", fmt.Errorf("fetch: rename: %w", err)
	}
	return localPath, nil
}

// cacheName is the URL's base name prefixed with a short hash of the URL, so
// two documents with the same file name do not collide.
func cacheName(u *url.URL) string {
	sum := sha256.Sum256([]byte(u.String()))
	base := path.Base(u.Path)
	if base == "/" || base == "." {
		base = ""
	}
	base = sanitize(strings.TrimSuffix(base, path.Ext(base)))
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("%s_%s.pdf", base, hex.EncodeToString(sum[:4]))
}

// verifyPDF checks that the file starts with %PDF.
func verifyPDF(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("cannot read PDF header")
	}
	if string(header) != "%PDF" {
		return fmt.Errorf("not a valid PDF file")
	}
	return nil
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(" ", "_", "/", "_").Replace(s)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return -1
	}, s)
}
