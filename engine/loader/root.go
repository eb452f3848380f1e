package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/WessleyAI/docrag/engine/domain"
)

// Root confines document paths supplied by remote callers to one directory.
// Remote URLs are refused unless allowRemote is set.
type Root struct {
	dir         string
	allowRemote bool
}

// NewRoot resolves dir, which must be an existing directory.
func NewRoot(dir string, allowRemote bool) (*Root, error) {
	if dir == "" {
		return nil, errors.New("loader: document root is not set")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: document root: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: document root: %w", err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, fmt.Errorf("loader: document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loader: document root %s is not a directory", dir)
	}
	return &Root{dir: real, allowRemote: allowRemote}, nil
}

// Dir returns the resolved root directory.
func (r *Root) Dir() string { return r.dir }

// Resolve maps p to a path inside the root. Relative paths are taken from the
// root. Symlinks are followed before the containment check, so a link inside
// the root that points out of it is rejected. Violations are ValidationErrors.
func (r *Root) Resolve(p string) (string, error) {
	if IsRemote(p) {
		if !r.allowRemote {
			return "", domain.NewValidationError("path", p, domain.ErrRemoteDisabled)
		}
		return p, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dir, p)
	}
	p = filepath.Clean(p)

	resolved, err := filepath.EvalSymlinks(p)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		// Missing files are reported by the loader if they lie inside the root.
		resolved = p
		if parent, perr := filepath.EvalSymlinks(filepath.Dir(p)); perr == nil {
			resolved = filepath.Join(parent, filepath.Base(p))
		}
	default:
		return "", domain.NewValidationError("path", p, err)
	}
	if !within(r.dir, resolved) {
		return "", domain.NewValidationError("path", p, domain.ErrOutsideRoot)
	}
	return resolved, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
