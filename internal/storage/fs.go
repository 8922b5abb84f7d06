package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/starford/dirtools/internal/apperr"
)

// ErrEscapesRoot is returned for paths that resolve outside the root.
var ErrEscapesRoot = errors.New("storage: path escapes root")

// FS implements Provider on top of a billy filesystem.
type FS struct {
	root string
	bfs  billy.Filesystem
}

// NewFS creates a Provider rooted at the given local directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w: %w", apperr.ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrInvalidRoot)
	}
	return &FS{root: abs, bfs: osfs.New(abs)}, nil
}

// NewMemFS creates an empty in-memory Provider. name is reported by Root.
func NewMemFS(name string) *FS {
	return &FS{root: name, bfs: memfs.New()}
}

// Root returns the root the provider was created with.
func (f *FS) Root() string { return f.root }

// resolve normalizes rel into the billy namespace and rejects any result
// that escapes the root.
func (f *FS) resolve(rel string) (string, error) {
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == "." {
		return "/", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, rel)
	}
	return cleaned, nil
}

func (f *FS) Stat(rel string) (fs.FileInfo, error) {
	p, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	return f.bfs.Stat(p)
}

func (f *FS) ReadDir(dir string) ([]fs.FileInfo, error) {
	p, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	infos, err := f.bfs.ReadDir(p)
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })
	return infos, nil
}

func (f *FS) Open(rel string) (io.ReadCloser, error) {
	p, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	return f.bfs.Open(p)
}

func (f *FS) Read(rel string) ([]byte, error) {
	p, err := f.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadFile(f.bfs, p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

func (f *FS) Write(rel string, content []byte, perm fs.FileMode) error {
	p, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if dir := path.Dir(p); dir != "." && dir != "/" {
		if err := f.bfs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir: %w", err)
		}
	}
	if err := util.WriteFile(f.bfs, p, content, perm); err != nil {
		return fmt.Errorf("storage: write %s: %w", rel, err)
	}
	return nil
}

func (f *FS) MkdirAll(dir string, perm fs.FileMode) error {
	p, err := f.resolve(dir)
	if err != nil {
		return err
	}
	if p == "/" {
		return nil
	}
	if err := f.bfs.MkdirAll(p, perm); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}
	return nil
}

func (f *FS) Delete(rel string) error {
	p, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if err := f.bfs.Remove(p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

func (f *FS) DeleteAll(rel string) error {
	p, err := f.resolve(rel)
	if err != nil {
		return err
	}
	if p == "/" {
		return fmt.Errorf("storage: refusing to delete root")
	}
	if err := util.RemoveAll(f.bfs, p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
