// Package tree walks a root directory under its ignore rules and hashes the
// filtered result.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/ignore"
	"github.com/starford/dirtools/internal/storage"
)

// Option configures a Dir.
type Option func(*Dir)

// WithExcludeFile sets the ignore file name read from the root.
func WithExcludeFile(name string) Option {
	return func(d *Dir) {
		d.excludeFile = name
	}
}

// WithMatcher uses m instead of reading the ignore file.
func WithMatcher(m *ignore.Matcher) Option {
	return func(d *Dir) {
		d.matcher = m
	}
}

// WithLogger sets the logger used for traversal diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dir) {
		d.logger = l
	}
}

// Dir is a filtered view of one root. The rule set is read once in New;
// construct a new Dir to pick up changes to the ignore file.
type Dir struct {
	store       storage.Provider
	matcher     *ignore.Matcher
	excludeFile string
	logger      *slog.Logger
}

// New binds a Dir to the root of store and loads its ignore rules.
func New(store storage.Provider, opts ...Option) (*Dir, error) {
	d := &Dir{
		store:       store,
		excludeFile: ignore.DefaultFile,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	info, err := store.Stat("")
	if err != nil {
		return nil, fmt.Errorf("tree: stat root %s: %w: %w", store.Root(), apperr.ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tree: root %s is not a directory: %w", store.Root(), apperr.ErrInvalidRoot)
	}

	if d.matcher == nil {
		m, err := ignore.Load(store, d.excludeFile)
		if err != nil {
			return nil, fmt.Errorf("tree: %w", err)
		}
		d.matcher = m
	}
	return d, nil
}

// Root returns the location the Dir is bound to.
func (d *Dir) Root() string { return d.store.Root() }

// Store returns the underlying provider.
func (d *Dir) Store() storage.Provider { return d.store }

// Matcher returns the rule set in effect.
func (d *Dir) Matcher() *ignore.Matcher { return d.matcher }

// IsExcluded reports whether rel is excluded by the rule set.
func (d *Dir) IsExcluded(rel string) bool {
	return d.matcher.IsExcluded(rel)
}

// WalkFunc is called for every non-excluded directory and regular file
// below the root, parents before children, siblings in name order.
type WalkFunc func(rel string, info fs.FileInfo) error

// Walk visits the filtered tree. An excluded directory is not descended
// into, so nothing below it is ever tested.
func (d *Dir) Walk(fn WalkFunc) error {
	infos, err := d.store.ReadDir("")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("tree: read root %s: %w: %w", d.Root(), apperr.ErrInvalidRoot, err)
		}
		return fmt.Errorf("tree: read root %s: %w", d.Root(), err)
	}
	return d.walk("", infos, fn)
}

func (d *Dir) walk(dir string, infos []fs.FileInfo, fn WalkFunc) error {
	for _, info := range infos {
		rel := join(dir, info.Name())
		switch {
		case info.IsDir():
			if d.matcher.IsExcluded(rel) {
				d.logger.Debug("tree: pruned", slog.String("path", rel))
				continue
			}
			if err := fn(rel, info); err != nil {
				return err
			}
			children, err := d.store.ReadDir(rel)
			if err != nil {
				return ioError("read dir", rel, err)
			}
			if err := d.walk(rel, children, fn); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if d.matcher.IsExcluded(rel) {
				continue
			}
			if err := fn(rel, info); err != nil {
				return err
			}
		}
	}
	return nil
}

// Files returns the non-excluded regular files, sorted. A non-empty pattern
// additionally keeps only files whose basename matches it.
func (d *Dir) Files(pattern string) ([]string, error) {
	var out []string
	err := d.Walk(func(rel string, info fs.FileInfo) error {
		if info.IsDir() {
			return nil
		}
		if pattern == "" || ignore.Match(pattern, info.Name()) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Subdirs returns the non-excluded directories below the root, sorted. A
// non-empty pattern additionally keeps only directories whose final segment
// matches it.
func (d *Dir) Subdirs(pattern string) ([]string, error) {
	var out []string
	err := d.Walk(func(rel string, info fs.FileInfo) error {
		if !info.IsDir() {
			return nil
		}
		if pattern == "" || ignore.Match(pattern, info.Name()) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// FindProjects returns, sorted, every directory below the root that
// directly contains a non-excluded file named marker.
func (d *Dir) FindProjects(marker string) ([]string, error) {
	if marker == "" {
		return nil, fmt.Errorf("tree: empty marker: %w", apperr.ErrInvalidArgument)
	}
	seen := make(map[string]struct{})
	var out []string
	err := d.Walk(func(rel string, info fs.FileInfo) error {
		if info.IsDir() || info.Name() != marker {
			return nil
		}
		dir := path.Dir(rel)
		if dir == "." {
			return nil
		}
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			out = append(out, dir)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// ioError classifies a failure on an entry that the walk already saw.
// A vanished entry means the tree changed underneath the operation.
func ioError(op, rel string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tree: %s %s: %w: %w", op, rel, apperr.ErrTransientIO, err)
	}
	return fmt.Errorf("tree: %s %s: %w", op, rel, err)
}
