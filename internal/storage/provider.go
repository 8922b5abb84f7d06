// Package storage defines the file-system capability every tree component
// is constructed with.
package storage

import (
	"io"
	"io/fs"
)

// Provider is the interface for file operations under one root. All paths
// are forward-slash RelativePaths; the empty string names the root itself.
type Provider interface {
	// Root returns the location the provider is bound to.
	Root() string
	// Stat describes the entry at path.
	Stat(path string) (fs.FileInfo, error)
	// ReadDir lists the direct children of dir, sorted by name.
	ReadDir(dir string) ([]fs.FileInfo, error)
	// Open returns a reader for the file at path. Callers close it.
	Open(path string) (io.ReadCloser, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write creates or truncates path with content, creating parent directories.
	Write(path string, content []byte, perm fs.FileMode) error
	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string, perm fs.FileMode) error
	// Delete removes a file or an empty directory.
	Delete(path string) error
	// DeleteAll removes path and everything below it.
	DeleteAll(path string) error
}
