// Package testutil provides shared test helpers for building trees and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/dirtools/internal/index"
	"github.com/starford/dirtools/internal/storage"
)

// FixtureRoot is the Root name reported by FixtureTree.
const FixtureRoot = "/test_dirtools"

// FixtureFiles is the content of the reference tree used across packages.
var FixtureFiles = map[string]string{
	"file1":                      "contents1",
	"file2":                      "contents2",
	"file3.py":                   `print "ok"`,
	"file3.pyc":                  "",
	".exclude":                   "excluded_dir/\n*.pyc",
	"excluded_dir/excluded_file": "excluded",
	"dir1/subdir1/file_subdir1":  "inside subdir1",
	"dir1/subdir1/.project":      "",
	"dir2/file_dir2":             "inside dir2",
}

// FixtureTree returns an in-memory copy of the reference tree.
func FixtureTree(t *testing.T) *storage.FS {
	t.Helper()
	store := storage.NewMemFS(FixtureRoot)
	WriteFiles(t, store, FixtureFiles)
	return store
}

// WriteFiles writes every path → content pair into store with mode 0644.
func WriteFiles(t *testing.T, store storage.Provider, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := store.Write(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// CopyTree copies every entry of src into dst, keeping permission bits.
func CopyTree(t *testing.T, src, dst storage.Provider) {
	t.Helper()
	copyDir(t, src, dst, "")
}

func copyDir(t *testing.T, src, dst storage.Provider, dir string) {
	t.Helper()
	infos, err := src.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %q: %v", dir, err)
	}
	for _, info := range infos {
		rel := info.Name()
		if dir != "" {
			rel = dir + "/" + rel
		}
		if info.IsDir() {
			if err := dst.MkdirAll(rel, 0o755); err != nil {
				t.Fatalf("mkdir %s: %v", rel, err)
			}
			copyDir(t, src, dst, rel)
			continue
		}
		data, err := src.Read(rel)
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if err := dst.Write(rel, data, info.Mode().Perm()); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// TestStore creates a temporary directory with a disk-backed provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dirtools-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
