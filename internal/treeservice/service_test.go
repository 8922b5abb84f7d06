package treeservice_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/archive"
	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/models"
	"github.com/starford/dirtools/internal/storage"
	"github.com/starford/dirtools/internal/testutil"
	"github.com/starford/dirtools/internal/treeservice"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, opts ...treeservice.Option) (*treeservice.Service, *storage.FS) {
	t.Helper()
	store := testutil.FixtureTree(t)
	db := testutil.TestDB(t)
	opts = append([]treeservice.Option{treeservice.WithLogger(discard())}, opts...)
	return treeservice.New(store, db, opts...), store
}

func TestQueries(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	files, err := svc.Files(ctx, "")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 7 {
		t.Errorf("Files = %v, want 7 entries", files)
	}
	py, _ := svc.Files(ctx, "*.py")
	if !reflect.DeepEqual(py, []string{"file3.py"}) {
		t.Errorf("Files(*.py) = %v", py)
	}
	subdirs, _ := svc.Subdirs(ctx, "")
	if !reflect.DeepEqual(subdirs, []string{"dir1", "dir1/subdir1", "dir2"}) {
		t.Errorf("Subdirs = %v", subdirs)
	}
	projects, _ := svc.Projects(ctx, ".project")
	if !reflect.DeepEqual(projects, []string{"dir1/subdir1"}) {
		t.Errorf("Projects = %v", projects)
	}
	if _, err := svc.Projects(ctx, ""); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("Projects(\"\") err = %v", err)
	}
	if ex, _ := svc.Excluded(ctx, "excluded_dir/"); !ex {
		t.Error("excluded_dir/ should be excluded")
	}
	if ex, _ := svc.Excluded(ctx, "file1"); ex {
		t.Error("file1 should not be excluded")
	}
}

func TestExcludeFileReloaded(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	if ex, _ := svc.Excluded(ctx, "file1"); ex {
		t.Fatal("file1 excluded before rule change")
	}
	_ = store.Write(".exclude", []byte("file1\n"), 0o644)
	if ex, _ := svc.Excluded(ctx, "file1"); !ex {
		t.Error("rule change not picked up")
	}
}

func TestHash(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.Hash(ctx)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if first.Algorithm != "sha256" || first.FileCount != 7 || first.Root != testutil.FixtureRoot {
		t.Errorf("Hash = %+v", first)
	}
	_ = store.Write("file3.pyc", []byte("changed"), 0o644)
	second, _ := svc.Hash(ctx)
	if second.Digest != first.Digest {
		t.Error("excluded file changed the hash")
	}
	_ = store.Write("file2", []byte("changed"), 0o644)
	third, _ := svc.Hash(ctx)
	if third.Digest == first.Digest {
		t.Error("hash did not change after edit")
	}

	xsvc, _ := newService(t, treeservice.WithAlgorithm(checksum.XXH3))
	xh, _ := xsvc.Hash(ctx)
	if xh.Algorithm != "xxh3" || len(xh.Digest) != 64 {
		t.Errorf("xxh3 Hash = %+v", xh)
	}
}

func TestTakeSnapshotAndDiff(t *testing.T) {
	var events []models.SnapshotResult
	svc, store := newService(t, treeservice.WithOnSnapshot(func(r models.SnapshotResult) {
		events = append(events, r)
	}))
	ctx := context.Background()

	first, err := svc.TakeSnapshot(ctx)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if first.PreviousID != 0 || first.Summary.Created != 7 {
		t.Errorf("first = %+v", first)
	}

	_ = store.Write("dir1/subdir1/file_subdir1", []byte("dir state"), 0o644)
	_ = store.Write("new_file", []byte("dir state"), 0o644)
	_ = store.Delete("file1")
	_ = store.DeleteAll("dir2")

	live, err := svc.DiffCurrent(ctx, first.Snapshot.ID)
	if err != nil {
		t.Fatalf("DiffCurrent: %v", err)
	}
	wantDirs := []string{"dir2"}
	if !reflect.DeepEqual(live.Diff.DeletedDirs, wantDirs) || live.Newer != 0 {
		t.Errorf("DiffCurrent = %+v", live)
	}

	second, err := svc.TakeSnapshot(ctx)
	if err != nil {
		t.Fatalf("TakeSnapshot: %v", err)
	}
	if second.PreviousID != first.Snapshot.ID {
		t.Errorf("PreviousID = %d, want %d", second.PreviousID, first.Snapshot.ID)
	}
	if !reflect.DeepEqual(second.Diff, live.Diff) {
		t.Errorf("recorded diff = %+v, want %+v", second.Diff, live.Diff)
	}

	stored, err := svc.Diff(ctx, second.Snapshot.ID, first.Snapshot.ID)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !reflect.DeepEqual(stored.Diff.Created, []string{"new_file"}) ||
		!reflect.DeepEqual(stored.Diff.Deleted, []string{"dir2/file_dir2", "file1"}) ||
		!reflect.DeepEqual(stored.Diff.Updated, []string{"dir1/subdir1/file_subdir1"}) {
		t.Errorf("Diff = %+v", stored.Diff)
	}

	if len(events) != 2 || events[1].Snapshot.ID != second.Snapshot.ID {
		t.Errorf("callback events = %+v", events)
	}
}

func TestSnapshotCatalog(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, _ := svc.TakeSnapshot(ctx)
	b, _ := svc.TakeSnapshot(ctx)

	list, err := svc.ListSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 2 || list[0].ID != b.Snapshot.ID || list[1].ID != a.Snapshot.ID {
		t.Errorf("ListSnapshots = %+v", list)
	}

	got, err := svc.GetSnapshot(ctx, a.Snapshot.ID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got.TreeDigest != a.Snapshot.TreeDigest || got.FileCount != 7 {
		t.Errorf("GetSnapshot = %+v", got)
	}

	if err := svc.DeleteSnapshot(ctx, a.Snapshot.ID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if _, err := svc.GetSnapshot(ctx, a.Snapshot.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("after delete err = %v", err)
	}
	if _, err := svc.Diff(ctx, b.Snapshot.ID, a.Snapshot.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Diff against deleted err = %v", err)
	}
}

func TestDiffAlgorithmMismatch(t *testing.T) {
	store := testutil.FixtureTree(t)
	db := testutil.TestDB(t)
	ctx := context.Background()

	shaSvc := treeservice.New(store, db, treeservice.WithLogger(discard()))
	xxSvc := treeservice.New(store, db, treeservice.WithLogger(discard()), treeservice.WithAlgorithm(checksum.XXH3))

	a, _ := shaSvc.TakeSnapshot(ctx)
	b, _ := xxSvc.TakeSnapshot(ctx)
	if _, err := shaSvc.Diff(ctx, b.Snapshot.ID, a.Snapshot.ID); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	live, err := shaSvc.DiffCurrent(ctx, b.Snapshot.ID)
	if err != nil {
		t.Fatalf("DiffCurrent: %v", err)
	}
	if !live.Diff.Empty() {
		t.Errorf("DiffCurrent against xxh3 snapshot = %+v", live)
	}
}

func TestWithoutIndex(t *testing.T) {
	svc := treeservice.New(testutil.FixtureTree(t), nil, treeservice.WithLogger(discard()))
	if _, err := svc.TakeSnapshot(context.Background()); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := svc.Hash(context.Background()); err != nil {
		t.Errorf("Hash without index: %v", err)
	}
}

func TestArchive(t *testing.T) {
	svc, _ := newService(t, treeservice.WithArchiveDir(t.TempDir()))
	ctx := context.Background()

	var buf bytes.Buffer
	if err := svc.WriteArchive(ctx, &buf); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}
	dst := storage.NewMemFS("/restored")
	if err := archive.Extract(&buf, dst); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := dst.Read("dir2/file_dir2")
	if err != nil || string(data) != "inside dir2" {
		t.Errorf("restored file = %q, %v", data, err)
	}

	out, err := svc.Compress(ctx, "")
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if filepath.Ext(out) != ".gz" {
		t.Errorf("archive path = %s", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("archive missing: %v", err)
	}
}

func TestInvalidRoot(t *testing.T) {
	dir, store := testutil.TestStore(t)
	svc := treeservice.New(store, nil, treeservice.WithLogger(discard()))
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := svc.Ready(context.Background()); !errors.Is(err, apperr.ErrInvalidRoot) {
		t.Errorf("Ready err = %v, want ErrInvalidRoot", err)
	}
	if _, err := svc.Files(context.Background(), ""); !errors.Is(err, apperr.ErrInvalidRoot) {
		t.Errorf("err = %v, want ErrInvalidRoot", err)
	}
}
