package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/dirtools/internal/archive"
	"github.com/starford/dirtools/internal/storage"
	"github.com/starford/dirtools/internal/testutil"
	"github.com/starford/dirtools/internal/treeservice"
)

// testEnv sets up the fixture tree, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode; a non-empty one means token mode.
func testEnv(t *testing.T, authToken string) (*storage.FS, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*storage.FS, http.Handler) {
	t.Helper()
	store := testutil.FixtureTree(t)
	db := testutil.TestDB(t)
	svc := treeservice.New(store, db, treeservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return store, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestFilesEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/files?pattern=file*")
	if w.Code != http.StatusOK {
		t.Fatalf("files = %d, body = %s", w.Code, w.Body.String())
	}
	var resp FilesResponse
	decode(t, w, &resp)
	want := []string{"dir1/subdir1/file_subdir1", "dir2/file_dir2", "file1", "file2", "file3.py"}
	if !reflect.DeepEqual(resp.Files, want) {
		t.Errorf("files = %v, want %v", resp.Files, want)
	}
	if resp.Root != testutil.FixtureRoot {
		t.Errorf("root = %q", resp.Root)
	}
}

func TestSubdirsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/subdirs")
	var resp SubdirsResponse
	decode(t, w, &resp)
	if !reflect.DeepEqual(resp.Subdirs, []string{"dir1", "dir1/subdir1", "dir2"}) {
		t.Errorf("subdirs = %v", resp.Subdirs)
	}
}

func TestProjectsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/projects?marker=.project")
	if w.Code != http.StatusOK {
		t.Fatalf("projects = %d", w.Code)
	}
	var resp ProjectsResponse
	decode(t, w, &resp)
	if !reflect.DeepEqual(resp.Projects, []string{"dir1/subdir1"}) {
		t.Errorf("projects = %v", resp.Projects)
	}

	if w := do(t, router, http.MethodGet, "/projects"); w.Code != http.StatusBadRequest {
		t.Errorf("projects without marker = %d, want 400", w.Code)
	}
}

func TestExcludedEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	cases := map[string]bool{
		"file3.pyc":    true,
		"excluded_dir": true,
		"file1":        false,
	}
	for p, want := range cases {
		w := do(t, router, http.MethodGet, "/excluded?path="+p)
		var resp ExcludedResponse
		decode(t, w, &resp)
		if resp.Excluded != want {
			t.Errorf("excluded(%s) = %v, want %v", p, resp.Excluded, want)
		}
	}
	if w := do(t, router, http.MethodGet, "/excluded"); w.Code != http.StatusBadRequest {
		t.Errorf("excluded without path = %d, want 400", w.Code)
	}
}

func TestHashEndpoint(t *testing.T) {
	store, router := testEnv(t, "")

	var first, second HashResult
	decode(t, do(t, router, http.MethodGet, "/hash"), &first)
	_ = store.Write("file1", []byte("changed"), 0o644)
	decode(t, do(t, router, http.MethodGet, "/hash"), &second)

	if first.Digest == "" || first.Digest == second.Digest {
		t.Errorf("digests = %q, %q", first.Digest, second.Digest)
	}
	if first.FileCount != 7 || first.Algorithm != "sha256" {
		t.Errorf("hash = %+v", first)
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	store, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/snapshots")
	if w.Code != http.StatusCreated {
		t.Fatalf("take = %d, body = %s", w.Code, w.Body.String())
	}
	var first SnapshotResult
	decode(t, w, &first)

	_ = store.Write("new_file", []byte("dir state"), 0o644)
	_ = store.DeleteAll("dir2")

	// Diff against the live tree.
	w = do(t, router, http.MethodGet, "/diff?older="+strconv.FormatInt(first.Snapshot.ID, 10))
	if w.Code != http.StatusOK {
		t.Fatalf("live diff = %d, body = %s", w.Code, w.Body.String())
	}
	var live DiffResult
	decode(t, w, &live)
	if !reflect.DeepEqual(live.Diff.Created, []string{"new_file"}) ||
		!reflect.DeepEqual(live.Diff.DeletedDirs, []string{"dir2"}) {
		t.Errorf("live diff = %+v", live.Diff)
	}

	var second SnapshotResult
	decode(t, do(t, router, http.MethodPost, "/snapshots"), &second)
	if second.PreviousID != first.Snapshot.ID || second.Summary.Deleted != 1 {
		t.Errorf("second = %+v", second)
	}

	target := "/diff?older=" + strconv.FormatInt(first.Snapshot.ID, 10) + "&newer=" + strconv.FormatInt(second.Snapshot.ID, 10)
	var stored DiffResult
	decode(t, do(t, router, http.MethodGet, target), &stored)
	if !reflect.DeepEqual(stored.Diff, live.Diff) {
		t.Errorf("stored diff = %+v, want %+v", stored.Diff, live.Diff)
	}

	var list SnapshotListResponse
	decode(t, do(t, router, http.MethodGet, "/snapshots?limit=10"), &list)
	if len(list.Snapshots) != 2 || list.Snapshots[0].ID != second.Snapshot.ID {
		t.Errorf("list = %+v", list)
	}

	idPath := "/snapshots/" + strconv.FormatInt(first.Snapshot.ID, 10)
	var info SnapshotInfo
	decode(t, do(t, router, http.MethodGet, idPath), &info)
	if info.TreeDigest != first.Snapshot.TreeDigest {
		t.Errorf("info = %+v", info)
	}

	if w := do(t, router, http.MethodDelete, idPath); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodGet, idPath); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, idPath); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestSnapshotBadRequests(t *testing.T) {
	_, router := testEnv(t, "")

	for _, target := range []string{"/snapshots/abc", "/snapshots/0", "/diff", "/diff?older=x", "/diff?older=1&newer=-2"} {
		if w := do(t, router, http.MethodGet, target); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", target, w.Code)
		}
	}
	if w := do(t, router, http.MethodGet, "/diff?older=99"); w.Code != http.StatusNotFound {
		t.Errorf("diff against missing snapshot = %d, want 404", w.Code)
	}
}

func TestArchiveEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/archive")
	if w.Code != http.StatusOK {
		t.Fatalf("archive = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/gzip" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "test_dirtools-") {
		t.Errorf("content disposition = %q", cd)
	}

	dst := storage.NewMemFS("/restored")
	if err := archive.Extract(bytes.NewReader(w.Body.Bytes()), dst); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := dst.Read("dir1/subdir1/file_subdir1")
	if err != nil || string(data) != "inside subdir1" {
		t.Errorf("restored = %q, %v", data, err)
	}
	if _, err := dst.Stat("file3.pyc"); err == nil {
		t.Error("excluded file archived")
	}
}

func TestInvalidRootConflict(t *testing.T) {
	dir, store := testutil.TestStore(t)
	svc := treeservice.New(store, nil, treeservice.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	router := NewRouter(svc, false, "", nil)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	if w := do(t, router, http.MethodGet, "/files"); w.Code != http.StatusConflict {
		t.Errorf("files on missing root = %d, want 409", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/snapshots"); w.Code != http.StatusBadRequest {
		t.Errorf("snapshot without index = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/snapshots", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed snapshot = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/files"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/files"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// sseStub writes headers and blocks until the request context is done.
var sseStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", sseStub)

	// No token → 401.
	if w := do(t, router, http.MethodGet, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	_, router := testEnvWithSSE(t, false, "", sseStub)

	// Disabled mode → should not 401. The stub blocks, so cancel shortly.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", sseStub)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
