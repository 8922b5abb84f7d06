package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/dirtools/internal/archive"
	"github.com/starford/dirtools/internal/treeservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *treeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *treeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// snapshotID parses the {id} URL parameter.
func snapshotID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// Files handles GET /api/files.
//
//	@Summary		List non-excluded files
//	@Tags			tree
//	@Produce		json
//	@Param			pattern	query		string	false	"Basename glob"	default(*)
//	@Success		200		{object}	FilesResponse
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) Files(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Files(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, "list files", err)
		return
	}
	writeJSON(w, http.StatusOK, FilesResponse{Root: h.svc.Root(), Files: files})
}

// Subdirs handles GET /api/subdirs.
//
//	@Summary		List non-excluded directories
//	@Tags			tree
//	@Produce		json
//	@Param			pattern	query		string	false	"Basename glob"	default(*)
//	@Success		200		{object}	SubdirsResponse
//	@Security		BearerAuth
//	@Router			/subdirs [get]
func (h *Handler) Subdirs(w http.ResponseWriter, r *http.Request) {
	dirs, err := h.svc.Subdirs(r.Context(), r.URL.Query().Get("pattern"))
	if err != nil {
		writeError(w, "list subdirs", err)
		return
	}
	writeJSON(w, http.StatusOK, SubdirsResponse{Root: h.svc.Root(), Subdirs: dirs})
}

// Projects handles GET /api/projects.
//
//	@Summary		Find directories holding a marker file
//	@Tags			tree
//	@Produce		json
//	@Param			marker	query		string	true	"Marker file name"
//	@Success		200		{object}	ProjectsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	marker := r.URL.Query().Get("marker")
	if marker == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'marker' is required"))
		return
	}
	projects, err := h.svc.Projects(r.Context(), marker)
	if err != nil {
		writeError(w, "find projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectsResponse{Marker: marker, Projects: projects})
}

// Excluded handles GET /api/excluded.
//
//	@Summary		Check a path against the ignore rules
//	@Tags			tree
//	@Produce		json
//	@Param			path	query		string	true	"Relative path"
//	@Success		200		{object}	ExcludedResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/excluded [get]
func (h *Handler) Excluded(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	excluded, err := h.svc.Excluded(r.Context(), p)
	if err != nil {
		writeError(w, "check excluded", err)
		return
	}
	writeJSON(w, http.StatusOK, ExcludedResponse{Path: p, Excluded: excluded})
}

// Hash handles GET /api/hash.
//
//	@Summary		Aggregate digest of the tree
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	HashResult
//	@Security		BearerAuth
//	@Router			/hash [get]
func (h *Handler) Hash(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Hash(r.Context())
	if err != nil {
		writeError(w, "hash tree", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TakeSnapshot handles POST /api/snapshots.
//
//	@Summary		Take and record a snapshot
//	@Tags			snapshots
//	@Produce		json
//	@Success		201	{object}	SnapshotResult
//	@Security		BearerAuth
//	@Router			/snapshots [post]
func (h *Handler) TakeSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.TakeSnapshot(r.Context())
	if err != nil {
		writeError(w, "take snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListSnapshots handles GET /api/snapshots.
//
//	@Summary		List recorded snapshots, newest first
//	@Tags			snapshots
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	SnapshotListResponse
//	@Security		BearerAuth
//	@Router			/snapshots [get]
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, "list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotListResponse{Snapshots: items})
}

// GetSnapshot handles GET /api/snapshots/{id}.
//
//	@Summary		Get snapshot metadata
//	@Tags			snapshots
//	@Produce		json
//	@Param			id	path		int	true	"Snapshot id"
//	@Success		200	{object}	SnapshotInfo
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots/{id} [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := snapshotID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid snapshot id"))
		return
	}
	info, err := h.svc.GetSnapshot(r.Context(), id)
	if err != nil {
		writeError(w, "get snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteSnapshot handles DELETE /api/snapshots/{id}.
//
//	@Summary		Delete a snapshot
//	@Tags			snapshots
//	@Param			id	path	int	true	"Snapshot id"
//	@Success		204	"Snapshot deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots/{id} [delete]
func (h *Handler) DeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := snapshotID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid snapshot id"))
		return
	}
	if err := h.svc.DeleteSnapshot(r.Context(), id); err != nil {
		writeError(w, "delete snapshot", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Diff handles GET /api/diff.
//
//	@Summary		Diff two snapshots, or a snapshot against the live tree
//	@Tags			snapshots
//	@Produce		json
//	@Param			older	query		int	true	"Older snapshot id"
//	@Param			newer	query		int	false	"Newer snapshot id; live tree when omitted"
//	@Success		200		{object}	DiffResult
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/diff [get]
func (h *Handler) Diff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	older, err := strconv.ParseInt(q.Get("older"), 10, 64)
	if err != nil || older <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'older' must be a snapshot id"))
		return
	}

	var res *DiffResult
	if raw := q.Get("newer"); raw != "" {
		newer, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || newer <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'newer' must be a snapshot id"))
			return
		}
		res, err = h.svc.Diff(r.Context(), newer, older)
	} else {
		res, err = h.svc.DiffCurrent(r.Context(), older)
	}
	if err != nil {
		writeError(w, "diff snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Archive handles GET /api/archive. The archive is staged in a temporary
// file so that errors can still be reported with a status code.
//
//	@Summary		Download a gzip tar archive of the tree
//	@Tags			archive
//	@Produce		application/gzip
//	@Success		200	{file}		file
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archive [get]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	tmp, err := os.CreateTemp("", "dirtools-archive-*"+archive.Ext)
	if err != nil {
		writeError(w, "stage archive", err)
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := h.svc.WriteArchive(r.Context(), tmp); err != nil {
		writeError(w, "write archive", err)
		return
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		writeError(w, "rewind archive", err)
		return
	}

	now := time.Now()
	name := filepath.Base(archive.DefaultPath("", h.svc.Root(), now))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, now, tmp)
}
