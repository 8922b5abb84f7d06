package api

import "github.com/starford/dirtools/internal/models"

// FilesResponse lists the files matching a pattern.
type FilesResponse struct {
	Root  string   `json:"root" example:"/srv/project" validate:"required"`
	Files []string `json:"files" example:"dir1/file1,file2" validate:"required"`
}

// SubdirsResponse lists the directories matching a pattern.
type SubdirsResponse struct {
	Root    string   `json:"root" example:"/srv/project" validate:"required"`
	Subdirs []string `json:"subdirs" example:"dir1,dir1/subdir1" validate:"required"`
}

// ProjectsResponse lists directories holding a marker file.
type ProjectsResponse struct {
	Marker   string   `json:"marker" example:".project" validate:"required"`
	Projects []string `json:"projects" example:"dir1/subdir1" validate:"required"`
}

// ExcludedResponse reports whether a path is excluded.
type ExcludedResponse struct {
	Path     string `json:"path" example:"build/out.o" validate:"required"`
	Excluded bool   `json:"excluded" example:"true"`
}

// SnapshotListResponse wraps snapshot listings.
type SnapshotListResponse struct {
	Snapshots []SnapshotInfo `json:"snapshots" validate:"required"`
}

// SnapshotInfo is the snapshot metadata response type (aliased from the domain layer).
type SnapshotInfo = models.SnapshotInfo

// SnapshotResult is returned by POST /snapshots (aliased from the domain layer).
type SnapshotResult = models.SnapshotResult

// DiffResult is returned by GET /diff (aliased from the domain layer).
type DiffResult = models.DiffResult

// HashResult is returned by GET /hash (aliased from the domain layer).
type HashResult = models.HashResult
