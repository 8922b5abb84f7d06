// Package models defines the result types shared by the API and MCP surfaces.
package models

import (
	"time"

	"github.com/starford/dirtools/internal/snapshot"
)

// SnapshotInfo describes a recorded snapshot without its file digests.
type SnapshotInfo struct {
	ID         int64     `json:"id"`
	Root       string    `json:"root"`
	Algorithm  string    `json:"algorithm"`
	TreeDigest string    `json:"tree_digest"`
	FileCount  int       `json:"file_count"`
	TakenAt    time.Time `json:"taken_at"`
}

// SnapshotResult is returned after a snapshot has been taken and recorded.
type SnapshotResult struct {
	Snapshot SnapshotInfo `json:"snapshot"`
	// PreviousID is 0 when the snapshot is the first comparable one for its root.
	PreviousID int64            `json:"previous_id,omitempty"`
	Diff       snapshot.Diff    `json:"diff"`
	Summary    snapshot.Summary `json:"summary"`
}

// DiffResult compares two snapshots. Newer is 0 when the live tree was used.
type DiffResult struct {
	Older   int64            `json:"older"`
	Newer   int64            `json:"newer"`
	Diff    snapshot.Diff    `json:"diff"`
	Summary snapshot.Summary `json:"summary"`
}

// HashResult is the aggregate digest of a tree.
type HashResult struct {
	Root      string `json:"root"`
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
	FileCount int    `json:"file_count"`
}
