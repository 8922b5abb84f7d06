package index

import "github.com/starford/dirtools/internal/snapshot"

// SnapshotIndex defines the interface for snapshot persistence.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SnapshotIndex interface {
	SaveSnapshot(s *snapshot.Snapshot) (int64, error)
	GetSnapshot(id int64) (*snapshot.Snapshot, *SnapshotRow, error)
	LatestSnapshot(root string) (*snapshot.Snapshot, *SnapshotRow, error)
	ListSnapshots(root string, limit int) ([]SnapshotRow, error)
	DeleteSnapshot(id int64) error
	Close() error
}

// Verify *DB satisfies SnapshotIndex at compile time.
var _ SnapshotIndex = (*DB)(nil)
