package index

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/snapshot"
	"github.com/starford/dirtools/internal/tree"
)

// Recorded is the outcome of Record.
type Recorded struct {
	ID       int64
	Snapshot *snapshot.Snapshot
	// PreviousID is 0 when no comparable snapshot existed for the root.
	PreviousID int64
	Diff       snapshot.Diff
}

// Record takes a snapshot of d, compares it to the latest stored snapshot
// of the same root and stores it. A previous snapshot taken with another
// algorithm is not comparable and is ignored.
func Record(db SnapshotIndex, d *tree.Dir, alg checksum.Algorithm, logger *slog.Logger) (*Recorded, error) {
	current, err := snapshot.Take(d, alg)
	if err != nil {
		return nil, err
	}

	out := &Recorded{Snapshot: current}
	prev, prevRow, err := db.LatestSnapshot(d.Root())
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		out.Diff = current.Diff(snapshot.FromState(d.Root(), alg, current.TakenAt(), nil))
	case err != nil:
		return nil, err
	case prevRow.Algorithm != alg.Name:
		logger.Debug("record: previous snapshot uses another algorithm",
			slog.Int64("previous", prevRow.ID), slog.String("algorithm", prevRow.Algorithm))
		out.Diff = current.Diff(snapshot.FromState(d.Root(), alg, current.TakenAt(), nil))
	default:
		out.PreviousID = prevRow.ID
		out.Diff = current.Diff(prev)
	}

	id, err := db.SaveSnapshot(current)
	if err != nil {
		return nil, fmt.Errorf("index: record: %w", err)
	}
	out.ID = id

	sum := out.Diff.Summary()
	logger.Debug("record: snapshot stored",
		slog.Int64("id", id),
		slog.String("root", d.Root()),
		slog.Int("files", current.Len()),
		slog.Int("created", sum.Created),
		slog.Int("deleted", sum.Deleted),
		slog.Int("updated", sum.Updated),
	)
	return out, nil
}
