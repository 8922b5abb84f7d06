// Package treeservice coordinates tree queries, snapshot recording and
// archiving for one configured root.
package treeservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/archive"
	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/ignore"
	"github.com/starford/dirtools/internal/index"
	"github.com/starford/dirtools/internal/models"
	"github.com/starford/dirtools/internal/snapshot"
	"github.com/starford/dirtools/internal/storage"
	"github.com/starford/dirtools/internal/tree"
)

// Option configures a Service.
type Option func(*Service)

// WithAlgorithm sets the hash algorithm used for hashes and snapshots.
func WithAlgorithm(alg checksum.Algorithm) Option {
	return func(s *Service) { s.alg = alg }
}

// WithExcludeFile sets the name of the ignore-rule file inside the root.
func WithExcludeFile(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.excludeFile = name
		}
	}
}

// WithArchiveDir sets the directory default archives are written to.
func WithArchiveDir(dir string) Option {
	return func(s *Service) { s.archiveDir = dir }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnSnapshot registers a callback invoked after each recorded snapshot.
func WithOnSnapshot(fn func(models.SnapshotResult)) Option {
	return func(s *Service) { s.onSnapshot = fn }
}

// Service coordinates storage, tree and index operations.
type Service struct {
	store       storage.Provider
	db          index.SnapshotIndex
	alg         checksum.Algorithm
	excludeFile string
	archiveDir  string
	logger      *slog.Logger
	onSnapshot  func(models.SnapshotResult)
	now         func() time.Time
}

// New creates a tree service over store. db may be nil, in which case the
// snapshot operations fail with apperr.ErrInvalidArgument.
func New(store storage.Provider, db index.SnapshotIndex, opts ...Option) *Service {
	s := &Service{
		store:       store,
		db:          db,
		alg:         checksum.Default,
		excludeFile: ignore.DefaultFile,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the root served by s.
func (s *Service) Root() string { return s.store.Root() }

// Algorithm returns the configured hash algorithm.
func (s *Service) Algorithm() checksum.Algorithm { return s.alg }

// dir builds a fresh tree.Dir so that ignore-file edits are seen.
func (s *Service) dir() (*tree.Dir, error) {
	return tree.New(s.store, tree.WithExcludeFile(s.excludeFile), tree.WithLogger(s.logger))
}

// Ready reports whether the root is a readable directory with loadable rules.
func (s *Service) Ready(_ context.Context) error {
	_, err := s.dir()
	return err
}

// Files lists non-excluded files whose basename matches pattern ("*" when empty).
func (s *Service) Files(_ context.Context, pattern string) ([]string, error) {
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	return d.Files(orAll(pattern))
}

// Subdirs lists non-excluded directories whose basename matches pattern.
func (s *Service) Subdirs(_ context.Context, pattern string) ([]string, error) {
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	return d.Subdirs(orAll(pattern))
}

// Projects lists directories holding a file named marker.
func (s *Service) Projects(_ context.Context, marker string) ([]string, error) {
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	return d.FindProjects(marker)
}

// Excluded reports whether rel is excluded by the current ignore rules.
func (s *Service) Excluded(_ context.Context, rel string) (bool, error) {
	d, err := s.dir()
	if err != nil {
		return false, err
	}
	return d.IsExcluded(rel), nil
}

// Hash computes the aggregate digest of the live tree.
func (s *Service) Hash(_ context.Context) (*models.HashResult, error) {
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	entries, err := d.Digests(s.alg)
	if err != nil {
		return nil, err
	}
	return &models.HashResult{
		Root:      d.Root(),
		Algorithm: s.alg.Name,
		Digest:    checksum.Combine(s.alg, entries).String(),
		FileCount: len(entries),
	}, nil
}

// TakeSnapshot snapshots the live tree, records it and diffs it against the
// previous snapshot of the same root.
func (s *Service) TakeSnapshot(ctx context.Context) (*models.SnapshotResult, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	rec, err := index.Record(s.db, d, s.alg, s.logger)
	if err != nil {
		return nil, err
	}

	res := models.SnapshotResult{
		Snapshot: models.SnapshotInfo{
			ID:         rec.ID,
			Root:       rec.Snapshot.Root(),
			Algorithm:  rec.Snapshot.Algorithm().Name,
			TreeDigest: rec.Snapshot.Digest().String(),
			FileCount:  rec.Snapshot.Len(),
			TakenAt:    rec.Snapshot.TakenAt(),
		},
		PreviousID: rec.PreviousID,
		Diff:       rec.Diff,
		Summary:    rec.Diff.Summary(),
	}
	s.logger.Info("snapshot recorded",
		slog.Int64("id", rec.ID),
		slog.String("root", res.Snapshot.Root),
		slog.Int("files", res.Snapshot.FileCount),
	)
	if s.onSnapshot != nil {
		s.onSnapshot(res)
	}
	return &res, nil
}

// ListSnapshots returns the snapshots recorded for the served root, newest first.
func (s *Service) ListSnapshots(_ context.Context, limit int) ([]models.SnapshotInfo, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}
	rows, err := s.db.ListSnapshots(s.store.Root(), limit)
	if err != nil {
		return nil, err
	}
	items := make([]models.SnapshotInfo, len(rows))
	for i, r := range rows {
		items[i] = info(r)
	}
	return items, nil
}

// GetSnapshot returns the metadata of one snapshot.
func (s *Service) GetSnapshot(_ context.Context, id int64) (*models.SnapshotInfo, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}
	_, row, err := s.db.GetSnapshot(id)
	if err != nil {
		return nil, err
	}
	out := info(*row)
	return &out, nil
}

// DeleteSnapshot removes a recorded snapshot.
func (s *Service) DeleteSnapshot(_ context.Context, id int64) error {
	if err := s.requireIndex(); err != nil {
		return err
	}
	return s.db.DeleteSnapshot(id)
}

// Diff compares two recorded snapshots.
func (s *Service) Diff(_ context.Context, newerID, olderID int64) (*models.DiffResult, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}
	older, _, err := s.db.GetSnapshot(olderID)
	if err != nil {
		return nil, err
	}
	newer, _, err := s.db.GetSnapshot(newerID)
	if err != nil {
		return nil, err
	}
	return compare(newer, older, newerID, olderID)
}

// DiffCurrent compares the live tree against a recorded snapshot. The live
// tree is hashed with the recorded snapshot's algorithm.
func (s *Service) DiffCurrent(_ context.Context, olderID int64) (*models.DiffResult, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}
	older, _, err := s.db.GetSnapshot(olderID)
	if err != nil {
		return nil, err
	}
	d, err := s.dir()
	if err != nil {
		return nil, err
	}
	live, err := snapshot.Take(d, older.Algorithm())
	if err != nil {
		return nil, err
	}
	return compare(live, older, 0, olderID)
}

// Compress writes a gzip tar archive of the live tree to dest, or to a
// generated path under the archive directory when dest is empty.
func (s *Service) Compress(_ context.Context, dest string) (string, error) {
	d, err := s.dir()
	if err != nil {
		return "", err
	}
	if dest == "" {
		dest = archive.DefaultPath(s.archiveDir, d.Root(), s.now())
	}
	out, err := archive.CompressTo(d, dest)
	if err != nil {
		return "", err
	}
	s.logger.Info("archive written", slog.String("path", out))
	return out, nil
}

// WriteArchive streams a gzip tar archive of the live tree to w.
func (s *Service) WriteArchive(_ context.Context, w io.Writer) error {
	d, err := s.dir()
	if err != nil {
		return err
	}
	return archive.Write(w, d)
}

func (s *Service) requireIndex() error {
	if s.db == nil {
		return fmt.Errorf("treeservice: snapshot index not configured: %w", apperr.ErrInvalidArgument)
	}
	return nil
}

func compare(newer, older *snapshot.Snapshot, newerID, olderID int64) (*models.DiffResult, error) {
	if newer.Algorithm().Name != older.Algorithm().Name {
		return nil, fmt.Errorf("treeservice: diff %s against %s: %w",
			newer.Algorithm().Name, older.Algorithm().Name, apperr.ErrInvalidArgument)
	}
	d := newer.Diff(older)
	return &models.DiffResult{
		Older:   olderID,
		Newer:   newerID,
		Diff:    d,
		Summary: d.Summary(),
	}, nil
}

func info(r index.SnapshotRow) models.SnapshotInfo {
	return models.SnapshotInfo{
		ID:         r.ID,
		Root:       r.Root,
		Algorithm:  r.Algorithm,
		TreeDigest: r.TreeDigest,
		FileCount:  r.FileCount,
		TakenAt:    r.TakenAt,
	}
}

func orAll(pattern string) string {
	if pattern == "" {
		return "*"
	}
	return pattern
}
