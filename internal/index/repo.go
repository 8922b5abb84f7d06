package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/snapshot"
)

// SnapshotRow represents a row in the snapshots table.
type SnapshotRow struct {
	ID         int64     `json:"id"`
	Root       string    `json:"root"`
	Algorithm  string    `json:"algorithm"`
	TreeDigest string    `json:"tree_digest"`
	FileCount  int       `json:"file_count"`
	TakenAt    time.Time `json:"taken_at"`
}

// SaveSnapshot stores s and its file digests within a transaction and
// returns the new snapshot id.
func (db *DB) SaveSnapshot(s *snapshot.Snapshot) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO snapshots (root, algorithm, tree_digest, file_count, taken_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.Root(), s.Algorithm().Name, s.Digest().String(), s.Len(), s.TakenAt().UTC())
	if err != nil {
		return 0, fmt.Errorf("index: insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO snapshot_files (snapshot_id, path, digest) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("index: prepare file insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range s.Entries() {
		if _, err := stmt.Exec(id, e.Path, e.Digest.String()); err != nil {
			return 0, fmt.Errorf("index: insert file %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit: %w", err)
	}
	return id, nil
}

// GetSnapshot loads the snapshot with the given id.
func (db *DB) GetSnapshot(id int64) (*snapshot.Snapshot, *SnapshotRow, error) {
	row, err := db.snapshotRow(`WHERE id = ?`, id)
	if err != nil {
		return nil, nil, err
	}
	s, err := db.load(row)
	if err != nil {
		return nil, nil, err
	}
	return s, row, nil
}

// LatestSnapshot loads the most recent snapshot recorded for root.
func (db *DB) LatestSnapshot(root string) (*snapshot.Snapshot, *SnapshotRow, error) {
	row, err := db.snapshotRow(`WHERE root = ? ORDER BY id DESC LIMIT 1`, root)
	if err != nil {
		return nil, nil, err
	}
	s, err := db.load(row)
	if err != nil {
		return nil, nil, err
	}
	return s, row, nil
}

// ListSnapshots returns snapshot rows, newest first. An empty root lists
// every root; limit <= 0 means 50.
func (db *DB) ListSnapshots(root string, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, root, algorithm, tree_digest, file_count, taken_at FROM snapshots`
	args := []any{}
	if root != "" {
		query += ` WHERE root = ?`
		args = append(args, root)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotRow{}
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.ID, &r.Root, &r.Algorithm, &r.TreeDigest, &r.FileCount, &r.TakenAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSnapshot removes a snapshot and its file rows.
func (db *DB) DeleteSnapshot(id int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM snapshot_files WHERE snapshot_id = ?`, id)
	res, err := tx.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("index: delete snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("index: snapshot %d: %w", id, apperr.ErrNotFound)
	}
	return tx.Commit()
}

func (db *DB) snapshotRow(where string, args ...any) (*SnapshotRow, error) {
	var r SnapshotRow
	err := db.conn.QueryRow(`SELECT id, root, algorithm, tree_digest, file_count, taken_at FROM snapshots `+where, args...).
		Scan(&r.ID, &r.Root, &r.Algorithm, &r.TreeDigest, &r.FileCount, &r.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("index: snapshot: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("index: get snapshot: %w", err)
	}
	return &r, nil
}

func (db *DB) load(row *SnapshotRow) (*snapshot.Snapshot, error) {
	alg, err := checksum.Lookup(row.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("index: snapshot %d: %w", row.ID, err)
	}

	rows, err := db.conn.Query(`SELECT path, digest FROM snapshot_files WHERE snapshot_id = ?`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("index: snapshot files: %w", err)
	}
	defer rows.Close()

	state := make(map[string]checksum.Digest, row.FileCount)
	for rows.Next() {
		var p, hexDigest string
		if err := rows.Scan(&p, &hexDigest); err != nil {
			return nil, err
		}
		d, err := checksum.ParseHex(hexDigest)
		if err != nil {
			return nil, fmt.Errorf("index: snapshot %d %s: %w", row.ID, p, err)
		}
		state[p] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot.FromState(row.Root, alg, row.TakenAt, state), nil
}
