// Package snapshot captures the filtered file set of a tree with per-file
// digests and compares two captures.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/starford/dirtools/internal/checksum"
	"github.com/starford/dirtools/internal/tree"
)

// Snapshot maps RelativePaths of files to their digests at one point in
// time. It is immutable once built.
type Snapshot struct {
	root      string
	algorithm checksum.Algorithm
	takenAt   time.Time
	state     map[string]checksum.Digest
}

// Take hashes every non-excluded file of d. No partial Snapshot is returned
// when any file fails.
func Take(d *tree.Dir, alg checksum.Algorithm) (*Snapshot, error) {
	entries, err := d.Digests(alg)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	state := make(map[string]checksum.Digest, len(entries))
	for _, e := range entries {
		state[e.Path] = e.Digest
	}
	return &Snapshot{
		root:      d.Root(),
		algorithm: alg,
		takenAt:   time.Now().UTC(),
		state:     state,
	}, nil
}

// FromState rebuilds a Snapshot from a stored mapping. The mapping is copied.
func FromState(root string, alg checksum.Algorithm, takenAt time.Time, state map[string]checksum.Digest) *Snapshot {
	return &Snapshot{
		root:      root,
		algorithm: alg,
		takenAt:   takenAt,
		state:     copyState(state),
	}
}

// Root returns the root the snapshot was taken from.
func (s *Snapshot) Root() string { return s.root }

// Algorithm returns the hash algorithm used for the digests.
func (s *Snapshot) Algorithm() checksum.Algorithm { return s.algorithm }

// TakenAt returns the capture time.
func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

// Len returns the number of files.
func (s *Snapshot) Len() int { return len(s.state) }

// State returns a copy of the path → digest mapping.
func (s *Snapshot) State() map[string]checksum.Digest {
	return copyState(s.state)
}

// Lookup returns the digest recorded for rel.
func (s *Snapshot) Lookup(rel string) (checksum.Digest, bool) {
	d, ok := s.state[rel]
	return d, ok
}

// Paths returns the recorded file paths, sorted.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.state))
	for p := range s.state {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Entries returns the recorded pairs in path order.
func (s *Snapshot) Entries() []checksum.Entry {
	paths := s.Paths()
	out := make([]checksum.Entry, len(paths))
	for i, p := range paths {
		out[i] = checksum.Entry{Path: p, Digest: s.state[p]}
	}
	return out
}

// Digest returns the aggregate digest of the snapshot. It equals
// tree.Dir.Hash for the same tree and algorithm.
func (s *Snapshot) Digest() checksum.Digest {
	return checksum.Combine(s.algorithm, s.Entries())
}

// Diff compares s, the newer capture, against older.
func (s *Snapshot) Diff(older *Snapshot) Diff {
	return Compute(s.state, older.state)
}

func copyState(in map[string]checksum.Digest) map[string]checksum.Digest {
	out := make(map[string]checksum.Digest, len(in))
	for p, d := range in {
		out[p] = append(checksum.Digest(nil), d...)
	}
	return out
}
