package snapshot

import (
	"path"
	"sort"

	"github.com/starford/dirtools/internal/checksum"
)

// Diff is the change set between two snapshots. Each list is sorted.
type Diff struct {
	Created     []string `json:"created"`
	Deleted     []string `json:"deleted"`
	Updated     []string `json:"updated"`
	DeletedDirs []string `json:"deleted_dirs"`
}

// Summary holds the size of each Diff list.
type Summary struct {
	Created     int `json:"created"`
	Deleted     int `json:"deleted"`
	Updated     int `json:"updated"`
	DeletedDirs int `json:"deleted_dirs"`
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Created) == 0 && len(d.Deleted) == 0 && len(d.Updated) == 0 && len(d.DeletedDirs) == 0
}

// Summary counts the entries of d.
func (d Diff) Summary() Summary {
	return Summary{
		Created:     len(d.Created),
		Deleted:     len(d.Deleted),
		Updated:     len(d.Updated),
		DeletedDirs: len(d.DeletedDirs),
	}
}

// Compute diffs two raw states. A directory lands in DeletedDirs when a
// deleted file lived under it and no file under it remains in newer.
//
// Both states must come from the same rule set; this is not checked.
func Compute(newer, older map[string]checksum.Digest) Diff {
	d := Diff{
		Created:     []string{},
		Deleted:     []string{},
		Updated:     []string{},
		DeletedDirs: []string{},
	}

	for p, sum := range newer {
		prev, ok := older[p]
		switch {
		case !ok:
			d.Created = append(d.Created, p)
		case !sum.Equal(prev):
			d.Updated = append(d.Updated, p)
		}
	}

	live := make(map[string]struct{})
	for p := range newer {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if _, ok := live[dir]; ok {
				break
			}
			live[dir] = struct{}{}
		}
	}

	gone := make(map[string]struct{})
	for p := range older {
		if _, ok := newer[p]; ok {
			continue
		}
		d.Deleted = append(d.Deleted, p)
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			if _, ok := live[dir]; ok {
				break
			}
			gone[dir] = struct{}{}
		}
	}
	for dir := range gone {
		d.DeletedDirs = append(d.DeletedDirs, dir)
	}

	sort.Strings(d.Created)
	sort.Strings(d.Deleted)
	sort.Strings(d.Updated)
	sort.Strings(d.DeletedDirs)
	return d
}
