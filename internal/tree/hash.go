package tree

import (
	"github.com/starford/dirtools/internal/checksum"
)

// FileDigest hashes the content of the file at rel.
func (d *Dir) FileDigest(rel string, alg checksum.Algorithm) (checksum.Digest, error) {
	rc, err := d.store.Open(rel)
	if err != nil {
		return nil, ioError("open", rel, err)
	}
	defer rc.Close()

	sum, err := alg.Sum(rc)
	if err != nil {
		return nil, ioError("read", rel, err)
	}
	return sum, nil
}

// Digests hashes every non-excluded file, in sorted path order.
func (d *Dir) Digests(alg checksum.Algorithm) ([]checksum.Entry, error) {
	files, err := d.Files("")
	if err != nil {
		return nil, err
	}
	entries := make([]checksum.Entry, 0, len(files))
	for _, rel := range files {
		sum, err := d.FileDigest(rel, alg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, checksum.Entry{Path: rel, Digest: sum})
	}
	return entries, nil
}

// Hash returns the aggregate digest of the filtered tree. It depends only on
// the included paths and their bytes.
func (d *Dir) Hash(alg checksum.Algorithm) (checksum.Digest, error) {
	entries, err := d.Digests(alg)
	if err != nil {
		return nil, err
	}
	return checksum.Combine(alg, entries), nil
}
