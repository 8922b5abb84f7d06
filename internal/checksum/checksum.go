// Package checksum provides the content-hash primitives and the digest
// fold used for whole-tree hashing.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// Digest is the fixed-size output of an Algorithm.
type Digest []byte

// String returns the lowercase hex form of d.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Equal reports whether d and other hold the same bytes.
func (d Digest) Equal(other Digest) bool {
	return bytes.Equal(d, other)
}

// MarshalText encodes d as hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("checksum: decode digest: %w", err)
	}
	*d = b
	return nil
}

// ParseHex decodes a hex digest.
func ParseHex(s string) (Digest, error) {
	var d Digest
	if err := d.UnmarshalText([]byte(s)); err != nil {
		return nil, err
	}
	return d, nil
}

// Algorithm is a named hash constructor.
type Algorithm struct {
	Name string
	New  func() hash.Hash
}

// Sum hashes everything readable from r.
func (a Algorithm) Sum(r io.Reader) (Digest, error) {
	h := a.New()
	if _, err := io.Copy(h, r); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// SumBytes hashes data.
func (a Algorithm) SumBytes(data []byte) Digest {
	h := a.New()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

var (
	SHA256 = Algorithm{Name: "sha256", New: sha256.New}
	XXH3   = Algorithm{Name: "xxh3", New: newXXH3}
)

// Default is used when no algorithm is configured.
var Default = SHA256

var algorithms = map[string]Algorithm{
	SHA256.Name: SHA256,
	XXH3.Name:   XXH3,
}

// Lookup returns the algorithm registered under name. An empty name yields Default.
func Lookup(name string) (Algorithm, error) {
	if name == "" {
		return Default, nil
	}
	a, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return Algorithm{}, fmt.Errorf("checksum: unknown algorithm %q", name)
	}
	return a, nil
}

// Names lists the registered algorithm names.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for n := range algorithms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	return SHA256.SumBytes(data).String()
}

// Entry pairs a relative path with the digest of its content.
type Entry struct {
	Path   string
	Digest Digest
}

// Combine folds entries into one aggregate digest. Entries are hashed in
// byte-wise path order as path, a NUL byte, then the digest, so the result
// does not depend on the order they were collected in.
func Combine(a Algorithm, entries []Entry) Digest {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := a.New()
	for _, e := range sorted {
		_, _ = io.WriteString(h, e.Path)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(e.Digest)
	}
	return h.Sum(nil)
}

// xxh3Hash streams into xxh3.Hasher and emits the 128-bit digest.
type xxh3Hash struct {
	*xxh3.Hasher
}

func newXXH3() hash.Hash { return xxh3Hash{xxh3.New()} }

func (x xxh3Hash) Size() int { return 16 }

func (x xxh3Hash) Sum(b []byte) []byte {
	sum := x.Sum128().Bytes()
	return append(b, sum[:]...)
}
