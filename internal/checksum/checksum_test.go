package checksum

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zeebo/xxh3"
)

func TestSumKnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %s, want %s", got, want)
	}
}

func TestAlgorithmSizes(t *testing.T) {
	cases := []struct {
		alg  Algorithm
		size int
	}{
		{SHA256, 32},
		{XXH3, 16},
	}
	for _, tc := range cases {
		d, err := tc.alg.Sum(strings.NewReader("contents1"))
		if err != nil {
			t.Fatalf("%s: Sum: %v", tc.alg.Name, err)
		}
		if len(d) != tc.size {
			t.Errorf("%s: len = %d, want %d", tc.alg.Name, len(d), tc.size)
		}
		if !d.Equal(tc.alg.SumBytes([]byte("contents1"))) {
			t.Errorf("%s: stream and byte digests differ", tc.alg.Name)
		}
	}
}

func TestXXH3Reset(t *testing.T) {
	h := XXH3.New()
	_, _ = h.Write([]byte("first"))
	h.Reset()
	_, _ = h.Write([]byte("second"))
	if !bytes.Equal(h.Sum(nil), XXH3.SumBytes([]byte("second"))) {
		t.Error("reset did not discard earlier input")
	}
}

func TestXXH3MatchesOneShot(t *testing.T) {
	data := bytes.Repeat([]byte("dirtools"), 1000)
	want := xxh3.Hash128(data).Bytes()
	got, err := XXH3.Sum(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want[:]) {
		t.Errorf("streamed = %x, want %x", got, want)
	}
}

func TestLookup(t *testing.T) {
	a, err := Lookup("")
	if err != nil || a.Name != "sha256" {
		t.Fatalf("empty lookup = %q, %v", a.Name, err)
	}
	a, err = Lookup("XXH3")
	if err != nil || a.Name != "xxh3" {
		t.Fatalf("xxh3 lookup = %q, %v", a.Name, err)
	}
	if _, err := Lookup("md5"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestCombineOrderIndependent(t *testing.T) {
	a := []Entry{
		{Path: "b", Digest: Digest{2}},
		{Path: "a", Digest: Digest{1}},
	}
	b := []Entry{a[1], a[0]}
	if !Combine(SHA256, a).Equal(Combine(SHA256, b)) {
		t.Error("Combine depends on input order")
	}
}

func TestCombineSensitive(t *testing.T) {
	base := []Entry{{Path: "a", Digest: Digest{1}}}
	changed := []Entry{{Path: "a", Digest: Digest{2}}}
	renamed := []Entry{{Path: "b", Digest: Digest{1}}}
	extra := append([]Entry{{Path: "c", Digest: Digest{3}}}, base...)

	ref := Combine(SHA256, base)
	for name, other := range map[string][]Entry{"changed": changed, "renamed": renamed, "extra": extra} {
		if ref.Equal(Combine(SHA256, other)) {
			t.Errorf("%s: aggregate digest unchanged", name)
		}
	}
}

func TestDigestText(t *testing.T) {
	d := Digest{0xde, 0xad}
	text, _ := d.MarshalText()
	if string(text) != "dead" {
		t.Fatalf("MarshalText = %s", text)
	}
	back, err := ParseHex("dead")
	if err != nil || !back.Equal(d) {
		t.Fatalf("ParseHex = %v, %v", back, err)
	}
	if _, err := ParseHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
