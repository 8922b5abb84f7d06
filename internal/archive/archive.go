// Package archive packs a filtered tree into a gzip-compressed tar stream and
// restores one.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/dirtools/internal/apperr"
	"github.com/starford/dirtools/internal/storage"
	"github.com/starford/dirtools/internal/tree"
)

// Ext is the extension of archives written by CompressTo.
const Ext = ".tar.gz"

// Write streams every non-excluded directory and file of d into w. Members
// are named by RelativePath and keep their permission bits.
func Write(w io.Writer, d *tree.Dir) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := d.Walk(func(rel string, info fs.FileInfo) error {
		if info.IsDir() {
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     rel + "/",
				Mode:     int64(info.Mode().Perm()),
				ModTime:  info.ModTime(),
			})
		}
		return writeFile(tw, d.Store(), rel, info)
	})
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archive: close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("archive: close gzip: %w", err)
	}
	return nil
}

func writeFile(tw *tar.Writer, store storage.Provider, rel string, info fs.FileInfo) error {
	rc, err := store.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("open %s: %w: %w", rel, apperr.ErrTransientIO, err)
		}
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer rc.Close()

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     rel,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("header %s: %w", rel, err)
	}
	n, err := io.Copy(tw, rc)
	if err != nil {
		return fmt.Errorf("copy %s: %w", rel, err)
	}
	if n != info.Size() {
		return fmt.Errorf("copy %s: size changed during read: %w", rel, apperr.ErrTransientIO)
	}
	return nil
}

// DefaultPath returns the archive location used when none is given:
// <dir>/<base of root>-<unix seconds>.tar.gz. An empty dir means os.TempDir.
func DefaultPath(dir, root string, now time.Time) string {
	if dir == "" {
		dir = os.TempDir()
	}
	base := filepath.Base(filepath.Clean(root))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "tree"
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, now.Unix(), Ext))
}

// CompressTo writes the archive of d to dest, or to DefaultPath when dest is
// empty, and returns the path written. A failed write removes the file.
func CompressTo(d *tree.Dir, dest string) (string, error) {
	if dest == "" {
		dest = DefaultPath("", d.Root(), time.Now())
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", dest, err)
	}

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(dest)
		}
	}()

	if err := Write(f, d); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("archive: close %s: %w", dest, err)
	}
	success = true
	return dest, nil
}

// Extract restores the archive read from r into dst. Corrupt input,
// unsupported member types and members escaping dst fail with
// apperr.ErrArchiveFormat; dst may then hold a partial tree.
func Extract(r io.Reader, dst storage.Provider) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("archive: %w: %w", apperr.ErrArchiveFormat, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: %w: %w", apperr.ErrArchiveFormat, err)
		}

		name, err := memberName(hdr.Name)
		if err != nil {
			return err
		}
		perm := fs.FileMode(hdr.Mode).Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			if name == "" {
				continue
			}
			if err := dst.MkdirAll(name, perm|0o700); err != nil {
				return fmt.Errorf("archive: %w", err)
			}
		case tar.TypeReg:
			data, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("archive: read %s: %w: %w", name, apperr.ErrArchiveFormat, err)
			}
			if err := dst.Write(name, data, perm); err != nil {
				return fmt.Errorf("archive: %w", err)
			}
		default:
			return fmt.Errorf("archive: %s: unsupported entry type %q: %w", hdr.Name, hdr.Typeflag, apperr.ErrArchiveFormat)
		}
	}
}

// ExtractFile restores the archive at archivePath into the existing
// directory destDir.
func ExtractFile(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", archivePath, err)
	}
	defer f.Close()

	dst, err := storage.NewFS(destDir)
	if err != nil {
		return fmt.Errorf("archive: %w: %w", apperr.ErrInvalidRoot, err)
	}
	return Extract(f, dst)
}

// memberName validates a tar member name and returns it as a RelativePath.
func memberName(name string) (string, error) {
	cleaned := path.Clean(strings.TrimSuffix(name, "/"))
	if cleaned == "." {
		return "", nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive: member %q escapes destination: %w", name, apperr.ErrArchiveFormat)
	}
	return cleaned, nil
}
