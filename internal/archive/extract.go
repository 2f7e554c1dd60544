// Package archive downloads remote archives and expands them into local
// directories.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/klauern/kagglesync/internal/logging"
)

// Format identifies the payload type of a staged download.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatSingle Format = "file"
)

var (
	zipMagic      = []byte("PK\x03\x04")
	zipEmptyMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// errNotTar marks a gzip payload whose content is not a tar stream.
var errNotTar = errors.New("not a tar stream")

// DetectFormat sniffs the leading bytes of the file at path.
func DetectFormat(path string) (Format, error) {
	// #nosec G304 - path is a staging file we created
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, zipEmptyMagic):
		return FormatZip, nil
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz, nil
	default:
		return FormatSingle, nil
	}
}

// Extract expands the staged file at src into dest and returns the relative
// paths written. Archives are expanded directly into dest; any other payload
// is moved to dest/name unchanged. Existing files with the same relative
// path are overwritten. Errors are *ExtractionError.
func Extract(src, name, dest string) ([]string, error) {
	format, err := DetectFormat(src)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	logging.Debug("extracting payload", logging.Path(dest), "format", string(format))

	switch format {
	case FormatZip:
		return extractZip(src, dest)
	case FormatTarGz:
		files, err := extractTarGz(src, dest)
		if errors.Is(err, errNotTar) {
			logging.Debug("gzip payload is not a tar stream, keeping it as a file", logging.Path(name))
			return placeSingle(src, name, dest)
		}
		return files, err
	default:
		return placeSingle(src, name, dest)
	}
}

func extractZip(src, dest string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, &ExtractionError{Err: fmt.Errorf("failed to open zip: %w", err)}
	}
	defer r.Close()

	var written []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			if _, err := ensureDir(dest, f.Name); err != nil {
				return written, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			logging.Debug("skipping non-regular zip entry", logging.Path(f.Name))
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return written, &ExtractionError{Entry: f.Name, Err: err}
		}
		rel, err := writeEntry(dest, f.Name, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return written, err
		}
		written = append(written, rel)
	}
	return written, nil
}

func extractTarGz(src, dest string) ([]string, error) {
	// #nosec G304 - src is a staging file we created
	file, err := os.Open(src)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, errNotTar
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var written []string
	first := true
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if first {
				return nil, errNotTar
			}
			return written, &ExtractionError{Err: fmt.Errorf("failed to read tar header: %w", err)}
		}
		first = false

		switch header.Typeflag {
		case tar.TypeDir:
			if _, err := ensureDir(dest, header.Name); err != nil {
				return written, err
			}
		case tar.TypeReg:
			rel, err := writeEntry(dest, header.Name, tarReader, os.FileMode(header.Mode).Perm())
			if err != nil {
				return written, err
			}
			written = append(written, rel)
		default:
			logging.Debug("skipping non-regular tar entry", logging.Path(header.Name))
		}
	}
	return written, nil
}

func placeSingle(src, name, dest string) ([]string, error) {
	base := sanitizeFilename(filepath.Base(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return nil, &ExtractionError{Err: errors.New("payload has no usable file name")}
	}
	target := filepath.Join(dest, base)
	if err := os.Rename(src, target); err != nil {
		return nil, &ExtractionError{Entry: base, Err: err}
	}
	return []string{base}, nil
}

// entryPath validates an archive member name and resolves it under dest.
func entryPath(dest, name string) (string, string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(name, "./"))
	if !filepath.IsLocal(rel) {
		return "", "", &ExtractionError{Entry: name, Err: errors.New("entry escapes destination")}
	}
	full, err := securejoin.SecureJoin(dest, rel)
	if err != nil {
		return "", "", &ExtractionError{Entry: name, Err: err}
	}
	return full, filepath.ToSlash(filepath.Clean(rel)), nil
}

func ensureDir(dest, name string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "./"), "/")
	if trimmed == "" || trimmed == "." {
		return dest, nil
	}
	full, _, err := entryPath(dest, trimmed)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o750); err != nil {
		return "", &ExtractionError{Entry: name, Err: err}
	}
	return full, nil
}

func writeEntry(dest, name string, r io.Reader, perm os.FileMode) (string, error) {
	full, rel, err := entryPath(dest, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", &ExtractionError{Entry: name, Err: err}
	}
	if perm == 0 {
		perm = 0o644
	}
	// #nosec G304 - full is confined to dest by entryPath
	out, err := os.OpenFile(full, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return "", &ExtractionError{Entry: name, Err: err}
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", &ExtractionError{Entry: name, Err: err}
	}
	if err := out.Close(); err != nil {
		return "", &ExtractionError{Entry: name, Err: err}
	}
	return rel, nil
}

// sanitizeFilename removes invalid characters from filename
func sanitizeFilename(name string) string {
	// Replace invalid characters with underscores
	result := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}
	return string(result)
}
