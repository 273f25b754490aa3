// Package codec wraps generated artifacts in an optional outer compression
// layer and writes them atomically.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec names an outer compression format.
type Codec string

const (
	None Codec = "none"
	Zstd Codec = "zstd"
	Gzip Codec = "gzip"
)

// Parse accepts "", "none", "zstd" and "gzip".
func Parse(s string) (Codec, error) {
	switch Codec(s) {
	case "", None:
		return None, nil
	case Zstd, Gzip:
		return Codec(s), nil
	}
	return "", fmt.Errorf("unknown compression %q (want none, zstd or gzip)", s)
}

// Extension is the file suffix appended to artifacts written with c.
func (c Codec) Extension() string {
	switch c {
	case Zstd:
		return ".zst"
	case Gzip:
		return ".gz"
	}
	return ""
}

// Compressed reports whether c adds a compression layer.
func (c Codec) Compressed() bool { return c == Zstd || c == Gzip }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w. Closing the result flushes the codec but leaves w open.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case "", None:
		return nopWriteCloser{w}, nil
	case Zstd:
		// A single encoder goroutine keeps the frame layout independent of
		// GOMAXPROCS.
		return zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	case Gzip:
		// The header carries no name and a zero mtime.
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	}
	return nil, fmt.Errorf("unknown compression %q", c)
}

// NewReader wraps r with the matching decoder.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case "", None:
		return io.NopCloser(r), nil
	case Zstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case Gzip:
		return gzip.NewReader(r)
	}
	return nil, fmt.Errorf("unknown compression %q", c)
}

// WriteFile streams fill through c into a temporary sibling of path and
// renames it into place, so path holds either its previous content or the
// complete new content.
func WriteFile(path string, c Codec, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	cw, err := c.NewWriter(tmp)
	if err != nil {
		return err
	}
	if err := fill(cw); err != nil {
		_ = cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finishing %s stream: %w", c, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReadFile returns the decoded content of path.
func ReadFile(path string, c Codec) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := c.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening %s stream: %w", c, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
