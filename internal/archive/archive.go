// Package archive reads and writes jar-style zip archives.
//
// Entries are yielded and written in archive order. Written archives carry no
// timestamps, so the same entries always produce the same bytes.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Compression methods accepted by NewWriter.
const (
	Store   = zip.Store
	Deflate = zip.Deflate
)

// Entry is one named file of an archive. Names use forward slashes.
type Entry struct {
	Name string
	Data []byte
}

// ErrStop may be returned by a Walk callback to end the walk early without
// an error.
var ErrStop = errors.New("stop walk")

// Walk calls fn for each file entry of the archive at path, in archive
// order. Directory entries are skipped.
func Walk(path string, fn func(Entry) error) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	defer zr.Close()
	return walkFiles(zr.File, fn)
}

// WalkReader is Walk over an archive held in r.
func WalkReader(r io.ReaderAt, size int64, fn func(Entry) error) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	return walkFiles(zr.File, fn)
}

func walkFiles(files []*zip.File, fn func(Entry) error) error {
	for _, f := range files {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		data, err := readFile(f)
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", f.Name, err)
		}
		if err := fn(Entry{Name: f.Name, Data: data}); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ReadAll returns every file entry of the archive at path.
func ReadAll(path string) ([]Entry, error) {
	var out []Entry
	err := Walk(path, func(e Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// Writer writes entries to a zip stream with a fixed compression method and
// zeroed modification times.
type Writer struct {
	zw     *zip.Writer
	method uint16
	count  int
}

func NewWriter(w io.Writer, method uint16) *Writer {
	return &Writer{zw: zip.NewWriter(w), method: method}
}

// Add writes one entry.
func (w *Writer) Add(name string, data []byte) error {
	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: w.method})
	if err != nil {
		return fmt.Errorf("adding entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	w.count++
	return nil
}

// Len reports how many entries have been added.
func (w *Writer) Len() int { return w.count }

// Close writes the central directory. It does not close the underlying
// writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}

// WriteFile creates path and writes entries to it in order.
func WriteFile(path string, method uint16, entries ...Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := NewWriter(f, method)
	for _, e := range entries {
		if err := w.Add(e.Name, e.Data); err != nil {
			return err
		}
	}
	return w.Close()
}
