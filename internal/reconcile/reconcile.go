// Package reconcile extracts generated sources that have no hand-written
// counterpart.
package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"modpatcher/internal/archive"
)

// SourceSuffix selects the archive entries that are extracted.
const SourceSuffix = ".java"

// ErrUnsafeEntry is returned for an entry name that would land outside the
// output tree.
var ErrUnsafeEntry = errors.New("entry escapes output directory")

// ErrOverlap is returned when the output tree and the reference tree share
// files. Clearing the output would delete hand-written sources.
var ErrOverlap = errors.New("output dir overlaps reference dir")

// Reconciler regenerates OutputDir from a source archive, skipping files
// already present under ReferenceDir.
type Reconciler struct {
	OutputDir    string
	ReferenceDir string
	Logger       *slog.Logger
}

// Result counts the entries written and those shadowed by hand-written
// sources.
type Result struct {
	Written int
	Skipped int
}

// Reconcile removes and recreates OutputDir, then writes every source entry
// of the archive at archivePath that ReferenceDir does not already hold. Any
// I/O failure stops the run; the next run starts from an empty tree again.
func (r *Reconciler) Reconcile(archivePath string) (Result, error) {
	var res Result
	if strings.TrimSpace(r.OutputDir) == "" {
		return res, errors.New("output dir is required")
	}
	out := filepath.Clean(r.OutputDir)
	if out == "/" || out == "." {
		return res, fmt.Errorf("refusing to clear output dir %q", r.OutputDir)
	}
	if r.ReferenceDir != "" {
		if err := CheckOverlap(out, r.ReferenceDir); err != nil {
			return res, err
		}
	}
	if err := os.RemoveAll(out); err != nil {
		return res, fmt.Errorf("clearing %s: %w", out, err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return res, fmt.Errorf("creating %s: %w", out, err)
	}

	err := archive.Walk(archivePath, func(e archive.Entry) error {
		if !strings.HasSuffix(e.Name, SourceSuffix) {
			return nil
		}
		rel, err := safeRel(e.Name)
		if err != nil {
			return err
		}
		if r.ReferenceDir != "" {
			exists, err := fileExists(filepath.Join(r.ReferenceDir, rel))
			if err != nil {
				return err
			}
			if exists {
				res.Skipped++
				return nil
			}
		}
		dst := filepath.Join(out, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, e.Data, 0o644); err != nil {
			return err
		}
		res.Written++
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("extracting sources from %s: %w", archivePath, err)
	}

	r.logger().Debug("extracted generated sources",
		slog.String("archive", archivePath),
		slog.String("output", out),
		slog.Int("written", res.Written),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// CheckOverlap returns ErrOverlap if out and ref are the same directory or
// one contains the other.
func CheckOverlap(out, ref string) error {
	a, err := filepath.Abs(out)
	if err != nil {
		return err
	}
	b, err := filepath.Abs(ref)
	if err != nil {
		return err
	}
	if within(a, b) || within(b, a) {
		return fmt.Errorf("%w: %s and %s", ErrOverlap, out, ref)
	}
	return nil
}

// within reports whether p is dir or lies below it.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// safeRel converts a slash-separated entry name into a relative OS path,
// rejecting absolute names and names that climb out with "..".
func safeRel(name string) (string, error) {
	if strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	rel := filepath.FromSlash(clean)
	if filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return rel, nil
}

func fileExists(p string) (bool, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}
