// Package transform replaces build artifacts with transformed versions and
// rolls back when the transform does not complete.
package transform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// BackupPrefix marks the sibling that holds the original artifact while a
// transform runs.
const BackupPrefix = "bak_"

var (
	ErrNoOutput = errors.New("transform produced no output")
	ErrPanic    = errors.New("transform panicked")
)

// Error reports a transform that failed after the artifact was backed up.
// When Error is returned the original artifact is back at Path, unless
// Restore is set.
type Error struct {
	Path string
	Err  error
	// Restore is the failure to put the original back, if any.
	Restore error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("transform of %s failed: %v", e.Path, e.Err)
	if e.Restore != nil {
		msg += fmt.Sprintf(" (restoring original: %v)", e.Restore)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Restore != nil {
		return []error{e.Err, e.Restore}
	}
	return []error{e.Err}
}

// Func reads the artifact at in and writes the transformed artifact to out.
type Func func(in, out string) error

// BackupPath returns the backup sibling of path.
func BackupPath(path string) string {
	return filepath.Join(filepath.Dir(path), BackupPrefix+filepath.Base(path))
}

// Apply moves path to its backup, runs fn(backup, path) and then either
// deletes the backup (fn succeeded and path exists) or removes any partial
// output and moves the backup back. It never retries fn.
//
// A stale backup from an interrupted run is deleted first. If the artifact
// cannot be moved to the backup, Apply fails without touching path.
func Apply(path string, fn Func) (err error) {
	backup := BackupPath(path)
	if rmErr := os.Remove(backup); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return fmt.Errorf("removing stale backup %s: %w", backup, rmErr)
	}
	if mvErr := os.Rename(path, backup); mvErr != nil {
		return fmt.Errorf("backing up %s: %w", path, mvErr)
	}

	done := false
	defer func() {
		if done {
			return
		}
		if r := recover(); r != nil {
			err = &Error{Path: path, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
		var te *Error
		if !errors.As(err, &te) {
			te = &Error{Path: path, Err: err}
			err = te
		}
		te.Restore = restore(path, backup)
	}()

	if ferr := fn(backup, path); ferr != nil {
		return &Error{Path: path, Err: ferr}
	}
	if _, serr := os.Stat(path); serr != nil {
		if errors.Is(serr, fs.ErrNotExist) {
			return &Error{Path: path, Err: ErrNoOutput}
		}
		return &Error{Path: path, Err: serr}
	}

	done = true
	if rmErr := os.Remove(backup); rmErr != nil {
		return fmt.Errorf("removing backup %s: %w", backup, rmErr)
	}
	return nil
}

func restore(path, backup string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing partial output: %w", err)
	}
	return os.Rename(backup, path)
}
