package pipeline

import (
	"errors"
	"fmt"

	"modpatcher/internal/classfile"
	"modpatcher/internal/transform"
)

var (
	// ErrMissingInput is logged, never returned: a missing artifact skips
	// processing.
	ErrMissingInput = errors.New("input artifact missing")
	ErrTransform    = errors.New("transform failed")
	ErrParse        = errors.New("malformed classfile")
	ErrIO           = errors.New("artifact i/o failed")
)

// Error is a processing failure. Kind is one of the Err* sentinels; Stage
// names the pipeline stage that failed.
type Error struct {
	Kind  error
	Stage string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind.Error(), e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Classify wraps err in an *Error whose kind matches its cause. It returns
// nil for a nil err.
func Classify(stage, path string, err error) error {
	if err == nil {
		return nil
	}
	kind := ErrIO
	var te *transform.Error
	switch {
	case errors.As(err, &te):
		kind = ErrTransform
	case errors.Is(err, classfile.ErrMalformed):
		kind = ErrParse
	}
	return &Error{Kind: kind, Stage: stage, Path: path, Err: err}
}
