package classfile

import (
	"errors"
	"fmt"
)

// ErrMalformed is the kind of every decoding failure returned by this package.
var ErrMalformed = errors.New("malformed classfile")

// FormatError reports a structural problem found while decoding.
// Offset is relative to the buffer being read, which for attribute payloads
// is the payload itself.
type FormatError struct {
	Offset int
	Msg    string
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: offset %d: %s", ErrMalformed.Error(), e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrMalformed }

func formatErrorf(offset int, format string, args ...any) error {
	return &FormatError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
