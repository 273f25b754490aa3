package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// WriteCacheAction is the cache checkpoint: it commits the step's output
// under the key computed when the step started. It does nothing when the
// step's caching is off.
type WriteCacheAction struct{}

func (WriteCacheAction) Execute(_ context.Context, s *Step) error {
	if !s.cacheActive() {
		return nil
	}
	if s.key == "" {
		return errors.New("cache key was not computed")
	}
	data, err := os.ReadFile(s.Output)
	if err != nil {
		return fmt.Errorf("reading output for cache: %w", err)
	}
	if err := s.Cache.Put(&Entry{Key: s.key, Step: s.Name, Output: data}); err != nil {
		return err
	}
	s.logger().Debug("step output cached", slog.String("step", s.Name), slog.String("key", s.key.String()))
	return nil
}

func (WriteCacheAction) String() string { return "WriteCacheAction" }

// IsWriteCache reports whether a is the cache checkpoint.
func IsWriteCache(a Action) bool {
	switch a.(type) {
	case WriteCacheAction, *WriteCacheAction:
		return true
	}
	return false
}

// CopyAction produces the step's output by copying From. It stands in for
// the upstream work (deobfuscation, remapping) whose result the pipeline
// post-processes.
type CopyAction struct {
	From string
}

func (c CopyAction) Execute(_ context.Context, s *Step) error {
	data, err := os.ReadFile(c.From)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.From, err)
	}
	return writeFileAtomic(s.Output, data, 0o644)
}

func (c CopyAction) String() string { return "CopyAction(" + c.From + ")" }
