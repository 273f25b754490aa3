package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"modpatcher/internal/config"
	"modpatcher/internal/pipeline"
	"modpatcher/internal/transform"
)

const (
	ExitSuccess           = 0
	ExitProcessingFailure = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError is a malformed command line.
type InvocationError struct {
	Message string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		return ExitInvalidInvocation
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) || errors.Is(err, transform.ErrNoMixinSources) {
		return ExitConfigError
	}
	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		return ExitProcessingFailure
	}
	if errors.Is(err, context.Canceled) {
		return ExitProcessingFailure
	}
	return ExitInternalError
}

// exactArgs is cobra.ExactArgs reporting an InvocationError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return invalidInvocationf("%s: expected %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}
