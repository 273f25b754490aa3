package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

// Transformer is the opaque transform engine.
type Transformer interface {
	Transform(ctx context.Context, in, out string) error
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, in, out string) error

func (f TransformerFunc) Transform(ctx context.Context, in, out string) error { return f(ctx, in, out) }

// Bind turns t into a Func for Apply.
func Bind(ctx context.Context, t Transformer) Func {
	return func(in, out string) error { return t.Transform(ctx, in, out) }
}

// Placeholders substituted into Command.Run.
const (
	InputPlaceholder  = "{in}"
	OutputPlaceholder = "{out}"
)

// Environment variables handed to the transform command.
const (
	EnvMixinSources   = "MODPATCHER_MIXIN_SOURCES"
	EnvMixinPackage   = "MODPATCHER_MIXIN_PACKAGE"
	EnvNoMixinIsError = "MODPATCHER_NO_MIXIN_IS_ERROR"
)

// CommandError is a transform command that ran and exited non-zero.
type CommandError struct {
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("transform command exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("transform command exited with code %d: %s", e.ExitCode, e.Stderr)
}

// Command runs the transform as a shell command. Only Env and the
// MODPATCHER_* variables are visible to it; the host environment is not
// inherited, so a command that needs PATH must declare it.
type Command struct {
	Run        string
	Env        map[string]string
	WorkingDir string

	MixinSources   []MixinSource
	MixinPackage   string
	NoMixinIsError bool

	Logger *slog.Logger
}

// Transform runs the command with {in} and {out} replaced by the quoted
// paths. Cancelling ctx kills the whole process group.
func (c *Command) Transform(ctx context.Context, in, out string) error {
	if strings.TrimSpace(c.Run) == "" {
		return errors.New("transform command is empty")
	}
	line := strings.NewReplacer(
		InputPlaceholder, shellQuote(in),
		OutputPlaceholder, shellQuote(out),
	).Replace(c.Run)

	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = c.WorkingDir
	cmd.Env = c.environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting transform command: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return fmt.Errorf("transform cancelled: %w", ctx.Err())
	case err = <-done:
	}

	c.logger().Debug("transform command finished",
		slog.String("input", in),
		slog.String("output", out),
		slog.Int("stdout_bytes", stdout.Len()),
		slog.Int("stderr_bytes", stderr.Len()))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return fmt.Errorf("running transform command: %w", err)
	}
	return nil
}

func (c *Command) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// environ builds the allowlisted environment in sorted order.
func (c *Command) environ() []string {
	env := make(map[string]string, len(c.Env)+3)
	for k, v := range c.Env {
		env[k] = v
	}
	roots := make([]string, 0, len(c.MixinSources))
	for _, s := range c.MixinSources {
		roots = append(roots, s.Root)
	}
	env[EnvMixinSources] = strings.Join(roots, string(os.PathListSeparator))
	env[EnvMixinPackage] = c.MixinPackage
	env[EnvNoMixinIsError] = strconv.FormatBool(c.NoMixinIsError)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
