package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_SubstitutesQuotedPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "it's here")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	in := filepath.Join(dir, "in.jar")
	out := filepath.Join(dir, "out.jar")
	require.NoError(t, os.WriteFile(in, []byte("payload"), 0o644))

	c := &Command{
		Run: "cat {in} > {out}",
		Env: map[string]string{"PATH": os.Getenv("PATH")},
	}
	require.NoError(t, c.Transform(context.Background(), in, out))
	requireContent(t, out, "payload")
}

func TestCommand_EnvironmentIsAllowlisted(t *testing.T) {
	t.Setenv("MODPATCHER_TEST_HOST_SECRET", "leaked")
	out := filepath.Join(t.TempDir(), "env.txt")

	c := &Command{
		Run:            `printf '%s|%s|%s|%s|%s' "$MODPATCHER_TEST_HOST_SECRET" "$DECLARED" "$MODPATCHER_MIXIN_PACKAGE" "$MODPATCHER_NO_MIXIN_IS_ERROR" "$MODPATCHER_MIXIN_SOURCES" > {out}`,
		Env:            map[string]string{"DECLARED": "yes"},
		MixinPackage:   "org.example.mixin",
		NoMixinIsError: true,
		MixinSources:   []MixinSource{{Root: "/src/a", Dir: "/src/a/org/example/mixin"}, {Root: "/src/b"}},
	}
	require.NoError(t, c.Transform(context.Background(), "unused", out))

	want := strings.Join([]string{"", "yes", "org.example.mixin", "true", "/src/a" + string(os.PathListSeparator) + "/src/b"}, "|")
	requireContent(t, out, want)
}

func TestCommand_NonZeroExitIsCommandError(t *testing.T) {
	c := &Command{Run: "echo 'no mixin applied' >&2; exit 3"}

	err := c.Transform(context.Background(), "in", "out")
	require.Error(t, err)
	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.ExitCode)
	assert.Equal(t, "no mixin applied", ce.Stderr)
}

func TestCommand_EmptyCommandRejected(t *testing.T) {
	err := (&Command{Run: "  "}).Transform(context.Background(), "in", "out")
	assert.Error(t, err)
}

func TestCommand_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&Command{Run: "exit 0"}).Transform(ctx, "in", "out")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestApply_WithFailingCommandRollsBack(t *testing.T) {
	path := artifact(t, "original")
	c := &Command{Run: "printf partial > {out}; exit 1"}

	err := Apply(path, Bind(context.Background(), c))
	require.Error(t, err)
	var ce *CommandError
	assert.True(t, errors.As(err, &ce))
	requireContent(t, path, "original")
	requireNoBackup(t, path)
}
