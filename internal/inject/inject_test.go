package inject

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpatcher/internal/host"
	"modpatcher/internal/trace"
)

type named string

func (n named) Execute(context.Context, *host.Step) error { return nil }
func (n named) String() string                             { return string(n) }

func TestInsertBefore_LastCheckpointWins(t *testing.T) {
	l := host.Actions{named("a0"), host.WriteCacheAction{}, named("a2"), host.WriteCacheAction{}, named("a4")}
	var in Injector

	idx, found := in.InsertBefore(&l, named("proc"))
	require.True(t, found)
	assert.Equal(t, 3, idx)
	assert.Equal(t,
		[]string{"a0", "WriteCacheAction", "a2", "proc", "WriteCacheAction", "a4"},
		host.DescribeAll(&l))
}

func TestInsertBefore_UnwrapsBookkeeping(t *testing.T) {
	l := host.Actions{named("a0"), host.Wrap("task", host.WriteCacheAction{}), named("a2")}
	var in Injector

	idx, found := in.InsertBefore(&l, named("proc"))
	require.True(t, found)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "proc", host.Describe(l.At(1)))
}

func TestInsertBefore_UnwrapsOneLevelOnly(t *testing.T) {
	l := host.Actions{host.Wrap("outer", host.Wrap("inner", host.WriteCacheAction{}))}
	var in Injector

	idx, found := in.InsertBefore(&l, named("proc"))
	assert.False(t, found)
	assert.Equal(t, 1, idx)
}

func TestInsertBefore_NoCheckpointAppends(t *testing.T) {
	l := host.Actions{named("a0"), named("a1")}
	var in Injector

	idx, found := in.InsertBefore(&l, named("proc"))
	assert.False(t, found)
	assert.Equal(t, 2, idx)
	assert.Equal(t, []string{"a0", "a1", "proc"}, host.DescribeAll(&l))
}

func TestInsertBefore_CustomCheckpoint(t *testing.T) {
	l := host.Actions{named("commit"), named("a1")}
	in := Injector{IsCheckpoint: func(a host.Action) bool { return host.Describe(a) == "commit" }}

	idx, found := in.InsertBefore(&l, named("proc"))
	assert.True(t, found)
	assert.Zero(t, idx)
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestInstrument_WarnsOnlyWhileCaching(t *testing.T) {
	var buf bytes.Buffer
	rec := trace.NewRecorder()
	in := Injector{Logger: newLogger(&buf), Trace: rec}

	cached := host.NewStep("binary", "out.jar")
	in.Instrument(cached, named("proc"), false)
	assert.Contains(t, buf.String(), "could not find cache checkpoint")
	assert.True(t, cached.Caching())

	buf.Reset()
	uncached := host.NewStep("source", "src.jar")
	in.Instrument(uncached, named("proc"), true)
	assert.NotContains(t, buf.String(), "could not find cache checkpoint")
	assert.False(t, uncached.Caching())

	var kinds []trace.Kind
	reasons := map[string]string{}
	for _, e := range rec.Trace("cfg").Events {
		kinds = append(kinds, e.Kind)
		if e.Kind == trace.CheckpointNotFound {
			reasons[e.Step] = e.Reason
		}
	}
	assert.Equal(t, []trace.Kind{trace.CheckpointNotFound, trace.CachingDisabled, trace.CheckpointNotFound}, kinds)
	assert.Equal(t, map[string]string{"binary": "appended", "source": "appended, caching off"}, reasons)
}

func TestDisableCaching_IgnoresNonCacheable(t *testing.T) {
	assert.False(t, DisableCaching(struct{}{}, true))
	s := host.NewStep("s", "o")
	assert.False(t, DisableCaching(s, false))
	assert.True(t, s.Caching())
	assert.True(t, DisableCaching(s, true))
	assert.False(t, s.Caching())
}
