package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type named string

func (n named) Execute(context.Context, *Step) error { return nil }
func (n named) String() string                        { return string(n) }

func TestActions_InsertShiftsRight(t *testing.T) {
	l := Actions{named("a"), named("b"), named("c")}
	l.Insert(1, named("x"))
	l.Insert(l.Len(), named("z"))
	assert.Equal(t, []string{"a", "x", "b", "c", "z"}, DescribeAll(&l))
}

func TestWrapped_DelegatesAndUnwraps(t *testing.T) {
	ran := false
	inner := ActionFunc(func(context.Context, *Step) error { ran = true; return nil })
	w := Wrap("bookkeeping", inner)

	require.NoError(t, w.Execute(context.Background(), NewStep("s", "out")))
	assert.True(t, ran)
	assert.True(t, IsWriteCache(Wrap("x", WriteCacheAction{}).Inner()))
	assert.False(t, IsWriteCache(w))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStep_CacheHitSkipsActions(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	out := filepath.Join(dir, "out.jar")
	writeFile(t, in, "original")

	cache := NewFileCache(filepath.Join(dir, "cache"))
	calls := 0
	build := func() *Step {
		s := NewStep("binary", out)
		s.Cache = cache
		s.AddInputs(in)
		s.Append(CopyAction{From: in},
			ActionFunc(func(context.Context, *Step) error { calls++; return nil }),
			Wrap("cache", WriteCacheAction{}))
		return s
	}

	require.NoError(t, build().Run(context.Background()))
	assert.Equal(t, 1, calls)

	require.NoError(t, os.Remove(out))
	require.NoError(t, build().Run(context.Background()))
	assert.Equal(t, 1, calls, "cached output restored without running actions")
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	writeFile(t, in, "changed")
	require.NoError(t, build().Run(context.Background()))
	assert.Equal(t, 2, calls, "input change invalidates the key")
}

func TestStep_CachingDisabledAlwaysRuns(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cache := NewMemoryCache()
	calls := 0
	for i := 0; i < 2; i++ {
		s := NewStep("source", out)
		s.Cache = cache
		s.SetCaching(false)
		s.Append(ActionFunc(func(_ context.Context, s *Step) error {
			calls++
			return os.WriteFile(s.Output, []byte("x"), 0o644)
		}), WriteCacheAction{})
		require.NoError(t, s.Run(context.Background()))
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, cache.Len())
}

func TestStep_ActionFailureStopsList(t *testing.T) {
	boom := errors.New("boom")
	later := false
	s := NewStep("binary", filepath.Join(t.TempDir(), "out"))
	s.Append(ActionFunc(func(context.Context, *Step) error { return boom }),
		ActionFunc(func(context.Context, *Step) error { later = true; return nil }))

	err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, later)
}

func TestComputeKey_SensitiveToEveryField(t *testing.T) {
	base := KeyInput{
		Step:       "binary",
		Output:     "out.jar",
		Properties: map[string]string{"v": "1"},
		Inputs:     []Input{{Path: "a", Content: []byte("x")}},
	}
	k := ComputeKey(base)
	assert.Len(t, k.String(), 64)
	assert.Equal(t, k, ComputeKey(base))

	variants := []KeyInput{
		{Step: "source", Output: base.Output, Properties: base.Properties, Inputs: base.Inputs},
		{Step: base.Step, Output: "o", Properties: base.Properties, Inputs: base.Inputs},
		{Step: base.Step, Output: base.Output, Properties: map[string]string{"v": "2"}, Inputs: base.Inputs},
		{Step: base.Step, Output: base.Output, Properties: base.Properties, Inputs: []Input{{Path: "a", Content: []byte("y")}}},
		{Step: base.Step, Output: base.Output, Properties: base.Properties},
	}
	for _, v := range variants {
		assert.NotEqual(t, k, ComputeKey(v))
	}
}

func TestResolveInputs_FilesDirsAndGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mixins", "a", "A.java"), "a")
	writeFile(t, filepath.Join(dir, "mixins", "b", "B.java"), "b")
	writeFile(t, filepath.Join(dir, "mixins", "b", "notes.txt"), "n")
	writeFile(t, filepath.Join(dir, "single.properties"), "p")

	got, err := ResolveInputs([]string{
		filepath.Join(dir, "mixins", "a"),
		filepath.ToSlash(filepath.Join(dir, "mixins")) + "/**.java",
		filepath.Join(dir, "single.properties"),
		filepath.Join(dir, "missing"),
	})
	require.NoError(t, err)

	var paths []string
	for _, in := range got {
		rel, err := filepath.Rel(dir, filepath.FromSlash(in.Path))
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"mixins/a/A.java", "mixins/b/B.java", "single.properties"}, paths)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Put(&Entry{Key: "k", Output: []byte("abc")}))
	e, err := c.Get("k")
	require.NoError(t, err)
	e.Output[0] = 'z'

	again, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again.Output))

	miss, err := c.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
