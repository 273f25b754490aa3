package stub

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpatcher/internal/archive"
	"modpatcher/internal/classfile"
	"modpatcher/internal/classfile/classfiletest"
	"modpatcher/internal/codec"
)

func TestPredicate_PrefixRules(t *testing.T) {
	p, err := NewPredicate(Rules{IncludePrefix: "a/", ExcludePrefix: "a/b/"})
	require.NoError(t, err)

	assert.True(t, p.Match("a/X.class"))
	assert.True(t, p.Match("a/c/D.class"))
	assert.False(t, p.Match("a/b/C.class"))
	assert.False(t, p.Match("z/X.class"))
	assert.False(t, p.Match("a/X.java"))
	assert.False(t, p.Match("a/"))
}

func TestPredicate_Defaults(t *testing.T) {
	p, err := NewPredicate(DefaultRules())
	require.NoError(t, err)

	assert.True(t, p.Match("net/minecraft/block/Block.class"))
	assert.False(t, p.Match("net/minecraft/client/Minecraft.class"))
	assert.False(t, p.Match("com/example/Mod.class"))
}

func TestPredicate_GlobsNarrowSelection(t *testing.T) {
	p, err := NewPredicate(Rules{
		IncludePrefix: "a/",
		Include:       []string{"a/**/*Api.class", "a/*Api.class"},
		Exclude:       []string{"**/Internal*"},
	})
	require.NoError(t, err)

	assert.True(t, p.Match("a/FooApi.class"))
	assert.True(t, p.Match("a/deep/BarApi.class"))
	assert.False(t, p.Match("a/Foo.class"))
	assert.False(t, p.Match("a/deep/InternalApi.class"))
}

func TestNewPredicate_RejectsBadGlob(t *testing.T) {
	_, err := NewPredicate(Rules{Include: []string{"a/[unclosed"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPattern))
}

func sampleJar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bin.jar")
	entries := []archive.Entry{
		{Name: "a/X.class", Data: classfiletest.Build(t, "a/X", "java/lang/Object",
			classfiletest.WithField("count", "I"),
			classfiletest.WithMethod("run", "()V", 400),
			classfiletest.WithMethod("size", "()I", 120),
		)},
		{Name: "a/b/C.class", Data: classfiletest.Build(t, "a/b/C", "a/X", classfiletest.WithMethod("go", "()V", 50))},
		{Name: "a/Y.class", Data: classfiletest.Build(t, "a/Y", "a/X", classfiletest.WithMethod("fly", "(J)Z", 80))},
		{Name: "a/notes.txt", Data: []byte("dropped")},
	}
	require.NoError(t, archive.WriteFile(path, archive.Deflate, entries...))
	return path
}

func TestBuild_FiltersAndStripsBodies(t *testing.T) {
	in := sampleJar(t)
	p, err := NewPredicate(Rules{IncludePrefix: "a/", ExcludePrefix: "a/b/"})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), FileName(codec.None))
	st, err := (&Builder{Predicate: p}).Build(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Included)
	assert.Equal(t, 2, st.Dropped)
	assert.Less(t, st.OutBytes, st.InBytes)

	entries, err := archive.ReadAll(out)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/X.class", entries[0].Name)
	assert.Equal(t, "a/Y.class", entries[1].Name)

	original, err := archive.ReadAll(in)
	require.NoError(t, err)
	assert.Less(t, len(entries[0].Data), len(original[0].Data))

	c, err := classfile.Decode(entries[0].Data)
	require.NoError(t, err)
	require.Len(t, c.Methods, 2)
	assert.Equal(t, "run", c.Methods[0].Name)
	assert.Equal(t, "()V", c.Methods[0].Descriptor)
	assert.Equal(t, "size", c.Methods[1].Name)
	assert.Equal(t, "()I", c.Methods[1].Descriptor)
	for _, m := range c.Methods {
		assert.Empty(t, m.Attributes, "method bodies must be gone")
	}
	require.Len(t, c.Fields, 1)
	assert.Equal(t, "count", c.Fields[0].Name)
}

func TestBuild_IsDeterministic(t *testing.T) {
	in := sampleJar(t)
	p, err := NewPredicate(Rules{IncludePrefix: "a/"})
	require.NoError(t, err)

	for _, c := range []codec.Codec{codec.None, codec.Zstd} {
		dir := t.TempDir()
		b := &Builder{Predicate: p, Codec: c}
		first := filepath.Join(dir, "one"+c.Extension())
		second := filepath.Join(dir, "two"+c.Extension())
		_, err := b.Build(in, first)
		require.NoError(t, err)
		_, err = b.Build(in, second)
		require.NoError(t, err)

		fb, err := os.ReadFile(first)
		require.NoError(t, err)
		sb, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, fb, sb, string(c))
	}
}

func TestBuild_OuterCodecWrapsStoredJar(t *testing.T) {
	in := sampleJar(t)
	p, err := NewPredicate(Rules{IncludePrefix: "a/"})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), FileName(codec.Gzip))
	_, err = (&Builder{Predicate: p, Codec: codec.Gzip}).Build(in, out)
	require.NoError(t, err)

	jar, err := codec.ReadFile(out, codec.Gzip)
	require.NoError(t, err)
	plain := filepath.Join(t.TempDir(), "plain.jar")
	require.NoError(t, os.WriteFile(plain, jar, 0o644))

	entries, err := archive.ReadAll(plain)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBuild_MalformedSelectedClassFails(t *testing.T) {
	in := filepath.Join(t.TempDir(), "bad.jar")
	require.NoError(t, archive.WriteFile(in, archive.Store,
		archive.Entry{Name: "a/Broken.class", Data: []byte{0xCA, 0xFE, 0xBA, 0xBE, 0}},
	))
	p, err := NewPredicate(Rules{IncludePrefix: "a/"})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "stubs.jar")
	_, err = (&Builder{Predicate: p}).Build(in, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, classfile.ErrMalformed))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no partial stub archive")
}
