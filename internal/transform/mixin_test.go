package transform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverMixinSources_FindsPackageInEachRoot(t *testing.T) {
	base := t.TempDir()
	main := filepath.Join(base, "src", "main", "java")
	api := filepath.Join(base, "src", "api", "java")
	empty := filepath.Join(base, "src", "test", "java")
	require.NoError(t, os.MkdirAll(filepath.Join(main, "org", "example", "mixin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(api, "org", "example", "mixin"), 0o755))
	require.NoError(t, os.MkdirAll(empty, 0o755))

	got, err := DiscoverMixinSources([]string{main, empty, api}, "org.example.mixin")
	require.NoError(t, err)
	assert.Equal(t, []MixinSource{
		{Root: main, Dir: filepath.Join(main, "org", "example", "mixin")},
		{Root: api, Dir: filepath.Join(api, "org", "example", "mixin")},
	}, got)
	assert.Equal(t, []string{got[0].Dir, got[1].Dir}, Dirs(got))
}

func TestDiscoverMixinSources_AllUsesWholeRoots(t *testing.T) {
	root := t.TempDir()

	got, err := DiscoverMixinSources([]string{root, filepath.Join(root, "missing")}, AllPackages)
	require.NoError(t, err)
	assert.Equal(t, []MixinSource{{Root: root, Dir: root}}, got)
}

func TestDiscoverMixinSources_NothingFoundIsAnError(t *testing.T) {
	_, err := DiscoverMixinSources([]string{t.TempDir()}, "org.example.mixin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMixinSources))
}

func TestDiscoverMixinSources_EmptyPackageRejected(t *testing.T) {
	_, err := DiscoverMixinSources([]string{t.TempDir()}, "")
	assert.Error(t, err)
}

func TestPackageDir(t *testing.T) {
	assert.Equal(t, filepath.Join("org", "example"), PackageDir("org.example"))
	assert.Equal(t, "", PackageDir(AllPackages))
}
