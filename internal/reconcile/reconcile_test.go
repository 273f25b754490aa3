package reconcile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpatcher/internal/archive"
)

func sourceJar(t *testing.T, entries ...archive.Entry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.jar")
	require.NoError(t, archive.WriteFile(path, archive.Deflate, entries...))
	return path
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(out)
	return out
}

func TestReconcile_HandWrittenSourcesWin(t *testing.T) {
	ref := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ref, "Foo.java"), []byte("// mine"), 0o644))

	jar := sourceJar(t,
		archive.Entry{Name: "Foo.java", Data: []byte("class Foo {}")},
		archive.Entry{Name: "Bar.java", Data: []byte("class Bar {}")},
	)
	out := filepath.Join(t.TempDir(), "generated", "src")

	res, err := (&Reconciler{OutputDir: out, ReferenceDir: ref}).Reconcile(jar)
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 1, Skipped: 1}, res)
	assert.Equal(t, []string{"Bar.java"}, listFiles(t, out))

	mine, err := os.ReadFile(filepath.Join(ref, "Foo.java"))
	require.NoError(t, err)
	assert.Equal(t, "// mine", string(mine))
}

func TestReconcile_SecondRunLeavesNoLeftovers(t *testing.T) {
	ref := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ref, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ref, "a", "Kept.java"), nil, 0o644))
	out := filepath.Join(t.TempDir(), "src")
	r := &Reconciler{OutputDir: out, ReferenceDir: ref}

	_, err := r.Reconcile(sourceJar(t,
		archive.Entry{Name: "a/Old.java", Data: []byte("old")},
		archive.Entry{Name: "b/Gone.java", Data: []byte("gone")},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/Old.java", "b/Gone.java"}, listFiles(t, out))

	_, err = r.Reconcile(sourceJar(t,
		archive.Entry{Name: "a/New.java", Data: []byte("new")},
		archive.Entry{Name: "a/Kept.java", Data: []byte("shadowed")},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/New.java"}, listFiles(t, out))
}

func TestReconcile_NonSourceEntriesIgnored(t *testing.T) {
	out := filepath.Join(t.TempDir(), "src")
	jar := sourceJar(t,
		archive.Entry{Name: "pkg/A.java", Data: []byte("a")},
		archive.Entry{Name: "pkg/A.class", Data: []byte{0xCA}},
		archive.Entry{Name: "assets/lang.json", Data: []byte("{}")},
	)

	res, err := (&Reconciler{OutputDir: out}).Reconcile(jar)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, []string{"pkg/A.java"}, listFiles(t, out))
}

func TestSafeRel_RejectsEscapingNames(t *testing.T) {
	for _, name := range []string{"../evil.java", "a/../../evil.java", "/abs/evil.java", `a\..\evil.java`} {
		_, err := safeRel(name)
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrUnsafeEntry), name)
	}

	rel, err := safeRel("a/./b/../C.java")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "C.java"), rel)
}

func TestReconcile_MissingArchiveIsAnError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "src")
	_, err := (&Reconciler{OutputDir: out}).Reconcile(filepath.Join(t.TempDir(), "none.jar"))
	assert.Error(t, err)
}

func TestReconcile_RefusesEmptyOutputDir(t *testing.T) {
	_, err := (&Reconciler{}).Reconcile("whatever.jar")
	assert.Error(t, err)
}

func TestReconcile_RefusesOverlappingTrees(t *testing.T) {
	jar := sourceJar(t, archive.Entry{Name: "Foo.java", Data: []byte("generated")})

	cases := map[string]func(root string) (out, ref string){
		"same dir":            func(root string) (string, string) { return root, root },
		"reference in output": func(root string) (string, string) { return root, filepath.Join(root, "handwritten") },
		"output in reference": func(root string) (string, string) { return filepath.Join(root, "generated"), root },
	}
	for name, layout := range cases {
		t.Run(name, func(t *testing.T) {
			out, ref := layout(t.TempDir())
			require.NoError(t, os.MkdirAll(ref, 0o755))
			mine := filepath.Join(ref, "Foo.java")
			require.NoError(t, os.WriteFile(mine, []byte("// mine"), 0o644))

			_, err := (&Reconciler{OutputDir: out, ReferenceDir: ref}).Reconcile(jar)
			require.ErrorIs(t, err, ErrOverlap)

			b, err := os.ReadFile(mine)
			require.NoError(t, err)
			assert.Equal(t, "// mine", string(b))
		})
	}
}

func TestCheckOverlap_SiblingsWithSharedPrefix(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, CheckOverlap(filepath.Join(root, "src"), filepath.Join(root, "src-main")))
	assert.NoError(t, CheckOverlap(filepath.Join(root, "gen", "src"), filepath.Join(root, "src", "main", "java")))
}
