package transform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllPackages as the mixin package means every source root is a mixin root.
const AllPackages = "all"

// ErrNoMixinSources is returned when no source root contains the mixin
// package.
var ErrNoMixinSources = errors.New("no mixin packages found")

// MixinSource is a source root that contains mixins. Dir is the mixin
// package directory inside Root; it equals Root for AllPackages.
type MixinSource struct {
	Root string
	Dir  string
}

// PackageDir converts a dotted package designator into a relative directory.
// It returns "" for AllPackages.
func PackageDir(pkg string) string {
	if pkg == AllPackages {
		return ""
	}
	return filepath.FromSlash(strings.ReplaceAll(pkg, ".", "/"))
}

// DiscoverMixinSources returns, in root order, every root that holds the
// package pkg. pkg must not be empty; an empty package disables mixins and
// callers should not search at all.
func DiscoverMixinSources(roots []string, pkg string) ([]MixinSource, error) {
	if pkg == "" {
		return nil, errors.New("mixin package is empty")
	}
	rel := PackageDir(pkg)

	var out []MixinSource
	for _, root := range roots {
		dir := root
		if rel != "" {
			dir = filepath.Join(root, rel)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		out = append(out, MixinSource{Root: root, Dir: dir})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: searched for %q in %s", ErrNoMixinSources, pkg, strings.Join(roots, ", "))
	}
	return out, nil
}

// Dirs returns the Dir of every source.
func Dirs(sources []MixinSource) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Dir)
	}
	return out
}
