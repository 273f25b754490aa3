package host

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Key identifies a step output in the cache.
type Key string

func (k Key) String() string { return string(k) }

// Input is one resolved input file.
type Input struct {
	Path    string
	Content []byte
}

// KeyInput holds everything that identifies a step output.
type KeyInput struct {
	Step       string
	Output     string
	Properties map[string]string
	Inputs     []Input
}

// ComputeKey hashes in with length-prefixed fields: step, output, sorted
// properties, then inputs in the order given (ResolveInputs sorts them).
// Any change to a field yields a different key.
func ComputeKey(in KeyInput) Key {
	h := sha256.New()
	field := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	count := func(n int) {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(n))
		field(b[:])
	}

	field([]byte(in.Step))
	field([]byte(in.Output))

	keys := sortedKeys(in.Properties)
	count(len(keys))
	for _, k := range keys {
		field([]byte(k))
		field([]byte(in.Properties[k]))
	}

	count(len(in.Inputs))
	for _, inp := range in.Inputs {
		field([]byte(inp.Path))
		field(inp.Content)
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}

// ResolveInputs expands patterns into a sorted, de-duplicated list of files
// with their contents. A pattern is a file, a directory (all files below
// it), or a glob where '*' stays within one path segment and '**' spans
// segments. A literal path that does not exist resolves to nothing.
func ResolveInputs(patterns []string) ([]Input, error) {
	seen := make(map[string]struct{})
	for _, p := range patterns {
		paths, err := expand(p)
		if err != nil {
			return nil, fmt.Errorf("expanding input %q: %w", p, err)
		}
		for _, path := range paths {
			seen[path] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]Input, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(filepath.FromSlash(p))
		if err != nil {
			return nil, fmt.Errorf("reading input %q: %w", p, err)
		}
		out = append(out, Input{Path: p, Content: content})
	}
	return out, nil
}

func expand(pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	if !strings.ContainsAny(slashed, "*?[{") {
		info, err := os.Stat(pattern)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}
		if !info.IsDir() {
			return []string{slashed}, nil
		}
		return walkFiles(pattern, nil)
	}

	g, err := glob.Compile(slashed, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid glob: %w", err)
	}
	return walkFiles(globBase(slashed), g)
}

// globBase is the longest leading directory of pattern without glob
// syntax.
func globBase(pattern string) string {
	segs := strings.Split(pattern, "/")
	var base []string
	for _, s := range segs {
		if strings.ContainsAny(s, "*?[{") {
			break
		}
		base = append(base, s)
	}
	if len(base) == 0 {
		return "."
	}
	if len(base) == 1 && base[0] == "" {
		return "/"
	}
	return filepath.FromSlash(strings.Join(base, "/"))
}

func walkFiles(root string, g glob.Glob) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		slashed := filepath.ToSlash(p)
		if g != nil && !g.Match(slashed) {
			return nil
		}
		out = append(out, slashed)
		return nil
	})
	return out, err
}
