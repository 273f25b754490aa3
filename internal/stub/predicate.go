package stub

import (
	"errors"
	"strings"

	"github.com/gobwas/glob"
)

// Default package roots.
const (
	DefaultIncludePrefix = "net/minecraft/"
	DefaultExcludePrefix = "net/minecraft/client/"
)

// ErrInvalidPattern is returned for a glob that does not compile.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Rules configures a Predicate. Prefixes are matched against entry names;
// an empty IncludePrefix admits every package and an empty ExcludePrefix
// excludes none. Include and Exclude are optional glob lists ('/' is the
// separator) that further narrow the selection.
type Rules struct {
	IncludePrefix string
	ExcludePrefix string
	Include       []string
	Exclude       []string
}

// DefaultRules selects net/minecraft/ without its client package.
func DefaultRules() Rules {
	return Rules{IncludePrefix: DefaultIncludePrefix, ExcludePrefix: DefaultExcludePrefix}
}

// Predicate decides which archive entries go into the stub archive.
type Predicate struct {
	includePrefix string
	excludePrefix string
	include       []glob.Glob
	exclude       []glob.Glob
}

func NewPredicate(r Rules) (*Predicate, error) {
	include, err := compileGlobs(r.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileGlobs(r.Exclude)
	if err != nil {
		return nil, err
	}
	return &Predicate{
		includePrefix: r.IncludePrefix,
		excludePrefix: r.ExcludePrefix,
		include:       include,
		exclude:       exclude,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether the entry called name is a classfile selected by p.
func (p *Predicate) Match(name string) bool {
	if !strings.HasSuffix(name, ".class") {
		return false
	}
	if !strings.HasPrefix(name, p.includePrefix) {
		return false
	}
	if p.excludePrefix != "" && strings.HasPrefix(name, p.excludePrefix) {
		return false
	}
	if len(p.include) > 0 && !anyMatch(p.include, name) {
		return false
	}
	return !anyMatch(p.exclude, name)
}

func anyMatch(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
