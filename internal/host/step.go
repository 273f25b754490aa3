// Package host models the externally driven build graph that the pipeline
// attaches to: steps with ordered action lists, bookkeeping wrappers around
// actions, and a content-addressed step cache committed by a checkpoint
// action at the end of each list.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Action is one side effect of a Step.
type Action interface {
	Execute(ctx context.Context, s *Step) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, s *Step) error

func (f ActionFunc) Execute(ctx context.Context, s *Step) error { return f(ctx, s) }

// Wrapper is implemented by bookkeeping actions that delegate to another
// action.
type Wrapper interface {
	Inner() Action
}

// Wrapped is the host's bookkeeping wrapper. It runs Action unchanged.
type Wrapped struct {
	Label  string
	Action Action
}

// Wrap wraps a with a bookkeeping label.
func Wrap(label string, a Action) *Wrapped { return &Wrapped{Label: label, Action: a} }

func (w *Wrapped) Execute(ctx context.Context, s *Step) error {
	if w.Action == nil {
		return nil
	}
	return w.Action.Execute(ctx, s)
}

func (w *Wrapped) Inner() Action { return w.Action }

func (w *Wrapped) String() string { return "wrapped(" + w.Label + ")" }

// ActionList is an ordered, externally owned list of actions. Callers may
// only insert.
type ActionList interface {
	Len() int
	At(i int) Action
	Insert(i int, a Action)
}

// Actions is the slice-backed ActionList used by Step.
type Actions []Action

func (l *Actions) Len() int        { return len(*l) }
func (l *Actions) At(i int) Action { return (*l)[i] }

// Insert places a at index i, shifting later actions right. i == Len()
// appends.
func (l *Actions) Insert(i int, a Action) {
	s := *l
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = a
	*l = s
}

// Cacheable is implemented by steps whose output can be written to and
// replayed from a cache.
type Cacheable interface {
	Caching() bool
	SetCaching(bool)
}

// Step is one build step: it owns an output artifact, the inputs and
// properties that identify that output, and the actions that produce it.
type Step struct {
	Name   string
	Output string

	inputs     []string
	properties map[string]string
	actions    Actions

	Cache   Cache
	caching bool
	key     Key

	Logger *slog.Logger
}

// NewStep returns a step with caching enabled.
func NewStep(name, output string) *Step {
	return &Step{Name: name, Output: output, properties: map[string]string{}, caching: true}
}

func (s *Step) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Actions returns the step's action list for insertion.
func (s *Step) Actions() ActionList { return &s.actions }

// Append adds actions at the end of the list.
func (s *Step) Append(actions ...Action) { s.actions = append(s.actions, actions...) }

// AddInputs registers files, directories or glob patterns whose contents
// take part in the step's cache key.
func (s *Step) AddInputs(patterns ...string) { s.inputs = append(s.inputs, patterns...) }

// Inputs returns the registered input patterns.
func (s *Step) Inputs() []string { return append([]string(nil), s.inputs...) }

// SetProperty registers a named value that takes part in the cache key.
func (s *Step) SetProperty(name, value string) {
	if s.properties == nil {
		s.properties = map[string]string{}
	}
	s.properties[name] = value
}

// Properties returns a copy of the registered properties.
func (s *Step) Properties() map[string]string {
	out := make(map[string]string, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

func (s *Step) Caching() bool      { return s.caching }
func (s *Step) SetCaching(on bool) { s.caching = on }
func (s *Step) cacheActive() bool  { return s.caching && s.Cache != nil }
func (s *Step) CacheKey() Key      { return s.key }

// ComputeKey derives the step's cache key from its name, output path,
// properties and the content of every resolved input.
func (s *Step) ComputeKey() (Key, error) {
	inputs, err := ResolveInputs(s.inputs)
	if err != nil {
		return "", fmt.Errorf("step %s: %w", s.Name, err)
	}
	return ComputeKey(KeyInput{
		Step:       s.Name,
		Output:     s.Output,
		Properties: s.properties,
		Inputs:     inputs,
	}), nil
}

// Run executes the step. With caching active, a cached output for the
// current key is restored and no action runs; otherwise every action runs
// in list order and the first failure stops the step.
func (s *Step) Run(ctx context.Context) error {
	log := s.logger().With(slog.String("step", s.Name))

	if s.cacheActive() {
		key, err := s.ComputeKey()
		if err != nil {
			return err
		}
		s.key = key
		entry, err := s.Cache.Get(key)
		if err != nil {
			return fmt.Errorf("step %s: reading cache: %w", s.Name, err)
		}
		if entry != nil {
			if err := writeFileAtomic(s.Output, entry.Output, 0o644); err != nil {
				return fmt.Errorf("step %s: restoring cached output: %w", s.Name, err)
			}
			log.Info("step output restored from cache", slog.String("key", key.String()))
			return nil
		}
	}

	for i, a := range s.actions {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("step %s: %w", s.Name, err)
		}
		if err := a.Execute(ctx, s); err != nil {
			return fmt.Errorf("step %s: action %d (%s): %w", s.Name, i, Describe(a), err)
		}
	}
	log.Debug("step finished", slog.Int("actions", len(s.actions)))
	return nil
}

// Describe names an action for diagnostics.
func Describe(a Action) string {
	if st, ok := a.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("%T", a)
}

// DescribeAll names every action of l in order.
func DescribeAll(l ActionList) []string {
	out := make([]string, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		out = append(out, Describe(l.At(i)))
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
