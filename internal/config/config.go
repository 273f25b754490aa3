// Package config loads the processing configuration.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"modpatcher/internal/codec"
	"modpatcher/internal/reconcile"
	"modpatcher/internal/stub"
	"modpatcher/internal/transform"
)

// EnvDisableCaching overrides disable_caching.
const EnvDisableCaching = "MODPATCHER_DISABLE_CACHING"

// ProcessingConfig is the immutable configuration of one invocation.
type ProcessingConfig struct {
	// MixinPackage is a dotted package; "" disables mixins and "all" uses
	// every source root.
	MixinPackage   string `yaml:"mixin_package" json:"mixin_package"`
	NoMixinIsError bool   `yaml:"no_mixin_is_error" json:"no_mixin_is_error"`

	GenerateInheritanceHierarchy bool `yaml:"generate_inheritance_hierarchy" json:"generate_inheritance_hierarchy"`
	GenerateStubClasses          bool `yaml:"generate_stub_classes" json:"generate_stub_classes"`
	ExtractGeneratedSources      bool `yaml:"extract_generated_sources" json:"extract_generated_sources"`
	DisableCaching               bool `yaml:"disable_caching" json:"disable_caching"`

	GeneratedDir       string   `yaml:"generated_dir" json:"generated_dir"`
	SourceDirs         []string `yaml:"source_dirs" json:"source_dirs"`
	ReferenceSourceDir string   `yaml:"reference_source_dir" json:"reference_source_dir"`
	Compression        string   `yaml:"compression" json:"compression"`

	Stubs     Stubs     `yaml:"stubs" json:"stubs"`
	Transform Transform `yaml:"transform" json:"transform"`
	Steps     Steps     `yaml:"steps" json:"steps"`

	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	StateDir string `yaml:"state_dir" json:"state_dir"`
}

type Stubs struct {
	IncludePrefix string   `yaml:"include_prefix" json:"include_prefix"`
	ExcludePrefix string   `yaml:"exclude_prefix" json:"exclude_prefix"`
	Include       []string `yaml:"include" json:"include,omitempty"`
	Exclude       []string `yaml:"exclude" json:"exclude,omitempty"`
}

// Transform configures the external transform command. Command may use
// {in} and {out}.
type Transform struct {
	Command    string            `yaml:"command" json:"command"`
	Env        map[string]string `yaml:"env" json:"env,omitempty"`
	WorkingDir string            `yaml:"working_dir" json:"working_dir,omitempty"`
}

type Steps struct {
	Binary Step `yaml:"binary" json:"binary"`
	Source Step `yaml:"source" json:"source"`
}

// Step describes one host step driven by the run command. Input is the
// upstream artifact copied to Output; Inputs are extra cache key inputs.
type Step struct {
	Name   string   `yaml:"name" json:"name"`
	Input  string   `yaml:"input" json:"input"`
	Output string   `yaml:"output" json:"output"`
	Inputs []string `yaml:"inputs" json:"inputs,omitempty"`
}

// Error is a configuration that could not be loaded or is invalid.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Default returns the configuration used when a field is not set.
func Default() ProcessingConfig {
	return ProcessingConfig{
		NoMixinIsError:     true,
		DisableCaching:     true,
		GeneratedDir:       filepath.Join("build", "modpatcher"),
		SourceDirs:         []string{filepath.Join("src", "main", "java")},
		ReferenceSourceDir: filepath.Join("src", "main", "java"),
		Compression:        string(codec.None),
		Stubs: Stubs{
			IncludePrefix: stub.DefaultIncludePrefix,
			ExcludePrefix: stub.DefaultExcludePrefix,
		},
		Steps: Steps{
			Binary: Step{Name: "binary"},
			Source: Step{Name: "source"},
		},
		CacheDir: filepath.Join(".modpatcher", "cache"),
		StateDir: filepath.Join(".modpatcher", "state"),
	}
}

// Load reads path, applies environment overrides and validates. An empty
// path yields the defaults with overrides.
func Load(path string) (ProcessingConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ProcessingConfig{}, &Error{Path: path, Err: err}
		}
		if cfg, err = Parse(data); err != nil {
			return ProcessingConfig{}, &Error{Path: path, Err: err}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return ProcessingConfig{}, &Error{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return ProcessingConfig{}, &Error{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes a single YAML document over the defaults. Unknown fields
// are errors.
func Parse(data []byte) (ProcessingConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return ProcessingConfig{}, fmt.Errorf("parsing yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return ProcessingConfig{}, errors.New("parsing yaml: expected a single document")
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides using lookup.
func (c *ProcessingConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDisableCaching); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDisableCaching, err)
		}
		c.DisableCaching = b
	}
	return nil
}

// Validate reports every problem at once.
func (c *ProcessingConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.GeneratedDir) == "" {
		errs = append(errs, errors.New("generated_dir is required"))
	}
	if _, err := codec.Parse(c.Compression); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}
	if _, err := stub.NewPredicate(c.StubRules()); err != nil {
		errs = append(errs, fmt.Errorf("stubs: %w", err))
	}
	if c.MixinPackage != "" && c.MixinPackage != transform.AllPackages {
		if strings.ContainsAny(c.MixinPackage, "/\\") || strings.HasPrefix(c.MixinPackage, ".") || strings.HasSuffix(c.MixinPackage, ".") {
			errs = append(errs, fmt.Errorf("mixin_package %q is not a dotted package name", c.MixinPackage))
		}
	}
	if c.ShouldMixin() {
		if strings.TrimSpace(c.Transform.Command) == "" {
			errs = append(errs, errors.New("transform.command is required when mixin_package is set"))
		}
		if len(c.SourceDirs) == 0 {
			errs = append(errs, errors.New("source_dirs is required when mixin_package is set"))
		}
	}
	if c.ExtractGeneratedSources && strings.TrimSpace(c.ReferenceSourceDir) == "" {
		errs = append(errs, errors.New("reference_source_dir is required when extract_generated_sources is set"))
	}
	if strings.TrimSpace(c.GeneratedDir) != "" && strings.TrimSpace(c.ReferenceSourceDir) != "" {
		if err := reconcile.CheckOverlap(c.GeneratedSourceDir(), c.ReferenceSourceDir); err != nil {
			errs = append(errs, fmt.Errorf("reference_source_dir: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ValidateSteps checks the fields the run command needs.
func (c *ProcessingConfig) ValidateSteps() error {
	var errs []error
	for _, s := range []struct {
		key  string
		step Step
	}{{"binary", c.Steps.Binary}, {"source", c.Steps.Source}} {
		if s.step.Name == "" {
			errs = append(errs, fmt.Errorf("steps.%s.name is required", s.key))
		}
		if s.step.Input == "" {
			errs = append(errs, fmt.Errorf("steps.%s.input is required", s.key))
		}
		if s.step.Output == "" {
			errs = append(errs, fmt.Errorf("steps.%s.output is required", s.key))
		}
	}
	if c.Steps.Binary.Name != "" && c.Steps.Binary.Name == c.Steps.Source.Name {
		errs = append(errs, errors.New("steps.binary.name and steps.source.name must differ"))
	}
	return errors.Join(errs...)
}

// ShouldMixin reports whether the mixin transform runs at all.
func (c *ProcessingConfig) ShouldMixin() bool { return c.MixinPackage != "" }

// Codec returns the configured outer compression. Validate has checked it.
func (c *ProcessingConfig) Codec() codec.Codec {
	cc, _ := codec.Parse(c.Compression)
	return cc
}

func (c *ProcessingConfig) StubRules() stub.Rules {
	return stub.Rules{
		IncludePrefix: c.Stubs.IncludePrefix,
		ExcludePrefix: c.Stubs.ExcludePrefix,
		Include:       c.Stubs.Include,
		Exclude:       c.Stubs.Exclude,
	}
}

// GeneratedSourceDir is the directory the source reconciler owns.
func (c *ProcessingConfig) GeneratedSourceDir() string {
	return filepath.Join(c.GeneratedDir, "src")
}

// Hash identifies the configuration. Equal configurations hash equally.
func (c *ProcessingConfig) Hash() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
