package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"modpatcher/internal/config"
	"modpatcher/internal/host"
	"modpatcher/internal/inject"
	"modpatcher/internal/transform"
)

// ErrAlreadyInstalled is returned by a second Install on the same Processor.
var ErrAlreadyInstalled = errors.New("processing already installed")

// NewTransformer builds the command transformer for cfg, discovering the
// mixin directories under cfg.SourceDirs. It returns nil when mixins are
// disabled.
func NewTransformer(cfg config.ProcessingConfig, logger *slog.Logger) (*transform.Command, []transform.MixinSource, error) {
	if !cfg.ShouldMixin() {
		return nil, nil, nil
	}
	sources, err := transform.DiscoverMixinSources(cfg.SourceDirs, cfg.MixinPackage)
	if err != nil {
		return nil, nil, err
	}
	return &transform.Command{
		Run:            cfg.Transform.Command,
		Env:            cfg.Transform.Env,
		WorkingDir:     cfg.Transform.WorkingDir,
		MixinSources:   sources,
		MixinPackage:   cfg.MixinPackage,
		NoMixinIsError: cfg.NoMixinIsError,
		Logger:         logger,
	}, sources, nil
}

// Install hooks processing into the binary and source steps. Mixin
// directories and tool versions become step inputs, caching is turned off
// when configured, and each step gets one processing action before its
// cache checkpoint. It may run once per Processor.
func (p *Processor) Install(binary, source *host.Step, mixins []transform.MixinSource) error {
	if p.installed {
		return ErrAlreadyInstalled
	}
	p.installed = true

	for _, s := range []*host.Step{binary, source} {
		s.AddInputs(transform.Dirs(mixins)...)
		for _, name := range sortedNames(p.Versions) {
			s.SetProperty("version."+name, p.Versions[name])
		}
	}

	in := inject.Injector{Logger: p.logger(), Trace: p.Trace}
	in.Instrument(binary, processAction{name: "ProcessBinary", run: p.ProcessBinary}, p.Config.DisableCaching)
	in.Instrument(source, processAction{name: "ProcessSource", run: p.ProcessSource}, p.Config.DisableCaching)
	return nil
}

// processAction runs a Processor stage over the step's output.
type processAction struct {
	name string
	run  func(ctx context.Context, path string) error
}

func (a processAction) Execute(ctx context.Context, s *host.Step) error { return a.run(ctx, s.Output) }
func (a processAction) String() string                                  { return a.name }

func sortedNames(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
