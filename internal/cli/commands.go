package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"modpatcher/internal/config"
	"modpatcher/internal/host"
	"modpatcher/internal/inherit"
	"modpatcher/internal/pipeline"
	"modpatcher/internal/reconcile"
	"modpatcher/internal/stub"
	"modpatcher/internal/transform"
)

func (a *app) processor(s *session) (*pipeline.Processor, []transform.MixinSource, error) {
	t, mixins, err := pipeline.NewTransformer(s.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	p := &pipeline.Processor{
		Config:   s.cfg,
		Logger:   a.logger,
		Trace:    s.recorder,
		Versions: map[string]string{"modpatcher": Version},
	}
	if t != nil {
		p.Transformer = t
	}
	return p, mixins, nil
}

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configured binary and source steps with processing installed",
		Long: `Run builds the binary and source steps described under "steps" in the
configuration. Each step copies its input to its output, is processed, and
is committed to the step cache under cache_dir unless caching is disabled.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.newSession()
			if err != nil {
				return err
			}
			if err := s.cfg.ValidateSteps(); err != nil {
				return &config.Error{Path: a.configFile(), Err: err}
			}
			artifacts := []string{s.cfg.Steps.Binary.Output, s.cfg.Steps.Source.Output}
			return a.record(s, "run", artifacts, func() error {
				p, mixins, err := a.processor(s)
				if err != nil {
					return err
				}
				cache := host.NewFileCache(s.cfg.CacheDir)
				binary := a.hostStep(s.cfg.Steps.Binary.Name, s.cfg.Steps.Binary.Input, s.cfg.Steps.Binary.Output, s.cfg.Steps.Binary.Inputs, cache)
				source := a.hostStep(s.cfg.Steps.Source.Name, s.cfg.Steps.Source.Input, s.cfg.Steps.Source.Output, s.cfg.Steps.Source.Inputs, cache)
				if err := p.Install(binary, source, mixins); err != nil {
					return err
				}
				a.logger.Debug("installed processing",
					slog.Any("binary_actions", host.DescribeAll(binary.Actions())),
					slog.Any("source_actions", host.DescribeAll(source.Actions())))

				for _, step := range []*host.Step{binary, source} {
					if err := step.Run(cmd.Context()); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

// hostStep builds a step that copies in to out and then commits out to
// the cache.
func (a *app) hostStep(name, in, out string, inputs []string, cache host.Cache) *host.Step {
	s := host.NewStep(name, out)
	s.Cache = cache
	s.Logger = a.logger
	s.AddInputs(in)
	s.AddInputs(inputs...)
	s.Append(
		host.Wrap(name+":produce", host.CopyAction{From: in}),
		host.Wrap(name+":cache", host.WriteCacheAction{}),
	)
	return s
}

func (a *app) processCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process one archive in place",
	}
	for _, kind := range []string{"binary", "source"} {
		kind := kind
		cmd.AddCommand(&cobra.Command{
			Use:   kind + " <jar>",
			Short: fmt.Sprintf("Process a %s archive in place", kind),
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.newSession()
				if err != nil {
					return err
				}
				return a.record(s, "process "+kind, args, func() error {
					p, _, err := a.processor(s)
					if err != nil {
						return err
					}
					if kind == "binary" {
						return p.ProcessBinary(cmd.Context(), args[0])
					}
					return p.ProcessSource(cmd.Context(), args[0])
				})
			},
		})
	}
	return cmd
}

func (a *app) inheritCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "inherit <jar>...",
		Short: "Write the inheritance map of one or more archives",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return invalidInvocationf("%s: at least one archive is required", cmd.Name())
			}
			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := a.newSession()
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(s.cfg.GeneratedDir, inherit.FileName(s.cfg.Codec()))
			}
			b := inherit.NewBuilder(a.logger)
			for _, jar := range args {
				if err := b.Add(jar); err != nil {
					return pipeline.Classify("inheritance map", jar, err)
				}
			}
			if err := inherit.Write(out, b.Map(), s.cfg.Codec()); err != nil {
				return pipeline.Classify("inheritance map", out, err)
			}
			fmt.Fprintf(a.stdout, "%s: %d classes, %d edges\n", out, b.Scanned(), len(b.Map()))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <generated_dir>/extends_map.json[.zst|.gz])")
	return cmd
}

func (a *app) stubsCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "stubs <jar>",
		Short: "Write the stub archive of an archive",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := a.newSession()
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(s.cfg.GeneratedDir, stub.FileName(s.cfg.Codec()))
			}
			pred, err := stub.NewPredicate(s.cfg.StubRules())
			if err != nil {
				return err
			}
			b := stub.Builder{Predicate: pred, Codec: s.cfg.Codec(), Logger: a.logger}
			st, err := b.Build(args[0], out)
			if err != nil {
				return pipeline.Classify("stub archive", args[0], err)
			}
			fmt.Fprintf(a.stdout, "%s: %d classes kept, %d entries dropped\n", out, st.Included, st.Dropped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default <generated_dir>/stubs.jar[.zst|.gz])")
	return cmd
}

func (a *app) extractCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "extract <jar>",
		Short: "Extract generated sources not present in the reference tree",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			s, err := a.newSession()
			if err != nil {
				return err
			}
			if out == "" {
				out = s.cfg.GeneratedSourceDir()
			}
			r := reconcile.Reconciler{OutputDir: out, ReferenceDir: s.cfg.ReferenceSourceDir, Logger: a.logger}
			res, err := r.Reconcile(args[0])
			if err != nil {
				return pipeline.Classify("source extraction", args[0], err)
			}
			fmt.Fprintf(a.stdout, "%s: %d written, %d skipped\n", out, res.Written, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output directory (default <generated_dir>/src)")
	return cmd
}
