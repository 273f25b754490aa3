// Package pipeline post-processes the binary and source archives of the
// host build: it runs the mixin transform over them and derives the
// inheritance map, the stub archive and the generated source tree.
package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"modpatcher/internal/config"
	"modpatcher/internal/inherit"
	"modpatcher/internal/reconcile"
	"modpatcher/internal/stub"
	"modpatcher/internal/trace"
	"modpatcher/internal/transform"
)

// Processor runs the post-processing stages for one configuration.
type Processor struct {
	Config config.ProcessingConfig
	// Transformer applies mixins. It is only used when the configuration
	// names a mixin package.
	Transformer transform.Transformer
	Logger      *slog.Logger
	Trace       trace.Sink
	// Versions are recorded as step properties by Install so that a tool
	// upgrade changes the host cache key.
	Versions map[string]string

	installed bool
}

func (p *Processor) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

func (p *Processor) record(e trace.Event) { trace.SafeRecord(p.Trace, e) }

// InheritanceMapPath is where ProcessBinary writes the inheritance map.
func (p *Processor) InheritanceMapPath() string {
	return filepath.Join(p.Config.GeneratedDir, inherit.FileName(p.Config.Codec()))
}

// StubArchivePath is where ProcessBinary writes the stub archive.
func (p *Processor) StubArchivePath() string {
	return filepath.Join(p.Config.GeneratedDir, stub.FileName(p.Config.Codec()))
}

// ProcessBinary transforms the binary archive at path and then derives the
// enabled metadata artifacts from the transformed archive. A missing
// archive is skipped with a warning.
func (p *Processor) ProcessBinary(ctx context.Context, path string) error {
	step := p.Config.Steps.Binary.Name
	log := p.logger().With(slog.String("step", step), slog.String("artifact", path))

	if ok, err := p.present(step, path, log); !ok || err != nil {
		return err
	}

	if p.Config.ShouldMixin() {
		if err := p.transform(ctx, step, path, log); err != nil {
			return err
		}
	}

	if p.Config.GenerateInheritanceHierarchy {
		out := p.InheritanceMapPath()
		m, err := inherit.Build(path)
		if err != nil {
			return Classify("inheritance map", path, err)
		}
		if err := inherit.Write(out, m, p.Config.Codec()); err != nil {
			return Classify("inheritance map", out, err)
		}
		log.Info("wrote inheritance map", slog.String("output", out), slog.Int("edges", len(m)))
		p.record(trace.Event{Kind: trace.InheritanceMapWritten, Step: step, Artifact: path, Outputs: []string{out}})
	}

	if p.Config.GenerateStubClasses {
		out := p.StubArchivePath()
		pred, err := stub.NewPredicate(p.Config.StubRules())
		if err != nil {
			return Classify("stub archive", out, err)
		}
		b := stub.Builder{Predicate: pred, Codec: p.Config.Codec(), Logger: p.logger()}
		st, err := b.Build(path, out)
		if err != nil {
			return Classify("stub archive", path, err)
		}
		log.Info("wrote stub archive", slog.String("output", out),
			slog.Int("classes", st.Included), slog.Int("dropped", st.Dropped))
		p.record(trace.Event{Kind: trace.StubArchiveWritten, Step: step, Artifact: path, Outputs: []string{out}})
	}
	return nil
}

// ProcessSource extracts generated sources from the untransformed source
// archive at path and then transforms the archive. A missing archive is
// skipped with a warning.
func (p *Processor) ProcessSource(ctx context.Context, path string) error {
	step := p.Config.Steps.Source.Name
	log := p.logger().With(slog.String("step", step), slog.String("artifact", path))

	if ok, err := p.present(step, path, log); !ok || err != nil {
		return err
	}

	if p.Config.ExtractGeneratedSources {
		r := reconcile.Reconciler{
			OutputDir:    p.Config.GeneratedSourceDir(),
			ReferenceDir: p.Config.ReferenceSourceDir,
			Logger:       p.logger(),
		}
		res, err := r.Reconcile(path)
		if err != nil {
			return Classify("source extraction", path, err)
		}
		log.Info("extracted generated sources", slog.String("output", r.OutputDir),
			slog.Int("written", res.Written), slog.Int("skipped", res.Skipped))
		p.record(trace.Event{Kind: trace.SourcesExtracted, Step: step, Artifact: path, Outputs: []string{r.OutputDir}})
	}

	if p.Config.ShouldMixin() {
		return p.transform(ctx, step, path, log)
	}
	return nil
}

func (p *Processor) present(step, path string, log *slog.Logger) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("artifact does not exist, skipping processing", slog.Any("reason", ErrMissingInput))
		p.record(trace.Event{Kind: trace.ArtifactMissing, Step: step, Artifact: path, Reason: "not found"})
		return false, nil
	}
	return false, Classify("stat", path, err)
}

func (p *Processor) transform(ctx context.Context, step, path string, log *slog.Logger) error {
	if p.Transformer == nil {
		return &Error{Kind: ErrTransform, Stage: "transform", Path: path, Err: errors.New("no transformer configured")}
	}
	err := transform.Apply(path, transform.Bind(ctx, p.Transformer))
	if err != nil {
		var te *transform.Error
		if errors.As(err, &te) {
			reason := "original restored"
			if te.Restore != nil {
				reason = "restore failed"
			}
			p.record(trace.Event{Kind: trace.TransformRolledBack, Step: step, Artifact: path, Reason: reason})
			log.Error("transform failed, original restored", slog.Any("error", err))
		}
		return Classify("transform", path, err)
	}
	log.Info("applied mixins")
	p.record(trace.Event{Kind: trace.TransformApplied, Step: step, Artifact: path})
	return nil
}
