// Package cli wires the processing pipeline to the modpatcher command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"modpatcher/internal/codec"
	"modpatcher/internal/config"
	"modpatcher/internal/state"
	"modpatcher/internal/trace"
)

// Version is reported by --version and recorded in step cache keys.
var Version = "dev"

// EnvConfig names the config file when --config is not given.
const EnvConfig = "MODPATCHER_CONFIG"

// app holds the persistent flags and the output streams of one invocation.
type app struct {
	configPath string
	tracePath  string
	verbose    bool

	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewRootCommand builds the command tree. Output goes to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "modpatcher",
		Short: "Post-process build archives: mixins, inheritance map, stubs, generated sources",
		Long: `modpatcher post-processes the binary and source archives of a build.

It applies mixins to the archives in place (rolling back on failure),
writes an inheritance map and a stub archive from the binary archive, and
extracts generated sources from the source archive.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if a.verbose {
				level = slog.LevelDebug
			}
			a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "configuration file (default $"+EnvConfig+")")
	pf.StringVar(&a.tracePath, "trace", "", "write the canonical decision trace to this path")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		a.runCommand(),
		a.processCommand(),
		a.inheritCommand(),
		a.stubsCommand(),
		a.extractCommand(),
		a.runsCommand(),
	)
	return root
}

// Run executes the command line args and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		if strings.HasPrefix(err.Error(), "unknown command") {
			err = invalidInvocationf("%v", err)
		}
		fmt.Fprintln(stderr, "modpatcher:", err)
	}
	return ExitCode(err)
}

func (a *app) configFile() string {
	if a.configPath != "" {
		return a.configPath
	}
	return os.Getenv(EnvConfig)
}

func (a *app) loadConfig() (config.ProcessingConfig, error) {
	return config.Load(a.configFile())
}

// session is the per-command state shared by the processing commands.
type session struct {
	cfg      config.ProcessingConfig
	hash     string
	recorder *trace.Recorder
}

func (a *app) newSession() (*session, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	hash, err := cfg.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing config: %w", err)
	}
	return &session{cfg: cfg, hash: hash, recorder: trace.NewRecorder()}, nil
}

// record wraps fn with a run record in the state directory. Failing to
// write the record is logged, never returned.
func (a *app) record(s *session, command string, artifacts []string, fn func() error) error {
	log := a.logger.With(slog.String("command", command))

	var rec *state.Recorder
	var run state.Run
	store, err := state.NewStore(s.cfg.StateDir)
	if err == nil {
		rec = &state.Recorder{Store: store}
		run, err = rec.Start(command, s.hash, artifacts)
	}
	if err != nil {
		log.Warn("could not record run", slog.Any("error", err))
		rec = nil
	} else {
		log = log.With(slog.String("run_id", run.RunID))
	}

	runErr := fn()
	if runErr == nil {
		runErr = a.writeTrace(s)
	}
	if rec != nil {
		if err := rec.Finish(run, runErr); err != nil {
			log.Warn("could not record run result", slog.Any("error", err))
		}
	}
	if runErr != nil {
		log.Error("run failed", slog.Any("error", runErr))
	} else {
		log.Debug("run finished")
	}
	return runErr
}

func (a *app) writeTrace(s *session) error {
	if a.tracePath == "" {
		return nil
	}
	tr := s.recorder.Trace(s.hash)
	if err := tr.Validate(); err != nil {
		return fmt.Errorf("invalid trace: %w", err)
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		return err
	}
	return codec.WriteFile(a.tracePath, codec.None, func(w io.Writer) error {
		_, err := w.Write(append(b, '\n'))
		return err
	})
}
