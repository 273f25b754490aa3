package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"modpatcher/internal/state"
)

func (a *app) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		Args:  exactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := a.stateStore()
			if err != nil {
				return err
			}
			ids, err := store.ListRunIDs()
			if err != nil {
				return err
			}
			for _, id := range ids {
				run, err := store.LoadRun(id)
				if err != nil {
					a.logger.Warn("skipping unreadable run record", slog.String("run_id", id), slog.Any("error", err))
					continue
				}
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n", run.RunID, run.StartTime.UTC().Format("2006-01-02T15:04:05Z"), run.Status, run.Command)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a run record and its failure, if any, as JSON",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := a.stateStore()
			if err != nil {
				return err
			}
			run, err := store.LoadRun(args[0])
			if errors.Is(err, fs.ErrNotExist) {
				return invalidInvocationf("no run %q", args[0])
			}
			if err != nil {
				return err
			}
			out := struct {
				Run     state.Run      `json:"run"`
				Failure *state.Failure `json:"failure,omitempty"`
			}{Run: run}
			if run.Status == state.RunStatusFailed {
				f, err := store.LoadFailure(run.RunID)
				switch {
				case err == nil:
					out.Failure = &f
				case !errors.Is(err, fs.ErrNotExist):
					return err
				}
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, string(b))
			return err
		},
	})
	return cmd
}

func (a *app) stateStore() (*state.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return state.NewStore(cfg.StateDir)
}
