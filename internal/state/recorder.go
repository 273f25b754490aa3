package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recorder writes run.json when a run starts and finishes, and
// failure.json when it fails.
type Recorder struct {
	Store *Store
	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// NewRunID returns a random run identifier.
func NewRunID() string { return uuid.NewString() }

// Start records a new running run and returns it.
func (r *Recorder) Start(command, configHash string, artifacts []string) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("store is required")
	}
	run := Run{
		RunID:      NewRunID(),
		Command:    command,
		ConfigHash: configHash,
		StartTime:  r.now(),
		Artifacts:  append([]string{}, artifacts...),
		Status:     RunStatusRunning,
	}
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Finish marks run as succeeded, or as failed with a failure.json
// classifying cause.
func (r *Recorder) Finish(run Run, cause error) error {
	if r == nil || r.Store == nil {
		return errors.New("store is required")
	}
	end := r.now()
	run.EndTime = &end
	run.Status = RunStatusSucceeded
	if cause != nil {
		run.Status = RunStatusFailed
		f, err := Classify(cause)
		if err != nil {
			return err
		}
		if err := r.Store.SaveFailure(run.RunID, f); err != nil {
			return fmt.Errorf("recording failure: %w", err)
		}
	}
	return r.Store.SaveRun(run)
}
