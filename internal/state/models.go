// Package state persists a record of each invocation and, when it fails,
// why it failed.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run describes one invocation. ConfigHash identifies the configuration
// it ran with; Artifacts lists the archives it was asked to process.
type Run struct {
	RunID      string     `json:"run_id"`
	Command    string     `json:"command"`
	ConfigHash string     `json:"config_hash"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    *time.Time `json:"end_time"`
	Artifacts  []string   `json:"artifacts"`
	Status     RunStatus  `json:"status"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Command) == "" {
		errs = append(errs, errors.New("command is required"))
	}
	if strings.TrimSpace(r.ConfigHash) == "" {
		errs = append(errs, errors.New("config_hash is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time is before start_time"))
	}
	switch r.Status {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassConfig     FailureClass = "config"
	FailureClassInput      FailureClass = "input"
	FailureClassTransform  FailureClass = "transform"
	FailureClassProcessing FailureClass = "processing"
	FailureClassSystem     FailureClass = "system"
)

// Failure is the recorded reason a run stopped. Stage is set when the
// failure happened inside a pipeline stage.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Stage        *string      `json:"stage,omitempty"`
	Artifact     *string      `json:"artifact,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassConfig, FailureClassInput, FailureClassTransform, FailureClassProcessing, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Stage != nil && strings.TrimSpace(*f.Stage) == "" {
		errs = append(errs, errors.New("stage must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
