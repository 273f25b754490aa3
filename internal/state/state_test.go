package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modpatcher/internal/classfile"
	"modpatcher/internal/config"
	"modpatcher/internal/pipeline"
	"modpatcher/internal/transform"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(dir)
	require.NoError(t, err)
	return s, dir
}

func TestStore_RunRoundTrip(t *testing.T) {
	s, dir := newStore(t)
	run := Run{
		RunID:      "run-1",
		Command:    "run",
		ConfigHash: "abc",
		StartTime:  time.Unix(10, 0).UTC(),
		Status:     RunStatusRunning,
	}
	require.NoError(t, s.SaveRun(run))

	data, err := os.ReadFile(filepath.Join(dir, "runs", "run-1", "run.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"end_time": null`)
	assert.Contains(t, string(data), `"artifacts": []`)

	loaded, err := s.LoadRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.ConfigHash, loaded.ConfigHash)
	assert.Nil(t, loaded.EndTime)

	ids, err := s.ListRunIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

func TestStore_RejectsInvalidRecords(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.SaveRun(Run{RunID: "r"}))
	assert.Error(t, s.SaveFailure("r", Failure{FailureClass: "graph", ErrorCode: "x", ErrorMessage: "y"}))
	assert.Error(t, s.SaveRun(Run{RunID: "../up", Command: "run", ConfigHash: "h", StartTime: time.Now(), Status: RunStatusRunning}))

	_, err := NewStore(" ")
	assert.Error(t, err)
}

func TestStore_LoadRejectsUnknownFields(t *testing.T) {
	s, dir := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "runs", "r"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs", "r", "failure.json"),
		[]byte(`{"failure_class":"system","error_code":"x","error_message":"y","resumable":true}`), 0o644))
	_, err := s.LoadFailure("r")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	parseErr := fmt.Errorf("scanning A.class: %w", &classfile.FormatError{Msg: "truncated"})
	cases := []struct {
		name  string
		err   error
		class FailureClass
		code  string
		stage string
	}{
		{"config", &config.Error{Path: "m.yaml", Err: errors.New("bad")}, FailureClassConfig, "ConfigInvalid", ""},
		{"no mixins", fmt.Errorf("discovery: %w", transform.ErrNoMixinSources), FailureClassConfig, "NoMixinSources", ""},
		{"parse", &pipeline.Error{Kind: pipeline.ErrParse, Stage: "stub archive", Path: "bin.jar", Err: parseErr}, FailureClassInput, "MalformedClassfile", "stub archive"},
		{"transform", &pipeline.Error{Kind: pipeline.ErrTransform, Stage: "transform", Path: "bin.jar", Err: errors.New("exit 1")}, FailureClassTransform, "TransformFailed", "transform"},
		{"io", &pipeline.Error{Kind: pipeline.ErrIO, Stage: "source extraction", Path: "src.jar", Err: os.ErrPermission}, FailureClassProcessing, "ArtifactIO", "source extraction"},
		{"canceled", fmt.Errorf("step binary: %w", context.Canceled), FailureClassSystem, "Interrupted", ""},
		{"unknown", errors.New("???"), FailureClassSystem, "UnknownError", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Classify(tc.err)
			require.NoError(t, err)
			assert.Equal(t, tc.class, f.FailureClass)
			assert.Equal(t, tc.code, f.ErrorCode)
			if tc.stage == "" {
				assert.Nil(t, f.Stage)
			} else {
				require.NotNil(t, f.Stage)
				assert.Equal(t, tc.stage, *f.Stage)
			}
			require.NoError(t, f.Validate())
		})
	}

	_, err := Classify(nil)
	assert.Error(t, err)
}

func TestRecorder_StartAndFinish(t *testing.T) {
	s, _ := newStore(t)
	clock := time.Unix(100, 0)
	r := &Recorder{Store: s, Now: func() time.Time { clock = clock.Add(time.Second); return clock }}

	ok, err := r.Start("process binary", "cfg", []string{"bin.jar"})
	require.NoError(t, err)
	_, err = uuid.Parse(ok.RunID)
	require.NoError(t, err)
	require.NoError(t, r.Finish(ok, nil))

	loaded, err := s.LoadRun(ok.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusSucceeded, loaded.Status)
	require.NotNil(t, loaded.EndTime)
	_, err = s.LoadFailure(ok.RunID)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad, err := r.Start("run", "cfg", nil)
	require.NoError(t, err)
	require.NoError(t, r.Finish(bad, &pipeline.Error{Kind: pipeline.ErrTransform, Stage: "transform", Path: "bin.jar", Err: errors.New("boom")}))

	loaded, err = s.LoadRun(bad.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, loaded.Status)
	f, err := s.LoadFailure(bad.RunID)
	require.NoError(t, err)
	assert.Equal(t, FailureClassTransform, f.FailureClass)
	assert.True(t, strings.Contains(f.ErrorMessage, "boom"))
}
