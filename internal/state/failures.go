package state

import (
	"context"
	"errors"

	"modpatcher/internal/config"
	"modpatcher/internal/pipeline"
	"modpatcher/internal/transform"
)

// Classify maps err onto the failure taxonomy. Unknown errors are system
// failures.
func Classify(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}
	f := Failure{ErrorMessage: err.Error()}

	var pe *pipeline.Error
	if errors.As(err, &pe) {
		if pe.Stage != "" {
			f.Stage = ptr(pe.Stage)
		}
		if pe.Path != "" {
			f.Artifact = ptr(pe.Path)
		}
	}

	var ce *config.Error
	switch {
	case errors.As(err, &ce):
		f.FailureClass, f.ErrorCode = FailureClassConfig, "ConfigInvalid"
	case errors.Is(err, transform.ErrNoMixinSources):
		f.FailureClass, f.ErrorCode = FailureClassConfig, "NoMixinSources"
	case errors.Is(err, pipeline.ErrParse):
		f.FailureClass, f.ErrorCode = FailureClassInput, "MalformedClassfile"
	case errors.Is(err, pipeline.ErrTransform):
		f.FailureClass, f.ErrorCode = FailureClassTransform, "TransformFailed"
	case errors.Is(err, pipeline.ErrIO):
		f.FailureClass, f.ErrorCode = FailureClassProcessing, "ArtifactIO"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		f.FailureClass, f.ErrorCode = FailureClassSystem, "Interrupted"
	default:
		f.FailureClass, f.ErrorCode = FailureClassSystem, "UnknownError"
	}
	return f, nil
}

func ptr(s string) *string { return &s }
