package workflow

import (
	"errors"
	"fmt"

	"github.com/alkime/wardrobe/internal/capture"
	"github.com/alkime/wardrobe/internal/pipeline"
)

var (
	// ErrInvalidTransition is returned for a trigger that is illegal in the
	// current stage. State is never modified when it is returned.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTransitionPending is returned while a device operation from an
	// earlier trigger has not returned yet.
	ErrTransitionPending = errors.New("transition pending")
)

// TransitionError records which trigger was rejected in which stage.
type TransitionError struct {
	From    Stage
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", ErrInvalidTransition, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// FailureKind classifies why a workflow ended in Failed.
type FailureKind string

const (
	KindDeviceUnavailable FailureKind = "device_unavailable"
	KindPermissionDenied  FailureKind = "permission_denied"
	KindCaptureFailed     FailureKind = "capture_failed"
	KindStageFailure      FailureKind = "stage_failure"
)

// Failure is the structured cause carried by a Failed state.
type Failure struct {
	Kind FailureKind
	// Stage is the pipeline stage that failed, for KindStageFailure.
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	if f.Stage != "" {
		return fmt.Sprintf("%s in %s: %v", f.Kind, f.Stage, f.Err)
	}

	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Message is a one-line explanation suitable for showing to a user.
func (f *Failure) Message() string {
	switch f.Kind {
	case KindPermissionDenied:
		return "Access to the capture device was denied. Allow access and try again."
	case KindDeviceUnavailable:
		return "No capture device is available. Connect one and try again."
	case KindStageFailure:
		cause := f.Err

		var stageErr *pipeline.StageError
		if errors.As(f.Err, &stageErr) {
			cause = stageErr.Err
		}

		return fmt.Sprintf("Processing failed while %s: %v", f.Stage, cause)
	default:
		return fmt.Sprintf("Recording failed: %v", f.Err)
	}
}

func newFailure(err error) *Failure {
	var stageErr *pipeline.StageError

	switch {
	case errors.As(err, &stageErr):
		return &Failure{Kind: KindStageFailure, Stage: stageErr.Stage, Err: err}
	case errors.Is(err, capture.ErrPermissionDenied):
		return &Failure{Kind: KindPermissionDenied, Err: err}
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return &Failure{Kind: KindDeviceUnavailable, Err: err}
	default:
		return &Failure{Kind: KindCaptureFailed, Err: err}
	}
}
