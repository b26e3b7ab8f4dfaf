package workflow

import (
	"fmt"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
)

// Stage is the coarse position of a workflow.
type Stage int

const (
	Idle Stage = iota
	Capturing
	Processing
	Complete
	Failed
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Processing:
		return "processing"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether the stage waits for Reset.
func (s Stage) Terminal() bool {
	return s == Complete || s == Failed
}

// Trigger names an externally invoked operation.
type Trigger string

const (
	TriggerBeginCapture Trigger = "beginCapture"
	TriggerStopCapture  Trigger = "stopCapture"
	TriggerCancel       Trigger = "cancel"
	TriggerReset        Trigger = "reset"
	TriggerAcceptResult Trigger = "acceptResult"
)

// accepts lists the triggers each stage allows. Cancel and Reset in Idle
// are accepted as no-ops.
//
//nolint:gochecknoglobals // static transition table
var accepts = map[Stage][]Trigger{
	Idle:       {TriggerBeginCapture, TriggerCancel, TriggerReset},
	Capturing:  {TriggerStopCapture, TriggerCancel},
	Processing: {TriggerCancel},
	Complete:   {TriggerReset, TriggerAcceptResult},
	Failed:     {TriggerReset},
}

// Accepts reports whether trigger is legal in stage s.
func (s Stage) Accepts(trigger Trigger) bool {
	for _, t := range accepts[s] {
		if t == trigger {
			return true
		}
	}

	return false
}

// State is an immutable snapshot of a workflow. The zero value is the
// initial Idle state.
type State struct {
	Stage Stage

	// Progress is the cumulative stage weight completed, 0..100. It only
	// moves during Processing and is 100 in Complete.
	Progress int

	// Substage is the pipeline stage currently running.
	Substage string

	// Artifact is set only in Complete.
	Artifact artifact.Artifact

	// Failure is set only in Failed.
	Failure *Failure

	// RunID identifies one capture attempt for logs and file names.
	RunID string

	// CaptureStartedAt is when the device began recording. Zero while the
	// device is still being acquired and outside Capturing.
	CaptureStartedAt time.Time
}

// Recording reports whether the device is actively recording.
func (s State) Recording() bool {
	return s.Stage == Capturing && !s.CaptureStartedAt.IsZero()
}
