// Package workflow drives one capture → processing → result run: it owns
// the capture device while recording, runs the processing pipeline and
// publishes a State snapshot to observers after every transition.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture"
	"github.com/alkime/wardrobe/internal/pipeline"
	"github.com/google/uuid"
)

// Observer receives every State the controller enters, in order.
type Observer func(State)

// Controller is a single workflow instance. All methods are safe for
// concurrent use; transitions are applied one at a time.
type Controller struct {
	device   capture.Device
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	now      func() time.Time

	maxCapture time.Duration

	mu    sync.Mutex
	state State

	// gen changes whenever a run is abandoned (cancel, reset, new capture)
	// so late results from the old run can be recognised and dropped.
	gen uint64

	// pending is set while a device call made for a trigger is in flight.
	// The goroutine that made the call owns the device until it returns.
	pending    bool
	sideCancel context.CancelFunc
	holding    bool

	runCancel context.CancelFunc
	runs      sync.WaitGroup
	autoStop  *time.Timer

	observers []observerEntry
	nextObs   int
	outbox    []State
	notifyMu  sync.Mutex
}

type observerEntry struct {
	id int
	fn Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMaxCaptureDuration stops the capture automatically once the device
// has been recording for d. Zero disables the limit.
func WithMaxCaptureDuration(d time.Duration) Option {
	return func(c *Controller) {
		c.maxCapture = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates an Idle controller for device and pipe.
func New(device capture.Device, pipe *pipeline.Pipeline, opts ...Option) *Controller {
	c := &Controller{ //nolint:exhaustruct // sync fields zero valued
		device:   device,
		pipeline: pipe,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Subscribe registers obs and returns a function that removes it.
// Observers may call back into the controller.
func (c *Controller) Subscribe(obs Observer) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextObs++
	id := c.nextObs
	c.observers = append(c.observers, observerEntry{id: id, fn: obs})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		c.observers = slices.DeleteFunc(c.observers, func(e observerEntry) bool {
			return e.id == id
		})
	}
}

// BeginCapture moves Idle → Capturing and acquires and starts the device.
// Device failures are not returned: they move the workflow to Failed with
// the cause attached. Only illegal or overlapping triggers return an error.
func (c *Controller) BeginCapture(ctx context.Context) error {
	c.mu.Lock()

	if err := c.check(TriggerBeginCapture); err != nil {
		c.mu.Unlock()
		return err
	}

	c.gen++
	gen := c.gen

	sideCtx, cancel := context.WithCancel(ctx)
	c.sideCancel = cancel
	c.pending = true

	c.commit(TriggerBeginCapture, State{Stage: Capturing, RunID: uuid.NewString()})
	c.mu.Unlock()
	c.flush()

	acquired := false

	err := c.device.Acquire(sideCtx)
	if err == nil {
		acquired = true
		err = c.device.Start(sideCtx)
	}

	ctxErr := sideCtx.Err()
	cancel()

	c.mu.Lock()
	c.pending = false
	c.sideCancel = nil

	switch {
	case gen != c.gen:
		// cancelled while the device call was in flight
		if acquired {
			c.device.Release(context.WithoutCancel(ctx))
		}

		c.mu.Unlock()

		return nil

	case err != nil:
		if acquired {
			c.device.Release(context.WithoutCancel(ctx))
		}

		if ctxErr != nil && errors.Is(err, ctxErr) {
			c.logger.Info("capture abandoned", "run_id", c.state.RunID, "error", err)
			c.commit(TriggerCancel, State{})
		} else {
			c.logger.Warn("capture device failed", "run_id", c.state.RunID, "error", err)
			c.commit("captureFailed", State{Stage: Failed, Failure: newFailure(err), RunID: c.state.RunID})
		}

	default:
		c.holding = true
		next := c.state
		next.CaptureStartedAt = c.now()
		c.armAutoStop(gen)
		c.commit("captureStarted", next)
	}

	c.mu.Unlock()
	c.flush()

	return nil
}

// StopCapture ends the recording, releases the device and starts the
// pipeline on the raw recording. Processing continues after it returns.
func (c *Controller) StopCapture(ctx context.Context) error {
	return c.stopCapture(ctx, 0)
}

// stopCapture only proceeds when onlyGen is zero or matches the current run.
func (c *Controller) stopCapture(ctx context.Context, onlyGen uint64) error {
	c.mu.Lock()

	if err := c.check(TriggerStopCapture); err != nil {
		c.mu.Unlock()
		return err
	}

	if onlyGen != 0 && onlyGen != c.gen {
		c.mu.Unlock()
		return nil
	}

	gen := c.gen
	sideCtx, cancel := context.WithCancel(ctx)
	c.sideCancel = cancel
	c.pending = true
	c.stopAutoStop()
	c.mu.Unlock()

	raw, err := c.device.Stop(sideCtx)
	cancel()

	// the device is released on every path out of Capturing
	c.device.Release(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.pending = false
	c.sideCancel = nil
	c.holding = false

	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}

	runID := c.state.RunID

	if err != nil {
		c.logger.Warn("capture failed", "run_id", runID, "error", err)
		c.commit("captureFailed", State{Stage: Failed, Failure: newFailure(err), RunID: runID})
		c.mu.Unlock()
		c.flush()

		return nil
	}

	c.logger.Info("capture finished", "run_id", runID, "raw", raw.Path, "bytes", raw.Size)

	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))
	c.runCancel = runCancel
	c.commit("captureSucceeded", State{Stage: Processing, RunID: runID})

	c.runs.Go(func() {
		defer runCancel()
		c.process(runCtx, gen, raw)
	})

	c.mu.Unlock()
	c.flush()

	return nil
}

func (c *Controller) process(ctx context.Context, gen uint64, raw artifact.Artifact) {
	out, err := c.pipeline.Run(ctx, raw, func(p pipeline.Progress) {
		c.onProgress(gen, p)
	})

	c.mu.Lock()

	if gen != c.gen || c.state.Stage != Processing {
		c.mu.Unlock()
		return
	}

	c.runCancel = nil
	runID := c.state.RunID

	switch {
	case errors.Is(err, context.Canceled):
		c.commit(TriggerCancel, State{})
	case err != nil:
		c.commit("pipelineFailed", State{Stage: Failed, Failure: newFailure(err), RunID: runID})
	default:
		c.logger.Info("workflow complete", "run_id", runID, "artifact", out.Path)
		c.commit("pipelineCompleted", State{Stage: Complete, Progress: pipeline.TotalWeight, Artifact: out, RunID: runID})
	}

	c.mu.Unlock()
	c.flush()
}

func (c *Controller) onProgress(gen uint64, p pipeline.Progress) {
	c.mu.Lock()

	if gen != c.gen || c.state.Stage != Processing {
		c.mu.Unlock()
		return
	}

	next := c.state
	next.Substage = p.Stage

	if p.Done {
		next.Progress = max(next.Progress, min(max(p.Percent, 0), pipeline.TotalWeight))
	}

	if next != c.state {
		c.commit("progress", next)
	}

	c.mu.Unlock()
	c.flush()
}

// Cancel abandons a capture or processing run and returns to Idle. It is a
// no-op in Idle. Device work stops at its next checkpoint.
func (c *Controller) Cancel() error {
	c.mu.Lock()

	if err := c.check(TriggerCancel); err != nil {
		c.mu.Unlock()
		return err
	}

	switch c.state.Stage {
	case Capturing:
		c.gen++
		c.stopAutoStop()

		if c.sideCancel != nil {
			c.sideCancel()
		}

		// an in-flight device call releases the device itself when it returns
		if !c.pending && c.holding {
			c.device.Release(context.Background())
			c.holding = false
		}

		c.commit(TriggerCancel, State{})

	case Processing:
		c.gen++

		if c.runCancel != nil {
			c.runCancel()
			c.runCancel = nil
		}

		c.commit(TriggerCancel, State{})

	default:
		c.mu.Unlock()
		return nil
	}

	c.mu.Unlock()
	c.flush()

	return nil
}

// Reset discards a result or failure and returns to Idle. It is a no-op in
// Idle.
func (c *Controller) Reset() error {
	c.mu.Lock()

	if err := c.check(TriggerReset); err != nil {
		c.mu.Unlock()
		return err
	}

	if c.state.Stage == Idle {
		c.mu.Unlock()
		return nil
	}

	c.gen++
	c.commit(TriggerReset, State{})
	c.mu.Unlock()
	c.flush()

	return nil
}

// AcceptResult hands the produced artifact to the caller. The workflow
// stays Complete until Reset.
func (c *Controller) AcceptResult() (artifact.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.check(TriggerAcceptResult); err != nil {
		return artifact.Artifact{}, err
	}

	c.logger.Info("result accepted", "run_id", c.state.RunID, "artifact", c.state.Artifact.Path)

	return c.state.Artifact, nil
}

// Wait blocks until no pipeline goroutine is running.
func (c *Controller) Wait() {
	c.runs.Wait()
}

// check validates trigger against the current stage. Callers hold mu.
func (c *Controller) check(trigger Trigger) error {
	if !c.state.Stage.Accepts(trigger) {
		return &TransitionError{From: c.state.Stage, Trigger: trigger}
	}

	if c.pending && (trigger == TriggerBeginCapture || trigger == TriggerStopCapture) {
		return fmt.Errorf("%s: %w", trigger, ErrTransitionPending)
	}

	return nil
}

// armAutoStop schedules the max-duration stop for run gen. Callers hold mu.
func (c *Controller) armAutoStop(gen uint64) {
	if c.maxCapture <= 0 {
		return
	}

	c.autoStop = time.AfterFunc(c.maxCapture, func() {
		c.logger.Info("max capture duration reached", "limit", c.maxCapture)

		if err := c.stopCapture(context.Background(), gen); err != nil && !errors.Is(err, ErrInvalidTransition) {
			c.logger.Warn("automatic stop failed", "error", err)
		}
	})
}

// stopAutoStop cancels a pending automatic stop. Callers hold mu.
func (c *Controller) stopAutoStop() {
	if c.autoStop != nil {
		c.autoStop.Stop()
		c.autoStop = nil
	}
}

// commit applies next and queues it for observers. Callers hold mu.
func (c *Controller) commit(trigger Trigger, next State) {
	prev := c.state
	c.state = next
	c.outbox = append(c.outbox, next)

	if prev.Stage != next.Stage {
		c.logger.Info("workflow transition",
			"from", prev.Stage,
			"to", next.Stage,
			"trigger", trigger,
			"run_id", next.RunID)
	}
}

// flush delivers queued states. Only one goroutine delivers at a time, which
// keeps delivery in commit order; a flush that finds delivery already in
// progress leaves its states to that goroutine.
func (c *Controller) flush() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}

		c.deliver()
		c.notifyMu.Unlock()

		c.mu.Lock()
		empty := len(c.outbox) == 0
		c.mu.Unlock()

		if empty {
			return
		}
	}
}

func (c *Controller) deliver() {
	for {
		c.mu.Lock()
		if len(c.outbox) == 0 {
			c.mu.Unlock()
			return
		}

		next := c.outbox[0]
		c.outbox = c.outbox[1:]
		observers := slices.Clone(c.observers)
		c.mu.Unlock()

		for _, o := range observers {
			o.fn(next)
		}
	}
}
