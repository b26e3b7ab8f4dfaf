package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture"
	"github.com/alkime/wardrobe/internal/pipeline"
	"github.com/alkime/wardrobe/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoglobals // shared test logger
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeDevice records calls. When gate is non-nil Acquire blocks on it and
// ignores ctx, which models a driver call that cannot be interrupted.
type fakeDevice struct {
	gate       chan struct{}
	acquireErr error
	stopErr    error

	acquires atomic.Int32
	releases atomic.Int32
}

func (d *fakeDevice) Acquire(_ context.Context) error {
	d.acquires.Add(1)

	if d.gate != nil {
		<-d.gate
	}

	return d.acquireErr
}

func (d *fakeDevice) Start(_ context.Context) error { return nil }

func (d *fakeDevice) Stop(_ context.Context) (artifact.Artifact, error) {
	if d.stopErr != nil {
		return artifact.Artifact{}, d.stopErr
	}

	return artifact.Artifact{Path: "raw", MediaType: artifact.MediaTypeJSON}, nil
}

func (d *fakeDevice) Release(_ context.Context) {
	d.releases.Add(1)
}

type stage struct {
	name   string
	weight int
	calls  atomic.Int32
	err    error
	// block, when set, holds the stage until it is closed or ctx is done
	block chan struct{}
}

func (s *stage) handle(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error) {
	s.calls.Add(1)

	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return artifact.Artifact{}, ctx.Err()
		}
	}

	if s.err != nil {
		return artifact.Artifact{}, s.err
	}

	return artifact.Artifact{Path: in.Path + "/" + s.name, MediaType: artifact.MediaTypeGLB}, nil
}

func scanStages() []*stage {
	return []*stage{
		{name: "analyze", weight: 25},
		{name: "reconstruct", weight: 50},
		{name: "optimize", weight: 15},
		{name: "generate", weight: 10},
	}
}

func newPipeline(t *testing.T, stages []*stage) *pipeline.Pipeline {
	t.Helper()

	specs := make([]pipeline.StageSpec, 0, len(stages))
	handlers := make(map[string]pipeline.Handler, len(stages))

	for _, st := range stages {
		specs = append(specs, pipeline.StageSpec{Name: st.name, Weight: st.weight})
		handlers[st.name] = st.handle
	}

	spec, err := pipeline.NewSpec(specs...)
	require.NoError(t, err)

	p, err := pipeline.New(spec, handlers, pipeline.WithLogger(discard))
	require.NoError(t, err)

	return p
}

// recorder collects every published state.
type recorder struct {
	mu     sync.Mutex
	states []workflow.State
}

func (r *recorder) observe(s workflow.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, s)
}

func (r *recorder) all() []workflow.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]workflow.State(nil), r.states...)
}

func (r *recorder) progress() []int {
	var out []int

	last := 0
	for _, s := range r.all() {
		if s.Stage != workflow.Processing && s.Stage != workflow.Complete {
			continue
		}

		if s.Progress != last {
			out = append(out, s.Progress)
			last = s.Progress
		}
	}

	return out
}

func (r *recorder) stages() []workflow.Stage {
	var out []workflow.Stage

	for _, s := range r.all() {
		if len(out) == 0 || out[len(out)-1] != s.Stage {
			out = append(out, s.Stage)
		}
	}

	return out
}

func newController(t *testing.T, dev capture.Device, stages []*stage, opts ...workflow.Option) (*workflow.Controller, *recorder) {
	t.Helper()

	opts = append([]workflow.Option{workflow.WithLogger(discard)}, opts...)
	c := workflow.New(dev, newPipeline(t, stages), opts...)

	rec := &recorder{}
	c.Subscribe(rec.observe)

	return c, rec
}

func runToEnd(t *testing.T, c *workflow.Controller) workflow.State {
	t.Helper()

	require.NoError(t, c.BeginCapture(t.Context()))
	require.True(t, c.Snapshot().Recording())
	require.NoError(t, c.StopCapture(t.Context()))
	c.Wait()

	return c.Snapshot()
}

func TestController_CompletesWithCumulativeProgress(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	stages := scanStages()
	c, rec := newController(t, dev, stages)

	final := runToEnd(t, c)

	assert.Equal(t, []int{25, 75, 90, 100}, rec.progress())
	assert.Equal(t, workflow.Complete, final.Stage)
	assert.Equal(t, 100, final.Progress)
	assert.False(t, final.Artifact.IsZero())
	assert.Equal(t, "raw/analyze/reconstruct/optimize/generate", final.Artifact.Path)
	assert.Nil(t, final.Failure)
	assert.NotEmpty(t, final.RunID)

	assert.Equal(t,
		[]workflow.Stage{workflow.Capturing, workflow.Processing, workflow.Complete},
		rec.stages())
	assert.Equal(t, int32(1), dev.releases.Load())

	for _, st := range stages {
		assert.Equal(t, int32(1), st.calls.Load(), st.name)
	}
}

func TestController_ProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	weights := [][]int{{100}, {50, 50}, {1, 1, 98}, {10, 20, 30, 40}}

	for _, ws := range weights {
		t.Run(fmt.Sprint(ws), func(t *testing.T) {
			t.Parallel()

			stages := make([]*stage, len(ws))
			for i, w := range ws {
				stages[i] = &stage{name: fmt.Sprintf("s%d", i), weight: w}
			}

			c, rec := newController(t, &fakeDevice{}, stages)
			runToEnd(t, c)

			seen := rec.progress()
			require.NotEmpty(t, seen)
			assert.Equal(t, 100, seen[len(seen)-1])
			assert.IsIncreasing(t, seen)
		})
	}
}

func TestController_ResetReturnsInitialState(t *testing.T) {
	t.Parallel()

	t.Run("from complete", func(t *testing.T) {
		t.Parallel()

		c, _ := newController(t, &fakeDevice{}, scanStages())
		require.Equal(t, workflow.Complete, runToEnd(t, c).Stage)

		require.NoError(t, c.Reset())
		assert.Equal(t, workflow.State{}, c.Snapshot())
	})

	t.Run("from failed", func(t *testing.T) {
		t.Parallel()

		stages := scanStages()
		stages[1].err = errors.New("not enough points")

		c, _ := newController(t, &fakeDevice{}, stages)
		require.Equal(t, workflow.Failed, runToEnd(t, c).Stage)

		require.NoError(t, c.Reset())
		assert.Equal(t, workflow.State{}, c.Snapshot())
	})

	t.Run("idle is a no-op", func(t *testing.T) {
		t.Parallel()

		c, rec := newController(t, &fakeDevice{}, scanStages())
		require.NoError(t, c.Reset())
		require.NoError(t, c.Cancel())
		assert.Equal(t, workflow.State{}, c.Snapshot())
		assert.Empty(t, rec.all())
	})
}

func TestController_CancelDuringCapture(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	stages := scanStages()
	c, rec := newController(t, dev, stages)

	require.NoError(t, c.BeginCapture(t.Context()))
	require.True(t, c.Snapshot().Recording())

	require.NoError(t, c.Cancel())

	assert.Equal(t, workflow.State{}, c.Snapshot())
	assert.Equal(t, int32(1), dev.releases.Load())
	assert.NotContains(t, rec.stages(), workflow.Failed)

	for _, st := range stages {
		assert.Zero(t, st.calls.Load())
	}
}

func TestController_CancelWhileAcquiring(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{gate: make(chan struct{})}
	c, _ := newController(t, dev, scanStages())

	begun := make(chan error, 1)
	go func() {
		begun <- c.BeginCapture(t.Context())
	}()

	require.Eventually(t, func() bool {
		return dev.acquires.Load() == 1
	}, time.Second, time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, workflow.Capturing, snap.Stage)
	assert.False(t, snap.Recording())

	require.NoError(t, c.Cancel())
	assert.Equal(t, workflow.State{}, c.Snapshot())

	// the device is still owned by the acquire call
	err := c.BeginCapture(t.Context())
	require.ErrorIs(t, err, workflow.ErrTransitionPending)
	assert.Equal(t, workflow.State{}, c.Snapshot())

	close(dev.gate)
	require.NoError(t, <-begun)

	assert.Equal(t, workflow.State{}, c.Snapshot())
	assert.Equal(t, int32(1), dev.releases.Load())

	// a fresh run can start once the late acquire has cleaned up
	require.NoError(t, c.BeginCapture(t.Context()))
	assert.True(t, c.Snapshot().Recording())
	require.NoError(t, c.Cancel())
	assert.Equal(t, int32(2), dev.releases.Load())
}

func TestController_InvalidTriggersLeaveStateUnchanged(t *testing.T) {
	t.Parallel()

	type trigger struct {
		name string
		call func(c *workflow.Controller) error
	}

	begin := trigger{"begin", func(c *workflow.Controller) error { return c.BeginCapture(context.Background()) }}
	stop := trigger{"stop", func(c *workflow.Controller) error { return c.StopCapture(context.Background()) }}
	cancel := trigger{"cancel", func(c *workflow.Controller) error { return c.Cancel() }}
	reset := trigger{"reset", func(c *workflow.Controller) error { return c.Reset() }}
	accept := trigger{"accept", func(c *workflow.Controller) error {
		_, err := c.AcceptResult()
		return err
	}}

	tests := []struct {
		name       string
		acquireErr error
		// holdFirst blocks the first stage so the run stays in Processing
		holdFirst bool
		setup     func(t *testing.T, c *workflow.Controller)
		invalid   []trigger
	}{
		{
			name:    "idle",
			setup:   func(*testing.T, *workflow.Controller) {},
			invalid: []trigger{stop, accept},
		},
		{
			name: "capturing",
			setup: func(t *testing.T, c *workflow.Controller) {
				t.Helper()
				require.NoError(t, c.BeginCapture(t.Context()))
			},
			invalid: []trigger{begin, reset, accept},
		},
		{
			name:      "processing",
			holdFirst: true,
			setup: func(t *testing.T, c *workflow.Controller) {
				t.Helper()
				require.NoError(t, c.BeginCapture(t.Context()))
				require.NoError(t, c.StopCapture(t.Context()))
				require.Eventually(t, func() bool {
					return c.Snapshot().Substage == "analyze"
				}, time.Second, time.Millisecond)
			},
			invalid: []trigger{begin, stop, reset, accept},
		},
		{
			name:       "failed",
			acquireErr: capture.ErrDeviceUnavailable,
			setup: func(t *testing.T, c *workflow.Controller) {
				t.Helper()
				require.NoError(t, c.BeginCapture(t.Context()))
				require.Equal(t, workflow.Failed, c.Snapshot().Stage)
			},
			invalid: []trigger{begin, stop, cancel, accept},
		},
		{
			name: "complete",
			setup: func(t *testing.T, c *workflow.Controller) {
				t.Helper()
				runToEnd(t, c)
			},
			invalid: []trigger{begin, stop, cancel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stages := scanStages()
			if tt.holdFirst {
				stages[0].block = make(chan struct{})
			}

			c, _ := newController(t, &fakeDevice{acquireErr: tt.acquireErr}, stages)
			if tt.holdFirst {
				t.Cleanup(func() {
					close(stages[0].block)
					c.Wait()
				})
			}

			tt.setup(t, c)

			for _, trig := range tt.invalid {
				before := c.Snapshot()
				err := trig.call(c)

				require.ErrorIs(t, err, workflow.ErrInvalidTransition, trig.name)

				var te *workflow.TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, before.Stage, te.From)

				assert.Equal(t, before, c.Snapshot(), trig.name)
			}
		})
	}
}

func TestController_BeginDuringProcessing(t *testing.T) {
	t.Parallel()

	stages := scanStages()
	stages[1].block = make(chan struct{})

	c, _ := newController(t, &fakeDevice{}, stages)

	require.NoError(t, c.BeginCapture(t.Context()))
	require.NoError(t, c.StopCapture(t.Context()))

	require.Eventually(t, func() bool {
		return c.Snapshot().Substage == "reconstruct"
	}, time.Second, time.Millisecond)

	before := c.Snapshot()
	require.Equal(t, workflow.Processing, before.Stage)

	err := c.BeginCapture(t.Context())
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.Equal(t, before, c.Snapshot())

	require.ErrorIs(t, c.Reset(), workflow.ErrInvalidTransition)
	assert.Equal(t, before, c.Snapshot())

	close(stages[1].block)
	c.Wait()

	assert.Equal(t, workflow.Complete, c.Snapshot().Stage)
}

func TestController_StageFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	for failAt := range 4 {
		t.Run(fmt.Sprint(failAt), func(t *testing.T) {
			t.Parallel()

			stages := scanStages()
			stages[failAt].err = errors.New("out of memory")

			dev := &fakeDevice{}
			c, _ := newController(t, dev, stages)

			final := runToEnd(t, c)

			require.Equal(t, workflow.Failed, final.Stage)
			require.NotNil(t, final.Failure)
			assert.Equal(t, workflow.KindStageFailure, final.Failure.Kind)
			assert.Equal(t, stages[failAt].name, final.Failure.Stage)
			assert.Contains(t, final.Failure.Message(), "out of memory")
			assert.True(t, final.Artifact.IsZero())

			var stageErr *pipeline.StageError
			require.ErrorAs(t, final.Failure, &stageErr)
			assert.Equal(t, failAt, stageErr.Index)

			for i, st := range stages {
				if i <= failAt {
					assert.Equal(t, int32(1), st.calls.Load(), st.name)
				} else {
					assert.Zero(t, st.calls.Load(), st.name)
				}
			}

			assert.Equal(t, int32(1), dev.releases.Load())
		})
	}
}

func TestController_DeviceFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dev      *fakeDevice
		kind     workflow.FailureKind
		releases int32
	}{
		{
			name:     "permission denied",
			dev:      &fakeDevice{acquireErr: fmt.Errorf("camera prompt dismissed: %w", capture.ErrPermissionDenied)},
			kind:     workflow.KindPermissionDenied,
			releases: 0,
		},
		{
			name:     "no device",
			dev:      &fakeDevice{acquireErr: capture.ErrDeviceUnavailable},
			kind:     workflow.KindDeviceUnavailable,
			releases: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, rec := newController(t, tt.dev, scanStages())

			require.NoError(t, c.BeginCapture(t.Context()))

			snap := c.Snapshot()
			require.Equal(t, workflow.Failed, snap.Stage)
			require.NotNil(t, snap.Failure)
			assert.Equal(t, tt.kind, snap.Failure.Kind)
			assert.True(t, snap.Artifact.IsZero())
			assert.NotEmpty(t, snap.Failure.Message())
			assert.Equal(t, tt.releases, tt.dev.releases.Load())
			assert.Equal(t, []workflow.Stage{workflow.Capturing, workflow.Failed}, rec.stages())

			require.NoError(t, c.Reset())
			assert.Equal(t, workflow.State{}, c.Snapshot())
		})
	}

	t.Run("stop fails", func(t *testing.T) {
		t.Parallel()

		dev := &fakeDevice{stopErr: errors.New("disk full")}
		c, _ := newController(t, dev, scanStages())

		final := runToEnd(t, c)

		require.Equal(t, workflow.Failed, final.Stage)
		assert.Equal(t, workflow.KindCaptureFailed, final.Failure.Kind)
		assert.Equal(t, int32(1), dev.releases.Load())
	})
}

func TestController_PermissionDeniedOnSimulatedCamera(t *testing.T) {
	t.Parallel()

	cam := capture.NewSimulated(capture.SimulatedConfig{
		Dir:        t.TempDir(),
		AcquireErr: capture.ErrPermissionDenied,
	})
	c, _ := newController(t, cam, scanStages())

	require.NoError(t, c.BeginCapture(t.Context()))

	snap := c.Snapshot()
	assert.Equal(t, workflow.Failed, snap.Stage)
	assert.Equal(t, workflow.KindPermissionDenied, snap.Failure.Kind)
	assert.Zero(t, cam.Releases())
}

func TestController_CancelDuringProcessing(t *testing.T) {
	t.Parallel()

	stages := scanStages()
	stages[1].block = make(chan struct{})

	c, rec := newController(t, &fakeDevice{}, stages)

	require.NoError(t, c.BeginCapture(t.Context()))
	require.NoError(t, c.StopCapture(t.Context()))

	require.Eventually(t, func() bool {
		return c.Snapshot().Substage == "reconstruct"
	}, time.Second, time.Millisecond)

	require.NoError(t, c.Cancel())
	assert.Equal(t, workflow.State{}, c.Snapshot())

	c.Wait()

	assert.Equal(t, workflow.State{}, c.Snapshot())
	assert.Zero(t, stages[2].calls.Load())
	assert.Zero(t, stages[3].calls.Load())
	assert.NotContains(t, rec.stages(), workflow.Failed)
	assert.NotContains(t, rec.stages(), workflow.Complete)
}

func TestController_MaxCaptureDuration(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	c, _ := newController(t, dev, scanStages(), workflow.WithMaxCaptureDuration(20*time.Millisecond))

	require.NoError(t, c.BeginCapture(t.Context()))

	require.Eventually(t, func() bool {
		return c.Snapshot().Stage == workflow.Complete
	}, 2*time.Second, 5*time.Millisecond)

	c.Wait()
	assert.Equal(t, int32(1), dev.releases.Load())
}

func TestController_AcceptResult(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, &fakeDevice{}, scanStages())
	final := runToEnd(t, c)

	got, err := c.AcceptResult()
	require.NoError(t, err)
	assert.Equal(t, final.Artifact, got)
	assert.Equal(t, final, c.Snapshot())
}

func TestController_ObserversMayReenter(t *testing.T) {
	t.Parallel()

	c, rec := newController(t, &fakeDevice{}, scanStages())

	var resets atomic.Int32

	c.Subscribe(func(s workflow.State) {
		if s.Stage == workflow.Complete {
			resets.Add(1)
			assert.NoError(t, c.Reset())
		}
	})

	runToEnd(t, c)

	assert.Equal(t, int32(1), resets.Load())
	assert.Equal(t, workflow.State{}, c.Snapshot())

	states := rec.stages()
	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, []workflow.Stage{workflow.Complete, workflow.Idle}, states[len(states)-2:])
}

func TestController_Unsubscribe(t *testing.T) {
	t.Parallel()

	c := workflow.New(&fakeDevice{}, newPipeline(t, scanStages()), workflow.WithLogger(discard))

	var calls atomic.Int32
	unsubscribe := c.Subscribe(func(workflow.State) { calls.Add(1) })

	require.NoError(t, c.BeginCapture(t.Context()))
	seen := calls.Load()
	assert.Positive(t, seen)

	unsubscribe()
	require.NoError(t, c.Cancel())
	assert.Equal(t, seen, calls.Load())
}
