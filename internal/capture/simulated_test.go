package capture_test

import (
	"context"
	"testing"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ capture.Device = (*capture.Simulated)(nil)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestSimulated_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	dev := capture.NewSimulated(capture.SimulatedConfig{Dir: t.TempDir(), Now: clock.Now})

	require.NoError(t, dev.Acquire(ctx))
	require.NoError(t, dev.Start(ctx))

	clock.now = clock.now.Add(12 * time.Second)

	raw, err := dev.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, artifact.MediaTypeJSON, raw.MediaType)
	assert.Equal(t, capture.ManifestFile, raw.Name())

	m, err := capture.ReadManifest(raw.Path)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, m.Duration)
	assert.Equal(t, capture.DefaultWidth, m.Width)
	assert.Equal(t, capture.DefaultHeight, m.Height)
	assert.Equal(t, "user", m.FacingMode)

	dev.Release(ctx)
	dev.Release(ctx)
	assert.Equal(t, 1, dev.Releases(), "second release is a no-op")
}

func TestSimulated_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("acquire error", func(t *testing.T) {
		t.Parallel()

		dev := capture.NewSimulated(capture.SimulatedConfig{
			Dir:        t.TempDir(),
			AcquireErr: capture.ErrPermissionDenied,
		})
		require.ErrorIs(t, dev.Acquire(ctx), capture.ErrPermissionDenied)

		dev.Release(ctx)
		assert.Equal(t, 0, dev.Releases(), "nothing was acquired")
	})

	t.Run("start before acquire", func(t *testing.T) {
		t.Parallel()

		dev := capture.NewSimulated(capture.SimulatedConfig{Dir: t.TempDir()})
		require.ErrorIs(t, dev.Start(ctx), capture.ErrNotAcquired)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		dev := capture.NewSimulated(capture.SimulatedConfig{Dir: t.TempDir()})
		require.NoError(t, dev.Acquire(ctx))

		_, err := dev.Stop(ctx)
		require.ErrorIs(t, err, capture.ErrNotStarted)
	})

	t.Run("acquire honours context while waiting", func(t *testing.T) {
		t.Parallel()

		dev := capture.NewSimulated(capture.SimulatedConfig{Dir: t.TempDir(), AcquireDelay: time.Minute})

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		require.ErrorIs(t, dev.Acquire(cctx), context.Canceled)
	})
}
