package audio_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/wardrobe/internal/capture/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_BytesWritten(t *testing.T) {
	t.Parallel()

	pcmPath := filepath.Join(t.TempDir(), "capture.pcm")
	input := make(chan audio.DataPacket)

	recorder, err := audio.NewRecorder(pcmPath, input)
	require.NoError(t, err)
	require.NoError(t, recorder.Start())

	assert.Equal(t, int64(0), recorder.BytesWritten())

	input <- make([]byte, 100)
	require.Eventually(t, func() bool {
		return recorder.BytesWritten() == 100
	}, time.Second, 5*time.Millisecond)

	input <- make([]byte, 200)
	close(input)

	require.NoError(t, recorder.Wait())
	assert.Equal(t, int64(300), recorder.BytesWritten())

	info, err := os.Stat(pcmPath)
	require.NoError(t, err)
	assert.Equal(t, int64(300), info.Size())
}

func TestRecorder_Validation(t *testing.T) {
	t.Parallel()

	_, err := audio.NewRecorder("x.pcm", nil)
	require.Error(t, err)

	_, err = audio.NewRecorder("", make(chan audio.DataPacket))
	require.Error(t, err)

	rec, err := audio.NewRecorder(filepath.Join(t.TempDir(), "x.pcm"), make(chan audio.DataPacket))
	require.NoError(t, err)
	require.NoError(t, rec.Start())
	require.ErrorContains(t, rec.Start(), "already started")
}

func TestRecorder_BadPath(t *testing.T) {
	t.Parallel()

	rec, err := audio.NewRecorder(filepath.Join(t.TempDir(), "missing", "x.pcm"), make(chan audio.DataPacket))
	require.NoError(t, err)
	require.Error(t, rec.Start())
}
