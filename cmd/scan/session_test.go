package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/wardrobe/internal/stages"
	"github.com/alkime/wardrobe/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestPrepare(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	f := &RunFlags{Mode: "avatar", OutputDir: root}

	s, err := f.prepare(now)
	require.NoError(t, err)

	assert.Equal(t, stages.ModeAvatar, s.mode)
	assert.Equal(t, "scan-20261017-093000", s.name)
	assert.Equal(t, filepath.Join(root, "runs", s.name), s.runDir)
	assert.Equal(t, filepath.Join(root, "library"), s.library.Dir())
	assert.Equal(t, stages.AvatarSpec(), s.spec)

	info, err := os.Stat(s.runDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPrepare_StageFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "stages.toml")

	//nolint:gosec // Test file
	require.NoError(t, os.WriteFile(path, []byte(`
[[stages]]
name = "analyze"
weight = 40

[[stages]]
name = "generate"
weight = 60
`), 0o644))

	s, err := (&RunFlags{Mode: "avatar", OutputDir: root, Name: "coat", Stages: path}).prepare(time.Now())
	require.NoError(t, err)

	assert.Equal(t, "coat", s.name)
	assert.Equal(t, []string{"analyze", "generate"}, s.spec.Names())
}

func TestPrepare_NotesNeedsKeys(t *testing.T) {
	gokeyring.MockInit()

	f := &RunFlags{Mode: "notes", OutputDir: t.TempDir()}

	_, err := f.prepare(time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai, anthropic")

	f.OpenAIAPIKey = "sk-test"
	require.NoError(t, gokeyring.Set("wardrobe", "anthropic-api-key", "sk-ant-test"))

	s, err := f.prepare(time.Now())
	require.NoError(t, err)
	assert.Equal(t, stages.ModeNotes, s.mode)
	assert.Equal(t, "sk-ant-test", f.AnthropicAPIKey)
}

func TestSessionRunsAvatarWorkflow(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "fast.toml")

	//nolint:gosec // Test file
	require.NoError(t, os.WriteFile(path, []byte(`
[[stages]]
name = "analyzing"
weight = 50

[[stages]]
name = "generating"
weight = 50
`), 0o644))

	f := &RunFlags{Mode: "avatar", OutputDir: root, Name: "fit", Stages: path}

	s, err := f.prepare(time.Now())
	require.NoError(t, err)
	require.NoError(t, s.wire(f, discardLogger()))

	wf := s.controller
	require.NoError(t, wf.BeginCapture(t.Context()))
	require.NoError(t, wf.StopCapture(t.Context()))
	wf.Wait()

	require.Equal(t, workflow.Complete, wf.Snapshot().Stage)

	result, err := wf.AcceptResult()
	require.NoError(t, err)

	saved, err := s.save(result)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "library", "fit.glb"), saved.Path)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMeasurePrepare(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	c := &MeasureCmd{Name: "sam", OutputDir: root}

	runDir, name, library, err := c.prepare(now)
	require.NoError(t, err)

	assert.Equal(t, "sam", name)
	assert.DirExists(t, runDir)
	assert.Equal(t, filepath.Join(root, "runs", "sam"), runDir)
	assert.Equal(t, filepath.Join(root, "library"), library.Dir())
}
