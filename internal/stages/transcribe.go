package stages

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrMissingAPIKey is returned by stages that call a hosted model without a key.
var ErrMissingAPIKey = errors.New("API key required")

// Transcriber turns a recording into text with the Whisper API.
type Transcriber struct {
	apiKey string
	opts   []option.RequestOption
}

// NewTranscriber creates a transcription stage. Extra options are passed to
// the OpenAI client.
func NewTranscriber(apiKey string, opts ...option.RequestOption) *Transcriber {
	return &Transcriber{
		apiKey: apiKey,
		opts:   opts,
	}
}

// Handle transcribes in and writes the transcript next to it.
func (t *Transcriber) Handle(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error) {
	if t.apiKey == "" {
		return artifact.Artifact{}, fmt.Errorf("%w: set OPENAI_API_KEY or run 'scan config set-key openai'", ErrMissingAPIKey)
	}

	f, err := os.Open(in.Path)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(t.apiKey)}, t.opts...)...)

	resp, err := client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to create transcription via Whisper API: %w", err)
	}

	if resp.Text == "" {
		return artifact.Artifact{}, errors.New("transcription is empty")
	}

	dst := replaceExt(in.Path, ".txt")

	//nolint:gosec // transcript is user content, not a secret
	if err := os.WriteFile(dst, []byte(resp.Text), 0o644); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to write transcript: %w", err)
	}

	return artifact.FromFile(dst, artifact.MediaTypeText)
}
