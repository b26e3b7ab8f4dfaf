package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NotesFile is the name of the summarized fit notes.
const NotesFile = "fit-notes.md"

// FitNotesSystemPrompt turns a rambling spoken description into notes.
const FitNotesSystemPrompt = `You are a tailor's assistant. Given a transcript of someone describing how
clothes fit them, you will:
- Extract measurements, sizes and brands that were mentioned, exactly as said
- List fit problems per garment (too tight, too long, gaps, pulling)
- Note preferences about cut, fabric and colour
- Drop filler words and repetition
- Output clean markdown with a "## Measurements", "## Fit issues" and "## Preferences" section
- Never invent a measurement that was not spoken`

// Summarizer writes fit notes from a transcript with the Anthropic API.
type Summarizer struct {
	apiKey string
	model  anthropic.Model
	opts   []option.RequestOption
}

// NewSummarizer creates a summarize stage. Extra options are passed to the
// Anthropic client.
func NewSummarizer(apiKey string, opts ...option.RequestOption) *Summarizer {
	return &Summarizer{
		apiKey: apiKey,
		model:  anthropic.ModelClaudeSonnet4_5_20250929,
		opts:   opts,
	}
}

// Handle reads the transcript in and writes fit notes next to it.
func (s *Summarizer) Handle(ctx context.Context, in artifact.Artifact) (artifact.Artifact, error) {
	if s.apiKey == "" {
		return artifact.Artifact{}, fmt.Errorf("%w: set ANTHROPIC_API_KEY or run 'scan config set-key anthropic'", ErrMissingAPIKey)
	}

	transcript, err := os.ReadFile(in.Path)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(s.apiKey)}, s.opts...)...)

	resp, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: FitNotesSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(transcript))),
		},
	})
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to generate notes via Anthropic API: %w", err)
	}

	if len(resp.Content) == 0 {
		return artifact.Artifact{}, errors.New("empty response from Anthropic API")
	}

	text, ok := resp.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return artifact.Artifact{}, errors.New("unexpected response type from Anthropic API")
	}

	dst := filepath.Join(filepath.Dir(in.Path), NotesFile)

	//nolint:gosec // notes are user content, not a secret
	if err := os.WriteFile(dst, []byte(text.Text), 0o644); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to write notes: %w", err)
	}

	return artifact.FromFile(dst, artifact.MediaTypeMarkdown)
}
