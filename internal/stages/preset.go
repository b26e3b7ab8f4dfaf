package stages

import (
	"fmt"
	"log/slog"

	"github.com/alkime/wardrobe/internal/mp3"
	"github.com/alkime/wardrobe/internal/pipeline"
)

// Mode selects a workflow preset.
type Mode string

const (
	// ModeAvatar scans with the simulated camera and generates a model.
	ModeAvatar Mode = "avatar"
	// ModeNotes records a spoken fit description and summarizes it.
	ModeNotes Mode = "notes"
)

// Stage names of the notes preset. Handlers are bound by these names, so a
// custom notes spec may reweight them but not rename them.
const (
	StageEncode     = "encode"
	StageTranscribe = "transcribe"
	StageSummarize  = "summarize"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAvatar, ModeNotes:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q: want %q or %q", s, ModeAvatar, ModeNotes)
	}
}

// AvatarSpec is the default scan pipeline.
func AvatarSpec() pipeline.Spec {
	return pipeline.Spec{Stages: []pipeline.StageSpec{
		{Name: "analyzing", Weight: 25, DurationMS: 2000},
		{Name: "reconstructing", Weight: 25, DurationMS: 3000},
		{Name: "optimizing", Weight: 25, DurationMS: 2000},
		{Name: "generating", Weight: 25, DurationMS: 1500},
	}}
}

// NotesSpec is the default notes pipeline.
func NotesSpec() pipeline.Spec {
	return pipeline.Spec{Stages: []pipeline.StageSpec{
		{Name: StageEncode, Weight: 20},
		{Name: StageTranscribe, Weight: 50},
		{Name: StageSummarize, Weight: 30},
	}}
}

// DefaultSpec returns the built-in spec for mode.
func DefaultSpec(mode Mode) pipeline.Spec {
	if mode == ModeNotes {
		return NotesSpec()
	}

	return AvatarSpec()
}

// Config describes the pipeline to build.
type Config struct {
	Mode Mode
	// Dir receives stage outputs.
	Dir string
	// Spec overrides the mode's default spec when it has stages.
	Spec pipeline.Spec

	OpenAIKey    string
	AnthropicKey string
	Encoder      mp3.EncoderConfig

	Logger *slog.Logger
}

// Build binds handlers to the configured spec.
//
// In avatar mode every stage is a timed simulation of its DurationMS and the
// last stage writes the model, so any spec shape is accepted.
func Build(conf Config) (*pipeline.Pipeline, error) {
	spec := conf.Spec
	if len(spec.Stages) == 0 {
		spec = DefaultSpec(conf.Mode)
	}

	logger := conf.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handlers map[string]pipeline.Handler

	switch conf.Mode {
	case ModeAvatar, "":
		handlers = avatarHandlers(spec, conf.Dir)
	case ModeNotes:
		handlers = map[string]pipeline.Handler{
			StageEncode:     EncodeMP3(conf.Encoder),
			StageTranscribe: NewTranscriber(conf.OpenAIKey).Handle,
			StageSummarize:  NewSummarizer(conf.AnthropicKey).Handle,
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", conf.Mode)
	}

	return pipeline.New(spec, handlers, pipeline.WithLogger(logger.With("mode", string(conf.Mode))))
}

func avatarHandlers(spec pipeline.Spec, dir string) map[string]pipeline.Handler {
	handlers := make(map[string]pipeline.Handler, len(spec.Stages))

	for i, st := range spec.Stages {
		var next pipeline.Handler = Passthrough
		if i == len(spec.Stages)-1 {
			next = GenerateAvatar(dir)
		}

		handlers[st.Name] = Delay(st.Duration(), next)
	}

	return handlers
}

// Labels maps the built-in stage names to display text.
func Labels() map[string]string {
	return map[string]string{
		"analyzing":      "Analyzing capture",
		"reconstructing": "Reconstructing 3D model",
		"optimizing":     "Optimizing mesh",
		"generating":     "Generating avatar",
		StageEncode:      "Encoding audio",
		StageTranscribe:  "Transcribing",
		StageSummarize:   "Writing fit notes",
	}
}
