package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture"
	"github.com/alkime/wardrobe/internal/capture/audio"
	"github.com/alkime/wardrobe/internal/keyring"
	"github.com/alkime/wardrobe/internal/pipeline"
	"github.com/alkime/wardrobe/internal/stages"
	"github.com/alkime/wardrobe/internal/tui"
	"github.com/alkime/wardrobe/internal/workdir"
	"github.com/alkime/wardrobe/internal/workflow"
)

// RunFlags are shared by the interactive and headless commands.
type RunFlags struct {
	Mode            string        `flag:"" default:"avatar" enum:"avatar,notes" help:"Workflow: avatar (camera scan) or notes (spoken fit notes)"`
	Name            string        `flag:"" optional:"" help:"Run name, used for the run directory and the saved result"`
	Stages          string        `flag:"" optional:"" type:"existingfile" help:"TOML file overriding the pipeline stages"`
	MaxDuration     time.Duration `flag:"" default:"10m" help:"Stop recording automatically after this long (0 disables)"`
	OutputDir       string        `flag:"" optional:"" help:"Root directory (default: ~/Documents/Wardrobe)"`
	OpenAIAPIKey    string        `flag:"" env:"OPENAI_API_KEY" help:"OpenAI API key for transcription (notes mode)"`
	AnthropicAPIKey string        `flag:"" env:"ANTHROPIC_API_KEY" help:"Anthropic API key for fit notes (notes mode)"`
}

// session is everything one run needs, wired together.
type session struct {
	mode       stages.Mode
	name       string
	runDir     string
	library    *artifact.Library
	spec       pipeline.Spec
	device     capture.Device
	microphone *audio.Microphone
	controller *workflow.Controller
}

// prepare resolves directories, keys and the stage spec without touching any
// device, so errors surface before a UI starts.
func (f *RunFlags) prepare(now time.Time) (*session, error) {
	mode, err := stages.ParseMode(f.Mode)
	if err != nil {
		return nil, err
	}

	spec := stages.DefaultSpec(mode)
	if f.Stages != "" {
		if spec, err = pipeline.LoadSpec(f.Stages); err != nil {
			return nil, err
		}
	}

	if mode == stages.ModeNotes {
		f.OpenAIAPIKey = keyring.Resolve(keyring.OpenAI, f.OpenAIAPIKey)
		f.AnthropicAPIKey = keyring.Resolve(keyring.Anthropic, f.AnthropicAPIKey)

		var missing []string
		if f.OpenAIAPIKey == "" {
			missing = append(missing, "openai")
		}

		if f.AnthropicAPIKey == "" {
			missing = append(missing, "anthropic")
		}

		if len(missing) > 0 {
			return nil, fmt.Errorf("missing API keys: %s. Set via environment variables or run 'scan config set-key'",
				strings.Join(missing, ", "))
		}
	}

	layout, err := workdir.New(f.OutputDir)
	if err != nil {
		return nil, err
	}

	name := workdir.RunName(f.Name, now)

	runDir, err := layout.Prep(name)
	if err != nil {
		return nil, err
	}

	return &session{
		mode:    mode,
		name:    name,
		runDir:  runDir,
		library: artifact.NewLibrary(layout.LibraryDir()),
		spec:    spec,
	}, nil
}

// wire builds the device, pipeline and controller. Call it after logging is
// set up so components pick up the right default logger.
func (s *session) wire(f *RunFlags, logger *slog.Logger) error {
	p, err := stages.Build(stages.Config{
		Mode:         s.mode,
		Dir:          s.runDir,
		Spec:         s.spec,
		OpenAIKey:    f.OpenAIAPIKey,
		AnthropicKey: f.AnthropicAPIKey,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	switch s.mode {
	case stages.ModeNotes:
		s.microphone = audio.NewMicrophone(audio.DefaultDeviceConfig(), s.runDir, logger)
		s.device = s.microphone
	default:
		s.device = capture.NewSimulated(capture.SimulatedConfig{Dir: s.runDir})
	}

	s.controller = workflow.New(s.device, p,
		workflow.WithLogger(logger.With("run", s.name)),
		workflow.WithMaxCaptureDuration(f.MaxDuration))

	return nil
}

// save copies an accepted result into the library under the run name.
func (s *session) save(a artifact.Artifact) (artifact.Artifact, error) {
	saved, err := s.library.Save(a, s.name)
	if err != nil {
		return artifact.Artifact{}, err
	}

	slog.Info("result saved", "path", saved.Path, "size", saved.Size)

	return saved, nil
}

func (s *session) tuiConfig(ctx context.Context, maxDuration time.Duration) tui.Config {
	conf := tui.Config{
		Context:     ctx,
		Stages:      s.spec.Stages,
		Labels:      stages.Labels(),
		MaxDuration: maxDuration,
		Save:        s.save,
	}

	switch s.mode {
	case stages.ModeNotes:
		conf.Title = "Fit notes · " + s.name
		conf.Prompt = "Describe how your clothes fit: sizes, measurements, what feels off."
		conf.Levels = s.microphone.Levels()
		conf.Recorded = s.microphone.Recorded()
	default:
		conf.Title = "Avatar scan · " + s.name
		conf.Prompt = "Stand about two metres from the camera, facing it, arms slightly away from your body."
	}

	return conf
}
