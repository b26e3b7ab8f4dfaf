package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/capture/audio"
	"github.com/alkime/wardrobe/internal/keyring"
	"github.com/alkime/wardrobe/internal/logger"
	"github.com/alkime/wardrobe/internal/measure"
	"github.com/alkime/wardrobe/internal/pipeline"
	"github.com/alkime/wardrobe/internal/stages"
	"github.com/alkime/wardrobe/internal/tui"
	"github.com/alkime/wardrobe/internal/tui/form"
	"github.com/alkime/wardrobe/internal/workdir"
	"github.com/alkime/wardrobe/internal/workflow"
	tea "github.com/charmbracelet/bubbletea"
)

// CLI defines the scan command structure.
type CLI struct {
	Verbose bool `flag:"" short:"v" help:"Debug logging"`

	// Default TUI command (runs when no subcommand given)
	TUI TUICmd `cmd:"" default:"withargs" help:"Run a capture workflow in the terminal UI"`

	// Subcommands
	Auto    AutoCmd    `cmd:"" help:"Run a capture workflow without a UI"`
	Measure MeasureCmd `cmd:"" help:"Enter body measurements by hand instead of scanning"`
	Devices DevicesCmd `cmd:"" help:"List available audio capture devices"`
	Stages  StagesCmd  `cmd:"" help:"Validate and print a pipeline stage file"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

// TUICmd is the default command that runs the TUI.
type TUICmd struct {
	RunFlags `embed:""`
}

// Run executes the TUI command.
func (c *TUICmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := c.prepare(time.Now())
	if err != nil {
		return err
	}

	// the terminal belongs to the UI; logs go to the run directory
	logPath := filepath.Join(s.runDir, workdir.LogFile)

	logFile, err := tea.LogToFile(logPath, "scan")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	l := logger.SetupCLILogger(logFile, cli.Verbose)

	if err := s.wire(&c.RunFlags, l); err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(s.tuiConfig(ctx, c.MaxDuration), s.controller))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	// the UI cancels on quit; wait for a pipeline to notice
	_ = s.controller.Cancel()
	s.controller.Wait()

	fmt.Printf("\nrun files: %s\nlog: %s\n", s.runDir, logPath)

	return nil
}

// AutoCmd records for a fixed time, processes and optionally saves.
type AutoCmd struct {
	RunFlags `embed:""`

	Duration time.Duration `flag:"" default:"5s" help:"How long to record"`
	Save     bool          `flag:"" help:"Save the result into the library"`
}

// Run executes the headless workflow.
func (c *AutoCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	l := logger.SetupCLILogger(os.Stdout, cli.Verbose)

	s, err := c.prepare(time.Now())
	if err != nil {
		return err
	}

	if err := s.wire(&c.RunFlags, l); err != nil {
		return err
	}

	wf := s.controller

	done := make(chan workflow.State, 1)
	unsubscribe := wf.Subscribe(func(st workflow.State) {
		if st.Stage.Terminal() {
			select {
			case done <- st:
			default:
			}
		}
	})
	defer unsubscribe()

	if err := wf.BeginCapture(ctx); err != nil {
		return err
	}

	if st := wf.Snapshot(); st.Stage == workflow.Failed {
		return st.Failure
	}

	l.Info("recording", "duration", c.Duration)

	select {
	case <-ctx.Done():
		_ = wf.Cancel()
		wf.Wait()

		return ctx.Err()
	case <-time.After(c.Duration):
	}

	if err := wf.StopCapture(ctx); err != nil && !errors.Is(err, workflow.ErrInvalidTransition) {
		return err
	}

	var final workflow.State

	select {
	case final = <-done:
	case <-ctx.Done():
		_ = wf.Cancel()
		wf.Wait()

		return ctx.Err()
	}

	wf.Wait()

	if final.Stage == workflow.Failed {
		return final.Failure
	}

	result, err := wf.AcceptResult()
	if err != nil {
		return err
	}

	if c.Save {
		if result, err = s.save(result); err != nil {
			return err
		}
	}

	fmt.Printf("result: %s (%s, %d bytes)\n", result.Path, result.MediaType, result.Size)

	return nil
}

// MeasureCmd runs the measurement form and saves the profile.
type MeasureCmd struct {
	Name      string `flag:"" optional:"" help:"Profile name, used for the run directory and the saved file"`
	OutputDir string `flag:"" optional:"" help:"Root directory (default: ~/Documents/Wardrobe)"`
}

// Run executes the measure command.
func (c *MeasureCmd) Run(cli *CLI) error {
	runDir, name, library, err := c.prepare(time.Now())
	if err != nil {
		return err
	}

	logPath := filepath.Join(runDir, workdir.LogFile)

	logFile, err := tea.LogToFile(logPath, "measure")
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	l := logger.SetupCLILogger(logFile, cli.Verbose)

	var saved artifact.Artifact

	m := form.New(form.Config{
		Title: "Body measurements · " + name,
		Save: func(p measure.Profile) (artifact.Artifact, error) {
			a, err := measure.Save(p, runDir)
			if err != nil {
				return artifact.Artifact{}, err
			}

			if saved, err = library.Save(a, name); err != nil {
				return artifact.Artifact{}, err
			}

			l.Info("profile saved", "path", saved.Path, "units", p.Units)

			return saved, nil
		},
	})

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if saved.IsZero() {
		fmt.Println("no profile saved")
		return nil
	}

	fmt.Printf("profile: %s\n", saved.Path)

	return nil
}

func (c *MeasureCmd) prepare(now time.Time) (string, string, *artifact.Library, error) {
	layout, err := workdir.New(c.OutputDir)
	if err != nil {
		return "", "", nil, err
	}

	name := workdir.RunName(c.Name, now)

	runDir, err := layout.Prep(name)
	if err != nil {
		return "", "", nil, err
	}

	return runDir, name, artifact.NewLibrary(layout.LibraryDir()), nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	devices, err := audio.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

// StagesCmd validates a stage file, or prints a mode's built-in stages.
type StagesCmd struct {
	File string `arg:"" optional:"" type:"existingfile" help:"TOML stage file"`
	Mode string `flag:"" default:"avatar" enum:"avatar,notes" help:"Built-in stages to print when no file is given"`
}

// Run executes the stages command.
func (c *StagesCmd) Run() error {
	spec := stages.DefaultSpec(stages.Mode(c.Mode))

	if c.File != "" {
		var err error
		if spec, err = pipeline.LoadSpec(c.File); err != nil {
			return err
		}
	}

	cumulative := spec.Cumulative()
	for i, st := range spec.Stages {
		fmt.Printf("%2d. %-16s weight %3d  progress %3d%%  %s\n",
			i+1, st.Name, st.Weight, cumulative[i], st.Duration())
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey   SetKeyCmd   `cmd:"" help:"Store an API key in system keychain"`
	ListKeys ListKeysCmd `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai,anthropic" help:"Service name (openai or anthropic)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'scan config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	logger.SetupCLILogger(os.Stdout, false)

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("scan"),
		kong.Description("Capture, process and keep a body scan or spoken fit notes."),
		kong.Bind(cli))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
