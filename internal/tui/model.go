// Package tui is the terminal front end for one capture workflow. It renders
// the controller's state and maps key presses to workflow triggers.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/pipeline"
	"github.com/alkime/wardrobe/internal/tui/components/checklist"
	"github.com/alkime/wardrobe/internal/tui/components/labeledspinner"
	"github.com/alkime/wardrobe/internal/tui/components/waveform"
	"github.com/alkime/wardrobe/internal/tui/style"
	"github.com/alkime/wardrobe/internal/workflow"
	"github.com/alkime/wardrobe/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
)

// Workflow is the part of *workflow.Controller the UI drives.
type Workflow interface {
	BeginCapture(ctx context.Context) error
	StopCapture(ctx context.Context) error
	Cancel() error
	Reset() error
	AcceptResult() (artifact.Artifact, error)
	Snapshot() workflow.State
	Subscribe(obs workflow.Observer) func()
}

// Config is passed in explicitly by the caller; the UI reads nothing from
// globals.
type Config struct {
	// Context bounds device calls made for key presses.
	Context context.Context

	// Title heads every screen, e.g. "Avatar scan".
	Title string
	// Prompt is shown while idle.
	Prompt string
	// Stages drives the processing checklist. Labels optionally maps a
	// stage name to display text.
	Stages []pipeline.StageSpec
	Labels map[string]string

	// Levels and Recorded are live readings from a microphone. Either may
	// be nil.
	Levels   uictl.Levels[int16]
	Recorded uictl.Dial[int64]

	// MaxDuration is shown while recording when non-zero.
	MaxDuration time.Duration

	// Save stores an accepted artifact and returns where it went. When nil
	// the artifact is left where the pipeline wrote it.
	Save func(artifact.Artifact) (artifact.Artifact, error)
}

type stateMsg struct {
	state workflow.State
}

type triggerErrMsg struct {
	err error
}

type savedMsg struct {
	artifact artifact.Artifact
	err      error
}

type model struct {
	config Config
	wf     Workflow
	keys   KeyMap

	changes     chan struct{}
	done        chan struct{}
	unsubscribe func()
	quitting    bool

	state     workflow.State
	notice    string
	saved     artifact.Artifact
	spinner   labeledspinner.Model
	stopwatch stopwatch.Model
	progress  progress.Model
	checklist checklist.Model
	waveform  waveform.Model
}

// New creates the UI model for wf. It subscribes to wf immediately so no
// transition is missed before the program starts.
func New(config Config, wf Workflow) tea.Model {
	if config.Context == nil {
		config.Context = context.Background()
	}

	m := &model{
		config:  config,
		wf:      wf,
		keys:    DefaultKeyMap(),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		state:   wf.Snapshot(),
		spinner: labeledspinner.New(spinner.Points, "", "", ""),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		stopwatch: stopwatch.NewWithInterval(time.Second),
		checklist: newChecklist(config),
		waveform:  waveform.New(config.Levels, 40, 3),
	}

	// coalesce: the UI always renders the latest snapshot
	m.unsubscribe = wf.Subscribe(func(workflow.State) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})

	return m
}

func newChecklist(config Config) checklist.Model {
	items := make([]checklist.Item, 0, len(config.Stages))
	for _, st := range config.Stages {
		items = append(items, checklist.Item{Name: st.Name, Label: config.Labels[st.Name]})
	}

	return checklist.New(items)
}

// Init returns the initial command.
func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForChange(), m.spinner.Init()}
	if m.config.Levels != nil {
		cmds = append(cmds, m.waveform.Init())
	}

	return tea.Batch(cmds...)
}

func (m *model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return stateMsg{state: m.wf.Snapshot()}
		case <-m.done:
			return nil
		}
	}
}

// trigger runs fn off the UI goroutine; device calls can block.
func trigger(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return triggerErrMsg{err: err}
		}

		return nil
	}
}

// Update handles all messages.
//
//nolint:cyclop // one case per message type
func (m *model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch typedMsg := teaMsg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(typedMsg)

	case tea.WindowSizeMsg:
		width := max(min(typedMsg.Width-4, 60), 10)
		m.progress.Width = width
		m.waveform = m.waveform.SetWidth(width)

	case stateMsg:
		cmds = append(cmds, m.applyState(typedMsg.state), m.waitForChange())

	case triggerErrMsg:
		m.notice = describeTriggerErr(typedMsg.err, m.state.Stage)

	case savedMsg:
		if typedMsg.err != nil {
			m.notice = "Could not save: " + typedMsg.err.Error()
		} else {
			m.saved = typedMsg.artifact
			m.notice = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(typedMsg)
		cmds = append(cmds, cmd)

	case waveform.TickMsg:
		var cmd tea.Cmd
		m.waveform, cmd = m.waveform.Update(typedMsg)
		cmds = append(cmds, cmd)
	}

	var swCmd tea.Cmd
	m.stopwatch, swCmd = m.stopwatch.Update(teaMsg)
	cmds = append(cmds, swCmd)

	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(km tea.KeyMsg) tea.Cmd {
	ctx := m.config.Context
	m.notice = ""

	switch {
	case key.Matches(km, m.keys.ForceQuit), key.Matches(km, m.keys.Quit):
		if !m.quitting {
			m.quitting = true

			// leave no device held and no stage running
			_ = m.wf.Cancel()

			m.unsubscribe()
			close(m.done)
		}

		return tea.Quit

	case key.Matches(km, m.keys.Start):
		return trigger(func() error { return m.wf.BeginCapture(ctx) })

	case key.Matches(km, m.keys.Stop):
		return trigger(func() error { return m.wf.StopCapture(ctx) })

	case key.Matches(km, m.keys.Cancel):
		return trigger(m.wf.Cancel)

	case key.Matches(km, m.keys.Retry):
		return trigger(m.wf.Reset)

	case key.Matches(km, m.keys.Accept):
		return m.accept()
	}

	return nil
}

func (m *model) accept() tea.Cmd {
	return func() tea.Msg {
		a, err := m.wf.AcceptResult()
		if err != nil {
			return triggerErrMsg{err: err}
		}

		if m.config.Save != nil {
			a, err = m.config.Save(a)
		}

		return savedMsg{artifact: a, err: err}
	}
}

func (m *model) applyState(next workflow.State) tea.Cmd {
	prev := m.state
	m.state = next

	var cmd tea.Cmd

	switch {
	case next.Recording() && !prev.Recording():
		m.stopwatch = stopwatch.NewWithInterval(time.Second)
		cmd = m.stopwatch.Init()
	case !next.Recording() && prev.Recording():
		cmd = m.stopwatch.Stop()
	}

	switch next.Stage {
	case workflow.Idle, workflow.Capturing:
		m.checklist = newChecklist(m.config)
		m.saved = artifact.Artifact{}
	case workflow.Processing:
		m.checklist = m.checklist.Focus(next.Substage)
	case workflow.Complete:
		m.checklist = m.checklist.Complete()
	case workflow.Failed:
	}

	return cmd
}

func describeTriggerErr(err error, stage workflow.Stage) string {
	var te *workflow.TransitionError

	switch {
	case errors.As(err, &te):
		return fmt.Sprintf("Can't %s while %s.", te.Trigger, te.From)
	case errors.Is(err, workflow.ErrTransitionPending):
		return "Still waiting for the device, try again in a moment."
	default:
		return fmt.Sprintf("Error while %s: %v", stage, err)
	}
}

// View renders the current UI.
func (m *model) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render(m.config.Title))
	sb.WriteString("\n\n")

	switch m.state.Stage {
	case workflow.Idle:
		m.viewIdle(&sb)
	case workflow.Capturing:
		m.viewCapturing(&sb)
	case workflow.Processing:
		m.viewProcessing(&sb)
	case workflow.Complete:
		m.viewComplete(&sb)
	case workflow.Failed:
		m.viewFailed(&sb)
	}

	if m.notice != "" {
		sb.WriteString("\n\n")
		sb.WriteString(style.Warning.Render(m.notice))
	}

	sb.WriteString("\n")

	return sb.String()
}

func (m *model) viewIdle(sb *strings.Builder) {
	sb.WriteString(style.Label.Render("Ready"))
	sb.WriteString("\n\n")

	if m.config.Prompt != "" {
		sb.WriteString(style.Subtitle.Render(m.config.Prompt))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.Start, m.keys.Quit))
}

func (m *model) viewCapturing(sb *strings.Builder) {
	if !m.state.Recording() {
		sb.WriteString(m.spinner.Relabel("Waiting for device", "Allow access if you are prompted.").
			ViewWithHelp(renderKeyHelp(m.keys.Cancel, m.keys.Quit)))

		return
	}

	sb.WriteString(m.spinner.Relabel("Recording", "").ViewWithHelp(""))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(m.stopwatch.View()))

	if m.config.MaxDuration > 0 {
		sb.WriteString(style.Muted.Render(" / " + m.config.MaxDuration.String()))
	}

	sb.WriteString("\n\n")

	if m.config.Levels != nil {
		sb.WriteString(m.waveform.View())
		sb.WriteString("\n\n")
	}

	if m.config.Recorded != nil {
		sb.WriteString(style.Subtitle.Render(formatBytes(m.config.Recorded.Read())))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.Stop, m.keys.Cancel, m.keys.Quit))
}

func (m *model) viewProcessing(sb *strings.Builder) {
	title := "Processing"
	if label := m.label(m.state.Substage); label != "" {
		title = label
	}

	subtitle := ""
	if pos := m.checklist.Position(); pos > 0 {
		subtitle = fmt.Sprintf("stage %d of %d", pos, m.checklist.Len())
	}

	sb.WriteString(m.spinner.Relabel(title, subtitle).ViewWithHelp(""))
	sb.WriteString("\n\n")
	sb.WriteString(m.progress.ViewAs(float64(m.state.Progress) / float64(pipeline.TotalWeight)))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("%d%%", m.state.Progress)))
	sb.WriteString("\n\n")
	sb.WriteString(m.checklist.View())
	sb.WriteString("\n\n")
	sb.WriteString(renderKeyHelp(m.keys.Cancel, m.keys.Quit))
}

func (m *model) viewComplete(sb *strings.Builder) {
	sb.WriteString(style.Success.Render("✓ Complete"))
	sb.WriteString("\n\n")
	sb.WriteString(m.checklist.View())
	sb.WriteString("\n\n")

	a := m.state.Artifact
	sb.WriteString(style.Label.Render("Result: "))
	sb.WriteString(style.Muted.Render(fmt.Sprintf("%s (%s)", a.Path, formatBytes(a.Size))))
	sb.WriteString("\n")

	if !m.saved.IsZero() {
		sb.WriteString(style.Label.Render("Saved: "))
		sb.WriteString(style.Muted.Render(m.saved.Path))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderKeyHelp(m.keys.Accept, m.keys.Retry, m.keys.Quit))
}

func (m *model) viewFailed(sb *strings.Builder) {
	sb.WriteString(style.Error.Render("✗ Failed"))
	sb.WriteString("\n\n")

	if f := m.state.Failure; f != nil {
		sb.WriteString(style.Error.Render(f.Message()))
		sb.WriteString("\n\n")
	}

	sb.WriteString(renderKeyHelp(m.keys.Retry, m.keys.Quit))
}

func (m *model) label(name string) string {
	if l, ok := m.config.Labels[name]; ok {
		return l
	}

	return name
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
