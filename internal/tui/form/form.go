// Package form is the terminal UI for entering body measurements by hand,
// one step at a time.
package form

import (
	"fmt"
	"strings"

	"github.com/alkime/wardrobe/internal/artifact"
	"github.com/alkime/wardrobe/internal/measure"
	"github.com/alkime/wardrobe/internal/tui/components/checklist"
	"github.com/alkime/wardrobe/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Config configures the form.
type Config struct {
	Title string
	// Save stores the submitted profile. When nil the form just ends.
	Save func(measure.Profile) (artifact.Artifact, error)
}

// KeyMap holds the form's bindings.
type KeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Option    key.Binding
	Next      key.Binding
	Back      key.Binding
	Guide     key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextField: key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		PrevField: key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous field")),
		Option:    key.NewBinding(key.WithKeys("left", "right"), key.WithHelp("←/→", "choose")),
		Next:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next step")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "previous step")),
		Guide:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "how to measure")),
		Quit:      key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "force quit")),
	}
}

type savedMsg struct {
	artifact artifact.Artifact
	err      error
}

type model struct {
	config Config
	keys   KeyMap
	form   *measure.Form

	field     int
	guide     bool
	notice    string
	submitted bool
	saved     artifact.Artifact
	err       error

	input     textinput.Model
	progress  progress.Model
	checklist checklist.Model
}

// New creates the measurement form model.
func New(config Config) tea.Model {
	f := measure.NewForm()

	items := make([]checklist.Item, 0, f.Total())
	for _, s := range f.Steps() {
		items = append(items, checklist.Item{Name: s.Name, Label: s.Title})
	}

	in := textinput.New()
	in.CharLimit = 8
	in.Width = 10
	in.Prompt = ""

	m := &model{
		config:    config,
		keys:      DefaultKeyMap(),
		form:      f,
		input:     in,
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		checklist: checklist.New(items),
	}
	m.enterStep()

	return m
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) current() measure.Field {
	return m.form.Step().Fields[m.field]
}

// enterStep focuses the first field of the current step.
func (m *model) enterStep() {
	m.checklist = m.checklist.Focus(m.form.Step().Name)
	m.guide = false
	m.focus(0)
}

func (m *model) focus(i int) {
	n := len(m.form.Step().Fields)
	m.field = (i%n + n) % n

	fld := m.current()
	if fld.Kind == measure.Number {
		m.input.SetValue(m.form.Value(fld.Key))
		m.input.CursorEnd()
		m.input.Focus()

		return
	}

	m.input.Blur()
}

// editsNumber reports whether msg belongs to a number input: editing keys
// and digits pass, other characters are left for the key bindings.
func editsNumber(msg tea.KeyMsg) bool {
	if msg.Type != tea.KeyRunes && msg.Type != tea.KeySpace {
		return true
	}

	runes := msg.Runes
	for _, r := range runes {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}

	return len(runes) > 0
}

//nolint:cyclop // one case per key
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = min(max(msg.Width-4, 10), 60)
		return m, nil

	case savedMsg:
		m.saved, m.err = msg.artifact, msg.err
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}

		if m.submitted {
			if key.Matches(msg, m.keys.Quit, m.keys.Next) {
				return m, tea.Quit
			}

			return m, nil
		}

		m.notice = ""
		fld := m.current()

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.NextField):
			m.focus(m.field + 1)
		case key.Matches(msg, m.keys.PrevField):
			m.focus(m.field - 1)
		case key.Matches(msg, m.keys.Guide):
			m.guide = !m.guide
		case key.Matches(msg, m.keys.Back):
			if err := m.form.Prev(); err != nil {
				m.notice = "This is the first step."
			} else {
				m.enterStep()
			}
		case key.Matches(msg, m.keys.Next):
			return m, m.advance()
		case fld.Kind == measure.Choice && key.Matches(msg, m.keys.Option):
			delta := 1
			if msg.Type == tea.KeyLeft {
				delta = -1
			}

			_ = m.form.Cycle(fld.Key, delta)
		case fld.Kind == measure.Number && editsNumber(msg):
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)

			// partial input such as "." reads as empty
			if err := m.form.Set(fld.Key, m.input.Value()); err != nil {
				_ = m.form.Set(fld.Key, "")
			}

			return m, cmd
		}

		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// advance moves to the next step, or submits from the last one.
func (m *model) advance() tea.Cmd {
	if m.form.Index() < m.form.Total() {
		if err := m.form.Next(); err != nil {
			m.notice = "Fill in " + strings.Join(m.form.Missing(), ", ") + " to continue."
			return nil
		}

		m.enterStep()

		return nil
	}

	p, err := m.form.Submit()
	if err != nil {
		if missing := m.form.Missing(); len(missing) > 0 {
			m.notice = "Fill in " + strings.Join(missing, ", ") + " to finish."
		} else {
			m.notice = err.Error()
		}

		return nil
	}

	m.submitted = true
	m.checklist = m.checklist.Complete()
	m.input.Blur()

	if m.config.Save == nil {
		return tea.Quit
	}

	save := m.config.Save

	return func() tea.Msg {
		a, err := save(p)
		return savedMsg{artifact: a, err: err}
	}
}

func (m *model) View() string {
	var sb strings.Builder

	sb.WriteString(style.Title.Render(m.config.Title))
	sb.WriteString("\n\n")

	if m.submitted {
		return m.viewSubmitted(&sb)
	}

	step := m.form.Step()
	sb.WriteString(fmt.Sprintf("Step %d of %d · %s   %s\n",
		m.form.Index(), m.form.Total(), step.Title,
		style.Subtitle.Render(fmt.Sprintf("%d%% complete", m.form.Progress()))))
	sb.WriteString(m.progress.ViewAs(float64(m.form.Progress()) / 100))
	sb.WriteString("\n\n")
	sb.WriteString(m.checklist.View())
	sb.WriteString("\n\n")

	for i, fld := range step.Fields {
		sb.WriteString(m.viewField(i, fld))
		sb.WriteString("\n")
	}

	if g := m.current().Guide; m.guide && g != "" {
		sb.WriteString("\n" + style.Muted.Render(g) + "\n")
	}

	if m.notice != "" {
		sb.WriteString("\n" + style.Warning.Render(m.notice) + "\n")
	}

	next := m.keys.Next
	if m.form.Index() == m.form.Total() {
		next.SetHelp("enter", "create profile")
	}

	sb.WriteString("\n")
	sb.WriteString(renderHelp(m.keys.NextField, m.keys.Option, next, m.keys.Back, m.keys.Guide, m.keys.Quit))
	sb.WriteString("\n")

	return sb.String()
}

func (m *model) viewField(i int, fld measure.Field) string {
	label := fld.Label
	if fld.Kind == measure.Number {
		label += " (" + measure.UnitLabel(fld.Key, m.form.Units()) + ")"
	}

	if fld.Required {
		label += " *"
	}

	focused := i == m.field
	cursor := "  "

	if focused {
		cursor = style.Active.Render("▸ ")
	}

	var value string

	switch {
	case fld.Kind == measure.Number && focused:
		value = m.input.View()
	case m.form.Value(fld.Key) == "":
		value = style.Muted.Render("-")
	case fld.Kind == measure.Choice && focused:
		value = "‹ " + m.form.Value(fld.Key) + " ›"
	default:
		value = m.form.Value(fld.Key)
	}

	return fmt.Sprintf("%s%-22s %s", cursor, label, value)
}

func (m *model) viewSubmitted(sb *strings.Builder) string {
	sb.WriteString(m.checklist.View())
	sb.WriteString("\n\n")

	switch {
	case m.err != nil:
		sb.WriteString(style.Error.Render("Could not save profile: " + m.err.Error()))
	case !m.saved.IsZero():
		sb.WriteString(style.Success.Render("Profile saved."))
		sb.WriteString("\n")
		sb.WriteString(style.Label.Render("Saved: ") + style.Muted.Render(m.saved.Path))
	default:
		sb.WriteString(style.Subtitle.Render("Saving…"))
	}

	sb.WriteString("\n\n")
	sb.WriteString(renderHelp(m.keys.Quit))
	sb.WriteString("\n")

	return sb.String()
}

func renderHelp(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))

	for _, b := range bindings {
		parts = append(parts, style.Help.Render("[")+style.Key.Render(b.Help().Key)+
			style.Help.Render("] "+b.Help().Desc))
	}

	return strings.Join(parts, "  ")
}
