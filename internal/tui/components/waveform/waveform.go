// Package waveform draws live microphone levels while a capture is running.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/alkime/wardrobe/internal/tui/style"
	"github.com/alkime/wardrobe/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// eighths holds the partial-fill glyphs, index 0 being an empty cell.
var eighths = []rune(" ▁▂▃▄▅▆▇█") //nolint:gochecknoglobals // glyph table

const frameInterval = 50 * time.Millisecond

// TickMsg triggers a waveform redraw.
type TickMsg struct{}

// Model renders the samples read from a Levels control as vertical bars,
// oldest on the left.
type Model struct {
	levels uictl.Levels[int16]
	width  int
	height int
}

// New creates a waveform width columns wide and height rows tall. Samples
// are bucketed to fit the width.
func New(levels uictl.Levels[int16], width, height int) Model {
	return Model{levels: levels, width: width, height: max(height, 1)}
}

// SetWidth changes the number of columns, for example after a resize.
func (m Model) SetWidth(width int) Model {
	m.width = max(width, 1)

	return m
}

// Width reports the number of columns.
func (m Model) Width() int {
	return m.width
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

func (m Model) View() string {
	var samples []int16
	if m.levels != nil {
		samples = m.levels.Read()
	}

	if len(samples) == 0 {
		return m.baseline()
	}

	heights := m.columns(samples)
	rows := make([]string, m.height)

	for row := range m.height {
		// eighths below this row's floor are drawn by the rows underneath
		floor := (m.height - 1 - row) * 8

		var sb strings.Builder
		for _, h := range heights {
			sb.WriteRune(eighths[min(max(h-floor, 0), 8)])
		}

		rows[row] = style.Progress.Render(sb.String())
	}

	return strings.Join(rows, "\n")
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// baseline is the idle picture: blank rows over a flat bottom line.
func (m Model) baseline() string {
	rows := make([]string, m.height)
	for i := range rows {
		glyph := " "
		if i == m.height-1 {
			glyph = "▁"
		}

		rows[i] = style.Muted.Render(strings.Repeat(glyph, m.width))
	}

	return strings.Join(rows, "\n")
}

// columns reduces samples to one bar height per column, in eighths of a row.
func (m Model) columns(samples []int16) []int {
	heights := make([]int, m.width)
	bucket := max(1, len(samples)/m.width)
	top := float64(m.height * 8)

	for col := range heights {
		start := col * bucket
		if start >= len(samples) {
			break
		}

		peak := peakOf(samples[start:min(start+bucket, len(samples))])

		// square root keeps quiet speech visible
		heights[col] = min(int(math.Sqrt(peak/math.MaxInt16)*top), int(top))
	}

	return heights
}

func peakOf(samples []int16) float64 {
	var peak float64

	for _, s := range samples {
		peak = max(peak, math.Abs(float64(s)))
	}

	return min(peak, math.MaxInt16)
}
