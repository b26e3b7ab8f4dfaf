// Package checklist renders the pipeline's stages as a list showing which
// are done, which one is running and which are still to come.
package checklist

import (
	"strings"

	"github.com/alkime/wardrobe/internal/tui/style"
)

const (
	markDone    = "✓"
	markActive  = "▸"
	markPending = "·"
)

// Item is one row.
type Item struct {
	Name  string
	Label string
}

// Model is immutable; Focus returns an updated copy.
type Model struct {
	items  []Item
	active int
}

// New creates a checklist with nothing started.
func New(items []Item) Model {
	return Model{
		items:  items,
		active: -1,
	}
}

// Focus marks the item called name as running and every earlier item as
// done. Unknown names leave the list unchanged.
func (m Model) Focus(name string) Model {
	for i, it := range m.items {
		if it.Name == name {
			m.active = i
			return m
		}
	}

	return m
}

// Complete marks every item as done.
func (m Model) Complete() Model {
	m.active = len(m.items)
	return m
}

// Active returns the running item's name.
func (m Model) Active() string {
	if m.active < 0 || m.active >= len(m.items) {
		return ""
	}

	return m.items[m.active].Name
}

// Len returns the number of items.
func (m Model) Len() int {
	return len(m.items)
}

// Position is the 1-based index of the running item, or 0.
func (m Model) Position() int {
	if m.active < 0 || m.active >= len(m.items) {
		return 0
	}

	return m.active + 1
}

func (m Model) View() string {
	lines := make([]string, 0, len(m.items))

	for i, it := range m.items {
		label := it.Label
		if label == "" {
			label = it.Name
		}

		switch {
		case i < m.active:
			lines = append(lines, style.Success.Render(markDone+" "+label))
		case i == m.active:
			lines = append(lines, style.Active.Render(markActive+" "+label))
		default:
			lines = append(lines, style.Muted.Render(markPending+" "+label))
		}
	}

	return strings.Join(lines, "\n")
}
