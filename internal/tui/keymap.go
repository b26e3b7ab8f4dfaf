package tui

import (
	"strings"

	"github.com/alkime/wardrobe/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the bindings for every workflow trigger.
type KeyMap struct {
	Start     key.Binding
	Stop      key.Binding
	Cancel    key.Binding
	Retry     key.Binding
	Accept    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "stop and process"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "start over"),
		),
		Accept: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "accept and save"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

func renderKeyHelp(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))

	for _, b := range bindings {
		parts = append(parts, style.Help.Render("[")+style.Key.Render(b.Help().Key)+
			style.Help.Render("] "+b.Help().Desc))
	}

	return strings.Join(parts, "  ")
}
