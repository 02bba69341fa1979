package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings with built-in help text. It satisfies
// help.KeyMap.
type KeyMap struct {
	Pass  key.Binding
	Like  key.Binding
	Flip  key.Binding
	Draw  key.Binding
	Stats key.Binding

	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Pass: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "pass"),
		),
		Like: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "like"),
		),
		Flip: key.NewBinding(
			key.WithKeys(" ", "f"),
			key.WithHelp("space/f", "flip"),
		),
		Draw: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "draw new deck"),
		),
		Stats: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "deck/stats"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
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

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pass, k.Flip, k.Like, k.Draw, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pass, k.Like, k.Flip},
		{k.Draw, k.Stats, k.Refresh},
		{k.Help, k.Quit, k.ForceQuit},
	}
}
