package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 定义看板快捷键绑定
// KeyMap defines board keybindings
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	SwitchPane  key.Binding
	Toggle      key.Binding
	DismissNote key.Binding
	Quit        key.Binding
}

// DefaultKeyMap 默认快捷键
// DefaultKeyMap returns default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		SwitchPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter/space", "toggle item"),
		),
		DismissNote: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "dismiss note"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
