package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	Up          key.Binding // k - move up
	Down        key.Binding // j - move down
	NextTool    key.Binding // tab - next tool
	PrevTool    key.Binding // shift+tab - previous tool
	Select      key.Binding // enter - switch model / confirm
	Settings    key.Binding // e - model settings
	Projects    key.Binding // p - project manager
	NextProject key.Binding // ] - next project
	PrevProject key.Binding // [ - previous project
	Yolo        key.Binding // y - toggle yolo mode
	Path        key.Binding // o - edit project path
	NextTab     key.Binding // pgdown - next model tab in settings
	PrevTab     key.Binding // pgup - previous model tab in settings
	NextField   key.Binding // tab - next field in a form
	PrevField   key.Binding // shift+tab - previous field in a form
	Save        key.Binding // ctrl+s - save settings
	Add         key.Binding // a - add project
	Rename      key.Binding // r - rename project
	Delete      key.Binding // d - delete project
	Help        key.Binding // ? - help
	Quit        key.Binding // q - quit
	Cancel      key.Binding // esc - cancel
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		NextTool: key.NewBinding(
			key.WithKeys("tab", "l", "right"),
			key.WithHelp("tab", "next tool"),
		),
		PrevTool: key.NewBinding(
			key.WithKeys("shift+tab", "h", "left"),
			key.WithHelp("shift+tab", "previous tool"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "use model"),
		),
		Settings: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "model settings"),
		),
		Projects: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "projects"),
		),
		NextProject: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next project"),
		),
		PrevProject: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous project"),
		),
		Yolo: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "toggle yolo"),
		),
		Path: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "project path"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+n"),
			key.WithHelp("pgdn", "next model"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("pgup", "ctrl+p"),
			key.WithHelp("pgup", "previous model"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "previous field"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp returns short help text
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTool, k.Select, k.Settings, k.Projects, k.Help, k.Quit}
}

// FullHelp returns full help text
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTool, k.PrevTool},
		{k.Select, k.Settings, k.Projects, k.Path},
		{k.NextProject, k.PrevProject, k.Yolo, k.Help},
		{k.NextTab, k.PrevTab, k.Save, k.Cancel},
		{k.Add, k.Rename, k.Delete, k.Quit},
	}
}
