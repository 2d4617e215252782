// Package tui provides the terminal control panel
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"aicoder/config"
	"aicoder/config/models"
	"aicoder/internal/panel"
	"aicoder/internal/readiness"
)

// ViewState represents the current view state
type ViewState int

const (
	ViewBoot          ViewState = iota // Environment check
	ViewMain                           // Tool tabs and model list
	ViewSettings                       // Model settings
	ViewProjects                       // Project manager
	ViewProjectRename                  // Rename a draft project
	ViewProjectPath                    // Edit the current project path
	ViewHelp                           // Help panel
)

// Model is the bubbletea model of the control panel. Configuration state
// lives in the panel; the model only keeps what the screen needs.
type Model struct {
	ctx   context.Context
	panel *panel.Panel
	seq   *readiness.Sequencer
	probe readiness.Probe
	keys  KeyMap

	viewState ViewState
	prevView  ViewState
	spinner   spinner.Model

	cursor        int // model list cursor in the main view
	projectCursor int // project list cursor in the manager

	form     SettingsForm
	input    textinput.Model // project rename and path input
	renameID string

	errorMsg string
	probeErr error
	expanded bool

	width  int
	height int
}

// NewModel creates the TUI model. seq reports the environment check run
// by probe; the panel is shown once it is Ready.
func NewModel(ctx context.Context, p *panel.Panel, seq *readiness.Sequencer, probe readiness.Probe) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle

	in := textinput.New()
	in.CharLimit = 256
	in.Width = 48
	in.Prompt = "> "

	m := Model{
		ctx:       ctx,
		panel:     p,
		seq:       seq,
		probe:     probe,
		keys:      DefaultKeyMap(),
		viewState: ViewBoot,
		spinner:   sp,
		form:      NewSettingsForm(),
		input:     in,
		width:     80,
		height:    24,
	}
	m.cursor = p.ActiveTab()
	return m
}

// Init starts the spinner and the environment check
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, runProbe(m.ctx, m.seq, m.probe))
}

func runProbe(ctx context.Context, seq *readiness.Sequencer, probe readiness.Probe) tea.Cmd {
	return func() tea.Msg {
		return ProbeFinishedMsg{Err: seq.Run(ctx, probe)}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.viewState != ViewBoot {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ReadinessMsg:
		m.checkReady()
		return m, nil

	case ResizeMsg:
		m.expanded = true
		return m, nil

	case ProbeFinishedMsg:
		m.probeErr = msg.Err
		m.checkReady()
		return m, nil

	case RefreshMsg:
		m.clampCursor()
		return m, nil

	case OpResultMsg:
		return m.handleOpResult(msg)
	}

	return m, nil
}

// checkReady leaves the boot screen once the sequencer is Ready. When no
// model has a key yet the panel opened its settings, so start there.
func (m *Model) checkReady() {
	if m.viewState != ViewBoot || m.seq.State() != readiness.Ready {
		return
	}
	m.viewState = ViewMain
	if m.panel.SettingsOpen() {
		m.enterSettings()
	}
}

func (m Model) handleOpResult(msg OpResultMsg) (tea.Model, tea.Cmd) {
	m.errorMsg = ""
	if msg.Err == nil {
		switch msg.Op {
		case OpSaveSettings:
			m.viewState = ViewMain
			m.cursor = m.panel.ActiveTab()
		case OpCommitProjects:
			m.viewState = ViewMain
		case OpSetPath:
			m.input.Blur()
			m.viewState = ViewMain
		case OpSwitchTool:
			m.cursor = 0
		}
		m.clampCursor()
		return m, nil
	}

	if errors.Is(msg.Err, panel.ErrBareModel) {
		m.enterSettings()
		return m, nil
	}
	var pe *config.PersistenceError
	if !errors.As(msg.Err, &pe) {
		m.errorMsg = msg.Err.Error()
	}
	return m, nil
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.viewState {
	case ViewBoot:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	case ViewMain:
		return m.handleMainViewKeys(msg)
	case ViewSettings:
		return m.handleSettingsKeys(msg)
	case ViewProjects:
		return m.handleProjectsKeys(msg)
	case ViewProjectRename, ViewProjectPath:
		return m.handleInputKeys(msg)
	case ViewHelp:
		if key.Matches(msg, m.keys.Cancel, m.keys.Help, m.keys.Quit) {
			m.viewState = m.prevView
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m Model) activeConfig() (models.ToolKind, models.ToolConfig) {
	snap := m.panel.Snapshot()
	return snap.ActiveTool, snap.Tool(snap.ActiveTool)
}

// handleMainViewKeys handles keyboard input in main view
func (m Model) handleMainViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kind, cfg := m.activeConfig()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(cfg.Models)-1 {
			m.cursor++
		}
		m.errorMsg = ""
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.errorMsg = ""
		return m, nil

	case key.Matches(msg, m.keys.NextTool):
		return m, m.run(OpSwitchTool, func(p *panel.Panel) error {
			return p.SwitchActiveTool(nextTool(kind, 1))
		})

	case key.Matches(msg, m.keys.PrevTool):
		return m, m.run(OpSwitchTool, func(p *panel.Panel) error {
			return p.SwitchActiveTool(nextTool(kind, -1))
		})

	case key.Matches(msg, m.keys.Select):
		if m.cursor < 0 || m.cursor >= len(cfg.Models) {
			return m, nil
		}
		name := cfg.Models[m.cursor].ModelName
		return m, m.run(OpSwitchModel, func(p *panel.Panel) error {
			return p.SwitchActiveModel(kind, name)
		})

	case key.Matches(msg, m.keys.Settings):
		m.panel.OpenModelSettings()
		if m.cursor < len(cfg.Models) {
			m.panel.FocusModelTab(m.cursor)
		}
		m.enterSettings()
		return m, nil

	case key.Matches(msg, m.keys.Projects):
		m.panel.OpenProjectManager()
		m.projectCursor = 0
		m.errorMsg = ""
		m.viewState = ViewProjects
		return m, nil

	case key.Matches(msg, m.keys.NextProject), key.Matches(msg, m.keys.PrevProject):
		step := 1
		if key.Matches(msg, m.keys.PrevProject) {
			step = -1
		}
		id, ok := m.adjacentProject(step)
		if !ok {
			return m, nil
		}
		return m, m.run(OpSwitchProject, func(p *panel.Panel) error {
			return p.SwitchProject(id)
		})

	case key.Matches(msg, m.keys.Yolo):
		cur, ok := m.panel.Snapshot().ResolvedProject()
		if !ok {
			return m, nil
		}
		return m, m.run(OpSetYolo, func(p *panel.Panel) error {
			return p.SetYoloMode(!cur.YoloMode)
		})

	case key.Matches(msg, m.keys.Path):
		cur, _ := m.panel.Snapshot().ResolvedProject()
		m.input.SetValue(cur.Path)
		m.input.Focus()
		m.errorMsg = ""
		m.viewState = ViewProjectPath
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Help):
		m.prevView = m.viewState
		m.viewState = ViewHelp
		return m, nil
	}
	return m, nil
}

// enterSettings shows the open settings buffer with its focused tab
func (m *Model) enterSettings() {
	_, cfg, ok := m.panel.ModelDraft()
	if !ok {
		return
	}
	m.viewState = ViewSettings
	m.errorMsg = ""
	if tab := m.panel.ActiveTab(); tab >= 0 && tab < len(cfg.Models) {
		m.form.Load(cfg.Models[tab])
	}
}

// handleSettingsKeys handles keyboard input in the model settings view
func (m Model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.panel.CloseModelSettings()
		m.errorMsg = ""
		m.viewState = ViewMain
		m.clampCursor()
		return m, nil

	case key.Matches(msg, m.keys.Save):
		return m, m.run(OpSaveSettings, (*panel.Panel).SaveModelSettings)

	case key.Matches(msg, m.keys.NextTab), key.Matches(msg, m.keys.PrevTab):
		_, cfg, ok := m.panel.ModelDraft()
		if !ok || len(cfg.Models) == 0 {
			return m, nil
		}
		step := 1
		if key.Matches(msg, m.keys.PrevTab) {
			step = -1
		}
		next := (m.panel.ActiveTab() + step + len(cfg.Models)) % len(cfg.Models)
		if err := m.panel.FocusModelTab(next); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		m.form.Load(cfg.Models[next])
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		m.form.SetFocus(m.form.Focus + 1)
		return m, nil

	case key.Matches(msg, m.keys.PrevField):
		m.form.SetFocus(m.form.Focus - 1)
		return m, nil
	}

	var cmd tea.Cmd
	focus := m.form.Focus
	m.form.Inputs[focus], cmd = m.form.Inputs[focus].Update(msg)
	if err := m.pushField(focus); err != nil {
		m.errorMsg = err.Error()
	}
	return m, cmd
}

// pushField copies field i of the form into the settings buffer
func (m Model) pushField(i int) error {
	v := m.form.Value(i)
	switch i {
	case FieldName:
		return m.panel.RenameModel(v)
	case FieldAPIKey:
		return m.panel.SetAPIKey(v)
	case FieldEndpoint:
		return m.panel.SetEndpoint(v)
	}
	return nil
}

// handleProjectsKeys handles keyboard input in the project manager
func (m Model) handleProjectsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	draft, ok := m.panel.ProjectDraft()
	if !ok {
		m.viewState = ViewMain
		return m, nil
	}
	list := draft.Projects()

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.panel.CloseProjectManager()
		m.errorMsg = ""
		m.viewState = ViewMain
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if m.projectCursor < len(list)-1 {
			m.projectCursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.projectCursor > 0 {
			m.projectCursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Add):
		draft.Add()
		m.projectCursor = len(list)
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.projectCursor < len(list) && draft.Delete(list[m.projectCursor].ID) {
			if m.projectCursor >= len(list)-1 {
				m.projectCursor = len(list) - 2
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Rename):
		if m.projectCursor >= len(list) {
			return m, nil
		}
		m.renameID = list[m.projectCursor].ID
		m.input.SetValue(list[m.projectCursor].Name)
		m.input.Focus()
		m.viewState = ViewProjectRename
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Select):
		return m, m.run(OpCommitProjects, (*panel.Panel).CommitProjects)
	}
	return m, nil
}

// handleInputKeys handles the single line input of the rename and path views
func (m Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.input.Blur()
		m.errorMsg = ""
		if m.viewState == ViewProjectRename {
			m.viewState = ViewProjects
		} else {
			m.viewState = ViewMain
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		value := m.input.Value()
		if m.viewState == ViewProjectPath {
			return m, m.run(OpSetPath, func(p *panel.Panel) error {
				return p.SetProjectPath(value)
			})
		}
		m.input.Blur()
		if draft, ok := m.panel.ProjectDraft(); ok {
			if err := draft.Rename(m.renameID, value); err != nil {
				m.errorMsg = err.Error()
			}
		}
		m.viewState = ViewProjects
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// run executes op against the panel off the render loop
func (m Model) run(op Operation, fn func(*panel.Panel) error) tea.Cmd {
	p := m.panel
	return func() tea.Msg {
		return OpResultMsg{Op: op, Err: fn(p)}
	}
}

func (m *Model) clampCursor() {
	_, cfg := m.activeConfig()
	if m.cursor >= len(cfg.Models) {
		m.cursor = 0
	}
}

func (m Model) adjacentProject(step int) (string, bool) {
	snap := m.panel.Snapshot()
	if len(snap.Projects) < 2 {
		return "", false
	}
	i := snap.ProjectIndex(snap.CurrentProject)
	if i < 0 {
		i = 0
	}
	i = (i + step + len(snap.Projects)) % len(snap.Projects)
	return snap.Projects[i].ID, true
}

func nextTool(kind models.ToolKind, step int) models.ToolKind {
	n := len(models.ToolKinds)
	for i, k := range models.ToolKinds {
		if k == kind {
			return models.ToolKinds[(i+step+n)%n]
		}
	}
	return models.ToolKinds[0]
}

// View renders the current view
func (m Model) View() string {
	switch m.viewState {
	case ViewBoot:
		return m.RenderBootView()
	case ViewSettings:
		return m.RenderSettingsView()
	case ViewProjects:
		return m.RenderProjectsView()
	case ViewProjectRename:
		return m.RenderInputView("Rename project")
	case ViewProjectPath:
		return m.RenderInputView("Project path")
	case ViewHelp:
		return m.RenderHelpView()
	default:
		return m.RenderMainView()
	}
}
