package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"aicoder/config/models"
	"aicoder/internal/panel"
	"aicoder/internal/utils"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(true)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))
)

// getEffectiveWidth returns the width to render at, capped for readability
func (m Model) getEffectiveWidth(defaultWidth int) int {
	if m.width <= 0 {
		return defaultWidth
	}
	maxWidth := 80
	if m.expanded {
		maxWidth = 96
	}
	if m.width < maxWidth {
		return m.width - 2
	}
	return maxWidth
}

func (m Model) separator() string {
	return separatorStyle.Render(strings.Repeat("─", m.getEffectiveWidth(40)))
}

// RenderBootView renders the environment check. Only the latest line is
// shown unless a failure turned the log verbose.
func (m Model) RenderBootView() string {
	var b strings.Builder
	width := m.getEffectiveWidth(60)

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(titleStyle.Render("aicoder"))
	b.WriteString("\n\n")

	lines := m.seq.Lines()
	if !m.seq.Verbose() && len(lines) > 0 {
		lines = lines[len(lines)-1:]
	}
	for _, line := range lines {
		style := normalStyle
		if utils.ContainsAnyFold(line, "failed", "error") {
			style = errorStyle
		}
		b.WriteString(style.Render(wordwrap.String(line, width)))
		b.WriteString("\n")
	}

	if m.probeErr != nil {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Press q to quit."))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMainView renders the tool tabs, the model list of the active tool
// and the current project.
func (m Model) RenderMainView() string {
	var b strings.Builder
	snap := m.panel.Snapshot()

	tabs := make([]string, 0, len(models.ToolKinds))
	for _, kind := range models.ToolKinds {
		if kind == snap.ActiveTool {
			tabs = append(tabs, activeTabStyle.Render(kind.DisplayName()))
		} else {
			tabs = append(tabs, tabStyle.Render(kind.DisplayName()))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n\n")

	cfg := snap.Tool(snap.ActiveTool)
	for i, model := range cfg.Models {
		b.WriteString(m.renderModelLine(i, model, cfg.CurrentModel))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if cur, ok := snap.ResolvedProject(); ok {
		yolo := "off"
		if cur.YoloMode {
			yolo = "on"
		}
		b.WriteString(fmt.Sprintf("%s %s  %s\n",
			dimStyle.Render("Project:"),
			normalStyle.Render(cur.Name),
			dimStyle.Render(fmt.Sprintf("(%d of %d)", snap.ProjectIndex(cur.ID)+1, len(snap.Projects)))))
		b.WriteString(fmt.Sprintf("%s %s\n", dimStyle.Render("Path:   "), normalStyle.Render(cur.Path)))
		b.WriteString(fmt.Sprintf("%s %s\n", dimStyle.Render("Yolo:   "), normalStyle.Render(yolo)))
	}

	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n")
	b.WriteString(m.RenderStatusBar())
	return b.String()
}

// renderModelLine renders a single model in the list
func (m Model) renderModelLine(index int, model models.ModelProfile, current string) string {
	cursor := "  "
	if index == m.cursor {
		cursor = "> "
	}
	marker := "  "
	if model.ModelName == current {
		marker = "● "
	}

	keyText := dimStyle.Render("no key")
	if model.Credentialed() {
		keyText = dimStyle.Render(utils.MaskAPIKey(model.APIKey))
	}
	line := fmt.Sprintf("%s%s%-12s %s", cursor, marker, model.ModelName, keyText)

	switch {
	case index == m.cursor:
		return selectedStyle.Render(line)
	case model.ModelName == current:
		return activeStyle.Render(line)
	default:
		return normalStyle.Render(line)
	}
}

// RenderStatusBar renders the panel status, a local error or the key help
func (m Model) RenderStatusBar() string {
	if m.errorMsg != "" {
		return errorStyle.Render(m.errorMsg)
	}
	switch st := m.panel.Status(); st.Kind {
	case panel.StatusError:
		return errorStyle.Render(st.Text)
	case panel.StatusInfo:
		return messageStyle.Render(st.Text)
	}
	return m.renderShortHelp(m.keys.ShortHelp())
}

func (m Model) renderShortHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, helpKeyStyle.Render(h.Key)+" "+dimStyle.Render(h.Desc))
	}
	return strings.Join(parts, dimStyle.Render(" • "))
}

// RenderSettingsView renders the model settings buffer
func (m Model) RenderSettingsView() string {
	kind, cfg, ok := m.panel.ModelDraft()
	if !ok {
		return m.RenderMainView()
	}
	var b strings.Builder
	b.WriteString(RenderSettingsForm(kind, cfg, m.panel.ActiveTab(), m.form, m.errorMsg))
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n")
	if st := m.panel.Status(); st.Kind == panel.StatusError {
		b.WriteString(errorStyle.Render(st.Text))
		b.WriteString("\n")
	}
	b.WriteString(m.renderShortHelp([]key.Binding{m.keys.NextTab, m.keys.PrevTab, m.keys.NextField, m.keys.Save, m.keys.Cancel}))
	return b.String()
}

// RenderProjectsView renders the project manager draft
func (m Model) RenderProjectsView() string {
	draft, ok := m.panel.ProjectDraft()
	if !ok {
		return m.RenderMainView()
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Projects"))
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n\n")

	for i, p := range draft.Projects() {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			name = "(unnamed)"
		}
		line := fmt.Sprintf("  %-20s %s", name, p.Path)
		if i == m.projectCursor {
			b.WriteString(selectedStyle.Render("> " + line[2:]))
		} else {
			b.WriteString(normalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if err := draft.Err(); err != nil {
		b.WriteString(formErrorStyle.Render(err.Error()))
		b.WriteString("\n")
	} else if m.errorMsg != "" {
		b.WriteString(errorStyle.Render(m.errorMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.separator())
	b.WriteString("\n")
	b.WriteString(m.renderShortHelp([]key.Binding{m.keys.Add, m.keys.Rename, m.keys.Delete, m.keys.Select, m.keys.Cancel}))
	return b.String()
}

// RenderInputView renders the single line input under title
func (m Model) RenderInputView(title string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.errorMsg != "" {
		b.WriteString(errorStyle.Render(m.errorMsg))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("enter to confirm • esc to cancel"))
	return b.String()
}

// RenderHelpView renders every key binding
func (m Model) RenderHelpView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys"))
	b.WriteString("\n")
	b.WriteString(m.separator())
	b.WriteString("\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s %s\n", helpKeyStyle.Width(12).Render(h.Key), dimStyle.Render(h.Desc)))
		}
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("esc to close"))
	return b.String()
}
