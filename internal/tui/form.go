package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"aicoder/config/models"
	"aicoder/internal/providers"
)

// Settings form fields
const (
	FieldName = iota
	FieldAPIKey
	FieldEndpoint
	FieldCount
)

// Form styles
var (
	formLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)

	formFocusedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	formErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	formHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252"))

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(true)
)

// SettingsForm edits the focused model of the model settings buffer
type SettingsForm struct {
	Inputs []textinput.Model
	Focus  int
}

// NewSettingsForm creates the input fields of the settings form
func NewSettingsForm() SettingsForm {
	inputs := make([]textinput.Model, FieldCount)

	inputs[FieldName] = textinput.New()
	inputs[FieldName].Placeholder = "Model name"
	inputs[FieldName].CharLimit = 64
	inputs[FieldName].Width = 40
	inputs[FieldName].Prompt = ""

	inputs[FieldAPIKey] = textinput.New()
	inputs[FieldAPIKey].Placeholder = "API key"
	inputs[FieldAPIKey].CharLimit = 256
	inputs[FieldAPIKey].Width = 40
	inputs[FieldAPIKey].EchoMode = textinput.EchoPassword
	inputs[FieldAPIKey].EchoCharacter = '•'
	inputs[FieldAPIKey].Prompt = ""

	inputs[FieldEndpoint] = textinput.New()
	inputs[FieldEndpoint].Placeholder = "https://api.example.com"
	inputs[FieldEndpoint].CharLimit = 256
	inputs[FieldEndpoint].Width = 40
	inputs[FieldEndpoint].Prompt = ""

	return SettingsForm{Inputs: inputs}
}

// Load fills the fields from m and focuses the API key, the field a new
// user most likely came for.
func (f *SettingsForm) Load(m models.ModelProfile) {
	f.Inputs[FieldName].SetValue(m.ModelName)
	f.Inputs[FieldAPIKey].SetValue(m.APIKey)
	f.Inputs[FieldEndpoint].SetValue(m.ModelURL)
	f.SetFocus(FieldAPIKey)
}

// SetFocus focuses field i and blurs the others
func (f *SettingsForm) SetFocus(i int) {
	if i < 0 {
		i = FieldCount - 1
	}
	if i >= FieldCount {
		i = 0
	}
	f.Focus = i
	for j := range f.Inputs {
		if j == i {
			f.Inputs[j].Focus()
		} else {
			f.Inputs[j].Blur()
		}
	}
}

// Value returns the content of field i
func (f SettingsForm) Value(i int) string {
	return f.Inputs[i].Value()
}

// FieldLabels returns the labels for each form field
func FieldLabels() []string {
	return []string{
		"Name:",
		"API Key:",
		"Endpoint:",
	}
}

// RenderSettingsForm renders the model tabs of cfg with tab active focused,
// the fields and the key purchase hint.
func RenderSettingsForm(kind models.ToolKind, cfg models.ToolConfig, active int, f SettingsForm, errMsg string) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(kind.DisplayName() + " model settings"))
	b.WriteString("\n\n")

	tabs := make([]string, 0, len(cfg.Models))
	for i, m := range cfg.Models {
		label := m.ModelName
		if label == "" {
			label = "(unnamed)"
		}
		if !m.Credentialed() {
			label += " ·"
		}
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")

	labels := FieldLabels()
	for i, input := range f.Inputs {
		label := formLabelStyle.Render(labels[i])
		if i == f.Focus {
			label = formFocusedStyle.Width(12).Render(labels[i])
		}
		b.WriteString(label)
		b.WriteString(input.View())
		b.WriteString("\n")
	}

	if active >= 0 && active < len(cfg.Models) {
		if url := providers.SubscriptionURL(cfg.Models[active].ModelName); url != "" {
			b.WriteString("\n")
			b.WriteString(formHintStyle.Render(fmt.Sprintf("Get an API key: %s", url)))
			b.WriteString("\n")
		}
	}

	if errMsg != "" {
		b.WriteString("\n")
		b.WriteString(formErrorStyle.Render(errMsg))
		b.WriteString("\n")
	}
	return b.String()
}
