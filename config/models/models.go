package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolKind identifies one of the supported coding-assistant tools.
type ToolKind int

const (
	ToolClaude ToolKind = iota
	ToolGemini
	ToolCodex
)

// ToolKinds lists every tool kind in display order.
var ToolKinds = []ToolKind{ToolClaude, ToolGemini, ToolCodex}

// String returns the persisted identifier of the tool
func (k ToolKind) String() string {
	switch k {
	case ToolClaude:
		return "claude"
	case ToolGemini:
		return "gemini"
	case ToolCodex:
		return "codex"
	}
	return fmt.Sprintf("ToolKind(%d)", int(k))
}

// DisplayName returns the human readable tool name
func (k ToolKind) DisplayName() string {
	switch k {
	case ToolClaude:
		return "Claude Code"
	case ToolGemini:
		return "Gemini CLI"
	case ToolCodex:
		return "Codex"
	}
	return k.String()
}

// Binary returns the executable name of the tool
func (k ToolKind) Binary() string {
	switch k {
	case ToolClaude:
		return "claude"
	case ToolGemini:
		return "gemini"
	case ToolCodex:
		return "codex"
	}
	return ""
}

// Valid reports whether k is one of the known tool kinds
func (k ToolKind) Valid() bool {
	switch k {
	case ToolClaude, ToolGemini, ToolCodex:
		return true
	}
	return false
}

// ParseToolKind parses a persisted tool identifier.
func ParseToolKind(s string) (ToolKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude":
		return ToolClaude, nil
	case "gemini":
		return ToolGemini, nil
	case "codex":
		return ToolCodex, nil
	}
	return ToolClaude, fmt.Errorf("unknown tool: %q", s)
}

// MarshalJSON encodes the tool kind as its identifier
func (k ToolKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot encode %s", k)
	}
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a tool identifier. An empty string decodes to claude.
func (k *ToolKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = ToolClaude
		return nil
	}
	parsed, err := ParseToolKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ModelProfile is a named credential/endpoint pair usable by a tool
type ModelProfile struct {
	ModelName string `json:"model_name"`
	APIKey    string `json:"api_key"`
	ModelURL  string `json:"model_url"`
	IsCustom  bool   `json:"is_custom"`
}

// Credentialed reports whether the model carries a usable API key
func (m ModelProfile) Credentialed() bool {
	return strings.TrimSpace(m.APIKey) != ""
}

// Project is a named working directory with its own execution flags
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	YoloMode bool   `json:"yolo_mode"`
}

// ToolConfig holds the model profiles of one tool and its active model
type ToolConfig struct {
	Models       []ModelProfile `json:"models"`
	CurrentModel string         `json:"current_model"`
}

// Snapshot is the complete configuration at a point in time. Values are
// treated as immutable: every mutator returns a new Snapshot.
type Snapshot struct {
	ActiveTool     ToolKind   `json:"active_tool"`
	Claude         ToolConfig `json:"claude"`
	Gemini         ToolConfig `json:"gemini"`
	Codex          ToolConfig `json:"codex"`
	Projects       []Project  `json:"projects"`
	CurrentProject string     `json:"current_project"`
	Language       string     `json:"language"`
}
