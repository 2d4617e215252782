package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Clone returns a deep copy of the tool config
func (t ToolConfig) Clone() ToolConfig {
	out := ToolConfig{CurrentModel: t.CurrentModel}
	if t.Models != nil {
		out.Models = make([]ModelProfile, len(t.Models))
		copy(out.Models, t.Models)
	}
	return out
}

// IndexOf returns the index of the named model or -1.
func (t ToolConfig) IndexOf(name string) int {
	for i, m := range t.Models {
		if m.ModelName == name {
			return i
		}
	}
	return -1
}

// Model returns the named model profile
func (t ToolConfig) Model(name string) (ModelProfile, bool) {
	if i := t.IndexOf(name); i >= 0 {
		return t.Models[i], true
	}
	return ModelProfile{}, false
}

// Credentialed reports whether the named model exists and has an API key
func (t ToolConfig) Credentialed(name string) bool {
	m, ok := t.Model(name)
	return ok && m.Credentialed()
}

// AnyCredentialed reports whether at least one model has an API key
func (t ToolConfig) AnyCredentialed() bool {
	for _, m := range t.Models {
		if m.Credentialed() {
			return true
		}
	}
	return false
}

// WithCurrentModel returns a copy with current_model set to name.
func (t ToolConfig) WithCurrentModel(name string) ToolConfig {
	out := t.Clone()
	out.CurrentModel = name
	return out
}

// RenameModel renames the model at index idx. When the renamed model is the
// current model, current_model follows the new name in the same update.
// Uniqueness of newName is checked at commit time, not here.
func (t ToolConfig) RenameModel(idx int, newName string) (ToolConfig, error) {
	if idx < 0 || idx >= len(t.Models) {
		return t, fmt.Errorf("model index %d out of range", idx)
	}
	out := t.Clone()
	oldName := out.Models[idx].ModelName
	out.Models[idx].ModelName = newName
	if out.CurrentModel == oldName {
		out.CurrentModel = newName
	}
	return out, nil
}

// SetAPIKey returns a copy with the API key of model idx replaced
func (t ToolConfig) SetAPIKey(idx int, key string) (ToolConfig, error) {
	if idx < 0 || idx >= len(t.Models) {
		return t, fmt.Errorf("model index %d out of range", idx)
	}
	out := t.Clone()
	out.Models[idx].APIKey = key
	return out, nil
}

// SetEndpoint returns a copy with the endpoint of model idx replaced
func (t ToolConfig) SetEndpoint(idx int, url string) (ToolConfig, error) {
	if idx < 0 || idx >= len(t.Models) {
		return t, fmt.Errorf("model index %d out of range", idx)
	}
	out := t.Clone()
	out.Models[idx].ModelURL = url
	return out, nil
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Claude = s.Claude.Clone()
	out.Gemini = s.Gemini.Clone()
	out.Codex = s.Codex.Clone()
	if s.Projects != nil {
		out.Projects = make([]Project, len(s.Projects))
		copy(out.Projects, s.Projects)
	}
	return out
}

// Tool returns a copy of the config of the given tool.
func (s Snapshot) Tool(kind ToolKind) ToolConfig {
	switch kind {
	case ToolClaude:
		return s.Claude.Clone()
	case ToolGemini:
		return s.Gemini.Clone()
	case ToolCodex:
		return s.Codex.Clone()
	}
	panic(fmt.Sprintf("models: unhandled %s", kind))
}

// WithTool returns a copy of the snapshot with the config of kind replaced.
func (s Snapshot) WithTool(kind ToolKind, cfg ToolConfig) Snapshot {
	out := s.Clone()
	switch kind {
	case ToolClaude:
		out.Claude = cfg.Clone()
	case ToolGemini:
		out.Gemini = cfg.Clone()
	case ToolCodex:
		out.Codex = cfg.Clone()
	default:
		panic(fmt.Sprintf("models: unhandled %s", kind))
	}
	return out
}

// WithActiveTool returns a copy with active_tool set
func (s Snapshot) WithActiveTool(kind ToolKind) Snapshot {
	out := s.Clone()
	out.ActiveTool = kind
	return out
}

// WithLanguage returns a copy with the UI language set
func (s Snapshot) WithLanguage(lang string) Snapshot {
	out := s.Clone()
	out.Language = lang
	return out
}

// ProjectIndex returns the index of the project with the given id or -1.
func (s Snapshot) ProjectIndex(id string) int {
	for i, p := range s.Projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ResolvedProject resolves current_project, falling back to the first project.
func (s Snapshot) ResolvedProject() (Project, bool) {
	if i := s.ProjectIndex(s.CurrentProject); i >= 0 {
		return s.Projects[i], true
	}
	if len(s.Projects) > 0 {
		return s.Projects[0], true
	}
	return Project{}, false
}

// WithProjects replaces the project list and re-resolves current_project.
func (s Snapshot) WithProjects(projects []Project) Snapshot {
	out := s.Clone()
	out.Projects = make([]Project, len(projects))
	copy(out.Projects, projects)
	out.CurrentProject = resolveCurrentProject(out.Projects, s.CurrentProject)
	return out
}

// WithCurrentProject returns a copy pointing at project id. Unknown ids
// resolve to the first project.
func (s Snapshot) WithCurrentProject(id string) Snapshot {
	out := s.Clone()
	out.CurrentProject = resolveCurrentProject(out.Projects, id)
	return out
}

// UpdateProject returns a copy with the project id changed by fn
func (s Snapshot) UpdateProject(id string, fn func(*Project)) (Snapshot, bool) {
	i := s.ProjectIndex(id)
	if i < 0 {
		return s, false
	}
	out := s.Clone()
	fn(&out.Projects[i])
	return out, true
}

// DeleteProject removes the project id. Deleting the last remaining project
// or an unknown id is a no-op and reports false.
func (s Snapshot) DeleteProject(id string) (Snapshot, bool) {
	if len(s.Projects) <= 1 {
		return s, false
	}
	i := s.ProjectIndex(id)
	if i < 0 {
		return s, false
	}
	projects := make([]Project, 0, len(s.Projects)-1)
	projects = append(projects, s.Projects[:i]...)
	projects = append(projects, s.Projects[i+1:]...)
	return s.WithProjects(projects), true
}

func resolveCurrentProject(projects []Project, id string) string {
	for _, p := range projects {
		if p.ID == id {
			return id
		}
	}
	if len(projects) > 0 {
		return projects[0].ID
	}
	return ""
}

// NextProjectName returns "Project n" for the smallest positive n whose name
// is not taken.
func NextProjectName(projects []Project) string {
	used := make(map[string]bool, len(projects))
	for _, p := range projects {
		used[p.Name] = true
	}
	for n := 1; ; n++ {
		name := "Project " + strconv.Itoa(n)
		if !used[name] {
			return name
		}
	}
}

// PropagateKeys copies API keys changed between old and next onto models with
// the same name in the other tools. Custom models never take part.
func PropagateKeys(old, next Snapshot) Snapshot {
	out := next.Clone()
	for _, kind := range ToolKinds {
		before := old.Tool(kind)
		after := out.Tool(kind)
		for _, m := range after.Models {
			if m.IsCustom {
				continue
			}
			prev, ok := before.Model(m.ModelName)
			if ok && prev.APIKey == m.APIKey {
				continue
			}
			out = out.withKeyElsewhere(kind, m.ModelName, m.APIKey)
		}
	}
	return out
}

func (s Snapshot) withKeyElsewhere(src ToolKind, name, key string) Snapshot {
	out := s
	for _, kind := range ToolKinds {
		if kind == src {
			continue
		}
		cfg := out.Tool(kind)
		changed := false
		for i := range cfg.Models {
			if cfg.Models[i].IsCustom || !strings.EqualFold(cfg.Models[i].ModelName, name) {
				continue
			}
			if cfg.Models[i].APIKey != key {
				cfg.Models[i].APIKey = key
				changed = true
			}
		}
		if changed {
			out = out.WithTool(kind, cfg)
		}
	}
	return out
}
