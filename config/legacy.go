package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"aicoder/config/models"
)

// legacyFile is the flat single-tool layout written by early releases:
// one model list, one current model and one project directory.
type legacyFile struct {
	Models       []models.ModelProfile `json:"models"`
	CurrentModel string                `json:"current_model"`
	ProjectDir   string                `json:"project_dir"`
	Language     string                `json:"language"`
}

// isLegacy reports whether raw carries the flat layout and none of the
// per-tool sections.
func isLegacy(raw map[string]any) bool {
	for _, key := range []string{"claude", "gemini", "codex", "projects"} {
		if _, ok := raw[key]; ok {
			return false
		}
	}
	_, hasModels := raw["models"]
	_, hasDir := raw["project_dir"]
	return hasModels || hasDir
}

// decodeLegacy moves a flat file into the Claude tool and a single project.
// Remaining fields are filled by normalize.
func decodeLegacy(raw map[string]any) (models.Snapshot, error) {
	var legacy legacyFile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &legacy,
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return models.Snapshot{}, fmt.Errorf("legacy config: %w", err)
	}

	snap := models.Snapshot{
		ActiveTool: models.ToolClaude,
		Claude: models.ToolConfig{
			Models:       legacy.Models,
			CurrentModel: legacy.CurrentModel,
		},
		Language: legacy.Language,
	}
	if legacy.ProjectDir != "" {
		snap.Projects = []models.Project{{Name: "Project 1", Path: legacy.ProjectDir}}
	}
	return snap, nil
}
