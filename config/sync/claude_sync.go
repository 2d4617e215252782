package sync

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

// Env keys owned by the sync in ~/.claude/settings.json
const (
	envAuthToken = "ANTHROPIC_AUTH_TOKEN"
	envBaseURL   = "ANTHROPIC_BASE_URL"
	envColors    = "CLAUDE_CODE_USE_COLORS"
)

var claudeManagedKeys = []string{envAuthToken, envBaseURL, envColors}

// approvedKeyLen is how much of a key Claude Code records as approved
const approvedKeyLen = 20

func (s *Syncer) syncClaude(m models.ModelProfile) (bool, error) {
	settingsPath := filepath.Join(s.home, ".claude", "settings.json")
	original, err := readOr(settingsPath, "{}")
	if err != nil {
		return false, err
	}
	updated, err := UpdateEnvField(original, m)
	if err != nil {
		return false, fmt.Errorf("settings.json: %w", err)
	}
	changed, err := s.writeIfChanged(settingsPath, original, updated)
	if err != nil {
		return false, err
	}

	if m.APIKey == "" {
		return changed, nil
	}

	statePath := filepath.Join(s.home, ".claude.json")
	state, err := readOr(statePath, "{}")
	if err != nil {
		return changed, err
	}
	approved, err := ApproveKey(state, m.APIKey)
	if err != nil {
		return changed, fmt.Errorf(".claude.json: %w", err)
	}
	stateChanged, err := s.writeIfChanged(statePath, state, approved)
	return changed || stateChanged, err
}

// UpdateEnvField sets the managed env entries of a Claude settings document
// from m. An empty key or endpoint removes the entry. Everything outside the
// managed entries is preserved byte for byte where possible.
func UpdateEnvField(originalContent string, m models.ModelProfile) (string, error) {
	if !gjson.Valid(originalContent) {
		return "", fmt.Errorf("invalid JSON content")
	}

	values := map[string]string{
		envAuthToken: m.APIKey,
		envBaseURL:   utils.TrimEndpoint(m.ModelURL),
	}
	if m.APIKey != "" {
		values[envColors] = "true"
	}

	updated := originalContent
	var err error
	for _, key := range claudeManagedKeys {
		path := "env." + key
		if v := values[key]; v != "" {
			if gjson.Get(updated, path).String() == v {
				continue
			}
			updated, err = sjson.Set(updated, path, v)
		} else if gjson.Get(updated, path).Exists() {
			updated, err = sjson.Delete(updated, path)
		}
		if err != nil {
			return "", fmt.Errorf("failed to update env field %s: %w", key, err)
		}
	}

	if err := validateJSONUpdate(originalContent, updated); err != nil {
		return "", fmt.Errorf("update validation failed: %w", err)
	}
	return updated, nil
}

// ApproveKey adds the tail of key to customApiKeyResponses.approved so
// Claude Code does not prompt for it.
func ApproveKey(content, key string) (string, error) {
	if !gjson.Valid(content) {
		return "", fmt.Errorf("invalid JSON content")
	}
	tail := key
	if len(tail) > approvedKeyLen {
		tail = tail[len(tail)-approvedKeyLen:]
	}
	for _, v := range gjson.Get(content, "customApiKeyResponses.approved").Array() {
		if v.String() == tail {
			return content, nil
		}
	}
	return sjson.Set(content, "customApiKeyResponses.approved.-1", tail)
}

// validateJSONUpdate checks that only managed env entries differ
func validateJSONUpdate(originalContent string, updatedContent string) error {
	if !json.Valid([]byte(updatedContent)) {
		return fmt.Errorf("updated JSON is invalid")
	}

	original, updated, err := parseToMaps(originalContent, updatedContent)
	if err != nil {
		return err
	}

	differences := deepCompare(original, updated)
	if len(differences) > 0 {
		return fmt.Errorf("unexpected changes to non-env fields: %s", strings.Join(differences, ", "))
	}

	originalEnv, err := extractEnv(original)
	if err != nil {
		return err
	}
	updatedEnv, err := extractEnv(updated)
	if err != nil {
		return err
	}
	for key, originalVal := range originalEnv {
		if isManaged(key) {
			continue
		}
		updatedVal, exists := updatedEnv[key]
		if !exists {
			return fmt.Errorf("env field '%s' was deleted", key)
		}
		if fmt.Sprintf("%v", originalVal) != fmt.Sprintf("%v", updatedVal) {
			return fmt.Errorf("env field '%s' was modified", key)
		}
	}
	return nil
}

func isManaged(key string) bool {
	for _, k := range claudeManagedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// parseToMaps parses two JSON documents for comparison
func parseToMaps(originalStr, updatedStr string) (map[string]any, map[string]any, error) {
	var original map[string]any
	if err := json.Unmarshal([]byte(originalStr), &original); err != nil {
		return nil, nil, fmt.Errorf("failed to parse original JSON: %w", err)
	}

	var updated map[string]any
	if err := json.Unmarshal([]byte(updatedStr), &updated); err != nil {
		return nil, nil, fmt.Errorf("failed to parse updated JSON: %w", err)
	}

	return original, updated, nil
}

// deepCompare lists the fields outside env that differ between two maps
func deepCompare(original, updated map[string]any) []string {
	var differences []string

	for key, originalVal := range original {
		if key == "env" {
			continue
		}
		updatedVal, exists := updated[key]
		if !exists {
			differences = append(differences, key+" (missing)")
			continue
		}
		originalMap, originalIsMap := originalVal.(map[string]any)
		updatedMap, updatedIsMap := updatedVal.(map[string]any)
		if originalIsMap && updatedIsMap {
			for _, diff := range deepCompare(originalMap, updatedMap) {
				differences = append(differences, key+"."+diff)
			}
		} else if fmt.Sprintf("%v", originalVal) != fmt.Sprintf("%v", updatedVal) {
			differences = append(differences, key)
		}
	}

	for key := range updated {
		if key == "env" {
			continue
		}
		if _, exists := original[key]; !exists {
			differences = append(differences, key+" (new)")
		}
	}

	return differences
}

// extractEnv returns the env object of a parsed settings document
func extractEnv(data map[string]any) (map[string]any, error) {
	env, exists := data["env"]
	if !exists {
		return map[string]any{}, nil
	}
	envMap, ok := env.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("env field is not a map")
	}
	return envMap, nil
}
