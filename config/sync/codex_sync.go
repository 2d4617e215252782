package sync

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

// codexProviderID is the model_providers entry owned by the sync
const codexProviderID = "aicoder"

const codexKeyEnv = "OPENAI_API_KEY"

func (s *Syncer) syncCodex(m models.ModelProfile) (bool, error) {
	dir := filepath.Join(s.home, ".codex")

	authPath := filepath.Join(dir, "auth.json")
	auth, err := readOr(authPath, "{}")
	if err != nil {
		return false, err
	}
	updatedAuth, err := UpdateCodexAuth(auth, m.APIKey)
	if err != nil {
		return false, fmt.Errorf("auth.json: %w", err)
	}
	authChanged, err := s.writeIfChanged(authPath, auth, updatedAuth)
	if err != nil {
		return false, err
	}

	configPath := filepath.Join(dir, "config.toml")
	conf, err := readOr(configPath, "")
	if err != nil {
		return authChanged, err
	}
	updatedConf, err := UpdateCodexConfig(conf, m)
	if err != nil {
		return authChanged, fmt.Errorf("config.toml: %w", err)
	}
	confChanged, err := s.writeIfChanged(configPath, conf, updatedConf)
	return authChanged || confChanged, err
}

// UpdateCodexAuth sets or, for an empty key, removes OPENAI_API_KEY
func UpdateCodexAuth(content, key string) (string, error) {
	if !gjson.Valid(content) {
		return "", fmt.Errorf("invalid JSON content")
	}
	current := gjson.Get(content, codexKeyEnv)
	if key == "" {
		if !current.Exists() {
			return content, nil
		}
		return sjson.Delete(content, codexKeyEnv)
	}
	if current.String() == key {
		return content, nil
	}
	return sjson.Set(content, codexKeyEnv, key)
}

// UpdateCodexConfig points model_provider at the aicoder provider entry, or
// removes both when m has no endpoint. Unrelated tables are kept.
func UpdateCodexConfig(content string, m models.ModelProfile) (string, error) {
	doc := map[string]any{}
	if _, err := toml.Decode(content, &doc); err != nil {
		return "", fmt.Errorf("failed to parse: %w", err)
	}

	providersTable, _ := doc["model_providers"].(map[string]any)
	baseURL := utils.TrimEndpoint(m.ModelURL)

	if baseURL == "" {
		if doc["model_provider"] == codexProviderID {
			delete(doc, "model_provider")
		}
		if providersTable != nil {
			delete(providersTable, codexProviderID)
			if len(providersTable) == 0 {
				delete(doc, "model_providers")
			}
		}
	} else {
		if providersTable == nil {
			providersTable = map[string]any{}
			doc["model_providers"] = providersTable
		}
		doc["model_provider"] = codexProviderID
		providersTable[codexProviderID] = map[string]any{
			"name":     m.ModelName,
			"base_url": baseURL,
			"env_key":  codexKeyEnv,
			"wire_api": "chat",
		}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}

	// Keep the original bytes when the document is semantically unchanged.
	if content != "" {
		var before bytes.Buffer
		prev := map[string]any{}
		if _, err := toml.Decode(content, &prev); err == nil {
			if err := toml.NewEncoder(&before).Encode(prev); err == nil && before.String() == buf.String() {
				return content, nil
			}
		}
	}
	return buf.String(), nil
}
