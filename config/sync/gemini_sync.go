package sync

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"

	"aicoder/config/models"
	"aicoder/internal/utils"
)

const (
	geminiKeyEnv     = "GEMINI_API_KEY"
	geminiBaseURLEnv = "GOOGLE_GEMINI_BASE_URL"
)

func (s *Syncer) syncGemini(m models.ModelProfile) (bool, error) {
	envPath := filepath.Join(s.home, ".gemini", ".env")
	original, err := readOr(envPath, "")
	if err != nil {
		return false, err
	}
	updated, err := UpdateGeminiEnv(original, m)
	if err != nil {
		return false, fmt.Errorf(".env: %w", err)
	}
	return s.writeIfChanged(envPath, original, updated)
}

// UpdateGeminiEnv sets the key and endpoint variables of a Gemini .env
// document; empty values remove them. Other variables are kept.
func UpdateGeminiEnv(content string, m models.ModelProfile) (string, error) {
	env, err := godotenv.Unmarshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse: %w", err)
	}

	changed := setOrDelete(env, geminiKeyEnv, m.APIKey)
	changed = setOrDelete(env, geminiBaseURLEnv, utils.TrimEndpoint(m.ModelURL)) || changed
	if !changed {
		return content, nil
	}
	if len(env) == 0 {
		return "", nil
	}

	out, err := godotenv.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode: %w", err)
	}
	return out + "\n", nil
}

func setOrDelete(env map[string]string, key, value string) bool {
	current, ok := env[key]
	if value == "" {
		if ok {
			delete(env, key)
			return true
		}
		return false
	}
	if ok && current == value {
		return false
	}
	env[key] = value
	return true
}
