package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "AICODER_CONFIG"

const (
	appDirName     = "aicoder"
	configFileName = "config.json"
	legacyFileName = ".aicoder_config.json"
)

// ResolvePath picks the config file: an explicit path, then $AICODER_CONFIG,
// then $XDG_CONFIG_HOME/aicoder/config.json (~/.config when XDG is unset).
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return filepath.Abs(env)
	}

	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, appDirName, configFileName), nil
}

// LegacyPath returns the pre-XDG config location, ~/.aicoder_config.json.
func LegacyPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, legacyFileName), nil
}
