package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aicoder/internal/utils"
)

// InputValidator validates single user inputs
type InputValidator struct {
}

// NewInputValidator creates a new InputValidator
func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateEndpoint checks a model endpoint. Empty endpoints are allowed.
func (iv *InputValidator) ValidateEndpoint(url string) error {
	if url != "" && !utils.ValidateURL(url) {
		return fmt.Errorf("invalid URL format: %s", url)
	}
	return nil
}

// ValidateProjectPath checks that path is an absolute, existing directory
func (iv *InputValidator) ValidateProjectPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("project directory cannot be empty")
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("project directory must be absolute: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("invalid project directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}

// ValidateModelName checks a single model name
func (iv *InputValidator) ValidateModelName(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if strings.ContainsAny(model, "<>\"'&\\") {
		return fmt.Errorf("model name contains invalid characters")
	}
	return nil
}
