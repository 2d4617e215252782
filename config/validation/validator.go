package validation

import (
	"errors"
	"fmt"
	"strings"

	"aicoder/config/models"
)

// Kind classifies a validation failure
type Kind int

const (
	EmptyName Kind = iota + 1
	DuplicateName
)

func (k Kind) String() string {
	switch k {
	case EmptyName:
		return "empty name"
	case DuplicateName:
		return "duplicate name"
	}
	return "unknown"
}

// Sentinel errors matched by errors.Is against a *ValidationError.
var (
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrDuplicateName = errors.New("duplicate names are not allowed")
)

// ValidationError reports why a draft list cannot be committed
type ValidationError struct {
	Kind    Kind
	Subject string // "project" or "model"
	Name    string // offending name, empty for EmptyName
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case EmptyName:
		return fmt.Sprintf("%s name cannot be empty", e.Subject)
	case DuplicateName:
		return fmt.Sprintf("duplicate %s names are not allowed: %q", e.Subject, e.Name)
	}
	return fmt.Sprintf("invalid %s list", e.Subject)
}

// Is lets errors.Is match the sentinel of the same kind
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrEmptyName:
		return e.Kind == EmptyName
	case ErrDuplicateName:
		return e.Kind == DuplicateName
	}
	return false
}

// Validator validates draft lists before they are committed
type Validator struct {
}

// NewValidator creates a new Validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateProjects checks the full draft list: every trimmed name must be
// non-empty and no two trimmed names may be equal.
func (v *Validator) ValidateProjects(projects []models.Project) error {
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	return checkNames("project", names)
}

// ValidateModels applies the same rules to the model names of one tool
func (v *Validator) ValidateModels(profiles []models.ModelProfile) error {
	names := make([]string, len(profiles))
	for i, m := range profiles {
		names[i] = m.ModelName
	}
	return checkNames("model", names)
}

// ValidateProjects is a shorthand for NewValidator().ValidateProjects.
func ValidateProjects(projects []models.Project) error {
	return NewValidator().ValidateProjects(projects)
}

// ValidateModels is a shorthand for NewValidator().ValidateModels.
func ValidateModels(profiles []models.ModelProfile) error {
	return NewValidator().ValidateModels(profiles)
}

func checkNames(subject string, names []string) error {
	trimmed := make([]string, len(names))
	for i, n := range names {
		trimmed[i] = strings.TrimSpace(n)
		if trimmed[i] == "" {
			return &ValidationError{Kind: EmptyName, Subject: subject}
		}
	}
	seen := make(map[string]bool, len(trimmed))
	for _, n := range trimmed {
		if seen[n] {
			return &ValidationError{Kind: DuplicateName, Subject: subject, Name: n}
		}
		seen[n] = true
	}
	return nil
}
