package config

import (
	"errors"
	"fmt"

	"aicoder/config/models"
)

var (
	ErrModelNotFound = errors.New("model not found")
	ErrNoAPIKey      = errors.New("no API key")
)

// SwitchModel is the writer used outside the panel: it reloads the file,
// makes name the current model of kind, makes kind the active tool and
// saves. A model without a key is refused and nothing is written.
func (s *Store) SwitchModel(kind models.ToolKind, name string) (models.Snapshot, error) {
	if !kind.Valid() {
		return models.Snapshot{}, fmt.Errorf("unknown tool %s", kind)
	}
	snap := s.Load()
	cfg := snap.Tool(kind)
	m, ok := cfg.Model(name)
	if !ok {
		return snap, fmt.Errorf("%w: %s has no model %q", ErrModelNotFound, kind.DisplayName(), name)
	}
	if !m.Credentialed() {
		return snap, fmt.Errorf("model %q has %w", name, ErrNoAPIKey)
	}

	next := snap.WithTool(kind, cfg.WithCurrentModel(name)).WithActiveTool(kind)
	if err := s.Save(next); err != nil {
		return snap, err
	}
	return next, nil
}

// SetActiveTool reloads the file, makes kind the active tool and saves
func (s *Store) SetActiveTool(kind models.ToolKind) (models.Snapshot, error) {
	if !kind.Valid() {
		return models.Snapshot{}, fmt.Errorf("unknown tool %s", kind)
	}
	next := s.Load().WithActiveTool(kind)
	if err := s.Save(next); err != nil {
		return models.Snapshot{}, err
	}
	return next, nil
}

// Update reloads the file, applies fn and saves the result. Errors from fn
// abort the save.
func (s *Store) Update(fn func(models.Snapshot) (models.Snapshot, error)) (models.Snapshot, error) {
	next, err := fn(s.Load())
	if err != nil {
		return models.Snapshot{}, err
	}
	if err := s.Save(next); err != nil {
		return models.Snapshot{}, err
	}
	return next, nil
}
