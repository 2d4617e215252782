// Package sync writes the current model of each tool into that tool's own
// settings files so the next launch of the tool picks it up.
package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"aicoder/config/models"
	"aicoder/config/storage"
	"aicoder/internal/broadcast"
	"aicoder/internal/logging"
	"aicoder/internal/providers"
)

// SyncOptions provides options for synchronization
type SyncOptions struct {
	DryRun       bool // validate only, never write
	CreateBackup bool // back up a settings file before replacing it
}

// Subscriber is the part of the config store the syncer listens to
type Subscriber interface {
	Subscribe(fn func(models.Snapshot)) broadcast.Unsubscribe
}

// Syncer applies snapshots to the tool settings under a home directory
type Syncer struct {
	home string
	opts SyncOptions
	log  logging.Logger
}

// NewSyncer creates a syncer rooted at home
func NewSyncer(home string, log logging.Logger, opts SyncOptions) *Syncer {
	return &Syncer{home: home, opts: opts, log: log}
}

// Attach applies every snapshot published by sub. Failures are logged; the
// config itself is already committed at that point.
func (s *Syncer) Attach(sub Subscriber) broadcast.Unsubscribe {
	return sub.Subscribe(func(snap models.Snapshot) {
		if err := s.Apply(snap); err != nil {
			s.log.Warnf("Failed to sync tool settings: %v", err)
		}
	})
}

// Apply writes the current model of every tool. It returns the joined
// errors of the tools that failed.
func (s *Syncer) Apply(snap models.Snapshot) error {
	var errs []error
	for _, kind := range models.ToolKinds {
		if _, err := s.SyncTool(kind, snap.Tool(kind)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// SyncTool writes the current model of one tool and reports whether any
// file changed. Models without a key are left alone, except Original,
// which removes what an earlier sync injected.
func (s *Syncer) SyncTool(kind models.ToolKind, cfg models.ToolConfig) (bool, error) {
	m, ok := cfg.Model(cfg.CurrentModel)
	if !ok {
		return false, nil
	}
	restore := m.ModelName == providers.OriginalModel
	if !restore && !m.Credentialed() {
		s.log.Debugf("Skipping %s sync, %q has no API key", kind, m.ModelName)
		return false, nil
	}
	if restore {
		m = models.ModelProfile{ModelName: m.ModelName}
	}

	var (
		changed bool
		err     error
	)
	switch kind {
	case models.ToolClaude:
		changed, err = s.syncClaude(m)
	case models.ToolGemini:
		changed, err = s.syncGemini(m)
	case models.ToolCodex:
		changed, err = s.syncCodex(m)
	default:
		panic(fmt.Sprintf("sync: unhandled %s", kind))
	}
	if err == nil && changed {
		s.log.Infof("Synced %s settings to %s", kind.DisplayName(), m.ModelName)
	}
	return changed, err
}

// readOr returns the file content, or fallback when it does not exist
func readOr(path, fallback string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fallback, nil
	}
	return string(data), nil
}

// writeIfChanged replaces path with content unless it already holds it.
func (s *Syncer) writeIfChanged(path, original, content string) (bool, error) {
	if content == original {
		return false, nil
	}
	if s.opts.DryRun {
		return true, nil
	}
	if err := storage.AtomicFileUpdate(path, []byte(content), s.opts.CreateBackup && storage.FileExists(path)); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
