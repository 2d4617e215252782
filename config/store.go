// Package config persists the configuration snapshot and broadcasts every
// committed snapshot to in-process subscribers and, through a file watch,
// to other processes sharing the same file.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"aicoder/config/models"
	"aicoder/config/storage"
	"aicoder/internal/broadcast"
	"aicoder/internal/logging"
	"aicoder/internal/providers"
)

// DefaultLanguage is used when the file does not name one
const DefaultLanguage = "en"

// watchDebounce collapses the burst of events a single atomic save produces.
const watchDebounce = 100 * time.Millisecond

// Store reads and writes the config file. Saves are last-writer-wins: there
// is no compare-and-swap against the file on disk.
type Store struct {
	path    string
	homeDir string
	log     logging.Logger
	bus     *broadcast.Bus[models.Snapshot]

	saveMu sync.Mutex

	lastMu sync.Mutex
	last   []byte // content last saved or published by this process; Load leaves it alone
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for load warnings and watch errors
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithHomeDir sets the directory new default projects point at
func WithHomeDir(dir string) Option {
	return func(s *Store) { s.homeDir = dir }
}

// NewStore creates a store for the file at path
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		log:  logging.New(false, false),
		bus:  broadcast.New[models.Snapshot](),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			s.homeDir = home
		}
	}
	return s
}

// Open resolves the config path (see ResolvePath), migrates the legacy
// ~/.aicoder_config.json once, and returns a store for it.
func Open(explicit string, opts ...Option) (*Store, error) {
	path, err := ResolvePath(explicit)
	if err != nil {
		return nil, err
	}
	s := NewStore(path, opts...)

	if explicit == "" && os.Getenv(EnvConfigPath) == "" {
		legacy, err := LegacyPath()
		if err == nil && storage.ShouldMigrateConfig(legacy, path) {
			if err := storage.MigrateConfig(legacy, path); err != nil {
				s.log.Warnf("Failed to migrate config from %s: %v", legacy, err)
			} else {
				s.log.Infof("Migrated config from %s to %s", legacy, path)
			}
		}
	}
	return s, nil
}

// Path returns the config file location
func (s *Store) Path() string {
	return s.path
}

// SessionDir is where process markers for this config live
func (s *Store) SessionDir() string {
	return filepath.Join(filepath.Dir(s.path), "sessions")
}

// Subscribe registers fn for every committed snapshot, including the ones
// this process saves.
func (s *Store) Subscribe(fn func(models.Snapshot)) broadcast.Unsubscribe {
	return s.bus.Subscribe(fn)
}

// DefaultSnapshot returns the built-in configuration: every tool with its
// preset models, one project rooted at homeDir.
func DefaultSnapshot(homeDir string) models.Snapshot {
	snap := models.Snapshot{
		ActiveTool: models.ToolClaude,
		Language:   DefaultLanguage,
	}
	for _, kind := range models.ToolKinds {
		list := providers.DefaultModels(kind)
		cfg := models.ToolConfig{Models: list}
		if len(list) > 0 {
			cfg.CurrentModel = list[0].ModelName
		}
		snap = snap.WithTool(kind, cfg)
	}
	snap.Projects = []models.Project{defaultProject(homeDir)}
	snap.CurrentProject = snap.Projects[0].ID
	return snap
}

func defaultProject(homeDir string) models.Project {
	p := models.Project{Name: "Project 1", Path: homeDir}
	p.ID = derivedProjectID(0, p)
	return p
}

// derivedProjectID names a project that has no usable id. It depends only
// on the entry's position and content, so repeated loads of the same file
// agree until the id is saved.
func derivedProjectID(i int, p models.Project) string {
	key := fmt.Sprintf("%d\x00%s\x00%s", i, p.Name, p.Path)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Load reads the config file. It never fails: a missing, empty or
// malformed file yields DefaultSnapshot and the reason is logged.
func (s *Store) Load() models.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Infof("No config at %s, using defaults", s.path)
		} else {
			s.log.Warnf("%v", &PersistenceError{Op: "load", Path: s.path, Err: err})
		}
		return DefaultSnapshot(s.homeDir)
	}

	snap, err := s.decode(data)
	if err != nil {
		s.log.Warnf("%v; using defaults", &PersistenceError{Op: "load", Path: s.path, Err: err})
		return DefaultSnapshot(s.homeDir)
	}
	return snap
}

// diskSnapshot mirrors models.Snapshot with a free-form active_tool so an
// unknown tool degrades to claude instead of failing the whole load.
type diskSnapshot struct {
	ActiveTool     string            `json:"active_tool"`
	Claude         models.ToolConfig `json:"claude"`
	Gemini         models.ToolConfig `json:"gemini"`
	Codex          models.ToolConfig `json:"codex"`
	Projects       []models.Project  `json:"projects"`
	CurrentProject string            `json:"current_project"`
	Language       string            `json:"language"`
}

func (s *Store) decode(data []byte) (models.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.Snapshot{}, errors.New("file is empty")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if isLegacy(raw) {
		snap, err := decodeLegacy(raw)
		if err != nil {
			return models.Snapshot{}, err
		}
		s.log.Infof("Converted legacy config layout from %s", s.path)
		return s.normalize(snap), nil
	}

	var disk diskSnapshot
	if err := json.Unmarshal(data, &disk); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	kind, err := models.ParseToolKind(disk.ActiveTool)
	if err != nil && disk.ActiveTool != "" {
		s.log.Warnf("Unknown active tool %q, falling back to %s", disk.ActiveTool, models.ToolClaude)
	}
	return s.normalize(models.Snapshot{
		ActiveTool:     kind,
		Claude:         disk.Claude,
		Gemini:         disk.Gemini,
		Codex:          disk.Codex,
		Projects:       disk.Projects,
		CurrentProject: disk.CurrentProject,
		Language:       disk.Language,
	}), nil
}

// normalize fills what a hand-edited or older file may lack. It is
// idempotent: normalize(normalize(x)) == normalize(x).
func (s *Store) normalize(snap models.Snapshot) models.Snapshot {
	out := snap.Clone()
	if !out.ActiveTool.Valid() {
		out.ActiveTool = models.ToolClaude
	}
	if out.Language == "" {
		out.Language = DefaultLanguage
	}

	for _, kind := range models.ToolKinds {
		cfg := out.Tool(kind)
		if len(cfg.Models) == 0 {
			cfg.Models = providers.DefaultModels(kind)
		}
		if cfg.CurrentModel != "" && cfg.IndexOf(cfg.CurrentModel) < 0 && len(cfg.Models) > 0 {
			cfg.CurrentModel = cfg.Models[0].ModelName
		}
		out = out.WithTool(kind, cfg)
	}

	if len(out.Projects) == 0 {
		out.Projects = []models.Project{defaultProject(s.homeDir)}
	}
	seen := make(map[string]bool, len(out.Projects))
	for i := range out.Projects {
		p := &out.Projects[i]
		if strings.TrimSpace(p.ID) == "" || seen[p.ID] {
			p.ID = derivedProjectID(i, *p)
			for n := 1; seen[p.ID]; n++ {
				p.ID = derivedProjectID(i+n*len(out.Projects), *p)
			}
		}
		seen[p.ID] = true
	}
	return out.WithCurrentProject(out.CurrentProject)
}

// Save writes snap and publishes it. The previous file is backed up and
// replaced atomically; on error it is left untouched and nothing is
// published. An exclusive lock on a sidecar file covers the write only.
func (s *Store) Save(snap models.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}
	data = append(data, '\n')

	s.saveMu.Lock()
	err = s.writeLocked(data)
	s.saveMu.Unlock()
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.remember(data)
	s.bus.Publish(snap.Clone())
	return nil
}

func (s *Store) writeLocked(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	lock, err := os.OpenFile(s.path+".lock", os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lock.Close()

	if err := lockFileExclusive(lock); err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer func() {
		if err := unlockFile(lock); err != nil {
			s.log.Warnf("Failed to unlock %s: %v", lock.Name(), err)
		}
	}()

	return storage.AtomicFileUpdate(s.path, data, true)
}

func (s *Store) remember(data []byte) {
	s.lastMu.Lock()
	s.last = append(s.last[:0], data...)
	s.lastMu.Unlock()
}

// seen reports whether data equals the content last written or published
// here, and records it otherwise.
func (s *Store) seen(data []byte) bool {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if bytes.Equal(s.last, data) {
		return true
	}
	s.last = append(s.last[:0], data...)
	return false
}

// Reload re-reads the file and publishes it when its content differs from
// what this process last wrote or saw. It reports whether anything was
// published.
func (s *Store) Reload() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, &PersistenceError{Op: "reload", Path: s.path, Err: err}
	}
	snap, err := s.decode(data)
	if err != nil {
		return false, &PersistenceError{Op: "reload", Path: s.path, Err: err}
	}
	if s.seen(data) {
		return false, nil
	}
	s.bus.Publish(snap)
	return true, nil
}

// Watch publishes changes other processes make to the config file until
// ctx is cancelled. Bursts of events are debounced; malformed intermediate
// content is logged and skipped.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.log.Debugf("Watching config directory: %s", dir)

	var (
		debounceMu sync.Mutex
		debouncer  *time.Timer
	)
	defer func() {
		debounceMu.Lock()
		if debouncer != nil {
			debouncer.Stop()
		}
		debounceMu.Unlock()
	}()

	target := filepath.Clean(s.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounceMu.Lock()
			if debouncer != nil {
				debouncer.Stop()
			}
			debouncer = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				if _, err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
					s.log.Warnf("Failed to reload config: %v", err)
				}
			})
			debounceMu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warnf("Watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}
