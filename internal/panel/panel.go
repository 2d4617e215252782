// Package panel holds the state behind the control panel: the committed
// snapshot, the model settings and project manager drafts, the focused model
// tab and the transient status line.
//
// Operations are serialized; external change notifications only ever touch
// the committed snapshot, never an open draft.
package panel

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"aicoder/config/models"
	"aicoder/config/validation"
	"aicoder/internal/broadcast"
	"aicoder/internal/logging"
)

var (
	ErrUnknownModel   = errors.New("unknown model")
	ErrBareModel      = errors.New("model has no API key")
	ErrSettingsOpen   = errors.New("model settings are open for another tool")
	ErrSettingsClosed = errors.New("model settings are not open")
	ErrUnknownProject = errors.New("unknown project")
	ErrLastProject    = errors.New("cannot delete the last project")
	ErrManagerClosed  = errors.New("project manager is not open")
)

// Status line texts and how long they stay
const (
	MsgConfigureKey  = "Please configure API Key first!"
	MsgModelSwitched = "Model switched & synced!"

	configureKeyTTL  = 2 * time.Second
	modelSwitchedTTL = 1500 * time.Millisecond
	saveFailedTTL    = 3 * time.Second
)

// Store is the persistence the panel commits to
type Store interface {
	Load() models.Snapshot
	Save(models.Snapshot) error
	Subscribe(fn func(models.Snapshot)) broadcast.Unsubscribe
}

// StatusKind classifies the status line
type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusInfo
	StatusError
)

// Status is the transient message shown under the panel
type Status struct {
	Text string
	Kind StatusKind
}

// AfterFunc schedules f after d. It matches time.AfterFunc minus the timer.
type AfterFunc func(d time.Duration, f func())

// Option configures a Panel
type Option func(*Panel)

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(p *Panel) { p.log = l }
}

// WithHomeDir sets the path new projects start in
func WithHomeDir(dir string) Option {
	return func(p *Panel) { p.homeDir = dir }
}

// WithAfterFunc replaces the timer used to clear status messages
func WithAfterFunc(fn AfterFunc) Option {
	return func(p *Panel) { p.afterFunc = fn }
}

// WithNotify registers a callback run after state changes that did not
// come from a direct call, such as a status clear or an external update.
func WithNotify(fn func()) Option {
	return func(p *Panel) { p.notify = fn }
}

// WithIDGenerator replaces the project id generator
func WithIDGenerator(fn func() string) Option {
	return func(p *Panel) { p.newID = fn }
}

// Panel is the edit surface state. All methods are safe for concurrent use.
type Panel struct {
	store     Store
	inputs    *validation.InputValidator
	log       logging.Logger
	homeDir   string
	afterFunc AfterFunc
	notify    func()
	newID     func() string

	// opMu serializes operations across their save; mu guards the fields
	// below and is never held while saving, since a save notifies the
	// panel's own subscription synchronously.
	opMu sync.Mutex
	mu   sync.Mutex

	committed    models.Snapshot
	activeTab    int
	modelDraft   *modelDraft
	projectDraft *ProjectDraft
	status       Status
	statusGen    uint64
}

// New loads the committed snapshot from store. The focused tab starts on
// the active tool's current model; when no model of the active tool has a
// key, model settings open right away.
func New(store Store, opts ...Option) *Panel {
	p := &Panel{
		store:  store,
		inputs: validation.NewInputValidator(),
		log:    logging.Nop(),
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		notify: func() {},
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.homeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			p.homeDir = home
		}
	}

	p.committed = store.Load()
	cfg := p.committed.Tool(p.committed.ActiveTool)
	if i := cfg.IndexOf(cfg.CurrentModel); i >= 0 {
		p.activeTab = i
	}
	if !cfg.AnyCredentialed() {
		p.modelDraft = newModelDraft(p.committed.ActiveTool, cfg)
	}
	return p
}

// Snapshot returns the committed snapshot
func (p *Panel) Snapshot() models.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed.Clone()
}

// ActiveTab returns the focused model tab index
func (p *Panel) ActiveTab() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTab
}

// Status returns the current status line
func (p *Panel) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Attach subscribes the panel to committed snapshots published by sub.
// The returned disposer must run on teardown.
func (p *Panel) Attach(sub interface {
	Subscribe(fn func(models.Snapshot)) broadcast.Unsubscribe
}) broadcast.Unsubscribe {
	return sub.Subscribe(p.ApplyExternal)
}

// ApplyExternal replaces the committed snapshot with snap. Open drafts are
// left exactly as they are.
func (p *Panel) ApplyExternal(snap models.Snapshot) {
	p.mu.Lock()
	p.committed = snap.Clone()
	if p.modelDraft == nil {
		n := len(p.committed.Tool(p.committed.ActiveTool).Models)
		if p.activeTab >= n {
			p.activeTab = 0
		}
	}
	p.mu.Unlock()
	p.notify()
}

// SwitchActiveTool makes kind the active tool, focuses its first model and
// commits immediately.
func (p *Panel) SwitchActiveTool(kind models.ToolKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown tool %s", kind)
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	if p.modelDraft != nil && p.modelDraft.tool != kind {
		p.mu.Unlock()
		return ErrSettingsOpen
	}
	next := p.committed.WithActiveTool(kind)
	p.mu.Unlock()

	if err := p.commit(next); err != nil {
		return err
	}
	p.mu.Lock()
	p.activeTab = 0
	p.mu.Unlock()
	return nil
}

// commit saves next and makes it the committed snapshot. On failure the
// committed snapshot is left as it was and the error is shown once.
// Callers hold opMu.
func (p *Panel) commit(next models.Snapshot) error {
	if err := p.store.Save(next); err != nil {
		p.log.Errorf("Failed to save config: %v", err)
		p.setStatus("Save failed: "+err.Error(), StatusError, saveFailedTTL)
		return err
	}
	p.mu.Lock()
	p.committed = next.Clone()
	p.mu.Unlock()
	return nil
}

// setStatus shows text and clears it after ttl unless a newer message
// replaced it in the meantime.
func (p *Panel) setStatus(text string, kind StatusKind, ttl time.Duration) {
	p.mu.Lock()
	p.statusGen++
	gen := p.statusGen
	p.status = Status{Text: text, Kind: kind}
	p.mu.Unlock()

	p.afterFunc(ttl, func() {
		p.mu.Lock()
		cleared := p.statusGen == gen
		if cleared {
			p.status = Status{}
		}
		p.mu.Unlock()
		if cleared {
			p.notify()
		}
	})
}
