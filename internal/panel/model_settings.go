package panel

import (
	"fmt"
	"strings"

	"aicoder/config/models"
	"aicoder/config/validation"
)

// modelDraft is the model settings edit buffer of one tool. Models are
// never added or removed while it is open, so index i always refers to the
// model that was at index i when the draft was opened.
type modelDraft struct {
	tool      models.ToolKind
	baseNames []string
	cfg       models.ToolConfig
}

func newModelDraft(kind models.ToolKind, cfg models.ToolConfig) *modelDraft {
	names := make([]string, len(cfg.Models))
	for i, m := range cfg.Models {
		names[i] = m.ModelName
	}
	return &modelDraft{tool: kind, baseNames: names, cfg: cfg.Clone()}
}

// currentFor maps the committed current model onto the draft's names, so a
// rename in the draft and a switch committed meanwhile both survive.
func (d *modelDraft) currentFor(committed models.ToolConfig) string {
	for i, name := range d.baseNames {
		if name == committed.CurrentModel && i < len(d.cfg.Models) {
			return d.cfg.Models[i].ModelName
		}
	}
	return d.cfg.CurrentModel
}

// ModelDraft returns the open model settings buffer and its tool
func (p *Panel) ModelDraft() (models.ToolKind, models.ToolConfig, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modelDraft == nil {
		return 0, models.ToolConfig{}, false
	}
	return p.modelDraft.tool, p.modelDraft.cfg.Clone(), true
}

// SettingsOpen reports whether the model settings buffer is open
func (p *Panel) SettingsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modelDraft != nil
}

// SwitchActiveModel makes name the current model of kind. A model without
// an API key is refused: current_model stays, model settings open on that
// model's tab and ErrBareModel is returned. While settings are open for
// another tool a bare model is refused with ErrSettingsOpen instead.
func (p *Panel) SwitchActiveModel(kind models.ToolKind, name string) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	cfg := p.committed.Tool(kind)
	idx := cfg.IndexOf(name)
	if idx < 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	if !cfg.Models[idx].Credentialed() {
		if p.modelDraft != nil && p.modelDraft.tool != kind {
			p.mu.Unlock()
			return ErrSettingsOpen
		}
		if p.modelDraft == nil {
			p.modelDraft = newModelDraft(kind, cfg)
		}
		p.activeTab = idx
		p.mu.Unlock()
		p.setStatus(MsgConfigureKey, StatusError, configureKeyTTL)
		return fmt.Errorf("%w: %q", ErrBareModel, name)
	}
	next := p.committed.WithTool(kind, cfg.WithCurrentModel(name))
	p.mu.Unlock()

	if err := p.commit(next); err != nil {
		return err
	}
	p.mu.Lock()
	if kind == p.committed.ActiveTool {
		p.activeTab = idx
	}
	p.mu.Unlock()
	p.setStatus(MsgModelSwitched, StatusInfo, modelSwitchedTTL)
	return nil
}

// OpenModelSettings opens the buffer for the active tool. An open buffer
// is kept as is.
func (p *Panel) OpenModelSettings() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modelDraft != nil {
		return
	}
	kind := p.committed.ActiveTool
	p.modelDraft = newModelDraft(kind, p.committed.Tool(kind))
	if p.activeTab >= len(p.modelDraft.cfg.Models) {
		p.activeTab = 0
	}
}

// CloseModelSettings discards the buffer
func (p *Panel) CloseModelSettings() {
	p.mu.Lock()
	p.modelDraft = nil
	p.mu.Unlock()
}

// FocusModelTab focuses model tab i of the buffer
func (p *Panel) FocusModelTab(i int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modelDraft == nil {
		return ErrSettingsClosed
	}
	if i < 0 || i >= len(p.modelDraft.cfg.Models) {
		return fmt.Errorf("model tab %d out of range", i)
	}
	p.activeTab = i
	return nil
}

// editDraft applies fn to the focused model of the buffer
func (p *Panel) editDraft(fn func(cfg models.ToolConfig, idx int) (models.ToolConfig, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modelDraft == nil {
		return ErrSettingsClosed
	}
	cfg, err := fn(p.modelDraft.cfg, p.activeTab)
	if err != nil {
		return err
	}
	p.modelDraft.cfg = cfg
	return nil
}

// RenameModel renames the focused model in the buffer. Renaming the
// current model carries current_model along.
func (p *Panel) RenameModel(newName string) error {
	return p.editDraft(func(cfg models.ToolConfig, idx int) (models.ToolConfig, error) {
		return cfg.RenameModel(idx, newName)
	})
}

// SetAPIKey sets the key of the focused model in the buffer
func (p *Panel) SetAPIKey(key string) error {
	return p.editDraft(func(cfg models.ToolConfig, idx int) (models.ToolConfig, error) {
		return cfg.SetAPIKey(idx, strings.TrimSpace(key))
	})
}

// SetEndpoint sets the endpoint of the focused model in the buffer
func (p *Panel) SetEndpoint(url string) error {
	return p.editDraft(func(cfg models.ToolConfig, idx int) (models.ToolConfig, error) {
		return cfg.SetEndpoint(idx, strings.TrimSpace(url))
	})
}

// SaveModelSettings validates the buffer, commits its models onto the
// latest committed snapshot, copies changed keys to same-named models of
// the other tools and closes the buffer. On error the buffer stays open.
func (p *Panel) SaveModelSettings() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	draft := p.modelDraft
	if draft == nil {
		p.mu.Unlock()
		return ErrSettingsClosed
	}
	if err := validation.ValidateModels(draft.cfg.Models); err != nil {
		p.mu.Unlock()
		return err
	}
	for _, m := range draft.cfg.Models {
		if err := p.inputs.ValidateEndpoint(m.ModelURL); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("%s: %w", m.ModelName, err)
		}
	}

	latest := p.committed
	cfg := draft.cfg.Clone()
	cfg.CurrentModel = draft.currentFor(latest.Tool(draft.tool))
	next := models.PropagateKeys(latest, latest.WithTool(draft.tool, cfg))
	p.mu.Unlock()

	if err := p.commit(next); err != nil {
		return err
	}
	p.mu.Lock()
	p.modelDraft = nil
	p.mu.Unlock()
	return nil
}
