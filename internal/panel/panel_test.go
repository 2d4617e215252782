package panel

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicoder/config/models"
	"aicoder/config/validation"
	"aicoder/internal/broadcast"
)

// memStore is an in-memory Store that publishes synchronously like the
// file-backed one.
type memStore struct {
	mu      sync.Mutex
	snap    models.Snapshot
	saves   int
	failErr error
	bus     *broadcast.Bus[models.Snapshot]
}

func newMemStore(snap models.Snapshot) *memStore {
	return &memStore{snap: snap, bus: broadcast.New[models.Snapshot]()}
}

func (m *memStore) Load() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

func (m *memStore) Save(s models.Snapshot) error {
	m.mu.Lock()
	if m.failErr != nil {
		m.mu.Unlock()
		return m.failErr
	}
	m.snap = s.Clone()
	m.saves++
	m.mu.Unlock()
	m.bus.Publish(s.Clone())
	return nil
}

func (m *memStore) Subscribe(fn func(models.Snapshot)) broadcast.Unsubscribe {
	return m.bus.Subscribe(fn)
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// fakeTimers collects scheduled status clears so tests can fire them.
type fakeTimers struct {
	mu    sync.Mutex
	funcs []func()
	ttls  []time.Duration
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs = append(f.funcs, fn)
	f.ttls = append(f.ttls, d)
}

func (f *fakeTimers) fireAll() {
	f.mu.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
}

func testSnapshot() models.Snapshot {
	return models.Snapshot{
		ActiveTool: models.ToolClaude,
		Claude: models.ToolConfig{
			CurrentModel: "GLM",
			Models: []models.ModelProfile{
				{ModelName: "Original"},
				{ModelName: "GLM", APIKey: "sk-glm", ModelURL: "https://open.bigmodel.cn/api/anthropic"},
				{ModelName: "Kimi", ModelURL: "https://api.moonshot.cn/anthropic"},
			},
		},
		Gemini: models.ToolConfig{
			CurrentModel: "Original",
			Models: []models.ModelProfile{
				{ModelName: "Original"},
				{ModelName: "Custom", APIKey: "sk-gemini", IsCustom: true},
			},
		},
		Codex: models.ToolConfig{
			CurrentModel: "Original",
			Models: []models.ModelProfile{
				{ModelName: "Original"},
				{ModelName: "GLM"},
			},
		},
		Projects: []models.Project{
			{ID: "p1", Name: "Project 1", Path: "/tmp"},
			{ID: "p2", Name: "Project 2", Path: "/tmp"},
		},
		CurrentProject: "p1",
		Language:       "en",
	}
}

func newTestPanel(t *testing.T, snap models.Snapshot) (*Panel, *memStore, *fakeTimers) {
	t.Helper()
	store := newMemStore(snap)
	timers := &fakeTimers{}
	n := 0
	p := New(store,
		WithAfterFunc(timers.AfterFunc),
		WithHomeDir("/home/tester"),
		WithIDGenerator(func() string {
			n++
			return "new-" + strconv.Itoa(n)
		}),
	)
	unsubscribe := p.Attach(store)
	t.Cleanup(unsubscribe)
	return p, store, timers
}

func TestNew_FocusesCurrentModel(t *testing.T) {
	p, _, _ := newTestPanel(t, testSnapshot())
	assert.Equal(t, 1, p.ActiveTab())
	assert.False(t, p.SettingsOpen(), "credentialed tool should not open settings")
}

func TestNew_OpensSettingsWithoutKeys(t *testing.T) {
	snap := testSnapshot().WithActiveTool(models.ToolCodex)
	p, _, _ := newTestPanel(t, snap)

	kind, _, open := p.ModelDraft()
	require.True(t, open, "settings should open when no model has a key")
	assert.Equal(t, models.ToolCodex, kind)
}

// For every tool and every bare model, switching is refused and leaves the
// edit surface open on that model.
func TestSwitchActiveModel_BareModelRejected(t *testing.T) {
	base := testSnapshot()
	for _, kind := range models.ToolKinds {
		for i, m := range base.Tool(kind).Models {
			if m.Credentialed() {
				continue
			}
			t.Run(kind.String()+"/"+m.ModelName, func(t *testing.T) {
				p, store, timers := newTestPanel(t, base)
				p.CloseModelSettings()

				err := p.SwitchActiveModel(kind, m.ModelName)
				require.ErrorIs(t, err, ErrBareModel)

				assert.Equal(t, base.Tool(kind).CurrentModel, p.Snapshot().Tool(kind).CurrentModel)
				assert.Equal(t, 0, store.saveCount(), "a refused switch must not save")

				draftKind, _, open := p.ModelDraft()
				assert.True(t, open)
				assert.Equal(t, kind, draftKind)
				assert.Equal(t, i, p.ActiveTab())
				assert.Equal(t, Status{Text: MsgConfigureKey, Kind: StatusError}, p.Status())
				assert.Equal(t, 2*time.Second, timers.ttls[len(timers.ttls)-1])

				timers.fireAll()
				assert.Equal(t, Status{}, p.Status())
			})
		}
	}
}

func TestSwitchActiveModel_Credentialed(t *testing.T) {
	snap := testSnapshot()
	cfg, err := snap.Claude.SetAPIKey(2, "sk-kimi")
	require.NoError(t, err)
	p, store, timers := newTestPanel(t, snap.WithTool(models.ToolClaude, cfg))

	require.NoError(t, p.SwitchActiveModel(models.ToolClaude, "Kimi"))

	assert.Equal(t, "Kimi", p.Snapshot().Claude.CurrentModel)
	assert.Equal(t, "Kimi", store.Load().Claude.CurrentModel, "switch writes through")
	assert.Equal(t, 2, p.ActiveTab())
	assert.Equal(t, MsgModelSwitched, p.Status().Text)
	assert.Equal(t, 1500*time.Millisecond, timers.ttls[len(timers.ttls)-1])
}

func TestSwitchActiveModel_UnknownModel(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())
	err := p.SwitchActiveModel(models.ToolClaude, "DeepSeek")
	assert.ErrorIs(t, err, ErrUnknownModel)
	assert.Equal(t, 0, store.saveCount())
}

func TestStatus_NewerMessageSurvivesOlderTimer(t *testing.T) {
	p, _, timers := newTestPanel(t, testSnapshot())

	_ = p.SwitchActiveModel(models.ToolClaude, "Kimi")
	timers.mu.Lock()
	first := timers.funcs[0]
	timers.funcs = nil
	timers.mu.Unlock()

	require.NoError(t, p.SwitchActiveModel(models.ToolClaude, "GLM"))
	first()
	assert.Equal(t, MsgModelSwitched, p.Status().Text, "stale timer cleared a newer message")

	timers.fireAll()
	assert.Equal(t, Status{}, p.Status())
}

func TestRenameActiveModel_CascadesOnCommit(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(1))
	require.NoError(t, p.RenameModel("GLM-4.6"))

	// Not committed until saved.
	assert.Equal(t, "GLM", p.Snapshot().Claude.CurrentModel)

	require.NoError(t, p.SaveModelSettings())
	assert.False(t, p.SettingsOpen())

	committed := store.Load().Claude
	assert.Equal(t, "GLM-4.6", committed.CurrentModel)
	assert.Equal(t, 1, committed.IndexOf("GLM-4.6"))
	assert.Equal(t, -1, committed.IndexOf("GLM"))
}

func TestModelSettings_EditsStayInDraft(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(2))
	require.NoError(t, p.SetAPIKey("  sk-kimi  "))
	require.NoError(t, p.SetEndpoint("https://kimi.example.com"))

	_, draft, _ := p.ModelDraft()
	assert.Equal(t, "sk-kimi", draft.Models[2].APIKey)
	assert.Equal(t, "", p.Snapshot().Claude.Models[2].APIKey)
	assert.Equal(t, 0, store.saveCount())

	p.CloseModelSettings()
	assert.Equal(t, "", store.Load().Claude.Models[2].APIKey, "closing discards the draft")
	assert.ErrorIs(t, p.SetAPIKey("x"), ErrSettingsClosed)
	assert.ErrorIs(t, p.SaveModelSettings(), ErrSettingsClosed)
}

func TestSaveModelSettings_Validation(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())
	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(2))
	require.NoError(t, p.RenameModel(" GLM "))

	err := p.SaveModelSettings()
	assert.ErrorIs(t, err, validation.ErrDuplicateName)
	assert.True(t, p.SettingsOpen(), "a rejected save keeps the draft open")
	assert.Equal(t, 0, store.saveCount())

	require.NoError(t, p.RenameModel("Kimi"))
	require.NoError(t, p.SetEndpoint("not a url"))
	assert.Error(t, p.SaveModelSettings())
	assert.Equal(t, 0, store.saveCount())
}

func TestSaveModelSettings_PropagatesKeys(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())
	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(1))
	require.NoError(t, p.SetAPIKey("sk-glm-new"))
	require.NoError(t, p.SaveModelSettings())

	saved := store.Load()
	assert.Equal(t, "sk-glm-new", saved.Claude.Models[1].APIKey)
	assert.Equal(t, "sk-glm-new", saved.Codex.Models[1].APIKey, "same-named model of another tool")
	assert.Equal(t, "sk-gemini", saved.Gemini.Models[1].APIKey, "custom model untouched")
}

func TestSaveModelSettings_KeepsSwitchMadeWhileOpen(t *testing.T) {
	snap := testSnapshot()
	cfg, _ := snap.Claude.SetAPIKey(2, "sk-kimi")
	p, store, _ := newTestPanel(t, snap.WithTool(models.ToolClaude, cfg))

	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(1))
	require.NoError(t, p.SetEndpoint("https://glm.example.com"))

	// Another process switches claude to Kimi.
	external := store.Load()
	external = external.WithTool(models.ToolClaude, external.Claude.WithCurrentModel("Kimi"))
	require.NoError(t, store.Save(external))

	require.NoError(t, p.SaveModelSettings())
	saved := store.Load().Claude
	assert.Equal(t, "Kimi", saved.CurrentModel)
	assert.Equal(t, "https://glm.example.com", saved.Models[1].ModelURL)
}

func TestSwitchActiveModel_BareModelKeepsOtherToolDraft(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(2))
	require.NoError(t, p.SetAPIKey("sk-unsaved-kimi"))

	err := p.SwitchActiveModel(models.ToolCodex, "GLM")
	require.ErrorIs(t, err, ErrSettingsOpen)
	assert.Equal(t, 0, store.saveCount())

	kind, draft, open := p.ModelDraft()
	require.True(t, open)
	assert.Equal(t, models.ToolClaude, kind)
	assert.Equal(t, "sk-unsaved-kimi", draft.Models[2].APIKey, "unsaved edits survive")
	assert.Equal(t, 2, p.ActiveTab())

	require.ErrorIs(t, p.SwitchActiveModel(models.ToolClaude, "Original"), ErrBareModel)
	_, draft, _ = p.ModelDraft()
	assert.Equal(t, "sk-unsaved-kimi", draft.Models[2].APIKey, "same-tool refusal reuses the open buffer")
	assert.Equal(t, 0, p.ActiveTab())
}

func TestSwitchActiveTool(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	require.NoError(t, p.SwitchActiveTool(models.ToolGemini))
	assert.Equal(t, models.ToolGemini, store.Load().ActiveTool)
	assert.Equal(t, 0, p.ActiveTab())

	p.OpenModelSettings()
	assert.ErrorIs(t, p.SwitchActiveTool(models.ToolCodex), ErrSettingsOpen)
	assert.Equal(t, models.ToolGemini, p.Snapshot().ActiveTool)

	assert.NoError(t, p.SwitchActiveTool(models.ToolGemini), "same tool is allowed while open")
	assert.Error(t, p.SwitchActiveTool(models.ToolKind(9)))
}

func TestProjectDraft_AddNames(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"Project 1", "Project 2"}, "Project 3"},
		{[]string{"Project 2"}, "Project 1"},
	}
	for _, tt := range tests {
		snap := testSnapshot()
		var list []models.Project
		for i, n := range tt.names {
			list = append(list, models.Project{ID: "id" + strconv.Itoa(i), Name: n})
		}
		p, _, _ := newTestPanel(t, snap.WithProjects(list))

		draft := p.OpenProjectManager()
		added := draft.Add()
		assert.Equal(t, tt.want, added.Name)
		assert.Equal(t, "/home/tester", added.Path)
		assert.False(t, added.YoloMode)
		assert.NotEmpty(t, added.ID)
		assert.NoError(t, draft.Err())
	}
}

func TestCommitProjects_DuplicateRejected(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())
	before := p.Snapshot().Projects

	draft := p.OpenProjectManager()
	require.NoError(t, draft.Rename("p1", "x"))
	require.NoError(t, draft.Rename("p2", "x"))
	assert.ErrorIs(t, draft.Err(), validation.ErrDuplicateName)

	err := p.CommitProjects()
	assert.ErrorIs(t, err, validation.ErrDuplicateName)
	assert.Equal(t, before, p.Snapshot().Projects)
	assert.Equal(t, 0, store.saveCount())
	_, open := p.ProjectDraft()
	assert.True(t, open)
}

func TestCommitProjects_ResolvesCurrentProject(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	draft := p.OpenProjectManager()
	assert.Same(t, draft, p.OpenProjectManager(), "opening twice returns the same draft")
	assert.True(t, draft.Delete("p1"))
	added := draft.Add()
	require.NoError(t, draft.Rename(added.ID, "Scratch"))

	require.NoError(t, p.CommitProjects())
	saved := store.Load()
	require.Len(t, saved.Projects, 2)
	assert.Equal(t, "p2", saved.CurrentProject, "deleted current project falls back to the first")
	assert.Equal(t, "Scratch", saved.Projects[1].Name)

	_, open := p.ProjectDraft()
	assert.False(t, open)
	assert.ErrorIs(t, p.CommitProjects(), ErrManagerClosed)
}

func TestProjectDraft_DeleteLastIsNoop(t *testing.T) {
	snap := testSnapshot().WithProjects([]models.Project{{ID: "only", Name: "Project 1"}})
	p, _, _ := newTestPanel(t, snap)

	draft := p.OpenProjectManager()
	assert.False(t, draft.Delete("only"))
	assert.Len(t, draft.Projects(), 1)

	assert.ErrorIs(t, p.DeleteProject("only"), ErrLastProject)
	assert.Len(t, p.Snapshot().Projects, 1)
}

// An external change never touches open drafts; it only moves the
// committed view.
func TestApplyExternal_DraftIsolation(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	draft := p.OpenProjectManager()
	draft.Add()
	require.NoError(t, draft.Rename("p1", "Renamed locally"))
	draftBefore := draft.Projects()

	p.OpenModelSettings()
	require.NoError(t, p.FocusModelTab(2))
	require.NoError(t, p.SetAPIKey("sk-local"))
	_, modelBefore, _ := p.ModelDraft()

	external := store.Load()
	external = external.WithTool(models.ToolClaude, external.Claude.WithCurrentModel("Original"))
	external = external.WithProjects([]models.Project{{ID: "ext", Name: "From agent"}})
	require.NoError(t, store.Save(external))

	assert.Equal(t, draftBefore, draft.Projects(), "project draft changed")
	_, modelAfter, _ := p.ModelDraft()
	assert.Equal(t, modelBefore, modelAfter, "model draft changed")

	committed := p.Snapshot()
	assert.Equal(t, "Original", committed.Claude.CurrentModel)
	assert.Equal(t, "ext", committed.Projects[0].ID)
}

// Committing a draft replaces only its own part of the latest committed
// snapshot. A change to the same part made elsewhere is overwritten.
func TestCommitProjects_AfterExternalChange(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())
	draft := p.OpenProjectManager()
	require.NoError(t, draft.Rename("p2", "Mine"))

	external := store.Load().WithActiveTool(models.ToolGemini)
	external, _ = external.UpdateProject("p1", func(pr *models.Project) { pr.YoloMode = true })
	require.NoError(t, store.Save(external))

	require.NoError(t, p.CommitProjects())
	saved := store.Load()
	assert.Equal(t, models.ToolGemini, saved.ActiveTool, "external change outside the draft survives")
	assert.Equal(t, "Mine", saved.Projects[1].Name)
	assert.False(t, saved.Projects[0].YoloMode, "external change to the drafted list is lost")
}

func TestDirectProjectOps(t *testing.T) {
	p, store, _ := newTestPanel(t, testSnapshot())

	require.NoError(t, p.SwitchProject("p2"))
	assert.Equal(t, "p2", store.Load().CurrentProject)
	assert.ErrorIs(t, p.SwitchProject("nope"), ErrUnknownProject)

	require.NoError(t, p.SetYoloMode(true))
	assert.True(t, store.Load().Projects[1].YoloMode)

	dir := t.TempDir()
	require.NoError(t, p.SetProjectPath(dir))
	assert.Equal(t, dir, store.Load().Projects[1].Path)
	assert.Error(t, p.SetProjectPath("relative"))

	require.NoError(t, p.DeleteProject("p2"))
	saved := store.Load()
	assert.Len(t, saved.Projects, 1)
	assert.Equal(t, "p1", saved.CurrentProject)
	assert.ErrorIs(t, p.DeleteProject("p2"), ErrUnknownProject)
}

func TestSaveFailure_KeepsCommittedSnapshot(t *testing.T) {
	p, store, timers := newTestPanel(t, testSnapshot())
	store.failErr = errors.New("disk full")

	err := p.SwitchActiveTool(models.ToolCodex)
	require.Error(t, err)
	assert.Equal(t, models.ToolClaude, p.Snapshot().ActiveTool)
	assert.Equal(t, StatusError, p.Status().Kind)
	assert.Contains(t, p.Status().Text, "disk full")

	timers.fireAll()
	assert.Equal(t, Status{}, p.Status())
}

func TestAttach_DisposerDetaches(t *testing.T) {
	store := newMemStore(testSnapshot())
	notified := 0
	p := New(store, WithNotify(func() { notified++ }))

	unsubscribe := p.Attach(store)
	require.NoError(t, store.Save(store.Load().WithLanguage("zh")))
	assert.Equal(t, "zh", p.Snapshot().Language)
	assert.Equal(t, 1, notified)

	unsubscribe()
	require.NoError(t, store.Save(store.Load().WithLanguage("fr")))
	assert.Equal(t, "zh", p.Snapshot().Language)
	assert.Equal(t, 0, store.bus.Len())
}
