package panel

import (
	"fmt"
	"sync"

	"aicoder/config/models"
	"aicoder/config/validation"
)

// ProjectDraft is the project manager's working copy of the project list.
// It does not follow external changes; only CommitProjects publishes it.
type ProjectDraft struct {
	mu       sync.Mutex
	projects []models.Project
	homeDir  string
	newID    func() string
	err      error
}

// Projects returns a copy of the draft list
func (d *ProjectDraft) Projects() []models.Project {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.list()
}

func (d *ProjectDraft) list() []models.Project {
	out := make([]models.Project, len(d.projects))
	copy(out, d.projects)
	return out
}

// Err returns the validation result of the latest edit
func (d *ProjectDraft) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Validate checks the whole draft list
func (d *ProjectDraft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.validate()
}

func (d *ProjectDraft) validate() error {
	d.err = validation.ValidateProjects(d.projects)
	return d.err
}

// Add appends a project named "Project n" for the smallest free n, rooted
// at the home directory.
func (d *ProjectDraft) Add() models.Project {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := models.Project{
		ID:   d.newID(),
		Name: models.NextProjectName(d.projects),
		Path: d.homeDir,
	}
	d.projects = append(d.list(), p)
	d.validate()
	return p
}

// Rename sets the name of project id. Names are checked by Validate, so a
// blank or duplicate name is accepted here and reported through Err.
func (d *ProjectDraft) Rename(id, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownProject, id)
	}
	list := d.list()
	list[i].Name = name
	d.projects = list
	d.validate()
	return nil
}

// Delete removes project id. The last remaining project is kept.
func (d *ProjectDraft) Delete(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.projects) <= 1 {
		return false
	}
	i := d.index(id)
	if i < 0 {
		return false
	}
	list := make([]models.Project, 0, len(d.projects)-1)
	list = append(list, d.projects[:i]...)
	list = append(list, d.projects[i+1:]...)
	d.projects = list
	d.validate()
	return true
}

func (d *ProjectDraft) index(id string) int {
	for i, p := range d.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// OpenProjectManager opens the project draft, or returns the one already
// open.
func (p *Panel) OpenProjectManager() *ProjectDraft {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.projectDraft == nil {
		p.projectDraft = &ProjectDraft{
			projects: p.committed.Clone().Projects,
			homeDir:  p.homeDir,
			newID:    p.newID,
		}
	}
	return p.projectDraft
}

// ProjectDraft returns the open project draft, if any
func (p *Panel) ProjectDraft() (*ProjectDraft, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.projectDraft, p.projectDraft != nil
}

// CloseProjectManager discards the project draft
func (p *Panel) CloseProjectManager() {
	p.mu.Lock()
	p.projectDraft = nil
	p.mu.Unlock()
}

// CommitProjects validates the open draft and, when it passes, replaces the
// project list of the latest committed snapshot, saves and closes the
// manager. A failed validation leaves everything unchanged and the draft
// open.
func (p *Panel) CommitProjects() error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	draft := p.projectDraft
	if draft == nil {
		p.mu.Unlock()
		return ErrManagerClosed
	}
	if err := draft.Validate(); err != nil {
		p.mu.Unlock()
		return err
	}
	next := p.committed.WithProjects(draft.Projects())
	p.mu.Unlock()

	if err := p.commit(next); err != nil {
		return err
	}
	p.mu.Lock()
	p.projectDraft = nil
	p.mu.Unlock()
	return nil
}

// updateCommitted applies fn to the committed snapshot and saves the
// result. fn reports errors that must block the save.
func (p *Panel) updateCommitted(fn func(models.Snapshot) (models.Snapshot, error)) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	next, err := fn(p.committed)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.commit(next)
}

// SwitchProject makes id the current project
func (p *Panel) SwitchProject(id string) error {
	return p.updateCommitted(func(s models.Snapshot) (models.Snapshot, error) {
		if s.ProjectIndex(id) < 0 {
			return s, fmt.Errorf("%w: %s", ErrUnknownProject, id)
		}
		return s.WithCurrentProject(id), nil
	})
}

// SetProjectPath points the current project at path, which must be an
// existing absolute directory.
func (p *Panel) SetProjectPath(path string) error {
	if err := p.inputs.ValidateProjectPath(path); err != nil {
		return err
	}
	return p.updateCommitted(func(s models.Snapshot) (models.Snapshot, error) {
		cur, ok := s.ResolvedProject()
		if !ok {
			return s, ErrUnknownProject
		}
		next, _ := s.UpdateProject(cur.ID, func(pr *models.Project) { pr.Path = path })
		return next, nil
	})
}

// SetYoloMode sets the yolo flag of the current project
func (p *Panel) SetYoloMode(on bool) error {
	return p.updateCommitted(func(s models.Snapshot) (models.Snapshot, error) {
		cur, ok := s.ResolvedProject()
		if !ok {
			return s, ErrUnknownProject
		}
		next, _ := s.UpdateProject(cur.ID, func(pr *models.Project) { pr.YoloMode = on })
		return next, nil
	})
}

// DeleteProject removes id from the committed list. The last remaining
// project cannot be deleted.
func (p *Panel) DeleteProject(id string) error {
	return p.updateCommitted(func(s models.Snapshot) (models.Snapshot, error) {
		if s.ProjectIndex(id) < 0 {
			return s, fmt.Errorf("%w: %s", ErrUnknownProject, id)
		}
		next, ok := s.DeleteProject(id)
		if !ok {
			return s, ErrLastProject
		}
		return next, nil
	})
}
