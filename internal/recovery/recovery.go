// Package recovery resets a tool to a clean state by removing its own
// configuration, streaming progress lines to whoever is listening.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"aicoder/config/models"
	"aicoder/internal/broadcast"
)

// DoneLine is logged after a successful recovery
const DoneLine = "DONE!"

// Recoverer removes tool configuration under a home directory
type Recoverer struct {
	home      string
	logs      *broadcast.Bus[string]
	removeAll func(path string) error
	unsetenv  func(key string) error
}

// New creates a recoverer for home
func New(home string) *Recoverer {
	return &Recoverer{
		home:      home,
		logs:      broadcast.New[string](),
		removeAll: os.RemoveAll,
		unsetenv:  os.Unsetenv,
	}
}

// Subscribe registers fn for log lines
func (r *Recoverer) Subscribe(fn func(string)) broadcast.Unsubscribe {
	return r.logs.Subscribe(fn)
}

// Listeners returns the number of attached log listeners
func (r *Recoverer) Listeners() int {
	return r.logs.Len()
}

// Targets returns the files and directories a recovery of kind removes
func (r *Recoverer) Targets(kind models.ToolKind) []string {
	switch kind {
	case models.ToolClaude:
		return []string{filepath.Join(r.home, ".claude"), filepath.Join(r.home, ".claude.json")}
	case models.ToolGemini:
		return []string{filepath.Join(r.home, ".gemini"), filepath.Join(r.home, ".geminirc")}
	case models.ToolCodex:
		return []string{filepath.Join(r.home, ".codex")}
	}
	panic(fmt.Sprintf("recovery: unhandled %s", kind))
}

// EnvVars returns the environment variables a recovery of kind clears
func EnvVars(kind models.ToolKind) []string {
	switch kind {
	case models.ToolClaude:
		return []string{"ANTHROPIC_API_KEY", "ANTHROPIC_AUTH_TOKEN", "ANTHROPIC_BASE_URL", "ANTHROPIC_MODEL"}
	case models.ToolGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "GOOGLE_GEMINI_BASE_URL"}
	case models.ToolCodex:
		return []string{"OPENAI_API_KEY", "OPENAI_BASE_URL"}
	}
	panic(fmt.Sprintf("recovery: unhandled %s", kind))
}

// Recover removes the configuration of kind and clears its environment
// variables in this process. It stops at the first failure.
func (r *Recoverer) Recover(ctx context.Context, kind models.ToolKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown tool %s", kind)
	}
	r.logs.Publish(fmt.Sprintf("Resetting %s...", kind.DisplayName()))

	for _, target := range r.Targets(kind) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := os.Lstat(target); errors.Is(err, os.ErrNotExist) {
			r.logs.Publish(fmt.Sprintf("Skipping %s (not found)", target))
			continue
		}
		r.logs.Publish(fmt.Sprintf("Removing %s", target))
		if err := r.removeAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}

	for _, key := range EnvVars(kind) {
		if _, ok := os.LookupEnv(key); !ok {
			continue
		}
		r.logs.Publish(fmt.Sprintf("Clearing %s", key))
		if err := r.unsetenv(key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}

	r.logs.Publish(DoneLine)
	return nil
}

// Run attaches sink to r's log stream for one recovery of kind. The sink is
// detached when Run returns, whether the recovery succeeded or not.
func Run(ctx context.Context, r *Recoverer, kind models.ToolKind, sink func(string)) error {
	unsubscribe := r.Subscribe(sink)
	defer unsubscribe()
	return r.Recover(ctx, kind)
}
