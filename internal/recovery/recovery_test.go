package recovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aicoder/config/models"
)

func seedHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	for _, dir := range []string{".claude", ".gemini", ".codex"} {
		require.NoError(t, os.MkdirAll(filepath.Join(home, dir), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(home, dir, "settings.json"), []byte("{}"), 0600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude.json"), []byte("{}"), 0600))
	return home
}

// isolateEnv makes every variable of kind restorable after the test.
func isolateEnv(t *testing.T, kind models.ToolKind) {
	t.Helper()
	for _, key := range EnvVars(kind) {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestRecover_RemovesOnlyTheToolsFiles(t *testing.T) {
	home := seedHome(t)
	isolateEnv(t, models.ToolClaude)
	t.Setenv("ANTHROPIC_AUTH_TOKEN", "sk-old")
	r := New(home)

	var lines []string
	require.NoError(t, Run(context.Background(), r, models.ToolClaude, func(l string) { lines = append(lines, l) }))

	assert.NoDirExists(t, filepath.Join(home, ".claude"))
	assert.NoFileExists(t, filepath.Join(home, ".claude.json"))
	assert.DirExists(t, filepath.Join(home, ".gemini"))
	assert.DirExists(t, filepath.Join(home, ".codex"))

	_, set := os.LookupEnv("ANTHROPIC_AUTH_TOKEN")
	assert.False(t, set)

	require.NotEmpty(t, lines)
	assert.Equal(t, DoneLine, lines[len(lines)-1])
	assert.Contains(t, lines, "Clearing ANTHROPIC_AUTH_TOKEN")
}

func TestRecover_MissingTargetsAreSkipped(t *testing.T) {
	isolateEnv(t, models.ToolCodex)
	r := New(t.TempDir())
	var lines []string
	require.NoError(t, Run(context.Background(), r, models.ToolCodex, func(l string) { lines = append(lines, l) }))
	assert.Contains(t, lines[1], "not found")
}

// Repeated attempts, failed or not, never stack listeners.
func TestRun_DetachesOnEveryExit(t *testing.T) {
	home := seedHome(t)
	isolateEnv(t, models.ToolGemini)
	r := New(home)
	boom := errors.New("permission denied")
	r.removeAll = func(string) error { return boom }

	for i := 0; i < 3; i++ {
		calls := 0
		err := Run(context.Background(), r, models.ToolGemini, func(string) { calls++ })
		assert.ErrorIs(t, err, boom)
		assert.Positive(t, calls)
		assert.Equal(t, 0, r.Listeners(), "listener leaked after failed attempt %d", i)
	}

	r.removeAll = os.RemoveAll
	require.NoError(t, Run(context.Background(), r, models.ToolGemini, func(string) {}))
	assert.Equal(t, 0, r.Listeners())
	assert.NoDirExists(t, filepath.Join(home, ".gemini"))
}

func TestRecover_Cancelled(t *testing.T) {
	home := seedHome(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, New(home), models.ToolCodex, func(string) {})
	assert.ErrorIs(t, err, context.Canceled)
	assert.DirExists(t, filepath.Join(home, ".codex"))
}

func TestTargetsExhaustive(t *testing.T) {
	r := New("/home/x")
	for _, kind := range models.ToolKinds {
		assert.NotEmpty(t, r.Targets(kind), kind.String())
		assert.NotEmpty(t, EnvVars(kind), kind.String())
	}
	assert.Error(t, r.Recover(context.Background(), models.ToolKind(5)))
}
