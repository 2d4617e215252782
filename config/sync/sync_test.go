package sync

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"

	"aicoder/config/models"
	"aicoder/internal/broadcast"
	"aicoder/internal/logging"
)

func glm() models.ModelProfile {
	return models.ModelProfile{
		ModelName: "GLM",
		APIKey:    "sk-glm-0123456789abcdefghijklmnop",
		ModelURL:  "https://open.bigmodel.cn/api/anthropic/",
	}
}

func TestUpdateEnvField(t *testing.T) {
	original := `{"theme":"dark","permissions":{"allow":["Bash"]},"env":{"HTTP_PROXY":"http://proxy","ANTHROPIC_AUTH_TOKEN":"old"}}`

	updated, err := UpdateEnvField(original, glm())
	if err != nil {
		t.Fatalf("UpdateEnvField failed: %v", err)
	}

	checks := map[string]string{
		"env.ANTHROPIC_AUTH_TOKEN":   glm().APIKey,
		"env.ANTHROPIC_BASE_URL":     "https://open.bigmodel.cn/api/anthropic",
		"env.CLAUDE_CODE_USE_COLORS": "true",
		"env.HTTP_PROXY":             "http://proxy",
		"theme":                      "dark",
		"permissions.allow.0":        "Bash",
	}
	for path, want := range checks {
		if got := gjson.Get(updated, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestUpdateEnvField_OriginalRemovesInjectedValues(t *testing.T) {
	original := `{"env":{"HTTP_PROXY":"http://proxy","ANTHROPIC_AUTH_TOKEN":"k","ANTHROPIC_BASE_URL":"https://x","CLAUDE_CODE_USE_COLORS":"true"}}`

	updated, err := UpdateEnvField(original, models.ModelProfile{ModelName: "Original"})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range claudeManagedKeys {
		if gjson.Get(updated, "env."+key).Exists() {
			t.Errorf("%s should be removed", key)
		}
	}
	if gjson.Get(updated, "env.HTTP_PROXY").String() != "http://proxy" {
		t.Error("unmanaged env entry lost")
	}
}

func TestUpdateEnvField_UnchangedReturnsSameBytes(t *testing.T) {
	first, err := UpdateEnvField(`{"env":{}}`, glm())
	if err != nil {
		t.Fatal(err)
	}
	second, err := UpdateEnvField(first, glm())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("second update changed content:\n%s\n%s", first, second)
	}
}

func TestUpdateEnvField_InvalidJSON(t *testing.T) {
	if _, err := UpdateEnvField("{not json", glm()); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestApproveKey(t *testing.T) {
	key := glm().APIKey
	out, err := ApproveKey(`{"numStartups":3}`, key)
	if err != nil {
		t.Fatal(err)
	}
	approved := gjson.Get(out, "customApiKeyResponses.approved").Array()
	if len(approved) != 1 || approved[0].String() != key[len(key)-approvedKeyLen:] {
		t.Errorf("unexpected approved list: %s", out)
	}
	if gjson.Get(out, "numStartups").Int() != 3 {
		t.Error("unrelated field lost")
	}

	again, err := ApproveKey(out, key)
	if err != nil {
		t.Fatal(err)
	}
	if again != out {
		t.Error("approving the same key twice should not change content")
	}

	short, err := ApproveKey(`{}`, "abc")
	if err != nil || gjson.Get(short, "customApiKeyResponses.approved.0").String() != "abc" {
		t.Errorf("short keys are approved whole, got %s (%v)", short, err)
	}
}

func TestUpdateCodexConfig(t *testing.T) {
	original := "approval_policy = \"on-request\"\n\n[model_providers.other]\nname = \"Other\"\n"

	m := models.ModelProfile{ModelName: "Kimi", APIKey: "k", ModelURL: "https://api.moonshot.cn/v1/"}
	updated, err := UpdateCodexConfig(original, m)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		ApprovalPolicy string `toml:"approval_policy"`
		ModelProvider  string `toml:"model_provider"`
		ModelProviders map[string]struct {
			Name    string `toml:"name"`
			BaseURL string `toml:"base_url"`
			EnvKey  string `toml:"env_key"`
		} `toml:"model_providers"`
	}
	if _, err := toml.Decode(updated, &doc); err != nil {
		t.Fatalf("result is not valid TOML: %v\n%s", err, updated)
	}
	if doc.ApprovalPolicy != "on-request" || doc.ModelProviders["other"].Name != "Other" {
		t.Errorf("unrelated settings lost: %+v", doc)
	}
	p := doc.ModelProviders[codexProviderID]
	if doc.ModelProvider != codexProviderID || p.BaseURL != "https://api.moonshot.cn/v1" || p.EnvKey != codexKeyEnv {
		t.Errorf("provider not configured: %+v", doc)
	}

	again, err := UpdateCodexConfig(updated, m)
	if err != nil || again != updated {
		t.Errorf("unchanged model should keep content (err %v)", err)
	}

	restored, err := UpdateCodexConfig(updated, models.ModelProfile{ModelName: "Original"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(restored, codexProviderID) {
		t.Errorf("restore should drop the aicoder provider:\n%s", restored)
	}
	if !strings.Contains(restored, "Other") {
		t.Error("restore dropped an unrelated provider")
	}
}

func TestUpdateCodexAuth(t *testing.T) {
	out, err := UpdateCodexAuth(`{"tokens":null}`, "sk-1")
	if err != nil || gjson.Get(out, codexKeyEnv).String() != "sk-1" {
		t.Fatalf("key not set: %s (%v)", out, err)
	}
	same, _ := UpdateCodexAuth(out, "sk-1")
	if same != out {
		t.Error("same key should not change content")
	}
	cleared, err := UpdateCodexAuth(out, "")
	if err != nil || gjson.Get(cleared, codexKeyEnv).Exists() {
		t.Errorf("empty key should remove the entry: %s (%v)", cleared, err)
	}
	if !gjson.Get(cleared, "tokens").Exists() {
		t.Error("unrelated field lost")
	}
}

func TestUpdateGeminiEnv(t *testing.T) {
	m := models.ModelProfile{ModelName: "Custom", APIKey: "g-key", ModelURL: "https://gemini.example.com/"}
	out, err := UpdateGeminiEnv("OTHER=1\n", m)
	if err != nil {
		t.Fatal(err)
	}
	env, err := godotenv.Unmarshal(out)
	if err != nil {
		t.Fatalf("result is not a valid env file: %v", err)
	}
	if env[geminiKeyEnv] != "g-key" || env[geminiBaseURLEnv] != "https://gemini.example.com" || env["OTHER"] != "1" {
		t.Errorf("unexpected env: %v", env)
	}

	same, _ := UpdateGeminiEnv(out, m)
	if same != out {
		t.Error("unchanged model should keep content")
	}

	restored, err := UpdateGeminiEnv(out, models.ModelProfile{ModelName: "Original"})
	if err != nil {
		t.Fatal(err)
	}
	env, _ = godotenv.Unmarshal(restored)
	if _, ok := env[geminiKeyEnv]; ok {
		t.Error("restore should remove the key")
	}
	if env["OTHER"] != "1" {
		t.Error("restore dropped an unrelated variable")
	}
}

func snapshotWith(current string, m models.ModelProfile) models.Snapshot {
	cfg := models.ToolConfig{
		CurrentModel: current,
		Models:       []models.ModelProfile{{ModelName: "Original"}, m},
	}
	return models.Snapshot{Claude: cfg, Gemini: cfg, Codex: cfg}
}

func TestSyncerApply(t *testing.T) {
	home := t.TempDir()
	s := NewSyncer(home, logging.Nop(), SyncOptions{CreateBackup: true})

	if err := s.Apply(snapshotWith("GLM", glm())); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	settings, err := os.ReadFile(filepath.Join(home, ".claude", "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(settings, "env.ANTHROPIC_AUTH_TOKEN").String() != glm().APIKey {
		t.Errorf("claude settings not synced: %s", settings)
	}
	for _, rel := range []string{".claude.json", ".codex/auth.json", ".codex/config.toml", ".gemini/.env"} {
		if _, err := os.Stat(filepath.Join(home, rel)); err != nil {
			t.Errorf("expected %s to be written: %v", rel, err)
		}
	}

	changed, err := s.SyncTool(models.ToolClaude, snapshotWith("GLM", glm()).Claude)
	if err != nil || changed {
		t.Errorf("unchanged sync should not write (changed=%v err=%v)", changed, err)
	}

	changed, err = s.SyncTool(models.ToolClaude, snapshotWith("Original", glm()).Claude)
	if err != nil || !changed {
		t.Fatalf("restoring Original should change settings (changed=%v err=%v)", changed, err)
	}
	settings, _ = os.ReadFile(filepath.Join(home, ".claude", "settings.json"))
	if gjson.GetBytes(settings, "env.ANTHROPIC_AUTH_TOKEN").Exists() {
		t.Error("Original should remove the injected token")
	}
}

func TestSyncerSkipsBareModel(t *testing.T) {
	home := t.TempDir()
	s := NewSyncer(home, logging.Nop(), SyncOptions{})

	bare := models.ModelProfile{ModelName: "Kimi"}
	if err := s.Apply(snapshotWith("Kimi", bare)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(home, ".claude")); !os.IsNotExist(err) {
		t.Error("a model without key must not be synced")
	}
}

func TestSyncerDryRun(t *testing.T) {
	home := t.TempDir()
	s := NewSyncer(home, logging.Nop(), SyncOptions{DryRun: true})

	changed, err := s.SyncTool(models.ToolGemini, snapshotWith("GLM", glm()).Gemini)
	if err != nil || !changed {
		t.Fatalf("dry run should report a change (changed=%v err=%v)", changed, err)
	}
	if _, err := os.Stat(filepath.Join(home, ".gemini")); !os.IsNotExist(err) {
		t.Error("dry run must not write")
	}
}

func TestSyncerAttach(t *testing.T) {
	home := t.TempDir()
	s := NewSyncer(home, logging.Nop(), SyncOptions{})
	bus := broadcast.New[models.Snapshot]()

	unsubscribe := s.Attach(bus)
	bus.Publish(snapshotWith("GLM", glm()))
	unsubscribe()

	if _, err := os.Stat(filepath.Join(home, ".claude", "settings.json")); err != nil {
		t.Errorf("published snapshot was not synced: %v", err)
	}
	if bus.Len() != 0 {
		t.Error("listener not detached")
	}
}
