package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelgate/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reelgate")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.VideosDir != filepath.Join(wantData, "videos") {
		t.Fatalf("unexpected videos dir: %q", cfg.Paths.VideosDir)
	}
	if cfg.Paths.EnvFile != filepath.Join(wantData, ".env") {
		t.Fatalf("unexpected env file: %q", cfg.Paths.EnvFile)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Workflow.RunStore != config.RunStoreSQLite {
		t.Fatalf("unexpected run store: %q", cfg.Workflow.RunStore)
	}
	if cfg.WorkflowDBPath() != filepath.Join(wantData, "workflows.db") {
		t.Fatalf("unexpected workflow db path: %q", cfg.WorkflowDBPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.VideosDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "reelgate.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(tempDir, "data")) + `"

[workflow]
run_store = "MEMORY"
agent_timeout_seconds = 42

[agents]
research = "python3 research.py --fast"

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Workflow.RunStore != config.RunStoreMemory {
		t.Fatalf("expected run store normalized to memory, got %q", cfg.Workflow.RunStore)
	}
	if cfg.Workflow.AgentTimeoutSeconds != 42 {
		t.Fatalf("unexpected agent timeout: %d", cfg.Workflow.AgentTimeoutSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Paths.VideosDir != filepath.Join(tempDir, "data", "videos") {
		t.Fatalf("expected videos dir derived from data dir, got %q", cfg.Paths.VideosDir)
	}
	cmd := cfg.Agents.Command("research")
	if len(cmd) != 3 || cmd[0] != "python3" || cmd[2] != "--fast" {
		t.Fatalf("unexpected research command: %v", cmd)
	}
	if cfg.Agents.Command("script") != nil {
		t.Fatal("expected empty script command")
	}
}

func TestValidateRejectsUnknownRunStore(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.RunStore = "etcd"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "workflow.run_store") {
		t.Fatalf("expected run_store validation error, got %v", err)
	}
}

func TestValidateRequiresPositiveAgentTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.AgentTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero agent timeout")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Migration.Workers != 1 {
		t.Fatalf("unexpected migration workers: %d", cfg.Migration.Workers)
	}
	if !cfg.Notifications.StageReady {
		t.Fatal("expected stage_ready notifications enabled in sample")
	}
}

func TestEncodeIncludesSections(t *testing.T) {
	cfg := config.Default()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, section := range []string{"[paths]", "[workflow]", "[logging]"} {
		if !strings.Contains(string(data), section) {
			t.Fatalf("expected %s in encoded config:\n%s", section, data)
		}
	}
}

func TestAgentsUsesLLM(t *testing.T) {
	agents := config.Agents{Research: "llm", Script: "LLM", Metadata: "llm --fast"}
	if !agents.UsesLLM("research") || !agents.UsesLLM("script") {
		t.Fatal("expected research and script routed to the llm generator")
	}
	if agents.UsesLLM("metadata") {
		t.Fatal("a command line with arguments is an external command")
	}
}

func TestValidateRejectsLLMForVideo(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.Video = "llm"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "agents.video") {
		t.Fatalf("expected agents.video validation error, got %v", err)
	}
}

func TestLoadFallsBackToLLMKeyFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LLM_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\nmodel = \"mistral\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" || cfg.LLM.Model != "mistral" {
		t.Fatalf("unexpected llm config: %+v", cfg.LLM)
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.TimeoutSeconds <= 0 {
		t.Fatalf("expected llm defaults applied: %+v", cfg.LLM)
	}
}
