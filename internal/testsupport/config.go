package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"reelgate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.VideosDir = filepath.Join(base, "videos")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.EnvFile = filepath.Join(base, "data", ".env")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Workflow.RunStore = config.RunStoreMemory
	cfgVal.Workflow.AgentTimeoutSeconds = 5
	cfgVal.Workflow.AgentRetries = 0
	cfgVal.Workflow.AgentRetryBackoffMS = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRunStore selects the workflow repository.
func WithRunStore(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.RunStore = kind
	}
}

// WithNtfyTopic points notifications at topic (usually an httptest URL).
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithEnvFile writes lines to the config's env file.
func WithEnvFile(lines ...string) ConfigOption {
	return func(b *configBuilder) {
		if err := os.MkdirAll(filepath.Dir(b.cfg.Paths.EnvFile), 0o755); err != nil {
			b.t.Fatalf("mkdir env dir: %v", err)
		}
		var content string
		for _, line := range lines {
			content += line + "\n"
		}
		if err := os.WriteFile(b.cfg.Paths.EnvFile, []byte(content), 0o600); err != nil {
			b.t.Fatalf("write env file: %v", err)
		}
	}
}

// WithAgentScript writes a shell script used as the external generator for
// stage. The script body receives the request on stdin.
func WithAgentScript(stageName, body string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, fmt.Sprintf("%s-agent", stageName))
		script := "#!/bin/sh\n" + body + "\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write agent script %s: %v", stageName, err)
		}
		switch stageName {
		case "research":
			b.cfg.Agents.Research = target
		case "script":
			b.cfg.Agents.Script = target
		case "metadata":
			b.cfg.Agents.Metadata = target
		case "video":
			b.cfg.Agents.Video = target
		case "upload":
			b.cfg.Agents.Upload = target
		default:
			b.t.Fatalf("unknown stage %q", stageName)
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
