package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelgate/internal/storage/localfs"
)

var profileKeys = []string{
	"FIREBASE_STORAGE_BUCKET",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_PROJECT_ID",
	"AWS_S3_BUCKET",
	"DATABASE_URL",
	"SUPABASE_URL",
	"SUPABASE_KEY",
	"MONGODB_URI",
	"MONGODB_DATABASE",
	"REELGATE_SQLITE_PATH",
}

type cliTestEnv struct {
	baseDir    string
	videosDir  string
	configPath string
}

// setupCLITestEnv writes a config rooted in a temp dir and clears every
// backend key so the embedded profile is selected.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	for _, key := range profileKeys {
		t.Setenv(key, "")
	}

	env := &cliTestEnv{
		baseDir:    base,
		videosDir:  filepath.Join(base, "videos"),
		configPath: filepath.Join(base, "config.toml"),
	}
	content := fmt.Sprintf(`[paths]
data_dir = %q
videos_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[workflow]
run_store = "memory"
redis_password = "hunter2"
`, filepath.Join(base, "data"), env.videosDir, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeLegacyVideos creates a flat-file videos directory holding one video
// per topic and returns the directory and ids.
func writeLegacyVideos(t *testing.T, dir string, topics ...string) []string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	entries := make(map[string]map[string]any, len(topics))
	ids := make([]string, 0, len(topics))
	for i, topic := range topics {
		id := fmt.Sprintf("legacy-%d", i+1)
		name := id + ".mp4"
		if err := os.WriteFile(filepath.Join(dir, name), []byte("video-"+id), 0o644); err != nil {
			t.Fatalf("write video: %v", err)
		}
		entries[id] = map[string]any{
			"id":         id,
			"filename":   name,
			"filepath":   name,
			"topic":      topic,
			"duration":   30.0,
			"created_at": time.Date(2024, 3, 1, 9, i, 0, 0, time.UTC).Format(time.RFC3339),
			"status":     "completed",
			"file_size":  0,
			"playable":   true,
			"url":        "",
		}
		ids = append(ids, id)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, localfs.MetadataFileName), data, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return ids
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
