package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	VideosDir string `toml:"videos_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
	EnvFile   string `toml:"env_file"`
}

// Workflow contains configuration for the review pipeline runtime.
type Workflow struct {
	RunStore            string `toml:"run_store"`
	RedisAddr           string `toml:"redis_addr"`
	RedisPassword       string `toml:"redis_password"`
	RedisDB             int    `toml:"redis_db"`
	AgentTimeoutSeconds int    `toml:"agent_timeout_seconds"`
	AgentRetries        int    `toml:"agent_retries"`
	AgentRetryBackoffMS int    `toml:"agent_retry_backoff_ms"`
}

// Agents maps pipeline stages to external generator commands. An empty
// command selects the built-in template generator for that stage.
type Agents struct {
	Research string `toml:"research"`
	Script   string `toml:"script"`
	Metadata string `toml:"metadata"`
	Video    string `toml:"video"`
	Upload   string `toml:"upload"`
}

// LLM configures the chat completion endpoint used by stages whose agent is
// set to "llm". Any OpenAI-compatible endpoint works, including a local Ollama.
type LLM struct {
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Migration contains configuration for the local-to-remote migration tool.
type Migration struct {
	Workers int `toml:"workers"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	StageReady     bool   `toml:"stage_ready"`
	Errors         bool   `toml:"errors"`
	Stored         bool   `toml:"stored"`
	Migration      bool   `toml:"migration"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values for reelgate.
//
// Storage backend credentials are deliberately absent: they are environment
// keys resolved through Environment and the profile groups in env.go.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workflow      Workflow      `toml:"workflow"`
	Agents        Agents        `toml:"agents"`
	LLM           LLM           `toml:"llm"`
	Migration     Migration     `toml:"migration"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelgate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelgate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.VideosDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkflowDBPath returns the SQLite database used by the durable workflow store.
func (c *Config) WorkflowDBPath() string {
	return filepath.Join(c.Paths.DataDir, "workflows.db")
}

// LockPath returns the single-instance lock file for the serve command.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reelgate.lock")
}

// AgentLLM is the [agents] value that routes a stage to the LLM generator.
const AgentLLM = "llm"

// UsesLLM reports whether stage is routed to the LLM generator.
func (a Agents) UsesLLM(stage string) bool {
	argv := a.Command(stage)
	return len(argv) == 1 && strings.EqualFold(argv[0], AgentLLM)
}

// Command returns the external command line configured for stage, split on
// whitespace. A nil result means the template generator handles the stage.
func (a Agents) Command(stage string) []string {
	var line string
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case "research":
		line = a.Research
	case "script":
		line = a.Script
	case "metadata":
		line = a.Metadata
	case "video":
		line = a.Video
	case "upload":
		line = a.Upload
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
