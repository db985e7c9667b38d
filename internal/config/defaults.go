package config

const (
	defaultDataDir             = "~/.local/share/reelgate"
	defaultVideosDir           = "~/.local/share/reelgate/videos"
	defaultLogDir              = "~/.local/share/reelgate/logs"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultEnvFileName         = ".env"
	defaultRunStore            = RunStoreSQLite
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultAgentTimeoutSeconds = 300
	defaultAgentRetries        = 1
	defaultAgentRetryBackoffMS = 500
	defaultLLMBaseURL          = "http://localhost:11434/v1/chat/completions"
	defaultLLMModel            = "llama3"
	defaultLLMTimeoutSeconds   = 120
	defaultMigrationWorkers    = 1
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogMaxSizeMB        = 50
	defaultLogMaxBackups       = 5
	defaultLogMaxAgeDays       = 30
)

// Run store identifiers accepted by workflow.run_store.
const (
	RunStoreMemory = "memory"
	RunStoreSQLite = "sqlite"
	RunStoreRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			VideosDir: defaultVideosDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Workflow: Workflow{
			RunStore:            defaultRunStore,
			RedisAddr:           defaultRedisAddr,
			AgentTimeoutSeconds: defaultAgentTimeoutSeconds,
			AgentRetries:        defaultAgentRetries,
			AgentRetryBackoffMS: defaultAgentRetryBackoffMS,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Migration: Migration{
			Workers: defaultMigrationWorkers,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			StageReady:     true,
			Errors:         true,
			Stored:         true,
			Migration:      true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
