package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateAgents(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Migration.Workers <= 0 {
		return errors.New("migration.workers must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.VideosDir) == "" {
		return errors.New("paths.videos_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	switch c.Workflow.RunStore {
	case RunStoreMemory, RunStoreSQLite:
	case RunStoreRedis:
		if strings.TrimSpace(c.Workflow.RedisAddr) == "" {
			return errors.New("workflow.redis_addr must be set when workflow.run_store is redis")
		}
	default:
		return fmt.Errorf("workflow.run_store: unsupported value %q (want memory, sqlite, or redis)", c.Workflow.RunStore)
	}
	if c.Workflow.RedisDB < 0 {
		return errors.New("workflow.redis_db must not be negative")
	}
	if c.Workflow.AgentTimeoutSeconds <= 0 {
		return errors.New("workflow.agent_timeout_seconds must be positive")
	}
	if c.Workflow.AgentRetries < 0 {
		return errors.New("workflow.agent_retries must not be negative")
	}
	if c.Workflow.AgentRetryBackoffMS < 0 {
		return errors.New("workflow.agent_retry_backoff_ms must not be negative")
	}
	return nil
}

// validateAgents rejects the LLM generator for stages that produce files.
func (c *Config) validateAgents() error {
	for _, stage := range []string{"video", "upload"} {
		if c.Agents.UsesLLM(stage) {
			return fmt.Errorf("agents.%s: the llm generator cannot produce %s payloads", stage, stage)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
