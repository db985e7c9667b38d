package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/storage"
	"reelgate/internal/storageaccess"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// cliLogger writes warnings and errors to stderr so command output stays
// parseable.
func (c *commandContext) cliLogger() *slog.Logger {
	format := "console"
	if c.config != nil && c.config.Logging.Format != "" {
		format = c.config.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) environment() (map[string]string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	environ, err := config.Environment(cfg.Paths.EnvFile)
	if err != nil {
		return nil, err
	}
	return environ, nil
}

// openBackend constructs the active storage backend. Callers close it.
func (c *commandContext) openBackend(ctx context.Context, logger *slog.Logger) (storage.Backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	environ, err := c.environment()
	if err != nil {
		return nil, err
	}
	backend, err := storageaccess.Open(ctx, cfg, environ, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}
	return backend, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
