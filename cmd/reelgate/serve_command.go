package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reelgate/internal/agent"
	"reelgate/internal/daemon"
	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/runstore"
	"reelgate/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow API server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	repo, err := runstore.Open(signalCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open workflow store: %w", err)
	}
	backend, err := ctx.openBackend(signalCtx, logger)
	if err != nil {
		_ = repo.Close()
		return err
	}

	registry := agent.NewRegistryFromConfig(cfg, logger)
	executor := agent.NewExecutor(registry, agent.ExecutorOptions{
		Timeout: time.Duration(cfg.Workflow.AgentTimeoutSeconds) * time.Second,
		Retries: cfg.Workflow.AgentRetries,
		Backoff: time.Duration(cfg.Workflow.AgentRetryBackoffMS) * time.Millisecond,
	}, logger)
	engine := workflow.NewEngine(repo, executor, backend, notifications.NewService(cfg), logger,
		workflow.WithVideosDir(cfg.Paths.VideosDir),
	)

	d, err := daemon.New(cfg, daemon.Components{Engine: engine, Repository: repo, Health: registry}, logger)
	if err != nil {
		_ = repo.Close()
		_ = backend.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close incomplete", logging.Error(err))
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelgate shutting down")
	return nil
}
