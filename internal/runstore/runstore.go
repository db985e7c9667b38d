package runstore

import (
	"context"
	"fmt"
	"log/slog"

	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/services"
	"reelgate/internal/workflow"
)

// Open returns the repository selected by cfg.Workflow.RunStore.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (workflow.Repository, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow-store", "open", "config is nil", nil)
	}
	logger = logging.NewComponentLogger(logger, "workflow-store")

	switch cfg.Workflow.RunStore {
	case config.RunStoreMemory:
		logger.Info("workflow store opened", logging.String("run_store", config.RunStoreMemory))
		return workflow.NewMemoryRepository(), nil
	case config.RunStoreSQLite:
		repo, err := OpenSQLite(ctx, cfg.WorkflowDBPath())
		if err != nil {
			return nil, err
		}
		logger.Info("workflow store opened",
			logging.String("run_store", config.RunStoreSQLite),
			logging.String("path", cfg.WorkflowDBPath()),
		)
		return repo, nil
	case config.RunStoreRedis:
		repo, err := OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Workflow.RedisAddr,
			Password: cfg.Workflow.RedisPassword,
			DB:       cfg.Workflow.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("workflow store opened",
			logging.String("run_store", config.RunStoreRedis),
			logging.String("addr", cfg.Workflow.RedisAddr),
			logging.Int("db", cfg.Workflow.RedisDB),
		)
		return repo, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "workflow-store", "open",
			fmt.Sprintf("unknown run store %q", cfg.Workflow.RunStore), nil)
	}
}
