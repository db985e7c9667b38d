package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/services"
	"reelgate/internal/storage"
)

// Options controls Execute.
type Options struct {
	// DeleteLocal removes the local file once its copy is verified.
	DeleteLocal bool
	// Workers bounds concurrent copies; values below 1 mean sequential.
	Workers int
}

// Outcome is the result of one planned item.
type Outcome string

const (
	OutcomeMigrated Outcome = "migrated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result reports what happened to one item.
type Result struct {
	ID        string
	Topic     string
	Outcome   Outcome
	Key       string
	Deleted   bool
	Error     string
	LocalPath string
}

// Report summarises an execution.
type Report struct {
	Target   string
	Migrated int
	Skipped  int
	Failed   int
	Results  []Result
}

// ExitCode is non-zero when any item failed.
func (r Report) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// Tool runs migrations into one target backend.
type Tool struct {
	target   storage.Backend
	notifier notifications.Service
	logger   *slog.Logger
}

// NewTool constructs a Tool. A nil notifier disables notifications.
func NewTool(target storage.Backend, notifier notifications.Service, logger *slog.Logger) *Tool {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &Tool{
		target:   target,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "migration"),
	}
}

// Plan computes the dry-run plan for sourceDir.
func (t *Tool) Plan(ctx context.Context, sourceDir string) (Plan, error) {
	return BuildPlan(ctx, sourceDir, t.target)
}

// Run locks sourceDir, plans, and executes.
func (t *Tool) Run(ctx context.Context, sourceDir string, opts Options) (Plan, Report, error) {
	release, err := AcquireLock(sourceDir)
	if err != nil {
		return Plan{}, Report{}, err
	}
	defer release()

	plan, err := t.Plan(ctx, sourceDir)
	if err != nil {
		return Plan{}, Report{}, err
	}
	return plan, t.Execute(ctx, plan, opts), nil
}

// Execute copies every pending item. A failing item is recorded and the
// remaining items are still processed. Results keep plan order.
func (t *Tool) Execute(ctx context.Context, plan Plan, opts Options) Report {
	results := make([]Result, len(plan.Items))
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = t.process(ctx, plan.Items[idx], opts)
			}
		}()
	}
	for idx := range plan.Items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	report := Report{Target: t.target.Name(), Results: results}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeMigrated:
			report.Migrated++
		case OutcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}

	t.logger.Info("migration finished",
		logging.String(logging.FieldBackend, report.Target),
		logging.Int("migrated", report.Migrated),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
		logging.String(logging.FieldEventType, "migration_completed"),
	)
	if err := t.notifier.Publish(ctx, notifications.EventMigrationCompleted, notifications.Payload{
		"migrated": report.Migrated,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
		"backend":  report.Target,
	}); err != nil {
		t.logger.Debug("migration notification failed", logging.Error(err))
	}
	return report
}

func (t *Tool) process(ctx context.Context, item PlannedItem, opts Options) Result {
	res := Result{ID: item.Record.ID, Topic: item.Record.Topic, LocalPath: item.LocalPath}
	logger := t.logger.With(logging.String(logging.FieldRecordID, item.Record.ID))

	switch item.Action {
	case ActionSkip:
		res.Outcome = OutcomeSkipped
		logger.Debug("item skipped", logging.String("reason", item.Reason))
		return res
	case ActionMissing:
		res.Outcome = OutcomeFailed
		res.Error = item.Reason
		logger.Warn("item failed",
			logging.String("reason", item.Reason),
			logging.String(logging.FieldEventType, "migration_item_failed"),
			logging.String(logging.FieldErrorHint, "restore the local file or remove the stale metadata entry"),
		)
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		return res
	}

	rec, err := t.copyItem(ctx, item)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = err.Error()
		logger.Warn("item failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "migration_item_failed"),
			logging.String(logging.FieldErrorHint, "rerun the migration; copied items are skipped"),
		)
		return res
	}
	res.Outcome = OutcomeMigrated
	res.Key = rec.StorageKey

	if opts.DeleteLocal {
		if err := os.Remove(item.LocalPath); err != nil {
			res.Error = fmt.Sprintf("delete local file: %v", err)
			logger.Warn("local file not deleted", logging.Error(err))
		} else {
			res.Deleted = true
		}
	}
	logger.Info("item migrated",
		logging.String("key", rec.StorageKey),
		logging.Bool("deleted_local", res.Deleted),
		logging.String(logging.FieldEventType, "migration_item_migrated"),
	)
	return res
}

// copyItem writes the object then the record, and reads both back before
// reporting success.
func (t *Tool) copyItem(ctx context.Context, item PlannedItem) (storage.VideoRecord, error) {
	data, err := os.ReadFile(item.LocalPath)
	if err != nil {
		return storage.VideoRecord{}, services.Wrap(services.ErrStorage, "migration", "read local file", item.LocalPath, err)
	}

	rec := item.Record
	topic := strings.TrimSpace(rec.Topic)
	if topic == "" {
		topic = "migrated"
	}
	key := storage.ObjectKey(topic, rec.ID)
	rec.Filename = filepath.Base(key)
	rec.StorageKey = key
	rec.URL = ""
	rec.Playable = true

	stored, err := storage.Persist(ctx, t.target, rec, data)
	if err != nil {
		return storage.VideoRecord{}, err
	}
	if err := t.verify(ctx, stored); err != nil {
		return storage.VideoRecord{}, err
	}
	return stored, nil
}

func (t *Tool) verify(ctx context.Context, rec storage.VideoRecord) error {
	got, err := t.target.GetRecord(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "migration", "verify record", rec.ID, err)
	}
	exists, err := t.target.ObjectExists(ctx, got.StorageKey)
	if err != nil {
		return services.Wrap(services.ErrStorage, "migration", "verify object", got.StorageKey, err)
	}
	if !exists {
		return services.Wrap(services.ErrStorage, "migration", "verify object", got.StorageKey, errors.New("object missing after upload"))
	}
	return nil
}
