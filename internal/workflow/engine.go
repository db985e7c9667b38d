package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelgate/internal/agent"
	"reelgate/internal/keylock"
	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/services"
	"reelgate/internal/stage"
	"reelgate/internal/storage"
)

// StepExecutor produces a stage payload or an *agent.Failure. It must not
// touch workflow state.
type StepExecutor interface {
	Execute(ctx context.Context, req agent.Request) (stage.Payload, error)
}

// Engine coordinates workflow transitions.
type Engine struct {
	repo     Repository
	executor StepExecutor
	backend  storage.Backend
	notifier notifications.Service
	logger   *slog.Logger
	locks    *keylock.Map

	now       func() time.Time
	newID     func() string
	videosDir string
}

// EngineOption configures optional Engine behavior.
type EngineOption func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides workflow id generation.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

// WithVideosDir resolves relative video file references against dir.
func WithVideosDir(dir string) EngineOption {
	return func(e *Engine) {
		e.videosDir = dir
	}
}

// NewEngine constructs an Engine. A nil notifier disables notifications.
func NewEngine(repo Repository, executor StepExecutor, backend storage.Backend, notifier notifications.Service, logger *slog.Logger, opts ...EngineOption) *Engine {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	e := &Engine{
		repo:     repo,
		executor: executor,
		backend:  backend,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "workflow-engine"),
		locks:    keylock.New(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the storage backend finalized videos are written to.
func (e *Engine) Backend() storage.Backend {
	return e.backend
}

// Start creates a workflow for topic with every stage pending.
func (e *Engine) Start(ctx context.Context, topic string) (Workflow, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Workflow{}, services.Wrap(services.ErrValidation, "workflow", "start", "topic is empty", nil)
	}
	wf := New(e.newID(), topic, e.now())
	if err := e.repo.Create(ctx, wf); err != nil {
		return Workflow{}, e.storeError("create workflow", err)
	}
	e.loggerFor(ctx, wf.ID, "").Info("workflow started",
		logging.String("topic", topic),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return wf, nil
}

// Summary returns the current snapshot without waiting for in-flight
// mutations.
func (e *Engine) Summary(ctx context.Context, id string) (Workflow, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Workflow{}, services.Wrap(services.ErrValidation, "workflow", "summary", "workflow id is empty", nil)
	}
	return e.repo.Get(ctx, id)
}

// List returns every workflow, newest first.
func (e *Engine) List(ctx context.Context) ([]Workflow, error) {
	workflows, err := e.repo.List(ctx)
	if err != nil {
		return nil, e.storeError("list workflows", err)
	}
	return workflows, nil
}

// GenerateStage runs the agent for name. Agent failures leave the step in
// StepError and are reported through the returned Step, not the error.
func (e *Engine) GenerateStage(ctx context.Context, id string, name stage.Name) (Step, error) {
	if err := validStage(name, "generate"); err != nil {
		return Step{}, err
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	wf, err := e.repo.Get(ctx, id)
	if err != nil {
		return Step{}, err
	}
	step, err := stepFor(&wf, name)
	if err != nil {
		return Step{}, err
	}
	switch step.Status {
	case StepPending, StepRejected, StepError:
	default:
		return Step{}, invalidTransition(name, "generate", step.Status)
	}

	ctx = services.WithWorkflowID(ctx, id)
	ctx = services.WithStage(ctx, string(name))
	logger := e.loggerFor(ctx, id, name)

	payload, execErr := e.executor.Execute(ctx, agent.Request{
		WorkflowID: wf.ID,
		Topic:      wf.Topic,
		Stage:      name,
		Upstream:   wf.approvedPayloads(name),
	})

	now := e.now()
	step.Attempts++
	step.RejectedAt = nil
	if execErr != nil {
		step.Status = StepError
		step.Payload = nil
		step.Error = failureMessage(execErr)
	} else {
		step.Status = StepGenerated
		step.Payload = payload
		step.GeneratedAt = timePtr(now)
		step.Error = ""
	}
	wf.UpdatedAt = now
	if err := e.repo.Save(ctx, wf); err != nil {
		return Step{}, e.storeError("save workflow", err)
	}

	if execErr != nil {
		logger.Warn("stage failed",
			logging.Int("attempts", step.Attempts),
			logging.Error(execErr),
			logging.String(logging.FieldEventType, "stage_failed"),
			logging.String(logging.FieldErrorHint, "regenerate the stage after fixing the generator"),
		)
		e.publish(ctx, notifications.EventStageFailed, notifications.Payload{
			"stage": string(name),
			"topic": wf.Topic,
			"error": step.Error,
		})
	} else {
		logger.Info("stage generated",
			logging.Int("attempts", step.Attempts),
			logging.String(logging.FieldEventType, "stage_generated"),
		)
		e.publish(ctx, notifications.EventStageReady, notifications.Payload{
			"stage":      string(name),
			"topic":      wf.Topic,
			"workflowID": wf.ID,
		})
	}
	return *step, nil
}

// Transition reports the result of an approve or reject call.
type Transition struct {
	WorkflowID string     `json:"workflow_id"`
	Stage      stage.Name `json:"stage"`
	Status     StepStatus `json:"status"`
	NextStage  stage.Name `json:"next_stage,omitempty"`
}

// ApproveStage approves a generated stage once every earlier stage is
// approved. The upload stage is approved by FinalizeUpload instead.
func (e *Engine) ApproveStage(ctx context.Context, id string, name stage.Name) (Transition, error) {
	if err := validStage(name, "approve"); err != nil {
		return Transition{}, err
	}
	if name == stage.Upload {
		return Transition{}, services.Wrap(services.ErrInvalidTransition, "workflow", "approve",
			"the upload stage is approved by finalizing the upload", nil)
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	wf, err := e.repo.Get(ctx, id)
	if err != nil {
		return Transition{}, err
	}
	if err := requireApproved(&wf, stage.Before(name), "approve "+string(name)); err != nil {
		return Transition{}, err
	}
	step, err := stepFor(&wf, name)
	if err != nil {
		return Transition{}, err
	}
	if step.Status != StepGenerated {
		return Transition{}, invalidTransition(name, "approve", step.Status)
	}

	now := e.now()
	step.Status = StepApproved
	step.ApprovedAt = timePtr(now)
	wf.UpdatedAt = now
	if err := e.repo.Save(ctx, wf); err != nil {
		return Transition{}, e.storeError("save workflow", err)
	}

	out := Transition{WorkflowID: id, Stage: name, Status: StepApproved}
	if next, ok := stage.Next(name); ok {
		out.NextStage = next
	}
	e.loggerFor(ctx, id, name).Info("stage approved",
		logging.String("next_stage", string(out.NextStage)),
		logging.String(logging.FieldEventType, "stage_approved"),
	)
	return out, nil
}

// RejectStage discards a generated payload so the stage can be regenerated.
// Later stages are not affected.
func (e *Engine) RejectStage(ctx context.Context, id string, name stage.Name) (Transition, error) {
	if err := validStage(name, "reject"); err != nil {
		return Transition{}, err
	}
	unlock := e.locks.Lock(id)
	defer unlock()

	wf, err := e.repo.Get(ctx, id)
	if err != nil {
		return Transition{}, err
	}
	step, err := stepFor(&wf, name)
	if err != nil {
		return Transition{}, err
	}
	if step.Status != StepGenerated {
		return Transition{}, invalidTransition(name, "reject", step.Status)
	}

	now := e.now()
	step.Status = StepRejected
	step.Payload = nil
	step.RejectedAt = timePtr(now)
	wf.UpdatedAt = now
	if err := e.repo.Save(ctx, wf); err != nil {
		return Transition{}, e.storeError("save workflow", err)
	}

	e.loggerFor(ctx, id, name).Info("stage rejected",
		logging.String(logging.FieldEventType, "stage_rejected"),
	)
	return Transition{WorkflowID: id, Stage: name, Status: StepRejected}, nil
}

func stepFor(wf *Workflow, name stage.Name) (*Step, error) {
	step, ok := wf.Step(name)
	if !ok {
		return nil, services.Wrap(services.ErrStorage, "workflow", "lookup", fmt.Sprintf("workflow %s has no %s step", wf.ID, name), nil)
	}
	return step, nil
}

func validStage(name stage.Name, operation string) error {
	if !name.Valid() {
		return services.Wrap(services.ErrValidation, "workflow", operation, fmt.Sprintf("unknown stage %q", name), nil)
	}
	return nil
}

func requireApproved(wf *Workflow, names []stage.Name, operation string) error {
	for _, earlier := range names {
		step, ok := wf.Step(earlier)
		if !ok || step.Status != StepApproved {
			return services.Wrap(services.ErrOutOfOrder, "workflow", operation,
				fmt.Sprintf("%s is not approved", earlier), nil)
		}
	}
	return nil
}

func invalidTransition(name stage.Name, operation string, status StepStatus) error {
	return services.Wrap(services.ErrInvalidTransition, "workflow", operation,
		fmt.Sprintf("%s is %s", name, status), nil)
}

func failureMessage(err error) string {
	if failure, ok := agent.AsFailure(err); ok {
		return failure.Error()
	}
	return strings.TrimSpace(err.Error())
}

// storeError tags repository failures that carry no marker as storage errors.
func (e *Engine) storeError(operation string, err error) error {
	if services.Kind(err) != "internal" {
		return err
	}
	return services.Wrap(services.ErrStorage, "workflow-store", operation, "", err)
}

func (e *Engine) loggerFor(ctx context.Context, id string, name stage.Name) *slog.Logger {
	logger := logging.WithContext(ctx, e.logger)
	if _, ok := services.WorkflowIDFromContext(ctx); !ok && id != "" {
		logger = logger.With(logging.String(logging.FieldWorkflowID, id))
	}
	if _, ok := services.StageFromContext(ctx); !ok && name != "" {
		logger = logger.With(logging.String(logging.FieldStage, string(name)))
	}
	return logger
}

func (e *Engine) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := e.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, e.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
