package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelgate/internal/logging"
	"reelgate/internal/services"
	"reelgate/internal/stage"
)

// ExecutorOptions bounds each generation call.
type ExecutorOptions struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// Executor runs the registered agent for a stage under ExecutorOptions.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
	logger   *slog.Logger
}

// NewExecutor constructs an Executor. A non-positive timeout disables the
// per-attempt deadline.
func NewExecutor(registry *Registry, opts ExecutorOptions, logger *slog.Logger) *Executor {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Executor{
		registry: registry,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "agent-executor"),
	}
}

// Execute returns a validated payload for req.Stage or a *Failure.
func (e *Executor) Execute(ctx context.Context, req Request) (stage.Payload, error) {
	if e == nil || e.registry == nil {
		return nil, &Failure{Stage: req.Stage, Err: errors.New("executor unavailable")}
	}
	agent, ok := e.registry.Get(req.Stage)
	if !ok {
		return nil, &Failure{Stage: req.Stage, Err: fmt.Errorf("no agent registered for stage %q", req.Stage)}
	}

	logger := logging.WithContext(ctx, e.logger)
	maxAttempts := e.opts.Retries + 1
	backoff := e.opts.Backoff

	var (
		lastErr     error
		lastTimeout bool
		attempt     int
	)
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		payload, timedOut, err := e.attempt(ctx, agent, req)
		if err == nil {
			if attempt > 1 {
				logger.Info("stage generation recovered", logging.Int("attempt", attempt))
			}
			return payload, nil
		}
		lastErr, lastTimeout = err, timedOut
		if ctx.Err() != nil {
			break
		}
		logger.Warn("stage generation attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Bool("timed_out", timedOut),
			logging.Error(err),
			logging.String(logging.FieldEventType, "agent_attempt_failed"),
			logging.String(logging.FieldErrorHint, "check the stage generator command and its output"),
		)
		if attempt == maxAttempts {
			break
		}
		if backoff > 0 {
			if waitErr := sleep(ctx, backoff); waitErr != nil {
				lastErr = waitErr
				break
			}
			backoff *= 2
		}
	}
	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	return nil, &Failure{Stage: req.Stage, Attempts: attempt, Timeout: lastTimeout, Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, agent Agent, req Request) (stage.Payload, bool, error) {
	attemptCtx := ctx
	cancel := func() {}
	if e.opts.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
	}
	defer cancel()

	type result struct {
		payload stage.Payload
		err     error
	}
	done := make(chan result, 1)
	go func() {
		payload, err := agent.Generate(attemptCtx, req)
		done <- result{payload: payload, err: err}
	}()

	// Agents that ignore cancellation are abandoned at the deadline.
	var res result
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res = result{err: attemptCtx.Err()}
	}

	timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if res.err != nil {
		if timedOut {
			return nil, true, fmt.Errorf("no response within %s: %w", e.opts.Timeout, res.err)
		}
		return nil, false, res.err
	}
	if err := checkPayload(req.Stage, res.payload); err != nil {
		return nil, false, err
	}
	return res.payload, false, nil
}

func checkPayload(want stage.Name, payload stage.Payload) error {
	if payload == nil {
		return services.Wrap(services.ErrValidation, "agent", string(want), "generator returned no payload", nil)
	}
	if got := payload.Stage(); got != want {
		return services.Wrap(services.ErrValidation, "agent", string(want), fmt.Sprintf("generator returned %s payload", got), nil)
	}
	return payload.Validate()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
