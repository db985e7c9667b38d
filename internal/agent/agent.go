package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reelgate/internal/services"
	"reelgate/internal/stage"
)

// Request is the input handed to a stage generator.
type Request struct {
	WorkflowID string                       `json:"workflow_id"`
	Topic      string                       `json:"topic"`
	Stage      stage.Name                   `json:"stage"`
	Upstream   map[stage.Name]stage.Payload `json:"upstream"`
}

// Agent generates the payload for one stage.
type Agent interface {
	Generate(ctx context.Context, req Request) (stage.Payload, error)
}

// HealthReporter is implemented by agents that can report readiness.
type HealthReporter interface {
	Health(ctx context.Context) stage.Health
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, req Request) (stage.Payload, error)

func (f Func) Generate(ctx context.Context, req Request) (stage.Payload, error) {
	return f(ctx, req)
}

// Failure is the normalized outcome of a generation that produced no usable
// payload. It matches services.ErrAgentFailure, and services.ErrTimeout when
// the last attempt ran out of time.
type Failure struct {
	Stage    stage.Name
	Attempts int
	Timeout  bool
	Err      error
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s generation failed", f.Stage)
	if f.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", f.Attempts)
	}
	if f.Timeout {
		b.WriteString(" (timed out)")
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() []error {
	errs := []error{services.ErrAgentFailure}
	if f.Timeout {
		errs = append(errs, services.ErrTimeout)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// Upstream returns the approved payload of name from req, typed as T.
func Upstream[T stage.Payload](req Request, name stage.Name) (T, bool) {
	var zero T
	payload, ok := req.Upstream[name]
	if !ok || payload == nil {
		return zero, false
	}
	typed, ok := payload.(T)
	return typed, ok
}
