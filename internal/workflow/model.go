package workflow

import (
	"time"

	"reelgate/internal/stage"
)

// StepStatus is the review state of one stage.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepGenerated StepStatus = "generated"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepError     StepStatus = "error"
)

// Status is the overall workflow state derived from its steps.
type Status string

const (
	StatusPending        Status = "pending"
	StatusInProgress     Status = "in_progress"
	StatusAwaitingReview Status = "awaiting_review"
	StatusFailed         Status = "failed"
	StatusCompleted      Status = "completed"
)

// Step is the state of one stage within a workflow. Payload is nil unless the
// step is generated or approved.
type Step struct {
	Stage       stage.Name
	Status      StepStatus
	Payload     stage.Payload
	Attempts    int
	GeneratedAt *time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	Error       string
}

// Workflow is a snapshot of one pipeline run.
type Workflow struct {
	ID        string
	Topic     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Steps     []Step
	// RecordID is reserved by the first FinalizeUpload attempt so retries
	// reuse the same record id and object key.
	RecordID        string
	RecordCreatedAt *time.Time
}

// New returns a workflow with every stage pending.
func New(id, topic string, now time.Time) Workflow {
	steps := make([]Step, 0, len(stage.Order()))
	for _, name := range stage.Order() {
		steps = append(steps, Step{Stage: name, Status: StepPending})
	}
	return Workflow{
		ID:        id,
		Topic:     topic,
		CreatedAt: now,
		UpdatedAt: now,
		Steps:     steps,
	}
}

// Step returns the step for name.
func (w *Workflow) Step(name stage.Name) (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].Stage == name {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// Status derives the overall state from the steps.
func (w Workflow) Status() Status {
	var approved, generated, failed, touched bool
	for _, step := range w.Steps {
		switch step.Status {
		case StepApproved:
			approved = true
			if step.Stage == stage.Upload {
				return StatusCompleted
			}
		case StepGenerated:
			generated = true
		case StepError:
			failed = true
		case StepRejected:
			touched = true
		}
	}
	switch {
	case failed:
		return StatusFailed
	case generated:
		return StatusAwaitingReview
	case approved || touched:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// NextStage returns the first stage not yet approved.
func (w Workflow) NextStage() (stage.Name, bool) {
	for _, name := range stage.Order() {
		step, ok := w.Step(name)
		if !ok || step.Status != StepApproved {
			return name, true
		}
	}
	return "", false
}

// Clone returns a copy that shares no step storage with w. Payload values are
// immutable once generated and are shared.
func (w Workflow) Clone() Workflow {
	out := w
	out.Steps = make([]Step, len(w.Steps))
	for i, step := range w.Steps {
		step.GeneratedAt = cloneTime(step.GeneratedAt)
		step.ApprovedAt = cloneTime(step.ApprovedAt)
		step.RejectedAt = cloneTime(step.RejectedAt)
		out.Steps[i] = step
	}
	out.RecordCreatedAt = cloneTime(w.RecordCreatedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// approvedPayloads returns the approved payloads of every stage before name.
func (w *Workflow) approvedPayloads(name stage.Name) map[stage.Name]stage.Payload {
	out := make(map[stage.Name]stage.Payload)
	for _, earlier := range stage.Before(name) {
		step, ok := w.Step(earlier)
		if ok && step.Status == StepApproved && step.Payload != nil {
			out[earlier] = step.Payload
		}
	}
	return out
}
