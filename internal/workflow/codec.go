package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"reelgate/internal/stage"
)

type stepJSON struct {
	Stage       stage.Name      `json:"stage"`
	Status      StepStatus      `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Attempts    int             `json:"attempts"`
	GeneratedAt *time.Time      `json:"generated_at,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// MarshalJSON writes the payload as a tagged stage envelope.
func (s Step) MarshalJSON() ([]byte, error) {
	out := stepJSON{
		Stage:       s.Stage,
		Status:      s.Status,
		Attempts:    s.Attempts,
		GeneratedAt: s.GeneratedAt,
		ApprovedAt:  s.ApprovedAt,
		RejectedAt:  s.RejectedAt,
		Error:       s.Error,
	}
	if s.Payload != nil {
		raw, err := stage.Encode(s.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = raw
	}
	return json.Marshal(out)
}

func (s *Step) UnmarshalJSON(data []byte) error {
	var in stepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Step{
		Stage:       in.Stage,
		Status:      in.Status,
		Attempts:    in.Attempts,
		GeneratedAt: in.GeneratedAt,
		ApprovedAt:  in.ApprovedAt,
		RejectedAt:  in.RejectedAt,
		Error:       in.Error,
	}
	if len(in.Payload) > 0 && string(in.Payload) != "null" {
		payload, err := stage.Decode(in.Payload)
		if err != nil {
			return fmt.Errorf("step %s: %w", in.Stage, err)
		}
		s.Payload = payload
	}
	return nil
}

type workflowJSON struct {
	ID              string     `json:"id"`
	Topic           string     `json:"topic"`
	Status          Status     `json:"status"`
	NextStage       stage.Name `json:"next_stage,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Steps           []Step     `json:"steps"`
	RecordID        string     `json:"record_id,omitempty"`
	RecordCreatedAt *time.Time `json:"record_created_at,omitempty"`
}

// MarshalJSON includes the derived status and next stage.
func (w Workflow) MarshalJSON() ([]byte, error) {
	out := workflowJSON{
		ID:              w.ID,
		Topic:           w.Topic,
		Status:          w.Status(),
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
		Steps:           w.Steps,
		RecordID:        w.RecordID,
		RecordCreatedAt: w.RecordCreatedAt,
	}
	if next, ok := w.NextStage(); ok {
		out.NextStage = next
	}
	return json.Marshal(out)
}

// UnmarshalJSON ignores the derived fields.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var in workflowJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*w = Workflow{
		ID:              in.ID,
		Topic:           in.Topic,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
		Steps:           in.Steps,
		RecordID:        in.RecordID,
		RecordCreatedAt: in.RecordCreatedAt,
	}
	return nil
}
