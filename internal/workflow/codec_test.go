package workflow_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"reelgate/internal/stage"
	"reelgate/internal/workflow"
)

func TestWorkflowJSONKeepsTypedPayloads(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	wf := workflow.New("wf-1", "Tides", now)
	research, _ := wf.Step(stage.Research)
	research.Status = workflow.StepApproved
	research.Payload = stage.ResearchPayload{Summary: "Moon pulls water", KeyPoints: []string{"gravity"}}
	research.Attempts = 1
	research.GeneratedAt = &now
	research.ApprovedAt = &now
	script, _ := wf.Step(stage.Script)
	script.Status = workflow.StepError
	script.Error = "agent timed out"

	data, err := json.Marshal(wf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"status":"failed"`, `"next_stage":"script"`, `"stage":"research"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in %s", want, text)
		}
	}

	var decoded workflow.Workflow
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got, ok := decoded.Step(stage.Research)
	if !ok {
		t.Fatal("research step missing")
	}
	payload, ok := got.Payload.(stage.ResearchPayload)
	if !ok || payload.Summary != "Moon pulls water" {
		t.Fatalf("unexpected payload %#v", got.Payload)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(now) {
		t.Fatalf("approved time lost: %v", got.ApprovedAt)
	}
	if s, _ := decoded.Step(stage.Script); s.Error != "agent timed out" || s.Payload != nil {
		t.Fatalf("unexpected script step %+v", s)
	}
	if decoded.Status() != workflow.StatusFailed {
		t.Fatalf("expected derived failed status, got %s", decoded.Status())
	}
}

func TestNextStageAfterCompletion(t *testing.T) {
	wf := workflow.New("wf-2", "T", time.Now())
	for i := range wf.Steps {
		wf.Steps[i].Status = workflow.StepApproved
	}
	if _, ok := wf.NextStage(); ok {
		t.Fatal("expected no next stage")
	}
	if wf.Status() != workflow.StatusCompleted {
		t.Fatalf("expected completed, got %s", wf.Status())
	}
}
