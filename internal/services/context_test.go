package services_test

import (
	"context"
	"testing"

	"reelgate/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithWorkflowID(ctx, "wf-42")
	ctx = services.WithStage(ctx, "script")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.WorkflowIDFromContext(ctx); !ok || id != "wf-42" {
		t.Fatalf("unexpected workflow id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "script" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithWorkflowID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.WorkflowIDFromContext(ctx); ok {
		t.Fatal("expected no workflow id value")
	}
}
