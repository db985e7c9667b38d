package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"reelgate/internal/agent"
	"reelgate/internal/logging"
	"reelgate/internal/notifications"
	"reelgate/internal/services"
	"reelgate/internal/stage"
	"reelgate/internal/storage"
	"reelgate/internal/testsupport"
	"reelgate/internal/workflow"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type harness struct {
	engine   *workflow.Engine
	executor *testsupport.ScriptedExecutor
	backend  *testsupport.MemoryBackend
	notifier *recordingNotifier
	repo     *workflow.MemoryRepository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		executor: testsupport.NewScriptedExecutor(t.TempDir()),
		backend:  testsupport.NewMemoryBackend("memory"),
		notifier: &recordingNotifier{},
		repo:     workflow.NewMemoryRepository(),
	}
	h.engine = workflow.NewEngine(h.repo, h.executor, h.backend, h.notifier, logging.NewNop())
	return h
}

func (h *harness) start(t *testing.T, topic string) string {
	t.Helper()
	wf, err := h.engine.Start(context.Background(), topic)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return wf.ID
}

func (h *harness) generate(t *testing.T, id string, name stage.Name) workflow.Step {
	t.Helper()
	step, err := h.engine.GenerateStage(context.Background(), id, name)
	if err != nil {
		t.Fatalf("generate %s: %v", name, err)
	}
	return step
}

func (h *harness) approve(t *testing.T, id string, name stage.Name) workflow.Transition {
	t.Helper()
	tr, err := h.engine.ApproveStage(context.Background(), id, name)
	if err != nil {
		t.Fatalf("approve %s: %v", name, err)
	}
	return tr
}

// approveThrough generates and approves every stage up to and including last.
func (h *harness) approveThrough(t *testing.T, id string, last stage.Name) {
	t.Helper()
	for _, name := range stage.Order() {
		h.generate(t, id, name)
		h.approve(t, id, name)
		if name == last {
			return
		}
	}
}

func (h *harness) step(t *testing.T, id string, name stage.Name) workflow.Step {
	t.Helper()
	wf, err := h.engine.Summary(context.Background(), id)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	step, ok := wf.Step(name)
	if !ok {
		t.Fatalf("missing step %s", name)
	}
	return *step
}

func TestStartValidatesTopic(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.Start(context.Background(), "   "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	wf, err := h.engine.Start(context.Background(), " Ocean Tides ")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if wf.Topic != "Ocean Tides" {
		t.Fatalf("expected trimmed topic, got %q", wf.Topic)
	}
	if len(wf.Steps) != len(stage.Order()) {
		t.Fatalf("expected %d steps, got %d", len(stage.Order()), len(wf.Steps))
	}
	for _, step := range wf.Steps {
		if step.Status != workflow.StepPending {
			t.Fatalf("expected pending %s, got %s", step.Stage, step.Status)
		}
	}
	if wf.Status() != workflow.StatusPending {
		t.Fatalf("expected pending workflow, got %s", wf.Status())
	}
}

func TestUnknownWorkflowIsNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.engine.Summary(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("summary: expected not found, got %v", err)
	}
	if _, err := h.engine.GenerateStage(ctx, "missing", stage.Research); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("generate: expected not found, got %v", err)
	}
	if _, err := h.engine.ApproveStage(ctx, "missing", stage.Research); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("approve: expected not found, got %v", err)
	}
	if _, err := h.engine.FinalizeUpload(ctx, "missing", workflow.UploadResult{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("finalize: expected not found, got %v", err)
	}
}

func TestUnknownStageIsValidationError(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	if _, err := h.engine.GenerateStage(context.Background(), id, stage.Name("thumbnail")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApprovalOrderScenario(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")

	if step := h.generate(t, id, stage.Research); step.Status != workflow.StepGenerated {
		t.Fatalf("expected generated research, got %s", step.Status)
	}
	tr := h.approve(t, id, stage.Research)
	if tr.Status != workflow.StepApproved || tr.NextStage != stage.Script {
		t.Fatalf("unexpected transition %+v", tr)
	}
	h.generate(t, id, stage.Script)
	h.approve(t, id, stage.Script)

	_, err := h.engine.ApproveStage(context.Background(), id, stage.Video)
	if !errors.Is(err, services.ErrOutOfOrder) {
		t.Fatalf("expected out of order, got %v", err)
	}
}

func TestApproveRequiresEarlierApprovalEvenWhenGenerated(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	h.generate(t, id, stage.Research)
	h.generate(t, id, stage.Script)

	if _, err := h.engine.ApproveStage(context.Background(), id, stage.Script); !errors.Is(err, services.ErrOutOfOrder) {
		t.Fatalf("expected out of order, got %v", err)
	}
	if got := h.step(t, id, stage.Script).Status; got != workflow.StepGenerated {
		t.Fatalf("script should stay generated, got %s", got)
	}
}

func TestApproveRequiresGeneratedStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness, id string)
	}{
		{name: "pending", setup: func(*testing.T, *harness, string) {}},
		{name: "rejected", setup: func(t *testing.T, h *harness, id string) {
			h.generate(t, id, stage.Research)
			if _, err := h.engine.RejectStage(context.Background(), id, stage.Research); err != nil {
				t.Fatalf("reject: %v", err)
			}
		}},
		{name: "error", setup: func(t *testing.T, h *harness, id string) {
			h.executor.FailStage(stage.Research, errors.New("down"))
			h.generate(t, id, stage.Research)
		}},
		{name: "approved", setup: func(t *testing.T, h *harness, id string) {
			h.generate(t, id, stage.Research)
			h.approve(t, id, stage.Research)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.start(t, "T")
			tc.setup(t, h, id)
			if _, err := h.engine.ApproveStage(context.Background(), id, stage.Research); !errors.Is(err, services.ErrInvalidTransition) {
				t.Fatalf("expected invalid transition, got %v", err)
			}
		})
	}
}

func TestRejectThenRegenerateReplacesPayload(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")

	first := h.generate(t, id, stage.Research)
	tr, err := h.engine.RejectStage(context.Background(), id, stage.Research)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if tr.Status != workflow.StepRejected {
		t.Fatalf("expected rejected, got %s", tr.Status)
	}
	rejected := h.step(t, id, stage.Research)
	if rejected.Payload != nil || rejected.RejectedAt == nil {
		t.Fatalf("rejected step should drop payload and stamp time: %+v", rejected)
	}

	second := h.generate(t, id, stage.Research)
	if second.Status != workflow.StepGenerated {
		t.Fatalf("expected generated, got %s", second.Status)
	}
	firstSummary := first.Payload.(stage.ResearchPayload).Summary
	secondSummary := second.Payload.(stage.ResearchPayload).Summary
	if firstSummary == secondSummary {
		t.Fatalf("expected a fresh payload, got %q twice", firstSummary)
	}
	if got := h.step(t, id, stage.Research).Payload.(stage.ResearchPayload).Summary; got != secondSummary {
		t.Fatalf("summary shows %q, want %q", got, secondSummary)
	}
	if second.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", second.Attempts)
	}
}

func TestRejectRequiresGenerated(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	if _, err := h.engine.RejectStage(context.Background(), id, stage.Research); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("pending: expected invalid transition, got %v", err)
	}
	h.generate(t, id, stage.Research)
	h.approve(t, id, stage.Research)
	if _, err := h.engine.RejectStage(context.Background(), id, stage.Research); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("approved: expected invalid transition, got %v", err)
	}
}

func TestGenerateRejectsApprovedAndGenerated(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")

	h.generate(t, id, stage.Research)
	if _, err := h.engine.GenerateStage(context.Background(), id, stage.Research); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("generated: expected invalid transition, got %v", err)
	}

	h.approve(t, id, stage.Research)
	before := h.step(t, id, stage.Research)
	if _, err := h.engine.GenerateStage(context.Background(), id, stage.Research); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("approved: expected invalid transition, got %v", err)
	}
	after := h.step(t, id, stage.Research)
	if after.Payload.(stage.ResearchPayload).Summary != before.Payload.(stage.ResearchPayload).Summary {
		t.Fatal("approved payload changed")
	}
	if !after.GeneratedAt.Equal(*before.GeneratedAt) || !after.ApprovedAt.Equal(*before.ApprovedAt) {
		t.Fatal("approved timestamps changed")
	}
	if h.executor.Calls(stage.Research) != 1 {
		t.Fatalf("expected a single agent call, got %d", h.executor.Calls(stage.Research))
	}
}

func TestAgentFailureBecomesErrorStep(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	h.executor.FailStage(stage.Research, errors.New("model offline"))

	step, err := h.engine.GenerateStage(context.Background(), id, stage.Research)
	if err != nil {
		t.Fatalf("agent failure must not be returned as an error: %v", err)
	}
	if step.Status != workflow.StepError || step.Error == "" || step.Payload != nil {
		t.Fatalf("unexpected error step %+v", step)
	}
	wf, _ := h.engine.Summary(context.Background(), id)
	if wf.Status() != workflow.StatusFailed {
		t.Fatalf("expected failed workflow, got %s", wf.Status())
	}
	if h.notifier.count(notifications.EventStageFailed) != 1 {
		t.Fatal("expected a stage failed notification")
	}

	h.executor.FailStage(stage.Research, nil)
	step = h.generate(t, id, stage.Research)
	if step.Status != workflow.StepGenerated || step.Error != "" {
		t.Fatalf("expected recovery from error, got %+v", step)
	}
}

func TestGeneratePassesApprovedUpstream(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	h.generate(t, id, stage.Research)
	h.approve(t, id, stage.Research)
	h.generate(t, id, stage.Metadata)
	h.generate(t, id, stage.Script)

	reqs := h.executor.Requests()
	last := reqs[len(reqs)-1]
	if last.Stage != stage.Script {
		t.Fatalf("unexpected last request %+v", last)
	}
	if _, ok := last.Upstream[stage.Research]; !ok {
		t.Fatal("expected approved research upstream")
	}
	if len(last.Upstream) != 1 {
		t.Fatalf("only approved earlier stages belong upstream, got %v", last.Upstream)
	}
}

func TestFinalizeUploadPersistsRecord(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "Ocean Tides")
	h.approveThrough(t, id, stage.Video)
	h.generate(t, id, stage.Upload)

	if _, err := h.engine.ApproveStage(context.Background(), id, stage.Upload); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("approving upload directly should fail, got %v", err)
	}

	rec, err := h.engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{PublishID: "yt-123"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if rec.Topic != "Ocean Tides" || rec.Status != storage.StatusCompleted || rec.PublishID != "yt-123" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.StorageKey != storage.ObjectKey("Ocean Tides", rec.ID) {
		t.Fatalf("unexpected storage key %s", rec.StorageKey)
	}
	if rec.URL != storage.FileURL(rec.ID) {
		t.Fatalf("expected API url fallback, got %s", rec.URL)
	}
	if _, ok := h.backend.Objects.Object(rec.StorageKey); !ok {
		t.Fatal("expected object in store")
	}
	stored, err := h.backend.GetRecord(context.Background(), rec.ID)
	if err != nil || stored.ID != rec.ID {
		t.Fatalf("expected stored record: %v", err)
	}

	wf, _ := h.engine.Summary(context.Background(), id)
	if wf.Status() != workflow.StatusCompleted || wf.RecordID != rec.ID {
		t.Fatalf("unexpected workflow after finalize: status=%s record=%s", wf.Status(), wf.RecordID)
	}
	if _, ok := wf.NextStage(); ok {
		t.Fatal("completed workflow should have no next stage")
	}
	if h.notifier.count(notifications.EventVideoStored) != 1 {
		t.Fatal("expected a video stored notification")
	}

	if _, err := h.engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{}); !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("second finalize should fail, got %v", err)
	}
}

func TestFinalizeUploadWithoutGeneratedUploadStage(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "Tides")
	h.approveThrough(t, id, stage.Video)

	if _, err := h.engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{}); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	step := h.step(t, id, stage.Upload)
	upload, ok := step.Payload.(stage.UploadPayload)
	if !ok || upload.Title == "" || upload.VideoFile == "" {
		t.Fatalf("expected assembled upload payload, got %#v", step.Payload)
	}
}

func TestFinalizeUploadRequiresApprovedStages(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	h.approveThrough(t, id, stage.Metadata)

	_, err := h.engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{})
	if !errors.Is(err, services.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if h.backend.Objects.Puts() != 0 {
		t.Fatal("no object may be written before every stage is approved")
	}
}

func TestFinalizeUploadStorageFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "Retry Topic")
	h.approveThrough(t, id, stage.Video)

	wf, _ := h.engine.Summary(context.Background(), id)
	if wf.RecordID != "" {
		t.Fatal("record id must not be reserved before finalize")
	}

	// The record id is only known once reserved, so fail the first write.
	failing := &failOnceRecords{MemoryBackend: h.backend, err: errors.New("bucket unreachable")}
	engine := workflow.NewEngine(h.repo, h.executor, failing, nil, logging.NewNop())

	_, err := engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{})
	if !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	wf, _ = engine.Summary(context.Background(), id)
	if got := mustStep(t, wf, stage.Upload).Status; got != workflow.StepPending {
		t.Fatalf("upload stage must keep its prior state, got %s", got)
	}
	reserved := wf.RecordID
	if reserved == "" {
		t.Fatal("expected reserved record id")
	}

	rec, err := engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if rec.ID != reserved {
		t.Fatalf("retry used record id %s, want %s", rec.ID, reserved)
	}
	list, err := h.backend.ListRecords(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected exactly one record, got %d (%v)", len(list), err)
	}
}

func TestFinalizeUploadMissingVideoFile(t *testing.T) {
	h := newHarness(t)
	id := h.start(t, "T")
	h.approveThrough(t, id, stage.Video)
	video := h.step(t, id, stage.Video).Payload.(stage.VideoPayload)
	if err := os.Remove(video.File); err != nil {
		t.Fatalf("remove video: %v", err)
	}
	if _, err := h.engine.FinalizeUpload(context.Background(), id, workflow.UploadResult{}); !errors.Is(err, services.ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestConcurrentApproveAndRejectApplyOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t)
		id := h.start(t, "T")
		h.generate(t, id, stage.Research)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = h.engine.ApproveStage(context.Background(), id, stage.Research)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = h.engine.RejectStage(context.Background(), id, stage.Research)
		}()
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case !errors.Is(err, services.ErrInvalidTransition):
				t.Fatalf("loser must see invalid transition, got %v", err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("expected exactly one winner, got %d (%v)", succeeded, errs)
		}
		status := h.step(t, id, stage.Research).Status
		if (errs[0] == nil && status != workflow.StepApproved) || (errs[1] == nil && status != workflow.StepRejected) {
			t.Fatalf("final status %s does not match winner %v", status, errs)
		}
	}
}

func TestSlowGenerationDoesNotBlockOtherWorkflows(t *testing.T) {
	h := newHarness(t)
	slow := h.start(t, "slow")
	fast := h.start(t, "fast")

	release := make(chan struct{})
	entered := make(chan struct{})
	h.executor.Hook = func(_ context.Context, req agent.Request) {
		if req.WorkflowID == slow {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.engine.GenerateStage(context.Background(), slow, stage.Research)
		done <- err
	}()
	<-entered

	finished := make(chan error, 1)
	go func() {
		_, err := h.engine.GenerateStage(context.Background(), fast, stage.Research)
		finished <- err
	}()
	select {
	case err := <-finished:
		if err != nil {
			t.Fatalf("fast generate: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("generation on another workflow was blocked")
	}

	// Summary reads do not wait for the in-flight mutation.
	summaryDone := make(chan struct{})
	go func() {
		_, _ = h.engine.Summary(context.Background(), slow)
		close(summaryDone)
	}()
	select {
	case <-summaryDone:
	case <-time.After(2 * time.Second):
		t.Fatal("summary blocked on in-flight generation")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("slow generate: %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	ids := []string{"a", "b", "c"}
	repo := workflow.NewMemoryRepository()
	engine := workflow.NewEngine(repo, testsupport.NewScriptedExecutor(t.TempDir()), nil, nil, logging.NewNop(),
		workflow.WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
		workflow.WithIDGenerator(func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}),
	)
	for i := 0; i < 3; i++ {
		if _, err := engine.Start(context.Background(), fmt.Sprintf("topic %d", i)); err != nil {
			t.Fatalf("start: %v", err)
		}
	}
	list, err := engine.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("unexpected order: %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}

func mustStep(t *testing.T, wf workflow.Workflow, name stage.Name) workflow.Step {
	t.Helper()
	step, ok := wf.Step(name)
	if !ok {
		t.Fatalf("missing step %s", name)
	}
	return *step
}

// failOnceRecords fails the first SaveRecord call.
type failOnceRecords struct {
	*testsupport.MemoryBackend
	mu     sync.Mutex
	err    error
	failed bool
}

func (f *failOnceRecords) SaveRecord(ctx context.Context, rec storage.VideoRecord) error {
	f.mu.Lock()
	if !f.failed {
		f.failed = true
		f.mu.Unlock()
		return services.Wrap(services.ErrStorage, "memory", "save record", rec.ID, f.err)
	}
	f.mu.Unlock()
	return f.MemoryBackend.SaveRecord(ctx, rec)
}
