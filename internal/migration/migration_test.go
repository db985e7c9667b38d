package migration_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"reelgate/internal/logging"
	"reelgate/internal/migration"
	"reelgate/internal/storage"
	"reelgate/internal/storage/localfs"
	"reelgate/internal/storage/sqlitestore"
	"reelgate/internal/testsupport"
)

type sourceEntry struct {
	id      string
	topic   string
	status  string
	noFile  bool
	created time.Time
}

// writeSource lays out a videos directory with a metadata file whose
// filepath entries are absolute, like directories written by older tooling.
func writeSource(t *testing.T, entries ...sourceEntry) string {
	t.Helper()
	dir := t.TempDir()
	var parts []string
	for _, e := range entries {
		name := fmt.Sprintf("%s.mp4", e.id)
		path := filepath.Join(dir, name)
		if !e.noFile {
			if err := os.WriteFile(path, []byte("bytes-"+e.id), 0o644); err != nil {
				t.Fatalf("write video: %v", err)
			}
		}
		parts = append(parts, fmt.Sprintf(`%q: {"id": %q, "filename": %q, "filepath": %q, "topic": %q, "duration": 12.5, "created_at": %q, "status": %q, "file_size": 0, "playable": true, "url": ""}`,
			e.id, e.id, name, path, e.topic, e.created.UTC().Format(time.RFC3339), e.status))
	}
	data := "{" + strings.Join(parts, ",") + "}"
	if err := os.WriteFile(filepath.Join(dir, localfs.MetadataFileName), []byte(data), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return dir
}

func at(minutes int) time.Time {
	return time.Date(2024, 5, 1, 10, minutes, 0, 0, time.UTC)
}

func newTool(target *testsupport.MemoryBackend) *migration.Tool {
	return migration.NewTool(target, nil, logging.NewNop())
}

func TestPlanIsPure(t *testing.T) {
	dir := writeSource(t,
		sourceEntry{id: "a", topic: "Rivers", status: "completed", created: at(1)},
		sourceEntry{id: "b", topic: "Lakes", status: "completed", created: at(2)},
		sourceEntry{id: "c", topic: "Seas", status: "completed", created: at(3), noFile: true},
	)
	target := testsupport.NewMemoryBackend("remote")
	tool := newTool(target)

	first, err := tool.Plan(context.Background(), dir)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	second, err := tool.Plan(context.Background(), dir)
	if err != nil {
		t.Fatalf("plan again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("plans differ:\n%+v\n%+v", first, second)
	}
	if first.Count(migration.ActionMigrate) != 2 || first.Count(migration.ActionMissing) != 1 {
		t.Fatalf("unexpected plan counts: %+v", first.Items)
	}
	if target.Objects.Puts() != 0 || target.Records.Saves() != 0 {
		t.Fatal("planning wrote to the target")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.mp4")); err != nil {
		t.Fatalf("planning touched local files: %v", err)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	dir := writeSource(t,
		sourceEntry{id: "a", topic: "Rivers", status: "completed", created: at(1)},
		sourceEntry{id: "b", topic: "Lakes", status: "", created: at(2)},
	)
	target := testsupport.NewMemoryBackend("remote")
	tool := newTool(target)
	ctx := context.Background()

	_, report, err := tool.Run(ctx, dir, migration.Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Migrated != 2 || report.Failed != 0 || report.ExitCode() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	rec, err := target.GetRecord(ctx, "b")
	if err != nil {
		t.Fatalf("get migrated record: %v", err)
	}
	if rec.Status != storage.StatusCompleted {
		t.Fatalf("expected empty status normalized to completed, got %q", rec.Status)
	}
	if rec.StorageKey != storage.ObjectKey("Lakes", "b") || rec.FileSize != int64(len("bytes-b")) {
		t.Fatalf("unexpected migrated record %+v", rec)
	}
	data, ok := target.Objects.Object(rec.StorageKey)
	if !ok || string(data) != "bytes-b" {
		t.Fatalf("unexpected object bytes %q", data)
	}

	plan, err := tool.Plan(ctx, dir)
	if err != nil {
		t.Fatalf("plan after execute: %v", err)
	}
	if len(plan.Pending()) != 0 || plan.Count(migration.ActionSkip) != 2 {
		t.Fatalf("expected everything skipped, got %+v", plan.Items)
	}

	puts := target.Objects.Puts()
	_, again, err := tool.Run(ctx, dir, migration.Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Skipped != 2 || again.Migrated != 0 {
		t.Fatalf("unexpected second report %+v", again)
	}
	if target.Objects.Puts() != puts {
		t.Fatal("second run uploaded again")
	}
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	dir := writeSource(t,
		sourceEntry{id: "a", topic: "Rivers", status: "completed", created: at(1)},
		sourceEntry{id: "b", topic: "Lakes", status: "completed", created: at(2)},
		sourceEntry{id: "c", topic: "Seas", status: "completed", created: at(3), noFile: true},
	)
	target := testsupport.NewMemoryBackend("remote")
	target.Objects.FailKey(storage.ObjectKey("Rivers", "a"), errors.New("access denied"))
	tool := newTool(target)
	ctx := context.Background()

	plan, err := tool.Plan(ctx, dir)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	report := tool.Execute(ctx, plan, migration.Options{DeleteLocal: true})
	if report.Migrated != 1 || report.Failed != 2 || report.ExitCode() == 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Results[0].ID != "a" || report.Results[0].Outcome != migration.OutcomeFailed || report.Results[0].Error == "" {
		t.Fatalf("unexpected first result %+v", report.Results[0])
	}
	if _, err := target.GetRecord(ctx, "a"); err == nil {
		t.Fatal("failed object must not leave a record behind")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.mp4")); err != nil {
		t.Fatalf("failed item must keep its local file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.mp4")); !os.IsNotExist(err) {
		t.Fatalf("migrated item should be deleted locally, stat err=%v", err)
	}
	if !report.Results[1].Deleted {
		t.Fatalf("expected deletion reported: %+v", report.Results[1])
	}
	if _, err := os.Stat(filepath.Join(dir, localfs.MetadataFileName)); err != nil {
		t.Fatalf("metadata file must be left in place: %v", err)
	}

	// Once the fault clears only the failed item is pending.
	target.Objects.FailKey(storage.ObjectKey("Rivers", "a"), nil)
	next, err := tool.Plan(ctx, dir)
	if err != nil {
		t.Fatalf("replan: %v", err)
	}
	pending := next.Pending()
	if len(pending) != 1 || pending[0].Record.ID != "a" {
		t.Fatalf("expected only a pending, got %+v", pending)
	}
}

func TestExecuteWithWorkers(t *testing.T) {
	var entries []sourceEntry
	for i := 0; i < 12; i++ {
		entries = append(entries, sourceEntry{id: fmt.Sprintf("v%02d", i), topic: "Topic", status: "completed", created: at(i)})
	}
	dir := writeSource(t, entries...)
	target := testsupport.NewMemoryBackend("remote")
	tool := newTool(target)

	plan, err := tool.Plan(context.Background(), dir)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	report := tool.Execute(context.Background(), plan, migration.Options{Workers: 4})
	if report.Migrated != 12 {
		t.Fatalf("unexpected report %+v", report)
	}
	for i, res := range report.Results {
		if res.ID != fmt.Sprintf("v%02d", i) {
			t.Fatalf("results out of plan order at %d: %s", i, res.ID)
		}
	}
}

func TestLoadSourceMergesDatabase(t *testing.T) {
	dir := writeSource(t, sourceEntry{id: "a", topic: "From JSON", status: "completed", created: at(1)})
	ctx := context.Background()

	records, err := sqlitestore.OpenRecords(ctx, filepath.Join(dir, sqlitestore.DatabaseFileName))
	if err != nil {
		t.Fatalf("open records: %v", err)
	}
	dbRecords := []storage.VideoRecord{
		{ID: "a", Filename: "a.mp4", StorageKey: "a.mp4", Topic: "From DB", CreatedAt: at(1), Status: storage.StatusCompleted},
		{ID: "d", Filename: "d.mp4", StorageKey: "d.mp4", Topic: "Only DB", CreatedAt: at(5), Status: storage.StatusCompleted},
	}
	for _, rec := range dbRecords {
		if err := records.Save(ctx, rec); err != nil {
			t.Fatalf("save db record: %v", err)
		}
	}
	_ = records.Close()
	testsupport.WriteFile(t, filepath.Join(dir, "d.mp4"), 64)

	items, err := migration.LoadSource(ctx, dir)
	if err != nil {
		t.Fatalf("load source: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 de-duplicated items, got %d", len(items))
	}
	if items[0].Record.Topic != "From JSON" || items[0].Origin != migration.OriginJSON {
		t.Fatalf("expected metadata file entry to win, got %+v", items[0])
	}
	if items[1].Record.ID != "d" || items[1].LocalPath != filepath.Join(dir, "d.mp4") || items[1].Origin != migration.OriginSQLite {
		t.Fatalf("unexpected database item %+v", items[1])
	}
}

func TestLoadSourceRejectsMissingDirectory(t *testing.T) {
	if _, err := migration.LoadSource(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}

func TestRunRefusesConcurrentMigration(t *testing.T) {
	dir := writeSource(t, sourceEntry{id: "a", topic: "Rivers", status: "completed", created: at(1)})
	release, err := migration.AcquireLock(dir)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer release()

	_, _, err = newTool(testsupport.NewMemoryBackend("remote")).Run(context.Background(), dir, migration.Options{})
	if !errors.Is(err, migration.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
