package daemon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"reelgate/internal/daemon"
	"reelgate/internal/logging"
	"reelgate/internal/testsupport"
	"reelgate/internal/workflow"
)

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	repo := workflow.NewMemoryRepository()
	engine := workflow.NewEngine(repo, testsupport.NewScriptedExecutor(t.TempDir()), testsupport.NewMemoryBackend("memory"), nil, logging.NewNop())
	d, err := daemon.New(cfg, daemon.Components{Engine: engine, Repository: repo}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonServesAndStops(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.Address == "" || status.Backend != "memory" {
		t.Fatalf("unexpected status %+v", status)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + status.Address + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"backend":"memory"`) {
		t.Fatalf("unexpected status response %d: %s", resp.StatusCode, body)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	if _, err := client.Get("http://" + status.Address + "/api/status"); err == nil {
		t.Fatal("expected listener to be closed")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	build := func() *daemon.Daemon {
		repo := workflow.NewMemoryRepository()
		engine := workflow.NewEngine(repo, testsupport.NewScriptedExecutor(t.TempDir()), nil, nil, logging.NewNop())
		d, err := daemon.New(cfg, daemon.Components{Engine: engine, Repository: repo}, logging.NewNop())
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		return d
	}
	first := build()
	second := build()
	ctx := context.Background()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
	second.Stop()
}

func TestDaemonStopsWithContext(t *testing.T) {
	d := newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for d.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not stop after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
