package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelgate/internal/api"
	"reelgate/internal/config"
	"reelgate/internal/logging"
	"reelgate/internal/workflow"
)

// ErrAlreadyRunning reports that another instance holds the lock.
var ErrAlreadyRunning = errors.New("another reelgate instance is already running")

// Components are the wired services the daemon serves and shuts down.
type Components struct {
	Engine     *workflow.Engine
	Repository workflow.Repository
	Health     api.HealthSource
}

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	components Components

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	running  atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	LockFilePath string
	Backend      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, components Components, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || components.Engine == nil || components.Repository == nil {
		return nil, errors.New("daemon requires config, workflow engine, and repository")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		components: components,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the lock and begins serving. It returns once the listener
// is bound.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	bind := strings.TrimSpace(d.cfg.Paths.APIBind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("api listen: %w", err)
	}

	handler := api.NewServer(api.Options{
		Engine:   d.components.Engine,
		Health:   d.components.Health,
		RunStore: d.cfg.Workflow.RunStore,
		Logger:   d.logger,
	}).Handler()
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation requests wait on the agent.
		WriteTimeout: time.Duration(d.cfg.Workflow.AgentTimeoutSeconds*(d.cfg.Workflow.AgentRetries+1))*time.Second + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	d.mu.Lock()
	d.listener = listener
	d.server = server
	d.mu.Unlock()
	d.running.Store(true)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("api server error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "api_server_failed"),
			)
		}
	}()
	go func() {
		<-ctx.Done()
		d.Stop()
	}()

	backend := ""
	if b := d.components.Engine.Backend(); b != nil {
		backend = b.Name()
	}
	d.logger.Info("reelgate daemon started",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldBackend, backend),
		logging.String("run_store", d.cfg.Workflow.RunStore),
	)
	return nil
}

// Stop shuts the HTTP server down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}
	d.mu.Lock()
	server := d.server
	d.server = nil
	d.listener = nil
	d.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("api server shutdown incomplete", logging.Error(err))
		}
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.logger.Info("reelgate daemon stopped")
}

// Close stops the daemon and releases the repository and backend.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if err := d.components.Repository.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close workflow store: %w", err))
	}
	if backend := d.components.Engine.Backend(); backend != nil {
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage backend: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	status := Status{Running: d.running.Load(), LockFilePath: d.lockPath}
	d.mu.Lock()
	if d.listener != nil {
		status.Address = d.listener.Addr().String()
	}
	d.mu.Unlock()
	if backend := d.components.Engine.Backend(); backend != nil {
		status.Backend = backend.Name()
	}
	return status
}
