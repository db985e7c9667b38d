package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"reelgate/internal/services"
)

// Repository persists workflow snapshots. Implementations must return copies
// so callers cannot mutate stored state.
type Repository interface {
	// Create stores a new workflow; the id must be unused.
	Create(ctx context.Context, wf Workflow) error
	// Get returns the workflow or an error wrapping services.ErrNotFound.
	Get(ctx context.Context, id string) (Workflow, error)
	// Save replaces an existing workflow.
	Save(ctx context.Context, wf Workflow) error
	// List returns every workflow, newest first.
	List(ctx context.Context) ([]Workflow, error)
	Close() error
}

// MemoryRepository keeps workflows in process memory.
type MemoryRepository struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{workflows: make(map[string]Workflow)}
}

func (r *MemoryRepository) Create(_ context.Context, wf Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[wf.ID]; exists {
		return services.Wrap(services.ErrValidation, "workflow-store", "create", fmt.Sprintf("workflow %s already exists", wf.ID), nil)
	}
	r.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.workflows[id]
	if !ok {
		return Workflow{}, NotFound(id)
	}
	return wf.Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, wf Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workflows[wf.ID]; !ok {
		return NotFound(wf.ID)
	}
	r.workflows[wf.ID] = wf.Clone()
	return nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Workflow, error) {
	r.mu.RLock()
	out := make([]Workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf.Clone())
	}
	r.mu.RUnlock()
	SortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }

// NotFound builds the error returned for an unknown workflow id.
func NotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "workflow", "lookup", fmt.Sprintf("workflow %s", id), nil)
}

// SortNewestFirst orders workflows by creation time descending, then id.
func SortNewestFirst(workflows []Workflow) {
	sort.SliceStable(workflows, func(i, j int) bool {
		if !workflows[i].CreatedAt.Equal(workflows[j].CreatedAt) {
			return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
		}
		return workflows[i].ID > workflows[j].ID
	})
}
