package migration

import (
	"context"

	"reelgate/internal/storage"
)

// Action is what a plan intends to do with one item.
type Action string

const (
	ActionMigrate Action = "migrate"
	ActionSkip    Action = "skip"
	// ActionMissing marks items whose local file could not be found. They
	// count as failures when the plan is executed.
	ActionMissing Action = "missing"
)

// PlannedItem pairs a local item with its action.
type PlannedItem struct {
	Item
	Action Action
	Reason string
}

// Plan is the dry-run result for one source and target.
type Plan struct {
	Source string
	Target string
	Items  []PlannedItem
}

// Count returns how many items carry action.
func (p Plan) Count(action Action) int {
	n := 0
	for _, item := range p.Items {
		if item.Action == action {
			n++
		}
	}
	return n
}

// Pending returns the items that would be copied.
func (p Plan) Pending() []PlannedItem {
	var out []PlannedItem
	for _, item := range p.Items {
		if item.Action == ActionMigrate {
			out = append(out, item)
		}
	}
	return out
}

// BuildPlan diffs the items in sourceDir against target. It has no side
// effects.
func BuildPlan(ctx context.Context, sourceDir string, target storage.Backend) (Plan, error) {
	items, err := LoadSource(ctx, sourceDir)
	if err != nil {
		return Plan{}, err
	}
	existing, err := target.ListRecords(ctx)
	if err != nil {
		return Plan{}, err
	}
	present := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		present[rec.ID] = struct{}{}
	}

	plan := Plan{Source: sourceDir, Target: target.Name(), Items: make([]PlannedItem, 0, len(items))}
	for _, item := range items {
		planned := PlannedItem{Item: item}
		switch {
		case hasID(present, item.Record.ID):
			planned.Action = ActionSkip
			planned.Reason = "already in target"
		case item.LocalPath == "":
			planned.Action = ActionMissing
			planned.Reason = "local file not found"
		default:
			planned.Action = ActionMigrate
		}
		plan.Items = append(plan.Items, planned)
	}
	return plan, nil
}

func hasID(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
