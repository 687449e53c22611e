package intake

import (
	"sync"

	"github.com/agencykit/intake/pkg/reconcile"
)

// Hook function types for record events.
type (
	// RecordCreatedHook is called when a row created a new record.
	RecordCreatedHook func(outcome reconcile.Outcome)

	// RecordUpdatedHook is called when a row matched an existing record,
	// including no-op merges.
	RecordUpdatedHook func(outcome reconcile.Outcome)

	// ConflictHook is called when a row's source conflicted with a record's
	// owning source.
	ConflictHook func(outcome reconcile.Outcome)
)

// hooks manages event callbacks for reconciliation outcomes.
type hooks struct {
	mu         sync.RWMutex
	onCreated  []RecordCreatedHook
	onUpdated  []RecordUpdatedHook
	onConflict []ConflictHook
}

// newHooks creates a new hooks instance.
func newHooks() *hooks {
	return &hooks{}
}

// OnRecordCreated registers a callback for created records.
func (in *Intake) OnRecordCreated(fn RecordCreatedHook) {
	in.hooks.mu.Lock()
	defer in.hooks.mu.Unlock()
	in.hooks.onCreated = append(in.hooks.onCreated, fn)
}

// OnRecordUpdated registers a callback for updated records.
func (in *Intake) OnRecordUpdated(fn RecordUpdatedHook) {
	in.hooks.mu.Lock()
	defer in.hooks.mu.Unlock()
	in.hooks.onUpdated = append(in.hooks.onUpdated, fn)
}

// OnConflict registers a callback for ownership conflicts.
func (in *Intake) OnConflict(fn ConflictHook) {
	in.hooks.mu.Lock()
	defer in.hooks.mu.Unlock()
	in.hooks.onConflict = append(in.hooks.onConflict, fn)
}

// trigger invokes the hooks matching an outcome. Called from the
// orchestrator after store writes complete, never from workers.
func (h *hooks) trigger(outcome reconcile.Outcome) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch outcome.Kind {
	case reconcile.Created:
		for _, fn := range h.onCreated {
			fn(outcome)
		}
	case reconcile.Updated:
		for _, fn := range h.onUpdated {
			fn(outcome)
		}
	}

	if outcome.Conflict {
		for _, fn := range h.onConflict {
			fn(outcome)
		}
	}
}
