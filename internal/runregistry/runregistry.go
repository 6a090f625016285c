// Package runregistry holds the in-memory RunState of recent runs so the
// read-only inspection API (spec.md §4.10) can answer "what is this run
// doing right now" without a database round trip. It is process-local —
// restarting the binary loses history, which is acceptable since the
// durable record of a run's outcome is the categories table and the
// blueprint file, not the RunState itself.
package runregistry

import (
	"sync"

	"github.com/romangod6/catscout/internal/models"
)

// Registry is safe for concurrent use by the Orchestrator (writer) and
// the API server (reader).
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*models.RunState
	maxKept int
	order   []string
}

// New builds a Registry that retains at most maxKept run records,
// evicting the oldest when full.
func New(maxKept int) *Registry {
	if maxKept <= 0 {
		maxKept = 100
	}
	return &Registry{byID: make(map[string]*models.RunState), maxKept: maxKept}
}

// Put records or updates a run's current state. The Orchestrator calls it
// on every stage transition with the *models.RunState it mutates in place;
// Put stores a shallow copy taken on the caller's goroutine, and Get and
// List return copies of that, so readers never touch the live state and
// see the stage as of the latest Put.
func (r *Registry) Put(state *models.RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[state.RunID]; !exists {
		r.order = append(r.order, state.RunID)
		if len(r.order) > r.maxKept {
			oldest := r.order[0]
			r.order = r.order[1:]
			delete(r.byID, oldest)
		}
	}
	snapshot := *state
	r.byID[state.RunID] = &snapshot
}

// Get returns the run state for runID, or nil if unknown.
func (r *Registry) Get(runID string) *models.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.byID[runID]
	if !ok {
		return nil
	}
	copy := *state
	return &copy
}

// List returns every retained run state, most recently started first.
func (r *Registry) List() []*models.RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.RunState, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if state, ok := r.byID[r.order[i]]; ok {
			copy := *state
			out = append(out, &copy)
		}
	}
	return out
}
