package orchestrator

import (
	"context"
	"sync"

	"github.com/workforcehq/foreman/internal/graph"
	"github.com/workforcehq/foreman/pkg/models"
)

// commandKind identifies a control command sent to a running driver.
type commandKind int

const (
	cmdPause commandKind = iota
	cmdCancel
)

// command is a control request with a reply channel. The driver replies
// once the command is accepted or rejected.
type command struct {
	kind  commandKind
	reply chan error
}

// execution is the engine's internal handle for one execution: the live
// state, its dependency graph, event stream, control channel, and driver
// lifecycle. The driver goroutine is the only writer of exec and task
// state; everyone else reads through Snapshot.
type execution struct {
	exec    *models.Execution
	plan    *models.Plan
	graph   *graph.DependencyGraph
	emitter *StreamEmitter

	// ctx is the execution's lifetime context; cancelled on engine close.
	ctx    context.Context
	cancel context.CancelFunc

	// control carries pause/cancel commands to the driver.
	control chan command

	// ctlMu serializes control operations at the Engine surface so
	// command checks and driver starts can't interleave.
	ctlMu sync.Mutex

	// stateMu guards exec and task fields. The driver holds it for
	// writes; Snapshot holds it for reads.
	stateMu sync.RWMutex

	// driverDone is closed when the current driver goroutine exits.
	// Nil when no driver is running (parked paused, or terminal).
	driverDone chan struct{}
}

// Status reads the execution status.
func (h *execution) Status() models.ExecutionStatus {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.exec.Status
}

// Snapshot returns a deep copy of the execution's observable state.
func (h *execution) Snapshot() *models.Execution {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()

	cp := &models.Execution{
		ID:               h.exec.ID,
		PlanID:           h.exec.PlanID,
		Status:           h.exec.Status,
		CompletedCount:   h.exec.CompletedCount,
		FailedCount:      h.exec.FailedCount,
		SkippedCount:     h.exec.SkippedCount,
		CurrentlyRunning: make(map[string]bool, len(h.exec.CurrentlyRunning)),
		StartedAt:        h.exec.StartedAt,
	}
	if h.exec.FinishedAt != nil {
		t := *h.exec.FinishedAt
		cp.FinishedAt = &t
	}
	for id := range h.exec.CurrentlyRunning {
		cp.CurrentlyRunning[id] = true
	}
	cp.Tasks = make([]*models.Task, len(h.exec.Tasks))
	for i, t := range h.exec.Tasks {
		cp.Tasks[i] = t.Clone()
	}
	return cp
}

// driverRunning reports whether a driver goroutine is currently alive.
// Caller must hold ctlMu.
func (h *execution) driverRunning() bool {
	if h.driverDone == nil {
		return false
	}
	select {
	case <-h.driverDone:
		return false
	default:
		return true
	}
}

// Registry tracks executions by ID. Failed executions are retained so
// they can be rolled back; completed and cancelled ones stay queryable
// until explicitly evicted.
type Registry struct {
	mu         sync.RWMutex
	executions map[string]*execution
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{executions: make(map[string]*execution)}
}

// Add registers an execution handle.
func (r *Registry) Add(h *execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[h.exec.ID] = h
	debugLog("[registry] added execution %s (%d tasks)", h.exec.ID, len(h.exec.Tasks))
}

// Get returns the handle for an execution ID, or nil.
func (r *Registry) Get(id string) *execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executions[id]
}

// Remove drops an execution handle.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.executions, id)
	debugLog("[registry] removed execution %s", id)
}

// IDs returns the IDs of all tracked executions.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.executions))
	for id := range r.executions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked executions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executions)
}
