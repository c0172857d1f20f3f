package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/workforcehq/foreman/internal/checkpoint"
	"github.com/workforcehq/foreman/internal/decompose"
	"github.com/workforcehq/foreman/internal/estimate"
	"github.com/workforcehq/foreman/internal/graph"
	"github.com/workforcehq/foreman/internal/runtime"
	"github.com/workforcehq/foreman/pkg/models"
)

// Engine is the orchestration facade: plan a request, preview its cost,
// execute it, and control the resulting execution through its lifetime.
// All methods are safe for concurrent use.
type Engine struct {
	adapter     *decompose.Adapter
	runtime     runtime.Runtime
	estimator   *estimate.Estimator
	checkpoints *checkpoint.Manager
	registry    *Registry
	opts        Options

	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewEngine creates an engine over the given planner and agent runtime.
func NewEngine(planner decompose.Planner, rt runtime.Runtime, est *estimate.Estimator, opts Options) *Engine {
	if est == nil {
		est = estimate.NewEstimator(nil)
	}
	opts = opts.withDefaults()
	SetPackageLogger(opts.Logger)

	baseCtx, cancelBase := context.WithCancel(context.Background())
	return &Engine{
		adapter:     decompose.NewAdapter(planner),
		runtime:     rt,
		estimator:   est,
		checkpoints: checkpoint.NewManager(),
		registry:    NewRegistry(),
		opts:        opts,
		baseCtx:     baseCtx,
		cancelBase:  cancelBase,
	}
}

// Plan decomposes a request into a validated plan without executing it.
func (e *Engine) Plan(ctx context.Context, request, actorID string) (*models.Plan, error) {
	return e.adapter.Decompose(ctx, request, actorID)
}

// Preview decomposes a request and estimates its cost and duration. No
// execution state is created.
func (e *Engine) Preview(ctx context.Context, request, actorID string) (*models.Plan, models.Estimate, error) {
	plan, err := e.adapter.Decompose(ctx, request, actorID)
	if err != nil {
		return nil, models.Estimate{}, err
	}
	return plan, e.estimator.Estimate(plan), nil
}

// Estimate prices an already-built plan.
func (e *Engine) Estimate(plan *models.Plan) models.Estimate {
	return e.estimator.Estimate(plan)
}

// Execute starts executing a plan and returns the execution ID and its
// event stream. The returned channel replays from the first event and
// closes when the execution reaches a terminal status. Task failures are
// never returned here; they surface as task_error events and the final
// execution status.
func (e *Engine) Execute(ctx context.Context, plan *models.Plan) (string, <-chan models.ExecutionUpdate, error) {
	if plan == nil || len(plan.Tasks) == 0 {
		return "", nil, fmt.Errorf("execute: empty plan")
	}

	tasks := plan.CloneTasks()
	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return "", nil, fmt.Errorf("execute plan %s: %w", plan.ID, err)
	}

	exec := &models.Execution{
		ID:               uuid.New().String()[:8],
		PlanID:           plan.ID,
		Status:           models.ExecutionRunning,
		Tasks:            tasks,
		CurrentlyRunning: make(map[string]bool),
		StartedAt:        time.Now(),
	}

	execCtx, cancel := context.WithCancel(e.baseCtx)
	h := &execution{
		exec:    exec,
		plan:    plan,
		graph:   g,
		emitter: NewStreamEmitter(exec.ID, e.opts.EventBuffer),
		ctx:     execCtx,
		cancel:  cancel,
		control: make(chan command, 8),
	}
	if e.opts.Store != nil {
		h.emitter.SetSink(func(u models.ExecutionUpdate) {
			if err := e.opts.Store.AppendEvent(u); err != nil {
				log.Printf("[engine] persist event %s/%d: %v", u.ExecutionID, u.Seq, err)
			}
		})
	}

	e.registry.Add(h)
	log.Printf("[engine] execution %s started: plan %s, %d tasks, concurrency %d, policy %s",
		exec.ID, plan.ID, len(tasks), e.opts.MaxConcurrency, e.opts.FailurePolicy)

	events, _ := h.emitter.Watch(0)
	h.emitter.Emit(models.UpdateStatus, "", models.StatusData{
		Status:   models.ExecutionRunning,
		Progress: 0,
		Reason:   "started",
	})
	e.persistExecution(h)

	h.ctlMu.Lock()
	e.startDriver(h)
	h.ctlMu.Unlock()
	return exec.ID, events, nil
}

// startDriver spawns a fresh driver goroutine for the handle.
// Caller must ensure no driver is currently running.
func (e *Engine) startDriver(h *execution) {
	h.driverDone = make(chan struct{})
	go e.drive(h)
}

// Pause asks a running execution to stop dispatching. In-flight tasks
// finish and are recorded; the execution parks paused at that safe point.
func (e *Engine) Pause(executionID string) error {
	h := e.registry.Get(executionID)
	if h == nil {
		return ErrInvalidExecutionState
	}

	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()

	if h.Status() != models.ExecutionRunning || !h.driverRunning() {
		return ErrInvalidExecutionState
	}

	return e.sendCommand(h, cmdPause)
}

// Resume continues a paused execution and returns the continuation of its
// event stream, starting at the resume status event. The original stream
// channels remain live too; Seq ordering is shared.
func (e *Engine) Resume(executionID string) (<-chan models.ExecutionUpdate, error) {
	h := e.registry.Get(executionID)
	if h == nil {
		return nil, ErrInvalidExecutionState
	}

	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()

	if h.Status() != models.ExecutionPaused || h.driverRunning() {
		return nil, ErrInvalidExecutionState
	}

	fromSeq := h.emitter.NextSeq()
	events, _ := h.emitter.Watch(fromSeq)

	h.stateMu.Lock()
	h.exec.Status = models.ExecutionRunning
	progress := h.exec.Progress()
	h.stateMu.Unlock()

	h.emitter.Emit(models.UpdateStatus, "", models.StatusData{
		Status:   models.ExecutionRunning,
		Progress: progress,
		Reason:   "resumed",
	})
	e.persistExecution(h)

	log.Printf("[engine] execution %s resumed", executionID)
	e.startDriver(h)
	return events, nil
}

// Cancel stops an execution permanently. In-flight tasks are awaited and
// their results recorded to the history; everything else is skipped and
// the execution finishes cancelled. Valid for running and paused
// executions.
func (e *Engine) Cancel(executionID string) error {
	h := e.registry.Get(executionID)
	if h == nil {
		return ErrInvalidExecutionState
	}

	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()

	switch h.Status() {
	case models.ExecutionRunning:
		if !h.driverRunning() {
			return ErrInvalidExecutionState
		}
		return e.sendCommand(h, cmdCancel)
	case models.ExecutionPaused:
		// No driver to signal; finish directly.
		e.finishCancelled(h)
		log.Printf("[engine] execution %s cancelled while paused", executionID)
		return nil
	default:
		return ErrInvalidExecutionState
	}
}

// Rollback restores an execution to the checkpoint taken when taskID
// completed, truncates the later history, and re-enters running with a
// fresh driver. Valid for paused and failed executions; a running
// execution must be paused first.
func (e *Engine) Rollback(executionID, taskID string) error {
	h := e.registry.Get(executionID)
	if h == nil {
		return ErrInvalidExecutionState
	}

	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()

	status := h.Status()
	if status != models.ExecutionPaused && status != models.ExecutionFailed {
		return ErrInvalidExecutionState
	}
	if h.driverRunning() {
		return ErrInvalidExecutionState
	}

	cp, err := e.checkpoints.Rollback(h.exec, taskID)
	if err != nil {
		return err
	}

	e.restoreCheckpoint(h, cp)

	if e.opts.Store != nil {
		if err := e.opts.Store.DeleteCheckpointsAfter(executionID, cp.ID); err != nil {
			log.Printf("[engine] truncate persisted checkpoints for %s: %v", executionID, err)
		}
	}

	// A failed execution closed its stream with the final status event;
	// the rollback continues the same history.
	h.emitter.Reopen()

	h.stateMu.Lock()
	h.exec.Status = models.ExecutionRunning
	h.exec.FinishedAt = nil
	progress := h.exec.Progress()
	h.stateMu.Unlock()

	h.emitter.Emit(models.UpdateStatus, "", models.StatusData{
		Status:   models.ExecutionRunning,
		Progress: progress,
		Reason:   fmt.Sprintf("rolled back to task %s", taskID),
	})
	e.persistExecution(h)

	log.Printf("[engine] execution %s rolled back to task %s", executionID, taskID)
	e.startDriver(h)
	return nil
}

// restoreCheckpoint rewrites execution and graph state from a snapshot.
// Tasks that were in flight at capture time come back as pending; counters
// are recomputed from the restored statuses.
func (e *Engine) restoreCheckpoint(h *execution, cp *models.Checkpoint) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	var completed, failed, skipped int
	var resetIDs []string
	var completedIDs []string

	for _, t := range h.exec.Tasks {
		snap, ok := cp.TaskStates[t.ID]
		if !ok {
			snap = models.TaskSnapshot{Status: models.TaskStatusPending}
		}

		switch snap.Status {
		case models.TaskStatusCompleted:
			completed++
			completedIDs = append(completedIDs, t.ID)
		case models.TaskStatusFailed:
			failed++
		case models.TaskStatusSkipped:
			skipped++
		case models.TaskStatusRunning, models.TaskStatusReady:
			// In flight or dispatchable at capture time; it has to run
			// again from scratch.
			snap.Status = models.TaskStatusPending
			snap.Result = ""
			snap.Error = ""
		}

		if t.Status != snap.Status {
			resetIDs = append(resetIDs, t.ID)
		}
		t.Status = snap.Status
		t.Result = snap.Result
		t.Error = snap.Error
		if snap.Status != models.TaskStatusCompleted && snap.Status != models.TaskStatusFailed {
			t.StartedAt = nil
			t.CompletedAt = nil
			t.Retries = 0
		}
	}

	h.exec.CompletedCount = completed
	h.exec.FailedCount = failed
	h.exec.SkippedCount = skipped
	h.exec.CurrentlyRunning = make(map[string]bool)

	h.graph.Reset(resetIDs)
	for _, id := range completedIDs {
		h.graph.MarkComplete(id)
	}
}

// Watch subscribes to an execution's event stream starting at fromSeq.
// Earlier events replay from the history; cancelling the returned func
// detaches the subscriber without affecting the execution.
func (e *Engine) Watch(executionID string, fromSeq int64) (<-chan models.ExecutionUpdate, func(), error) {
	h := e.registry.Get(executionID)
	if h == nil {
		return nil, nil, ErrInvalidExecutionState
	}
	events, cancel := h.emitter.Watch(fromSeq)
	return events, cancel, nil
}

// Get returns a snapshot of an execution's current state.
func (e *Engine) Get(executionID string) (*models.Execution, error) {
	h := e.registry.Get(executionID)
	if h == nil {
		return nil, ErrInvalidExecutionState
	}
	return h.Snapshot(), nil
}

// History returns the full event history recorded so far for an execution.
func (e *Engine) History(executionID string) ([]models.ExecutionUpdate, error) {
	h := e.registry.Get(executionID)
	if h == nil {
		return nil, ErrInvalidExecutionState
	}
	return h.emitter.History(), nil
}

// Evict removes a terminal execution from the registry. Failed executions
// are evictable too, but never automatically: they stay around so they
// can be rolled back.
func (e *Engine) Evict(executionID string) error {
	h := e.registry.Get(executionID)
	if h == nil {
		return ErrInvalidExecutionState
	}

	h.ctlMu.Lock()
	defer h.ctlMu.Unlock()

	if !h.Status().Terminal() || h.driverRunning() {
		return ErrInvalidExecutionState
	}

	e.checkpoints.Drop(executionID)
	e.registry.Remove(executionID)
	return nil
}

// Close shuts the engine down: every live driver sees a cancelled context,
// finishes its executions as cancelled, and closes its stream.
func (e *Engine) Close() {
	e.cancelBase()
	for _, id := range e.registry.IDs() {
		h := e.registry.Get(id)
		if h == nil {
			continue
		}
		h.ctlMu.Lock()
		done := h.driverDone
		h.ctlMu.Unlock()
		if done != nil {
			<-done
		}
	}
}

// sendCommand delivers a control command to the driver and waits for the
// accept/reject reply.
func (e *Engine) sendCommand(h *execution, kind commandKind) error {
	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case h.control <- cmd:
	case <-h.driverDone:
		return ErrInvalidExecutionState
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-h.driverDone:
		return ErrInvalidExecutionState
	}
}

// persistExecution writes the execution row and its tasks, when a store
// is configured. Persistence failures are logged, never fatal: the
// in-memory engine stays authoritative.
func (e *Engine) persistExecution(h *execution) {
	if e.opts.Store == nil {
		return
	}
	snap := h.Snapshot()
	if err := e.opts.Store.SaveExecution(snap, h.plan.Request); err != nil {
		log.Printf("[engine] persist execution %s: %v", h.exec.ID, err)
	}
}

// persistCheckpoint writes a checkpoint row, when a store is configured.
func (e *Engine) persistCheckpoint(cp *models.Checkpoint) {
	if e.opts.Store == nil {
		return
	}
	if err := e.opts.Store.SaveCheckpoint(cp); err != nil {
		log.Printf("[engine] persist checkpoint %s: %v", cp.ID, err)
	}
}
