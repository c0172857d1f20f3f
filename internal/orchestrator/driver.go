package orchestrator

import (
	"context"
	"time"

	"github.com/workforcehq/foreman/internal/runtime"
	"github.com/workforcehq/foreman/pkg/models"
)

// taskOutcome is what a worker goroutine reports back to the driver.
type taskOutcome struct {
	taskID  string
	agent   runtime.AgentHandle
	result  runtime.TaskResult
	retries int
	err     error
}

// driveState is the driver's private view of the loop. Flags latch: once
// set they only clear when the driver exits.
type driveState struct {
	inflight     map[string]struct{}
	completionCh chan taskOutcome
	// pausing stops dispatch; the driver parks paused once in-flight drains.
	pausing bool
	// cancelling stops dispatch; the driver finishes cancelled once drained.
	cancelling bool
	// aborting stops dispatch after a permanent failure under PolicyAbort;
	// the driver finishes failed once drained.
	aborting bool
}

// drive is the main loop for one execution. It is the only writer of
// execution and task state while it runs. Exactly one driver exists per
// execution at a time; pause parks it and resume starts a fresh one.
func (e *Engine) drive(h *execution) {
	defer close(h.driverDone)

	st := &driveState{
		inflight:     make(map[string]struct{}),
		completionCh: make(chan taskOutcome, e.opts.MaxConcurrency),
	}

	// shutdown is nilled once cancellation latches so the select below
	// doesn't spin on the closed channel while workers unwind.
	shutdown := h.ctx.Done()

	for {
		// Drain any queued control commands before dispatching.
	drainControl:
		for {
			select {
			case cmd := <-h.control:
				e.handleCommand(h, st, cmd)
			default:
				break drainControl
			}
		}

		if !st.pausing && !st.cancelling && !st.aborting {
			e.dispatchReady(h, st)
		}

		if len(st.inflight) == 0 {
			switch {
			case st.cancelling:
				e.finishCancelled(h)
				return
			case st.pausing:
				e.parkPaused(h)
				return
			case st.aborting:
				e.finishFailed(h, "task failure")
				return
			default:
				if len(h.graph.GetReady()) == 0 {
					// Nothing running and nothing dispatchable: done.
					e.finalize(h)
					return
				}
				// Dispatch was skipped this iteration (saturation edge);
				// loop around and dispatch.
				continue
			}
		}

		// Block for the next completion or control command.
		select {
		case cmd := <-h.control:
			e.handleCommand(h, st, cmd)
		case out := <-st.completionCh:
			e.applyOutcome(h, st, out)
		case <-shutdown:
			// Engine shutdown: treat like cancel so workers unwind and
			// the stream gets a terminal event.
			st.cancelling = true
			shutdown = nil
		}
	}
}

// handleCommand applies a control command inside the driver loop.
func (e *Engine) handleCommand(h *execution, st *driveState, cmd command) {
	switch cmd.kind {
	case cmdPause:
		if st.pausing || st.cancelling || st.aborting {
			cmd.reply <- ErrInvalidExecutionState
			return
		}
		debugLog("[driver %s] pause accepted, %d in flight", h.exec.ID, len(st.inflight))
		st.pausing = true
		cmd.reply <- nil
	case cmdCancel:
		if st.cancelling {
			cmd.reply <- ErrInvalidExecutionState
			return
		}
		debugLog("[driver %s] cancel accepted, %d in flight", h.exec.ID, len(st.inflight))
		st.cancelling = true
		st.pausing = false
		cmd.reply <- nil
	default:
		cmd.reply <- ErrInvalidExecutionState
	}
}

// dispatchReady starts workers for ready tasks up to the concurrency cap.
// A task is marked running and its task_start emitted before the worker
// goroutine exists, so the stream never shows a start out of order and a
// task can never be dispatched twice.
func (e *Engine) dispatchReady(h *execution, st *driveState) {
	readyIDs := h.graph.GetReady()
	if len(readyIDs) == 0 {
		return
	}
	debugLog("[driver %s] %d ready, %d in flight, cap %d", h.exec.ID, len(readyIDs), len(st.inflight), e.opts.MaxConcurrency)

	for _, id := range readyIDs {
		if len(st.inflight) >= e.opts.MaxConcurrency {
			return
		}
		if st.aborting || st.pausing || st.cancelling {
			return
		}
		if _, running := st.inflight[id]; running {
			continue
		}

		task := h.exec.Task(id)
		if task == nil {
			continue
		}

		agent, err := e.runtime.ResolveAgent(h.ctx, task.RequiredAgent, task.Domain)
		if err != nil {
			// Resolution failures are permanent task failures: no worker
			// exists that could ever run this task.
			e.failTask(h, st, task, runtime.AgentHandle{}, 0, err)
			continue
		}

		now := time.Now()
		h.stateMu.Lock()
		task.Status = models.TaskStatusRunning
		task.StartedAt = &now
		h.exec.CurrentlyRunning[task.ID] = true
		h.stateMu.Unlock()

		st.inflight[task.ID] = struct{}{}

		h.emitter.Emit(models.UpdateTaskStart, task.ID, models.TaskStartData{
			Title:     task.Title,
			AgentID:   agent.ID,
			AgentName: agent.Name,
		})

		go func(task *models.Task, agent runtime.AgentHandle) {
			result, retries, err := runtime.RunWithRetry(h.ctx, e.opts.Retry, task, func(ctx context.Context) (runtime.TaskResult, error) {
				return e.runtime.RunTask(ctx, agent, task)
			})
			st.completionCh <- taskOutcome{
				taskID:  task.ID,
				agent:   agent,
				result:  result,
				retries: retries,
				err:     err,
			}
		}(task, agent)
	}
}

// applyOutcome records a worker result: state, counters, checkpoint, and
// events. Failures trigger the failure policy.
func (e *Engine) applyOutcome(h *execution, st *driveState, out taskOutcome) {
	delete(st.inflight, out.taskID)

	task := h.exec.Task(out.taskID)
	if task == nil {
		return
	}

	if out.err != nil {
		e.failTask(h, st, task, out.agent, out.retries, out.err)
		return
	}

	now := time.Now()
	h.stateMu.Lock()
	delete(h.exec.CurrentlyRunning, task.ID)
	task.Status = models.TaskStatusCompleted
	task.Result = out.result.Output
	task.Retries = out.retries
	task.CompletedAt = &now
	h.exec.CompletedCount++
	h.stateMu.Unlock()

	h.graph.MarkComplete(task.ID)
	e.promoteReady(h, task.ID)

	for _, msg := range out.result.Messages {
		h.emitter.Emit(models.UpdateAgentMessage, task.ID, models.AgentMessageData{
			AgentID: out.agent.ID,
			Message: msg,
		})
	}
	h.emitter.Emit(models.UpdateTaskComplete, task.ID, models.TaskCompleteData{
		Title:      task.Title,
		Result:     out.result.Output,
		DurationMs: out.result.Duration.Milliseconds(),
	})

	cp := e.checkpoints.Capture(h.exec, task.ID)
	e.persistCheckpoint(cp)
	e.persistExecution(h)

	debugLog("[driver %s] task %s completed (%d/%d)", h.exec.ID, task.ID, h.exec.CompletedCount, len(h.exec.Tasks))
}

// promoteReady flips dependents of a just-completed task from pending to
// ready once their dependencies are all complete, so snapshots show
// dispatchable work as ready rather than pending. Runs even while
// pausing, which is when the distinction is observable.
func (e *Engine) promoteReady(h *execution, taskID string) {
	for _, depID := range h.graph.GetDependents(taskID) {
		t := h.exec.Task(depID)
		if t == nil || !h.graph.DependenciesComplete(depID) {
			continue
		}
		h.stateMu.Lock()
		if t.Status == models.TaskStatusPending {
			t.Status = models.TaskStatusReady
		}
		h.stateMu.Unlock()
	}
}

// failTask marks a task failed, emits task_error, and applies the failure
// policy: abort latches the abort flag, best-effort skips the task's
// dependents so independent branches keep running.
func (e *Engine) failTask(h *execution, st *driveState, task *models.Task, agent runtime.AgentHandle, retries int, taskErr error) {
	now := time.Now()
	h.stateMu.Lock()
	delete(h.exec.CurrentlyRunning, task.ID)
	task.Status = models.TaskStatusFailed
	task.Error = taskErr.Error()
	task.Retries = retries
	task.CompletedAt = &now
	h.exec.FailedCount++
	h.stateMu.Unlock()

	h.emitter.Emit(models.UpdateTaskError, task.ID, models.TaskErrorData{
		Title:   task.Title,
		Error:   taskErr.Error(),
		Retries: retries,
	})

	debugLog("[driver %s] task %s failed after %d retries: %v", h.exec.ID, task.ID, retries, taskErr)

	switch e.opts.FailurePolicy {
	case PolicyBestEffort:
		e.skipDescendants(h, task.ID)
	default:
		st.aborting = true
	}

	e.persistExecution(h)
}

// skipDescendants marks every not-yet-terminal transitive dependent of a
// failed task as skipped.
func (e *Engine) skipDescendants(h *execution, taskID string) {
	for _, depID := range h.graph.Descendants(taskID) {
		t := h.exec.Task(depID)
		if t == nil {
			continue
		}
		h.stateMu.Lock()
		if t.Status == models.TaskStatusPending || t.Status == models.TaskStatusReady {
			t.Status = models.TaskStatusSkipped
			h.exec.SkippedCount++
			debugLog("[driver %s] skipped task %s (depends on failed %s)", h.exec.ID, depID, taskID)
		}
		h.stateMu.Unlock()
	}
}

// skipRemaining marks every pending or ready task skipped. Used when an
// execution ends early (abort or cancel) so every task reaches a terminal
// status and the counts add up.
func (e *Engine) skipRemaining(h *execution) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	for _, t := range h.exec.Tasks {
		if t.Status == models.TaskStatusPending || t.Status == models.TaskStatusReady {
			t.Status = models.TaskStatusSkipped
			h.exec.SkippedCount++
		}
	}
}

// finalize ends an execution whose work ran out naturally: completed when
// every task completed, failed otherwise (best-effort runs with failures).
func (e *Engine) finalize(h *execution) {
	h.stateMu.RLock()
	failed := h.exec.FailedCount > 0
	h.stateMu.RUnlock()

	if failed {
		e.finishFailed(h, "task failure")
		return
	}

	e.setStatus(h, models.ExecutionCompleted, "all tasks completed")
	h.emitter.Close()
	debugLog("[driver %s] completed", h.exec.ID)
}

// finishFailed ends an execution as failed once in-flight work drained.
// The handle stays in the registry so the execution can be rolled back.
func (e *Engine) finishFailed(h *execution, reason string) {
	e.skipRemaining(h)
	e.setStatus(h, models.ExecutionFailed, reason)
	h.emitter.Close()
	debugLog("[driver %s] failed: %s", h.exec.ID, reason)
}

// finishCancelled ends an execution as cancelled. In-flight results were
// already recorded to the history; remaining tasks are skipped. Cancelled
// executions cannot be rolled back, so their checkpoint chain is dropped.
func (e *Engine) finishCancelled(h *execution) {
	e.skipRemaining(h)
	e.setStatus(h, models.ExecutionCancelled, "cancelled")
	h.emitter.Close()
	e.checkpoints.Drop(h.exec.ID)
	debugLog("[driver %s] cancelled", h.exec.ID)
}

// parkPaused records the paused state and lets the driver exit. The
// stream stays open; Resume starts a fresh driver that continues it.
func (e *Engine) parkPaused(h *execution) {
	e.setStatus(h, models.ExecutionPaused, "paused")
	debugLog("[driver %s] parked paused", h.exec.ID)
}

// setStatus transitions the execution status, stamps FinishedAt for
// terminal states, emits the status event, and persists.
func (e *Engine) setStatus(h *execution, status models.ExecutionStatus, reason string) {
	h.stateMu.Lock()
	h.exec.Status = status
	if status.Terminal() && h.exec.FinishedAt == nil {
		now := time.Now()
		h.exec.FinishedAt = &now
	}
	progress := h.exec.Progress()
	h.stateMu.Unlock()

	h.emitter.Emit(models.UpdateStatus, "", models.StatusData{
		Status:   status,
		Progress: progress,
		Reason:   reason,
	})
	e.persistExecution(h)
}
