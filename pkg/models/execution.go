package models

import "time"

// ExecutionStatus represents the current state of an execution.
type ExecutionStatus string

const (
	// ExecutionRunning indicates the execution is dispatching tasks.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionPaused indicates dispatch is suspended; in-flight tasks finish.
	ExecutionPaused ExecutionStatus = "paused"
	// ExecutionCompleted indicates every task completed.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed indicates a required task failed under the abort policy.
	ExecutionFailed ExecutionStatus = "failed"
	// ExecutionCancelled indicates the execution was cancelled by a caller.
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionRunning, ExecutionPaused, ExecutionCompleted,
		ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is final for an execution.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// Execution is the mutable runtime instance of a plan.
type Execution struct {
	// ID is the unique identifier for this execution.
	ID string `json:"id"`
	// PlanID is the plan this execution was created from.
	PlanID string `json:"plan_id"`
	// Status is the current execution state.
	Status ExecutionStatus `json:"status"`
	// Tasks is the live (mutable-status) copy of the plan's tasks.
	Tasks []*Task `json:"tasks"`
	// CompletedCount is the number of tasks that completed.
	CompletedCount int `json:"completed_count"`
	// FailedCount is the number of tasks that failed.
	FailedCount int `json:"failed_count"`
	// SkippedCount is the number of tasks that were skipped.
	SkippedCount int `json:"skipped_count"`
	// CurrentlyRunning is the set of task IDs in flight.
	CurrentlyRunning map[string]bool `json:"currently_running"`
	// StartedAt is when the execution was created.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the execution reached a terminal status.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Progress returns completion as a percentage of the total task count.
func (e *Execution) Progress() float64 {
	if len(e.Tasks) == 0 {
		return 0
	}
	return float64(e.CompletedCount) / float64(len(e.Tasks)) * 100
}

// Task returns the live task with the given ID, or nil if not found.
func (e *Execution) Task(id string) *Task {
	for _, t := range e.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// PendingCount returns the number of tasks not yet in a terminal status
// and not currently running.
func (e *Execution) PendingCount() int {
	n := 0
	for _, t := range e.Tasks {
		if !t.Status.Terminal() && t.Status != TaskStatusRunning {
			n++
		}
	}
	return n
}

// Checkpoint is an immutable record of execution state taken after a task
// completion. It captures enough to roll the execution back to "as if
// everything after this task never ran".
type Checkpoint struct {
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// ExecutionID is the execution this checkpoint belongs to.
	ExecutionID string `json:"execution_id"`
	// TaskID is the task whose completion triggered the checkpoint.
	TaskID string `json:"task_id"`
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
	// TaskStates maps task ID to its snapshotted state.
	TaskStates map[string]TaskSnapshot `json:"task_states"`
}

// TaskSnapshot is the per-task portion of a checkpoint.
type TaskSnapshot struct {
	Status TaskStatus `json:"status"`
	Result string     `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}
