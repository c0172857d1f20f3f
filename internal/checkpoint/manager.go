// Package checkpoint records execution snapshots and computes rollbacks.
package checkpoint

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/workforcehq/foreman/pkg/models"
)

// ErrRollbackTargetInvalid indicates the rollback target task is not a
// completed task of the current plan, or has no checkpoint.
var ErrRollbackTargetInvalid = errors.New("rollback target invalid")

// Manager owns the checkpoint chain for each execution. History is linear:
// rolling back truncates everything after the target, so re-running yields
// a fresh chain rather than a branching history.
type Manager struct {
	mu sync.RWMutex
	// chains maps execution ID to its ordered checkpoint chain.
	chains map[string][]*models.Checkpoint
}

// NewManager creates an empty checkpoint manager.
func NewManager() *Manager {
	return &Manager{chains: make(map[string][]*models.Checkpoint)}
}

// Capture appends a snapshot of the execution's task states, taken after
// taskID completed. The snapshot is immutable once stored.
func (m *Manager) Capture(exec *models.Execution, taskID string) *models.Checkpoint {
	states := make(map[string]models.TaskSnapshot, len(exec.Tasks))
	for _, t := range exec.Tasks {
		states[t.ID] = models.TaskSnapshot{
			Status: t.Status,
			Result: t.Result,
			Error:  t.Error,
		}
	}

	cp := &models.Checkpoint{
		ID:          uuid.New().String()[:8],
		ExecutionID: exec.ID,
		TaskID:      taskID,
		Timestamp:   time.Now(),
		TaskStates:  states,
	}

	m.mu.Lock()
	m.chains[exec.ID] = append(m.chains[exec.ID], cp)
	m.mu.Unlock()

	return cp
}

// Chain returns the checkpoint chain for an execution, oldest first.
func (m *Manager) Chain(executionID string) []*models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*models.Checkpoint(nil), m.chains[executionID]...)
}

// Latest returns the most recent checkpoint for an execution, or nil.
func (m *Manager) Latest(executionID string) *models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chain := m.chains[executionID]
	if len(chain) == 0 {
		return nil
	}
	return chain[len(chain)-1]
}

// Rollback returns the snapshot taken immediately after taskID completed
// and truncates the chain after it. The target must be a completed task in
// the execution's current plan. Rolling back to the same task repeatedly
// is idempotent; the truncation keeps history linear.
func (m *Manager) Rollback(exec *models.Execution, taskID string) (*models.Checkpoint, error) {
	task := exec.Task(taskID)
	if task == nil || task.Status != models.TaskStatusCompleted {
		return nil, ErrRollbackTargetInvalid
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.chains[exec.ID]
	// Most recent checkpoint for the task wins: if the task was rolled
	// back and redone, its fresh completion supersedes the old one.
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].TaskID == taskID {
			m.chains[exec.ID] = chain[:i+1]
			return chain[i], nil
		}
	}

	return nil, ErrRollbackTargetInvalid
}

// Drop discards the chain for an execution.
func (m *Manager) Drop(executionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chains, executionID)
}
