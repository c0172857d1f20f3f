package checkpoint

import (
	"errors"
	"testing"

	"github.com/workforcehq/foreman/pkg/models"
)

func execWithTasks(statuses map[string]models.TaskStatus) *models.Execution {
	exec := &models.Execution{ID: "exec1"}
	for id, st := range statuses {
		exec.Tasks = append(exec.Tasks, &models.Task{ID: id, Status: st})
	}
	return exec
}

func TestCaptureBuildsChain(t *testing.T) {
	m := NewManager()
	exec := execWithTasks(map[string]models.TaskStatus{
		"a": models.TaskStatusCompleted,
		"b": models.TaskStatusPending,
	})

	cp1 := m.Capture(exec, "a")
	exec.Task("b").Status = models.TaskStatusCompleted
	cp2 := m.Capture(exec, "b")

	chain := m.Chain("exec1")
	if len(chain) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(chain))
	}
	if chain[0].ID != cp1.ID || chain[1].ID != cp2.ID {
		t.Error("chain must be ordered oldest first")
	}
	if m.Latest("exec1").ID != cp2.ID {
		t.Error("Latest must return the newest checkpoint")
	}

	// Snapshot reflects state at capture time, not current state.
	if got := cp1.TaskStates["b"].Status; got != models.TaskStatusPending {
		t.Errorf("cp1 snapshot of b = %s, want pending", got)
	}
	if got := cp2.TaskStates["b"].Status; got != models.TaskStatusCompleted {
		t.Errorf("cp2 snapshot of b = %s, want completed", got)
	}
}

func TestRollbackTruncatesChain(t *testing.T) {
	m := NewManager()
	exec := execWithTasks(map[string]models.TaskStatus{
		"a": models.TaskStatusCompleted,
		"b": models.TaskStatusCompleted,
		"c": models.TaskStatusCompleted,
	})
	m.Capture(exec, "a")
	m.Capture(exec, "b")
	m.Capture(exec, "c")

	cp, err := m.Rollback(exec, "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.TaskID != "b" {
		t.Errorf("rollback returned checkpoint for %s, want b", cp.TaskID)
	}
	chain := m.Chain("exec1")
	if len(chain) != 2 {
		t.Fatalf("chain must truncate to 2, got %d", len(chain))
	}
	if chain[len(chain)-1].TaskID != "b" {
		t.Errorf("chain tail = %s, want b", chain[len(chain)-1].TaskID)
	}

	// Rolling back to the same task again is idempotent.
	if _, err := m.Rollback(exec, "b"); err != nil {
		t.Fatalf("repeat rollback failed: %v", err)
	}
	if got := len(m.Chain("exec1")); got != 2 {
		t.Errorf("chain length after repeat rollback = %d, want 2", got)
	}
}

func TestRollbackInvalidTargets(t *testing.T) {
	m := NewManager()
	exec := execWithTasks(map[string]models.TaskStatus{
		"a": models.TaskStatusCompleted,
		"b": models.TaskStatusFailed,
	})
	m.Capture(exec, "a")

	if _, err := m.Rollback(exec, "b"); !errors.Is(err, ErrRollbackTargetInvalid) {
		t.Errorf("non-completed target: got %v, want ErrRollbackTargetInvalid", err)
	}
	if _, err := m.Rollback(exec, "nope"); !errors.Is(err, ErrRollbackTargetInvalid) {
		t.Errorf("unknown target: got %v, want ErrRollbackTargetInvalid", err)
	}

	// Completed task with no checkpoint recorded.
	exec.Tasks = append(exec.Tasks, &models.Task{ID: "c", Status: models.TaskStatusCompleted})
	if _, err := m.Rollback(exec, "c"); !errors.Is(err, ErrRollbackTargetInvalid) {
		t.Errorf("checkpoint-less target: got %v, want ErrRollbackTargetInvalid", err)
	}
}

func TestRollbackPicksNewestForTask(t *testing.T) {
	m := NewManager()
	exec := execWithTasks(map[string]models.TaskStatus{"a": models.TaskStatusCompleted})
	m.Capture(exec, "a")
	redo := m.Capture(exec, "a")

	cp, err := m.Rollback(exec, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.ID != redo.ID {
		t.Error("rollback must pick the most recent checkpoint for the task")
	}
}

func TestDrop(t *testing.T) {
	m := NewManager()
	exec := execWithTasks(map[string]models.TaskStatus{"a": models.TaskStatusCompleted})
	m.Capture(exec, "a")

	m.Drop("exec1")
	if got := len(m.Chain("exec1")); got != 0 {
		t.Errorf("chain after Drop = %d entries, want 0", got)
	}
	if m.Latest("exec1") != nil {
		t.Error("Latest after Drop must be nil")
	}
}
