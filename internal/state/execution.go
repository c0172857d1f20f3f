package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/workforcehq/foreman/pkg/models"
)

// SaveExecution upserts an execution record together with the current
// state of all its tasks. It is the single persistence call the engine
// makes after every state transition, so it has to be atomic.
func (db *DB) SaveExecution(exec *models.Execution, request string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	var finishedAt any
	if exec.FinishedAt != nil {
		finishedAt = formatTime(*exec.FinishedAt)
	}

	_, err = tx.Exec(`
		INSERT INTO executions (id, plan_id, request, status, completed_count, failed_count, skipped_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_count = excluded.completed_count,
			failed_count = excluded.failed_count,
			skipped_count = excluded.skipped_count,
			finished_at = excluded.finished_at
	`, exec.ID, exec.PlanID, request, string(exec.Status),
		exec.CompletedCount, exec.FailedCount, exec.SkippedCount,
		formatTime(exec.StartedAt), finishedAt)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save execution: %w", err)
	}

	for _, task := range exec.Tasks {
		var startedAt, completedAt any
		if task.StartedAt != nil {
			startedAt = formatTime(*task.StartedAt)
		}
		if task.CompletedAt != nil {
			completedAt = formatTime(*task.CompletedAt)
		}

		idempotent := 0
		if task.Idempotent {
			idempotent = 1
		}

		_, err = tx.Exec(`
			INSERT INTO tasks (execution_id, id, title, domain, required_agent, depends_on, status, result, error, idempotent, retries, created_at, started_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(execution_id, id) DO UPDATE SET
				status = excluded.status,
				result = excluded.result,
				error = excluded.error,
				retries = excluded.retries,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at
		`, exec.ID, task.ID, task.Title, task.Domain, task.RequiredAgent,
			strings.Join(task.DependsOn, ","), string(task.Status),
			task.Result, task.Error, idempotent, task.Retries,
			formatTime(task.CreatedAt), startedAt, completedAt)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("save task %s: %w", task.ID, err)
		}
	}

	return tx.Commit()
}

// GetExecution loads an execution and its tasks by ID.
// Returns sql.ErrNoRows if the execution doesn't exist.
func (db *DB) GetExecution(id string) (*models.Execution, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	exec := &models.Execution{CurrentlyRunning: make(map[string]bool)}
	var status, startedAt string
	var finishedAt sql.NullString

	err := db.conn.QueryRow(`
		SELECT id, plan_id, status, completed_count, failed_count, skipped_count, started_at, finished_at
		FROM executions WHERE id = ?
	`, id).Scan(&exec.ID, &exec.PlanID, &status,
		&exec.CompletedCount, &exec.FailedCount, &exec.SkippedCount,
		&startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	exec.Status = models.ExecutionStatus(status)
	exec.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	exec.FinishedAt = parseNullableTime(finishedAt)

	rows, err := db.conn.Query(`
		SELECT id, title, domain, required_agent, depends_on, status, result, error, idempotent, retries, created_at, started_at, completed_at
		FROM tasks WHERE execution_id = ? ORDER BY created_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task := &models.Task{}
		var taskStatus, dependsOn, createdAt string
		var taskStarted, taskCompleted sql.NullString
		var idempotent int

		err := rows.Scan(&task.ID, &task.Title, &task.Domain, &task.RequiredAgent,
			&dependsOn, &taskStatus, &task.Result, &task.Error,
			&idempotent, &task.Retries, &createdAt, &taskStarted, &taskCompleted)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		task.Status = models.TaskStatus(taskStatus)
		task.Idempotent = idempotent != 0
		if dependsOn != "" {
			task.DependsOn = strings.Split(dependsOn, ",")
		}
		task.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse task created_at: %w", err)
		}
		task.StartedAt = parseNullableTime(taskStarted)
		task.CompletedAt = parseNullableTime(taskCompleted)

		exec.Tasks = append(exec.Tasks, task)
	}

	return exec, rows.Err()
}

// ExecutionSummary is a row in the execution list view.
type ExecutionSummary struct {
	ID             string
	Request        string
	Status         models.ExecutionStatus
	CompletedCount int
	TaskCount      int
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// ListExecutions returns summaries of the most recent executions,
// newest first.
func (db *DB) ListExecutions(limit int) ([]ExecutionSummary, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT e.id, e.request, e.status, e.completed_count, e.started_at, e.finished_at,
			(SELECT COUNT(*) FROM tasks t WHERE t.execution_id = e.id)
		FROM executions e ORDER BY e.started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var summaries []ExecutionSummary
	for rows.Next() {
		var s ExecutionSummary
		var status, startedAt string
		var request, finishedAt sql.NullString

		err := rows.Scan(&s.ID, &request, &status, &s.CompletedCount, &startedAt, &finishedAt, &s.TaskCount)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}

		s.Request = request.String
		s.Status = models.ExecutionStatus(status)
		s.StartedAt, err = parseTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		s.FinishedAt = parseNullableTime(finishedAt)

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// SaveCheckpoint persists a checkpoint. Task states are stored as JSON.
func (db *DB) SaveCheckpoint(cp *models.Checkpoint) error {
	states, err := json.Marshal(cp.TaskStates)
	if err != nil {
		return fmt.Errorf("marshal task states: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.Exec(`
		INSERT OR REPLACE INTO checkpoints (id, execution_id, task_id, created_at, task_states)
		VALUES (?, ?, ?, ?, ?)
	`, cp.ID, cp.ExecutionID, cp.TaskID, formatTime(cp.Timestamp), string(states))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoints returns all checkpoints for an execution in creation order.
func (db *DB) LoadCheckpoints(executionID string) ([]*models.Checkpoint, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, task_id, created_at, task_states
		FROM checkpoints WHERE execution_id = ? ORDER BY created_at, id
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*models.Checkpoint
	for rows.Next() {
		cp := &models.Checkpoint{ExecutionID: executionID}
		var createdAt, states string

		if err := rows.Scan(&cp.ID, &cp.TaskID, &createdAt, &states); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}

		cp.Timestamp, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse checkpoint created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(states), &cp.TaskStates); err != nil {
			return nil, fmt.Errorf("unmarshal task states: %w", err)
		}

		checkpoints = append(checkpoints, cp)
	}

	return checkpoints, rows.Err()
}

// DeleteCheckpointsAfter removes checkpoints for an execution created
// strictly after the given checkpoint. Used when a rollback truncates
// the checkpoint chain.
func (db *DB) DeleteCheckpointsAfter(executionID, checkpointID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		DELETE FROM checkpoints
		WHERE execution_id = ?
		AND created_at > (SELECT created_at FROM checkpoints WHERE id = ?)
	`, executionID, checkpointID)
	if err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	return nil
}

// AppendEvent persists one execution update to the event log.
func (db *DB) AppendEvent(update models.ExecutionUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	_, err = db.conn.Exec(`
		INSERT OR IGNORE INTO events (execution_id, seq, type, task_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`, update.ExecutionID, update.Seq, string(update.Type), update.TaskID,
		formatTime(update.Timestamp), string(payload))
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// LoadEvents returns the persisted event log for an execution starting
// at the given sequence number, in order.
func (db *DB) LoadEvents(executionID string, fromSeq int64) ([]models.ExecutionUpdate, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT payload FROM events
		WHERE execution_id = ? AND seq >= ? ORDER BY seq
	`, executionID, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var updates []models.ExecutionUpdate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		var update models.ExecutionUpdate
		if err := json.Unmarshal([]byte(payload), &update); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		updates = append(updates, update)
	}

	return updates, rows.Err()
}
