package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UpdateType represents the kind of execution update.
type UpdateType string

const (
	// UpdateStatus indicates an execution-level status transition.
	UpdateStatus UpdateType = "status"
	// UpdateTaskStart indicates a task was dispatched to a worker.
	UpdateTaskStart UpdateType = "task_start"
	// UpdateTaskComplete indicates a task completed successfully.
	UpdateTaskComplete UpdateType = "task_complete"
	// UpdateTaskError indicates a task failed.
	UpdateTaskError UpdateType = "task_error"
	// UpdateAgentMessage carries free-form progress narration from a worker.
	UpdateAgentMessage UpdateType = "agent_message"
)

// UpdateData is the closed set of typed event payloads. Consumers can
// switch exhaustively on the concrete type instead of probing an open map.
type UpdateData interface {
	updateData()
}

// StatusData is the payload for execution-level status transitions.
type StatusData struct {
	// Status is the execution status after the transition.
	Status ExecutionStatus `json:"status"`
	// Progress is the completion percentage at emission time.
	Progress float64 `json:"progress"`
	// Reason provides optional context for the transition.
	Reason string `json:"reason,omitempty"`
}

// TaskStartData is the payload for task dispatch events.
type TaskStartData struct {
	// Title is the task title.
	Title string `json:"title"`
	// AgentID identifies the worker the task was dispatched to.
	AgentID string `json:"agent_id"`
	// AgentName is the worker's display name.
	AgentName string `json:"agent_name,omitempty"`
}

// TaskCompleteData is the payload for successful task completions.
type TaskCompleteData struct {
	// Title is the task title.
	Title string `json:"title"`
	// Result is the opaque worker output.
	Result string `json:"result,omitempty"`
	// DurationMs is how long the worker call took.
	DurationMs int64 `json:"duration_ms"`
}

// TaskErrorData is the payload for task failures.
type TaskErrorData struct {
	// Title is the task title.
	Title string `json:"title"`
	// Error is the failure reason after any internal retries.
	Error string `json:"error"`
	// Retries is the number of retry attempts that were consumed.
	Retries int `json:"retries"`
}

// AgentMessageData is the payload for worker progress narration.
type AgentMessageData struct {
	// AgentID identifies the narrating worker.
	AgentID string `json:"agent_id,omitempty"`
	// Message is the free-form progress text.
	Message string `json:"message"`
}

func (StatusData) updateData()       {}
func (TaskStartData) updateData()    {}
func (TaskCompleteData) updateData() {}
func (TaskErrorData) updateData()    {}
func (AgentMessageData) updateData() {}

// ExecutionUpdate is a single typed event in an execution's observable
// history. Events are append-only and strictly ordered by Seq; the stream
// for a given execution ID is the authoritative history.
type ExecutionUpdate struct {
	// Type is the kind of update.
	Type UpdateType
	// ExecutionID is the execution this update belongs to.
	ExecutionID string
	// TaskID is the related task, if any.
	TaskID string
	// Seq is the emission order within the execution's stream.
	Seq int64
	// Timestamp is when the update was emitted.
	Timestamp time.Time
	// Data is the type-specific payload.
	Data UpdateData
}

// wireUpdate is the JSON wire representation of an ExecutionUpdate.
type wireUpdate struct {
	Type        UpdateType      `json:"type"`
	ExecutionID string          `json:"executionId"`
	TaskID      string          `json:"taskId,omitempty"`
	Seq         int64           `json:"seq"`
	Timestamp   string          `json:"timestamp"`
	Data        json.RawMessage `json:"data"`
}

// MarshalJSON encodes the update in the wire shape:
// { type, executionId, taskId?, seq, timestamp, data: {...} }.
func (u ExecutionUpdate) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(u.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", u.Type, err)
	}
	return json.Marshal(wireUpdate{
		Type:        u.Type,
		ExecutionID: u.ExecutionID,
		TaskID:      u.TaskID,
		Seq:         u.Seq,
		Timestamp:   u.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:        data,
	})
}

// UnmarshalJSON decodes the wire shape back into a typed payload.
func (u *ExecutionUpdate) UnmarshalJSON(b []byte) error {
	var w wireUpdate
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	var data UpdateData
	switch w.Type {
	case UpdateStatus:
		var d StatusData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		data = d
	case UpdateTaskStart:
		var d TaskStartData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		data = d
	case UpdateTaskComplete:
		var d TaskCompleteData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		data = d
	case UpdateTaskError:
		var d TaskErrorData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		data = d
	case UpdateAgentMessage:
		var d AgentMessageData
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return err
		}
		data = d
	default:
		return fmt.Errorf("unknown update type %q", w.Type)
	}

	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}

	u.Type = w.Type
	u.ExecutionID = w.ExecutionID
	u.TaskID = w.TaskID
	u.Seq = w.Seq
	u.Timestamp = ts
	u.Data = data
	return nil
}
