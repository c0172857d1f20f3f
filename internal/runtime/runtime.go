// Package runtime defines the contract between the orchestration engine
// and the external worker infrastructure that actually performs tasks.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/workforcehq/foreman/pkg/models"
)

// ErrAgentResolution indicates no worker matches the required capability.
var ErrAgentResolution = errors.New("no agent matches required capability")

// AgentHandle identifies a resolved worker capable of executing a task.
type AgentHandle struct {
	// ID is the worker's unique identifier.
	ID string `json:"id"`
	// Name is the worker's display name.
	Name string `json:"name"`
	// Skill is the capability tag the worker was resolved for.
	Skill string `json:"skill"`
	// Domain is the functional category the worker operates in.
	Domain string `json:"domain"`
}

// TaskResult is the outcome of a single worker call.
type TaskResult struct {
	// Output is the opaque task payload.
	Output string `json:"output"`
	// AgentID identifies the worker that produced the result.
	AgentID string `json:"agent_id"`
	// Duration is how long the worker call took.
	Duration time.Duration `json:"duration"`
	// Messages holds free-form progress narration emitted by the worker.
	Messages []string `json:"messages,omitempty"`
}

// Runtime is the external worker infrastructure. RunTask may block; it
// must be safely retryable for idempotent tasks. The engine never retries
// tasks flagged non-idempotent.
type Runtime interface {
	// ResolveAgent looks up a worker for the required capability and domain.
	ResolveAgent(ctx context.Context, requiredAgent, domain string) (AgentHandle, error)
	// RunTask executes one task to completion on the given worker.
	RunTask(ctx context.Context, agent AgentHandle, task *models.Task) (TaskResult, error)
}

// TransientError marks a worker failure as retryable (network/timeout
// class). Wrap errors with Transient to opt them into the retry policy.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is in the retryable class.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
