package orchestrator

import (
	"github.com/workforcehq/foreman/internal/runtime"
	"github.com/workforcehq/foreman/internal/state"
)

// FailurePolicy decides what happens to the rest of a plan when one task
// fails permanently.
type FailurePolicy string

const (
	// PolicyAbort stops dispatching on the first failure, waits for
	// in-flight tasks, skips everything not yet terminal, and finishes
	// the execution as failed. This is the default.
	PolicyAbort FailurePolicy = "abort"
	// PolicyBestEffort skips only the failed task's dependents and keeps
	// running independent branches. The execution still finishes failed
	// if any task failed.
	PolicyBestEffort FailurePolicy = "best_effort"
)

// Valid reports whether the policy is a known value.
func (p FailurePolicy) Valid() bool {
	switch p {
	case PolicyAbort, PolicyBestEffort:
		return true
	}
	return false
}

// DefaultMaxConcurrency caps parallel task dispatch when no explicit limit
// is configured.
const DefaultMaxConcurrency = 4

// Options configures an Engine.
type Options struct {
	// MaxConcurrency caps how many tasks run at once. Zero or negative
	// means DefaultMaxConcurrency.
	MaxConcurrency int
	// FailurePolicy is applied on permanent task failure. Empty means
	// PolicyAbort.
	FailurePolicy FailurePolicy
	// Retry bounds retries for transient task failures.
	Retry runtime.RetryPolicy
	// Store persists executions, checkpoints, and events. Nil runs the
	// engine fully in-memory.
	Store *state.DB
	// EventBuffer is the per-subscriber channel buffer. Zero means 256.
	EventBuffer int
	// Logger receives debug traces. Nil means no-op.
	Logger *DebugLogger
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if !o.FailurePolicy.Valid() {
		o.FailurePolicy = PolicyAbort
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = runtime.DefaultRetryPolicy()
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = 256
	}
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	return o
}
