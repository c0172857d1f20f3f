package orchestrator

import "errors"

// ErrInvalidExecutionState indicates a control command was issued against
// an execution that doesn't exist or is in a state that can't accept it
// (pausing a paused execution, resuming a running one, any command against
// a completed or cancelled one). The command has no effect.
var ErrInvalidExecutionState = errors.New("invalid execution state for command")
