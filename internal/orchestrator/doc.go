// Package orchestrator coordinates the execution of task plans against an
// agent runtime.
//
// The Engine is the public surface: Preview a plan's cost, Execute it,
// then Pause/Resume/Cancel/Rollback the resulting execution while
// observing its typed event stream.
//
// Each execution is driven by exactly one goroutine (the driver), which is
// the only writer of execution and task state. Agent results return to the
// driver over a single completion channel, control commands arrive over a
// buffered command channel, and all observable progress flows out through
// a per-execution event emitter with a strictly ordered, replayable
// history.
package orchestrator
