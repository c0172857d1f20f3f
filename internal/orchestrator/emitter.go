package orchestrator

import (
	"log"
	"sync"
	"time"

	"github.com/workforcehq/foreman/pkg/models"
)

// StreamEmitter is the per-execution event stream. Every update is
// appended to an in-memory history with a strictly increasing Seq, then
// fanned out to live subscribers. Subscribers that fall behind have
// events dropped from their channel, never from the history, so a
// re-subscription with Watch(fromSeq) always recovers the full stream.
type StreamEmitter struct {
	executionID string
	bufferSize  int
	// sink, when set, receives every update synchronously before fan-out.
	// Used for persistence.
	sink func(models.ExecutionUpdate)

	mu      sync.Mutex
	history []models.ExecutionUpdate
	subs    map[int]chan models.ExecutionUpdate
	nextSub int
	closed  bool
	dropped uint64
}

// NewStreamEmitter creates an emitter for one execution.
func NewStreamEmitter(executionID string, bufferSize int) *StreamEmitter {
	return &StreamEmitter{
		executionID: executionID,
		bufferSize:  bufferSize,
		subs:        make(map[int]chan models.ExecutionUpdate),
	}
}

// SetSink installs a synchronous observer called for every update before
// fan-out. Must be set before the first Emit.
func (e *StreamEmitter) SetSink(sink func(models.ExecutionUpdate)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// Emit appends an update to the history and fans it out. Seq and
// Timestamp are assigned here so ordering is decided in exactly one
// place. Returns the stamped update.
func (e *StreamEmitter) Emit(updateType models.UpdateType, taskID string, data models.UpdateData) models.ExecutionUpdate {
	e.mu.Lock()

	update := models.ExecutionUpdate{
		Type:        updateType,
		ExecutionID: e.executionID,
		TaskID:      taskID,
		Seq:         int64(len(e.history)),
		Timestamp:   time.Now(),
		Data:        data,
	}
	e.history = append(e.history, update)

	if e.sink != nil {
		e.sink(update)
	}

	for _, ch := range e.subs {
		select {
		case ch <- update:
		default:
			e.dropped++
			if e.dropped%10 == 1 { // Log every 10th drop to avoid spam
				log.Printf("[emitter] WARNING: subscriber channel full, dropped event (total dropped: %d): type=%s seq=%d", e.dropped, update.Type, update.Seq)
			}
		}
	}

	e.mu.Unlock()
	return update
}

// Watch returns a channel that replays history from fromSeq and then
// delivers live updates, plus a cancel function. If the stream is already
// closed the channel delivers the remaining history and closes. Cancelling
// a watch never affects the execution.
func (e *StreamEmitter) Watch(fromSeq int64) (<-chan models.ExecutionUpdate, func()) {
	e.mu.Lock()

	if fromSeq < 0 {
		fromSeq = 0
	}

	var backlog []models.ExecutionUpdate
	if fromSeq < int64(len(e.history)) {
		backlog = append(backlog, e.history[fromSeq:]...)
	}

	// The output channel needs room for the backlog plus live buffer so
	// replay can't block the emitter.
	out := make(chan models.ExecutionUpdate, len(backlog)+e.bufferSize)
	for _, u := range backlog {
		out <- u
	}

	if e.closed {
		close(out)
		e.mu.Unlock()
		return out, func() {}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = out
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if ch, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return out, cancel
}

// History returns a copy of the full event history so far.
func (e *StreamEmitter) History() []models.ExecutionUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.ExecutionUpdate(nil), e.history...)
}

// NextSeq returns the sequence number the next emitted event will carry.
func (e *StreamEmitter) NextSeq() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int64(len(e.history))
}

// DroppedCount returns the total number of fan-out sends that were dropped.
func (e *StreamEmitter) DroppedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close ends the stream: all subscriber channels are closed and future
// Watch calls see only the recorded history. The driver closes the stream
// exactly once, after the final status event.
func (e *StreamEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// Reopen re-arms a closed stream so new events can reach subscribers
// again. Used when a failed execution is rolled back: its stream was
// closed with the final status event, but the rollback continues the same
// history.
func (e *StreamEmitter) Reopen() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = false
}

// Closed reports whether the stream has ended.
func (e *StreamEmitter) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
