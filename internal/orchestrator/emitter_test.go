package orchestrator

import (
	"testing"

	"github.com/workforcehq/foreman/pkg/models"
)

func TestEmitterSeqOrdering(t *testing.T) {
	em := NewStreamEmitter("exec1", 16)

	for i := 0; i < 5; i++ {
		u := em.Emit(models.UpdateAgentMessage, "t1", models.AgentMessageData{Message: "m"})
		if u.Seq != int64(i) {
			t.Errorf("emit %d stamped Seq %d", i, u.Seq)
		}
		if u.ExecutionID != "exec1" {
			t.Errorf("emit stamped execution %s", u.ExecutionID)
		}
		if u.Timestamp.IsZero() {
			t.Error("emit must stamp a timestamp")
		}
	}

	history := em.History()
	if len(history) != 5 {
		t.Fatalf("history length = %d, want 5", len(history))
	}
	for i, u := range history {
		if u.Seq != int64(i) {
			t.Errorf("history[%d].Seq = %d", i, u.Seq)
		}
	}
	if em.NextSeq() != 5 {
		t.Errorf("NextSeq = %d, want 5", em.NextSeq())
	}
}

func TestEmitterWatchReplay(t *testing.T) {
	em := NewStreamEmitter("exec1", 16)
	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})
	em.Emit(models.UpdateTaskStart, "a", models.TaskStartData{Title: "A"})
	em.Emit(models.UpdateTaskComplete, "a", models.TaskCompleteData{Title: "A"})

	ch, cancel := em.Watch(1)
	defer cancel()

	u := <-ch
	if u.Seq != 1 || u.Type != models.UpdateTaskStart {
		t.Errorf("replay started at seq %d type %s, want 1/task_start", u.Seq, u.Type)
	}
	u = <-ch
	if u.Seq != 2 {
		t.Errorf("second replayed seq = %d, want 2", u.Seq)
	}

	// Live events continue on the same channel.
	em.Emit(models.UpdateTaskStart, "b", models.TaskStartData{Title: "B"})
	u = <-ch
	if u.Seq != 3 || u.TaskID != "b" {
		t.Errorf("live event seq %d task %s, want 3/b", u.Seq, u.TaskID)
	}
}

func TestEmitterWatchNegativeFromSeq(t *testing.T) {
	em := NewStreamEmitter("exec1", 4)
	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})

	ch, cancel := em.Watch(-5)
	defer cancel()
	u := <-ch
	if u.Seq != 0 {
		t.Errorf("negative fromSeq must replay from 0, got %d", u.Seq)
	}
}

func TestEmitterCancelDetaches(t *testing.T) {
	em := NewStreamEmitter("exec1", 4)
	ch, cancel := em.Watch(0)
	cancel()

	if _, ok := <-ch; ok {
		t.Error("cancelled subscriber channel must be closed")
	}

	// Emitting after cancel must not panic or deliver.
	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})
	if em.DroppedCount() != 0 {
		t.Errorf("dropped = %d after detach, want 0", em.DroppedCount())
	}
}

func TestEmitterCloseEndsSubscribers(t *testing.T) {
	em := NewStreamEmitter("exec1", 4)
	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})

	ch, _ := em.Watch(0)
	em.Close()

	var got []models.ExecutionUpdate
	for u := range ch {
		got = append(got, u)
	}
	if len(got) != 1 {
		t.Errorf("subscriber received %d events before close, want 1", len(got))
	}

	if !em.Closed() {
		t.Error("Closed must report true")
	}

	// Watching a closed stream replays history and closes immediately.
	late, _ := em.Watch(0)
	got = nil
	for u := range late {
		got = append(got, u)
	}
	if len(got) != 1 {
		t.Errorf("late watcher received %d events, want 1", len(got))
	}
}

func TestEmitterReopen(t *testing.T) {
	em := NewStreamEmitter("exec1", 4)
	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionFailed})
	em.Close()

	em.Reopen()
	if em.Closed() {
		t.Fatal("Reopen must clear the closed state")
	}

	ch, cancel := em.Watch(em.NextSeq())
	defer cancel()

	u := em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})
	if u.Seq != 1 {
		t.Errorf("post-reopen Seq = %d, want 1 (history continues)", u.Seq)
	}
	if got := <-ch; got.Seq != 1 {
		t.Errorf("subscriber got seq %d, want 1", got.Seq)
	}
}

func TestEmitterDropsWhenSubscriberFull(t *testing.T) {
	em := NewStreamEmitter("exec1", 1)
	ch, cancel := em.Watch(0)
	defer cancel()

	// Buffer holds one; the rest are dropped from the channel, never from
	// the history.
	for i := 0; i < 4; i++ {
		em.Emit(models.UpdateAgentMessage, "t", models.AgentMessageData{Message: "m"})
	}

	if em.DroppedCount() != 3 {
		t.Errorf("dropped = %d, want 3", em.DroppedCount())
	}
	if len(em.History()) != 4 {
		t.Errorf("history length = %d, want 4", len(em.History()))
	}

	u := <-ch
	if u.Seq != 0 {
		t.Errorf("delivered seq = %d, want 0", u.Seq)
	}

	// A fresh watch recovers the full stream.
	all, cancelAll := em.Watch(0)
	defer cancelAll()
	for want := int64(0); want < 4; want++ {
		if got := <-all; got.Seq != want {
			t.Errorf("recovery seq = %d, want %d", got.Seq, want)
		}
	}
}

func TestEmitterSinkSeesEveryUpdate(t *testing.T) {
	em := NewStreamEmitter("exec1", 4)
	var seen []int64
	em.SetSink(func(u models.ExecutionUpdate) {
		seen = append(seen, u.Seq)
	})

	em.Emit(models.UpdateStatus, "", models.StatusData{Status: models.ExecutionRunning})
	em.Emit(models.UpdateTaskStart, "a", models.TaskStartData{Title: "A"})

	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("sink saw %v, want [0 1]", seen)
	}
}
