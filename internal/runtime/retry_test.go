package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/workforcehq/foreman/pkg/models"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}
}

func TestRunWithRetryTransientThenSuccess(t *testing.T) {
	task := &models.Task{ID: "t1", Idempotent: true}
	calls := 0

	result, retries, err := RunWithRetry(context.Background(), fastPolicy(), task, func(ctx context.Context) (TaskResult, error) {
		calls++
		if calls < 3 {
			return TaskResult{}, Transient(errors.New("timeout"))
		}
		return TaskResult{Output: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retries consumed, got %d", retries)
	}
	if result.Output != "ok" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRunWithRetryPermanentNoRetry(t *testing.T) {
	task := &models.Task{ID: "t1", Idempotent: true}
	calls := 0
	wantErr := errors.New("bad input")

	_, retries, err := RunWithRetry(context.Background(), fastPolicy(), task, func(ctx context.Context) (TaskResult, error) {
		calls++
		return TaskResult{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent error must not retry, got %d attempts", calls)
	}
	if retries != 0 {
		t.Errorf("expected 0 retries, got %d", retries)
	}
}

func TestRunWithRetryExhausted(t *testing.T) {
	task := &models.Task{ID: "t1", Idempotent: true}
	calls := 0

	_, _, err := RunWithRetry(context.Background(), fastPolicy(), task, func(ctx context.Context) (TaskResult, error) {
		calls++
		return TaskResult{}, Transient(errors.New("still down"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !IsTransient(err) {
		t.Errorf("expected transient error surfaced, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRunWithRetryNonIdempotentSingleAttempt(t *testing.T) {
	task := &models.Task{ID: "t1", Idempotent: false}
	calls := 0

	_, _, err := RunWithRetry(context.Background(), fastPolicy(), task, func(ctx context.Context) (TaskResult, error) {
		calls++
		return TaskResult{}, Transient(errors.New("timeout"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("non-idempotent task must get exactly one attempt, got %d", calls)
	}
}

func TestTransientClassification(t *testing.T) {
	if IsTransient(errors.New("plain")) {
		t.Error("plain error must not be transient")
	}
	wrapped := Transient(errors.New("inner"))
	if !IsTransient(wrapped) {
		t.Error("wrapped error must be transient")
	}
	if Transient(nil) != nil {
		t.Error("Transient(nil) must be nil")
	}
}

func TestSimResolveAgent(t *testing.T) {
	rt := NewSimRuntime([]SimAgent{
		{Name: "rae", Skill: "researcher", Domain: "research"},
		{Name: "cole", Skill: "copywriter", Domain: "copywriting"},
	})

	agent, err := rt.ResolveAgent(context.Background(), "copywriter", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Name != "cole" {
		t.Errorf("expected skill match cole, got %s", agent.Name)
	}

	agent, err = rt.ResolveAgent(context.Background(), "archivist", "research")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Name != "rae" {
		t.Errorf("expected domain fallback rae, got %s", agent.Name)
	}

	if _, err := rt.ResolveAgent(context.Background(), "pilot", "aviation"); !errors.Is(err, ErrAgentResolution) {
		t.Fatalf("expected ErrAgentResolution, got %v", err)
	}
}

func TestSimResolveAgentEmptyRoster(t *testing.T) {
	rt := NewSimRuntime(nil)
	agent, err := rt.ResolveAgent(context.Background(), "anything", "anywhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Name != "generalist" {
		t.Errorf("expected generalist, got %s", agent.Name)
	}
}

func TestSimRunTaskScriptedFailures(t *testing.T) {
	rt := NewSimRuntime(nil)
	rt.FailTask("bad", "division by zero")
	rt.FailTransiently("flaky", 1)

	agent, _ := rt.ResolveAgent(context.Background(), "", "")

	if _, err := rt.RunTask(context.Background(), agent, &models.Task{ID: "bad", Title: "Bad"}); err == nil {
		t.Fatal("expected scripted permanent failure")
	} else if IsTransient(err) {
		t.Error("scripted permanent failure must not be transient")
	}

	if _, err := rt.RunTask(context.Background(), agent, &models.Task{ID: "flaky", Title: "Flaky"}); !IsTransient(err) {
		t.Fatalf("expected transient failure first, got %v", err)
	}
	if _, err := rt.RunTask(context.Background(), agent, &models.Task{ID: "flaky", Title: "Flaky"}); err != nil {
		t.Fatalf("expected success after transient budget, got %v", err)
	}
}
