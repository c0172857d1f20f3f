package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/workforcehq/foreman/pkg/models"
)

func TestBuildPlanSeedsStatuses(t *testing.T) {
	plan, err := BuildPlan("launch campaign", "user-1", []TaskSpec{
		{ID: "a", Title: "Research"},
		{ID: "b", Title: "Draft", DependsOn: []string{"a"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.Request != "launch campaign" || plan.ActorID != "user-1" {
		t.Errorf("plan metadata not carried: %+v", plan)
	}
	if plan.TaskCount() != 2 {
		t.Fatalf("expected 2 tasks, got %d", plan.TaskCount())
	}
	if got := plan.Task("a").Status; got != models.TaskStatusReady {
		t.Errorf("expected root task ready, got %s", got)
	}
	if got := plan.Task("b").Status; got != models.TaskStatusPending {
		t.Errorf("expected dependent task pending, got %s", got)
	}
}

func TestBuildPlanAssignsMissingIDs(t *testing.T) {
	plan, err := BuildPlan("r", "actor", []TaskSpec{
		{Title: "First"},
		{Title: "Second", DependsOn: []string{"First"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := plan.Tasks[0]
	second := plan.Tasks[1]
	if first.ID == "" || second.ID == "" {
		t.Fatal("expected generated IDs")
	}
	if len(second.DependsOn) != 1 || second.DependsOn[0] != first.ID {
		t.Errorf("title dependency not resolved to ID: %v", second.DependsOn)
	}
}

func TestBuildPlanRejectsCycle(t *testing.T) {
	_, err := BuildPlan("r", "actor", []TaskSpec{
		{ID: "a", Title: "A", DependsOn: []string{"b"}},
		{ID: "b", Title: "B", DependsOn: []string{"a"}},
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for cycle, got %v", err)
	}
}

func TestBuildPlanRejectsUnknownDependency(t *testing.T) {
	_, err := BuildPlan("r", "actor", []TaskSpec{
		{ID: "a", Title: "A", DependsOn: []string{"nope"}},
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestBuildPlanRejectsSelfDependency(t *testing.T) {
	_, err := BuildPlan("r", "actor", []TaskSpec{
		{ID: "a", Title: "A", DependsOn: []string{"a"}},
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestBuildPlanRejectsEmpty(t *testing.T) {
	_, err := BuildPlan("r", "actor", nil)
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for empty plan, got %v", err)
	}
}

func TestBuildPlanRejectsDuplicateIDs(t *testing.T) {
	_, err := BuildPlan("r", "actor", []TaskSpec{
		{ID: "a", Title: "A"},
		{ID: "a", Title: "B"},
	})
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestBuildPlanIdempotentDefault(t *testing.T) {
	no := false
	plan, err := BuildPlan("r", "actor", []TaskSpec{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B", Idempotent: &no},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Task("a").Idempotent {
		t.Error("expected idempotent default true")
	}
	if plan.Task("b").Idempotent {
		t.Error("expected explicit idempotent=false honored")
	}
}

func TestAdapterWrapsPlannerError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	adapter := NewAdapter(&StaticPlanner{Err: wantErr})

	_, err := adapter.Decompose(context.Background(), "r", "actor")
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected planner error surfaced, got %v", err)
	}
}

func TestParseResponseFencedJSON(t *testing.T) {
	response := "Here is the plan:\n```json\n[{\"title\": \"Research\", \"domain\": \"research\"}]\n```\nDone."
	specs, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 1 || specs[0].Title != "Research" {
		t.Fatalf("unexpected specs: %+v", specs)
	}
}

func TestParseResponseNoArray(t *testing.T) {
	if _, err := ParseResponse("I could not produce a plan."); err == nil {
		t.Fatal("expected error for missing JSON array")
	}
}
