package graph

import (
	"errors"
	"sort"
	"testing"

	"github.com/workforcehq/foreman/pkg/models"
)

func TestBuildSimple(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Title: "Task 1", Status: models.TaskStatusPending},
		{ID: "task-2", Title: "Task 2", Status: models.TaskStatusPending},
		{ID: "task-3", Title: "Task 3", Status: models.TaskStatusPending},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Size() != 3 {
		t.Errorf("expected size 3, got %d", g.Size())
	}
}

func TestBuildWithDependencies(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending},
		{ID: "task-2", Status: models.TaskStatusPending, DependsOn: []string{"task-1"}},
		{ID: "task-3", Status: models.TaskStatusPending, DependsOn: []string{"task-1", "task-2"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deps := g.GetDependencies("task-3")
	if len(deps) != 2 {
		t.Errorf("expected 2 dependencies for task-3, got %d", len(deps))
	}

	dependents := g.GetDependents("task-1")
	if len(dependents) != 2 {
		t.Errorf("expected 2 dependents of task-1, got %d", len(dependents))
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "task-1", Status: models.TaskStatusPending, DependsOn: []string{"unknown-task"}},
	}

	if err := g.Build(tasks); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestCycleDetection(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending, DependsOn: []string{"b"}},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"c"}},
		{ID: "c", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
	}

	err := g.Build(tasks)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestTopologicalSort(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "c", Status: models.TaskStatusPending, DependsOn: []string{"b"}},
		{ID: "a", Status: models.TaskStatusPending},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("expected 3 tasks in order, got %d", len(order))
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("topological order violated: %v", order)
	}
}

func TestGetReady(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending},
		{ID: "b", Status: models.TaskStatusPending},
		{ID: "c", Status: models.TaskStatusPending, DependsOn: []string{"a", "b"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	sort.Strings(ready)
	if len(ready) != 2 || ready[0] != "a" || ready[1] != "b" {
		t.Fatalf("expected [a b] ready, got %v", ready)
	}

	g.MarkComplete("a")
	ready = g.GetReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected [b] ready after completing a, got %v", ready)
	}

	g.MarkComplete("b")
	ready = g.GetReady()
	if len(ready) != 1 || ready[0] != "c" {
		t.Fatalf("expected [c] ready after completing deps, got %v", ready)
	}
}

func TestDependenciesComplete(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending},
		{ID: "b", Status: models.TaskStatusPending},
		{ID: "c", Status: models.TaskStatusPending, DependsOn: []string{"a", "b"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.DependenciesComplete("c") {
		t.Fatal("c reported complete dependencies before any completed")
	}
	g.MarkComplete("a")
	if g.DependenciesComplete("c") {
		t.Fatal("c reported complete dependencies with b outstanding")
	}
	g.MarkComplete("b")
	if !g.DependenciesComplete("c") {
		t.Fatal("c should have complete dependencies after a and b")
	}
	// A task with no dependencies is always satisfied.
	if !g.DependenciesComplete("a") {
		t.Fatal("a has no dependencies and should be satisfied")
	}
}

func TestGetReadySkipsRunningAndTerminal(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusRunning},
		{ID: "b", Status: models.TaskStatusFailed},
		{ID: "c", Status: models.TaskStatusSkipped},
		{ID: "d", Status: models.TaskStatusPending},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "d" {
		t.Fatalf("expected only [d] ready, got %v", ready)
	}
}

func TestBuildMarksCompletedTasks(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusCompleted},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected [b] ready behind completed dep, got %v", ready)
	}
}

func TestDescendants(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
		{ID: "c", Status: models.TaskStatusPending, DependsOn: []string{"b"}},
		{ID: "d", Status: models.TaskStatusPending},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	desc := g.Descendants("a")
	sort.Strings(desc)
	if len(desc) != 2 || desc[0] != "b" || desc[1] != "c" {
		t.Fatalf("expected descendants [b c], got %v", desc)
	}

	if desc := g.Descendants("d"); len(desc) != 0 {
		t.Errorf("expected no descendants for d, got %v", desc)
	}
}

func TestReset(t *testing.T) {
	g := New()
	tasks := []*models.Task{
		{ID: "a", Status: models.TaskStatusPending},
		{ID: "b", Status: models.TaskStatusPending, DependsOn: []string{"a"}},
	}

	if err := g.Build(tasks); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g.MarkComplete("a")
	g.MarkComplete("b")
	if len(g.GetCompletedIDs()) != 2 {
		t.Fatalf("expected 2 completed")
	}

	g.Reset([]string{"b"})
	completed := g.GetCompletedIDs()
	if len(completed) != 1 || completed[0] != "a" {
		t.Fatalf("expected only a completed after reset, got %v", completed)
	}

	// b is schedulable again once its status allows it.
	tasks[1].Status = models.TaskStatusPending
	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("expected [b] ready after reset, got %v", ready)
	}
}
