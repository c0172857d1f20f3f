// Package decompose turns free-form user requests into validated plans.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/workforcehq/foreman/internal/graph"
	"github.com/workforcehq/foreman/pkg/models"
)

// ErrInvalidPlan indicates the external planner returned a cyclic or
// otherwise malformed decomposition. The execution never starts.
var ErrInvalidPlan = errors.New("invalid plan")

// TaskSpec is the raw task shape produced by an external planner.
type TaskSpec struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Domain        string   `json:"domain"`
	RequiredAgent string   `json:"required_agent"`
	DependsOn     []string `json:"depends_on,omitempty"`
	Idempotent    *bool    `json:"idempotent,omitempty"`
}

// Planner is the external natural-language planner. Implementations turn
// a prose request into a structured task list; this package only
// translates and validates the output.
type Planner interface {
	Decompose(ctx context.Context, request, actorID string) ([]TaskSpec, error)
}

// Adapter normalizes planner output into an immutable Plan.
// It is a pure translation/validation boundary with no side effects.
type Adapter struct {
	planner Planner
}

// NewAdapter creates an Adapter backed by the given planner.
func NewAdapter(planner Planner) *Adapter {
	return &Adapter{planner: planner}
}

// Decompose asks the planner for a task list and validates it into a Plan.
// A cyclic dependency graph, unknown dependency references, or an empty
// task list all yield ErrInvalidPlan.
func (a *Adapter) Decompose(ctx context.Context, request, actorID string) (*models.Plan, error) {
	specs, err := a.planner.Decompose(ctx, request, actorID)
	if err != nil {
		return nil, fmt.Errorf("planner decompose: %w", err)
	}

	return BuildPlan(request, actorID, specs)
}

// BuildPlan validates task specs and assembles an immutable Plan.
// Task IDs are assigned where the planner omitted them; dependency
// references by title are resolved to IDs. Tasks with no dependencies
// start ready, everything else pending.
func BuildPlan(request, actorID string, specs []TaskSpec) (*models.Plan, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: planner returned no tasks", ErrInvalidPlan)
	}

	now := time.Now()
	tasks := make([]*models.Task, len(specs))
	byID := make(map[string]bool, len(specs))
	titleToID := make(map[string]string, len(specs))

	for i, spec := range specs {
		if spec.Title == "" {
			return nil, fmt.Errorf("%w: task %d has no title", ErrInvalidPlan, i)
		}
		id := spec.ID
		if id == "" {
			id = uuid.New().String()[:8]
		}
		if byID[id] {
			return nil, fmt.Errorf("%w: duplicate task id %s", ErrInvalidPlan, id)
		}
		byID[id] = true
		titleToID[spec.Title] = id

		idempotent := true
		if spec.Idempotent != nil {
			idempotent = *spec.Idempotent
		}

		tasks[i] = &models.Task{
			ID:            id,
			Title:         spec.Title,
			Description:   spec.Description,
			Domain:        spec.Domain,
			RequiredAgent: spec.RequiredAgent,
			Status:        models.TaskStatusPending,
			Idempotent:    idempotent,
			CreatedAt:     now,
		}
	}

	// Resolve dependencies. Planners may reference tasks by ID or by title.
	for i, spec := range specs {
		for _, dep := range spec.DependsOn {
			depID := dep
			if !byID[depID] {
				resolved, ok := titleToID[dep]
				if !ok {
					return nil, fmt.Errorf("%w: task %s depends on unknown task %q",
						ErrInvalidPlan, tasks[i].ID, dep)
				}
				depID = resolved
			}
			if depID == tasks[i].ID {
				return nil, fmt.Errorf("%w: task %s depends on itself", ErrInvalidPlan, tasks[i].ID)
			}
			tasks[i].DependsOn = append(tasks[i].DependsOn, depID)
		}
	}

	// Acyclicity check via topological sort before the plan is accepted.
	g := graph.New()
	if err := g.Build(tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if _, err := g.TopologicalSort(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}

	// Seed initial statuses: no dependencies means immediately ready.
	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			t.Status = models.TaskStatusReady
		}
	}

	return &models.Plan{
		ID:        uuid.New().String()[:8],
		Request:   request,
		ActorID:   actorID,
		Tasks:     tasks,
		CreatedAt: now,
	}, nil
}
