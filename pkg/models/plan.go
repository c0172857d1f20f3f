package models

import "time"

// Plan is an immutable snapshot of tasks produced by decomposition.
// The dependency structure is fixed after creation; only the Execution
// created from a plan mutates task statuses, and it works on its own copy.
type Plan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// Request is the original free-form user request.
	Request string `json:"request"`
	// ActorID identifies who submitted the request.
	ActorID string `json:"actor_id"`
	// Tasks is the DAG-ordered task list.
	Tasks []*Task `json:"tasks"`
	// CreatedAt is when the plan was produced.
	CreatedAt time.Time `json:"created_at"`
}

// TaskCount returns the number of tasks in the plan.
func (p *Plan) TaskCount() int {
	return len(p.Tasks)
}

// Task returns the plan task with the given ID, or nil if not found.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// CloneTasks returns deep copies of the plan's tasks. An Execution owns
// the copies; the plan's own tasks are never handed out for mutation.
func (p *Plan) CloneTasks() []*Task {
	tasks := make([]*Task, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		tasks = append(tasks, t.Clone())
	}
	return tasks
}

// Estimate is a pre-execution cost and time projection for a plan.
type Estimate struct {
	// TaskCount is the number of tasks in the plan.
	TaskCount int `json:"task_count"`
	// EstimatedDurationMinutes is the projected wall-clock minutes.
	EstimatedDurationMinutes int `json:"estimated_duration_minutes"`
	// EstimatedCostCents is the projected cost in cents.
	EstimatedCostCents int `json:"estimated_cost_cents"`
}
