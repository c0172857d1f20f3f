package estimate

import (
	"sync"

	"github.com/workforcehq/foreman/pkg/models"
)

// Estimator projects cost and duration for plans from a static table.
// It is a pure function of the plan and the table; it never touches a
// live execution.
type Estimator struct {
	mu    sync.RWMutex
	table *Table
}

// NewEstimator creates an Estimator over the given table.
// A nil table falls back to the built-in defaults.
func NewEstimator(table *Table) *Estimator {
	if table == nil {
		table = DefaultTable()
	}
	return &Estimator{table: table}
}

// SetTable swaps the cost table. Used by the file watcher on reload.
func (e *Estimator) SetTable(table *Table) {
	if table == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table = table
}

// Estimate sums per-task projections for the plan.
func (e *Estimator) Estimate(plan *models.Plan) models.Estimate {
	e.mu.RLock()
	table := e.table
	e.mu.RUnlock()

	est := models.Estimate{TaskCount: plan.TaskCount()}
	for _, t := range plan.Tasks {
		entry := table.Lookup(t.Domain, t.RequiredAgent)
		est.EstimatedDurationMinutes += entry.DurationMinutes
		est.EstimatedCostCents += entry.CostCents
	}
	return est
}
