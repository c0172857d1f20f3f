package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/workforcehq/foreman/pkg/models"
)

// SimAgent describes one worker in the simulated roster.
type SimAgent struct {
	Name   string
	Skill  string
	Domain string
}

// SimRuntime is a deterministic in-process workforce used by the CLI's
// dry runs and by tests. Outcomes can be scripted per task ID.
type SimRuntime struct {
	mu sync.Mutex
	// roster is the set of available workers.
	roster []SimAgent
	// latency is the simulated duration of every worker call.
	latency time.Duration
	// failures maps task ID to a permanent failure message.
	failures map[string]string
	// transientFailures maps task ID to a count of transient errors to
	// produce before succeeding.
	transientFailures map[string]int
	// narrate adds a progress message per completed call.
	narrate bool
	// started records dispatch observations for tests.
	started []string
}

// NewSimRuntime creates a simulated runtime with the given roster.
// An empty roster resolves every capability to a generalist worker.
func NewSimRuntime(roster []SimAgent) *SimRuntime {
	return &SimRuntime{
		roster:            roster,
		failures:          make(map[string]string),
		transientFailures: make(map[string]int),
	}
}

// SetLatency sets the simulated duration of each worker call.
func (r *SimRuntime) SetLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latency = d
}

// SetNarrate enables per-call progress narration messages.
func (r *SimRuntime) SetNarrate(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.narrate = on
}

// FailTask scripts a permanent failure for the given task ID.
func (r *SimRuntime) FailTask(taskID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[taskID] = reason
}

// FailTransiently scripts n transient failures before success for the task.
func (r *SimRuntime) FailTransiently(taskID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transientFailures[taskID] = n
}

// Started returns the task IDs dispatched so far, in dispatch order.
func (r *SimRuntime) Started() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.started...)
}

// ResolveAgent matches a roster worker by skill, falling back to domain.
func (r *SimRuntime) ResolveAgent(ctx context.Context, requiredAgent, domain string) (AgentHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.roster) == 0 {
		return AgentHandle{
			ID:     uuid.New().String()[:8],
			Name:   "generalist",
			Skill:  requiredAgent,
			Domain: domain,
		}, nil
	}

	for _, a := range r.roster {
		if a.Skill == requiredAgent {
			return AgentHandle{ID: uuid.New().String()[:8], Name: a.Name, Skill: a.Skill, Domain: a.Domain}, nil
		}
	}
	for _, a := range r.roster {
		if a.Domain == domain {
			return AgentHandle{ID: uuid.New().String()[:8], Name: a.Name, Skill: a.Skill, Domain: a.Domain}, nil
		}
	}

	return AgentHandle{}, fmt.Errorf("%w: %s/%s", ErrAgentResolution, requiredAgent, domain)
}

// RunTask simulates one worker call, honoring scripted outcomes.
func (r *SimRuntime) RunTask(ctx context.Context, agent AgentHandle, task *models.Task) (TaskResult, error) {
	r.mu.Lock()
	r.started = append(r.started, task.ID)
	latency := r.latency
	reason, permanent := r.failures[task.ID]
	transientLeft := r.transientFailures[task.ID]
	if transientLeft > 0 {
		r.transientFailures[task.ID] = transientLeft - 1
	}
	narrate := r.narrate
	r.mu.Unlock()

	start := time.Now()
	if latency > 0 {
		select {
		case <-ctx.Done():
			return TaskResult{}, Transient(ctx.Err())
		case <-time.After(latency):
		}
	}

	if permanent {
		return TaskResult{}, fmt.Errorf("worker %s: %s", agent.Name, reason)
	}
	if transientLeft > 0 {
		return TaskResult{}, Transient(fmt.Errorf("worker %s: simulated timeout", agent.Name))
	}

	result := TaskResult{
		Output:   fmt.Sprintf("%s done by %s", task.Title, agent.Name),
		AgentID:  agent.ID,
		Duration: time.Since(start),
	}
	if narrate {
		result.Messages = []string{fmt.Sprintf("%s finished %q", agent.Name, task.Title)}
	}
	return result, nil
}
