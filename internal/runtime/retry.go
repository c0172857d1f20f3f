package runtime

import (
	"context"
	"log"
	"time"

	"github.com/workforcehq/foreman/pkg/models"
)

// RetryPolicy bounds the retry behavior for transient worker failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per retry.
	Backoff time.Duration
}

// DefaultRetryPolicy matches downstream agent infrastructure expectations:
// a couple of retries with a short doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

// Attempts returns the effective attempt bound for a task. Non-idempotent
// tasks get exactly one attempt regardless of policy.
func (p RetryPolicy) Attempts(task *models.Task) int {
	if !task.Idempotent {
		return 1
	}
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// RunWithRetry executes fn under the policy. Only transient errors are
// retried; permanent errors and exhausted budgets return the last error.
// The attempt count consumed is returned alongside the result so the
// caller can record it (retries stay invisible to the event stream).
func RunWithRetry(ctx context.Context, policy RetryPolicy, task *models.Task, fn func(ctx context.Context) (TaskResult, error)) (TaskResult, int, error) {
	attempts := policy.Attempts(task)
	backoff := policy.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt - 1, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return TaskResult{}, attempt - 1, err
		}
		if attempt == attempts {
			break
		}

		log.Printf("[runtime] task %s attempt %d/%d failed (transient), retrying in %s: %v",
			task.ID, attempt, attempts, backoff, err)

		select {
		case <-ctx.Done():
			return TaskResult{}, attempt - 1, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return TaskResult{}, attempts - 1, lastErr
}
