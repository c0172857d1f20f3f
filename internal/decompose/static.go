package decompose

import "context"

// StaticPlanner returns a fixed task list regardless of the request.
// Used for offline runs and tests where no language model is available.
type StaticPlanner struct {
	Specs []TaskSpec
	Err   error
}

// Decompose returns the configured specs or error.
func (p *StaticPlanner) Decompose(ctx context.Context, request, actorID string) ([]TaskSpec, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Specs, nil
}
