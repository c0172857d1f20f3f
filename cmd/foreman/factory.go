package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/workforcehq/foreman/internal/config"
	"github.com/workforcehq/foreman/internal/decompose"
	"github.com/workforcehq/foreman/internal/estimate"
	"github.com/workforcehq/foreman/internal/orchestrator"
	"github.com/workforcehq/foreman/internal/runtime"
	"github.com/workforcehq/foreman/internal/state"
)

// buildPlanner returns the Claude planner when Anthropic credentials are
// configured, otherwise a deterministic local planner so foreman works
// offline out of the box.
func buildPlanner(cfg *config.Config) (decompose.Planner, error) {
	if cfg.Planner.APIKey != "" || cfg.Planner.UseBedrock || os.Getenv("ANTHROPIC_API_KEY") != "" {
		return decompose.NewClaudePlanner(decompose.ClaudePlannerConfig{
			Model:      cfg.Planner.Model,
			APIKey:     cfg.Planner.APIKey,
			UseBedrock: cfg.Planner.UseBedrock,
			AWSRegion:  cfg.Planner.AWSRegion,
			AWSProfile: cfg.Planner.AWSProfile,
		})
	}
	return &localPlanner{}, nil
}

// localPlanner is the offline fallback: a fixed research → draft → review
// pipeline over the request.
type localPlanner struct{}

// Decompose produces a small generic pipeline for the request.
func (p *localPlanner) Decompose(ctx context.Context, request, actorID string) ([]decompose.TaskSpec, error) {
	if request == "" {
		return nil, fmt.Errorf("empty request")
	}
	return []decompose.TaskSpec{
		{Title: "Research: " + request, Domain: "research"},
		{Title: "Outline deliverable", Domain: "copywriting", DependsOn: []string{"Research: " + request}},
		{Title: "Produce draft", Domain: "copywriting", DependsOn: []string{"Outline deliverable"}},
		{Title: "Review and finalize", Domain: "analysis", DependsOn: []string{"Produce draft"}},
	}, nil
}

// buildRuntime returns the simulated workforce the CLI executes against.
func buildRuntime() *runtime.SimRuntime {
	rt := runtime.NewSimRuntime([]runtime.SimAgent{
		{Name: "rae", Skill: "researcher", Domain: "research"},
		{Name: "cole", Skill: "copywriter", Domain: "copywriting"},
		{Name: "dana", Skill: "designer", Domain: "design"},
		{Name: "eli", Skill: "engineer", Domain: "engineering"},
		{Name: "ana", Skill: "analyst", Domain: "analysis"},
		{Name: "mak", Skill: "marketer", Domain: "marketing"},
	})
	rt.SetLatency(400 * time.Millisecond)
	rt.SetNarrate(true)
	return rt
}

// buildEstimator loads the configured cost table, falling back to the
// built-in rates. The optional watcher hot-reloads table edits.
func buildEstimator(cfg *config.Config) (*estimate.Estimator, *estimate.Watcher, error) {
	est := estimate.NewEstimator(nil)
	var watcher *estimate.Watcher

	if cfg.Estimator.CostTable != "" {
		table, err := estimate.LoadTable(cfg.Estimator.CostTable)
		if err != nil {
			return nil, nil, fmt.Errorf("load cost table: %w", err)
		}
		est.SetTable(table)

		if cfg.Estimator.WatchTable {
			watcher, err = estimate.WatchTable(cfg.Estimator.CostTable, est)
			if err != nil {
				return nil, nil, fmt.Errorf("watch cost table: %w", err)
			}
		}
	}

	return est, watcher, nil
}

// openStore opens the execution database, unless persistence is disabled.
func openStore(cfg *config.Config, disabled bool) (*state.DB, error) {
	if disabled {
		return nil, nil
	}
	path := cfg.State.DBPath
	if path == "" {
		path = state.DefaultDBPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.State.RetentionDays > 0 {
		if _, err := db.PurgeOldExecutions(time.Duration(cfg.State.RetentionDays) * 24 * time.Hour); err != nil {
			fmt.Fprintf(os.Stderr, "warning: purge old executions: %v\n", err)
		}
	}
	return db, nil
}

// buildEngine assembles the engine from configuration.
func buildEngine(cfg *config.Config, planner decompose.Planner, rt runtime.Runtime, est *estimate.Estimator, store *state.DB) *orchestrator.Engine {
	return orchestrator.NewEngine(planner, rt, est, orchestrator.Options{
		MaxConcurrency: cfg.Engine.MaxConcurrency,
		FailurePolicy:  orchestrator.FailurePolicy(cfg.Engine.FailurePolicy),
		Retry: runtime.RetryPolicy{
			MaxAttempts: cfg.Engine.Retry.MaxAttempts,
			Backoff:     cfg.Engine.Retry.Backoff,
		},
		Store:  store,
		Logger: orchestrator.NewDebugLoggerFromEnv(),
	})
}
