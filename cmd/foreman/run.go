package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/workforcehq/foreman/internal/config"
	"github.com/workforcehq/foreman/internal/orchestrator"
	"github.com/workforcehq/foreman/internal/tui"
	"github.com/workforcehq/foreman/pkg/models"
)

var (
	runTUI         bool
	runActor       string
	runPolicy      string
	runConcurrency int
	runNoStore     bool
)

var runCmd = &cobra.Command{
	Use:   "run \"request\"",
	Short: "Decompose a request and execute the resulting plan",
	Long: `Decompose a free-form work request into a task plan and execute it
against the agent workforce.

Prints the cost estimate first, then streams progress events as tasks
dispatch, complete, or fail. With --tui, shows a live terminal view with
pause (p), resume (r), and cancel (c) controls.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExecution(cmd.Context(), args[0])
	},
}

func init() {
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live terminal view")
	runCmd.Flags().StringVar(&runActor, "actor", "cli", "Actor ID recorded on the plan")
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "Failure policy: abort or best_effort")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Max concurrent tasks (overrides config)")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Skip persisting execution state")
}

func runExecution(ctx context.Context, request string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if runPolicy != "" {
		cfg.Engine.FailurePolicy = runPolicy
	}
	if runConcurrency > 0 {
		cfg.Engine.MaxConcurrency = runConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	planner, err := buildPlanner(cfg)
	if err != nil {
		return err
	}
	est, watcher, err := buildEstimator(cfg)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}
	store, err := openStore(cfg, runNoStore)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	engine := buildEngine(cfg, planner, buildRuntime(), est, store)
	defer engine.Close()

	plan, estimate, err := engine.Preview(ctx, request, runActor)
	if err != nil {
		return fmt.Errorf("plan request: %w", err)
	}

	fmt.Printf("Plan %s: %d tasks, ~%d min, ~$%.2f\n\n",
		plan.ID, estimate.TaskCount, estimate.EstimatedDurationMinutes,
		float64(estimate.EstimatedCostCents)/100)

	executionID, events, err := engine.Execute(ctx, plan)
	if err != nil {
		return err
	}

	if runTUI {
		app := tui.New(engine, executionID, plan, events)
		if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
			return fmt.Errorf("tui: %w", err)
		}
	} else {
		printStream(events)
	}

	return printSummary(engine, executionID)
}

// printStream renders the event stream as colorized lines until the
// execution reaches a terminal status.
func printStream(events <-chan models.ExecutionUpdate) {
	dim := color.New(color.Faint)

	for u := range events {
		ts := u.Timestamp.Format("15:04:05")
		switch data := u.Data.(type) {
		case models.StatusData:
			line := fmt.Sprintf("status: %s (%.0f%%)", data.Status, data.Progress)
			if data.Reason != "" {
				line += ": " + data.Reason
			}
			switch data.Status {
			case models.ExecutionCompleted:
				color.Green("%s %s", ts, line)
			case models.ExecutionFailed, models.ExecutionCancelled:
				color.Red("%s %s", ts, line)
			case models.ExecutionPaused:
				color.Yellow("%s %s", ts, line)
			default:
				color.Cyan("%s %s", ts, line)
			}
		case models.TaskStartData:
			agent := data.AgentName
			if agent == "" {
				agent = data.AgentID
			}
			fmt.Printf("%s %s %s %s\n", ts, color.BlueString("▶"), data.Title, dim.Sprintf("[%s]", agent))
		case models.TaskCompleteData:
			fmt.Printf("%s %s %s %s\n", ts, color.GreenString("✓"), data.Title, dim.Sprintf("(%dms)", data.DurationMs))
		case models.TaskErrorData:
			fmt.Printf("%s %s %s: %s\n", ts, color.RedString("✗"), data.Title, data.Error)
		case models.AgentMessageData:
			dim.Printf("%s   %s: %s\n", ts, data.AgentID, data.Message)
		}
	}
}

// printSummary prints the final task breakdown and exit status.
func printSummary(engine *orchestrator.Engine, executionID string) error {
	exec, err := engine.Get(executionID)
	if err != nil {
		return err
	}

	fmt.Printf("\nExecution %s: %s (%d completed, %d failed, %d skipped of %d)\n",
		exec.ID, exec.Status, exec.CompletedCount, exec.FailedCount,
		exec.SkippedCount, len(exec.Tasks))

	if exec.Status != models.ExecutionCompleted {
		os.Exit(1)
	}
	return nil
}
