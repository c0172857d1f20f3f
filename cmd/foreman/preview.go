package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/workforcehq/foreman/internal/config"
)

var previewActor string

var previewCmd = &cobra.Command{
	Use:   "preview \"request\"",
	Short: "Show the plan and cost estimate without executing",
	Long: `Decompose a request into a task plan and print the tasks, their
dependencies, and the estimated duration and cost. Nothing is executed
and no state is recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
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

		engine := buildEngine(cfg, planner, buildRuntime(), est, nil)
		defer engine.Close()

		plan, estimate, err := engine.Preview(cmd.Context(), args[0], previewActor)
		if err != nil {
			return fmt.Errorf("plan request: %w", err)
		}

		bold := color.New(color.Bold)
		dim := color.New(color.Faint)

		bold.Printf("Plan %s: %q\n\n", plan.ID, plan.Request)
		for _, t := range plan.Tasks {
			line := fmt.Sprintf("  %s  %-40s %s", t.ID, t.Title, t.Domain)
			if len(t.DependsOn) > 0 {
				line += dim.Sprintf("  after %s", strings.Join(t.DependsOn, ", "))
			}
			fmt.Println(line)
		}

		fmt.Println()
		bold.Printf("Estimate: ")
		fmt.Printf("%d tasks, ~%d min, ~$%.2f\n",
			estimate.TaskCount, estimate.EstimatedDurationMinutes,
			float64(estimate.EstimatedCostCents)/100)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewActor, "actor", "cli", "Actor ID recorded on the plan")
}
