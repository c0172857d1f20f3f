package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/workforcehq/foreman/internal/config"
	"github.com/workforcehq/foreman/pkg/models"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent executions",
	Long:  `List recent executions from the local database, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := openStore(cfg, false)
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.ListExecutions(historyLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No executions recorded.")
			return nil
		}

		for _, s := range summaries {
			status := string(s.Status)
			switch s.Status {
			case models.ExecutionCompleted:
				status = color.GreenString(status)
			case models.ExecutionFailed:
				status = color.RedString(status)
			case models.ExecutionCancelled:
				status = color.New(color.Faint).Sprint(status)
			case models.ExecutionPaused:
				status = color.YellowString(status)
			}

			request := s.Request
			if len(request) > 48 {
				request = request[:45] + "..."
			}
			fmt.Printf("%s  %-10s  %2d/%2d  %s  %s\n",
				s.ID, status, s.CompletedCount, s.TaskCount,
				s.StartedAt.Local().Format("2006-01-02 15:04"), request)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum executions to list")
}
