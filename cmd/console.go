package cmd

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"newsroom/internal/bootstrap"
	"newsroom/internal/errs"
	"newsroom/internal/usecase/lifecycle"
	"newsroom/internal/usecase/queueconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Start the editorial queue console",
	RunE: withApp(func(ctx context.Context, cmd *cobra.Command, _ *bootstrap.App, svc *lifecycle.Service) error {
		status, _ := cmd.Flags().GetString("status")
		actor, _ := cmd.Flags().GetString("actor")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		if refreshInterval <= 0 {
			refreshInterval = 5 * time.Second
		}

		model, err := queueconsole.NewQueueModel(ctx, svc, queueconsole.QueueOptions{
			StatusFilter:    status,
			Actor:           actor,
			RefreshInterval: refreshInterval,
		})
		if err != nil {
			return err
		}

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run queue console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleQueueCmd)
	consoleQueueCmd.Flags().String("status", "review", "Status filter; empty shows every article")
	consoleQueueCmd.Flags().String("actor", "", "Name recorded in the audit log")
	consoleQueueCmd.Flags().Duration("refresh-interval", 5*time.Second, "Auto refresh interval")
}
