package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reelscraper/pkg/expiry"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage the session lifecycle",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session's expiry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			if !app.Sessions.HasSession() {
				fmt.Println("No session.")
				return nil
			}

			status := app.Sessions.CheckValidity()
			fmt.Printf("Valid:         %v\n", status.IsValid)
			fmt.Printf("Remaining:     %s\n", expiry.FormatRemaining(status))
			fmt.Printf("Needs refresh: %v\n", status.NeedsRefresh)
			if !status.Unlimited {
				fmt.Printf("Expires at:    %s\n", status.ExpiresAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		})
	},
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one credential renewal cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			result := app.Refresher.RefreshNow(ctx)
			if !result.Success {
				return fmt.Errorf("refresh failed after %d retries: %w", result.RetriesUsed, result.Err)
			}
			fmt.Printf("Session refreshed (%d retries).\n", result.RetriesUsed)
			return nil
		})
	},
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the refresh scheduler in the foreground",
	Long: `Run the periodic session checker until interrupted. The scheduler
checks the session on the configured interval, arms refreshes before the
expiry boundary, refreshes immediately when the session has already
expired, and reports consecutive failures to the configured webhook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, app *App) error {
			app.Scheduler.OnMaxFailures(func(failures int) {
				fmt.Printf("ALERT: %d consecutive refresh failures; intervention needed.\n", failures)
			})

			app.Scheduler.Start(ctx)
			fmt.Printf("Watching session (check interval %s). Ctrl-C to stop.\n",
				app.Config.Session.CheckInterval)

			<-ctx.Done()
			app.Scheduler.Stop()

			stats := app.Scheduler.Stats()
			fmt.Printf("\nStopped. Attempts: %d, successes: %d, consecutive failures: %d\n",
				stats.TotalAttempts, stats.TotalSuccesses, stats.ConsecutiveFailures)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionRefreshCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
}
