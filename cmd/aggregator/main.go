package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"wxstats/internal/cli"
	"wxstats/internal/services"
	"wxstats/pkg/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aggregator",
		Short:         "Recompute yearly per-station statistics from stored records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := cli.Bootstrap("wx-aggregator", cmd.Flags())
			if err != nil {
				return err
			}
			defer app.Close()

			stats := services.NewStatisticsService(app.Repo, app.Logger, app.Metrics, clockwork.NewRealClock())
			result, err := stats.ComputeYearlyStats(ctx)
			if err != nil {
				app.Logger.Error(ctx, "[STATS_ERROR] Statistics calculation failed", logging.Fields{}, err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Computed %d station-years from %d records in %s\n",
				len(result.Groups), result.Records, result.FinishedAt.Sub(result.StartedAt))
			return nil
		},
	}

	cli.AddStoreFlags(cmd)
	return cmd
}
