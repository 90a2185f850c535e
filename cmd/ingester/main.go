package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"wxstats/internal/cli"
	"wxstats/internal/config"
	"wxstats/internal/services"
	"wxstats/pkg/logging"
)

type ingestOptions struct {
	calculateStats bool
	incremental    bool
	dryRun         bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:           "ingester",
		Short:         "Load station files into the weather store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, opts)
		},
	}

	cli.AddStoreFlags(cmd)
	cmd.Flags().String("data-dir", "", "Directory containing station .txt files")
	cmd.Flags().BoolVar(&opts.calculateStats, "calculate-stats", false, "Recompute yearly statistics after ingestion")
	cmd.Flags().BoolVar(&opts.incremental, "incremental", false, "With --calculate-stats, recompute only station-years that received new records")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Parse files and report counts without touching the store")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *ingestOptions) error {
	if opts.dryRun {
		return dryRun(cmd)
	}

	app, err := cli.Bootstrap("wx-ingester", cmd.Flags())
	if err != nil {
		return err
	}
	defer app.Close()

	dataDir := app.Config.Ingestion.DataDir
	app.Logger.Info(ctx, "[INGESTER_START] Starting weather data ingestion", logging.Fields{
		"version":         cli.Version,
		"data_dir":        dataDir,
		"calculate_stats": opts.calculateStats,
		"incremental":     opts.incremental,
	})

	clock := clockwork.NewRealClock()
	resolver := services.NewStationResolver(app.Repo, app.Logger)
	ingestion := services.NewIngestionService(app.Repo, resolver, app.Logger, app.Metrics, clock)

	result, err := ingestion.IngestDirectory(ctx, dataDir)
	if err != nil {
		app.Logger.Error(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_dir": dataDir,
		}, err)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "INGESTION COMPLETE")
	fmt.Fprintln(out, strings.Repeat("=", 80))
	for _, f := range result.Files {
		fmt.Fprintf(out, "%-20s inserted=%d duplicates=%d skipped=%d\n",
			f.Station.Code, f.Inserted, f.Duplicates, f.Skipped)
	}
	fmt.Fprintf(out, "Total Files:      %d\n", len(result.Files))
	fmt.Fprintf(out, "Records Inserted: %d\n", result.TotalInserted)
	fmt.Fprintf(out, "Started:          %s\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Finished:         %s\n", result.FinishedAt.Format("2006-01-02 15:04:05"))

	if !opts.calculateStats {
		return nil
	}

	stats := services.NewStatisticsService(app.Repo, app.Logger, app.Metrics, clock)
	var agg *services.AggregationResult
	if opts.incremental {
		agg, err = stats.RecomputeStationYears(ctx, result.AffectedYears)
	} else {
		agg, err = stats.ComputeYearlyStats(ctx)
	}
	if err != nil {
		app.Logger.Error(ctx, "[STATS_ERROR] Statistics calculation failed", logging.Fields{}, err)
		return err
	}

	fmt.Fprintf(out, "Yearly Stats:     %d station-years from %d records\n", len(agg.Groups), agg.Records)
	return nil
}

func dryRun(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	report, err := services.InspectDirectory(cfg.Ingestion.DataDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, st := range report.Stations {
		fmt.Fprintf(out, "%-20s lines=%d parsed=%d skipped=%d missing_values=%d\n",
			st.StationCode, st.Lines, st.Parsed, st.Skipped, st.MissingValues)
	}
	t := report.Totals()
	fmt.Fprintf(out, "%d stations, %d lines, %d parsed, %d skipped, %d missing values\n",
		len(report.Stations), t.Lines, t.Parsed, t.Skipped, t.MissingValues)
	return nil
}
