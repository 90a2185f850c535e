package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wxstats/internal/cli"
	"wxstats/pkg/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply pending schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := cli.Bootstrap("wx-migrate", cmd.Flags())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			if !status {
				applied, err := app.DB.Migrate(ctx)
				if err != nil {
					app.Logger.Error(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{}, err)
					return err
				}
				for _, m := range applied {
					fmt.Fprintf(out, "Applied %s_%s\n", m.Version, m.Name)
				}
				if len(applied) == 0 {
					fmt.Fprintln(out, "Schema is up to date")
				}
			}

			versions, err := app.DB.AppliedMigrations(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Driver %s, applied versions: %v\n", app.DB.Dialect(), versions)
			return nil
		},
	}

	cli.AddStoreFlags(cmd)
	cmd.Flags().BoolVar(&status, "status", false, "Only list applied migrations")
	return cmd
}
