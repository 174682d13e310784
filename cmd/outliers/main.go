// Command outliers removes outlier entities from tabular data.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/damiani91/aprende/config"
	"github.com/damiani91/aprende/logger"
)

// Build information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
	quiet   bool
	env     config.Env
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{env: config.FromEnv()}

	cmd := &cobra.Command{
		Use:   "outliers",
		Short: "Remove outlier entities from tabular data",
		Long: `outliers removes every row of an entity that has an outlier value in at
least one numeric column.

Examples:
  # Filter a CSV file with the default method (std_dev)
  outliers filter --in data.csv --out clean.csv

  # Filter a SQLite table with a config file
  outliers filter --config outliers.yaml --db data.db --table contacts --out-table clean

  # Run the gRPC and HTTP servers
  outliers serve --addr :9999 --http-addr :8080

  # Filter through a running server
  outliers filter --server localhost:9999 --in data.csv`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(opts.env.LogLevel)
			if err != nil {
				return err
			}
			switch {
			case opts.verbose:
				level = slog.LevelDebug
			case opts.quiet:
				level = slog.LevelError
			}

			// stdout may carry data
			opts.log = logger.Init(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logs")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "only log errors")

	cmd.AddCommand(
		newFilterCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "outliers %s (commit %s, built %s)\n", version, commit, buildDate)
		},
	}
}
