// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/serverlessresearch/ecsmig/pkg/migrate"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the ecsmig command. Each call returns an independent
// command so tests can run it repeatedly.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "ecsmig",
		Short: "Migrate retention classes and buckets into Dell EMC ECS",
		Long: `ecsmig reads a plain text file with one record per line and creates
one retention class or one bucket per line through the ECS management API.

Retention class lines:  <name> [<n> year(s)|month(s)|day(s)|hrs|min(s)]...
Bucket lines:           <name> [<namespace> [<owner>]]

Records are processed in file order. A failing record is reported and the
run continues with the next one. Use --testrun to print the create
requests without sending them. A test run still logs in, so credentials
are checked.

Settings can also come from ECSMIG_* environment variables or a config file
(./configs/ecsmig.yaml or ~/ecsmig.yaml).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := initConfig(cfgFile)
			if err != nil {
				return err
			}
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return errors.Wrap(err, "Failed to bind flags")
			}

			settings, err := getSettings(v)
			if err != nil {
				return err
			}

			logger, logFile, err := migrate.NewFileLogger(settings.logFile, settings.logLevel)
			if err != nil {
				return err
			}
			defer logFile.Close()

			mgr, err := migrate.New(settings.migration,
				migrate.WithLogger(logger),
				migrate.WithOutput(cmd.OutOrStdout()))
			if err != nil {
				return err
			}

			_, err = mgr.Run(cmd.Context())
			return err
		},
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/ecsmig.yaml or ~/.ecsmig.yaml)")

	flags := rootCmd.Flags()
	flags.StringP("hostname", "H", "", "hostname or IP address and port of the ECS management API")
	flags.StringP("username", "u", "", "management user")
	flags.StringP("password", "p", "", "management user password")
	flags.StringP("namespace", "n", "", "namespace to work with")
	flags.StringP("replicationgroup", "r", "", "replication group for new buckets (default is the first one the system lists)")
	flags.StringP("operation", "o", "", "operation to run: "+strings.Join(migrate.OperationNames, ", "))
	flags.StringP("filename", "f", "", "input file to parse")
	flags.BoolP("testrun", "t", false, "print the create requests instead of sending them (login is still performed)")

	flags.StringP("logfile", "l", defaultLogFile, "file the run log is appended to")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Duration("timeout", 0, "timeout per API request, 0 for none")
	flags.Bool("insecure", true, "skip TLS certificate verification")

	flags.String("s3-endpoint", "", "S3 endpoint used to verify created buckets, e.g. https://ecs:9021")
	flags.String("s3-access-key", "", "object user for bucket verification")
	flags.String("s3-secret-key", "", "secret key of the object user")
	flags.String("s3-region", "", "signing region for bucket verification")

	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
