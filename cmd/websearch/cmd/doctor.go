package cmd

import (
	"os"

	"github.com/spf13/cobra"

	apperr "websearch/internal/errors"
	"websearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment for problems",
		Long: `Run environment checks: data directory permissions, disk space,
file descriptor limits, the embedding backend and the headless browser.

Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			checker := preflight.New(
				preflight.WithOffline(flagOffline),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(os.Stdout),
			)
			results := checker.RunAll(cmd.Context(), cfg)
			checker.PrintResults(results)

			if checker.HasCriticalFailures(results) {
				return apperr.New(apperr.KindInternal, "required checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-check details")

	return cmd
}
