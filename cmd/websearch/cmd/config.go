package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"websearch/configs"
	apperr "websearch/internal/errors"
	"websearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and bootstrap configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented config template to the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.DataDir, "config.yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return apperr.Newf(apperr.KindInvalidInput, "%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return apperr.Wrap(apperr.KindIO, "create data dir", err)
			}
			if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
				return apperr.Wrap(apperr.KindIO, "write config", err)
			}

			output.Stdio().Successf("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return output.Stdio().JSON(cfg)
		},
	}
}
