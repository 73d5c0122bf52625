package cmd

import (
	"github.com/spf13/cobra"

	"websearch/internal/output"
	"websearch/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output.Stdio()
			if jsonOut {
				return out.JSON(version.GetInfo())
			}
			out.Raw(version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print structured build info as JSON")

	return cmd
}
