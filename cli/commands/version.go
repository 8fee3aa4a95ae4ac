package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/cli/internal/version"
)

func (a *app) newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			if short {
				_, err := fmt.Fprintln(a.printer.Out, info.Version)
				return err
			}
			_, err := fmt.Fprintln(a.printer.Out, info.FullString())
			return err
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "print the version number only")
	return cmd
}
