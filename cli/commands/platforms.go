package commands

import (
	"github.com/spf13/cobra"
)

func (a *app) newPlatformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List built-in platforms and discovered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printer.Platforms(a.providers().Platforms())
		},
	}
}
