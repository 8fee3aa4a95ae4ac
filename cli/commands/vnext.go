package commands

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/migrate"
)

func (a *app) newVNextCommand() *cobra.Command {
	var (
		major bool
		minor bool
		file  string
	)

	cmd := &cobra.Command{
		Use:   "vnext",
		Short: "Create the next version folder",
		Long: `Create the folder of the next minor version after the latest one, or the next
major version with --major. --file also creates an empty script inside it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if major && minor {
				return errors.New("--major and --minor are mutually exclusive")
			}

			ws := a.workspace()
			var (
				v   migrate.Version
				err error
			)
			if major {
				v, err = ws.NextMajorVersion(file)
			} else {
				v, err = ws.NextMinorVersion(file)
			}
			if err != nil {
				return err
			}
			a.printer.Success("created version %s", v)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&major, "major", "M", false, "increment the major version")
	cmd.Flags().BoolVarP(&minor, "minor", "m", false, "increment the minor version (default)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "create an empty script with this name")
	return cmd
}
