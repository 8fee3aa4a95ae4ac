package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/cli/internal/config"
)

func (a *app) newInitCommand() *cobra.Command {
	var writeConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a migration workspace",
		Long: `Create the baseline workspace: the _init, _pre and _post folders, the first
version folder v0.00, a README and a .gitignore. Existing files are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := a.workspace()
			if err := ws.Init(); err != nil {
				return err
			}
			a.printer.Success("initialized workspace in %s", ws.Root())

			if writeConfig {
				path := filepath.Join(ws.Root(), config.ConfigName+".yaml")
				if err := config.SaveConfig(a.fs, a.cfg, path); err != nil {
					return err
				}
				a.printer.Success("wrote %s", path)
			}

			readme, err := ws.Readme()
			if err != nil {
				return err
			}
			if err := a.printer.Markdown(readme); err != nil {
				a.logger.Debug("failed to render README", "error", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&writeConfig, "write-config", false, "write the current settings to .schemaver.yaml")
	return cmd
}
