package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/cli/internal/watch"
)

func (a *app) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Apply pending versions",
		Long: `Apply every version newer than the latest applied one, up to the target
version. _init runs on a fresh database; _pre and _post run around the
pending versions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.migrate(cmd.Context(), "run", false)
		},
	}
}

func (a *app) newVerifyCommand() *cobra.Command {
	var watchFiles bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Dry-run pending versions in a rolled back transaction",
		Long: `Execute the pending versions inside one transaction and roll it back. Only
platforms with transactional DDL support verification.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !watchFiles {
				return a.migrate(cmd.Context(), "verify", true)
			}

			w, err := watch.New(a.cfg.Path, a.logger, func(ctx context.Context) error {
				if err := a.migrate(ctx, "verify", true); err != nil {
					a.printer.Error(err)
				}
				return nil
			})
			if err != nil {
				return err
			}
			a.printer.Info("watching %s, press Ctrl+C to stop", a.cfg.Path)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "verify again whenever a script changes")
	return cmd
}
