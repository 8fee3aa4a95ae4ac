package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/executor"
)

func (a *app) newInfoCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "List applied versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			var records []migrate.TrackingRecord
			err := a.withExecutor(cmd.Context(), func(ex *executor.Executor) error {
				var err error
				records, err = ex.GetAllVersions(cmd.Context())
				return err
			})
			a.telemetry.RecordCommand("info", a.cfg.Platform, time.Since(start), err)
			if err != nil {
				return err
			}
			return a.printer.Versions(records, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or table")
	return cmd
}

func (a *app) newEraseCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Drop schemaver objects and the tracking table",
		Long: `Drop the objects schemaver owns and the tracking table. Tables and data
created by your scripts are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				ok, err := confirm("Erase the tracking history of " + a.cfg.Platform + " database?")
				if err != nil {
					return err
				}
				if !ok {
					a.printer.Info("erase cancelled")
					return nil
				}
			}

			start := time.Now()
			err := a.withExecutor(cmd.Context(), func(ex *executor.Executor) error {
				return ex.Erase(cmd.Context())
			})
			a.telemetry.RecordCommand("erase", a.cfg.Platform, time.Since(start), err)
			if err != nil {
				return err
			}
			a.printer.Success("tracking history erased")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
