// Package commands implements the schemaver CLI.
package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/schemaver/cli/internal/config"
)

// Execute runs the CLI against the process arguments and returns the exit
// code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	a := newApp(afero.NewOsFs(), os.Stdout, os.Stderr, wd)
	return a.execute(ctx, os.Args[1:])
}

func (a *app) execute(ctx context.Context, args []string) int {
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(a.printer.Out)
	cmd.SetErr(a.printer.Err)

	err := cmd.ExecuteContext(ctx)
	if a.cfg != nil {
		a.close()
	}
	if err != nil {
		a.printer.Error(err)
		return 1
	}
	return 0
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemaver",
		Short: "Versioned SQL migrations",
		Long: `schemaver applies folders of plain SQL scripts to a database in version order
and records every applied version in a tracking table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP(config.KeyPath, "p", "", "workspace directory (default: current directory)")
	flags.String(config.KeyPlatform, "", "target platform (default: "+config.DefaultPlatform+")")
	flags.StringP(config.KeyConnectionString, "c", "", "connection string of the target database")
	flags.StringP(config.KeyTargetVersion, "t", "", "stop after this version (default: latest)")
	flags.StringSliceP(config.KeyToken, "k", nil, "token replacement as KEY=VALUE, repeatable")
	flags.BoolP(config.KeyAutoCreateDB, "a", false, "create the target database when it does not exist")
	flags.String(config.KeyPluginsPath, "", "directory searched for platform plugins")
	flags.String(config.KeyTrackingTable, "", "name of the tracking table")
	flags.BoolP(config.KeyDebug, "d", false, "enable debug logging")
	flags.StringVar(&a.configFile, "config", "", "config file (default: .schemaver.yaml)")

	cmd.AddCommand(
		a.newInitCommand(),
		a.newVNextCommand(),
		a.newRunCommand(),
		a.newVerifyCommand(),
		a.newInfoCommand(),
		a.newEraseCommand(),
		a.newPlatformsCommand(),
		a.newVersionCommand(),
	)
	return cmd
}
