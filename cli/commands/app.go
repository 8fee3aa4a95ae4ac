package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/user"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/schemaver/cli/internal/config"
	"github.com/satishbabariya/schemaver/cli/internal/ui"
	"github.com/satishbabariya/schemaver/cli/internal/version"
	"github.com/satishbabariya/schemaver/internal/debug"
	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/executor"
	"github.com/satishbabariya/schemaver/migrate/provider"
	"github.com/satishbabariya/schemaver/migrate/workspace"
	"github.com/satishbabariya/schemaver/telemetry"
)

// confirm prompts on the terminal. Tests replace it.
var confirm = ui.Confirm

// app carries the collaborators of one CLI invocation.
type app struct {
	fs      afero.Fs
	v       *viper.Viper
	printer *ui.Printer
	workDir string

	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	telemetry  *telemetry.Collector
	loader     *provider.Loader

	// resolve overrides the provider loader when set.
	resolve func(platform string) (dataservice.DataService, error)
}

func newApp(fs afero.Fs, out, errOut io.Writer, workDir string) *app {
	return &app{
		fs:      fs,
		v:       viper.New(),
		printer: ui.New(out, errOut),
		workDir: workDir,
		logger:  debug.Discard(),
	}
}

// setup loads configuration once flags are parsed.
func (a *app) setup(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return errors.Wrap(err, "failed to bind flags")
	}
	cfg, err := config.Load(a.fs, a.v, a.workDir, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = debug.NewLogger(a.printer.Err, cfg.Debug)
	a.telemetry = telemetry.New(telemetry.Options{
		Endpoint: cfg.TelemetryEndpoint,
		Version:  version.Version,
		Logger:   a.logger,
	})
	if cfg.File != "" {
		a.logger.Debug("config loaded", "file", cfg.File)
	}
	return nil
}

func (a *app) close() {
	if a.loader != nil {
		a.loader.Close()
	}
	if a.telemetry.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Flush(ctx); err != nil {
			a.logger.Warn("telemetry not sent", "error", err)
		}
	}
}

func (a *app) workspace() *workspace.Workspace {
	return workspace.New(a.fs, a.cfg.Path, a.logger)
}

func (a *app) providers() *provider.Loader {
	if a.loader == nil {
		a.loader = provider.NewLoader(provider.Options{
			PluginsDir:    a.cfg.PluginsPath,
			WorkDir:       a.workDir,
			WorkspaceDir:  a.cfg.Path,
			HostVersion:   version.Version,
			TrackingTable: a.cfg.TrackingTable,
			Logger:        a.logger,
		})
	}
	return a.loader
}

// open resolves the configured platform and initializes it with the
// connection string. The caller closes the service.
func (a *app) open(ctx context.Context) (dataservice.DataService, error) {
	if a.cfg.ConnectionString == "" {
		return nil, errors.WithHint(
			migrate.MarkConnection(errors.New("no connection string")),
			"pass --connection-string or set SCHEMAVER_CONNECTION_STRING")
	}

	resolve := a.resolve
	if resolve == nil {
		resolve = a.providers().Resolve
	}
	svc, err := resolve(a.cfg.Platform)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx, a.cfg.ConnectionString); err != nil {
		_ = svc.Close()
		return nil, err
	}
	a.logger.Debug("data service ready", "platform", svc.Platform(), "atomic", svc.IsAtomicDDLSupported())
	return svc, nil
}

// withExecutor opens the data service, runs fn and closes the service.
func (a *app) withExecutor(ctx context.Context, fn func(*executor.Executor) error) error {
	svc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			a.logger.Warn("failed to close data service", "error", err)
		}
	}()
	return fn(executor.New(svc, a.workspace(), a.logger))
}

func (a *app) runOptions(verify bool) (executor.RunOptions, error) {
	tokens, err := migrate.ParseTokens(a.cfg.Tokens)
	if err != nil {
		return executor.RunOptions{}, err
	}
	opts := executor.RunOptions{
		Tokens:             tokens,
		AutoCreateDatabase: a.cfg.AutoCreateDB,
		VerifyOnly:         verify,
		Principal:          principal(),
		Tool:               migrate.Tool,
		ToolVersion:        version.Version,
	}
	if a.cfg.TargetVersion != "" {
		v, err := migrate.ParseVersion(a.cfg.TargetVersion)
		if err != nil {
			return executor.RunOptions{}, err
		}
		opts.Target = &v
	}
	return opts, nil
}

// migrate runs or verifies the workspace and prints the report.
func (a *app) migrate(ctx context.Context, command string, verify bool) error {
	start := time.Now()
	opts, err := a.runOptions(verify)
	if err != nil {
		return err
	}

	var report *executor.Report
	err = a.withExecutor(ctx, func(ex *executor.Executor) error {
		var runErr error
		report, runErr = ex.Run(ctx, opts)
		return runErr
	})
	if report == nil {
		a.telemetry.RecordCommand(command, a.cfg.Platform, time.Since(start), err)
		return err
	}
	a.telemetry.RecordRun(command, report, err)
	if perr := a.printer.Report(report); perr != nil && err == nil {
		err = perr
	}
	return err
}

// principal is the operating system user recorded as AppliedBy.
func principal() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return os.Getenv("USERNAME")
}
