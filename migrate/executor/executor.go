// Package executor applies workspace versions to a database through a
// dataservice.DataService.
package executor

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/parser"
	"github.com/satishbabariya/schemaver/migrate/planner"
	"github.com/satishbabariya/schemaver/migrate/workspace"
)

// State is a step of a run.
type State string

const (
	StateResolving State = "resolving"
	StatePlanning  State = "planning"
	StateApplying  State = "applying"
	StateRecording State = "recording"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is the outcome of one version or meta folder.
type Status string

const (
	StatusApplied  Status = "applied"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusPartial  Status = "partial"
)

// RunOptions configures a run.
type RunOptions struct {
	// Target defaults to the latest local version.
	Target *migrate.Version

	Tokens             migrate.TokenMap
	AutoCreateDatabase bool

	// VerifyOnly executes the plan and rolls everything back.
	VerifyOnly bool

	// Principal is stored as AppliedBy in tracking records.
	Principal   string
	Tool        string
	ToolVersion string
}

// StepResult records what happened to one version or meta folder.
type StepResult struct {
	Name     string
	Version  *migrate.Version
	Scripts  int
	Batches  int
	Status   Status
	Duration time.Duration
}

// Report describes a finished run.
type Report struct {
	RunID      string
	Platform   string
	VerifyOnly bool
	State      State

	Target  migrate.Version
	Applied *migrate.Version
	Pending []migrate.Version

	Steps    []StepResult
	Warnings []*migrate.PartialApplicationWarning

	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// AppliedVersions returns the versions recorded by the run.
func (r *Report) AppliedVersions() []migrate.Version {
	var out []migrate.Version
	for _, s := range r.Steps {
		if s.Version != nil && s.Status == StatusApplied {
			out = append(out, *s.Version)
		}
	}
	return out
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Executor runs migrations. It is single use per run and not safe for
// concurrent use.
type Executor struct {
	svc    dataservice.DataService
	ws     *workspace.Workspace
	logger *slog.Logger

	now func() time.Time
}

// New returns an executor. svc must already be initialized with a connection
// string. A nil logger discards.
func New(svc dataservice.DataService, ws *workspace.Workspace, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{
		svc:    svc,
		ws:     ws,
		logger: logger.With("component", "executor", "platform", svc.Platform()),
		now:    time.Now,
	}
}

// Run resolves, plans and applies pending versions up to the target. The
// returned report is never nil; its State is StateCompleted on success and
// StateFailed otherwise. Cancellation of ctx is honored between versions.
func (e *Executor) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	r := &run{
		Executor: e,
		opts:     opts,
		report: &Report{
			RunID:      uuid.NewString(),
			Platform:   e.svc.Platform(),
			VerifyOnly: opts.VerifyOnly,
			StartedAt:  e.now().UTC(),
		},
		batchOptions: e.svc.BatchOptions(),
	}
	r.logger = e.logger.With("run", r.report.RunID)
	if r.opts.Tool == "" {
		r.opts.Tool = migrate.Tool
	}

	err := r.execute(ctx)

	r.report.FinishedAt = e.now().UTC()
	if err != nil {
		r.report.State = StateFailed
		r.report.Err = err
		r.logger.Error("run failed", "error", err)
		return r.report, err
	}
	r.report.State = StateCompleted
	r.logger.Info("run completed",
		"applied", len(r.report.AppliedVersions()),
		"verify", opts.VerifyOnly,
		"duration", r.report.Duration())
	return r.report, nil
}

type run struct {
	*Executor
	opts         RunOptions
	report       *Report
	logger       *slog.Logger
	batchOptions parser.Options
}

func (r *run) enter(s State, args ...any) {
	r.report.State = s
	r.logger.Debug("state", append([]any{"state", string(s)}, args...)...)
}

func (r *run) execute(ctx context.Context) error {
	r.enter(StateResolving)
	local, err := r.resolve(ctx)
	if err != nil {
		return err
	}

	r.enter(StatePlanning)
	plan, err := r.plan(ctx, local)
	if err != nil {
		return err
	}
	if plan.Empty() {
		r.logger.Info("database is up to date", "target", plan.Target.String())
		return nil
	}

	steps, err := r.steps(plan)
	if err != nil {
		return err
	}
	if r.opts.VerifyOnly {
		return r.verify(ctx, steps)
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "run cancelled")
		}
		if err := r.apply(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) resolve(ctx context.Context) ([]migrate.Version, error) {
	if r.opts.VerifyOnly && !r.svc.IsAtomicDDLSupported() {
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("platform %s cannot roll back schema changes", r.svc.Platform()),
				migrate.ErrVerifyRequiresAtomicDDL),
			"verify is only available on platforms with transactional DDL")
	}

	local, err := r.ws.Versions()
	if err != nil {
		return nil, err
	}

	if r.opts.Target != nil {
		r.report.Target = *r.opts.Target
	} else {
		latest, err := r.ws.LatestVersion()
		if err != nil {
			return nil, err
		}
		r.report.Target = latest
	}
	if _, err := r.ws.VersionDir(r.report.Target); err != nil {
		return nil, err
	}

	if r.opts.AutoCreateDatabase {
		if err := r.ensureDatabase(ctx); err != nil {
			return nil, err
		}
	}

	if err := r.svc.TestConnection(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("resolved", "target", r.report.Target.String(), "local", len(local))
	return local, nil
}

func (r *run) ensureDatabase(ctx context.Context) error {
	name, err := r.svc.DatabaseName()
	if err != nil {
		return err
	}
	exists, err := r.svc.CheckIfDatabaseExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if r.opts.VerifyOnly {
		return migrate.MarkConnection(errors.Newf("database %q does not exist", name))
	}
	r.logger.Info("creating database", "database", name)
	return r.svc.CreateDatabase(ctx, name)
}

func (r *run) plan(ctx context.Context, local []migrate.Version) (planner.Plan, error) {
	if !r.opts.VerifyOnly {
		exists, err := r.svc.CheckIfTrackingTableExists(ctx)
		if err != nil {
			return planner.Plan{}, err
		}
		if !exists {
			r.logger.Info("creating tracking table")
			if err := r.svc.ConfigureTrackingTable(ctx); err != nil {
				return planner.Plan{}, err
			}
		}
	}

	applied, err := r.svc.GetLatestAppliedVersion(ctx)
	if err != nil {
		return planner.Plan{}, err
	}
	p := planner.New(local, applied, r.report.Target)
	r.report.Applied = p.Applied
	r.report.Pending = p.Pending

	from := "none"
	if applied != nil {
		from = applied.String()
	}
	r.logger.Info("planned", "applied", from, "target", p.Target.String(), "pending", len(p.Pending))
	return p, nil
}

// step is a folder to execute. Meta folders have no version.
type step struct {
	name    string
	dir     string
	version *migrate.Version
}

func (r *run) steps(p planner.Plan) ([]step, error) {
	var out []step
	meta := func(name string) {
		if dir, ok := r.ws.MetaDir(name); ok {
			out = append(out, step{name: name, dir: dir})
		}
	}

	if p.Applied == nil {
		meta(workspace.InitDir)
	}
	meta(workspace.PreDir)
	for _, v := range p.Pending {
		dir, err := r.ws.VersionDir(v)
		if err != nil {
			return nil, err
		}
		out = append(out, step{name: v.String(), dir: dir, version: &v})
	}
	meta(workspace.PostDir)
	return out, nil
}

// apply runs one step in its own session. Atomic platforms get one
// transaction per step. Once begun, a step runs to completion regardless of
// ctx.
func (r *run) apply(ctx context.Context, s step) error {
	ctx = context.WithoutCancel(ctx)
	atomic := r.svc.IsAtomicDDLSupported()
	r.enter(StateApplying, "step", s.name)
	start := r.now()

	sess, err := r.svc.BeginSession(ctx, atomic)
	if err != nil {
		return err
	}

	scripts, batches, err := r.executeScripts(ctx, sess, s)
	result := StepResult{Name: s.name, Version: s.version, Scripts: scripts, Batches: batches}
	if err != nil {
		r.fail(sess, &result, start, err)
		return err
	}

	if s.version != nil {
		r.enter(StateRecording, "step", s.name)
		rec := migrate.TrackingRecord{
			Version:              s.version.String(),
			AppliedAtUTC:         r.now().UTC(),
			AppliedBy:            r.opts.Principal,
			AppliedByTool:        r.opts.Tool,
			AppliedByToolVersion: r.opts.ToolVersion,
		}
		if err := sess.InsertTrackingRecord(ctx, rec); err != nil {
			err = errors.Wrapf(err, "failed to record version %s", s.name)
			r.fail(sess, &result, start, err)
			return err
		}
	}

	if err := sess.Commit(); err != nil {
		result.Status = StatusFailed
		r.finishStep(result, start)
		return errors.Wrapf(err, "failed to commit %s", s.name)
	}

	result.Status = StatusApplied
	r.finishStep(result, start)
	r.logger.Info("applied", "step", s.name, "scripts", scripts, "batches", batches)
	return nil
}

// fail rolls the session back and records the failed step. Batches that
// autocommitted outside a transaction stay applied, which is reported as a
// partial application.
func (r *run) fail(sess dataservice.Session, result *StepResult, start time.Time, err error) {
	_ = sess.Rollback()
	result.Status = StatusFailed
	if !sess.Transactional() && result.Batches > 0 {
		result.Status = StatusPartial
		w := &migrate.PartialApplicationWarning{Version: result.Name, BatchesApplied: result.Batches, Err: err}
		r.report.Warnings = append(r.report.Warnings, w)
		r.logger.Warn("version partially applied", "step", result.Name, "batches", result.Batches)
	}
	r.finishStep(*result, start)
}

// verify runs every step in one transaction and rolls it back, so later
// versions see the changes of earlier ones.
func (r *run) verify(ctx context.Context, steps []step) error {
	sess, err := r.svc.BeginSession(context.WithoutCancel(ctx), true)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Rollback(); err != nil {
			r.logger.Warn("rollback after verify failed", "error", err)
		}
	}()

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "verify cancelled")
		}
		r.enter(StateApplying, "step", s.name, "verify", true)
		start := r.now()

		scripts, batches, err := r.executeScripts(context.WithoutCancel(ctx), sess, s)
		result := StepResult{Name: s.name, Version: s.version, Scripts: scripts, Batches: batches, Status: StatusVerified}
		if err != nil {
			result.Status = StatusFailed
			r.finishStep(result, start)
			return err
		}
		r.finishStep(result, start)
		r.logger.Info("verified", "step", s.name, "scripts", scripts, "batches", batches)
	}
	return nil
}

// executeScripts sends every batch of the step's scripts in order. Callers
// pass a context that is never cancelled.
func (r *run) executeScripts(ctx context.Context, sess dataservice.Session, s step) (scripts, batches int, err error) {
	paths, err := r.ws.Scripts(s.dir)
	if err != nil {
		return 0, 0, err
	}
	for _, path := range paths {
		text, err := r.ws.ReadScript(path)
		if err != nil {
			return scripts, batches, err
		}
		rel := r.ws.Rel(path)
		parts := parser.Split(text, r.batchOptions)
		r.logger.Debug("executing script", "step", s.name, "script", rel, "batches", len(parts))

		for i, b := range parts {
			if err := sess.ExecuteBatch(ctx, b, r.opts.Tokens); err != nil {
				return scripts, batches, &migrate.BatchExecutionError{
					Version: s.name,
					Script:  rel,
					Batch:   i + 1,
					Err:     err,
				}
			}
			batches++
		}
		scripts++
	}
	return scripts, batches, nil
}

func (r *run) finishStep(res StepResult, start time.Time) {
	res.Duration = r.now().Sub(start)
	r.report.Steps = append(r.report.Steps, res)
}

// Erase drops the objects the engine created and then the tracking table.
// Schema created by migrations is left alone.
func (e *Executor) Erase(ctx context.Context) error {
	if err := e.svc.TestConnection(ctx); err != nil {
		return err
	}
	if err := e.svc.DropTrackedObjects(ctx); err != nil {
		return errors.Wrap(err, "failed to drop tracked objects")
	}
	if err := e.svc.EraseTrackingTable(ctx); err != nil {
		return errors.Wrap(err, "failed to drop tracking table")
	}
	e.logger.Info("tracking table erased")
	return nil
}

// GetAllVersions returns the tracking records. It never writes.
func (e *Executor) GetAllVersions(ctx context.Context) ([]migrate.TrackingRecord, error) {
	if err := e.svc.TestConnection(ctx); err != nil {
		return nil, err
	}
	return e.svc.GetAllVersions(ctx)
}
