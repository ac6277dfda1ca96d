// Package runner executes the ordered modules of a report against one
// consistent snapshot of its data.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/domain"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/period"
	"report-assembler/internal/readiness"
	"report-assembler/internal/runlock"
	"report-assembler/internal/snapshot"
	"report-assembler/internal/storage"
)

// DefaultToleranceDays is used when neither Options nor RunRequest set a tolerance.
const DefaultToleranceDays = 30

// SnapshotSource selects datasets for a cutoff.
type SnapshotSource interface {
	Fetch(ctx context.Context, alias string, cutoff time.Time) (*snapshot.Snapshot, error)
}

// ReadinessChecker gates a run.
type ReadinessChecker interface {
	Check(ctx context.Context, report string, cutoff time.Time, toleranceDays int) (*readiness.Result, error)
}

// ArtifactWriter persists module outputs.
type ArtifactWriter interface {
	PutVariable(ctx context.Context, req artifacts.PutRequest) (*domain.ReportVariable, error)
	Variables(ctx context.Context, report string) (map[string]json.RawMessage, error)
}

// ParamSource reads report parameters.
type ParamSource interface {
	Get(ctx context.Context, report, key string, dst any) (bool, error)
}

// Options for creating a Runner.
type Options struct {
	// Required
	Definitions storage.ReportDefinitionStore
	Readiness   ReadinessChecker
	Snapshots   SnapshotSource
	Artifacts   ArtifactWriter
	Registry    *Registry

	// Optional
	Params               ParamSource
	Locker               runlock.Locker // defaults to an in-process locker
	Metrics              *observability.Metrics
	Logger               logrus.FieldLogger
	DefaultToleranceDays int // 0 means DefaultToleranceDays
	Clock                func() time.Time
}

// Runner drives report runs.
type Runner struct {
	opts Options
	log  logrus.FieldLogger
	now  func() time.Time
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Definitions == nil || opts.Readiness == nil || opts.Snapshots == nil || opts.Artifacts == nil || opts.Registry == nil {
		return nil, errors.New("runner: definitions, readiness, snapshots, artifacts and registry are required")
	}
	if opts.Locker == nil {
		opts.Locker = runlock.NewLocalLocker()
	}
	if opts.DefaultToleranceDays <= 0 {
		opts.DefaultToleranceDays = DefaultToleranceDays
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Runner{opts: opts, log: logging.OrDiscard(opts.Logger), now: now}, nil
}

// RunRequest selects what to run.
type RunRequest struct {
	Report        string
	Cutoff        time.Time
	ToleranceDays *int     // nil uses the runner default
	Modules       []string // optional subset; empty runs all enabled modules
}

type plannedModule struct {
	name   string
	order  int
	module Module
}

// Run executes one report run.
//
// It returns ErrRunInProgress (from runlock) when the report is already
// running and a ConfigurationError when no module can be run. A report that
// is not ready yields an Aborted summary and a nil error. Module failures are
// recorded in the summary and never stop the run. If ctx is cancelled between
// modules the partial summary is returned together with ctx.Err().
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	if req.Report == "" || req.Cutoff.IsZero() {
		return nil, fmt.Errorf("%w: report and cutoff are required", storage.ErrInvalidInput)
	}

	tolerance := r.opts.DefaultToleranceDays
	if req.ToleranceDays != nil {
		tolerance = *req.ToleranceDays
	}

	release, err := r.opts.Locker.Acquire(ctx, req.Report)
	if err != nil {
		if errors.Is(err, runlock.ErrRunInProgress) {
			r.opts.Metrics.RecordRunRejected(req.Report)
		}
		return nil, fmt.Errorf("lock report %s: %w", req.Report, err)
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			r.log.WithError(err).WithField("report", req.Report).Warn("release run lock")
		}
	}()

	summary := &RunSummary{
		RunID:         uuid.NewString(),
		Report:        req.Report,
		Cutoff:        req.Cutoff,
		ToleranceDays: tolerance,
		State:         StateLoaded,
		StartedAt:     r.now(),
	}
	log := r.log.WithFields(logrus.Fields{"report": req.Report, "run_id": summary.RunID})
	defer r.finish(summary, log)

	// Loaded: resolve which modules run and in what order.
	planned, err := r.resolveModules(ctx, req, log)
	if err != nil {
		summary.State = StateAborted
		summary.AbortReason = err.Error()
		return summary, err
	}

	// Validated: compute the window and gate on readiness.
	summary.Window = period.Compute(req.Cutoff)
	ready, err := r.opts.Readiness.Check(ctx, req.Report, req.Cutoff, tolerance)
	if err != nil {
		summary.State = StateAborted
		summary.AbortReason = err.Error()
		return summary, fmt.Errorf("readiness check: %w", err)
	}
	summary.Readiness = ready
	summary.Ready = ready.Ready

	if !ready.Ready {
		summary.State = StateAborted
		summary.AbortReason = "not ready: " + ready.Reason()
		summary.Modules = skipped(planned)
		log.WithField("reason", ready.Reason()).Warn("report not ready, no module executed")
		return summary, nil
	}
	summary.State = StateValidated

	rc := newContext(summary.RunID, req.Report, req.Cutoff, summary.Window, ready, log,
		r.opts.Snapshots, r.opts.Artifacts, r.opts.Params)

	for i, p := range planned {
		if err := ctx.Err(); err != nil {
			summary.State = StateAborted
			summary.AbortReason = "cancelled: " + err.Error()
			summary.Modules = append(summary.Modules, skipped(planned[i:])...)
			log.WithField("remaining", len(planned)-i).Warn("run cancelled")
			return summary, err
		}

		summary.State = StateRunning
		summary.Modules = append(summary.Modules, r.runModule(ctx, rc, p, req))
	}

	summary.State = StateDone
	return summary, nil
}

// resolveModules returns the modules to execute, in execution order.
func (r *Runner) resolveModules(ctx context.Context, req RunRequest, log logrus.FieldLogger) ([]plannedModule, error) {
	rows, err := r.opts.Definitions.Modules(ctx, req.Report)
	if err != nil {
		return nil, fmt.Errorf("load modules for %s: %w", req.Report, err)
	}

	var names []string
	orders := make(map[string]int)
	if len(rows) == 0 {
		// No explicit configuration: every registered module, in registration order.
		for i, name := range r.opts.Registry.Names() {
			names = append(names, name)
			orders[name] = i + 1
		}
	} else {
		for _, row := range rows {
			if !row.Enabled {
				continue
			}
			if !r.opts.Registry.Has(row.ModuleName) {
				log.WithField("module", row.ModuleName).Warn("configured module is not registered, skipping")
				continue
			}
			names = append(names, row.ModuleName)
			orders[row.ModuleName] = row.RunOrder
		}
	}

	if len(req.Modules) > 0 {
		wanted := make(map[string]bool, len(req.Modules))
		for _, name := range req.Modules {
			if !r.opts.Registry.Has(name) {
				return nil, &domain.ConfigurationError{Report: req.Report, Reason: fmt.Sprintf("unknown module %q requested", name)}
			}
			wanted[name] = true
		}
		var selected []string
		for _, name := range names {
			if wanted[name] {
				selected = append(selected, name)
			}
		}
		names = selected
	}

	if len(names) == 0 {
		return nil, &domain.ConfigurationError{Report: req.Report, Reason: "no enabled modules to run"}
	}

	planned := make([]plannedModule, 0, len(names))
	for _, name := range names {
		m, err := r.opts.Registry.New(name)
		if err != nil {
			return nil, &domain.ConfigurationError{Report: req.Report, Reason: err.Error()}
		}
		planned = append(planned, plannedModule{name: name, order: orders[name], module: m})
	}
	return planned, nil
}

func (r *Runner) runModule(ctx context.Context, rc *Context, p plannedModule, req RunRequest) ModuleResult {
	start := r.now()
	rc.beginModule(p.name)

	err := invoke(ctx, rc, p.module)
	result := ModuleResult{
		Name:      p.name,
		RunOrder:  p.order,
		Status:    ModuleOK,
		Variables: rc.endModule(),
		Duration:  r.now().Sub(start),
	}

	log := rc.Logger.WithFields(logrus.Fields{"module": p.name, "duration": result.Duration.String()})
	if err != nil {
		var merr *ModuleExecutionError
		if !errors.As(err, &merr) {
			merr = &ModuleExecutionError{Module: p.name, Report: req.Report, Cutoff: req.Cutoff, Err: err}
		}
		result.Status = ModuleFailed
		result.Err = merr
		result.Error = merr.Error()
		log.WithError(err).Error("module failed")
	} else {
		log.WithField("variables", len(result.Variables)).Info("module done")
	}

	r.opts.Metrics.RecordModule(req.Report, p.name, string(result.Status), result.Duration)
	return result
}

// invoke runs m, converting a panic into a ModuleExecutionError.
func invoke(ctx context.Context, rc *Context, m Module) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ModuleExecutionError{
				Module:   rc.Module(),
				Report:   rc.Report,
				Cutoff:   rc.Cutoff,
				Panicked: true,
				Err:      fmt.Errorf("%v", rec),
			}
		}
	}()
	return m.Run(ctx, rc)
}

func (r *Runner) finish(summary *RunSummary, log logrus.FieldLogger) {
	summary.FinishedAt = r.now()
	r.opts.Metrics.RecordRun(summary.Report, string(summary.State), summary.Duration())
	if summary.State == StateDone {
		r.opts.Metrics.MarkRunSucceeded(summary.Report, summary.FinishedAt)
	}
	log.WithFields(logrus.Fields{
		"state":     summary.State,
		"succeeded": len(summary.Succeeded()),
		"failed":    len(summary.Failed()),
		"variables": len(summary.VariablesWritten()),
	}).Info("run finished")
}

func skipped(planned []plannedModule) []ModuleResult {
	out := make([]ModuleResult, len(planned))
	for i, p := range planned {
		out[i] = ModuleResult{Name: p.name, RunOrder: p.order, Status: ModuleSkipped}
	}
	return out
}
