package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/period"
	"report-assembler/internal/readiness"
	"report-assembler/internal/snapshot"
)

// Context is shared by all modules of one run. Modules run sequentially, so
// it is not safe for concurrent use.
type Context struct {
	RunID     string
	Report    string
	Cutoff    time.Time
	Window    period.Window
	Readiness *readiness.Result
	Logger    logrus.FieldLogger

	snapshots SnapshotSource
	artifacts ArtifactWriter
	params    ParamSource

	module    string
	cache     map[string]*snapshot.Snapshot
	outputs   map[string]any
	written   []string
	runLogger logrus.FieldLogger
}

func newContext(runID, report string, cutoff time.Time, window period.Window, ready *readiness.Result,
	logger logrus.FieldLogger, snapshots SnapshotSource, artifacts ArtifactWriter, params ParamSource) *Context {
	return &Context{
		RunID:     runID,
		Report:    report,
		Cutoff:    cutoff,
		Window:    window,
		Readiness: ready,
		Logger:    logger,
		snapshots: snapshots,
		artifacts: artifacts,
		params:    params,
		cache:     make(map[string]*snapshot.Snapshot),
		outputs:   make(map[string]any),
		runLogger: logger,
	}
}

// Module returns the name of the module currently running.
func (c *Context) Module() string {
	return c.module
}

func (c *Context) beginModule(name string) {
	c.module = name
	c.written = nil
	c.Logger = c.runLogger.WithField("module", name)
}

func (c *Context) endModule() []string {
	written := c.written
	c.module = ""
	c.written = nil
	c.Logger = c.runLogger
	return written
}

// Snapshot returns the upload of alias selected for this run's cutoff.
// The first selection of an alias is reused by every later module of the run.
func (c *Context) Snapshot(ctx context.Context, alias string) (*snapshot.Snapshot, error) {
	if snap, ok := c.cache[alias]; ok {
		return snap, nil
	}
	snap, err := c.snapshots.Fetch(ctx, alias, c.Cutoff)
	if err != nil {
		return nil, err
	}
	c.cache[alias] = snap
	return snap, nil
}

// RequireSnapshot is Snapshot for modules that cannot proceed without data.
// It returns an error wrapping snapshot.ErrEmptySnapshot when the alias has no usable upload.
func (c *Context) RequireSnapshot(ctx context.Context, alias string) (*snapshot.Snapshot, error) {
	snap, err := c.Snapshot(ctx, alias)
	if err != nil {
		return nil, err
	}
	if snap.IsEmpty() {
		return nil, fmt.Errorf("%w: alias %q as of %s", snapshot.ErrEmptySnapshot, alias, c.Cutoff.Format(time.DateOnly))
	}
	return snap, nil
}

// VariableOption customizes PutVariable.
type VariableOption func(*artifacts.PutRequest)

// WithAnchor sets the template anchor of the variable.
func WithAnchor(anchor string) VariableOption {
	return func(r *artifacts.PutRequest) { r.Anchor = anchor }
}

// WithTable attaches a rendered table image.
func WithTable(png []byte) VariableOption {
	return func(r *artifacts.PutRequest) { r.RenderedTable = png }
}

// WithChart attaches a rendered chart image.
func WithChart(png []byte) VariableOption {
	return func(r *artifacts.PutRequest) { r.RenderedChart = png }
}

// PutVariable persists a module output for this report, replacing any previous value.
func (c *Context) PutVariable(ctx context.Context, varName string, value any, opts ...VariableOption) error {
	req := artifacts.PutRequest{
		Report:  c.Report,
		Module:  c.module,
		VarName: varName,
		Value:   value,
	}
	for _, opt := range opts {
		opt(&req)
	}

	if _, err := c.artifacts.PutVariable(ctx, req); err != nil {
		return err
	}
	c.written = append(c.written, varName)
	return nil
}

// Variables returns every stored variable of the report keyed by anchor.
func (c *Context) Variables(ctx context.Context) (map[string]json.RawMessage, error) {
	return c.artifacts.Variables(ctx, c.Report)
}

// Param decodes a report parameter into dst, reporting false when it is not set.
func (c *Context) Param(ctx context.Context, key string, dst any) (bool, error) {
	if c.params == nil {
		return false, nil
	}
	return c.params.Get(ctx, c.Report, key, dst)
}

// SetOutput shares an in-memory value with later modules of the same run.
func (c *Context) SetOutput(key string, value any) {
	c.outputs[key] = value
}

// Output returns a value shared by an earlier module.
func (c *Context) Output(key string) (any, bool) {
	v, ok := c.outputs[key]
	return v, ok
}
