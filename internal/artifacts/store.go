// Package artifacts persists report module outputs and their rendered images.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/domain"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/storage"
)

// ErrRenderConflict is returned when a variable supplies both a table and a chart rendering.
var ErrRenderConflict = errors.New("rendered table and rendered chart are mutually exclusive")

// ErrNoImageStore is returned when a rendering is supplied but no ImageStore is configured.
var ErrNoImageStore = errors.New("no image store configured")

const previewLen = 120

// PutRequest is one module output to persist.
type PutRequest struct {
	Report  string
	Module  string
	VarName string
	// Value is stored as JSON. json.RawMessage and []byte holding JSON are stored as is.
	Value         any
	Anchor        string
	RenderedTable []byte
	RenderedChart []byte
}

// VariableStatus summarizes a stored variable for status listings.
type VariableStatus struct {
	VarName   string
	Module    string
	Anchor    string
	CreatedAt time.Time
	AgeDays   int
	HasImage  bool
	Preview   string
}

// Store writes report variables with one-row-per-key semantics.
type Store struct {
	vars    storage.VariableStore
	images  ImageStore
	metrics *observability.Metrics
	logger  logrus.FieldLogger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithImages sets the store used for rendered tables and charts.
func WithImages(images ImageStore) Option {
	return func(s *Store) { s.images = images }
}

// WithClock sets the clock used for created_at and age calculations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics attaches metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store.
func New(vars storage.VariableStore, opts ...Option) *Store {
	s := &Store{vars: vars, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// PutVariable stores req, replacing any previous value for (report, var_name).
// Supplying both renderings fails with ErrRenderConflict before anything is written.
// A new image goes to a fresh location and the previous one is removed only
// after the row is committed, so a failed write leaves the old row and its
// image intact.
func (s *Store) PutVariable(ctx context.Context, req PutRequest) (*domain.ReportVariable, error) {
	if req.RenderedTable != nil && req.RenderedChart != nil {
		return nil, fmt.Errorf("%s/%s: %w", req.Report, req.VarName, ErrRenderConflict)
	}

	value, err := encodeValue(req.Value)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", req.Report, req.VarName, err)
	}

	v := &domain.ReportVariable{
		ReportName: req.Report,
		ModuleName: req.Module,
		VarName:    req.VarName,
		Value:      value,
		AnchorName: req.Anchor,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
	}
	if err := storage.ValidateVariable(v); err != nil {
		return nil, fmt.Errorf("put %s/%s: %w", req.Report, req.VarName, err)
	}

	kind, image := KindTable, req.RenderedTable
	if req.RenderedChart != nil {
		kind, image = KindChart, req.RenderedChart
	}
	if image != nil {
		if s.images == nil {
			return nil, fmt.Errorf("put %s/%s: %w", req.Report, req.VarName, ErrNoImageStore)
		}
		path, err := s.images.Save(ctx, req.Report, req.VarName, kind, image)
		if err != nil {
			return nil, fmt.Errorf("save %s image for %s/%s: %w", kind, req.Report, req.VarName, err)
		}
		v.RenderedImagePath = path
	}

	previous, err := s.previousImage(ctx, req.Report, req.VarName)
	if err != nil {
		s.discardImage(ctx, v.RenderedImagePath)
		return nil, err
	}

	if err := s.vars.Replace(ctx, v); err != nil {
		s.discardImage(ctx, v.RenderedImagePath)
		return nil, fmt.Errorf("replace %s/%s: %w", req.Report, req.VarName, err)
	}
	if previous != v.RenderedImagePath {
		s.discardImage(ctx, previous)
	}

	s.metrics.RecordVariableWritten(req.Report)
	s.logger.WithFields(logrus.Fields{
		"report": req.Report,
		"module": req.Module,
		"var":    req.VarName,
		"image":  v.RenderedImagePath != "",
	}).Debug("variable stored")

	return v, nil
}

func (s *Store) previousImage(ctx context.Context, report, varName string) (string, error) {
	old, err := s.vars.Get(ctx, report, varName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("read previous %s/%s: %w", report, varName, err)
	}
	return old.RenderedImagePath, nil
}

// discardImage removes an image no row references. Failures leave an
// orphan file and are only logged.
func (s *Store) discardImage(ctx context.Context, location string) {
	if location == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, location); err != nil {
		s.logger.WithError(err).WithField("image", location).Warn("remove unreferenced image")
	}
}

// GetVariable returns one variable. Returns storage.ErrNotFound if not exists.
func (s *Store) GetVariable(ctx context.Context, report, varName string) (*domain.ReportVariable, error) {
	return s.vars.Get(ctx, report, varName)
}

// ListVariables returns all variables of a report ordered by name.
func (s *Store) ListVariables(ctx context.Context, report string) ([]*domain.ReportVariable, error) {
	vars, err := s.vars.ListByReport(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("list variables for %s: %w", report, err)
	}
	return vars, nil
}

// Variables returns the report's values keyed by template anchor.
// Variables without an anchor are keyed by their name.
func (s *Store) Variables(ctx context.Context, report string) (map[string]json.RawMessage, error) {
	vars, err := s.ListVariables(ctx, report)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(vars))
	for _, v := range vars {
		out[v.Anchor()] = v.Value
	}
	return out, nil
}

// Status returns a summary line per stored variable of report.
func (s *Store) Status(ctx context.Context, report string) ([]VariableStatus, error) {
	vars, err := s.ListVariables(ctx, report)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]VariableStatus, len(vars))
	for i, v := range vars {
		out[i] = VariableStatus{
			VarName:   v.VarName,
			Module:    v.ModuleName,
			Anchor:    v.Anchor(),
			CreatedAt: v.CreatedAt,
			AgeDays:   int(now.Sub(v.CreatedAt).Hours() / 24),
			HasImage:  v.RenderedImagePath != "",
			Preview:   preview(v.Value),
		}
	}
	return out, nil
}

// OpenImage returns the rendered image of a variable.
func (s *Store) OpenImage(ctx context.Context, v *domain.ReportVariable) ([]byte, error) {
	if v.RenderedImagePath == "" {
		return nil, storage.ErrNotFound
	}
	if s.images == nil {
		return nil, ErrNoImageStore
	}
	return s.images.Open(ctx, v.RenderedImagePath)
}

func encodeValue(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case json.RawMessage:
		return append(json.RawMessage(nil), v...), nil
	case []byte:
		if !json.Valid(v) {
			return nil, fmt.Errorf("byte value is not JSON")
		}
		return append(json.RawMessage(nil), v...), nil
	default:
		return json.Marshal(v)
	}
}

func preview(value json.RawMessage) string {
	if utf8.RuneCount(value) <= previewLen {
		return string(value)
	}
	runes := []rune(string(value))
	return string(runes[:previewLen]) + "..."
}
