package reporting

import (
	"context"
	"fmt"
	"time"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/runner"
)

// VariableLister lists stored variables of a report.
type VariableLister interface {
	Status(ctx context.Context, report string) ([]artifacts.VariableStatus, error)
}

// Generator produces reports from run summaries and stored variables.
type Generator struct {
	vars VariableLister
	now  func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(vars VariableLister) *Generator {
	return &Generator{
		vars: vars,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of one run.
func (g *Generator) Generate(ctx context.Context, summary *runner.RunSummary) (*Report, error) {
	if summary == nil {
		return nil, fmt.Errorf("generate report: nil summary")
	}

	vars, err := g.vars.Status(ctx, summary.Report)
	if err != nil {
		return nil, fmt.Errorf("list variables of %s: %w", summary.Report, err)
	}

	return &Report{
		GeneratedAt: g.now(),
		Summary:     summary,
		Variables:   vars,
	}, nil
}
