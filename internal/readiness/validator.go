// Package readiness decides whether a report has fresh enough data to run.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/domain"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/storage"
)

// Status classifies one required alias.
type Status string

const (
	StatusFresh   Status = "FRESH"
	StatusTooOld  Status = "TOO_OLD"
	StatusMissing Status = "MISSING"
)

// AliasStatus is the readiness verdict for one required alias.
type AliasStatus struct {
	Alias         string
	Status        Status
	Policy        domain.CutoffPolicy
	LastUpload    *time.Time // nil when Missing
	PhysicalTable string
	Threshold     time.Time // oldest acceptable upload; zero under PolicyPresence
}

// Describe returns a one-line human readable verdict.
func (a AliasStatus) Describe() string {
	switch a.Status {
	case StatusMissing:
		return fmt.Sprintf("%s: %s (never uploaded)", a.Alias, a.Status)
	case StatusTooOld:
		return fmt.Sprintf("%s: %s (last upload %s, needs %s or later)",
			a.Alias, a.Status, a.LastUpload.Format(time.DateTime), a.Threshold.Format(time.DateTime))
	default:
		return fmt.Sprintf("%s: %s", a.Alias, a.Status)
	}
}

// Result is the outcome of a readiness check.
type Result struct {
	Report        string
	Cutoff        time.Time
	ToleranceDays int
	Aliases       []AliasStatus // ordered by alias
	Ready         bool
}

// Blocking returns the aliases that are not Fresh.
func (r *Result) Blocking() []AliasStatus {
	var out []AliasStatus
	for _, a := range r.Aliases {
		if a.Status != StatusFresh {
			out = append(out, a)
		}
	}
	return out
}

// Reason summarizes why the report is not ready. Empty when ready.
func (r *Result) Reason() string {
	blocking := r.Blocking()
	parts := make([]string, len(blocking))
	for i, a := range blocking {
		parts[i] = a.Describe()
	}
	return strings.Join(parts, "; ")
}

// Validator checks a report's required aliases against the upload ledger.
type Validator struct {
	defs    storage.ReportDefinitionStore
	events  storage.UploadLedgerStore
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// New creates a Validator. metrics and logger may be nil.
func New(defs storage.ReportDefinitionStore, events storage.UploadLedgerStore, metrics *observability.Metrics, logger logrus.FieldLogger) *Validator {
	return &Validator{
		defs:    defs,
		events:  events,
		metrics: metrics,
		logger:  logging.OrDiscard(logger),
	}
}

// Check classifies every required alias of report as Fresh, TooOld or Missing.
//
// An alias is Fresh when its latest upload for this report is at or after
// cutoff minus toleranceDays (the boundary itself is Fresh). A report with no
// required aliases is ready. Check never writes anything.
func (v *Validator) Check(ctx context.Context, report string, cutoff time.Time, toleranceDays int) (*Result, error) {
	if toleranceDays < 0 {
		return nil, fmt.Errorf("%w: tolerance days must be non-negative, got %d", storage.ErrInvalidInput, toleranceDays)
	}

	tables, err := v.defs.RequiredTables(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("load required tables for %s: %w", report, err)
	}

	result := &Result{
		Report:        report,
		Cutoff:        cutoff,
		ToleranceDays: toleranceDays,
		Ready:         true,
	}

	for _, rt := range tables {
		if !rt.Required {
			continue
		}

		status, err := v.checkAlias(ctx, report, rt, cutoff, toleranceDays)
		if err != nil {
			return nil, err
		}
		if status.Status != StatusFresh {
			result.Ready = false
		}
		v.metrics.RecordAliasStatus(report, string(status.Status))
		result.Aliases = append(result.Aliases, status)
	}

	v.metrics.RecordReadiness(report, result.Ready)
	v.logger.WithFields(logrus.Fields{
		"report":  report,
		"cutoff":  cutoff.Format(time.DateOnly),
		"aliases": len(result.Aliases),
		"ready":   result.Ready,
	}).Info("readiness checked")

	return result, nil
}

func (v *Validator) checkAlias(ctx context.Context, report string, rt *domain.RequiredTable, cutoff time.Time, toleranceDays int) (AliasStatus, error) {
	policy, err := rt.ExpectedCutoffPolicy.Normalize()
	if err != nil {
		return AliasStatus{}, &domain.ConfigurationError{
			Report: report,
			Reason: fmt.Sprintf("alias %q: %v", rt.Alias, err),
		}
	}

	status := AliasStatus{Alias: rt.Alias, Policy: policy}
	switch policy {
	case domain.PolicyStrict:
		status.Threshold = cutoff
	case domain.PolicyTolerance:
		status.Threshold = cutoff.AddDate(0, 0, -toleranceDays)
	}

	latest, err := v.events.LatestForReportAlias(ctx, report, rt.Alias)
	if errors.Is(err, storage.ErrNotFound) {
		status.Status = StatusMissing
		return status, nil
	}
	if err != nil {
		return AliasStatus{}, fmt.Errorf("latest upload for %s/%s: %w", report, rt.Alias, err)
	}

	uploadedAt := latest.UploadedAt
	status.LastUpload = &uploadedAt
	status.PhysicalTable = latest.PhysicalTable

	if policy != domain.PolicyPresence && uploadedAt.Before(status.Threshold) {
		status.Status = StatusTooOld
	} else {
		status.Status = StatusFresh
	}
	return status, nil
}
