// Package params reads and writes per-report configuration values.
package params

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"report-assembler/internal/domain"
	"report-assembler/internal/storage"
)

// Well-known parameter keys used by report sections.
const (
	KeyTableColors  = "TABLE_COLORS"
	KeyCurrency     = "CURRENCY"
	KeyTotalColumns = "TOTAL_COLUMNS"
	KeyDateColumn   = "DATE_COLUMN"
)

// Params provides typed access to report parameters.
type Params struct {
	store storage.ReportParamStore
}

// New creates a Params.
func New(store storage.ReportParamStore) *Params {
	return &Params{store: store}
}

// Set stores value as JSON under (report, key).
func (p *Params) Set(ctx context.Context, report, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode param %s: %w", key, err)
	}
	if err := p.store.Set(ctx, &domain.ReportParam{ReportName: report, Key: key, Value: raw}); err != nil {
		return fmt.Errorf("set param %s/%s: %w", report, key, err)
	}
	return nil
}

// Get decodes the parameter into dst. It reports false when the parameter is not set.
func (p *Params) Get(ctx context.Context, report, key string, dst any) (bool, error) {
	param, err := p.store.Get(ctx, report, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get param %s/%s: %w", report, key, err)
	}
	if err := json.Unmarshal(param.Value, dst); err != nil {
		return false, fmt.Errorf("decode param %s/%s: %w", report, key, err)
	}
	return true, nil
}

// Load returns every parameter of a report keyed by name.
func (p *Params) Load(ctx context.Context, report string) (map[string]json.RawMessage, error) {
	list, err := p.store.List(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("list params for %s: %w", report, err)
	}
	out := make(map[string]json.RawMessage, len(list))
	for _, param := range list {
		out[param.Key] = param.Value
	}
	return out, nil
}
