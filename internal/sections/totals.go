package sections

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"report-assembler/internal/domain"
	"report-assembler/internal/params"
	"report-assembler/internal/period"
	"report-assembler/internal/runner"
)

// DefaultDateColumn is used when DATE_COLUMN is not set.
const DefaultDateColumn = "date"

// TotalSpec is one entry of the TOTAL_COLUMNS parameter.
type TotalSpec struct {
	Alias   string   `json:"alias"`
	Columns []string `json:"columns"`
}

// AliasTotals is the value written per alias by the column_totals section.
type AliasTotals struct {
	Alias         string                                `json:"alias"`
	PhysicalTable string                                `json:"physical_table"`
	Currency      string                                `json:"currency,omitempty"`
	Period        string                                `json:"period"`
	RowsInScope   int                                   `json:"rows_in_scope"`
	Totals        map[string]decimal.Decimal            `json:"totals"`
	Monthly       map[string]map[string]decimal.Decimal `json:"monthly"`
}

// columnTotals sums the configured columns of each alias over the months in scope.
type columnTotals struct{}

func (m *columnTotals) Run(ctx context.Context, rc *runner.Context) error {
	var specs []TotalSpec
	ok, err := rc.Param(ctx, params.KeyTotalColumns, &specs)
	if err != nil {
		return err
	}
	if !ok || len(specs) == 0 {
		return &domain.ConfigurationError{Report: rc.Report, Reason: params.KeyTotalColumns + " is not set"}
	}

	dateCol := DefaultDateColumn
	if _, err := rc.Param(ctx, params.KeyDateColumn, &dateCol); err != nil {
		return err
	}
	var currency string
	if _, err := rc.Param(ctx, params.KeyCurrency, &currency); err != nil {
		return err
	}

	for _, target := range specs {
		snap, err := rc.RequireSnapshot(ctx, target.Alias)
		if err != nil {
			return err
		}

		totals, err := Sum(snap.Dataset, rc.Window, dateCol, target.Columns)
		if err != nil {
			return fmt.Errorf("alias %s: %w", target.Alias, err)
		}
		totals.Alias = target.Alias
		totals.PhysicalTable = snap.Event.PhysicalTable
		totals.Currency = currency
		totals.Period = rc.Window.Label()

		varName := "totals_" + target.Alias
		anchor := "TOTALS_" + strings.ToUpper(target.Alias)
		if err := rc.PutVariable(ctx, varName, totals, runner.WithAnchor(anchor)); err != nil {
			return err
		}
	}
	return nil
}

// Sum adds up columns over the rows of ds whose dateCol falls in scope of w.
// Rows with an unparseable date are an error; empty cells count as zero.
func Sum(ds *domain.Dataset, w period.Window, dateCol string, columns []string) (*AliasTotals, error) {
	out := &AliasTotals{
		Totals:  make(map[string]decimal.Decimal, len(columns)),
		Monthly: make(map[string]map[string]decimal.Decimal),
	}
	for _, c := range columns {
		out.Totals[c] = decimal.Zero
	}
	if ds == nil {
		return out, nil
	}

	for i, row := range ds.Rows {
		day, err := toTime(row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i, dateCol, err)
		}
		if !w.InScope(day) {
			continue
		}
		out.RowsInScope++

		month := day.Month().String()
		monthly, ok := out.Monthly[month]
		if !ok {
			monthly = make(map[string]decimal.Decimal, len(columns))
			out.Monthly[month] = monthly
		}
		for _, c := range columns {
			amount, err := toDecimal(row[c])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			out.Totals[c] = out.Totals[c].Add(amount)
			monthly[c] = monthly[c].Add(amount)
		}
	}
	return out, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", "")
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
	}
}

var dateLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable date %q", x)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}
