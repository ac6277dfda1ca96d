package domain

import (
	"encoding/json"
	"time"
)

// ReportVariable is one persisted module output.
// Corresponds to report_variables table: exactly one row per (report_name, var_name).
type ReportVariable struct {
	ReportName        string
	ModuleName        string
	VarName           string
	Value             json.RawMessage // JSON document
	AnchorName        string          // placeholder name in the report template
	RenderedImagePath string          // empty when nothing was rendered
	CreatedAt         time.Time
}

// Anchor returns the template anchor, falling back to the variable name.
func (v *ReportVariable) Anchor() string {
	if v.AnchorName != "" {
		return v.AnchorName
	}
	return v.VarName
}

// ReportParam is a per-report configuration value.
// Corresponds to report_params table, unique on (report_name, param_key).
type ReportParam struct {
	ReportName string
	Key        string
	Value      json.RawMessage
}
