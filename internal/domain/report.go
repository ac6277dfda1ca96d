package domain

import "fmt"

// CutoffPolicy controls how an alias is judged fresh.
type CutoffPolicy string

const (
	// PolicyTolerance accepts uploads not older than cutoff minus the caller's tolerance.
	PolicyTolerance CutoffPolicy = "tolerance"
	// PolicyStrict accepts uploads at or after the cutoff only.
	PolicyStrict CutoffPolicy = "strict"
	// PolicyPresence accepts any upload regardless of age.
	PolicyPresence CutoffPolicy = "presence"
)

// Normalize maps the empty policy to PolicyTolerance and rejects unknown values.
func (p CutoffPolicy) Normalize() (CutoffPolicy, error) {
	switch p {
	case "", PolicyTolerance:
		return PolicyTolerance, nil
	case PolicyStrict, PolicyPresence:
		return p, nil
	default:
		return "", fmt.Errorf("unknown cutoff policy %q", string(p))
	}
}

// RequiredTable declares that a report depends on an alias.
// Corresponds to required_tables table, unique on (report_name, alias).
type RequiredTable struct {
	ReportName           string
	Alias                string
	Required             bool // optional aliases are not checked by readiness
	ExpectedCutoffPolicy CutoffPolicy
}

// ReportModule configures one module of a report.
// Corresponds to report_modules table, unique on (report_name, module_name).
type ReportModule struct {
	ReportName string
	ModuleName string
	RunOrder   int // ascending execution order
	Enabled    bool
}
