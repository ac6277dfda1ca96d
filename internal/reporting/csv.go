package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"report-assembler/internal/artifacts"
	"report-assembler/internal/runner"
)

// RenderCSV renders variable statuses as CSV string.
func RenderCSV(vars []artifacts.VariableStatus) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"var_name", "module", "anchor", "created_at", "age_days", "has_image", "preview"}); err != nil {
		return "", err
	}
	for _, v := range vars {
		if err := w.Write([]string{
			v.VarName,
			v.Module,
			v.Anchor,
			v.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(v.AgeDays),
			strconv.FormatBool(v.HasImage),
			v.Preview,
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// RenderModulesCSV renders the module results of a run as CSV string.
func RenderModulesCSV(s *runner.RunSummary) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"run_id", "report", "run_order", "module", "status", "variables", "duration_ms", "error"}); err != nil {
		return "", err
	}
	for _, m := range s.Modules {
		if err := w.Write([]string{
			s.RunID,
			s.Report,
			strconv.Itoa(m.RunOrder),
			m.Name,
			string(m.Status),
			strings.Join(m.Variables, ";"),
			strconv.FormatInt(m.Duration.Milliseconds(), 10),
			m.Error,
		}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}
