package reporting

import (
	"fmt"
	"strings"
	"time"

	"report-assembler/internal/readiness"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", s.Report))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", s.RunID))
	sb.WriteString(fmt.Sprintf("| Cutoff | %s |\n", s.Cutoff.Format(time.DateOnly)))
	sb.WriteString(fmt.Sprintf("| Period | %s (%s to %s) |\n", s.Window.Label(),
		s.Window.PeriodStart.Format(time.DateOnly), s.Window.PeriodEnd.Format(time.DateOnly)))
	sb.WriteString(fmt.Sprintf("| Tolerance | %d days |\n", s.ToleranceDays))
	sb.WriteString(fmt.Sprintf("| State | %s |\n", s.State))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", s.Duration().Round(time.Millisecond)))
	sb.WriteString("\n")

	if s.AbortReason != "" {
		sb.WriteString(fmt.Sprintf("**Aborted:** %s\n\n", escape(s.AbortReason)))
	}

	// Readiness
	sb.WriteString("## Readiness\n\n")
	if s.Readiness != nil {
		writeReadinessTable(&sb, s.Readiness)
	} else {
		sb.WriteString("Readiness was not checked.\n\n")
	}

	// Modules
	c := r.Counts()
	sb.WriteString("## Modules\n\n")
	sb.WriteString(fmt.Sprintf("OK: %d | Failed: %d | Skipped: %d\n\n", c.OK, c.Failed, c.Skipped))
	if len(s.Modules) > 0 {
		sb.WriteString("| Order | Module | Status | Variables | Duration | Error |\n")
		sb.WriteString("|-------|--------|--------|-----------|----------|-------|\n")
		for _, m := range s.Modules {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
				m.RunOrder, m.Name, m.Status, strings.Join(m.Variables, ", "),
				m.Duration.Round(time.Millisecond), escape(m.Error)))
		}
	} else {
		sb.WriteString("No modules.\n")
	}
	sb.WriteString("\n")

	// Variables
	sb.WriteString("## Variables\n\n")
	if len(r.Variables) > 0 {
		sb.WriteString("| Variable | Module | Anchor | Age (days) | Image | Preview |\n")
		sb.WriteString("|----------|--------|--------|------------|-------|---------|\n")
		for _, v := range r.Variables {
			image := ""
			if v.HasImage {
				image = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s | %s |\n",
				v.VarName, v.Module, v.Anchor, v.AgeDays, image, escape(v.Preview)))
		}
	} else {
		sb.WriteString("No variables stored.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderReadinessMarkdown renders a pre-flight readiness check.
func RenderReadinessMarkdown(res *readiness.Result) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Readiness: %s\n\n", res.Report))
	sb.WriteString(fmt.Sprintf("Cutoff: %s | Tolerance: %d days\n\n", res.Cutoff.Format(time.DateOnly), res.ToleranceDays))
	writeReadinessTable(&sb, res)

	if res.Ready {
		sb.WriteString("**Ready.**\n")
	} else {
		sb.WriteString(fmt.Sprintf("**Not ready:** %s\n", escape(res.Reason())))
	}
	return sb.String()
}

func writeReadinessTable(sb *strings.Builder, res *readiness.Result) {
	if len(res.Aliases) == 0 {
		sb.WriteString("No required tables.\n\n")
		return
	}
	sb.WriteString("| Alias | Status | Policy | Last upload | Table |\n")
	sb.WriteString("|-------|--------|--------|-------------|-------|\n")
	for _, a := range res.Aliases {
		last := "-"
		if a.LastUpload != nil {
			last = a.LastUpload.Format(time.DateTime)
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			a.Alias, a.Status, a.Policy, last, a.PhysicalTable))
	}
	sb.WriteString("\n")
}

// escape keeps cell text on one line and away from column separators.
func escape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
