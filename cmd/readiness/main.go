// Command readiness checks whether a report's required aliases are fresh
// enough to run, without running anything.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"report-assembler/internal/app"
	"report-assembler/internal/config"
	"report-assembler/internal/fixtures"
	"report-assembler/internal/logging"
	"report-assembler/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	report := flag.String("report", fixtures.DemoReport, "Report name")
	cutoffStr := flag.String("cutoff", "", "Cutoff date YYYY-MM-DD or RFC3339 (default: now)")
	tolerance := flag.Int("tolerance-days", -1, "Staleness tolerance in days (default: from config)")
	asJSON := flag.Bool("json", false, "Print the result as JSON instead of markdown")
	flag.Parse()

	ready, err := run(*configPath, *report, *cutoffStr, *tolerance, *asJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ready {
		os.Exit(2)
	}
}

func run(configPath, report, cutoffStr string, tolerance int, asJSON bool) (bool, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return false, fmt.Errorf("load config: %w", err)
	}

	cutoff := time.Now().UTC()
	if cutoffStr != "" {
		if cutoff, err = parseCutoff(cutoffStr); err != nil {
			return false, err
		}
	}
	if tolerance < 0 {
		tolerance = cfg.Runner.ToleranceDays
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})
	if err != nil {
		return false, err
	}

	ctx := context.Background()
	a, err := app.Build(ctx, *cfg, logger)
	if err != nil {
		return false, err
	}
	defer a.Close()

	res, err := a.Readiness.Check(ctx, report, cutoff, tolerance)
	if err != nil {
		return false, err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return false, err
		}
	} else {
		fmt.Print(reporting.RenderReadinessMarkdown(res))
	}
	return res.Ready, nil
}

func parseCutoff(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cutoff %q: want YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
