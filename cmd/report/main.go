// Command report runs one report for a cutoff and writes the rendered output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"report-assembler/internal/app"
	"report-assembler/internal/config"
	"report-assembler/internal/fixtures"
	"report-assembler/internal/logging"
	"report-assembler/internal/reporting"
	"report-assembler/internal/runner"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	report := flag.String("report", fixtures.DemoReport, "Report name")
	cutoffStr := flag.String("cutoff", "", "Cutoff date YYYY-MM-DD or RFC3339 (default: now)")
	tolerance := flag.Int("tolerance-days", -1, "Staleness tolerance in days (default: from config)")
	modules := flag.String("modules", "", "Comma-separated subset of modules to run")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	formats := flag.String("formats", "md,csv,xlsx", "Comma-separated output formats (md, csv, xlsx)")
	useFixtures := flag.Bool("use-fixtures", false, "Seed the demo report before running (implies memory storage unless -config says otherwise)")
	flag.Parse()

	if err := run(*configPath, *report, *cutoffStr, *tolerance, *modules, *outputDir, *formats, *useFixtures); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, report, cutoffStr string, tolerance int, modules, outputDir, formats string, useFixtures bool) error {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if useFixtures && configPath == "" && os.Getenv("STORAGE_BACKEND") == "" {
		cfg.Storage.Backend = config.BackendMemory
	}

	outFormats, err := reporting.ParseFormats(formats)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC()
	if cutoffStr != "" {
		if cutoff, err = parseCutoff(cutoffStr); err != nil {
			return err
		}
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: os.Stderr})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Build(ctx, *cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if useFixtures {
		if err := a.LoadFixtures(ctx, cutoff); err != nil {
			return fmt.Errorf("load fixtures: %w", err)
		}
	}

	req := runner.RunRequest{Report: report, Cutoff: cutoff, Modules: splitList(modules)}
	if tolerance >= 0 {
		req.ToleranceDays = &tolerance
	}

	summary, runErr := a.Runner.Run(ctx, req)
	if summary == nil {
		return runErr
	}

	r, err := a.Reports.Generate(ctx, summary)
	if err != nil {
		return err
	}
	paths, err := reporting.WriteFiles(outputDir, r, outFormats)
	if err != nil {
		return err
	}

	counts := r.Counts()
	fmt.Printf("Run %s of %s (cutoff %s): %s\n", summary.RunID, summary.Report, summary.Cutoff.Format(time.DateOnly), summary.State)
	if summary.State == runner.StateAborted {
		fmt.Printf("  Aborted: %s\n", summary.AbortReason)
	}
	fmt.Printf("  Modules: %d ok, %d failed, %d skipped\n", counts.OK, counts.Failed, counts.Skipped)
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}

	if runErr != nil {
		return runErr
	}
	if summary.State == runner.StateAborted {
		return errors.New("report not ready")
	}
	return nil
}

// parseCutoff accepts a date or a full RFC3339 timestamp. Dates are UTC midnight.
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

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
