// Command server runs the configured report schedules and exposes
// health, metrics and status over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/app"
	"report-assembler/internal/config"
	"report-assembler/internal/fixtures"
	"report-assembler/internal/logging"
	"report-assembler/internal/observability"
	"report-assembler/internal/reporting"
	"report-assembler/internal/runner"
	"report-assembler/internal/scheduler"
)

// Server holds all components of the service.
type Server struct {
	app       *app.App
	scheduler *scheduler.Scheduler
	logger    logrus.FieldLogger
	outputDir string
	formats   []string
	started   time.Time
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (optional)")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")
	formats := flag.String("formats", "md,csv,xlsx", "Comma-separated output formats")
	useFixtures := flag.Bool("use-fixtures", false, "Seed the demo report and schedule it")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}
	if *useFixtures && len(cfg.Schedules) == 0 {
		cfg.Schedules = []config.ScheduleConfig{{Report: fixtures.DemoReport, IntervalMinutes: 60}}
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outFormats, err := reporting.ParseFormats(*formats)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, *cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build application")
	}
	defer a.Close()

	if *useFixtures {
		if err := a.LoadFixtures(ctx, time.Now().UTC()); err != nil {
			logger.WithError(err).Fatal("failed to load fixtures")
		}
		logger.WithField("report", fixtures.DemoReport).Info("demo fixtures loaded")
	}

	if len(cfg.Schedules) == 0 {
		logger.Warn("no schedules configured; serving health and metrics only")
	}

	server := &Server{
		app:       a,
		logger:    logger,
		outputDir: *outputDir,
		formats:   outFormats,
		started:   time.Now(),
	}
	server.scheduler = scheduler.New(a.Runner, scheduler.JobsFrom(cfg.Schedules),
		scheduler.WithLogger(logger),
		scheduler.WithSummaryHandler(server.writeReport),
	)

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := server.httpServer(cfg.Server.Addr())
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server error")
			cancel()
		}
	}()

	err = server.scheduler.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("server error")
	}
	logger.Info("shutdown complete")
}

// writeReport renders every scheduled run to the output directory.
func (s *Server) writeReport(ctx context.Context, summary *runner.RunSummary) {
	log := s.logger.WithFields(logrus.Fields{"report": summary.Report, "run_id": summary.RunID})

	r, err := s.app.Reports.Generate(ctx, summary)
	if err != nil {
		log.WithError(err).Error("generate report")
		return
	}
	paths, err := reporting.WriteFiles(s.outputDir, r, s.formats)
	if err != nil {
		log.WithError(err).Error("write report")
		return
	}
	log.WithField("files", paths).Info("report written")
}

func (s *Server) httpServer(addr string) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.app.Registry != nil {
		mux.Handle("/metrics", observability.Handler(s.app.Registry))
	}

	mux.HandleFunc("/status", s.handleStatus)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status  string                `json:"status"`
	Uptime  string                `json:"uptime"`
	Storage string                `json:"storage"`
	Modules []string              `json:"modules"`
	Jobs    []scheduler.JobStatus `json:"jobs"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "running",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Storage: s.app.Config.Storage.Backend,
		Modules: s.app.Modules.Sorted(),
		Jobs:    s.scheduler.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
