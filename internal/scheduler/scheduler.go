// Package scheduler runs configured reports periodically.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"report-assembler/internal/config"
	"report-assembler/internal/logging"
	"report-assembler/internal/runlock"
	"report-assembler/internal/runner"
)

// Runner executes one report run.
type Runner interface {
	Run(ctx context.Context, req runner.RunRequest) (*runner.RunSummary, error)
}

// Job runs one report every Interval with the cutoff set to the current time.
type Job struct {
	Report        string
	Interval      time.Duration
	ToleranceDays *int
	Modules       []string
}

// JobStatus is a point-in-time view of a job.
type JobStatus struct {
	Report    string    `json:"report"`
	Interval  string    `json:"interval"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Skipped   int       `json:"skipped"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastRunID string    `json:"last_run_id,omitempty"`
	LastState string    `json:"last_state,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger attaches a logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Scheduler) { s.log = logger }
}

// WithSummaryHandler is called after every run that produced a summary,
// including aborted and cancelled ones.
func WithSummaryHandler(fn func(context.Context, *runner.RunSummary)) Option {
	return func(s *Scheduler) { s.onSummary = fn }
}

// Scheduler drives Jobs. At most one run per report is in flight in this
// process; the runner's lock covers other processes.
type Scheduler struct {
	runner    Runner
	jobs      []Job
	now       func() time.Time
	log       logrus.FieldLogger
	onSummary func(context.Context, *runner.RunSummary)

	mu     sync.Mutex
	status map[string]*JobStatus
}

// New creates a Scheduler.
func New(r Runner, jobs []Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: r,
		jobs:   jobs,
		now:    func() time.Time { return time.Now().UTC() },
		status: make(map[string]*JobStatus, len(jobs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log)

	for _, j := range jobs {
		s.status[j.Report] = &JobStatus{Report: j.Report, Interval: j.Interval.String()}
	}
	return s
}

// Run starts every job, runs each once immediately and then on its ticker.
// It blocks until ctx is done and all in-flight runs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		if j.Interval <= 0 {
			s.log.WithField("report", j.Report).Warn("schedule without interval ignored")
			continue
		}
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	s.log.WithFields(logrus.Fields{"report": j.Report, "interval": j.Interval}).Info("schedule started")

	s.RunOnce(ctx, j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, j)
		}
	}
}

// RunOnce runs j now unless a run of the same report is already in flight.
// It reports whether a run was attempted.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) bool {
	log := s.log.WithField("report", j.Report)

	s.mu.Lock()
	st, ok := s.status[j.Report]
	if !ok {
		st = &JobStatus{Report: j.Report, Interval: j.Interval.String()}
		s.status[j.Report] = st
	}
	if st.Running {
		st.Skipped++
		s.mu.Unlock()
		log.Info("run already in progress, skipping")
		return false
	}
	st.Running = true
	s.mu.Unlock()

	cutoff := s.now()
	summary, err := s.runner.Run(ctx, runner.RunRequest{
		Report:        j.Report,
		Cutoff:        cutoff,
		ToleranceDays: j.ToleranceDays,
		Modules:       j.Modules,
	})

	s.mu.Lock()
	st.Running = false
	st.LastRun = cutoff
	st.LastError = ""
	switch {
	case errors.Is(err, runlock.ErrRunInProgress):
		st.Skipped++
		log.Info("report locked by another process, skipping")
	default:
		st.Runs++
		if err != nil {
			st.LastError = err.Error()
		}
		if summary != nil {
			st.LastRunID = summary.RunID
			st.LastState = string(summary.State)
		} else {
			st.LastRunID = ""
			st.LastState = ""
		}
	}
	s.mu.Unlock()

	if err != nil && !errors.Is(err, runlock.ErrRunInProgress) {
		log.WithError(err).Error("scheduled run failed")
	}
	if summary != nil && s.onSummary != nil {
		s.onSummary(ctx, summary)
	}
	return true
}

// Status returns the state of every job ordered by report.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.status))
	for _, st := range s.status {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Report < out[j].Report })
	return out
}

// JobsFrom converts configured schedules into Jobs.
func JobsFrom(schedules []config.ScheduleConfig) []Job {
	jobs := make([]Job, 0, len(schedules))
	for _, sc := range schedules {
		jobs = append(jobs, Job{
			Report:        sc.Report,
			Interval:      sc.Interval(),
			ToleranceDays: sc.ToleranceDays,
			Modules:       sc.Modules,
		})
	}
	return jobs
}
