package runner

import (
	"fmt"
	"time"

	"report-assembler/internal/period"
	"report-assembler/internal/readiness"
)

// State is the lifecycle state of a run.
type State string

const (
	StateLoaded    State = "LOADED"
	StateValidated State = "VALIDATED"
	StateRunning   State = "RUNNING"
	StateDone      State = "DONE"
	StateAborted   State = "ABORTED"
)

// ModuleStatus is the outcome of one module.
type ModuleStatus string

const (
	ModuleOK      ModuleStatus = "OK"
	ModuleFailed  ModuleStatus = "FAILED"
	ModuleSkipped ModuleStatus = "SKIPPED"
)

// ModuleExecutionError wraps an error or panic raised by a module.
type ModuleExecutionError struct {
	Module   string
	Report   string
	Cutoff   time.Time
	Panicked bool
	Err      error
}

func (e *ModuleExecutionError) Error() string {
	kind := "failed"
	if e.Panicked {
		kind = "panicked"
	}
	return fmt.Sprintf("module %s %s (report %s, cutoff %s): %v",
		e.Module, kind, e.Report, e.Cutoff.Format(time.DateOnly), e.Err)
}

func (e *ModuleExecutionError) Unwrap() error {
	return e.Err
}

// ModuleResult records the execution of one module.
type ModuleResult struct {
	Name      string        `json:"name"`
	RunOrder  int           `json:"run_order"`
	Status    ModuleStatus  `json:"status"`
	Error     string        `json:"error,omitempty"`
	Err       error         `json:"-"`
	Variables []string      `json:"variables,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// RunSummary is the result of Runner.Run.
type RunSummary struct {
	RunID         string            `json:"run_id"`
	Report        string            `json:"report"`
	Cutoff        time.Time         `json:"cutoff"`
	Window        period.Window     `json:"window"`
	ToleranceDays int               `json:"tolerance_days"`
	State         State             `json:"state"`
	Ready         bool              `json:"ready"`
	Readiness     *readiness.Result `json:"readiness,omitempty"`
	AbortReason   string            `json:"abort_reason,omitempty"`
	Modules       []ModuleResult    `json:"modules"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// Succeeded returns the modules that completed without error.
func (s *RunSummary) Succeeded() []ModuleResult {
	return s.withStatus(ModuleOK)
}

// Failed returns the modules that returned an error or panicked.
func (s *RunSummary) Failed() []ModuleResult {
	return s.withStatus(ModuleFailed)
}

// VariablesWritten returns every variable written during the run in write order.
func (s *RunSummary) VariablesWritten() []string {
	var out []string
	for _, m := range s.Modules {
		out = append(out, m.Variables...)
	}
	return out
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *RunSummary) withStatus(status ModuleStatus) []ModuleResult {
	var out []ModuleResult
	for _, m := range s.Modules {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}
