package scenario

import (
	"time"
)

// StepStatus is the outcome of one scenario step.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one executed (or skipped) step.
type StepResult struct {
	Index       int
	Kind        string
	Description string
	Status      StepStatus
	Err         error
	// Elapsed is the step's wall-clock duration; for a passed wait
	// step it is the measured convergence time.
	Elapsed time.Duration
}

// Exit codes for CI: assertion failures and infrastructure errors must
// be distinguishable.
const (
	ExitOK       = 0
	ExitFailed   = 1
	ExitInfraErr = 2
)

// Result is the outcome of one scenario run.
type Result struct {
	RunID     string
	Scenario  string
	Topology  string
	Steps     []StepResult
	StartedAt time.Time
	Duration  time.Duration
	// InfraErr is set when the run aborted on an infrastructure
	// failure (engine unreachable, invalid topology) rather than a
	// failed assertion.
	InfraErr error
}

// Passed reports whether every executed step passed and no
// infrastructure error occurred.
func (r *Result) Passed() bool {
	if r.InfraErr != nil {
		return false
	}
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			return false
		}
	}
	return true
}

// ExitCode maps the run outcome for CI consumption.
func (r *Result) ExitCode() int {
	if r.InfraErr != nil {
		return ExitInfraErr
	}
	if !r.Passed() {
		return ExitFailed
	}
	return ExitOK
}

// Failures returns the failed steps.
func (r *Result) Failures() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}
