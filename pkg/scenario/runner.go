// Package scenario sequences orchestration, fault injection and
// verification steps, and reports pass/fail suitable for CI.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/routelab/routelab/api"
	"github.com/routelab/routelab/pkg/metrics"
	"github.com/routelab/routelab/pkg/neighbor"
	"github.com/routelab/routelab/pkg/orchestrator"
	"github.com/routelab/routelab/pkg/poller"
	"github.com/routelab/routelab/pkg/runtime"
	"github.com/routelab/routelab/pkg/topology"
)

// DefaultWaitTimeout applies to wait steps that declare none.
const DefaultWaitTimeout = 60 * time.Second

// Config configures a Runner.
type Config struct {
	Logger       *slog.Logger
	Clock        clockwork.Clock
	Orchestrator *orchestrator.Orchestrator
	// Execer runs vtysh commands in routers; the container runtime
	// client satisfies it.
	Execer             neighbor.Execer
	PollInterval       time.Duration
	DefaultWaitTimeout time.Duration
}

// Validate fills defaults and rejects incomplete configs.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Orchestrator == nil {
		return errors.New("orchestrator is required")
	}
	if cfg.Execer == nil {
		return errors.New("execer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = poller.DefaultPollInterval
	}
	if cfg.DefaultWaitTimeout <= 0 {
		cfg.DefaultWaitTimeout = DefaultWaitTimeout
	}
	return nil
}

// Runner executes scenarios. Steps run strictly in order; the first
// failing assert stops the run, and an infrastructure failure aborts
// it with a distinct exit status.
type Runner struct {
	log *slog.Logger
	cfg Config
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{log: cfg.Logger, cfg: cfg}, nil
}

// Run executes the scenario against a working copy of the topology.
// Mutations from configure and fault steps accumulate in the copy; the
// declared document is never modified.
func (r *Runner) Run(ctx context.Context, sc *api.Scenario, topo *api.Topology) (*Result, error) {
	if errs := topology.Validate(topo); len(errs) > 0 {
		return nil, topology.Errors(errs)
	}

	working := topo.Copy()
	res := &Result{
		RunID:     uuid.NewString(),
		Scenario:  sc.Name,
		Topology:  working.Name,
		StartedAt: r.cfg.Clock.Now(),
	}
	r.log.Info("scenario starting", "scenario", sc.Name, "run_id", res.RunID, "steps", len(sc.Steps))

	collector, err := neighbor.NewCollector(neighbor.CollectorConfig{
		Logger:        r.log,
		Clock:         r.cfg.Clock,
		Execer:        r.cfg.Execer,
		Topology:      working,
		CollectRoutes: scenarioNeedsRoutes(sc),
	})
	if err != nil {
		return nil, err
	}
	pol, err := poller.New(poller.Config{
		Logger:       r.log,
		Source:       collector,
		Clock:        r.cfg.Clock,
		PollInterval: r.cfg.PollInterval,
	})
	if err != nil {
		return nil, err
	}

	// Routers eligible for polling: only fully-configured ones. Before
	// the first configure step this is empty, so scenarios start with
	// a bring-up.
	var healthy []string

	stopped := false
	for i, step := range sc.Steps {
		sr := StepResult{Index: i + 1, Kind: step.Kind()}
		if stopped {
			sr.Status = StepSkipped
			res.Steps = append(res.Steps, sr)
			continue
		}

		stepStart := r.cfg.Clock.Now()
		switch {
		case step.Configure != nil:
			healthy = r.runConfigure(ctx, &sr, working, step.Configure.Mutations, false, res)
		case step.InjectFault != nil:
			healthy = r.runConfigure(ctx, &sr, working, step.InjectFault.Mutations, true, res)
		case step.WaitFor != nil:
			r.runWait(ctx, &sr, pol, healthy, *step.WaitFor)
		case step.Assert != nil:
			r.runAssert(ctx, &sr, pol, healthy, *step.Assert)
			if sr.Status == StepFailed {
				stopped = true
			}
		default:
			sr.Status = StepFailed
			sr.Err = errors.New("step declares no action")
		}
		if sr.Err != nil && errors.Is(sr.Err, runtime.ErrRuntimeUnavailable) {
			res.InfraErr = sr.Err
		}
		if res.InfraErr != nil {
			sr.Status = StepFailed
			sr.Err = res.InfraErr
			sr.Elapsed = r.cfg.Clock.Since(stepStart)
			res.Steps = append(res.Steps, sr)
			break
		}
		if sr.Elapsed == 0 {
			sr.Elapsed = r.cfg.Clock.Since(stepStart)
		}
		metrics.ScenarioStepsTotal.WithLabelValues(sr.Kind, string(sr.Status)).Inc()
		r.log.Info("step finished",
			"step", sr.Index,
			"kind", sr.Kind,
			"status", string(sr.Status),
			"detail", sr.Description,
			"elapsed", sr.Elapsed.String())
		res.Steps = append(res.Steps, sr)
	}

	res.Duration = r.cfg.Clock.Since(res.StartedAt)
	r.log.Info("scenario finished",
		"scenario", sc.Name,
		"run_id", res.RunID,
		"passed", res.Passed(),
		"exit_code", res.ExitCode(),
		"duration", res.Duration.String())
	return res, nil
}

// runConfigure applies mutations and reconciles. Fault injection is
// the same operation tagged for reporting; there is no separate code
// path.
func (r *Runner) runConfigure(ctx context.Context, sr *StepResult, working *api.Topology, mutations []api.Mutation, fault bool, res *Result) []string {
	for _, m := range mutations {
		if err := m.Apply(working); err != nil {
			sr.Status = StepFailed
			sr.Err = err
			return nil
		}
	}
	sr.Description = describeMutations(mutations, fault)

	recRes, err := r.cfg.Orchestrator.Reconcile(ctx, working)
	if err != nil {
		// Validation errors, a concurrent reconciliation, or an
		// unreachable engine: all abort the run.
		res.InfraErr = err
		return nil
	}
	if !recRes.OK() {
		parts := make([]string, len(recRes.Failures))
		for i, f := range recRes.Failures {
			parts[i] = f.String()
		}
		sr.Status = StepFailed
		sr.Err = fmt.Errorf("reconciliation failures: %s", strings.Join(parts, "; "))
	} else {
		sr.Status = StepPassed
	}
	return recRes.HealthyRouters()
}

func (r *Runner) runWait(ctx context.Context, sr *StepResult, pol *poller.Poller, routers []string, step api.WaitStep) {
	pred, err := CompileCondition(step.Condition)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}
	timeout := time.Duration(step.Timeout)
	if timeout <= 0 {
		timeout = r.cfg.DefaultWaitTimeout
	}
	sr.Description = pred.String()

	wr, err := pol.WaitForCondition(ctx, routers, pred, timeout)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}
	sr.Elapsed = wr.Elapsed
	if wr.OK {
		sr.Status = StepPassed
		return
	}
	sr.Status = StepFailed
	sr.Err = wr.Timeout
}

// runAssert evaluates the condition against a single fresh snapshot: a
// wait with zero timeout.
func (r *Runner) runAssert(ctx context.Context, sr *StepResult, pol *poller.Poller, routers []string, step api.AssertStep) {
	pred, err := CompileCondition(step.Condition)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}
	sr.Description = pred.String()

	wr, err := pol.WaitForCondition(ctx, routers, pred, 0)
	if err != nil {
		sr.Status = StepFailed
		sr.Err = err
		return
	}
	if wr.OK {
		sr.Status = StepPassed
		return
	}
	sr.Status = StepFailed
	sr.Err = fmt.Errorf("assertion failed: %s", strings.Join(pred.Unmet(wr.Snapshots), "; "))
}

func scenarioNeedsRoutes(sc *api.Scenario) bool {
	for _, step := range sc.Steps {
		if step.WaitFor != nil && NeedsRoutes(step.WaitFor.Condition) {
			return true
		}
		if step.Assert != nil && NeedsRoutes(step.Assert.Condition) {
			return true
		}
	}
	return false
}

func describeMutations(mutations []api.Mutation, fault bool) string {
	if len(mutations) == 0 {
		return "bring up topology"
	}
	parts := make([]string, len(mutations))
	for i, m := range mutations {
		var changes []string
		if m.MTU != nil {
			changes = append(changes, fmt.Sprintf("mtu=%d", *m.MTU))
		}
		if m.Addr != "" {
			changes = append(changes, "addr="+m.Addr)
		}
		if m.Down != nil {
			if *m.Down {
				changes = append(changes, "down")
			} else {
				changes = append(changes, "up")
			}
		}
		parts[i] = fmt.Sprintf("%s/%s %s", m.Router, m.Interface, strings.Join(changes, ","))
	}
	s := strings.Join(parts, "; ")
	if fault {
		return "fault: " + s
	}
	return s
}
