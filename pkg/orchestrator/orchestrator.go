// Package orchestrator reconciles a declared topology against the
// containers actually running. Reconciliation is a diff against a
// fresh snapshot, never an assumption that a previous call's effects
// persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/routelab/routelab/api"
	"github.com/routelab/routelab/pkg/metrics"
	"github.com/routelab/routelab/pkg/runtime"
	"github.com/routelab/routelab/pkg/topology"
)

// DefaultWorkers bounds concurrent per-router operations.
const DefaultWorkers = 4

// Config configures an Orchestrator.
type Config struct {
	Logger  *slog.Logger
	Runtime runtime.Runtime
	Clock   clockwork.Clock
	Workers int
	// PruneUnmanaged removes routers running under the topology name
	// but absent from the declared topology. Off by default: unmanaged
	// resources are never silently deleted.
	PruneUnmanaged bool
}

// Validate fills defaults and rejects incomplete configs.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Runtime == nil {
		return errors.New("runtime is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Failure attributes one failed operation to a router, interface and
// step.
type Failure struct {
	Router string
	Iface  string
	Step   string
	Err    error
}

func (f Failure) String() string {
	if f.Iface != "" {
		return fmt.Sprintf("router %s interface %s (%s): %v", f.Router, f.Iface, f.Step, f.Err)
	}
	return fmt.Sprintf("router %s (%s): %v", f.Router, f.Step, f.Err)
}

// Result reports what one reconciliation did. Per-router failures are
// collected here, never raised as an aggregate error that would hide
// which router failed.
type Result struct {
	Topology     string
	Created      []string
	Reconfigured []string
	Unchanged    []string
	Removed      []string
	Failures     []Failure
	StartedAt    time.Time
	Duration     time.Duration
}

// OK reports whether the reconciliation completed without failures.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

// Failed reports whether the named router had any failure.
func (r *Result) Failed(router string) bool {
	for _, f := range r.Failures {
		if f.Router == router {
			return true
		}
	}
	return false
}

// HealthyRouters lists routers fully configured in this run. Only
// these enter the next poll cycle: a partially-configured router is
// never evaluated against a convergence predicate.
func (r *Result) HealthyRouters() []string {
	var out []string
	for _, set := range [][]string{r.Created, r.Reconfigured, r.Unchanged} {
		for _, name := range set {
			if !r.Failed(name) {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Orchestrator owns router lifecycle for the topologies it reconciles.
type Orchestrator struct {
	log *slog.Logger
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{log: cfg.Logger, cfg: cfg}, nil
}

// Reconcile brings the running state into agreement with the declared
// topology. Partial failure on one router does not block the others;
// only a malformed topology, a concurrent reconciliation, or an
// unreachable engine aborts the run.
func (o *Orchestrator) Reconcile(ctx context.Context, topo *api.Topology) (*Result, error) {
	if errs := topology.Validate(topo); len(errs) > 0 {
		metrics.ReconcilesTotal.WithLabelValues("invalid").Inc()
		return nil, topology.Errors(errs)
	}

	release, err := locks.acquire(topo.Name)
	if err != nil {
		return nil, err
	}
	defer release()

	start := o.cfg.Clock.Now()
	res := &Result{Topology: topo.Name, StartedAt: start}
	var mu sync.Mutex

	existing, err := o.cfg.Runtime.ListRouters(ctx, topo.Name)
	if err != nil {
		metrics.ReconcilesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to snapshot running routers: %w", err)
	}
	byName := make(map[string]*runtime.Handle, len(existing))
	for _, h := range existing {
		byName[h.Router] = h
	}

	// Phase 1: ensure every declared router exists and is running.
	handles := make(map[string]*runtime.Handle, len(topo.Routers))
	created := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range topo.Routers {
		r := topo.Routers[i]
		preexisting := byName[r.Name] != nil
		g.Go(func() error {
			h, err := o.cfg.Runtime.CreateRouter(gctx, topo.Name, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, runtime.ErrRuntimeUnavailable) {
					return err // fatal, aborts siblings
				}
				metrics.RouterOpsTotal.WithLabelValues("create", "error").Inc()
				res.Failures = append(res.Failures, Failure{Router: r.Name, Step: "create", Err: err})
				return nil
			}
			metrics.RouterOpsTotal.WithLabelValues("create", "ok").Inc()
			handles[r.Name] = h
			if !preexisting {
				created[r.Name] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ReconcilesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Phase 2: wire links whose endpoint routers both came up. Segment
	// mutation is engine-serialized, so this phase runs sequentially.
	for _, l := range topo.Links {
		a, b := handles[l.A.Router], handles[l.B.Router]
		if a == nil || b == nil {
			continue // endpoint router failed, already attributed
		}
		if err := o.cfg.Runtime.EnsureLink(ctx, topo, l, a, b); err != nil {
			if errors.Is(err, runtime.ErrRuntimeUnavailable) {
				metrics.ReconcilesTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			metrics.RouterOpsTotal.WithLabelValues("link", "error").Inc()
			res.Failures = append(res.Failures, Failure{Router: l.A.Router, Iface: l.A.Interface, Step: "link " + l.Name, Err: err})
		}
	}

	// Phase 3: read back interface state and repair drift.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range topo.Routers {
		r := topo.Routers[i]
		g.Go(func() error {
			mu.Lock()
			h := handles[r.Name]
			failed := res.Failed(r.Name)
			mu.Unlock()
			if h == nil || failed {
				return nil
			}
			drifted, failures := o.repairRouter(gctx, topo, r, h)
			mu.Lock()
			defer mu.Unlock()
			for _, f := range failures {
				if errors.Is(f.Err, runtime.ErrRuntimeUnavailable) {
					return f.Err
				}
			}
			res.Failures = append(res.Failures, failures...)
			switch {
			case len(failures) > 0:
			case created[r.Name]:
				res.Created = append(res.Created, r.Name)
			case drifted:
				res.Reconfigured = append(res.Reconfigured, r.Name)
			default:
				res.Unchanged = append(res.Unchanged, r.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ReconcilesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	// Phase 4: optionally prune routers not in the declared topology.
	if o.cfg.PruneUnmanaged {
		for name, h := range byName {
			if topo.Router(name) != nil {
				continue
			}
			if err := o.cfg.Runtime.RemoveRouter(ctx, h); err != nil {
				if errors.Is(err, runtime.ErrRuntimeUnavailable) {
					metrics.ReconcilesTotal.WithLabelValues("error").Inc()
					return nil, err
				}
				metrics.RouterOpsTotal.WithLabelValues("remove", "error").Inc()
				res.Failures = append(res.Failures, Failure{Router: name, Step: "remove", Err: err})
				continue
			}
			metrics.RouterOpsTotal.WithLabelValues("remove", "ok").Inc()
			res.Removed = append(res.Removed, name)
		}
	}

	sort.Strings(res.Created)
	sort.Strings(res.Reconfigured)
	sort.Strings(res.Unchanged)
	sort.Strings(res.Removed)
	res.Duration = o.cfg.Clock.Since(start)

	status := "ok"
	if !res.OK() {
		status = "partial"
	}
	metrics.ReconcilesTotal.WithLabelValues(status).Inc()
	o.log.Info("reconcile complete",
		"topology", topo.Name,
		"created", len(res.Created),
		"reconfigured", len(res.Reconfigured),
		"unchanged", len(res.Unchanged),
		"removed", len(res.Removed),
		"failures", len(res.Failures),
		"duration", res.Duration.String())
	return res, nil
}

// repairRouter diffs desired interface config against observed state
// and reapplies only what drifted. Returns whether anything changed.
func (o *Orchestrator) repairRouter(ctx context.Context, topo *api.Topology, r api.Router, h *runtime.Handle) (bool, []Failure) {
	state, err := o.cfg.Runtime.RouterState(ctx, h)
	if err != nil {
		return false, []Failure{{Router: r.Name, Step: "inspect", Err: err}}
	}

	var failures []Failure
	drifted := false
	for _, iface := range r.Interfaces {
		observed := state.Interface(iface.Name)
		if observed == nil {
			failures = append(failures, Failure{
				Router: r.Name, Iface: iface.Name, Step: "verify",
				Err: errors.New("device missing after link wiring"),
			})
			continue
		}
		if interfaceMatches(iface, *observed) {
			continue
		}
		o.log.Debug("interface drift",
			"router", r.Name, "interface", iface.Name,
			"want_addr", iface.Addr, "have_addr", observed.Addr,
			"want_mtu", desiredMTU(iface), "have_mtu", observed.MTU)
		if err := o.cfg.Runtime.ApplyInterfaceConfig(ctx, h, iface); err != nil {
			metrics.RouterOpsTotal.WithLabelValues("configure", "error").Inc()
			failures = append(failures, Failure{Router: r.Name, Iface: iface.Name, Step: "configure", Err: err})
			continue
		}
		metrics.RouterOpsTotal.WithLabelValues("configure", "ok").Inc()
		drifted = true
	}
	return drifted, failures
}

func desiredMTU(iface api.Interface) int {
	if iface.MTU == 0 {
		return 1500
	}
	return iface.MTU
}

func interfaceMatches(want api.Interface, have runtime.InterfaceState) bool {
	return have.Addr == want.Addr &&
		have.MTU == desiredMTU(want) &&
		have.Up == !want.Down
}

// Teardown removes every router and segment of a topology. It takes
// the same per-topology lock as Reconcile.
func (o *Orchestrator) Teardown(ctx context.Context, topologyName string) error {
	release, err := locks.acquire(topologyName)
	if err != nil {
		return err
	}
	defer release()

	o.log.Info("tearing down topology", "topology", topologyName)
	return o.cfg.Runtime.RemoveTopology(ctx, topologyName)
}
