// Package poller replaces fixed sleeps with an explicit
// poll-until-predicate-or-timeout loop over typed adjacency
// observations.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/routelab/routelab/pkg/metrics"
	"github.com/routelab/routelab/pkg/neighbor"
	"github.com/routelab/routelab/pkg/runtime"
)

// DefaultPollInterval is how often routers are queried.
const DefaultPollInterval = 2 * time.Second

// Source produces a state snapshot for one router. Implemented by
// neighbor.Collector; tests script their own.
type Source interface {
	Snapshot(ctx context.Context, router string) (*neighbor.Snapshot, error)
}

// Config configures a Poller.
type Config struct {
	Logger       *slog.Logger
	Source       Source
	Clock        clockwork.Clock
	PollInterval time.Duration
}

// Validate fills defaults and rejects incomplete configs.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// ConvergenceTimeout reports a predicate that never became true, with
// the adjacencies that were still unmet at the deadline. It is a
// report, not a retry trigger: retrying would mask real protocol
// failures in a teaching lab.
type ConvergenceTimeout struct {
	Predicate string
	Timeout   time.Duration
	Unmet     []string
}

func (e *ConvergenceTimeout) Error() string {
	return fmt.Sprintf("condition %s not met within %s: %s",
		e.Predicate, e.Timeout, strings.Join(e.Unmet, "; "))
}

// WaitResult is the outcome of one wait.
type WaitResult struct {
	OK bool
	// Elapsed is wall-clock convergence time when OK, or the full
	// timeout otherwise.
	Elapsed time.Duration
	// Snapshots are the last observations taken, returned on timeout
	// too so callers can report which adjacency did not converge.
	Snapshots []neighbor.Snapshot
	// Timeout is set when OK is false.
	Timeout *ConvergenceTimeout
}

// Observations flattens the last snapshots' adjacencies.
func (r *WaitResult) Observations() []neighbor.Observation {
	var out []neighbor.Observation
	for i := range r.Snapshots {
		out = append(out, r.Snapshots[i].Adjacencies...)
	}
	return out
}

// Poller polls router state until a predicate holds or a deadline
// passes.
type Poller struct {
	log *slog.Logger
	cfg Config
}

// New creates a Poller.
func New(cfg Config) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Poller{log: cfg.Logger, cfg: cfg}, nil
}

// WaitForCondition polls every router concurrently each cycle,
// aggregates the snapshots, and evaluates the predicate. On timeout it
// returns ok=false with the last observation set rather than an error,
// so the caller can attribute the stuck adjacency. Only an unreachable
// runtime or context cancellation produce an error.
func (p *Poller) WaitForCondition(ctx context.Context, routers []string, pred Predicate, timeout time.Duration) (*WaitResult, error) {
	start := p.cfg.Clock.Now()
	deadline := start.Add(timeout)

	ticker := p.cfg.Clock.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.log.Debug("waiting for condition",
		"condition", pred.String(),
		"routers", len(routers),
		"timeout", timeout.String(),
		"interval", p.cfg.PollInterval.String())

	var last []neighbor.Snapshot
	for {
		snaps, err := p.collect(ctx, routers)
		if err != nil {
			return nil, err
		}
		last = snaps
		metrics.PollCyclesTotal.Inc()

		if pred.Satisfied(snaps) {
			elapsed := p.cfg.Clock.Since(start)
			metrics.ConvergenceSeconds.Observe(elapsed.Seconds())
			p.log.Info("condition met",
				"condition", pred.String(),
				"elapsed", elapsed.String())
			return &WaitResult{OK: true, Elapsed: elapsed, Snapshots: snaps}, nil
		}

		if !p.cfg.Clock.Now().Before(deadline) {
			unmet := pred.Unmet(last)
			p.log.Warn("condition timed out",
				"condition", pred.String(),
				"timeout", timeout.String(),
				"unmet", strings.Join(unmet, "; "))
			return &WaitResult{
				OK:        false,
				Elapsed:   timeout,
				Snapshots: last,
				Timeout: &ConvergenceTimeout{
					Predicate: pred.String(),
					Timeout:   timeout,
					Unmet:     unmet,
				},
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s interrupted: %w", pred.String(), ctx.Err())
		case <-ticker.Chan():
		}
	}
}

// collect fans out one snapshot query per router and aggregates before
// the predicate is evaluated, keeping poll latency independent of
// topology size. A router that cannot be queried this cycle is logged
// and omitted; the predicate then reports it unmet instead of the
// whole wait failing.
func (p *Poller) collect(ctx context.Context, routers []string) ([]neighbor.Snapshot, error) {
	var mu sync.Mutex
	snaps := make([]neighbor.Snapshot, 0, len(routers))

	g, gctx := errgroup.WithContext(ctx)
	for _, router := range routers {
		router := router
		g.Go(func() error {
			snap, err := p.cfg.Source.Snapshot(gctx, router)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, runtime.ErrRuntimeUnavailable) {
					return err
				}
				p.log.Warn("snapshot failed", "router", router, "error", err)
				return nil
			}
			mu.Lock()
			snaps = append(snaps, *snap)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Router < snaps[j].Router })
	return snaps, nil
}
