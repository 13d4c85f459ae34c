package neighbor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/routelab/routelab/api"
)

// Execer runs a command inside a named router container. The container
// runtime client implements this; the collector never talks to the
// engine directly.
type Execer interface {
	ExecRouter(ctx context.Context, topology, router string, argv []string) (stdout, stderr []byte, exitCode int, err error)
}

// CollectorConfig configures a Collector.
type CollectorConfig struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Execer   Execer
	Topology *api.Topology
	// CollectRoutes fetches the RIB alongside neighbor tables, needed
	// for route-presence conditions.
	CollectRoutes bool
}

// Validate fills defaults and rejects incomplete configs.
func (cfg *CollectorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Execer == nil {
		return errors.New("execer is required")
	}
	if cfg.Topology == nil {
		return errors.New("topology is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Collector produces per-router state snapshots by running vtysh show
// commands and parsing their JSON output. Which protocols are queried
// follows from the router's declared config, so a pure-OSPF router is
// never asked for IS-IS state.
type Collector struct {
	log *slog.Logger
	cfg CollectorConfig
}

// NewCollector creates a Collector.
func NewCollector(cfg CollectorConfig) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{log: cfg.Logger, cfg: cfg}, nil
}

// Snapshot collects adjacency (and optionally route) state from one
// router.
func (c *Collector) Snapshot(ctx context.Context, router string) (*Snapshot, error) {
	r := c.cfg.Topology.Router(router)
	if r == nil {
		return nil, fmt.Errorf("router %q not in topology %s", router, c.cfg.Topology.Name)
	}

	now := c.cfg.Clock.Now()
	snap := &Snapshot{Router: router, TakenAt: now}

	if r.OSPF != nil {
		out, err := c.vtysh(ctx, router, "show ip ospf neighbor json")
		if err != nil {
			return nil, err
		}
		obs, err := ParseOSPF(router, out, now)
		if err != nil {
			return nil, err
		}
		snap.Adjacencies = append(snap.Adjacencies, obs...)
	}

	if r.ISIS != nil {
		out, err := c.vtysh(ctx, router, "show isis neighbor json")
		if err != nil {
			return nil, err
		}
		obs, err := ParseISIS(router, out, now)
		if err != nil {
			return nil, err
		}
		snap.Adjacencies = append(snap.Adjacencies, obs...)
	}

	if c.cfg.CollectRoutes {
		out, err := c.vtysh(ctx, router, "show ip route json")
		if err != nil {
			return nil, err
		}
		routes, err := ParseRoutes(router, out)
		if err != nil {
			return nil, err
		}
		snap.Routes = routes
	}

	c.log.Debug("collected snapshot",
		"router", router,
		"adjacencies", len(snap.Adjacencies),
		"routes", len(snap.Routes))
	return snap, nil
}

func (c *Collector) vtysh(ctx context.Context, router, command string) ([]byte, error) {
	stdout, stderr, code, err := c.cfg.Execer.ExecRouter(ctx, c.cfg.Topology.Name, router, []string{"vtysh", "-c", command})
	if err != nil {
		return nil, fmt.Errorf("failed to run %q on %s: %w", command, router, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("%q on %s exited %d: %s", command, router, code, string(stderr))
	}
	return stdout, nil
}
