package neighbor

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/routelab/api"
)

// execFunc adapts a function to the Execer interface.
type execFunc func(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error)

func (f execFunc) ExecRouter(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error) {
	return f(ctx, topology, router, argv)
}

func collectorTopology() *api.Topology {
	return &api.Topology{
		Name: "pair",
		Routers: []api.Router{
			{
				Name:     "r1",
				RouterID: "1.1.1.1",
				OSPF:     &api.OSPFConfig{Area: "0.0.0.0"},
				Interfaces: []api.Interface{
					{Name: "eth0", Addr: "10.1.12.1/24"},
				},
			},
			{
				Name:     "r2",
				RouterID: "2.2.2.2",
				ISIS:     &api.ISISConfig{Level: api.ISISLevel2, SystemID: "0000.0000.0002", Area: "49.0001"},
				Interfaces: []api.Interface{
					{Name: "eth0", Addr: "10.1.12.2/24"},
				},
			},
		},
	}
}

func TestCollectorQueriesDeclaredProtocolsOnly(t *testing.T) {
	t.Parallel()

	var commands []string
	exec := execFunc(func(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error) {
		require.Equal(t, "pair", topology)
		require.Len(t, argv, 3)
		require.Equal(t, "vtysh", argv[0])
		commands = append(commands, argv[2])
		switch argv[2] {
		case "show ip ospf neighbor json":
			return []byte(ospfNeighborJSON), nil, 0, nil
		case "show isis neighbor json":
			return []byte(isisNeighborJSON), nil, 0, nil
		}
		return nil, nil, 1, nil
	})

	coll, err := NewCollector(CollectorConfig{
		Logger:   slog.Default(),
		Execer:   exec,
		Topology: collectorTopology(),
	})
	require.NoError(t, err)

	snap, err := coll.Snapshot(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"show ip ospf neighbor json"}, commands)
	assert.Len(t, snap.Adjacencies, 3)
	assert.Empty(t, snap.Routes)

	commands = nil
	snap, err = coll.Snapshot(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"show isis neighbor json"}, commands)
	require.Len(t, snap.Adjacencies, 1)
	assert.Equal(t, ProtocolISIS, snap.Adjacencies[0].Protocol)
}

func TestCollectorRoutes(t *testing.T) {
	t.Parallel()

	exec := execFunc(func(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error) {
		switch argv[2] {
		case "show ip ospf neighbor json":
			return []byte(`{"neighbors":{}}`), nil, 0, nil
		case "show ip route json":
			return []byte(routeJSON), nil, 0, nil
		}
		return nil, nil, 1, nil
	})

	coll, err := NewCollector(CollectorConfig{
		Logger:        slog.Default(),
		Execer:        exec,
		Topology:      collectorTopology(),
		CollectRoutes: true,
	})
	require.NoError(t, err)

	snap, err := coll.Snapshot(context.Background(), "r1")
	require.NoError(t, err)
	assert.Len(t, snap.Routes, 3)
}

func TestCollectorErrors(t *testing.T) {
	t.Parallel()

	t.Run("unknown router", func(t *testing.T) {
		t.Parallel()
		coll, err := NewCollector(CollectorConfig{
			Logger:   slog.Default(),
			Execer:   execFunc(func(context.Context, string, string, []string) ([]byte, []byte, int, error) { return nil, nil, 0, nil }),
			Topology: collectorTopology(),
		})
		require.NoError(t, err)
		_, err = coll.Snapshot(context.Background(), "r9")
		assert.ErrorContains(t, err, `router "r9" not in topology`)
	})

	t.Run("nonzero exit", func(t *testing.T) {
		t.Parallel()
		coll, err := NewCollector(CollectorConfig{
			Logger: slog.Default(),
			Execer: execFunc(func(context.Context, string, string, []string) ([]byte, []byte, int, error) {
				return nil, []byte("% vtysh failed"), 2, nil
			}),
			Topology: collectorTopology(),
		})
		require.NoError(t, err)
		_, err = coll.Snapshot(context.Background(), "r1")
		assert.ErrorContains(t, err, "exited 2")
	})

	t.Run("exec error propagates", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("engine gone")
		coll, err := NewCollector(CollectorConfig{
			Logger: slog.Default(),
			Execer: execFunc(func(context.Context, string, string, []string) ([]byte, []byte, int, error) {
				return nil, nil, 0, boom
			}),
			Topology: collectorTopology(),
		})
		require.NoError(t, err)
		_, err = coll.Snapshot(context.Background(), "r1")
		assert.ErrorIs(t, err, boom)
	})
}
