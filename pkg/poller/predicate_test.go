package poller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/routelab/pkg/neighbor"
)

func snapshotSet() []neighbor.Snapshot {
	return []neighbor.Snapshot{
		{
			Router: "r1",
			Adjacencies: []neighbor.Observation{
				{Router: "r1", Protocol: neighbor.ProtocolOSPF, PeerID: "2.2.2.2", State: neighbor.StateFull, Role: "DR"},
				{Router: "r1", Protocol: neighbor.ProtocolOSPF, PeerID: "3.3.3.3", State: neighbor.StateExStart},
			},
			Routes: []neighbor.Route{
				{Router: "r1", Prefix: "10.1.23.0/24", Protocol: "ospf", Selected: true},
			},
		},
		{
			Router: "r2",
			Adjacencies: []neighbor.Observation{
				{Router: "r2", Protocol: neighbor.ProtocolISIS, PeerID: "r1", State: neighbor.StateUp},
			},
		},
	}
}

func TestAllFull(t *testing.T) {
	t.Parallel()

	snaps := snapshotSet()

	assert.True(t, AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}}).Satisfied(snaps))

	pred := AllFull([]PeerPair{
		{Router: "r1", Peer: "2.2.2.2"},
		{Router: "r1", Peer: "3.3.3.3"},
		{Router: "r2", Peer: "9.9.9.9"},
	})
	assert.False(t, pred.Satisfied(snaps))
	unmet := pred.Unmet(snaps)
	require.Len(t, unmet, 2)
	assert.Equal(t, "r1 -> 3.3.3.3: ExStart (want Full)", unmet[0])
	assert.Equal(t, "r2 -> 9.9.9.9: no adjacency (want Full)", unmet[1])
}

func TestAllISISUp(t *testing.T) {
	t.Parallel()

	snaps := snapshotSet()
	assert.True(t, AllISISUp([]PeerPair{{Router: "r2", Peer: "r1"}}).Satisfied(snaps))
	assert.False(t, AllISISUp([]PeerPair{{Router: "r2", Peer: "r3"}}).Satisfied(snaps))
}

func TestPeerInState(t *testing.T) {
	t.Parallel()

	snaps := snapshotSet()

	assert.True(t, PeerInState("r1", "3.3.3.3", neighbor.StateExStart).Satisfied(snaps))
	assert.False(t, PeerInState("r1", "3.3.3.3", neighbor.StateFull).Satisfied(snaps))
	assert.Equal(t, []string{"r1 -> 3.3.3.3: ExStart (want Full)"},
		PeerInState("r1", "3.3.3.3", neighbor.StateFull).Unmet(snaps))
	assert.Equal(t, []string{"r1 -> 5.5.5.5: no adjacency (want Full)"},
		PeerInState("r1", "5.5.5.5", neighbor.StateFull).Unmet(snaps))

	// FRR's JSON casing varies between fields; comparison is
	// case-insensitive.
	assert.True(t, PeerInState("r1", "2.2.2.2", "full").Satisfied(snaps))
}

func TestNoNeighbor(t *testing.T) {
	t.Parallel()

	snaps := snapshotSet()

	assert.True(t, NoNeighbor("r1", "5.5.5.5").Satisfied(snaps))
	assert.False(t, NoNeighbor("r1", "2.2.2.2").Satisfied(snaps))
	assert.Equal(t, []string{"r1 -> 2.2.2.2: still Full (want gone)"},
		NoNeighbor("r1", "2.2.2.2").Unmet(snaps))
	assert.Empty(t, NoNeighbor("r1", "5.5.5.5").Unmet(snaps))
}

func TestRouteExists(t *testing.T) {
	t.Parallel()

	snaps := snapshotSet()

	assert.True(t, RouteExists("r1", "10.1.23.0/24").Satisfied(snaps))
	assert.False(t, RouteExists("r1", "10.9.9.0/24").Satisfied(snaps))
	assert.False(t, RouteExists("r2", "10.1.23.0/24").Satisfied(snaps))
	assert.Equal(t, []string{"r1: no route to 10.9.9.0/24"},
		RouteExists("r1", "10.9.9.0/24").Unmet(snaps))
}

func TestPredicateStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "all-full(2 pairs)", AllFull([]PeerPair{{}, {}}).String())
	assert.Equal(t, "all-isis-up(1 pairs)", AllISISUp([]PeerPair{{}}).String())
	assert.Equal(t, "peer-state(r1 -> 2.2.2.2 is ExStart)", PeerInState("r1", "2.2.2.2", "ExStart").String())
	assert.Equal(t, "no-neighbor(r1 -> 2.2.2.2)", NoNeighbor("r1", "2.2.2.2").String())
	assert.Equal(t, "route-exists(r1 has 10.0.0.0/8)", RouteExists("r1", "10.0.0.0/8").String())
}
