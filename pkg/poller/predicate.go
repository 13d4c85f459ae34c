package poller

import (
	"fmt"
	"strings"

	"github.com/routelab/routelab/pkg/neighbor"
)

// Predicate is a convergence condition evaluated over the snapshots of
// one poll cycle. Unmet names every adjacency (or route) still holding
// the predicate false, so a timeout report can say exactly which pair
// did not converge.
type Predicate interface {
	String() string
	Satisfied(snaps []neighbor.Snapshot) bool
	Unmet(snaps []neighbor.Snapshot) []string
}

func findAdjacency(snaps []neighbor.Snapshot, router, peer string) *neighbor.Observation {
	for i := range snaps {
		if snaps[i].Router != router {
			continue
		}
		for j := range snaps[i].Adjacencies {
			if snaps[i].Adjacencies[j].PeerID == peer {
				return &snaps[i].Adjacencies[j]
			}
		}
	}
	return nil
}

// PeerPair names an adjacency as seen from Router.
type PeerPair struct {
	Router string
	Peer   string
}

type allInState struct {
	pairs []PeerPair
	state string
	label string
}

// AllFull holds when every pair has an OSPF adjacency in state Full.
func AllFull(pairs []PeerPair) Predicate {
	return &allInState{pairs: pairs, state: neighbor.StateFull, label: "all-full"}
}

// AllISISUp holds when every pair has an IS-IS adjacency in state Up.
func AllISISUp(pairs []PeerPair) Predicate {
	return &allInState{pairs: pairs, state: neighbor.StateUp, label: "all-isis-up"}
}

func (p *allInState) String() string {
	return fmt.Sprintf("%s(%d pairs)", p.label, len(p.pairs))
}

func (p *allInState) Satisfied(snaps []neighbor.Snapshot) bool {
	return len(p.Unmet(snaps)) == 0
}

func (p *allInState) Unmet(snaps []neighbor.Snapshot) []string {
	var unmet []string
	for _, pair := range p.pairs {
		obs := findAdjacency(snaps, pair.Router, pair.Peer)
		switch {
		case obs == nil:
			unmet = append(unmet, fmt.Sprintf("%s -> %s: no adjacency (want %s)", pair.Router, pair.Peer, p.state))
		case !strings.EqualFold(obs.State, p.state):
			unmet = append(unmet, fmt.Sprintf("%s -> %s: %s (want %s)", pair.Router, pair.Peer, obs.State, p.state))
		}
	}
	return unmet
}

type peerInState struct {
	router, peer, state string
}

// PeerInState holds when the named adjacency is in exactly the given
// state, e.g. ExStart for the MTU mismatch lesson.
func PeerInState(router, peer, state string) Predicate {
	return &peerInState{router: router, peer: peer, state: state}
}

func (p *peerInState) String() string {
	return fmt.Sprintf("peer-state(%s -> %s is %s)", p.router, p.peer, p.state)
}

func (p *peerInState) Satisfied(snaps []neighbor.Snapshot) bool {
	obs := findAdjacency(snaps, p.router, p.peer)
	return obs != nil && strings.EqualFold(obs.State, p.state)
}

func (p *peerInState) Unmet(snaps []neighbor.Snapshot) []string {
	if p.Satisfied(snaps) {
		return nil
	}
	obs := findAdjacency(snaps, p.router, p.peer)
	if obs == nil {
		return []string{fmt.Sprintf("%s -> %s: no adjacency (want %s)", p.router, p.peer, p.state)}
	}
	return []string{fmt.Sprintf("%s -> %s: %s (want %s)", p.router, p.peer, obs.State, p.state)}
}

type noNeighbor struct {
	router, peer string
}

// NoNeighbor holds when the router reports no adjacency with the peer,
// e.g. after a link failure has been detected.
func NoNeighbor(router, peer string) Predicate {
	return &noNeighbor{router: router, peer: peer}
}

func (p *noNeighbor) String() string {
	return fmt.Sprintf("no-neighbor(%s -> %s)", p.router, p.peer)
}

func (p *noNeighbor) Satisfied(snaps []neighbor.Snapshot) bool {
	return findAdjacency(snaps, p.router, p.peer) == nil
}

func (p *noNeighbor) Unmet(snaps []neighbor.Snapshot) []string {
	if obs := findAdjacency(snaps, p.router, p.peer); obs != nil {
		return []string{fmt.Sprintf("%s -> %s: still %s (want gone)", p.router, p.peer, obs.State)}
	}
	return nil
}

type routeExists struct {
	router, prefix string
}

// RouteExists holds when the router's RIB contains the prefix. Used
// for convergence measurement after link failure and restoration.
func RouteExists(router, prefix string) Predicate {
	return &routeExists{router: router, prefix: prefix}
}

func (p *routeExists) String() string {
	return fmt.Sprintf("route-exists(%s has %s)", p.router, p.prefix)
}

func (p *routeExists) Satisfied(snaps []neighbor.Snapshot) bool {
	for i := range snaps {
		if snaps[i].Router != p.router {
			continue
		}
		for _, rt := range snaps[i].Routes {
			if rt.Prefix == p.prefix {
				return true
			}
		}
	}
	return false
}

func (p *routeExists) Unmet(snaps []neighbor.Snapshot) []string {
	if p.Satisfied(snaps) {
		return nil
	}
	return []string{fmt.Sprintf("%s: no route to %s", p.router, p.prefix)}
}
