// Package neighbor parses FRR vtysh JSON output into typed adjacency
// and route records, isolating output-format fragility to one place.
package neighbor

import "time"

// Protocol identifies the routing protocol an observation came from.
type Protocol string

const (
	ProtocolOSPF Protocol = "ospf"
	ProtocolISIS Protocol = "isis"
)

// Canonical OSPF neighbor states as FRR reports them (role suffix
// stripped). An MTU mismatch leaves a pair stuck in ExStart.
const (
	StateDown     = "Down"
	StateInit     = "Init"
	StateTwoWay   = "2-Way"
	StateExStart  = "ExStart"
	StateExchange = "Exchange"
	StateLoading  = "Loading"
	StateFull     = "Full"

	// StateUp is the converged IS-IS adjacency state.
	StateUp = "Up"
)

// Observation is a point-in-time snapshot of one neighbor relationship
// as seen from Router. Observations are never mutated; pollers append
// them to history for convergence timing.
type Observation struct {
	Router     string
	Protocol   Protocol
	PeerID     string // OSPF neighbor router-id or IS-IS system-id/hostname
	State      string
	Role       string // DR, Backup, DROther for OSPF; circuit level for IS-IS
	Iface      string
	Address    string // peer interface address
	Priority   int
	ObservedAt time.Time
}

// Route is one RIB entry prefix seen on a router.
type Route struct {
	Router   string
	Prefix   string
	Protocol string
	Selected bool
}

// Snapshot is everything the poller collects from one router in one
// poll cycle.
type Snapshot struct {
	Router      string
	Adjacencies []Observation
	Routes      []Route
	TakenAt     time.Time
}
