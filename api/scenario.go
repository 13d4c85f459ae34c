package api

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered list of steps run against a topology. It owns
// no runtime resources; execution is delegated to the orchestrator and
// the state poller.
type Scenario struct {
	Name     string    `yaml:"name"`
	Topology *Topology `yaml:"topology,omitempty"`
	// TopologyFile is resolved relative to the scenario file when
	// Topology is not declared inline.
	TopologyFile string `yaml:"topologyFile,omitempty"`
	Steps        []Step `yaml:"steps"`
}

// Step is a tagged union: exactly one field is set per step.
type Step struct {
	Configure   *ConfigureStep `yaml:"configure,omitempty"`
	InjectFault *FaultStep     `yaml:"injectFault,omitempty"`
	WaitFor     *WaitStep      `yaml:"waitFor,omitempty"`
	Assert      *AssertStep    `yaml:"assert,omitempty"`
}

// Kind returns the step kind for reporting.
func (s Step) Kind() string {
	switch {
	case s.Configure != nil:
		return "configure"
	case s.InjectFault != nil:
		return "inject-fault"
	case s.WaitFor != nil:
		return "wait-for"
	case s.Assert != nil:
		return "assert"
	}
	return "invalid"
}

// ConfigureStep applies mutations to the working topology and
// reconciles. An empty mutation list reconciles the topology as-is
// (initial bring-up).
type ConfigureStep struct {
	Mutations []Mutation `yaml:"mutations,omitempty"`
}

// FaultStep is a ConfigureStep tagged as a fault for reporting. There
// is no separate code path: injecting and fixing the same fault use
// the identical configure machinery.
type FaultStep struct {
	Mutations []Mutation `yaml:"mutations"`
}

// Mutation patches one interface of one router in the working topology.
type Mutation struct {
	Router    string `yaml:"router"`
	Interface string `yaml:"interface"`
	MTU       *int   `yaml:"mtu,omitempty"`
	Addr      string `yaml:"addr,omitempty"`
	Down      *bool  `yaml:"down,omitempty"`
}

// Apply patches the working topology in place.
func (m Mutation) Apply(t *Topology) error {
	r := t.Router(m.Router)
	if r == nil {
		return fmt.Errorf("mutation references unknown router %q", m.Router)
	}
	iface := r.Interface(m.Interface)
	if iface == nil {
		return fmt.Errorf("mutation references unknown interface %q on router %q", m.Interface, m.Router)
	}
	if m.MTU != nil {
		iface.MTU = *m.MTU
	}
	if m.Addr != "" {
		iface.Addr = m.Addr
	}
	if m.Down != nil {
		iface.Down = *m.Down
	}
	return nil
}

// WaitStep polls adjacency state until the condition holds or Timeout
// elapses.
type WaitStep struct {
	Condition Condition `yaml:"condition"`
	Timeout   Duration  `yaml:"timeout,omitempty"`
}

// AssertStep evaluates the condition once against a fresh snapshot.
// The first failing assert stops the scenario.
type AssertStep struct {
	Condition Condition `yaml:"condition"`
}

// Condition is a tagged union of convergence predicates.
type Condition struct {
	// AllFull holds when every listed pair has an OSPF adjacency in
	// state Full.
	AllFull []PeerPair `yaml:"allFull,omitempty"`
	// AllISISUp holds when every listed pair has an IS-IS adjacency in
	// state Up.
	AllISISUp []PeerPair `yaml:"allIsisUp,omitempty"`
	// PeerState holds when the named pair's adjacency is in State.
	PeerState *PeerStateCondition `yaml:"peerState,omitempty"`
	// NoNeighbor holds when the router reports no adjacency with Peer.
	NoNeighbor *PeerPair `yaml:"noNeighbor,omitempty"`
	// RouteExists holds when the router's RIB contains Prefix.
	RouteExists *RouteCondition `yaml:"routeExists,omitempty"`
}

// PeerPair names an adjacency as seen from Router toward the peer with
// router-id (OSPF) or system-id (IS-IS) Peer.
type PeerPair struct {
	Router string `yaml:"router"`
	Peer   string `yaml:"peer"`
}

// PeerStateCondition pins one adjacency to an exact state, e.g.
// ExStart for the MTU mismatch lesson.
type PeerStateCondition struct {
	Router string `yaml:"router"`
	Peer   string `yaml:"peer"`
	State  string `yaml:"state"`
}

// RouteCondition checks RIB presence of a prefix on a router.
type RouteCondition struct {
	Router string `yaml:"router"`
	Prefix string `yaml:"prefix"`
}

// Duration wraps time.Duration so YAML documents can say "60s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
