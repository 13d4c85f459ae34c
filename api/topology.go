package api

// Segment kinds for a Link.
const (
	LinkBroadcast    = "broadcast"
	LinkPointToPoint = "p2p"
)

// IS-IS circuit levels.
const (
	ISISLevel1  = "level-1"
	ISISLevel2  = "level-2"
	ISISLevel12 = "level-1-2"
)

// Topology is the declared desired state of a lab: a named set of FRR
// routers and the links between them.
type Topology struct {
	Name    string   `yaml:"name"`
	Routers []Router `yaml:"routers"`
	Links   []Link   `yaml:"links"`
}

// Router declares one FRR container.
type Router struct {
	Name       string      `yaml:"name"`
	RouterID   string      `yaml:"routerId"`
	Image      string      `yaml:"image,omitempty"`
	Interfaces []Interface `yaml:"interfaces"`
	OSPF       *OSPFConfig `yaml:"ospf,omitempty"`
	ISIS       *ISISConfig `yaml:"isis,omitempty"`
}

// OSPFConfig enables ospfd on a router. Interfaces are advertised into
// Area by their subnet.
type OSPFConfig struct {
	Area string `yaml:"area"`
}

// ISISConfig enables isisd on a router. SystemID is the 12-digit
// dotted system identifier, e.g. "0000.0000.0001"; Area is the IS-IS
// area prefix of the NET, e.g. "49.0001".
type ISISConfig struct {
	Level    string `yaml:"level"`
	SystemID string `yaml:"systemId"`
	Area     string `yaml:"area"`
}

// Interface declares one router interface. Addr is CIDR notation.
// OSPFPriority is a pointer so a declared priority of 0 (never become
// DR) is distinguishable from "unset".
type Interface struct {
	Name            string `yaml:"name"`
	Addr            string `yaml:"addr"`
	MTU             int    `yaml:"mtu,omitempty"`
	Down            bool   `yaml:"down,omitempty"`
	OSPFPriority    *int   `yaml:"ospfPriority,omitempty"`
	OSPFCost        int    `yaml:"ospfCost,omitempty"`
	ISISCircuitType string `yaml:"isisCircuitType,omitempty"`
}

// Endpoint names one side of a Link.
type Endpoint struct {
	Router    string `yaml:"router"`
	Interface string `yaml:"interface"`
}

// Link connects exactly two interfaces on different routers over a
// shared segment. A broadcast link is realized as an OVS bridge, a p2p
// link as a direct veth pair between the two container namespaces.
type Link struct {
	Name       string         `yaml:"name"`
	Kind       string         `yaml:"kind,omitempty"`
	A          Endpoint       `yaml:"a"`
	B          Endpoint       `yaml:"b"`
	Properties LinkProperties `yaml:"properties,omitempty"`
}

// LinkProperties are optional traffic impairments applied to both
// endpoint interfaces via netem.
type LinkProperties struct {
	DelayMs uint32  `yaml:"delayMs,omitempty"`
	LossPct float32 `yaml:"lossPct,omitempty"`
}

// Router returns the router with the given name, or nil.
func (t *Topology) Router(name string) *Router {
	for i := range t.Routers {
		if t.Routers[i].Name == name {
			return &t.Routers[i]
		}
	}
	return nil
}

// Interface returns the interface with the given name, or nil.
func (r *Router) Interface(name string) *Interface {
	for i := range r.Interfaces {
		if r.Interfaces[i].Name == name {
			return &r.Interfaces[i]
		}
	}
	return nil
}

// Copy returns a deep copy of the topology. Scenario steps mutate a
// working copy so the declared document stays pristine.
func (t *Topology) Copy() *Topology {
	out := &Topology{Name: t.Name}
	out.Routers = make([]Router, len(t.Routers))
	for i, r := range t.Routers {
		cr := r
		cr.Interfaces = make([]Interface, len(r.Interfaces))
		copy(cr.Interfaces, r.Interfaces)
		if r.OSPF != nil {
			o := *r.OSPF
			cr.OSPF = &o
		}
		if r.ISIS != nil {
			is := *r.ISIS
			cr.ISIS = &is
		}
		for j := range cr.Interfaces {
			if p := cr.Interfaces[j].OSPFPriority; p != nil {
				v := *p
				cr.Interfaces[j].OSPFPriority = &v
			}
		}
		out.Routers[i] = cr
	}
	out.Links = make([]Link, len(t.Links))
	copy(out.Links, t.Links)
	return out
}
