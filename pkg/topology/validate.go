package topology

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/routelab/routelab/api"
)

// FRR refuses interface MTUs outside this range.
const (
	MinMTU = 576
	MaxMTU = 9216
)

var systemIDRe = regexp.MustCompile(`^[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}$`)

// ValidationError is one malformed-topology finding with enough
// attribution to point at the offending router, interface or link.
type ValidationError struct {
	Router string
	Iface  string
	Link   string
	Msg    string
}

func (e ValidationError) Error() string {
	var at []string
	if e.Router != "" {
		at = append(at, "router "+e.Router)
	}
	if e.Iface != "" {
		at = append(at, "interface "+e.Iface)
	}
	if e.Link != "" {
		at = append(at, "link "+e.Link)
	}
	if len(at) == 0 {
		return e.Msg
	}
	return strings.Join(at, ", ") + ": " + e.Msg
}

// Errors aggregates validation findings into a single error value
// without losing per-finding attribution.
type Errors []ValidationError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("topology invalid: %s", strings.Join(msgs, "; "))
}

// Validate checks a topology document. It has no side effects and
// returns every finding rather than stopping at the first.
func Validate(t *api.Topology) []ValidationError {
	var errs []ValidationError

	if t.Name == "" {
		errs = append(errs, ValidationError{Msg: "topology name is required"})
	}
	if len(t.Routers) == 0 {
		errs = append(errs, ValidationError{Msg: "topology declares no routers"})
	}

	names := make(map[string]bool)
	routerIDs := make(map[string]string)
	for i := range t.Routers {
		r := &t.Routers[i]
		if r.Name == "" {
			errs = append(errs, ValidationError{Msg: fmt.Sprintf("router %d has no name", i)})
			continue
		}
		if names[r.Name] {
			errs = append(errs, ValidationError{Router: r.Name, Msg: "duplicate router name"})
		}
		names[r.Name] = true

		if r.RouterID == "" {
			errs = append(errs, ValidationError{Router: r.Name, Msg: "router-id is required"})
		} else {
			if addr, err := netip.ParseAddr(r.RouterID); err != nil || !addr.Is4() {
				errs = append(errs, ValidationError{Router: r.Name, Msg: fmt.Sprintf("router-id %q is not an IPv4 dotted quad", r.RouterID)})
			} else if prev, dup := routerIDs[r.RouterID]; dup {
				errs = append(errs, ValidationError{Router: r.Name, Msg: fmt.Sprintf("router-id %s already used by router %s", r.RouterID, prev)})
			} else {
				routerIDs[r.RouterID] = r.Name
			}
		}

		if r.OSPF == nil && r.ISIS == nil {
			errs = append(errs, ValidationError{Router: r.Name, Msg: "router enables neither ospf nor isis"})
		}
		if r.ISIS != nil {
			errs = append(errs, validateISIS(r)...)
		}
		errs = append(errs, validateInterfaces(r)...)
	}

	for i := range t.Links {
		errs = append(errs, validateLink(t, i)...)
	}

	return errs
}

func validateISIS(r *api.Router) []ValidationError {
	var errs []ValidationError
	cfg := r.ISIS
	switch cfg.Level {
	case "", api.ISISLevel1, api.ISISLevel2, api.ISISLevel12:
	default:
		errs = append(errs, ValidationError{Router: r.Name, Msg: fmt.Sprintf("invalid isis level %q", cfg.Level)})
	}
	if cfg.SystemID == "" {
		errs = append(errs, ValidationError{Router: r.Name, Msg: "isis system-id is required"})
	} else if !systemIDRe.MatchString(cfg.SystemID) {
		errs = append(errs, ValidationError{Router: r.Name, Msg: fmt.Sprintf("isis system-id %q is not of the form xxxx.xxxx.xxxx", cfg.SystemID)})
	}
	if cfg.Area == "" {
		errs = append(errs, ValidationError{Router: r.Name, Msg: "isis area is required"})
	}
	return errs
}

func validateInterfaces(r *api.Router) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)
	for i := range r.Interfaces {
		iface := &r.Interfaces[i]
		if iface.Name == "" {
			errs = append(errs, ValidationError{Router: r.Name, Msg: fmt.Sprintf("interface %d has no name", i)})
			continue
		}
		if seen[iface.Name] {
			errs = append(errs, ValidationError{Router: r.Name, Iface: iface.Name, Msg: "duplicate interface name"})
		}
		seen[iface.Name] = true

		if _, err := netip.ParsePrefix(iface.Addr); err != nil {
			errs = append(errs, ValidationError{Router: r.Name, Iface: iface.Name, Msg: fmt.Sprintf("address %q is not valid CIDR notation", iface.Addr)})
		}
		if iface.MTU != 0 && (iface.MTU < MinMTU || iface.MTU > MaxMTU) {
			errs = append(errs, ValidationError{Router: r.Name, Iface: iface.Name, Msg: fmt.Sprintf("mtu %d outside [%d, %d]", iface.MTU, MinMTU, MaxMTU)})
		}
		if iface.OSPFPriority != nil && (*iface.OSPFPriority < 0 || *iface.OSPFPriority > 255) {
			errs = append(errs, ValidationError{Router: r.Name, Iface: iface.Name, Msg: fmt.Sprintf("ospf priority %d outside [0, 255]", *iface.OSPFPriority)})
		}
		switch iface.ISISCircuitType {
		case "", api.LinkBroadcast, "point-to-point":
		default:
			errs = append(errs, ValidationError{Router: r.Name, Iface: iface.Name, Msg: fmt.Sprintf("invalid isis circuit type %q", iface.ISISCircuitType)})
		}
	}
	return errs
}

func validateLink(t *api.Topology, i int) []ValidationError {
	var errs []ValidationError
	l := &t.Links[i]
	name := l.Name
	if name == "" {
		name = fmt.Sprintf("link %d", i)
	}

	switch l.Kind {
	case "", api.LinkBroadcast, api.LinkPointToPoint:
	default:
		errs = append(errs, ValidationError{Link: name, Msg: fmt.Sprintf("invalid link kind %q", l.Kind)})
	}
	if l.A.Router == l.B.Router {
		errs = append(errs, ValidationError{Link: name, Msg: "link endpoints must be on different routers"})
	}

	prefixes := make([]netip.Prefix, 0, 2)
	for _, ep := range []api.Endpoint{l.A, l.B} {
		r := t.Router(ep.Router)
		if r == nil {
			errs = append(errs, ValidationError{Link: name, Msg: fmt.Sprintf("endpoint references unknown router %q", ep.Router)})
			continue
		}
		iface := r.Interface(ep.Interface)
		if iface == nil {
			errs = append(errs, ValidationError{Link: name, Msg: fmt.Sprintf("endpoint references unknown interface %q on router %q", ep.Interface, ep.Router)})
			continue
		}
		if p, err := netip.ParsePrefix(iface.Addr); err == nil {
			prefixes = append(prefixes, p.Masked())
		}
	}
	if len(prefixes) == 2 && prefixes[0] != prefixes[1] {
		errs = append(errs, ValidationError{Link: name, Msg: fmt.Sprintf("endpoint subnets differ: %s vs %s", prefixes[0], prefixes[1])})
	}
	return errs
}
