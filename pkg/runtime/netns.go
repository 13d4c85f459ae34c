package runtime

import (
	"context"
	"fmt"
	"net"

	"github.com/containernetworking/plugins/pkg/ns"
	"github.com/vishvananda/netlink"

	"github.com/routelab/routelab/api"
)

const defaultMTU = 1500

// RouterState reads back interface state from the container namespace
// for reconciliation diffing. Loopback is excluded.
func (d *DockerRuntime) RouterState(ctx context.Context, h *Handle) (*RouterState, error) {
	if h.NetNS == "" {
		return nil, fmt.Errorf("router %s has no network namespace (not running?)", h.Router)
	}
	state := &RouterState{Router: h.Router}

	netns, err := ns.GetNS(h.NetNS)
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace of %s: %w", h.Router, err)
	}
	defer netns.Close()

	err = netns.Do(func(_ ns.NetNS) error {
		links, err := netlink.LinkList()
		if err != nil {
			return fmt.Errorf("failed to list links: %w", err)
		}
		for _, link := range links {
			attrs := link.Attrs()
			if attrs.Name == "lo" {
				continue
			}
			ifState := InterfaceState{
				Name: attrs.Name,
				MTU:  attrs.MTU,
				Up:   attrs.Flags&net.FlagUp != 0,
			}
			addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
			if err != nil {
				return fmt.Errorf("failed to list addresses on %s: %w", attrs.Name, err)
			}
			if len(addrs) > 0 {
				ifState.Addr = addrs[0].IPNet.String()
			}
			state.Interfaces = append(state.Interfaces, ifState)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read state of %s: %w", h.Router, err)
	}
	return state, nil
}

// ApplyInterfaceConfig reapplies address, MTU and admin state to an
// existing device in the router's namespace. The device itself is
// created by link wiring; a missing device is an attribution-precise
// error, not a silent create.
func (d *DockerRuntime) ApplyInterfaceConfig(ctx context.Context, h *Handle, iface api.Interface) error {
	if h.NetNS == "" {
		return fmt.Errorf("router %s has no network namespace (not running?)", h.Router)
	}
	netns, err := ns.GetNS(h.NetNS)
	if err != nil {
		return fmt.Errorf("failed to open namespace of %s: %w", h.Router, err)
	}
	defer netns.Close()

	err = netns.Do(func(_ ns.NetNS) error {
		return configureDevice(iface)
	})
	if err != nil {
		return fmt.Errorf("failed to configure %s/%s: %w", h.Router, iface.Name, err)
	}
	return nil
}

// configureDevice runs inside the container namespace.
func configureDevice(iface api.Interface) error {
	link, err := netlink.LinkByName(iface.Name)
	if err != nil {
		return fmt.Errorf("device %s does not exist: %w", iface.Name, err)
	}

	ip, ipNet, err := net.ParseCIDR(iface.Addr)
	if err != nil {
		return fmt.Errorf("failed to parse address %q: %w", iface.Addr, err)
	}
	addr := &netlink.Addr{IPNet: &net.IPNet{IP: ip, Mask: ipNet.Mask}}

	// Drop stale addresses so a reconfigured subnet does not linger.
	existing, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("failed to list addresses: %w", err)
	}
	for _, old := range existing {
		if old.IPNet.String() == addr.IPNet.String() {
			continue
		}
		if err := netlink.AddrDel(link, &old); err != nil {
			return fmt.Errorf("failed to remove stale address %s: %w", old.IPNet, err)
		}
	}
	if err := netlink.AddrReplace(link, addr); err != nil {
		return fmt.Errorf("failed to set address %s: %w", iface.Addr, err)
	}

	mtu := iface.MTU
	if mtu == 0 {
		mtu = defaultMTU
	}
	if link.Attrs().MTU != mtu {
		if err := netlink.LinkSetMTU(link, mtu); err != nil {
			return fmt.Errorf("failed to set mtu %d: %w", mtu, err)
		}
	}

	if iface.Down {
		if err := netlink.LinkSetDown(link); err != nil {
			return fmt.Errorf("failed to set link down: %w", err)
		}
	} else if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("failed to set link up: %w", err)
	}
	return nil
}

// applyImpairment replaces the root qdisc with netem when the link
// declares delay or loss. Each endpoint has its own device, so a plain
// root netem is enough; no per-destination classification is needed.
func applyImpairment(ifaceName string, props api.LinkProperties) error {
	if props.DelayMs == 0 && props.LossPct == 0 {
		return nil
	}
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return fmt.Errorf("device %s does not exist: %w", ifaceName, err)
	}
	netem := netlink.NewNetem(netlink.QdiscAttrs{
		LinkIndex: link.Attrs().Index,
		Handle:    netlink.MakeHandle(1, 0),
		Parent:    netlink.HANDLE_ROOT,
	}, netlink.NetemQdiscAttrs{
		Latency: props.DelayMs * 1000,
		Loss:    props.LossPct,
		Limit:   1000,
	})
	if err := netlink.QdiscReplace(netem); err != nil {
		return fmt.Errorf("failed to apply netem on %s: %w", ifaceName, err)
	}
	return nil
}

// deviceExists reports whether a device is present in the namespace.
func deviceExists(nsPath, name string) (bool, error) {
	netns, err := ns.GetNS(nsPath)
	if err != nil {
		return false, fmt.Errorf("failed to open namespace: %w", err)
	}
	defer netns.Close()

	found := false
	err = netns.Do(func(_ ns.NetNS) error {
		if _, err := netlink.LinkByName(name); err == nil {
			found = true
		}
		return nil
	})
	return found, err
}

// EnsureLink wires one declared link. Broadcast links attach each
// endpoint's host-side veth to an OVS segment bridge; p2p links span a
// single veth pair between the two container namespaces. Existing
// endpoint devices are left in place and only reconfigured.
func (d *DockerRuntime) EnsureLink(ctx context.Context, topo *api.Topology, l api.Link, a, b *Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ifaceA, ifaceB, err := linkInterfaces(topo, l)
	if err != nil {
		return err
	}

	kind := l.Kind
	if kind == "" {
		kind = api.LinkBroadcast
	}
	switch kind {
	case api.LinkPointToPoint:
		return d.ensureP2P(l, a, b, ifaceA, ifaceB)
	case api.LinkBroadcast:
		return d.ensureBroadcast(l, a, b, ifaceA, ifaceB)
	default:
		return fmt.Errorf("link %s: unknown kind %q", l.Name, kind)
	}
}

func linkInterfaces(topo *api.Topology, l api.Link) (api.Interface, api.Interface, error) {
	var zero api.Interface
	ra, rb := topo.Router(l.A.Router), topo.Router(l.B.Router)
	if ra == nil || rb == nil {
		return zero, zero, fmt.Errorf("link %s references unknown router", l.Name)
	}
	ia, ib := ra.Interface(l.A.Interface), rb.Interface(l.B.Interface)
	if ia == nil || ib == nil {
		return zero, zero, fmt.Errorf("link %s references unknown interface", l.Name)
	}
	return *ia, *ib, nil
}

func (d *DockerRuntime) ensureP2P(l api.Link, a, b *Handle, ifaceA, ifaceB api.Interface) error {
	existsA, err := deviceExists(a.NetNS, ifaceA.Name)
	if err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}
	existsB, err := deviceExists(b.NetNS, ifaceB.Name)
	if err != nil {
		return fmt.Errorf("link %s: %w", l.Name, err)
	}

	if !existsA && !existsB {
		tmpA := "rlp" + shortHash(l.Name+a.Router, 6) + "a"
		tmpB := "rlp" + shortHash(l.Name+b.Router, 6) + "b"
		la := netlink.NewLinkAttrs()
		la.Name = tmpA
		veth := &netlink.Veth{LinkAttrs: la, PeerName: tmpB}
		if err := netlink.LinkAdd(veth); err != nil {
			return fmt.Errorf("link %s: failed to create veth pair: %w", l.Name, err)
		}
		if err := moveAndRename(tmpA, a.NetNS, ifaceA.Name); err != nil {
			return fmt.Errorf("link %s endpoint %s: %w", l.Name, a.Router, err)
		}
		if err := moveAndRename(tmpB, b.NetNS, ifaceB.Name); err != nil {
			return fmt.Errorf("link %s endpoint %s: %w", l.Name, b.Router, err)
		}
	} else if existsA != existsB {
		return fmt.Errorf("link %s: endpoint devices are half-wired, teardown and reapply", l.Name)
	}

	if err := d.configureEndpoint(a, ifaceA, l.Properties); err != nil {
		return err
	}
	return d.configureEndpoint(b, ifaceB, l.Properties)
}

func (d *DockerRuntime) ensureBroadcast(l api.Link, a, b *Handle, ifaceA, ifaceB api.Interface) error {
	bridge, err := d.segments.ensureBridge(a.Topology, l.Name)
	if err != nil {
		return err
	}
	for _, ep := range []struct {
		h     *Handle
		iface api.Interface
	}{{a, ifaceA}, {b, ifaceB}} {
		exists, err := deviceExists(ep.h.NetNS, ep.iface.Name)
		if err != nil {
			return fmt.Errorf("link %s: %w", l.Name, err)
		}
		if !exists {
			hostSide := "rlh" + shortHash(l.Name+ep.h.Router, 6)
			tmp := "rlc" + shortHash(l.Name+ep.h.Router, 6)
			la := netlink.NewLinkAttrs()
			la.Name = hostSide
			la.Flags = net.FlagUp
			veth := &netlink.Veth{LinkAttrs: la, PeerName: tmp}
			if err := netlink.LinkAdd(veth); err != nil {
				return fmt.Errorf("link %s endpoint %s: failed to create veth pair: %w", l.Name, ep.h.Router, err)
			}
			host, err := netlink.LinkByName(hostSide)
			if err != nil {
				return fmt.Errorf("link %s: %w", l.Name, err)
			}
			if err := netlink.LinkSetUp(host); err != nil {
				return fmt.Errorf("link %s: failed to bring up %s: %w", l.Name, hostSide, err)
			}
			if err := d.segments.attachPort(bridge, hostSide); err != nil {
				return fmt.Errorf("link %s: %w", l.Name, err)
			}
			if err := moveAndRename(tmp, ep.h.NetNS, ep.iface.Name); err != nil {
				return fmt.Errorf("link %s endpoint %s: %w", l.Name, ep.h.Router, err)
			}
		}
		if err := d.configureEndpoint(ep.h, ep.iface, l.Properties); err != nil {
			return err
		}
	}
	return nil
}

// moveAndRename moves a device into a container namespace and renames
// it to its declared interface name. Rename requires the device down.
func moveAndRename(dev, nsPath, name string) error {
	link, err := netlink.LinkByName(dev)
	if err != nil {
		return fmt.Errorf("device %s does not exist: %w", dev, err)
	}
	netns, err := ns.GetNS(nsPath)
	if err != nil {
		return fmt.Errorf("failed to open namespace: %w", err)
	}
	defer netns.Close()

	if err := netlink.LinkSetNsFd(link, int(netns.Fd())); err != nil {
		return fmt.Errorf("failed to move %s into namespace: %w", dev, err)
	}
	return netns.Do(func(_ ns.NetNS) error {
		moved, err := netlink.LinkByName(dev)
		if err != nil {
			return fmt.Errorf("device %s missing after move: %w", dev, err)
		}
		if err := netlink.LinkSetDown(moved); err != nil {
			return fmt.Errorf("failed to set %s down for rename: %w", dev, err)
		}
		if err := netlink.LinkSetName(moved, name); err != nil {
			return fmt.Errorf("failed to rename %s to %s: %w", dev, name, err)
		}
		return nil
	})
}

func (d *DockerRuntime) configureEndpoint(h *Handle, iface api.Interface, props api.LinkProperties) error {
	netns, err := ns.GetNS(h.NetNS)
	if err != nil {
		return fmt.Errorf("failed to open namespace of %s: %w", h.Router, err)
	}
	defer netns.Close()

	err = netns.Do(func(_ ns.NetNS) error {
		if err := configureDevice(iface); err != nil {
			return err
		}
		return applyImpairment(iface.Name, props)
	})
	if err != nil {
		return fmt.Errorf("failed to configure %s/%s: %w", h.Router, iface.Name, err)
	}
	return nil
}
