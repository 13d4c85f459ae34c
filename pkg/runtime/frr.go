package runtime

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/docker/docker/api/types/container"

	"github.com/routelab/routelab/api"
)

const isisInstance = "LAB"

// FRRConfig renders the frr.conf for a router. Interface addresses are
// managed by the link wiring, not by FRR, so only protocol statements
// appear here.
func FRRConfig(r api.Router) string {
	var b strings.Builder
	fmt.Fprintf(&b, "frr defaults traditional\n")
	fmt.Fprintf(&b, "hostname %s\n", r.Name)
	fmt.Fprintf(&b, "service integrated-vtysh-config\n")
	fmt.Fprintf(&b, "!\n")

	for _, iface := range r.Interfaces {
		fmt.Fprintf(&b, "interface %s\n", iface.Name)
		if r.OSPF != nil {
			if iface.OSPFPriority != nil {
				fmt.Fprintf(&b, " ip ospf priority %d\n", *iface.OSPFPriority)
			}
			if iface.OSPFCost > 0 {
				fmt.Fprintf(&b, " ip ospf cost %d\n", iface.OSPFCost)
			}
		}
		if r.ISIS != nil {
			fmt.Fprintf(&b, " ip router isis %s\n", isisInstance)
			if iface.ISISCircuitType == "point-to-point" {
				fmt.Fprintf(&b, " isis network point-to-point\n")
			}
		}
		fmt.Fprintf(&b, "!\n")
	}

	if r.OSPF != nil {
		fmt.Fprintf(&b, "router ospf\n")
		fmt.Fprintf(&b, " ospf router-id %s\n", r.RouterID)
		for _, iface := range r.Interfaces {
			if p, err := netip.ParsePrefix(iface.Addr); err == nil {
				fmt.Fprintf(&b, " network %s area %s\n", p.Masked(), r.OSPF.Area)
			}
		}
		fmt.Fprintf(&b, "!\n")
	}

	if r.ISIS != nil {
		fmt.Fprintf(&b, "router isis %s\n", isisInstance)
		fmt.Fprintf(&b, " net %s\n", ISISNet(r.ISIS.Area, r.ISIS.SystemID))
		fmt.Fprintf(&b, " is-type %s\n", isisType(r.ISIS.Level))
		fmt.Fprintf(&b, "!\n")
	}

	fmt.Fprintf(&b, "line vty\n")
	return b.String()
}

// ISISNet builds the network entity title from area prefix and system
// id, e.g. 49.0001 + 0000.0000.0001 -> 49.0001.0000.0000.0001.00.
func ISISNet(area, systemID string) string {
	return area + "." + systemID + ".00"
}

func isisType(level string) string {
	switch level {
	case api.ISISLevel1:
		return "level-1"
	case api.ISISLevel2:
		return "level-2-only"
	default:
		return "level-1-2"
	}
}

// frrDaemons renders the /etc/frr/daemons file enabling only the
// daemons the router needs.
func frrDaemons(r api.Router) string {
	onOff := func(on bool) string {
		if on {
			return "yes"
		}
		return "no"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "zebra=yes\n")
	fmt.Fprintf(&b, "ospfd=%s\n", onOff(r.OSPF != nil))
	fmt.Fprintf(&b, "isisd=%s\n", onOff(r.ISIS != nil))
	for _, d := range []string{"bgpd", "ripd", "ripngd", "ospf6d", "pimd", "ldpd", "nhrpd", "eigrpd", "babeld", "sharpd", "pbrd", "bfdd", "fabricd"} {
		fmt.Fprintf(&b, "%s=no\n", d)
	}
	fmt.Fprintf(&b, "vtysh_enable=yes\n")
	fmt.Fprintf(&b, "zebra_options=\"  -A 127.0.0.1 -s 90000000\"\n")
	fmt.Fprintf(&b, "ospfd_options=\"  -A 127.0.0.1\"\n")
	fmt.Fprintf(&b, "isisd_options=\"  -A 127.0.0.1\"\n")
	return b.String()
}

// copyFRRConfig delivers frr.conf and the daemons file into /etc/frr
// before the container starts, so the daemons come up configured.
func (d *DockerRuntime) copyFRRConfig(ctx context.Context, containerName string, r api.Router) error {
	files := map[string]string{
		"frr.conf": FRRConfig(r),
		"daemons":  frrDaemons(r),
	}
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("failed to write tar content for %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize config archive: %w", err)
	}

	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := d.cli.CopyToContainer(opCtx, containerName, "/etc/frr", &buf, container.CopyToContainerOptions{}); err != nil {
		return engineErr(fmt.Errorf("failed to copy FRR config into %s: %w", containerName, err))
	}
	return nil
}
