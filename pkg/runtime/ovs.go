package runtime

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/digitalocean/go-openvswitch/ovs"
)

// segmentManager owns the OVS bridges that realize broadcast segments.
// Bridge names are derived deterministically from topology and link
// names so teardown can find them after a process restart, and stay
// within IFNAMSIZ.
type segmentManager struct {
	log *slog.Logger
	cli *ovs.Client
}

func newSegmentManager(log *slog.Logger) *segmentManager {
	return &segmentManager{log: log, cli: ovs.New()}
}

func shortHash(s string, n int) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())[:n]
}

func topologyPrefix(topology string) string {
	return "rl" + shortHash(topology, 4)
}

// bridgeName is at most 12 characters: "rl" + 4 topology hash chars +
// 6 link hash chars.
func bridgeName(topology, link string) string {
	return topologyPrefix(topology) + shortHash(link, 6)
}

// ensureBridge creates the segment bridge if missing. AddBridge is
// idempotent in ovs-vsctl terms (--may-exist).
func (sm *segmentManager) ensureBridge(topology, link string) (string, error) {
	name := bridgeName(topology, link)
	if err := sm.cli.VSwitch.AddBridge(name); err != nil {
		return "", fmt.Errorf("failed to create segment bridge %s for link %s: %w", name, link, err)
	}
	return name, nil
}

// attachPort adds the host side of an endpoint veth to the segment
// bridge.
func (sm *segmentManager) attachPort(bridge, port string) error {
	if err := sm.cli.VSwitch.AddPort(bridge, port); err != nil {
		return fmt.Errorf("failed to add port %s to bridge %s: %w", port, bridge, err)
	}
	return nil
}

// removeTopology deletes every segment bridge belonging to the
// topology, found by name prefix.
func (sm *segmentManager) removeTopology(topology string) error {
	bridges, err := sm.cli.VSwitch.ListBridges()
	if err != nil {
		// No OVS on this host is fine when the topology used only p2p
		// links.
		sm.log.Debug("could not list OVS bridges", "error", err)
		return nil
	}
	prefix := topologyPrefix(topology)
	var errs []string
	for _, br := range bridges {
		if !strings.HasPrefix(br, prefix) {
			continue
		}
		if err := sm.cli.VSwitch.DeleteBridge(br); err != nil {
			errs = append(errs, fmt.Sprintf("bridge %s: %v", br, err))
			continue
		}
		sm.log.Info("segment bridge removed", "topology", topology, "bridge", br)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove segment bridges: %s", strings.Join(errs, "; "))
	}
	return nil
}
