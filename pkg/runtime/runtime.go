// Package runtime is the container runtime client: the single place
// that talks to the container engine on behalf of the orchestrator,
// poller and CLI. Engine-mutating calls are serialized; read-only exec
// calls run concurrently.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/routelab/routelab/api"
)

var (
	// ErrRuntimeUnavailable means the container engine cannot be
	// reached. Fatal: scenarios abort on it.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
	// ErrResourceConflict means a name collision with a container not
	// managed by this tool.
	ErrResourceConflict = errors.New("resource name conflict")
	// ErrNotFound means no such router container exists.
	ErrNotFound = errors.New("router not found")
)

// CommandError reports a failed in-container command with its captured
// stderr, so failures keep precise attribution.
type CommandError struct {
	Router   string
	Argv     []string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q on router %s exited %d: %s",
		strings.Join(e.Argv, " "), e.Router, e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Handle identifies a running router container.
type Handle struct {
	ID       string
	Name     string // container name, <topology>-<router>
	Topology string
	Router   string
	Pid      int
	NetNS    string // /proc/<pid>/ns/net
	Running  bool
}

// InterfaceState is the observed configuration of one router
// interface, read back for reconciliation diffing.
type InterfaceState struct {
	Name string
	Addr string // CIDR, empty if unaddressed
	MTU  int
	Up   bool
}

// RouterState is the observed state of a router's interfaces.
type RouterState struct {
	Router     string
	Interfaces []InterfaceState
}

// Interface returns the state of the named interface, or nil if the
// device does not exist in the container.
func (s *RouterState) Interface(name string) *InterfaceState {
	for i := range s.Interfaces {
		if s.Interfaces[i].Name == name {
			return &s.Interfaces[i]
		}
	}
	return nil
}

// ExecResult is the captured output of an in-container command.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runtime is the contract the orchestrator and poller program against.
// Implemented by DockerRuntime and by Fake in tests.
type Runtime interface {
	// CreateRouter creates and starts a router container. Idempotent
	// by name: an existing managed router is returned as-is (started
	// if stopped) so reconciliation can re-enter.
	CreateRouter(ctx context.Context, topology string, r api.Router) (*Handle, error)

	// ListRouters snapshots the routers currently running for a
	// topology. Reconciliation always re-queries; it never assumes a
	// previous call's effects persist.
	ListRouters(ctx context.Context, topology string) ([]*Handle, error)

	// RouterState reads back interface state for drift detection.
	RouterState(ctx context.Context, h *Handle) (*RouterState, error)

	// ApplyInterfaceConfig reapplies address, MTU and admin state to
	// an existing interface device.
	ApplyInterfaceConfig(ctx context.Context, h *Handle, iface api.Interface) error

	// EnsureLink wires a declared link between two routers, creating
	// the segment and endpoint devices if missing.
	EnsureLink(ctx context.Context, topo *api.Topology, l api.Link, a, b *Handle) error

	// ExecCommand runs argv inside the router and captures output.
	ExecCommand(ctx context.Context, h *Handle, argv []string) (*ExecResult, error)

	// ExecRouter is ExecCommand addressed by topology and router name.
	ExecRouter(ctx context.Context, topology, router string, argv []string) (stdout, stderr []byte, exitCode int, err error)

	// RemoveRouter force-removes a router container. Removing an
	// absent router is a no-op returning success.
	RemoveRouter(ctx context.Context, h *Handle) error

	// RemoveTopology tears down every router and segment of a
	// topology.
	RemoveTopology(ctx context.Context, topology string) error
}

// ContainerName is the engine-visible name of a router container.
func ContainerName(topology, router string) string {
	return topology + "-" + router
}
