package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/routelab/routelab/api"
)

const (
	// DefaultImage is the FRR image used when a router declares none.
	DefaultImage = "quay.io/frrouting/frr:9.1.0"
	// DefaultOpTimeout bounds every single engine call, distinct from
	// any scenario-level timeout.
	DefaultOpTimeout = 10 * time.Second

	labelTopology = "routelab.topology"
	labelRouter   = "routelab.router"
	labelManaged  = "routelab.managed"
)

// DockerConfig configures the Docker runtime client.
type DockerConfig struct {
	Logger    *slog.Logger
	OpTimeout time.Duration
	// Image overrides the default FRR image for routers that declare
	// none.
	Image string
}

// Validate fills defaults and rejects incomplete configs.
func (cfg *DockerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	return nil
}

// DockerRuntime implements Runtime over the Docker Engine API. Links
// are realized with veth pairs moved into the container namespaces;
// broadcast segments are OVS bridges.
type DockerRuntime struct {
	log      *slog.Logger
	cfg      DockerConfig
	cli      *client.Client
	segments *segmentManager

	// mu serializes engine-mutating calls (create, remove, link
	// wiring). Read-only exec calls run concurrently.
	mu sync.Mutex
}

// NewDocker connects to the engine and verifies it is reachable.
func NewDocker(ctx context.Context, cfg DockerConfig) (*DockerRuntime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.OpTimeout)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return &DockerRuntime{
		log:      cfg.Logger,
		cfg:      cfg,
		cli:      cli,
		segments: newSegmentManager(cfg.Logger),
	}, nil
}

func (d *DockerRuntime) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.cfg.OpTimeout)
}

func engineErr(err error) error {
	if client.IsErrConnectionFailed(err) {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return err
}

// CreateRouter creates and starts the router container with its FRR
// configuration in place. Re-creating an existing managed router
// returns its handle instead of erroring.
func (d *DockerRuntime) CreateRouter(ctx context.Context, topology string, r api.Router) (*Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	name := ContainerName(topology, r.Name)

	if h, err := d.inspect(ctx, topology, r.Name); err == nil {
		if !h.Running {
			if err := d.start(ctx, h); err != nil {
				return nil, err
			}
		}
		return h, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	image := r.Image
	if image == "" {
		image = d.cfg.Image
	}
	sysctls := map[string]string{
		"net.ipv4.ip_forward":             "1",
		"net.ipv6.conf.all.forwarding":    "1",
		"net.ipv4.conf.all.rp_filter":     "0",
		"net.ipv4.conf.default.rp_filter": "0",
	}

	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	_, err := d.cli.ContainerCreate(opCtx, &container.Config{
		Image:           image,
		NetworkDisabled: true,
		User:            "root",
		Labels: map[string]string{
			labelTopology: topology,
			labelRouter:   r.Name,
			labelManaged:  "true",
		},
	}, &container.HostConfig{
		Privileged: true,
		Sysctls:    sysctls,
	}, nil, nil, name)
	if err != nil {
		if errdefs.IsConflict(err) {
			// Name taken by a container without our labels.
			return nil, fmt.Errorf("%w: container %s exists but is not managed by routelab", ErrResourceConflict, name)
		}
		return nil, engineErr(fmt.Errorf("failed to create container %s: %w", name, err))
	}

	if err := d.copyFRRConfig(ctx, name, r); err != nil {
		// Roll back the half-provisioned container: without its FRR
		// config the daemons would never start, yet a later create
		// would find the managed container and reuse it as-is.
		rmCtx, rmCancel := d.opCtx(context.WithoutCancel(ctx))
		defer rmCancel()
		if rmErr := d.cli.ContainerRemove(rmCtx, name, container.RemoveOptions{Force: true}); rmErr != nil && !errdefs.IsNotFound(rmErr) {
			d.log.Warn("failed to remove container after config delivery error", "container", name, "error", rmErr)
		}
		return nil, err
	}

	opCtx2, cancel2 := d.opCtx(ctx)
	defer cancel2()
	if err := d.cli.ContainerStart(opCtx2, name, container.StartOptions{}); err != nil {
		return nil, engineErr(fmt.Errorf("failed to start container %s: %w", name, err))
	}

	h, err := d.inspect(ctx, topology, r.Name)
	if err != nil {
		return nil, err
	}
	d.log.Info("router created", "topology", topology, "router", r.Name, "container", h.ID[:12])
	return h, nil
}

func (d *DockerRuntime) start(ctx context.Context, h *Handle) error {
	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := d.cli.ContainerStart(opCtx, h.Name, container.StartOptions{}); err != nil {
		return engineErr(fmt.Errorf("failed to start container %s: %w", h.Name, err))
	}
	fresh, err := d.inspect(ctx, h.Topology, h.Router)
	if err != nil {
		return err
	}
	*h = *fresh
	return nil
}

func (d *DockerRuntime) inspect(ctx context.Context, topology, router string) (*Handle, error) {
	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	name := ContainerName(topology, router)
	res, err := d.cli.ContainerInspect(opCtx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, engineErr(fmt.Errorf("failed to inspect container %s: %w", name, err))
	}
	if res.Config == nil || res.Config.Labels[labelManaged] != "true" {
		return nil, fmt.Errorf("%w: container %s exists but is not managed by routelab", ErrResourceConflict, name)
	}
	h := &Handle{
		ID:       res.ID,
		Name:     name,
		Topology: topology,
		Router:   router,
	}
	if res.State != nil {
		h.Running = res.State.Running
		h.Pid = res.State.Pid
		if h.Pid > 0 {
			h.NetNS = fmt.Sprintf("/proc/%d/ns/net", h.Pid)
		}
	}
	return h, nil
}

// ListRouters snapshots the managed routers of a topology, running or
// stopped.
func (d *DockerRuntime) ListRouters(ctx context.Context, topology string) ([]*Handle, error) {
	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	list, err := d.cli.ContainerList(opCtx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", labelManaged+"=true"),
			filters.Arg("label", labelTopology+"="+topology),
		),
	})
	if err != nil {
		return nil, engineErr(fmt.Errorf("failed to list routers for topology %s: %w", topology, err))
	}
	handles := make([]*Handle, 0, len(list))
	for _, c := range list {
		router := c.Labels[labelRouter]
		h, err := d.inspect(ctx, topology, router)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue // removed between list and inspect
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// ExecCommand runs argv inside the router container and captures
// stdout, stderr and the exit code.
func (d *DockerRuntime) ExecCommand(ctx context.Context, h *Handle, argv []string) (*ExecResult, error) {
	opCtx, cancel := d.opCtx(ctx)
	defer cancel()

	exec, err := d.cli.ContainerExecCreate(opCtx, h.ID, container.ExecOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, engineErr(fmt.Errorf("failed to create exec on %s: %w", h.Name, err))
	}
	attach, err := d.cli.ContainerExecAttach(opCtx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, engineErr(fmt.Errorf("failed to attach exec on %s: %w", h.Name, err))
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()
	select {
	case <-opCtx.Done():
		return nil, fmt.Errorf("command on %s timed out: %w", h.Name, opCtx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("failed to read exec output on %s: %w", h.Name, err)
		}
	}

	insp, err := d.cli.ContainerExecInspect(opCtx, exec.ID)
	if err != nil {
		return nil, engineErr(fmt.Errorf("failed to inspect exec on %s: %w", h.Name, err))
	}
	return &ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: insp.ExitCode,
	}, nil
}

// ExecRouter resolves the router by name and runs argv inside it.
func (d *DockerRuntime) ExecRouter(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error) {
	h, err := d.inspect(ctx, topology, router)
	if err != nil {
		return nil, nil, 0, err
	}
	res, err := d.ExecCommand(ctx, h, argv)
	if err != nil {
		return nil, nil, 0, err
	}
	return res.Stdout, res.Stderr, res.ExitCode, nil
}

// RemoveRouter force-removes the container. An absent router is a
// no-op.
func (d *DockerRuntime) RemoveRouter(ctx context.Context, h *Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opCtx, cancel := d.opCtx(ctx)
	defer cancel()
	err := d.cli.ContainerRemove(opCtx, h.Name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return engineErr(fmt.Errorf("failed to remove container %s: %w", h.Name, err))
	}
	d.log.Info("router removed", "topology", h.Topology, "router", h.Router)
	return nil
}

// RemoveTopology removes every managed router of the topology and its
// OVS segments.
func (d *DockerRuntime) RemoveTopology(ctx context.Context, topology string) error {
	handles, err := d.ListRouters(ctx, topology)
	if err != nil {
		return err
	}
	var errs []error
	for _, h := range handles {
		if err := d.RemoveRouter(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.segments.removeTopology(topology); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ Runtime = (*DockerRuntime)(nil)
