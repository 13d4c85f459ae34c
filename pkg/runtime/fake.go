package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/routelab/routelab/api"
)

// Fake is an in-memory Runtime for tests. Interface state is stored
// per router and mutated by ApplyInterfaceConfig and EnsureLink, so
// reconciliation drift tests can perturb it directly. Exec output is
// scripted through ExecFunc.
type Fake struct {
	mu sync.Mutex

	routers map[string]map[string]*fakeRouter // topology -> router -> state
	links   map[string][]string               // topology -> wired link names

	// ExecFunc scripts command output per router. Nil means every
	// command succeeds with empty JSON output.
	ExecFunc func(topology, router string, argv []string) (*ExecResult, error)

	// FailCreate and FailApply inject per-router errors. FailConfig
	// fails config delivery after the container exists, like a
	// CopyToContainer error.
	FailCreate map[string]error
	FailApply  map[string]error
	FailConfig map[string]error

	CreateCalls map[string]int
	RemoveCalls map[string]int
}

type fakeRouter struct {
	handle Handle
	spec   api.Router
	ifaces map[string]InterfaceState
}

// NewFake creates an empty fake runtime.
func NewFake() *Fake {
	return &Fake{
		routers:     make(map[string]map[string]*fakeRouter),
		links:       make(map[string][]string),
		FailCreate:  make(map[string]error),
		FailApply:   make(map[string]error),
		FailConfig:  make(map[string]error),
		CreateCalls: make(map[string]int),
		RemoveCalls: make(map[string]int),
	}
}

func (f *Fake) topo(topology string) map[string]*fakeRouter {
	if f.routers[topology] == nil {
		f.routers[topology] = make(map[string]*fakeRouter)
	}
	return f.routers[topology]
}

// CreateRouter is idempotent by name, like the Docker implementation.
func (f *Fake) CreateRouter(ctx context.Context, topology string, r api.Router) (*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailCreate[r.Name]; err != nil {
		return nil, err
	}
	routers := f.topo(topology)
	if existing, ok := routers[r.Name]; ok {
		h := existing.handle
		return &h, nil
	}

	f.CreateCalls[r.Name]++
	fr := &fakeRouter{
		handle: Handle{
			ID:       "fake-" + r.Name,
			Name:     ContainerName(topology, r.Name),
			Topology: topology,
			Router:   r.Name,
			Running:  true,
		},
		spec:   r,
		ifaces: make(map[string]InterfaceState),
	}
	routers[r.Name] = fr
	if err := f.FailConfig[r.Name]; err != nil {
		// Config delivery happens after the container exists; the
		// container is rolled back so a retry creates from scratch.
		delete(routers, r.Name)
		return nil, err
	}
	h := fr.handle
	return &h, nil
}

func (f *Fake) ListRouters(ctx context.Context, topology string) ([]*Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Handle
	for _, fr := range f.routers[topology] {
		h := fr.handle
		out = append(out, &h)
	}
	return out, nil
}

func (f *Fake) RouterState(ctx context.Context, h *Handle) (*RouterState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fr, ok := f.routers[h.Topology][h.Router]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h.Name)
	}
	state := &RouterState{Router: h.Router}
	for _, ifState := range fr.ifaces {
		state.Interfaces = append(state.Interfaces, ifState)
	}
	return state, nil
}

func (f *Fake) ApplyInterfaceConfig(ctx context.Context, h *Handle, iface api.Interface) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.FailApply[h.Router]; err != nil {
		return err
	}
	fr, ok := f.routers[h.Topology][h.Router]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, h.Name)
	}
	f.setIface(fr, iface)
	return nil
}

func (f *Fake) setIface(fr *fakeRouter, iface api.Interface) {
	mtu := iface.MTU
	if mtu == 0 {
		mtu = defaultMTU
	}
	fr.ifaces[iface.Name] = InterfaceState{
		Name: iface.Name,
		Addr: iface.Addr,
		MTU:  mtu,
		Up:   !iface.Down,
	}
}

// EnsureLink materializes both endpoint devices, like the veth wiring
// does for real containers.
func (f *Fake) EnsureLink(ctx context.Context, topo *api.Topology, l api.Link, a, b *Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ifaceA, ifaceB, err := linkInterfaces(topo, l)
	if err != nil {
		return err
	}
	fa, ok := f.routers[a.Topology][a.Router]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, a.Name)
	}
	fb, ok := f.routers[b.Topology][b.Router]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, b.Name)
	}
	f.setIface(fa, ifaceA)
	f.setIface(fb, ifaceB)
	f.links[a.Topology] = append(f.links[a.Topology], l.Name)
	return nil
}

func (f *Fake) ExecCommand(ctx context.Context, h *Handle, argv []string) (*ExecResult, error) {
	return f.exec(h.Topology, h.Router, argv)
}

func (f *Fake) ExecRouter(ctx context.Context, topology, router string, argv []string) ([]byte, []byte, int, error) {
	res, err := f.exec(topology, router, argv)
	if err != nil {
		return nil, nil, 0, err
	}
	return res.Stdout, res.Stderr, res.ExitCode, nil
}

func (f *Fake) exec(topology, router string, argv []string) (*ExecResult, error) {
	f.mu.Lock()
	fn := f.ExecFunc
	_, exists := f.routers[topology][router]
	f.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ContainerName(topology, router))
	}
	if fn != nil {
		return fn(topology, router, argv)
	}
	return &ExecResult{Stdout: []byte("{}")}, nil
}

// RemoveRouter is a no-op for absent routers, mirroring the Docker
// implementation.
func (f *Fake) RemoveRouter(ctx context.Context, h *Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.RemoveCalls[h.Router]++
	delete(f.routers[h.Topology], h.Router)
	return nil
}

func (f *Fake) RemoveTopology(ctx context.Context, topology string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.routers, topology)
	delete(f.links, topology)
	return nil
}

// SetInterfaceState overwrites observed state for drift tests.
func (f *Fake) SetInterfaceState(topology, router string, state InterfaceState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fr, ok := f.routers[topology][router]; ok {
		fr.ifaces[state.Name] = state
	}
}

// WiredLinks returns the link names wired for a topology.
func (f *Fake) WiredLinks(topology string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.links[topology]))
	copy(out, f.links[topology])
	return out
}

// AddUnmanaged registers a router that is running but not declared,
// for prune-policy tests.
func (f *Fake) AddUnmanaged(topology, router string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.topo(topology)[router] = &fakeRouter{
		handle: Handle{
			ID:       "fake-" + router,
			Name:     ContainerName(topology, router),
			Topology: topology,
			Router:   router,
			Running:  true,
		},
		ifaces: make(map[string]InterfaceState),
	}
}

var _ Runtime = (*Fake)(nil)
