package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/routelab/pkg/neighbor"
	"github.com/routelab/routelab/pkg/runtime"
)

// scriptedSource serves per-router snapshots from a function of the
// per-router call count, and signals every snapshot so tests can
// advance the fake clock in lockstep with poll cycles.
type scriptedSource struct {
	mu        sync.Mutex
	calls     map[string]int
	collected chan struct{}
	fn        func(cycle int, router string) (*neighbor.Snapshot, error)
}

func newScriptedSource(fn func(cycle int, router string) (*neighbor.Snapshot, error)) *scriptedSource {
	return &scriptedSource{
		calls:     make(map[string]int),
		collected: make(chan struct{}, 64),
		fn:        fn,
	}
}

func (s *scriptedSource) Snapshot(ctx context.Context, router string) (*neighbor.Snapshot, error) {
	s.mu.Lock()
	cycle := s.calls[router]
	s.calls[router]++
	s.mu.Unlock()
	s.collected <- struct{}{}
	return s.fn(cycle, router)
}

// waitCycle blocks until the next snapshot has been served.
func (s *scriptedSource) waitCycle(t *testing.T) {
	t.Helper()
	select {
	case <-s.collected:
	case <-time.After(5 * time.Second):
		t.Fatal("poll cycle never happened")
	}
}

func adjacency(router, peer, state string) neighbor.Snapshot {
	return neighbor.Snapshot{
		Router: router,
		Adjacencies: []neighbor.Observation{
			{Router: router, Protocol: neighbor.ProtocolOSPF, PeerID: peer, State: state},
		},
	}
}

func newTestPoller(t *testing.T, src Source, clock clockwork.Clock) *Poller {
	t.Helper()
	p, err := New(Config{
		Logger:       slog.Default(),
		Source:       src,
		Clock:        clock,
		PollInterval: 2 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestWaitForConditionImmediatelySatisfied(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		snap := adjacency("r1", "2.2.2.2", neighbor.StateFull)
		return &snap, nil
	})
	p := newTestPoller(t, src, clockwork.NewFakeClock())

	res, err := p.WaitForCondition(context.Background(), []string{"r1"},
		AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}}), 30*time.Second)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Zero(t, res.Elapsed)
	require.Len(t, res.Snapshots, 1)
}

func TestWaitForConditionMeasuresConvergence(t *testing.T) {
	t.Parallel()

	// ExStart for two cycles, Full from the third.
	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		state := neighbor.StateExStart
		if cycle >= 2 {
			state = neighbor.StateFull
		}
		snap := adjacency("r1", "2.2.2.2", state)
		return &snap, nil
	})
	clock := clockwork.NewFakeClock()
	p := newTestPoller(t, src, clock)

	type outcome struct {
		res *WaitResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.WaitForCondition(context.Background(), []string{"r1"},
			PeerInState("r1", "2.2.2.2", neighbor.StateFull), time.Minute)
		done <- outcome{res, err}
	}()

	src.waitCycle(t)
	clock.Advance(2 * time.Second)
	src.waitCycle(t)
	clock.Advance(2 * time.Second)

	o := <-done
	require.NoError(t, o.err)
	assert.True(t, o.res.OK)
	assert.Equal(t, 4*time.Second, o.res.Elapsed)
}

func TestWaitForConditionTimeout(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		snap := adjacency("r1", "2.2.2.2", neighbor.StateExStart)
		return &snap, nil
	})
	clock := clockwork.NewFakeClock()
	p := newTestPoller(t, src, clock)

	done := make(chan *WaitResult, 1)
	go func() {
		res, err := p.WaitForCondition(context.Background(), []string{"r1"},
			AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}}), 5*time.Second)
		require.NoError(t, err)
		done <- res
	}()

	for i := 0; i < 3; i++ {
		src.waitCycle(t)
		clock.Advance(2 * time.Second)
	}

	res := <-done
	assert.False(t, res.OK)
	assert.Equal(t, 5*time.Second, res.Elapsed)
	require.NotNil(t, res.Timeout)
	assert.Equal(t, []string{"r1 -> 2.2.2.2: ExStart (want Full)"}, res.Timeout.Unmet)
	// The last snapshots come back so the caller can report the stuck
	// adjacency.
	require.Len(t, res.Snapshots, 1)
	assert.Equal(t, neighbor.StateExStart, res.Snapshots[0].Adjacencies[0].State)
}

func TestWaitForConditionUnreachableRouterIsOmitted(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		if router == "r2" {
			return nil, fmt.Errorf("vtysh failed on %s", router)
		}
		snap := adjacency("r1", "2.2.2.2", neighbor.StateFull)
		return &snap, nil
	})
	p := newTestPoller(t, src, clockwork.NewFakeClock())

	// Timeout zero: one evaluation against whatever was collectable.
	res, err := p.WaitForCondition(context.Background(), []string{"r1", "r2"},
		AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}, {Router: "r2", Peer: "1.1.1.1"}}), 0)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Timeout)
	assert.Contains(t, res.Timeout.Unmet, "r2 -> 1.1.1.1: no adjacency (want Full)")
}

func TestWaitForConditionEngineUnavailableAborts(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		return nil, fmt.Errorf("snapshot r1: %w", runtime.ErrRuntimeUnavailable)
	})
	p := newTestPoller(t, src, clockwork.NewFakeClock())

	_, err := p.WaitForCondition(context.Background(), []string{"r1"},
		AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}}), time.Minute)
	assert.ErrorIs(t, err, runtime.ErrRuntimeUnavailable)
}

func TestWaitForConditionContextCancel(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(func(cycle int, router string) (*neighbor.Snapshot, error) {
		snap := adjacency("r1", "2.2.2.2", neighbor.StateExStart)
		return &snap, nil
	})
	p := newTestPoller(t, src, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.WaitForCondition(ctx, []string{"r1"},
			AllFull([]PeerPair{{Router: "r1", Peer: "2.2.2.2"}}), time.Minute)
		done <- err
	}()

	src.waitCycle(t)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
