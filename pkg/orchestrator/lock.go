package orchestrator

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyReconciling is returned when a second reconciliation is
// attempted on a topology that is already being reconciled. Callers
// see it immediately instead of interleaving partial writes.
var ErrAlreadyReconciling = errors.New("already reconciling")

// lockRegistry enforces at most one active reconciliation per
// topology name within the process.
type lockRegistry struct {
	mu   sync.Mutex
	held map[string]bool
}

var locks = &lockRegistry{held: make(map[string]bool)}

func (r *lockRegistry) acquire(topology string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[topology] {
		return nil, fmt.Errorf("topology %s: %w", topology, ErrAlreadyReconciling)
	}
	r.held[topology] = true
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.held, topology)
	}, nil
}
