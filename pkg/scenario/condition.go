package scenario

import (
	"errors"
	"fmt"

	"github.com/routelab/routelab/api"
	"github.com/routelab/routelab/pkg/poller"
)

// CompileCondition turns a declared condition into a poller predicate.
// Exactly one condition field must be set.
func CompileCondition(c api.Condition) (poller.Predicate, error) {
	var preds []poller.Predicate
	if len(c.AllFull) > 0 {
		preds = append(preds, poller.AllFull(toPairs(c.AllFull)))
	}
	if len(c.AllISISUp) > 0 {
		preds = append(preds, poller.AllISISUp(toPairs(c.AllISISUp)))
	}
	if c.PeerState != nil {
		preds = append(preds, poller.PeerInState(c.PeerState.Router, c.PeerState.Peer, c.PeerState.State))
	}
	if c.NoNeighbor != nil {
		preds = append(preds, poller.NoNeighbor(c.NoNeighbor.Router, c.NoNeighbor.Peer))
	}
	if c.RouteExists != nil {
		preds = append(preds, poller.RouteExists(c.RouteExists.Router, c.RouteExists.Prefix))
	}
	switch len(preds) {
	case 0:
		return nil, errors.New("condition declares no predicate")
	case 1:
		return preds[0], nil
	default:
		return nil, fmt.Errorf("condition declares %d predicates, want exactly one", len(preds))
	}
}

// NeedsRoutes reports whether the condition requires RIB collection.
func NeedsRoutes(c api.Condition) bool {
	return c.RouteExists != nil
}

func toPairs(in []api.PeerPair) []poller.PeerPair {
	out := make([]poller.PeerPair, len(in))
	for i, p := range in {
		out[i] = poller.PeerPair{Router: p.Router, Peer: p.Peer}
	}
	return out
}
