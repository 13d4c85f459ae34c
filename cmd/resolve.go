package cmd

import (
	"errors"
	"fmt"

	"github.com/routelab/routelab/api"
	"github.com/routelab/routelab/pkg/topology"
)

// resolveTopology resolves the target topology from a positional name
// argument, a --from file, or both, which must agree. topo is nil when
// only the name is known.
func resolveTopology(args []string, path string) (string, *api.Topology, error) {
	if path != "" {
		t, err := topology.Load(path)
		if err != nil {
			return "", nil, err
		}
		if len(args) == 1 && args[0] != t.Name {
			return "", nil, fmt.Errorf("topology name %q does not match %q declared in %s", args[0], t.Name, path)
		}
		return t.Name, t, nil
	}
	if len(args) == 1 {
		return args[0], nil, nil
	}
	return "", nil, errors.New("a topology name or --from is required")
}
