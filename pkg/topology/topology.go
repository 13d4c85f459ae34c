// Package topology loads and validates lab topology and scenario
// documents. Validation is pure: no container operation happens until
// a topology passes.
package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/routelab/routelab/api"
)

// Load reads and validates a topology YAML document.
func Load(path string) (*api.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}
	var topo api.Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topology file %s: %w", path, err)
	}
	if errs := Validate(&topo); len(errs) > 0 {
		return nil, Errors(errs)
	}
	return &topo, nil
}

// LoadScenario reads a scenario YAML document and resolves its
// topology (inline or referenced file, relative to the scenario path).
func LoadScenario(path string) (*api.Scenario, *api.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	var sc api.Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal scenario file %s: %w", path, err)
	}
	for i, step := range sc.Steps {
		if step.Kind() == "invalid" {
			return nil, nil, fmt.Errorf("scenario %s: step %d declares no action", path, i+1)
		}
	}

	topo := sc.Topology
	if topo == nil {
		if sc.TopologyFile == "" {
			return nil, nil, fmt.Errorf("scenario %s declares neither topology nor topologyFile", path)
		}
		topoPath := sc.TopologyFile
		if !filepath.IsAbs(topoPath) {
			topoPath = filepath.Join(filepath.Dir(path), topoPath)
		}
		topo, err = Load(topoPath)
		if err != nil {
			return nil, nil, err
		}
	} else if errs := Validate(topo); len(errs) > 0 {
		return nil, nil, Errors(errs)
	}
	return &sc, topo, nil
}
