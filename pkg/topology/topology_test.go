package topology

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/routelab/api"
)

const pairYAML = `name: pair
routers:
  - name: r1
    routerId: 1.1.1.1
    ospf: {area: 0.0.0.0}
    interfaces:
      - {name: eth0, addr: 10.0.12.1/24}
  - name: r2
    routerId: 2.2.2.2
    ospf: {area: 0.0.0.0}
    interfaces:
      - {name: eth0, addr: 10.0.12.2/24}
links:
  - name: r1r2
    a: {router: r1, interface: eth0}
    b: {router: r2, interface: eth0}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	t.Run("valid document", func(t *testing.T) {
		topo, err := Load(writeFile(t, dir, "pair.yaml", pairYAML))
		require.NoError(t, err)
		assert.Equal(t, "pair", topo.Name)
		require.Len(t, topo.Routers, 2)
		assert.Equal(t, "10.0.12.2/24", topo.Routers[1].Interfaces[0].Addr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid topology is rejected", func(t *testing.T) {
		path := writeFile(t, dir, "bad.yaml", "name: bad\nrouters: []\n")
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declares no routers")
	})
}

func TestLoadScenario(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "pair.yaml", pairYAML)

	t.Run("topology file resolved relative to scenario", func(t *testing.T) {
		path := writeFile(t, dir, "sc.yaml", `name: converge
topologyFile: pair.yaml
steps:
  - configure: {}
  - waitFor:
      condition:
        allFull:
          - {router: r1, peer: 2.2.2.2}
      timeout: 45s
`)
		sc, topo, err := LoadScenario(path)
		require.NoError(t, err)
		assert.Equal(t, "converge", sc.Name)
		assert.Equal(t, "pair", topo.Name)
		require.Len(t, sc.Steps, 2)
		assert.Equal(t, "configure", sc.Steps[0].Kind())
		require.NotNil(t, sc.Steps[1].WaitFor)
		assert.Equal(t, 45*time.Second, time.Duration(sc.Steps[1].WaitFor.Timeout))
		require.Len(t, sc.Steps[1].WaitFor.Condition.AllFull, 1)
		assert.Equal(t, api.PeerPair{Router: "r1", Peer: "2.2.2.2"}, sc.Steps[1].WaitFor.Condition.AllFull[0])
	})

	t.Run("step without action is rejected", func(t *testing.T) {
		path := writeFile(t, dir, "empty-step.yaml", `name: broken
topologyFile: pair.yaml
steps:
  - {}
`)
		_, _, err := LoadScenario(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declares no action")
	})

	t.Run("neither topology nor file", func(t *testing.T) {
		path := writeFile(t, dir, "no-topo.yaml", "name: broken\nsteps:\n  - configure: {}\n")
		_, _, err := LoadScenario(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "neither topology nor topologyFile")
	})
}
