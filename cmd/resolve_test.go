package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestResolveTopology(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "pair.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pairYAML), 0o644))

	t.Run("positional name alone", func(t *testing.T) {
		name, topo, err := resolveTopology([]string{"pair"}, "")
		require.NoError(t, err)
		assert.Equal(t, "pair", name)
		assert.Nil(t, topo)
	})

	t.Run("file alone", func(t *testing.T) {
		name, topo, err := resolveTopology(nil, path)
		require.NoError(t, err)
		assert.Equal(t, "pair", name)
		require.NotNil(t, topo)
		assert.Len(t, topo.Routers, 2)
	})

	t.Run("name and file must agree", func(t *testing.T) {
		name, topo, err := resolveTopology([]string{"pair"}, path)
		require.NoError(t, err)
		assert.Equal(t, "pair", name)
		assert.NotNil(t, topo)

		_, _, err = resolveTopology([]string{"other"}, path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("neither is an error", func(t *testing.T) {
		_, _, err := resolveTopology(nil, "")
		assert.Error(t, err)
	})
}
