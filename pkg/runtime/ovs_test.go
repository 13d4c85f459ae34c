package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBridgeName(t *testing.T) {
	t.Parallel()

	name := bridgeName("triangle", "r1r2")
	assert.True(t, strings.HasPrefix(name, "rl"))
	// IFNAMSIZ allows 15 chars; derived names leave headroom.
	assert.LessOrEqual(t, len(name), 12)

	// Deterministic, so teardown finds the same names after a restart.
	assert.Equal(t, name, bridgeName("triangle", "r1r2"))
	assert.NotEqual(t, name, bridgeName("triangle", "r2r3"))

	// Different topologies never share a prefix, which is what scopes
	// teardown's bridge sweep.
	assert.NotEqual(t, topologyPrefix("triangle"), topologyPrefix("isis-pair"))
	assert.True(t, strings.HasPrefix(bridgeName("triangle", "r1r2"), topologyPrefix("triangle")))
}
