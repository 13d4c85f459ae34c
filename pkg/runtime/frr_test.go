package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/routelab/routelab/api"
)

func intPtr(v int) *int { return &v }

func TestFRRConfigOSPF(t *testing.T) {
	t.Parallel()

	r := api.Router{
		Name:     "r1",
		RouterID: "1.1.1.1",
		OSPF:     &api.OSPFConfig{Area: "0.0.0.0"},
		Interfaces: []api.Interface{
			{Name: "eth0", Addr: "10.1.12.1/24", OSPFPriority: intPtr(0)},
			{Name: "eth1", Addr: "10.1.13.1/24", OSPFCost: 50},
		},
	}
	conf := FRRConfig(r)

	assert.Contains(t, conf, "hostname r1\n")
	assert.Contains(t, conf, "interface eth0\n ip ospf priority 0\n")
	assert.Contains(t, conf, "interface eth1\n ip ospf cost 50\n")
	assert.Contains(t, conf, "router ospf\n ospf router-id 1.1.1.1\n")
	// Networks are advertised by masked subnet, not interface address.
	assert.Contains(t, conf, " network 10.1.12.0/24 area 0.0.0.0\n")
	assert.Contains(t, conf, " network 10.1.13.0/24 area 0.0.0.0\n")
	assert.NotContains(t, conf, "router isis")
}

func TestFRRConfigISIS(t *testing.T) {
	t.Parallel()

	r := api.Router{
		Name:     "r2",
		RouterID: "2.2.2.2",
		ISIS:     &api.ISISConfig{Level: api.ISISLevel2, SystemID: "0000.0000.0002", Area: "49.0001"},
		Interfaces: []api.Interface{
			{Name: "eth0", Addr: "10.2.12.2/30", ISISCircuitType: "point-to-point"},
		},
	}
	conf := FRRConfig(r)

	assert.Contains(t, conf, "interface eth0\n ip router isis LAB\n isis network point-to-point\n")
	assert.Contains(t, conf, "router isis LAB\n net 49.0001.0000.0000.0002.00\n is-type level-2-only\n")
	assert.NotContains(t, conf, "router ospf")
}

func TestISISNet(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "49.0001.0000.0000.0001.00", ISISNet("49.0001", "0000.0000.0001"))
}

func TestISISType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "level-1", isisType(api.ISISLevel1))
	assert.Equal(t, "level-2-only", isisType(api.ISISLevel2))
	assert.Equal(t, "level-1-2", isisType(api.ISISLevel12))
	assert.Equal(t, "level-1-2", isisType(""))
}

func TestFRRDaemons(t *testing.T) {
	t.Parallel()

	r := api.Router{Name: "r1", OSPF: &api.OSPFConfig{Area: "0.0.0.0"}}
	daemons := frrDaemons(r)
	assert.Contains(t, daemons, "zebra=yes\n")
	assert.Contains(t, daemons, "ospfd=yes\n")
	assert.Contains(t, daemons, "isisd=no\n")
	assert.Contains(t, daemons, "bgpd=no\n")
	assert.Contains(t, daemons, "vtysh_enable=yes\n")

	r.OSPF = nil
	r.ISIS = &api.ISISConfig{Level: api.ISISLevel1, SystemID: "0000.0000.0001", Area: "49.0001"}
	daemons = frrDaemons(r)
	assert.Contains(t, daemons, "ospfd=no\n")
	assert.Contains(t, daemons, "isisd=yes\n")
}

func TestContainerName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "triangle-r1", ContainerName("triangle", "r1"))
	assert.True(t, strings.HasPrefix(ContainerName("lab", "edge"), "lab-"))
}
