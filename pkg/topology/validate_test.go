package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routelab/routelab/api"
)

func intPtr(v int) *int { return &v }

func validTopology() *api.Topology {
	return &api.Topology{
		Name: "pair",
		Routers: []api.Router{
			{
				Name:     "r1",
				RouterID: "1.1.1.1",
				OSPF:     &api.OSPFConfig{Area: "0.0.0.0"},
				Interfaces: []api.Interface{
					{Name: "eth0", Addr: "10.0.12.1/24"},
				},
			},
			{
				Name:     "r2",
				RouterID: "2.2.2.2",
				OSPF:     &api.OSPFConfig{Area: "0.0.0.0"},
				Interfaces: []api.Interface{
					{Name: "eth0", Addr: "10.0.12.2/24"},
				},
			},
		},
		Links: []api.Link{
			{
				Name: "r1r2",
				A:    api.Endpoint{Router: "r1", Interface: "eth0"},
				B:    api.Endpoint{Router: "r2", Interface: "eth0"},
			},
		},
	}
}

func TestValidateAcceptsWellFormedTopology(t *testing.T) {
	t.Parallel()

	errs := Validate(validTopology())
	assert.Empty(t, errs)
}

func TestValidateFindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*api.Topology)
		want   string
	}{
		{
			name:   "missing topology name",
			mutate: func(topo *api.Topology) { topo.Name = "" },
			want:   "topology name is required",
		},
		{
			name:   "duplicate router name",
			mutate: func(topo *api.Topology) { topo.Routers[1].Name = "r1" },
			want:   "duplicate router name",
		},
		{
			name:   "duplicate router id",
			mutate: func(topo *api.Topology) { topo.Routers[1].RouterID = "1.1.1.1" },
			want:   "already used by router r1",
		},
		{
			name:   "router id not dotted quad",
			mutate: func(topo *api.Topology) { topo.Routers[0].RouterID = "banana" },
			want:   "not an IPv4 dotted quad",
		},
		{
			name:   "no routing protocol",
			mutate: func(topo *api.Topology) { topo.Routers[0].OSPF = nil },
			want:   "enables neither ospf nor isis",
		},
		{
			name:   "bad cidr",
			mutate: func(topo *api.Topology) { topo.Routers[0].Interfaces[0].Addr = "10.0.12.1" },
			want:   "not valid CIDR notation",
		},
		{
			name:   "mtu below frr minimum",
			mutate: func(topo *api.Topology) { topo.Routers[0].Interfaces[0].MTU = 100 },
			want:   "mtu 100 outside",
		},
		{
			name:   "mtu above frr maximum",
			mutate: func(topo *api.Topology) { topo.Routers[0].Interfaces[0].MTU = 65000 },
			want:   "mtu 65000 outside",
		},
		{
			name:   "ospf priority out of range",
			mutate: func(topo *api.Topology) { topo.Routers[0].Interfaces[0].OSPFPriority = intPtr(300) },
			want:   "ospf priority 300 outside",
		},
		{
			name:   "self link",
			mutate: func(topo *api.Topology) { topo.Links[0].B.Router = "r1" },
			want:   "endpoints must be on different routers",
		},
		{
			name:   "unknown endpoint router",
			mutate: func(topo *api.Topology) { topo.Links[0].B.Router = "r9" },
			want:   `unknown router "r9"`,
		},
		{
			name:   "unknown endpoint interface",
			mutate: func(topo *api.Topology) { topo.Links[0].B.Interface = "eth9" },
			want:   `unknown interface "eth9"`,
		},
		{
			name:   "endpoint subnet mismatch",
			mutate: func(topo *api.Topology) { topo.Routers[1].Interfaces[0].Addr = "10.0.99.2/24" },
			want:   "endpoint subnets differ",
		},
		{
			name:   "bad link kind",
			mutate: func(topo *api.Topology) { topo.Links[0].Kind = "bus" },
			want:   `invalid link kind "bus"`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			topo := validTopology()
			tt.mutate(topo)
			errs := Validate(topo)
			require.NotEmpty(t, errs)
			assert.Contains(t, Errors(errs).Error(), tt.want)
		})
	}
}

func TestValidatePriorityZeroIsLegal(t *testing.T) {
	t.Parallel()

	topo := validTopology()
	topo.Routers[0].Interfaces[0].OSPFPriority = intPtr(0)
	assert.Empty(t, Validate(topo))
}

func TestValidateISIS(t *testing.T) {
	t.Parallel()

	isisRouter := func(sysID, level, area string) *api.Topology {
		topo := validTopology()
		topo.Routers[0].OSPF = nil
		topo.Routers[0].ISIS = &api.ISISConfig{Level: level, SystemID: sysID, Area: area}
		return topo
	}

	t.Run("well formed", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Validate(isisRouter("0000.0000.0001", api.ISISLevel2, "49.0001")))
	})

	t.Run("bad system-id", func(t *testing.T) {
		t.Parallel()
		errs := Validate(isisRouter("abcd-0000-0001", api.ISISLevel2, "49.0001"))
		require.NotEmpty(t, errs)
		assert.Contains(t, Errors(errs).Error(), "not of the form")
	})

	t.Run("bad level", func(t *testing.T) {
		t.Parallel()
		errs := Validate(isisRouter("0000.0000.0001", "level-3", "49.0001"))
		require.NotEmpty(t, errs)
		assert.Contains(t, Errors(errs).Error(), `invalid isis level "level-3"`)
	})

	t.Run("missing area", func(t *testing.T) {
		t.Parallel()
		errs := Validate(isisRouter("0000.0000.0001", api.ISISLevel2, ""))
		require.NotEmpty(t, errs)
		assert.Contains(t, Errors(errs).Error(), "isis area is required")
	})
}

func TestValidationErrorAttribution(t *testing.T) {
	t.Parallel()

	e := ValidationError{Router: "r1", Iface: "eth0", Msg: "boom"}
	assert.Equal(t, "router r1, interface eth0: boom", e.Error())
}
