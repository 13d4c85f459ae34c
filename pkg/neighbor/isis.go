package neighbor

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonISISDump is the top level of `show isis neighbor json`.
type jsonISISDump struct {
	Areas []jsonISISArea `json:"areas"`
}

type jsonISISArea struct {
	Area     string            `json:"area"`
	Circuits []jsonISISCircuit `json:"circuits"`
}

type jsonISISCircuit struct {
	Circuit   int                `json:"circuit"`
	Adj       string             `json:"adj"`
	Level     int                `json:"level"`
	Interface *jsonISISInterface `json:"interface"`
}

type jsonISISInterface struct {
	Name        string        `json:"name"`
	State       string        `json:"state"`
	CircuitType string        `json:"circuit-type"`
	IPv4Address *jsonISISIPv4 `json:"ipv4-address"`
}

type jsonISISIPv4 struct {
	IPv4 string `json:"ipv4"`
}

// ParseISIS parses `show isis neighbor json` output. Circuits with no
// adjacency carry no "adj" field and are skipped.
func ParseISIS(router string, data []byte, observedAt time.Time) ([]Observation, error) {
	var dump jsonISISDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("failed to unmarshal isis neighbor output from %s: %w", router, err)
	}

	var obs []Observation
	for _, area := range dump.Areas {
		for _, c := range area.Circuits {
			if c.Adj == "" || c.Interface == nil {
				continue
			}
			role := c.Interface.CircuitType
			if role == "" && c.Level > 0 {
				role = fmt.Sprintf("L%d", c.Level)
			}
			o := Observation{
				Router:     router,
				Protocol:   ProtocolISIS,
				PeerID:     c.Adj,
				State:      c.Interface.State,
				Role:       role,
				Iface:      c.Interface.Name,
				ObservedAt: observedAt,
			}
			if c.Interface.IPv4Address != nil {
				o.Address = c.Interface.IPv4Address.IPv4
			}
			obs = append(obs, o)
		}
	}
	return obs, nil
}
