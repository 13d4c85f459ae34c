package neighbor

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ParseOSPF parses `show ip ospf neighbor json` output. The neighbor
// map is keyed by peer router-id with a list of per-interface entries,
// so the document is walked with gjson rather than a fixed struct.
func ParseOSPF(router string, data []byte, observedAt time.Time) ([]Observation, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("ospf neighbor output from %s is not valid JSON", router)
	}

	var obs []Observation
	gjson.GetBytes(data, "neighbors").ForEach(func(peerID, entries gjson.Result) bool {
		entries.ForEach(func(_, entry gjson.Result) bool {
			state, role := splitNbrState(entry.Get("nbrState").String())
			if state == "" {
				state, role = splitNbrState(entry.Get("state").String())
			}
			iface := entry.Get("ifaceName").String()
			// FRR reports "eth0:10.1.12.1"; keep the device name.
			if idx := strings.IndexByte(iface, ':'); idx >= 0 {
				iface = iface[:idx]
			}
			obs = append(obs, Observation{
				Router:     router,
				Protocol:   ProtocolOSPF,
				PeerID:     peerID.String(),
				State:      state,
				Role:       role,
				Iface:      iface,
				Address:    entry.Get("address").String(),
				Priority:   int(entry.Get("priority").Int()),
				ObservedAt: observedAt,
			})
			return true
		})
		return true
	})
	return obs, nil
}

// splitNbrState splits FRR's combined "Full/DR" state into state and
// role. Point-to-point neighbors report "Full/-".
func splitNbrState(s string) (state, role string) {
	state, role, found := strings.Cut(s, "/")
	if !found {
		return s, ""
	}
	if role == "-" {
		role = ""
	}
	return state, role
}
