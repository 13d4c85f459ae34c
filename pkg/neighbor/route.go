package neighbor

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseRoutes parses `show ip route json` output. The document is a
// map keyed by prefix, each holding a list of candidate entries.
func ParseRoutes(router string, data []byte) ([]Route, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("route output from %s is not valid JSON", router)
	}

	var routes []Route
	gjson.ParseBytes(data).ForEach(func(prefix, entries gjson.Result) bool {
		entries.ForEach(func(_, entry gjson.Result) bool {
			routes = append(routes, Route{
				Router:   router,
				Prefix:   prefix.String(),
				Protocol: entry.Get("protocol").String(),
				Selected: entry.Get("selected").Bool(),
			})
			return true
		})
		return true
	})
	return routes, nil
}
