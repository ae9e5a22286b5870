// Package topology holds the zone graph: zone metadata plus the adjacency
// relation. The graph is built once at configuration load, validated, and
// read-only for the rest of the deployment lifecycle (reloadable on
// administrative change).
package topology

import (
	"sort"

	"github.com/gridpulse/gridpulse/pkg/types"
)

// Graph is an adjacency list keyed by zone id. Zones and edges are stored as
// ids, never as object pointers, so propagation rounds stay simple and the
// cyclic neighbor relation carries no ownership.
type Graph struct {
	zones     map[string]types.Zone
	neighbors map[string][]string
	order     []string // zone ids, sorted, for deterministic iteration
}

// New builds and validates a Graph. Validation failures are ConfigErrors:
// an edge referencing an unknown zone, a duplicate zone id, or an asymmetric
// adjacency (an edge with no reverse edge) must stop the pipeline from
// starting.
func New(zones []types.Zone, edges []types.AdjacencyEdge) (*Graph, error) {
	g := &Graph{
		zones:     make(map[string]types.Zone, len(zones)),
		neighbors: make(map[string][]string, len(zones)),
	}

	for _, z := range zones {
		if z.ID == "" {
			return nil, types.NewConfigError("zones", "zone with empty id")
		}
		if _, dup := g.zones[z.ID]; dup {
			return nil, types.NewConfigError("zones", "duplicate zone id %q", z.ID)
		}
		if z.GridPriority < 1 {
			return nil, types.NewConfigError("zones", "zone %q: gridPriority must be >= 1", z.ID)
		}
		g.zones[z.ID] = z
		g.order = append(g.order, z.ID)
	}
	sort.Strings(g.order)

	type pair struct{ from, to string }
	seen := make(map[pair]bool, len(edges))
	for _, e := range edges {
		if _, ok := g.zones[e.From]; !ok {
			return nil, types.NewConfigError("adjacency", "edge references unknown zone %q", e.From)
		}
		if _, ok := g.zones[e.To]; !ok {
			return nil, types.NewConfigError("adjacency", "edge references unknown zone %q", e.To)
		}
		if e.From == e.To {
			return nil, types.NewConfigError("adjacency", "self-edge on zone %q", e.From)
		}
		if seen[pair{e.From, e.To}] {
			continue
		}
		seen[pair{e.From, e.To}] = true
		g.neighbors[e.From] = append(g.neighbors[e.From], e.To)
	}

	// Adjacency must be symmetric: every edge has a reverse edge.
	for p := range seen {
		if !seen[pair{p.to, p.from}] {
			return nil, types.NewConfigError("adjacency",
				"asymmetric edge %s -> %s: reverse edge missing", p.from, p.to)
		}
	}

	for id := range g.neighbors {
		sort.Strings(g.neighbors[id])
	}

	return g, nil
}

// Zone returns the zone for an id.
func (g *Graph) Zone(id string) (types.Zone, bool) {
	z, ok := g.zones[id]
	return z, ok
}

// Zones returns all zones in deterministic (sorted id) order.
func (g *Graph) Zones() []types.Zone {
	out := make([]types.Zone, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.zones[id])
	}
	return out
}

// ZoneIDs returns the sorted zone ids.
func (g *Graph) ZoneIDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Neighbors returns the neighbor ids of a zone (sorted, possibly empty).
func (g *Graph) Neighbors(id string) []string {
	return g.neighbors[id]
}

// Len returns the number of zones.
func (g *Graph) Len() int { return len(g.order) }
