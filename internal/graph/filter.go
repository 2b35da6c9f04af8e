package graph

import "strings"

// TypeAll disables the entity-type filter.
const TypeAll = "all"

// Filter returns the subgraph whose node labels contain query
// (case-insensitive) and whose type matches typ ("all" or "" for any).
// A link survives only when both endpoints survive. g is not modified.
func Filter(g *Graph, query, typ string) *Graph {
	q := strings.ToLower(query)
	b := newBuilder(len(g.Nodes))

	for _, n := range g.Nodes {
		if !strings.Contains(strings.ToLower(n.Label), q) {
			continue
		}
		if typ != "" && typ != TypeAll && string(n.Type) != typ {
			continue
		}
		b.addNode(n)
	}
	for _, l := range g.Links {
		b.addLink(l)
	}
	return b.graph()
}
