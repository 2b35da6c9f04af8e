package graph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/starford/alignos/internal/models"
)

// Analyzer answers structural questions about a Graph using gonum.
type Analyzer struct {
	g        *simple.DirectedGraph
	idToNode map[string]int64
	nodeToID map[int64]string
}

// NewAnalyzer indexes g. Self-loops and parallel links collapse to a single
// directed edge since they carry no structural information.
func NewAnalyzer(g *Graph) *Analyzer {
	dg := simple.NewDirectedGraph()
	idToNode := make(map[string]int64, len(g.Nodes))
	nodeToID := make(map[int64]string, len(g.Nodes))

	for _, n := range g.Nodes {
		gn := dg.NewNode()
		dg.AddNode(gn)
		idToNode[n.ID] = gn.ID()
		nodeToID[gn.ID()] = n.ID
	}
	for _, l := range g.Links {
		u, okU := idToNode[l.Source]
		v, okV := idToNode[l.Target]
		if !okU || !okV || u == v {
			continue
		}
		dg.SetEdge(dg.NewEdge(dg.Node(u), dg.Node(v)))
	}

	return &Analyzer{g: dg, idToNode: idToNode, nodeToID: nodeToID}
}

// Neighbors returns the ids linked to id in either direction, sorted.
func (a *Analyzer) Neighbors(id string) []string {
	nid, ok := a.idToNode[id]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	collect := func(it graph.Nodes) {
		for it.Next() {
			seen[a.nodeToID[it.Node().ID()]] = struct{}{}
		}
	}
	collect(a.g.From(nid))
	collect(a.g.To(nid))

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Ranked is a node id with a score.
type Ranked struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Summary summarises a graph.
type Summary struct {
	Nodes          int                       `json:"nodes"`
	Links          int                       `json:"links"`
	NodesByType    map[models.EntityType]int `json:"nodes_by_type"`
	LinksByType    map[string]int            `json:"links_by_type"`
	Components     int                       `json:"components"`
	Isolated       int                       `json:"isolated"`
	TopInfluencers []Ranked                  `json:"top_influencers"`
}

// Stats computes counts, connected components and the top n nodes by PageRank.
func Stats(g *Graph, top int) Summary {
	a := NewAnalyzer(g)
	s := Summary{
		Nodes:          len(g.Nodes),
		Links:          len(g.Links),
		NodesByType:    make(map[models.EntityType]int),
		LinksByType:    make(map[string]int),
		TopInfluencers: []Ranked{},
	}
	for _, n := range g.Nodes {
		s.NodesByType[n.Type]++
	}
	for _, l := range g.Links {
		s.LinksByType[string(l.Type)]++
	}
	if len(g.Nodes) == 0 {
		return s
	}

	components := topo.ConnectedComponents(graph.Undirect{G: a.g})
	s.Components = len(components)
	for _, c := range components {
		if len(c) == 1 {
			s.Isolated++
		}
	}

	rank := network.PageRankSparse(a.g, 0.85, 1e-6)
	ranked := make([]Ranked, 0, len(rank))
	for nid, score := range rank {
		id := a.nodeToID[nid]
		n, _ := g.Node(id)
		ranked = append(ranked, Ranked{ID: id, Label: n.Label, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		const eps = 1e-9
		if d := ranked[i].Score - ranked[j].Score; d > eps || d < -eps {
			return d > 0
		}
		return ranked[i].ID < ranked[j].ID
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	s.TopInfluencers = ranked
	return s
}
