// Package graph builds the node/link model of people, teams, projects and
// decisions, and filters it for display.
package graph

import (
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// Node is one rendered entity. Record carries the backing row.
type Node struct {
	ID     string            `json:"id"`
	Type   models.EntityType `json:"type"`
	Label  string            `json:"label"`
	Record any               `json:"record,omitempty"`
}

// Link is a directed edge between two nodes. Implicit links are synthesised
// from foreign keys; explicit ones come from the relationships table.
type Link struct {
	Source         string                  `json:"source"`
	Target         string                  `json:"target"`
	Type           models.RelationshipType `json:"type"`
	RelationshipID string                  `json:"relationship_id,omitempty"`
}

// Explicit reports whether l was read from the relationships table.
func (l Link) Explicit() bool {
	return l.RelationshipID != ""
}

// Graph is an immutable node/link list with an id index.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`

	index map[string]int
}

// Node returns the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Has reports whether id is in the node set.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// Build turns a snapshot into a graph. Implicit links:
//
//	person   -> team     member_of
//	team     -> parent   member_of
//	project  -> owner    owns
//	project  -> team     member_of
//	decision -> creator  owns
//	decision -> project  relates_to
//
// Explicit relationship rows follow, typed verbatim. Links whose source or
// target is not a node are dropped without error.
func Build(s *store.Snapshot) *Graph {
	b := newBuilder(len(s.Persons) + len(s.Teams) + len(s.Projects) + len(s.Decisions))

	for i := range s.Persons {
		p := &s.Persons[i]
		b.addNode(Node{ID: p.ID, Type: models.EntityPerson, Label: p.Name, Record: p})
	}
	for i := range s.Teams {
		t := &s.Teams[i]
		b.addNode(Node{ID: t.ID, Type: models.EntityTeam, Label: t.Name, Record: t})
	}
	for i := range s.Projects {
		p := &s.Projects[i]
		b.addNode(Node{ID: p.ID, Type: models.EntityProject, Label: p.Name, Record: p})
	}
	for i := range s.Decisions {
		d := &s.Decisions[i]
		b.addNode(Node{ID: d.ID, Type: models.EntityDecision, Label: d.Title, Record: d})
	}

	for _, p := range s.Persons {
		b.addImplicit(p.ID, p.TeamID, models.RelMemberOf)
	}
	for _, t := range s.Teams {
		b.addImplicit(t.ID, t.ParentTeamID, models.RelMemberOf)
	}
	for _, p := range s.Projects {
		b.addImplicit(p.ID, p.OwnerID, models.RelOwns)
		b.addImplicit(p.ID, p.TeamID, models.RelMemberOf)
	}
	for _, d := range s.Decisions {
		b.addImplicit(d.ID, d.CreatedBy, models.RelOwns)
		b.addImplicit(d.ID, d.ProjectID, models.RelRelatesTo)
	}

	for _, r := range s.Relationships {
		b.addLink(Link{Source: r.SourceID, Target: r.TargetID, Type: r.RelationshipType, RelationshipID: r.ID})
	}

	return b.graph()
}

type builder struct {
	g *Graph
}

func newBuilder(capacity int) *builder {
	return &builder{g: &Graph{
		Nodes: make([]Node, 0, capacity),
		Links: []Link{},
		index: make(map[string]int, capacity),
	}}
}

// addNode keeps the first node seen for an id.
func (b *builder) addNode(n Node) {
	if _, dup := b.g.index[n.ID]; dup {
		return
	}
	b.g.index[n.ID] = len(b.g.Nodes)
	b.g.Nodes = append(b.g.Nodes, n)
}

func (b *builder) addImplicit(source string, target *string, typ models.RelationshipType) {
	if target == nil || *target == "" {
		return
	}
	b.addLink(Link{Source: source, Target: *target, Type: typ})
}

func (b *builder) addLink(l Link) {
	if !b.g.Has(l.Source) || !b.g.Has(l.Target) {
		return
	}
	b.g.Links = append(b.g.Links, l)
}

func (b *builder) graph() *Graph {
	return b.g
}
