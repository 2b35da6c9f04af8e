package graphview

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/alignos/internal/graph"
	"github.com/starford/alignos/internal/interaction"
	"github.com/starford/alignos/internal/layout"
	"github.com/starford/alignos/internal/render"
)

// Session is one client's view of the graph: the fetched model, the
// filtered subset, its simulation and pointer controller.
type Session struct {
	ID string

	mu       sync.Mutex
	query    string
	typ      string
	width    float64
	height   float64
	full     *graph.Graph
	visible  *graph.Graph
	analyzer *graph.Analyzer
	sim      *layout.Simulation
	ctl      *interaction.Controller
	lastUsed time.Time
	lastErr  string

	connects []connectRequest
	selected string

	stale atomic.Bool
}

type connectRequest struct {
	source, target string
}

// Info summarises a session.
type Info struct {
	ID      string  `json:"id"`
	Query   string  `json:"query"`
	Type    string  `json:"type"`
	Nodes   int     `json:"nodes"`
	Links   int     `json:"links"`
	Running bool    `json:"running"`
	Alpha   float64 `json:"alpha"`
}

func (s *Session) info() Info {
	return Info{
		ID:      s.ID,
		Query:   s.query,
		Type:    s.typ,
		Nodes:   s.visible.Len(),
		Links:   len(s.visible.Links),
		Running: s.sim.Running(),
		Alpha:   s.sim.Alpha(),
	}
}

// rebuild filters the full graph and starts a fresh simulation, seeding
// surviving nodes with their current positions. Must hold s.mu.
func (s *Session) rebuild(seed uint64) {
	var prev map[string]layout.Point
	if s.sim != nil {
		prev = s.sim.Positions()
	}

	s.visible = graph.Filter(s.full, s.query, s.typ)
	s.analyzer = graph.NewAnalyzer(s.visible)

	nodes := make([]layout.Node, len(s.visible.Nodes))
	for i, n := range s.visible.Nodes {
		nodes[i] = layout.Node{ID: n.ID}
	}
	links := make([]layout.Link, len(s.visible.Links))
	for i, l := range s.visible.Links {
		links[i] = layout.Link{Source: l.Source, Target: l.Target}
	}
	s.sim = layout.NewSimulation(nodes, links, s.width, s.height, layout.Options{Seed: seed, Initial: prev})

	if s.ctl == nil {
		s.ctl = interaction.New(s.sim, s.locate, interaction.Identity, interaction.Callbacks{
			Connect: func(src, dst string) {
				s.connects = append(s.connects, connectRequest{source: src, target: dst})
			},
			Select: func(id string) { s.selected = id },
		})
	} else {
		s.ctl.SetTargets(s.sim, s.locate)
	}
	if s.selected != "" && !s.visible.Has(s.selected) {
		s.selected = ""
	}
}

// locate finds the nearest visible node whose radius contains p.
func (s *Session) locate(p layout.Point) (string, bool) {
	best, bestDist := "", math.Inf(1)
	for _, n := range s.visible.Nodes {
		pos, ok := s.sim.Position(n.ID)
		if !ok {
			continue
		}
		d := math.Hypot(p.X-pos.X, p.Y-pos.Y)
		if d <= render.Radius(n.Type) && d < bestDist {
			best, bestDist = n.ID, d
		}
	}
	return best, best != ""
}

// scene snapshots the current frame. Must hold s.mu.
func (s *Session) scene() render.Scene {
	pos := s.sim.Positions()
	hovered := s.ctl.Hovered()

	focus := map[string]bool{}
	if hovered != "" {
		focus[hovered] = true
		for _, id := range s.analyzer.Neighbors(hovered) {
			focus[id] = true
		}
	}

	sc := render.Scene{
		Width:  int(s.width),
		Height: int(s.height),
		View:   s.ctl.View(),
		State:  s.ctl.State().String(),
		Nodes:  make([]render.SceneNode, 0, len(s.visible.Nodes)),
		Links:  make([]render.SceneLink, 0, len(s.visible.Links)),
	}
	for _, n := range s.visible.Nodes {
		p := pos[n.ID]
		sc.Nodes = append(sc.Nodes, render.SceneNode{
			ID:       n.ID,
			Type:     n.Type,
			Label:    n.Label,
			X:        p.X,
			Y:        p.Y,
			Selected: n.ID == s.selected,
			Hovered:  n.ID == hovered,
			Dimmed:   hovered != "" && !focus[n.ID],
		})
	}
	for _, l := range s.visible.Links {
		a, b := pos[l.Source], pos[l.Target]
		sc.Links = append(sc.Links, render.SceneLink{
			Source:      l.Source,
			Target:      l.Target,
			Type:        l.Type,
			X1:          a.X,
			Y1:          a.Y,
			X2:          b.X,
			Y2:          b.Y,
			Highlighted: hovered != "" && (l.Source == hovered || l.Target == hovered),
		})
	}
	if g := s.ctl.ConnectGuide(); g != nil {
		from := pos[g.From]
		sc.Guide = &render.GuideLine{X1: from.X, Y1: from.Y, X2: g.To.X, Y2: g.To.Y}
	}
	return sc
}

func (s *Session) touch(now time.Time) {
	s.lastUsed = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// takeConnects drains queued connections. Must hold s.mu.
func (s *Session) takeConnects() []connectRequest {
	out := s.connects
	s.connects = nil
	return out
}
