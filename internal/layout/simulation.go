// Package layout runs a d3-style force simulation over graph nodes.
package layout

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// Node is a simulated body.
type Node struct {
	ID string
}

// Link is a spring between two node ids.
type Link struct {
	Source string
	Target string
}

// Point is a position in layout space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options tunes the simulation. Zero fields take the defaults below.
type Options struct {
	LinkDistance    float64
	LinkStrength    float64
	Charge          float64
	Theta           float64
	CollideRadius   float64
	AlphaMin        float64
	AlphaDecay      float64
	VelocityDecay   float64
	EnergyThreshold float64
	Seed            uint64
	// Initial seeds positions by node id; unknown ids use the spiral.
	Initial map[string]Point
}

const (
	defaultLinkDistance    = 100
	defaultLinkStrength    = 0.5
	defaultCharge          = -300
	defaultTheta           = 0.9
	defaultCollideRadius   = 40
	defaultAlphaMin        = 0.001
	defaultVelocityDecay   = 0.4
	defaultEnergyThreshold = 0.01

	initialRadius = 10
	jitter        = 1.0
)

var initialAngle = math.Pi * (3 - math.Sqrt(5))

func (o Options) withDefaults() Options {
	if o.LinkDistance == 0 {
		o.LinkDistance = defaultLinkDistance
	}
	if o.LinkStrength == 0 {
		o.LinkStrength = defaultLinkStrength
	}
	if o.Charge == 0 {
		o.Charge = defaultCharge
	}
	if o.Theta == 0 {
		o.Theta = defaultTheta
	}
	if o.CollideRadius == 0 {
		o.CollideRadius = defaultCollideRadius
	}
	if o.AlphaMin == 0 {
		o.AlphaMin = defaultAlphaMin
	}
	if o.AlphaDecay == 0 {
		o.AlphaDecay = 1 - math.Pow(o.AlphaMin, 1.0/300)
	}
	if o.VelocityDecay == 0 {
		o.VelocityDecay = defaultVelocityDecay
	}
	if o.EnergyThreshold == 0 {
		o.EnergyThreshold = defaultEnergyThreshold
	}
	return o
}

type body struct {
	id     string
	x, y   float64
	vx, vy float64
	fixed  bool
	fx, fy float64
	degree int
}

func (b *body) Coord2() r2.Vec { return r2.Vec{X: b.x, Y: b.y} }
func (b *body) Mass() float64  { return 1 }

type spring struct {
	source, target *body
	bias           float64
}

// Simulation is not safe for concurrent use.
type Simulation struct {
	opts          Options
	width, height float64

	bodies []*body
	byID   map[string]*body
	links  []spring

	alpha       float64
	alphaTarget float64
	running     bool
	ticks       int
}

// NewSimulation places nodes on a phyllotaxis spiral around the centre of a
// width x height canvas and starts cooling from alpha 1. An empty node list
// yields a simulation that never runs. Links with unknown endpoints are ignored.
func NewSimulation(nodes []Node, links []Link, width, height float64, opts Options) *Simulation {
	o := opts.withDefaults()
	s := &Simulation{
		opts:   o,
		width:  width,
		height: height,
		byID:   make(map[string]*body, len(nodes)),
		alpha:  1,
	}

	rng := rand.New(rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15))
	cx, cy := width/2, height/2
	for i, n := range nodes {
		if _, dup := s.byID[n.ID]; dup {
			continue
		}
		b := &body{id: n.ID}
		if p, ok := o.Initial[n.ID]; ok {
			b.x, b.y = p.X, p.Y
		} else {
			r := initialRadius * math.Sqrt(0.5+float64(i))
			a := float64(i) * initialAngle
			b.x = cx + r*math.Cos(a) + (rng.Float64()*2-1)*jitter
			b.y = cy + r*math.Sin(a) + (rng.Float64()*2-1)*jitter
		}
		s.bodies = append(s.bodies, b)
		s.byID[n.ID] = b
	}

	for _, l := range links {
		src, okS := s.byID[l.Source]
		dst, okT := s.byID[l.Target]
		if !okS || !okT || src == dst {
			continue
		}
		src.degree++
		dst.degree++
		s.links = append(s.links, spring{source: src, target: dst})
	}
	for i := range s.links {
		l := &s.links[i]
		l.bias = float64(l.source.degree) / float64(l.source.degree+l.target.degree)
	}

	s.running = len(s.bodies) > 0
	return s
}

// Running reports whether the simulation is still moving.
func (s *Simulation) Running() bool { return s.running }

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// AlphaTarget returns the temperature alpha decays toward.
func (s *Simulation) AlphaTarget() float64 { return s.alphaTarget }

// Ticks returns the number of ticks run so far.
func (s *Simulation) Ticks() int { return s.ticks }

// Len returns the number of bodies.
func (s *Simulation) Len() int { return len(s.bodies) }

// Position returns the position of id.
func (s *Simulation) Position(id string) (Point, bool) {
	b, ok := s.byID[id]
	if !ok {
		return Point{}, false
	}
	return Point{X: b.x, Y: b.y}, true
}

// Positions returns a copy of every position.
func (s *Simulation) Positions() map[string]Point {
	out := make(map[string]Point, len(s.bodies))
	for _, b := range s.bodies {
		out[b.id] = Point{X: b.x, Y: b.y}
	}
	return out
}

// Pinned reports whether any body is fixed.
func (s *Simulation) Pinned() bool {
	for _, b := range s.bodies {
		if b.fixed {
			return true
		}
	}
	return false
}

// Pin fixes id at (x, y) until Unpin.
func (s *Simulation) Pin(id string, x, y float64) bool {
	b, ok := s.byID[id]
	if !ok {
		return false
	}
	b.fixed, b.fx, b.fy = true, x, y
	b.x, b.y = x, y
	b.vx, b.vy = 0, 0
	return true
}

// Unpin releases id.
func (s *Simulation) Unpin(id string) {
	if b, ok := s.byID[id]; ok {
		b.fixed = false
	}
}

// Reheat sets alphaTarget and restarts a non-empty simulation.
func (s *Simulation) Reheat(alphaTarget float64) {
	s.alphaTarget = alphaTarget
	if len(s.bodies) > 0 {
		s.running = true
	}
}

// Restart resets alpha to 1.
func (s *Simulation) Restart() {
	s.alpha = 1
	if len(s.bodies) > 0 {
		s.running = true
	}
}

// KineticEnergy is the mean of v^2/2 over all bodies.
func (s *Simulation) KineticEnergy() float64 {
	if len(s.bodies) == 0 {
		return 0
	}
	var e float64
	for _, b := range s.bodies {
		e += 0.5 * (b.vx*b.vx + b.vy*b.vy)
	}
	return e / float64(len(s.bodies))
}

// Tick advances up to n steps and returns how many ran.
func (s *Simulation) Tick(n int) int {
	ran := 0
	for ; ran < n && s.running; ran++ {
		s.step()
		s.ticks++
		s.running = !s.converged()
	}
	return ran
}

// converged holds when alpha is below alphaMin and the bodies have stopped
// moving. A simulation held warm by a positive alphaTarget never converges;
// one that has cooled two orders of magnitude past alphaMin always does.
func (s *Simulation) converged() bool {
	if s.alphaTarget >= s.opts.AlphaMin {
		return false
	}
	if s.alpha >= s.opts.AlphaMin {
		return false
	}
	return s.KineticEnergy() < s.opts.EnergyThreshold || s.alpha < s.opts.AlphaMin/100
}

func (s *Simulation) step() {
	s.alpha += (s.alphaTarget - s.alpha) * s.opts.AlphaDecay

	s.applyLinks()
	s.applyCharge()
	s.applyCollide()

	decay := 1 - s.opts.VelocityDecay
	for _, b := range s.bodies {
		if b.fixed {
			b.x, b.y = b.fx, b.fy
			b.vx, b.vy = 0, 0
			continue
		}
		b.vx *= decay
		b.vy *= decay
		b.x += b.vx
		b.y += b.vy
	}

	s.applyCenter()
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		dx := l.target.x + l.target.vx - l.source.x - l.source.vx
		dy := l.target.y + l.target.vy - l.source.y - l.source.vy
		if dx == 0 && dy == 0 {
			dx = 1e-6
		}
		d := math.Hypot(dx, dy)
		k := (d - s.opts.LinkDistance) / d * s.alpha * s.opts.LinkStrength
		dx *= k
		dy *= k
		l.target.vx -= dx * l.bias
		l.target.vy -= dy * l.bias
		l.source.vx += dx * (1 - l.bias)
		l.source.vy += dy * (1 - l.bias)
	}
}

func (s *Simulation) applyCharge() {
	if len(s.bodies) < 2 {
		return
	}
	particles := make([]barneshut.Particle2, len(s.bodies))
	for i, b := range s.bodies {
		particles[i] = b
	}
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		return
	}

	strength := s.opts.Charge * s.alpha
	force := func(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		d2 := v.X*v.X + v.Y*v.Y
		if d2 == 0 {
			return r2.Vec{}
		}
		if d2 < 1 {
			d2 = 1
		}
		return r2.Scale(strength*m2/d2, v)
	}
	for _, b := range s.bodies {
		f := plane.ForceOn(b, s.opts.Theta, force)
		b.vx += f.X
		b.vy += f.Y
	}
}

func (s *Simulation) applyCollide() {
	r := s.opts.CollideRadius
	minDist := 2 * r
	for i := 0; i < len(s.bodies); i++ {
		a := s.bodies[i]
		for j := i + 1; j < len(s.bodies); j++ {
			b := s.bodies[j]
			dx := (b.x + b.vx) - (a.x + a.vx)
			dy := (b.y + b.vy) - (a.y + a.vy)
			d2 := dx*dx + dy*dy
			if d2 >= minDist*minDist {
				continue
			}
			if d2 == 0 {
				dx, d2 = 1e-6, 1e-12
			}
			d := math.Sqrt(d2)
			k := (minDist - d) / d * 0.5
			a.vx -= dx * k
			a.vy -= dy * k
			b.vx += dx * k
			b.vy += dy * k
		}
	}
}

// applyCenter translates every free body so their mean sits at the centre.
func (s *Simulation) applyCenter() {
	var sx, sy float64
	var n int
	for _, b := range s.bodies {
		if b.fixed {
			continue
		}
		sx += b.x
		sy += b.y
		n++
	}
	if n == 0 {
		return
	}
	dx := sx/float64(n) - s.width/2
	dy := sy/float64(n) - s.height/2
	for _, b := range s.bodies {
		if b.fixed {
			continue
		}
		b.x -= dx
		b.y -= dy
	}
}
