// Package interaction implements the pointer state machine of the graph view:
// panning, zooming, dragging nodes and shift-dragging to connect two nodes.
package interaction

import (
	"math"

	"github.com/starford/alignos/internal/layout"
)

// State is the pointer mode.
type State int

const (
	Idle State = iota
	Panning
	DraggingNode
	ConnectingNodes
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case DraggingNode:
		return "dragging_node"
	case ConnectingNodes:
		return "connecting_nodes"
	}
	return "unknown"
}

const (
	MinZoom = 0.1
	MaxZoom = 4.0

	// DragAlphaTarget keeps the simulation warm while a node is dragged.
	DragAlphaTarget = 0.3

	// clickSlop is how far (screen px) a press may travel and still count as a click.
	clickSlop = 3.0
)

// Transform maps layout space to screen space: screen = world*K + (X, Y).
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Identity is the untransformed view.
var Identity = Transform{K: 1}

// Apply maps a layout point to the screen.
func (t Transform) Apply(p layout.Point) layout.Point {
	return layout.Point{X: p.X*t.K + t.X, Y: p.Y*t.K + t.Y}
}

// Invert maps a screen point to layout space.
func (t Transform) Invert(p layout.Point) layout.Point {
	return layout.Point{X: (p.X - t.X) / t.K, Y: (p.Y - t.Y) / t.K}
}

// Simulator is the part of the force layout the controller drives.
type Simulator interface {
	Pin(id string, x, y float64) bool
	Unpin(id string)
	Reheat(alphaTarget float64)
}

// Locator returns the node whose hit radius contains p (layout space).
type Locator func(p layout.Point) (string, bool)

// Callbacks are invoked synchronously from pointer handlers.
type Callbacks struct {
	Connect func(sourceID, targetID string)
	Select  func(id string)
}

// Guide is the temporary line drawn while connecting.
type Guide struct {
	From string       `json:"from"`
	To   layout.Point `json:"to"`
}

// Controller is not safe for concurrent use.
type Controller struct {
	sim    Simulator
	locate Locator
	cb     Callbacks

	state   State
	view    Transform
	initial Transform

	origin   string
	pressAt  layout.Point
	last     layout.Point
	moved    bool
	guide    *Guide
	hovered  string
	selected string
}

// New returns an idle controller with the given initial view.
func New(sim Simulator, locate Locator, initial Transform, cb Callbacks) *Controller {
	if initial.K == 0 {
		initial.K = 1
	}
	return &Controller{
		sim:     sim,
		locate:  locate,
		cb:      cb,
		view:    initial,
		initial: initial,
	}
}

// SetTargets swaps the simulation and locator, e.g. after a refetch. Any
// gesture in progress is abandoned.
func (c *Controller) SetTargets(sim Simulator, locate Locator) {
	c.sim = sim
	c.locate = locate
	c.reset()
}

func (c *Controller) State() State         { return c.state }
func (c *Controller) View() Transform      { return c.view }
func (c *Controller) Hovered() string      { return c.hovered }
func (c *Controller) Selected() string     { return c.selected }
func (c *Controller) DraggedNode() string  { return c.dragging() }
func (c *Controller) ConnectGuide() *Guide { return c.guide }

func (c *Controller) dragging() string {
	if c.state == DraggingNode {
		return c.origin
	}
	return ""
}

// PointerDown starts a gesture at screen point p.
func (c *Controller) PointerDown(p layout.Point, shift bool) {
	if c.state != Idle {
		return
	}
	world := c.view.Invert(p)
	c.pressAt, c.last, c.moved = p, p, false

	id, onNode := c.locate(world)
	switch {
	case !onNode:
		c.state = Panning
	case shift:
		c.state = ConnectingNodes
		c.origin = id
		c.guide = &Guide{From: id, To: world}
	default:
		c.state = DraggingNode
		c.origin = id
		c.sim.Pin(id, world.X, world.Y)
		c.sim.Reheat(DragAlphaTarget)
	}
}

// PointerMove continues the current gesture, or updates hover when idle.
func (c *Controller) PointerMove(p layout.Point) {
	if math.Hypot(p.X-c.pressAt.X, p.Y-c.pressAt.Y) > clickSlop {
		c.moved = true
	}
	world := c.view.Invert(p)

	switch c.state {
	case Idle:
		c.Hover(p)
	case Panning:
		c.view.X += p.X - c.last.X
		c.view.Y += p.Y - c.last.Y
	case DraggingNode:
		c.sim.Pin(c.origin, world.X, world.Y)
	case ConnectingNodes:
		c.guide.To = world
	}
	c.last = p
}

// PointerUp ends the current gesture and returns to Idle.
func (c *Controller) PointerUp(p layout.Point) {
	world := c.view.Invert(p)

	switch c.state {
	case Panning:
		c.view.X += p.X - c.last.X
		c.view.Y += p.Y - c.last.Y
	case DraggingNode:
		c.sim.Unpin(c.origin)
		c.sim.Reheat(0)
		if !c.moved {
			c.selected = c.origin
			if c.cb.Select != nil {
				c.cb.Select(c.origin)
			}
		}
	case ConnectingNodes:
		if target, ok := c.locate(world); ok && target != c.origin && c.cb.Connect != nil {
			c.cb.Connect(c.origin, target)
		}
	}
	c.reset()
}

// Cancel abandons any gesture without side effects other than unpinning.
func (c *Controller) Cancel() {
	if c.state == DraggingNode {
		c.sim.Unpin(c.origin)
		c.sim.Reheat(0)
	}
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.origin = ""
	c.guide = nil
	c.moved = false
}

// Hover records the node under screen point p.
func (c *Controller) Hover(p layout.Point) {
	id, ok := c.locate(c.view.Invert(p))
	if !ok {
		id = ""
	}
	c.hovered = id
}

// Wheel zooms about screen point p. Positive delta zooms out, matching
// browser wheel events; the scale is clamped to [MinZoom, MaxZoom].
func (c *Controller) Wheel(p layout.Point, delta float64) {
	k := clamp(c.view.K*math.Pow(2, -delta*0.002), MinZoom, MaxZoom)
	world := c.view.Invert(p)
	c.view = Transform{X: p.X - world.X*k, Y: p.Y - world.Y*k, K: k}
}

// ZoomTo sets the scale about screen point p.
func (c *Controller) ZoomTo(p layout.Point, k float64) {
	k = clamp(k, MinZoom, MaxZoom)
	world := c.view.Invert(p)
	c.view = Transform{X: p.X - world.X*k, Y: p.Y - world.Y*k, K: k}
}

// DoubleClick restores the initial view from any state.
func (c *Controller) DoubleClick() {
	c.view = c.initial
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
