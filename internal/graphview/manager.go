// Package graphview hosts interactive graph views server side: each session
// owns a filtered graph, a force simulation and a pointer controller.
package graphview

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/changefeed"
	"github.com/starford/alignos/internal/graph"
	"github.com/starford/alignos/internal/interaction"
	"github.com/starford/alignos/internal/layout"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/render"
	"github.com/starford/alignos/internal/store"
)

// Fetcher loads the rows the graph is built from.
type Fetcher interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
}

// RelationshipCreator persists a connection made in the view.
type RelationshipCreator interface {
	CreateRelationship(ctx context.Context, r *models.Relationship) error
}

// Gauge reports the live session count.
type Gauge interface {
	Set(float64)
}

// Config holds view defaults.
type Config struct {
	Width    float64
	Height   float64
	TTL      time.Duration
	MaxTicks int
}

const (
	defaultWidth    = 800
	defaultHeight   = 600
	defaultTTL      = 30 * time.Minute
	defaultMaxTicks = 500
)

// Manager owns all live sessions.
type Manager struct {
	fetch Fetcher
	rels  RelationshipCreator
	cfg   Config
	gauge Gauge
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	seq      uint64
}

// NewManager creates a manager. rels may be nil, in which case connections
// are rejected.
func NewManager(fetch Fetcher, rels RelationshipCreator, cfg Config) *Manager {
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = defaultMaxTicks
	}
	return &Manager{
		fetch:    fetch,
		rels:     rels,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// SetGauge installs a session-count gauge.
func (m *Manager) SetGauge(g Gauge) {
	m.gauge = g
}

// Frame is what view endpoints return.
type Frame struct {
	Info     Info         `json:"session"`
	Selected string       `json:"selected,omitempty"`
	Dragging string       `json:"dragging,omitempty"`
	Error    string       `json:"error,omitempty"`
	Scene    render.Scene `json:"scene"`
}

// Create fetches the graph and opens a session showing the nodes matching
// query and typ. Zero width or height take the configured defaults.
func (m *Manager) Create(ctx context.Context, query, typ string, width, height float64) (*Frame, error) {
	full, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		width = m.cfg.Width
	}
	if height <= 0 {
		height = m.cfg.Height
	}

	m.mu.Lock()
	m.seq++
	seed := m.seq
	m.mu.Unlock()

	s := &Session{
		ID:     uuid.NewString(),
		query:  query,
		typ:    typ,
		width:  width,
		height: height,
		full:   full,
	}
	s.mu.Lock()
	s.rebuild(seed)
	s.touch(m.now())
	f := s.frame()
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.report(n)

	slog.Info("graphview: session created",
		slog.String("id", s.ID), slog.Int("nodes", f.Info.Nodes), slog.Int("links", f.Info.Links))
	return f, nil
}

// Get returns the current frame of a session.
func (m *Manager) Get(ctx context.Context, id string) (*Frame, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.frame(), nil
}

// Filter re-filters the in-memory graph and restarts the simulation.
func (m *Manager) Filter(ctx context.Context, id, query, typ string) (*Frame, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.query, s.typ = query, typ
	s.rebuild(m.nextSeed())
	return s.frame(), nil
}

// Tick advances the simulation by up to n steps, bounded by MaxTicks.
func (m *Manager) Tick(ctx context.Context, id string, n int) (*Frame, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.sim.Tick(m.boundTicks(n))
	return s.frame(), nil
}

// Relayout resets the simulation to full energy and advances it by up to n
// steps. Pinned nodes stay where they are.
func (m *Manager) Relayout(ctx context.Context, id string, n int) (*Frame, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	s.sim.Restart()
	s.sim.Tick(m.boundTicks(n))
	return s.frame(), nil
}

func (m *Manager) boundTicks(n int) int {
	if n <= 0 {
		return 1
	}
	return min(n, m.cfg.MaxTicks)
}

// PointerKind names a pointer event.
type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerCancel PointerKind = "cancel"
	PointerHover  PointerKind = "hover"
	PointerWheel  PointerKind = "wheel"
	PointerZoom   PointerKind = "zoom"
	DoubleClick   PointerKind = "dblclick"
)

// PointerEvent is a pointer event in screen coordinates. Delta is the wheel
// delta; Scale is the absolute zoom factor of a zoom event.
type PointerEvent struct {
	Kind  PointerKind `json:"kind"`
	X     float64     `json:"x"`
	Y     float64     `json:"y"`
	Shift bool        `json:"shift"`
	Delta float64     `json:"delta"`
	Scale float64     `json:"scale"`
}

// Pointer feeds one event to the session's controller. A completed
// shift-drag persists a relates_to relationship and refetches the graph.
// Persistence failures are reported in Frame.Error; the view is left as is.
func (m *Manager) Pointer(ctx context.Context, id string, ev PointerEvent) (*Frame, error) {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	p := layout.Point{X: ev.X, Y: ev.Y}
	switch ev.Kind {
	case PointerDown:
		s.ctl.PointerDown(p, ev.Shift)
	case PointerMove:
		s.ctl.PointerMove(p)
	case PointerUp:
		s.ctl.PointerUp(p)
	case PointerCancel:
		s.ctl.Cancel()
	case PointerHover:
		s.ctl.Hover(p)
	case PointerWheel:
		s.ctl.Wheel(p, ev.Delta)
	case PointerZoom:
		if ev.Scale <= 0 {
			return nil, fmt.Errorf("graphview: zoom scale must be positive: %w", apperr.ErrValidation)
		}
		s.ctl.ZoomTo(p, ev.Scale)
	case DoubleClick:
		s.ctl.DoubleClick()
	default:
		return nil, fmt.Errorf("graphview: unknown pointer kind %q: %w", ev.Kind, apperr.ErrValidation)
	}

	s.lastErr = ""
	connected := false
	for _, c := range s.takeConnects() {
		if err := m.connect(ctx, s, c); err != nil {
			slog.Error("graphview: connect failed",
				slog.String("session", s.ID), slog.String("error", err.Error()))
			s.lastErr = "failed to create relationship"
			continue
		}
		connected = true
	}
	if connected || (s.stale.Load() && s.ctl.State() == interaction.Idle) {
		if err := m.refresh(ctx, s); err != nil {
			return nil, err
		}
	}
	return s.frame(), nil
}

// Render writes the current frame as "svg" or "png".
func (m *Manager) Render(ctx context.Context, id, format string, w io.Writer) error {
	s, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	sc := s.scene()
	s.mu.Unlock()

	switch format {
	case "svg":
		return render.SVG(w, sc)
	case "png":
		return render.PNG(w, sc)
	}
	return fmt.Errorf("graphview: unsupported format %q: %w", format, apperr.ErrValidation)
}

// Delete closes a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("graphview: session %s: %w", id, apperr.ErrNotFound)
	}
	m.report(n)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// HandleChange implements changefeed.Consumer. Graph-table changes mark every
// session stale; they refetch on next access.
func (m *Manager) HandleChange(c changefeed.Change) {
	switch c.Table {
	case store.TablePersons, store.TableTeams, store.TableProjects, store.TableDecisions, store.TableRelationships:
	default:
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.stale.Store(true)
	}
}

// Sweep drops sessions idle longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	now := m.now()

	m.mu.Lock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.Unlock()

	removed := 0
	for _, s := range candidates {
		if s.idleSince(now) <= m.cfg.TTL {
			continue
		}
		m.mu.Lock()
		if _, ok := m.sessions[s.ID]; ok {
			delete(m.sessions, s.ID)
			removed++
		}
		m.mu.Unlock()
	}
	if removed > 0 {
		m.report(m.Len())
		slog.Info("graphview: expired sessions", slog.Int("count", removed))
	}
	return removed
}

// Run sweeps expired sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.cfg.TTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// acquire returns a locked, fresh session. Callers must unlock s.mu.
func (m *Manager) acquire(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("graphview: session %s: %w", id, apperr.ErrNotFound)
	}

	s.mu.Lock()
	s.touch(m.now())
	// A rebuild resets the controller, so it waits for the current gesture
	// to finish.
	if s.stale.Load() && s.ctl.State() == interaction.Idle {
		if err := m.refresh(ctx, s); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	return s, nil
}

// refresh refetches the graph and rebuilds the session. Must hold s.mu.
func (m *Manager) refresh(ctx context.Context, s *Session) error {
	s.stale.Store(false)
	full, err := m.load(ctx)
	if err != nil {
		s.stale.Store(true)
		return err
	}
	s.full = full
	s.rebuild(m.nextSeed())
	return nil
}

func (m *Manager) connect(ctx context.Context, s *Session, c connectRequest) error {
	if m.rels == nil {
		return fmt.Errorf("graphview: connect: %w", apperr.ErrNotConfigured)
	}
	src, okS := s.full.Node(c.source)
	dst, okT := s.full.Node(c.target)
	if !okS || !okT {
		return fmt.Errorf("graphview: connect %s -> %s: %w", c.source, c.target, apperr.ErrNotFound)
	}
	return m.rels.CreateRelationship(ctx, &models.Relationship{
		SourceType:       src.Type,
		SourceID:         src.ID,
		TargetType:       dst.Type,
		TargetID:         dst.ID,
		RelationshipType: models.RelRelatesTo,
	})
}

func (m *Manager) load(ctx context.Context) (*graph.Graph, error) {
	snap, err := m.fetch.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("graphview: fetch: %w", err)
	}
	return graph.Build(snap), nil
}

func (m *Manager) nextSeed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

func (m *Manager) report(n int) {
	if m.gauge != nil {
		m.gauge.Set(float64(n))
	}
}

// frame snapshots the session. Must hold s.mu.
func (s *Session) frame() *Frame {
	return &Frame{
		Info:     s.info(),
		Selected: s.selected,
		Dragging: s.ctl.DraggedNode(),
		Error:    s.lastErr,
		Scene:    s.scene(),
	}
}
