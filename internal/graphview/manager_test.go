package graphview

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/changefeed"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/render"
	"github.com/starford/alignos/internal/store"
)

type fakeFetcher struct {
	mu    sync.Mutex
	snap  *store.Snapshot
	calls int
}

func (f *fakeFetcher) Snapshot(context.Context) (*store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	cp := *f.snap
	cp.Relationships = append([]models.Relationship(nil), f.snap.Relationships...)
	return &cp, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRels struct {
	fetch *fakeFetcher
	fail  bool
	got   []models.Relationship
}

func (r *fakeRels) CreateRelationship(_ context.Context, rel *models.Relationship) error {
	if r.fail {
		return errors.New("disk full")
	}
	rel.ID = "r-new"
	r.got = append(r.got, *rel)
	r.fetch.mu.Lock()
	r.fetch.snap.Relationships = append(r.fetch.snap.Relationships, *rel)
	r.fetch.mu.Unlock()
	return nil
}

func newTestManager(t *testing.T) (*Manager, *fakeFetcher, *fakeRels) {
	t.Helper()
	f := &fakeFetcher{snap: &store.Snapshot{
		Persons: []models.Person{
			{ID: "p1", Name: "Sarah Chen"},
			{ID: "p2", Name: "Marcus Johnson"},
		},
		Projects: []models.Project{{ID: "pr1", Name: "Cloud Migration", OwnerID: models.Ptr("p1")}},
	}}
	r := &fakeRels{fetch: f}
	return NewManager(f, r, Config{Width: 600, Height: 400}), f, r
}

func nodeAt(t *testing.T, sc render.Scene, id string) render.SceneNode {
	t.Helper()
	for _, n := range sc.Nodes {
		if n.ID == id {
			return n
		}
	}
	t.Fatalf("node %s not in scene", id)
	return render.SceneNode{}
}

func TestCreateAndTick(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	f, err := m.Create(ctx, "", "all", 0, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if f.Info.Nodes != 3 || f.Info.Links != 1 || !f.Info.Running {
		t.Fatalf("info = %+v", f.Info)
	}
	if f.Scene.Width != 600 || f.Scene.Height != 400 {
		t.Errorf("scene size = %dx%d", f.Scene.Width, f.Scene.Height)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}

	f2, err := m.Tick(ctx, f.Info.ID, 10000)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if f2.Info.Alpha >= f.Info.Alpha {
		t.Errorf("alpha did not decay: %v -> %v", f.Info.Alpha, f2.Info.Alpha)
	}
}

func TestFilterDoesNotRefetch(t *testing.T) {
	m, fetch, _ := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)

	got, err := m.Filter(ctx, f.Info.ID, "", string(models.EntityPerson))
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if got.Info.Nodes != 2 || got.Info.Links != 0 {
		t.Errorf("filtered info = %+v", got.Info)
	}
	if fetch.count() != 1 {
		t.Errorf("fetch calls = %d, want 1", fetch.count())
	}
}

func TestShiftDragPersistsRelationshipAndRefetches(t *testing.T) {
	m, fetch, rels := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)
	f, _ = m.Tick(ctx, f.Info.ID, 300)

	a := nodeAt(t, f.Scene, "p1")
	b := nodeAt(t, f.Scene, "p2")
	id := f.Info.ID

	if _, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerDown, X: a.X, Y: a.Y, Shift: true}); err != nil {
		t.Fatalf("down: %v", err)
	}
	mid, _ := m.Pointer(ctx, id, PointerEvent{Kind: PointerMove, X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2})
	if mid.Scene.Guide == nil || mid.Scene.State != "connecting_nodes" {
		t.Fatalf("expected guide while connecting, state %s", mid.Scene.State)
	}
	up, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerUp, X: b.X, Y: b.Y})
	if err != nil {
		t.Fatalf("up: %v", err)
	}

	if len(rels.got) != 1 {
		t.Fatalf("relationships created = %d, want 1", len(rels.got))
	}
	r := rels.got[0]
	if r.SourceID != "p1" || r.TargetID != "p2" || r.RelationshipType != models.RelRelatesTo ||
		r.SourceType != models.EntityPerson || r.TargetType != models.EntityPerson {
		t.Errorf("relationship = %+v", r)
	}
	if fetch.count() != 2 {
		t.Errorf("fetch calls = %d, want 2 (refetch after connect)", fetch.count())
	}
	if up.Info.Links != 2 {
		t.Errorf("links after refetch = %d, want 2", up.Info.Links)
	}
	if up.Scene.Guide != nil || up.Scene.State != "idle" {
		t.Errorf("state after up = %s", up.Scene.State)
	}

	// Surviving nodes keep their positions across the refetch.
	if got := nodeAt(t, up.Scene, "p1"); got.X != a.X || got.Y != a.Y {
		t.Errorf("p1 moved from (%v,%v) to (%v,%v)", a.X, a.Y, got.X, got.Y)
	}
}

func TestConnectFailureIsReported(t *testing.T) {
	m, fetch, rels := newTestManager(t)
	rels.fail = true
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)
	f, _ = m.Tick(ctx, f.Info.ID, 300)
	a := nodeAt(t, f.Scene, "p1")
	b := nodeAt(t, f.Scene, "p2")

	m.Pointer(ctx, f.Info.ID, PointerEvent{Kind: PointerDown, X: a.X, Y: a.Y, Shift: true})
	up, err := m.Pointer(ctx, f.Info.ID, PointerEvent{Kind: PointerUp, X: b.X, Y: b.Y})
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if up.Error == "" {
		t.Error("expected error in frame")
	}
	if fetch.count() != 1 {
		t.Errorf("failed connect should not refetch")
	}
}

func TestChangefeedMarksSessionsStale(t *testing.T) {
	m, fetch, _ := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)

	m.HandleChange(changefeed.Change{Table: store.TableEvents, Op: store.OpInsert})
	m.Get(ctx, f.Info.ID)
	if fetch.count() != 1 {
		t.Fatalf("non-graph change should not refetch")
	}

	fetch.mu.Lock()
	fetch.snap.Persons = append(fetch.snap.Persons, models.Person{ID: "p3", Name: "Priya"})
	fetch.mu.Unlock()
	m.HandleChange(changefeed.Change{Table: store.TablePersons, Op: store.OpInsert, ID: "p3"})

	got, err := m.Get(ctx, f.Info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetch.count() != 2 || got.Info.Nodes != 4 {
		t.Errorf("calls=%d nodes=%d, want 2/4", fetch.count(), got.Info.Nodes)
	}
}

func TestGraphChangeWaitsForGestureToFinish(t *testing.T) {
	m, fetch, rels := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)
	f, _ = m.Tick(ctx, f.Info.ID, 300)
	a := nodeAt(t, f.Scene, "p1")
	b := nodeAt(t, f.Scene, "p2")
	id := f.Info.ID

	m.Pointer(ctx, id, PointerEvent{Kind: PointerDown, X: a.X, Y: a.Y, Shift: true})

	fetch.mu.Lock()
	fetch.snap.Persons = append(fetch.snap.Persons, models.Person{ID: "p3", Name: "Priya"})
	fetch.mu.Unlock()
	m.HandleChange(changefeed.Change{Table: store.TablePersons, Op: store.OpInsert, ID: "p3"})

	mid, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerMove, X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if mid.Scene.State != "connecting_nodes" || mid.Info.Nodes != 3 {
		t.Fatalf("gesture interrupted: state %s, nodes %d", mid.Scene.State, mid.Info.Nodes)
	}
	if fetch.count() != 1 {
		t.Errorf("refetched mid-gesture: calls = %d", fetch.count())
	}

	up, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerUp, X: b.X, Y: b.Y})
	if err != nil {
		t.Fatalf("up: %v", err)
	}
	if len(rels.got) != 1 {
		t.Fatalf("relationships created = %d, want 1", len(rels.got))
	}
	if up.Info.Nodes != 4 || up.Info.Links != 2 {
		t.Errorf("after gesture: nodes %d links %d, want 4/2", up.Info.Nodes, up.Info.Links)
	}
}

func TestStaleIdleSessionRefreshesOnPointer(t *testing.T) {
	m, fetch, _ := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)

	m.HandleChange(changefeed.Change{Table: store.TableTeams, Op: store.OpInsert, ID: "t1"})
	if _, err := m.Pointer(ctx, f.Info.ID, PointerEvent{Kind: PointerHover, X: -1000, Y: -1000}); err != nil {
		t.Fatal(err)
	}
	if fetch.count() != 2 {
		t.Errorf("fetch calls = %d, want 2", fetch.count())
	}
}

func TestZoomDragAndRelayout(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)
	f, _ = m.Tick(ctx, f.Info.ID, 300)
	id := f.Info.ID

	z, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerZoom, X: 300, Y: 200, Scale: 2})
	if err != nil {
		t.Fatalf("zoom: %v", err)
	}
	if z.Scene.View.K != 2 || z.Scene.View.X != -300 || z.Scene.View.Y != -200 {
		t.Errorf("view after zoom = %+v", z.Scene.View)
	}
	z, _ = m.Pointer(ctx, id, PointerEvent{Kind: PointerZoom, X: 0, Y: 0, Scale: 100})
	if z.Scene.View.K != 4 {
		t.Errorf("zoom not clamped: k = %v", z.Scene.View.K)
	}
	if _, err := m.Pointer(ctx, id, PointerEvent{Kind: PointerZoom, Scale: 0}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("zero scale err = %v", err)
	}
	m.Pointer(ctx, id, PointerEvent{Kind: DoubleClick})

	a := nodeAt(t, f.Scene, "p1")
	d, _ := m.Pointer(ctx, id, PointerEvent{Kind: PointerDown, X: a.X, Y: a.Y})
	if d.Dragging != "p1" {
		t.Errorf("dragging = %q, want p1", d.Dragging)
	}
	d, _ = m.Pointer(ctx, id, PointerEvent{Kind: PointerCancel})
	if d.Dragging != "" {
		t.Errorf("dragging after cancel = %q", d.Dragging)
	}

	settled, _ := m.Tick(ctx, id, 10000)
	r, err := m.Relayout(ctx, id, 1)
	if err != nil {
		t.Fatalf("Relayout: %v", err)
	}
	if !r.Info.Running || r.Info.Alpha <= settled.Info.Alpha {
		t.Errorf("relayout alpha %v after %v, running %v", r.Info.Alpha, settled.Info.Alpha, r.Info.Running)
	}
}

func TestRenderFormats(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	f, _ := m.Create(ctx, "", "", 0, 0)

	var buf bytes.Buffer
	if err := m.Render(ctx, f.Info.ID, "svg", &buf); err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(buf.String(), "Sarah Chen") {
		t.Error("svg missing label")
	}
	buf.Reset()
	if err := m.Render(ctx, f.Info.ID, "png", &buf); err != nil {
		t.Fatalf("png: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("not a png")
	}
	if err := m.Render(ctx, f.Info.ID, "gif", &buf); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("gif err = %v", err)
	}
}

func TestUnknownSessionAndDelete(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	if _, err := m.Get(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	f, _ := m.Create(ctx, "", "", 0, 0)
	if err := m.Delete(f.Info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(f.Info.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete err = %v", err)
	}
	if _, err := m.Pointer(ctx, "nope", PointerEvent{Kind: PointerDown}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Pointer err = %v", err)
	}
}

type gauge struct{ v float64 }

func (g *gauge) Set(v float64) { g.v = v }

func TestSweepExpiresIdleSessions(t *testing.T) {
	m, _, _ := newTestManager(t)
	g := &gauge{}
	m.SetGauge(g)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	old, _ := m.Create(ctx, "", "", 0, 0)
	clock = clock.Add(20 * time.Minute)
	fresh, _ := m.Create(ctx, "", "", 0, 0)
	if g.v != 2 {
		t.Errorf("gauge = %v, want 2", g.v)
	}

	clock = clock.Add(15 * time.Minute)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if _, err := m.Get(ctx, old.Info.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("old session should be gone")
	}
	if _, err := m.Get(ctx, fresh.Info.ID); err != nil {
		t.Errorf("fresh session: %v", err)
	}
	if g.v != 1 {
		t.Errorf("gauge = %v, want 1", g.v)
	}
}
