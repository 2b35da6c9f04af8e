package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "alignos-store-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type recorder struct {
	mu      sync.Mutex
	changes []string
}

func (r *recorder) Notify(table, op, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, table+"."+op)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...)
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{
		TablePersons, TableTeams, TableProjects, TableDecisions, TableDecisionVersions,
		TableAcknowledgments, TableRelationships, TableConflicts, TableEvents, TableSources, TableDocuments,
	} {
		var n int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&n); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestPersonRoundTripAndEmailLookup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := &models.Person{Name: "Sarah Chen", Email: "Sarah.Chen@placeholder.com", Role: "CTO"}
	if err := db.InsertPerson(ctx, p); err != nil {
		t.Fatalf("InsertPerson: %v", err)
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("id and created_at should be assigned: %+v", p)
	}

	got, err := db.PersonByEmail(ctx, "sarah.chen@placeholder.com")
	if err != nil {
		t.Fatalf("PersonByEmail: %v", err)
	}
	if got.ID != p.ID || got.Role != "CTO" {
		t.Errorf("got %+v", got)
	}

	if _, err := db.PersonByEmail(ctx, "nobody@placeholder.com"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPersonByEmailIgnoresCase(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := &models.Person{Name: "Émile Durand", Email: "Émile.Durand@Placeholder.com", Role: "EM"}
	if err := db.InsertPerson(ctx, p); err != nil {
		t.Fatalf("InsertPerson: %v", err)
	}
	for _, email := range []string{
		"Émile.Durand@Placeholder.com",
		"Émile.DURAND@placeholder.COM",
		"  Émile.durand@placeholder.com ",
	} {
		got, err := db.PersonByEmail(ctx, email)
		if err != nil {
			t.Errorf("PersonByEmail(%q): %v", email, err)
			continue
		}
		if got.ID != p.ID {
			t.Errorf("PersonByEmail(%q) = %s, want %s", email, got.ID, p.ID)
		}
	}
}

func TestInsertNextVersionAssignsSequentialNumbers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := &models.Decision{Title: "Adopt Go", Description: "Use Go for services"}
	if err := db.InsertDecision(ctx, d); err != nil {
		t.Fatalf("InsertDecision: %v", err)
	}
	for want := 1; want <= 3; want++ {
		v, err := db.InsertNextVersion(ctx, d.ID, models.VersionContent{Title: d.Title, Description: d.Description}, nil, nil)
		if err != nil {
			t.Fatalf("InsertNextVersion: %v", err)
		}
		if v.Version != want {
			t.Errorf("version = %d, want %d", v.Version, want)
		}
	}

	versions, err := db.ListVersions(ctx, d.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 || versions[0].Version != 3 {
		t.Fatalf("versions = %+v", versions)
	}
	if versions[0].Content.Title != "Adopt Go" {
		t.Errorf("content not decoded: %+v", versions[0].Content)
	}
}

func TestConcurrentVersionsStayUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	d := &models.Decision{Title: "Race", Description: "x"}
	if err := db.InsertDecision(ctx, d); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.WithTx(ctx, func(tx *Tx) error {
				_, err := tx.InsertNextVersion(ctx, d.ID, models.VersionContent{Title: "Race"}, nil, nil)
				return err
			})
		}()
	}
	wg.Wait()

	versions, err := db.ListVersions(ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, v := range versions {
		if seen[v.Version] {
			t.Fatalf("duplicate version %d", v.Version)
		}
		seen[v.Version] = true
	}
}

func TestWithTxRollsBackAndSuppressesNotifications(t *testing.T) {
	db := testDB(t)
	rec := &recorder{}
	db.SetNotifier(rec)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertPerson(ctx, &models.Person{Name: "A", Email: "a@x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	people, _ := db.ListPersons(ctx, 0)
	if len(people) != 0 {
		t.Errorf("rollback failed, persons = %d", len(people))
	}
	if got := rec.list(); len(got) != 0 {
		t.Errorf("notifications after rollback: %v", got)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		return tx.InsertPerson(ctx, &models.Person{Name: "B", Email: "b@x"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.list(); len(got) != 1 || got[0] != "persons.insert" {
		t.Errorf("notifications = %v", got)
	}
}

func TestAcknowledgmentLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := &models.Person{Name: "A", Email: "a@x"}
	d := &models.Decision{Title: "T", Description: "D"}
	if err := db.InsertPerson(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertDecision(ctx, d); err != nil {
		t.Fatal(err)
	}

	_, created, err := db.EnsureAcknowledgment(ctx, d.ID, p.ID)
	if err != nil || !created {
		t.Fatalf("EnsureAcknowledgment: created=%v err=%v", created, err)
	}
	_, created, err = db.EnsureAcknowledgment(ctx, d.ID, p.ID)
	if err != nil || created {
		t.Fatalf("second EnsureAcknowledgment: created=%v err=%v", created, err)
	}

	counts, err := db.AckCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c := counts[d.ID]; c.Total != 1 || c.Acknowledged != 0 {
		t.Errorf("counts = %+v", c)
	}

	a, err := db.MarkAcknowledged(ctx, d.ID, p.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkAcknowledged: %v", err)
	}
	if a.AcknowledgedAt == nil {
		t.Error("acknowledged_at should be set")
	}
	counts, _ = db.AckCounts(ctx)
	if c := counts[d.ID]; c.Acknowledged != 1 {
		t.Errorf("counts after ack = %+v", c)
	}

	if _, err := db.MarkAcknowledged(ctx, d.ID, "missing", time.Now()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDecisionsOrderAndFilter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	db.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	older := &models.Decision{Title: "Migrate to GCP", Description: "cloud"}
	newer := &models.Decision{Title: "Hire SRE", Description: "staffing", Status: models.DecisionActive}
	_ = db.InsertDecision(ctx, older)
	_ = db.InsertDecision(ctx, newer)

	all, err := db.ListDecisions(ctx, DecisionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != newer.ID {
		t.Fatalf("order = %+v", all)
	}

	if err := db.UpdateDecisionStatus(ctx, older.ID, models.DecisionActive); err != nil {
		t.Fatal(err)
	}
	all, _ = db.ListDecisions(ctx, DecisionFilter{})
	if all[0].ID != older.ID {
		t.Errorf("updated decision should sort first")
	}

	hits, _ := db.ListDecisions(ctx, DecisionFilter{Search: "gcp"})
	if len(hits) != 1 || hits[0].ID != older.ID {
		t.Errorf("search hits = %+v", hits)
	}

	if err := db.UpdateDecisionStatus(ctx, "missing", models.DecisionActive); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotLoadsAllGraphTables(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	team := &models.Team{Name: "Platform"}
	_ = db.InsertTeam(ctx, team)
	_ = db.InsertPerson(ctx, &models.Person{Name: "A", Email: "a@x", TeamID: &team.ID})
	_ = db.InsertProject(ctx, &models.Project{Name: "Atlas"})
	_ = db.InsertDecision(ctx, &models.Decision{Title: "T", Description: "D"})
	_ = db.InsertRelationship(ctx, &models.Relationship{
		SourceType: models.EntityTeam, SourceID: team.ID,
		TargetType: models.EntityTeam, TargetID: team.ID,
		RelationshipType: models.RelRelatesTo,
		Metadata:         models.Metadata{"note": "self"},
	})

	s, err := db.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(s.Persons) != 1 || len(s.Teams) != 1 || len(s.Projects) != 1 || len(s.Decisions) != 1 || len(s.Relationships) != 1 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Relationships[0].Metadata["note"] != "self" {
		t.Errorf("metadata not decoded: %+v", s.Relationships[0].Metadata)
	}
	if s.Projects[0].Status != models.ProjectActive {
		t.Errorf("project status default = %q", s.Projects[0].Status)
	}
}

func TestSourceByChecksum(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	src := &models.Source{Type: models.SourceFile, RawContent: "hello", Metadata: models.Metadata{"checksum": "abc"}}
	if err := db.InsertSource(ctx, src); err != nil {
		t.Fatal(err)
	}
	got, err := db.SourceByChecksum(ctx, "abc")
	if err != nil {
		t.Fatalf("SourceByChecksum: %v", err)
	}
	if got.ID != src.ID {
		t.Errorf("got %s, want %s", got.ID, src.ID)
	}
	if _, err := db.SourceByChecksum(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestConflictStatusUpdate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	c := &models.Conflict{Type: models.ConflictDuplicate, Description: "dup", EntityIDs: []string{"a", "b"}}
	if err := db.InsertConflict(ctx, c); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := db.UpdateConflictStatus(ctx, c.ID, models.ConflictResolved, &now); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetConflict(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.ConflictResolved || got.ResolvedAt == nil || len(got.EntityIDs) != 2 {
		t.Errorf("conflict = %+v", got)
	}
}
