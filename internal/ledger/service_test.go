package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
	"github.com/starford/alignos/internal/testutil"
)

func countEvents(t *testing.T, db *store.DB, id string, typ models.EventType) int {
	t.Helper()
	events, err := db.EventsForEntity(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, e := range events {
		if e.EventType == typ {
			n++
		}
	}
	return n
}

func TestCreateStartsAtVersionOne(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Title: "  Adopt Go  ", Description: "Services in Go"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Title != "Adopt Go" || d.Status != models.DecisionDraft {
		t.Errorf("decision = %+v", d)
	}
	detail, err := svc.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(detail.Versions) != 1 || detail.Versions[0].Version != 1 || *detail.Versions[0].ChangeSummary != InitialChangeSummary {
		t.Errorf("versions = %+v", detail.Versions)
	}
	if countEvents(t, db, d.ID, models.EventCreated) != 1 {
		t.Error("expected one created event")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(testutil.TestDB(t))
	ctx := context.Background()

	for name, in := range map[string]CreateInput{
		"blank title":    {Title: " ", Description: "x"},
		"no description": {Title: "x"},
		"bad status":     {Title: "x", Description: "y", Status: "pending"},
	} {
		if _, err := svc.Create(ctx, in); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestEditIncrementsVersionAndAppendsOneEvent(t *testing.T) {
	db := testutil.TestDB(t)
	org := testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		before, _ := svc.Get(ctx, org.Decision.ID)
		updatesBefore := countEvents(t, db, org.Decision.ID, models.EventUpdated)

		v, err := svc.Edit(ctx, org.Decision.ID, EditInput{
			Title:       "Migrate to GCP",
			Description: "Revision",
			Rationale:   models.Ptr("cost"),
			EditorID:    &org.Sarah.ID,
		})
		if err != nil {
			t.Fatalf("Edit: %v", err)
		}

		after, _ := svc.Get(ctx, org.Decision.ID)
		if len(after.Versions) != len(before.Versions)+1 {
			t.Fatalf("versions %d -> %d", len(before.Versions), len(after.Versions))
		}
		if v.Version != want || after.Versions[0].Version != want {
			t.Errorf("version = %d, want %d", v.Version, want)
		}
		if *v.ChangeSummary != EditChangeSummary || *v.ChangedBy != org.Sarah.ID {
			t.Errorf("version meta = %+v", v)
		}
		if got := countEvents(t, db, org.Decision.ID, models.EventUpdated); got != updatesBefore+1 {
			t.Errorf("updated events %d -> %d", updatesBefore, got)
		}
	}

	d, _ := db.GetDecision(ctx, org.Decision.ID)
	if d.Description != "Revision" || d.Rationale == nil || *d.Rationale != "cost" {
		t.Errorf("decision not updated: %+v", d)
	}
}

func TestEditMissingDecisionRollsBack(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db)
	_, err := svc.Edit(context.Background(), "missing", EditInput{Title: "t", Description: "d"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	events, _ := db.ListEvents(context.Background(), 0)
	if len(events) != 0 {
		t.Errorf("events written despite failure: %d", len(events))
	}
}

func TestDuplicate(t *testing.T) {
	db := testutil.TestDB(t)
	org := testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()

	cp, err := svc.Duplicate(ctx, org.Decision.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if cp.ID == org.Decision.ID || cp.Title != "Migrate to GCP (Copy)" || cp.Status != models.DecisionDraft {
		t.Errorf("copy = %+v", cp)
	}
	if cp.ProjectID == nil || *cp.ProjectID != org.Project.ID {
		t.Errorf("project not cloned")
	}

	versions, _ := db.ListVersions(ctx, cp.ID)
	if len(versions) != 1 || versions[0].Version != 1 {
		t.Errorf("versions = %+v", versions)
	}
	events, _ := db.EventsForEntity(ctx, cp.ID)
	if len(events) != 1 || events[0].EventType != models.EventCreated || events[0].Metadata["duplicated_from"] != org.Decision.ID {
		t.Errorf("events = %+v", events)
	}

	if _, err := svc.Duplicate(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestDeprecateRepeatable(t *testing.T) {
	db := testutil.TestDB(t)
	org := testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()

	for range 2 {
		d, err := svc.Deprecate(ctx, org.Decision.ID)
		if err != nil {
			t.Fatalf("Deprecate: %v", err)
		}
		if d.Status != models.DecisionDeprecated {
			t.Errorf("status = %s", d.Status)
		}
	}
	events, _ := db.EventsForEntity(ctx, org.Decision.ID)
	if len(events) != 2 || events[0].Metadata["status"] != "deprecated" {
		t.Errorf("events = %+v", events)
	}

	if _, err := svc.SetStatus(ctx, org.Decision.ID, "bogus"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

func TestStakeholdersAndAcknowledge(t *testing.T) {
	db := testutil.TestDB(t)
	org := testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()

	acks, err := svc.AssignStakeholders(ctx, org.Decision.ID, []string{org.Sarah.ID, org.Marcus.ID})
	if err != nil {
		t.Fatalf("AssignStakeholders: %v", err)
	}
	if len(acks) != 2 || acks[0].AcknowledgedAt != nil {
		t.Fatalf("acks = %+v", acks)
	}
	if _, err := svc.AssignStakeholders(ctx, org.Decision.ID, []string{"ghost"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown person err = %v", err)
	}

	a, err := svc.Acknowledge(ctx, org.Decision.ID, org.Sarah.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if a.AcknowledgedAt == nil {
		t.Fatal("acknowledged_at not set")
	}
	again, err := svc.Acknowledge(ctx, org.Decision.ID, org.Sarah.ID)
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if !again.AcknowledgedAt.Equal(*a.AcknowledgedAt) {
		t.Errorf("timestamp changed on repeat")
	}
	if n := countEvents(t, db, org.Decision.ID, models.EventAcknowledged); n != 1 {
		t.Errorf("acknowledged events = %d, want 1", n)
	}

	if _, err := svc.Acknowledge(ctx, org.Decision.ID, "stranger"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("non-stakeholder err = %v", err)
	}

	entries, err := svc.List(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Acknowledgments.Total != 2 || entries[0].Acknowledgments.Acknowledged != 1 {
		t.Errorf("list entry = %+v", entries)
	}
}

func TestListFilters(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()
	_, _ = svc.Create(ctx, CreateInput{Title: "Hire SRE", Description: "staffing"})

	hits, err := svc.List(ctx, Filter{Search: "gcp"})
	if err != nil || len(hits) != 1 || hits[0].Title != "Migrate to GCP" {
		t.Errorf("search = %+v, %v", hits, err)
	}
	drafts, _ := svc.List(ctx, Filter{Status: models.DecisionDraft})
	if len(drafts) != 1 || len(drafts[0].Versions) != 1 {
		t.Errorf("drafts = %+v", drafts)
	}
	if _, err := svc.List(ctx, Filter{Status: "nope"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

func TestPropagationCategories(t *testing.T) {
	db := testutil.TestDB(t)
	org := testutil.SeedOrg(t, db)
	svc := NewService(db)
	ctx := context.Background()

	mk := func(title string) string {
		d, err := svc.Create(ctx, CreateInput{Title: title, Description: "x", Status: models.DecisionActive})
		if err != nil {
			t.Fatal(err)
		}
		return d.ID
	}
	full := mk("Full")
	partial := mk("Partial")
	stuck := mk("Stuck")
	// org.Decision has no stakeholders.

	_, _ = svc.AssignStakeholders(ctx, full, []string{org.Sarah.ID})
	_, _ = svc.Acknowledge(ctx, full, org.Sarah.ID)
	_, _ = svc.AssignStakeholders(ctx, partial, []string{org.Sarah.ID, org.Marcus.ID})
	_, _ = svc.Acknowledge(ctx, partial, org.Marcus.ID)
	_, _ = svc.AssignStakeholders(ctx, stuck, []string{org.Sarah.ID})

	drafted, _ := svc.Create(ctx, CreateInput{Title: "Draft", Description: "x"})
	_, _ = svc.AssignStakeholders(ctx, drafted.ID, []string{org.Sarah.ID})

	r, err := svc.Propagation(ctx)
	if err != nil {
		t.Fatalf("Propagation: %v", err)
	}
	if len(r.FullyPropagated) != 1 || r.FullyPropagated[0].Decision.ID != full {
		t.Errorf("fully = %+v", r.FullyPropagated)
	}
	if len(r.InProgress) != 1 || r.InProgress[0].Percent != 50 {
		t.Errorf("in progress = %+v", r.InProgress)
	}
	if len(r.Stuck) != 1 || r.Stuck[0].Decision.ID != stuck {
		t.Errorf("stuck = %+v", r.Stuck)
	}
	if len(r.NoStakeholders) != 1 || r.NoStakeholders[0].Decision.ID != org.Decision.ID {
		t.Errorf("none = %+v", r.NoStakeholders)
	}
	if r.TotalStakeholders != 4 || r.TotalAcknowledged != 2 || r.AcknowledgmentRate != 50 {
		t.Errorf("totals = %d/%d rate %d", r.TotalAcknowledged, r.TotalStakeholders, r.AcknowledgmentRate)
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		c    store.AckCount
		want Category
	}{
		{store.AckCount{}, NoStakeholders},
		{store.AckCount{Total: 3, Acknowledged: 3}, FullyPropagated},
		{store.AckCount{Total: 3, Acknowledged: 0}, Stuck},
		{store.AckCount{Total: 3, Acknowledged: 1}, InProgress},
	}
	for _, tt := range tests {
		if got := Categorize(tt.c); got != tt.want {
			t.Errorf("Categorize(%+v) = %s, want %s", tt.c, got, tt.want)
		}
	}
}
