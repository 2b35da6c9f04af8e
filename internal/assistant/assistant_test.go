package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/testutil"
)

type fakeAsker struct {
	system, query string
	calls         int
}

func (f *fakeAsker) Ask(_ context.Context, system, query string) (string, error) {
	f.calls++
	f.system, f.query = system, query
	return "Sarah owns it.", nil
}

func TestAskBuildsContext(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.SeedOrg(t, db)
	ai := &fakeAsker{}
	svc := NewService(db, ai)

	answer, err := svc.Ask(context.Background(), "  who owns the migration?  ", nil)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer != "Sarah owns it." || ai.query != "who owns the migration?" {
		t.Errorf("answer=%q query=%q", answer, ai.query)
	}
	for _, want := range []string{
		"- Decisions: 1 total",
		"- People: 2 total",
		"- Projects: 1 total",
		"- Recent decisions: Migrate to GCP",
		"- Recent people: Marcus Johnson, Sarah Chen",
		"- Recent projects: Cloud Migration",
	} {
		if !strings.Contains(ai.system, want) {
			t.Errorf("system prompt missing %q:\n%s", want, ai.system)
		}
	}
}

func TestAskOverrideAndValidation(t *testing.T) {
	db := testutil.TestDB(t)
	ai := &fakeAsker{}
	svc := NewService(db, ai)

	if _, err := svc.Ask(context.Background(), " ", nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v", err)
	}
	if ai.calls != 0 {
		t.Error("gateway called for empty query")
	}

	_, err := svc.Ask(context.Background(), "status?", &OrgContext{DecisionsCount: 42, RecentPeople: []Named{{Name: "Priya"}}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ai.system, "- Decisions: 42 total") || !strings.Contains(ai.system, "- Recent people: Priya") ||
		!strings.Contains(ai.system, "- Recent decisions: None") {
		t.Errorf("override ignored:\n%s", ai.system)
	}
}

func TestSystemPromptWithoutContext(t *testing.T) {
	p := SystemPrompt(nil)
	if !strings.Contains(p, "No organizational data available yet.") || strings.Contains(p, "ORGANIZATIONAL CONTEXT") {
		t.Errorf("prompt = %s", p)
	}
}
