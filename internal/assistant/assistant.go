// Package assistant answers free-form questions about the organisation by
// handing a summary of the stored data to the AI gateway.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// RecentLimit is how many recent rows of each kind go into the prompt.
const RecentLimit = 5

// Asker sends a system prompt and a question to a language model.
type Asker interface {
	Ask(ctx context.Context, system, query string) (string, error)
}

// Titled and Named are the slices of a row the prompt needs.
type Titled struct {
	Title string `json:"title"`
}

type Named struct {
	Name string `json:"name"`
}

// OrgContext summarises the organisation for the prompt. Field names match
// the JSON a client may send to override it.
type OrgContext struct {
	DecisionsCount  int      `json:"decisionsCount"`
	PeopleCount     int      `json:"peopleCount"`
	ProjectsCount   int      `json:"projectsCount"`
	RecentDecisions []Titled `json:"recentDecisions"`
	RecentPeople    []Named  `json:"recentPeople"`
	RecentProjects  []Named  `json:"recentProjects"`
}

// Service answers questions.
type Service struct {
	db *store.DB
	ai Asker
}

func NewService(db *store.DB, ai Asker) *Service {
	return &Service{db: db, ai: ai}
}

// Ask answers query. When override is nil the context is built from the
// store.
func (s *Service) Ask(ctx context.Context, query string, override *OrgContext) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("assistant: %w: query is required", apperr.ErrValidation)
	}
	oc := override
	if oc == nil {
		built, err := s.BuildContext(ctx)
		if err != nil {
			return "", err
		}
		oc = built
	}
	return s.ai.Ask(ctx, SystemPrompt(oc), query)
}

// BuildContext loads counts and the most recent decisions, people and
// projects concurrently.
func (s *Service) BuildContext(ctx context.Context) (*OrgContext, error) {
	var (
		totals    store.Totals
		decisions []models.Decision
		persons   []models.Person
		projects  []models.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		totals, err = s.db.CountTotals(gctx)
		return err
	})
	g.Go(func() (err error) {
		decisions, err = s.db.ListDecisions(gctx, store.DecisionFilter{Limit: RecentLimit})
		return err
	})
	g.Go(func() (err error) {
		persons, err = s.db.ListPersons(gctx, RecentLimit)
		return err
	})
	g.Go(func() (err error) {
		projects, err = s.db.ListProjects(gctx, RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("assistant: build context: %w", err)
	}

	oc := &OrgContext{
		DecisionsCount:  totals.Decisions,
		PeopleCount:     totals.Persons,
		ProjectsCount:   totals.Projects,
		RecentDecisions: make([]Titled, 0, len(decisions)),
		RecentPeople:    make([]Named, 0, len(persons)),
		RecentProjects:  make([]Named, 0, len(projects)),
	}
	for _, d := range decisions {
		oc.RecentDecisions = append(oc.RecentDecisions, Titled{Title: d.Title})
	}
	for _, p := range persons {
		oc.RecentPeople = append(oc.RecentPeople, Named{Name: p.Name})
	}
	for _, p := range projects {
		oc.RecentProjects = append(oc.RecentProjects, Named{Name: p.Name})
	}
	return oc, nil
}

// SystemPrompt renders the assistant instructions for oc. A nil context
// tells the model there is no data yet.
func SystemPrompt(oc *OrgContext) string {
	var sb strings.Builder
	sb.WriteString("You are AlignOS, an AI assistant that helps users understand their organizational data.\n")
	sb.WriteString("You have access to the following context about the organization:\n\n")
	if oc == nil {
		sb.WriteString("No organizational data available yet.")
	} else {
		titles := make([]string, 0, len(oc.RecentDecisions))
		for _, d := range oc.RecentDecisions {
			titles = append(titles, d.Title)
		}
		fmt.Fprintf(&sb, "ORGANIZATIONAL CONTEXT:\n- Decisions: %d total\n- People: %d total\n- Projects: %d total\n",
			oc.DecisionsCount, oc.PeopleCount, oc.ProjectsCount)
		fmt.Fprintf(&sb, "- Recent decisions: %s\n", joinOrNone(titles))
		fmt.Fprintf(&sb, "- Recent people: %s\n", joinOrNone(names(oc.RecentPeople)))
		fmt.Fprintf(&sb, "- Recent projects: %s", joinOrNone(names(oc.RecentProjects)))
	}
	sb.WriteString("\n\nAnswer the user's question helpfully and concisely. If the question is about specific data that isn't in the context, suggest they use the Ingest feature to add more information.")
	return sb.String()
}

func names(items []Named) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Name)
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
