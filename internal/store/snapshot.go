package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/starford/alignos/internal/models"
)

// Snapshot is the set of rows the graph is built from.
type Snapshot struct {
	Persons       []models.Person
	Teams         []models.Team
	Projects      []models.Project
	Decisions     []models.Decision
	Relationships []models.Relationship
}

// Snapshot loads the five graph tables concurrently.
func (db *DB) Snapshot(ctx context.Context) (*Snapshot, error) {
	var s Snapshot
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		s.Persons, err = db.ListPersons(gCtx, 0)
		return err
	})
	g.Go(func() (err error) {
		s.Teams, err = db.ListTeams(gCtx)
		return err
	})
	g.Go(func() (err error) {
		s.Projects, err = db.ListProjects(gCtx, 0)
		return err
	})
	g.Go(func() (err error) {
		s.Decisions, err = db.ListDecisions(gCtx, DecisionFilter{})
		return err
	})
	g.Go(func() (err error) {
		s.Relationships, err = db.ListRelationships(gCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("store: snapshot: %w", err)
	}
	return &s, nil
}
