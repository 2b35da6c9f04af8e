package org

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// DefaultActivityLimit is used when the caller passes no limit.
const DefaultActivityLimit = 10

// ActivityItem is one event with the display name of its entity.
type ActivityItem struct {
	ID         string            `json:"id"`
	Type       models.EventType  `json:"type"`
	EntityType models.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	EntityName string            `json:"entity_name"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   models.Metadata   `json:"metadata"`
}

// Activity returns the most recent events, newest first, each with its
// entity name resolved.
func (s *Service) Activity(ctx context.Context, limit int) ([]ActivityItem, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	events, err := s.db.ListEvents(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]ActivityItem, 0, len(events))
	for _, e := range events {
		name, err := s.entityName(ctx, e.EntityType, e.EntityID)
		if err != nil {
			return nil, err
		}
		out = append(out, ActivityItem{
			ID:         e.ID,
			Type:       e.EventType,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			EntityName: name,
			Timestamp:  e.CreatedAt,
			Metadata:   e.Metadata,
		})
	}
	return out, nil
}

// entityName resolves the display name of an event's entity. Missing rows
// get a "Deleted <Type>" placeholder; types without a name are "Unknown".
func (s *Service) entityName(ctx context.Context, typ models.EntityType, id string) (string, error) {
	var (
		name     string
		fallback string
		err      error
	)
	switch typ {
	case models.EntityDecision:
		fallback = "Deleted Decision"
		var d *models.Decision
		if d, err = s.db.GetDecision(ctx, id); err == nil {
			name = d.Title
		}
	case models.EntityPerson:
		fallback = "Deleted Person"
		var p *models.Person
		if p, err = s.db.GetPerson(ctx, id); err == nil {
			name = p.Name
		}
	case models.EntityProject:
		fallback = "Deleted Project"
		var p *models.Project
		if p, err = s.db.GetProject(ctx, id); err == nil {
			name = p.Name
		}
	case models.EntityTeam:
		fallback = "Deleted Team"
		var t *models.Team
		if t, err = s.db.GetTeam(ctx, id); err == nil {
			name = t.Name
		}
	default:
		return "Unknown", nil
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return "", fmt.Errorf("org: resolve %s %s: %w", typ, id, err)
	}
	if name == "" {
		return fallback, nil
	}
	return name, nil
}

// Dashboard is the command-center summary.
type Dashboard struct {
	DecisionsToday         int          `json:"decisions_today"`
	OpenConflicts          int          `json:"open_conflicts"`
	PendingAcknowledgments int          `json:"pending_acknowledgments"`
	OwnershipGaps          int          `json:"ownership_gaps"`
	Totals                 store.Totals `json:"totals"`
}

// Dashboard computes the headline counters. "Today" starts at UTC midnight.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	totals, err := s.db.CountTotals(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	today, err := s.db.CountDecisionsSince(ctx, midnight)
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		DecisionsToday:         today,
		OpenConflicts:          totals.OpenConflicts,
		PendingAcknowledgments: totals.PendingAcks,
		OwnershipGaps:          totals.UnownedProjects,
		Totals:                 totals,
	}, nil
}
