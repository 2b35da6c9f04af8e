package org

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// ConflictStats counts conflicts by status.
type ConflictStats struct {
	Detected  int `json:"detected"`
	Reviewing int `json:"reviewing"`
	Resolved  int `json:"resolved"`
	Total     int `json:"total"`
}

// ConflictList is the conflicts page: all rows, newest first, plus stats.
type ConflictList struct {
	Conflicts []models.Conflict `json:"conflicts"`
	Stats     ConflictStats     `json:"stats"`
}

// ConflictInput is a conflict reported by an external detector.
type ConflictInput struct {
	Type                models.ConflictType `json:"type"`
	EntityIDs           []string            `json:"entity_ids"`
	EntityType          models.EntityType   `json:"entity_type"`
	Description         string              `json:"description"`
	SuggestedResolution *string             `json:"suggested_resolution"`
}

func (in ConflictInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Type, validation.By(func(v any) error {
			if t, _ := v.(models.ConflictType); !t.Valid() {
				return fmt.Errorf("unknown conflict type %q", t)
			}
			return nil
		})),
		validation.Field(&in.EntityIDs, validation.Required, validation.Each(validation.Required)),
		validation.Field(&in.EntityType, validation.By(func(v any) error {
			if t, _ := v.(models.EntityType); t != "" && !t.Valid() {
				return fmt.Errorf("unknown entity type %q", t)
			}
			return nil
		})),
		validation.Field(&in.Description, validation.Required),
	)
}

// ListConflicts returns every conflict, newest first, with status counts.
func (s *Service) ListConflicts(ctx context.Context) (*ConflictList, error) {
	conflicts, err := s.db.ListConflicts(ctx)
	if err != nil {
		return nil, err
	}
	out := &ConflictList{Conflicts: conflicts}
	for _, c := range conflicts {
		switch c.Status {
		case models.ConflictDetected:
			out.Stats.Detected++
		case models.ConflictReviewing:
			out.Stats.Reviewing++
		case models.ConflictResolved:
			out.Stats.Resolved++
		}
	}
	out.Stats.Total = len(conflicts)
	return out, nil
}

// ReportConflict stores a detected conflict and records a conflict_detected
// event on the first involved entity. EntityType defaults to decision.
func (s *Service) ReportConflict(ctx context.Context, in ConflictInput) (*models.Conflict, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if in.EntityType == "" {
		in.EntityType = models.EntityDecision
	}
	c := &models.Conflict{
		Type:                in.Type,
		EntityIDs:           in.EntityIDs,
		Status:              models.ConflictDetected,
		Description:         in.Description,
		SuggestedResolution: in.SuggestedResolution,
	}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertConflict(ctx, c); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, in.EntityType, in.EntityIDs[0], models.EventConflictDetected,
			models.Metadata{"conflict_id": c.ID, "conflict_type": string(c.Type)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("org: report conflict: %w", err)
	}
	return c, nil
}

// SetConflictStatus moves a conflict through review. Resolving stamps
// resolved_at; any other status clears it.
func (s *Service) SetConflictStatus(ctx context.Context, id string, status models.ConflictStatus) (*models.Conflict, error) {
	if !status.Valid() {
		return nil, invalid(fmt.Errorf("unknown status %q", status))
	}
	var resolvedAt *time.Time
	if status == models.ConflictResolved {
		at := s.now()
		resolvedAt = &at
	}
	if err := s.db.UpdateConflictStatus(ctx, id, status, resolvedAt); err != nil {
		return nil, fmt.Errorf("org: set conflict status %s: %w", id, err)
	}
	return s.db.GetConflict(ctx, id)
}
