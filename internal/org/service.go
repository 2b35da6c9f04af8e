// Package org manages the organisation around decisions: people, teams,
// projects, explicit relationships, conflicts, the activity feed and the
// dashboard counters.
package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

// Service coordinates org-level store operations.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// NewService creates an org service.
func NewService(db *store.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func invalid(err error) error {
	return fmt.Errorf("org: %w: %v", apperr.ErrValidation, err)
}

// PersonInput describes a new person.
type PersonInput struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	TeamID    *string `json:"team_id"`
	AvatarURL *string `json:"avatar_url"`
}

func (in PersonInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Email, validation.Required, validation.RuneLength(3, 320)),
		validation.Field(&in.Role, validation.Required),
	)
}

// CreatePerson stores a person and a created event.
func (s *Service) CreatePerson(ctx context.Context, in PersonInput) (*models.Person, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = strings.TrimSpace(in.Role)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p := &models.Person{Name: in.Name, Email: in.Email, Role: in.Role, TeamID: in.TeamID, AvatarURL: in.AvatarURL}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		switch _, err := tx.PersonByEmail(ctx, in.Email); {
		case err == nil:
			return fmt.Errorf("email %s: %w", in.Email, apperr.ErrAlreadyExists)
		case !errors.Is(err, apperr.ErrNotFound):
			return err
		}
		if err := tx.InsertPerson(ctx, p); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, models.EntityPerson, p.ID, models.EventCreated, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("org: create person: %w", err)
	}
	return p, nil
}

func (s *Service) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	return s.db.GetPerson(ctx, id)
}

// ListPersons returns people, newest first.
func (s *Service) ListPersons(ctx context.Context, limit int) ([]models.Person, error) {
	return s.db.ListPersons(ctx, limit)
}

// TeamInput describes a new team. Parent links are not checked for cycles.
type TeamInput struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	ParentTeamID *string `json:"parent_team_id"`
}

func (in TeamInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 200)),
	)
}

func (s *Service) CreateTeam(ctx context.Context, in TeamInput) (*models.Team, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	t := &models.Team{Name: in.Name, Description: in.Description, ParentTeamID: in.ParentTeamID}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertTeam(ctx, t); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, models.EntityTeam, t.ID, models.EventCreated, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("org: create team: %w", err)
	}
	return t, nil
}

func (s *Service) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return s.db.GetTeam(ctx, id)
}

func (s *Service) ListTeams(ctx context.Context) ([]models.Team, error) {
	return s.db.ListTeams(ctx)
}

// ProjectInput describes a new project. Status defaults to active.
type ProjectInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	OwnerID     *string              `json:"owner_id"`
	TeamID      *string              `json:"team_id"`
	Status      models.ProjectStatus `json:"status"`
}

func (in ProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Status, validation.By(func(v any) error {
			if st, _ := v.(models.ProjectStatus); st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", st)
			}
			return nil
		})),
	)
}

func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	p := &models.Project{Name: in.Name, Description: strings.TrimSpace(in.Description), OwnerID: in.OwnerID, TeamID: in.TeamID, Status: in.Status}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertProject(ctx, p); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, models.EntityProject, p.ID, models.EventCreated, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("org: create project: %w", err)
	}
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.db.GetProject(ctx, id)
}

func (s *Service) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	return s.db.ListProjects(ctx, limit)
}

// CreateRelationship stores an explicit edge. Endpoint ids are not checked
// against the referenced tables; edges to missing rows are dropped when the
// graph is built.
func (s *Service) CreateRelationship(ctx context.Context, r *models.Relationship) error {
	r.SourceID = strings.TrimSpace(r.SourceID)
	r.TargetID = strings.TrimSpace(r.TargetID)
	err := validation.ValidateStruct(r,
		validation.Field(&r.SourceID, validation.Required),
		validation.Field(&r.TargetID, validation.Required),
		validation.Field(&r.SourceType, validation.By(entityType)),
		validation.Field(&r.TargetType, validation.By(entityType)),
		validation.Field(&r.RelationshipType, validation.By(func(v any) error {
			if t, _ := v.(models.RelationshipType); !t.Valid() {
				return fmt.Errorf("unknown relationship type %q", t)
			}
			return nil
		})),
	)
	if err != nil {
		return invalid(err)
	}
	if err := s.db.InsertRelationship(ctx, r); err != nil {
		return fmt.Errorf("org: create relationship: %w", err)
	}
	return nil
}

func entityType(v any) error {
	if t, _ := v.(models.EntityType); !t.Valid() {
		return fmt.Errorf("unknown entity type %q", t)
	}
	return nil
}

func (s *Service) ListRelationships(ctx context.Context) ([]models.Relationship, error) {
	return s.db.ListRelationships(ctx)
}
