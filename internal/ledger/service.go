// Package ledger manages decisions: versioned edits, duplication,
// deprecation, stakeholder acknowledgments and propagation tracking.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
	"github.com/starford/alignos/internal/store"
)

const (
	InitialChangeSummary = "Initial version"
	EditChangeSummary    = "Updated via ledger edit"
	CopySuffix           = " (Copy)"
)

// Entry is a decision with its version history and acknowledgment tally.
type Entry struct {
	models.Decision
	Versions        []models.DecisionVersion `json:"versions"`
	Acknowledgments store.AckCount           `json:"acknowledgments"`
}

// Detail is the full view of one decision.
type Detail struct {
	Entry
	Stakeholders []models.Acknowledgment `json:"stakeholders"`
	Events       []models.Event          `json:"events"`
}

// Filter narrows List.
type Filter struct {
	Search string
	Status models.DecisionStatus
	Limit  int
}

// CreateInput describes a new decision.
type CreateInput struct {
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Rationale    *string               `json:"rationale"`
	Status       models.DecisionStatus `json:"status"`
	ProjectID    *string               `json:"project_id"`
	CreatedBy    *string               `json:"created_by"`
	Stakeholders []string              `json:"stakeholders"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Status, validation.By(validStatus)),
	)
}

// EditInput is the new content of a decision.
type EditInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Rationale   *string `json:"rationale"`
	EditorID    *string `json:"editor_id"`
}

func (in EditInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.RuneLength(1, 200)),
		validation.Field(&in.Description, validation.Required),
	)
}

func validStatus(v any) error {
	s, _ := v.(models.DecisionStatus)
	if s == "" || s.Valid() {
		return nil
	}
	return fmt.Errorf("unknown status %q", s)
}

// Service implements the decision ledger on top of the store.
type Service struct {
	db  *store.DB
	now func() time.Time
}

// NewService creates a ledger service.
func NewService(db *store.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func invalid(err error) error {
	return fmt.Errorf("ledger: %w: %v", apperr.ErrValidation, err)
}

// List returns decisions ordered by last update, each with versions
// (newest first) and acknowledgment totals.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid(fmt.Errorf("unknown status %q", f.Status))
	}
	decisions, err := s.db.ListDecisions(ctx, store.DecisionFilter{
		Search: strings.TrimSpace(f.Search),
		Status: f.Status,
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, err
	}
	versions, err := s.db.VersionsByDecision(ctx)
	if err != nil {
		return nil, err
	}
	acks, err := s.db.AckCounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, len(decisions))
	for i, d := range decisions {
		v := versions[d.ID]
		if v == nil {
			v = []models.DecisionVersion{}
		}
		out[i] = Entry{Decision: d, Versions: v, Acknowledgments: acks[d.ID]}
	}
	return out, nil
}

// Get returns one decision with history, stakeholders and events.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	d, err := s.db.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	versions, err := s.db.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	acks, err := s.db.ListAcknowledgments(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.db.EventsForEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	var tally store.AckCount
	for _, a := range acks {
		tally.Total++
		if a.AcknowledgedAt != nil {
			tally.Acknowledged++
		}
	}
	return &Detail{
		Entry:        Entry{Decision: *d, Versions: versions, Acknowledgments: tally},
		Stakeholders: acks,
		Events:       events,
	}, nil
}

// Create inserts a decision with version 1 and a created event. Listed
// stakeholders get pending acknowledgments.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Decision, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	d := &models.Decision{
		Title:       in.Title,
		Description: in.Description,
		Rationale:   in.Rationale,
		Status:      in.Status,
		ProjectID:   in.ProjectID,
		CreatedBy:   in.CreatedBy,
	}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := InsertWithFirstVersion(ctx, tx, d, in.CreatedBy, nil); err != nil {
			return err
		}
		for _, pid := range in.Stakeholders {
			if _, _, err := tx.EnsureAcknowledgment(ctx, d.ID, pid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: create: %w", err)
	}
	return d, nil
}

// InsertWithFirstVersion stores d, its version 1 and a created event inside
// tx. Ingestion uses it for extracted decisions.
func InsertWithFirstVersion(ctx context.Context, tx *store.Tx, d *models.Decision, changedBy *string, meta models.Metadata) error {
	if err := tx.InsertDecision(ctx, d); err != nil {
		return err
	}
	summary := InitialChangeSummary
	content := models.VersionContent{Title: d.Title, Description: d.Description, Rationale: d.Rationale}
	if _, err := tx.InsertNextVersion(ctx, d.ID, content, &summary, changedBy); err != nil {
		return err
	}
	_, err := tx.AppendEvent(ctx, models.EntityDecision, d.ID, models.EventCreated, meta)
	return err
}

// Edit replaces the content of a decision. In one transaction it updates
// the row, appends version MAX+1 and records one updated event.
func (s *Service) Edit(ctx context.Context, id string, in EditInput) (*models.DecisionVersion, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	content := models.VersionContent{Title: in.Title, Description: in.Description, Rationale: in.Rationale}
	var v *models.DecisionVersion
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateDecisionContent(ctx, id, content); err != nil {
			return err
		}
		summary := EditChangeSummary
		var err error
		v, err = tx.InsertNextVersion(ctx, id, content, &summary, in.EditorID)
		if err != nil {
			return err
		}
		_, err = tx.AppendEvent(ctx, models.EntityDecision, id, models.EventUpdated,
			models.Metadata{"version": v.Version, "change_summary": summary})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: edit %s: %w", id, err)
	}
	return v, nil
}

// Duplicate copies a decision into a new draft whose title carries the
// " (Copy)" suffix. The copy starts at version 1 and its created event
// references the origin.
func (s *Service) Duplicate(ctx context.Context, id string) (*models.Decision, error) {
	var d *models.Decision
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		origin, err := tx.GetDecision(ctx, id)
		if err != nil {
			return err
		}
		d = &models.Decision{
			Title:       origin.Title + CopySuffix,
			Description: origin.Description,
			Rationale:   origin.Rationale,
			Status:      models.DecisionDraft,
			ProjectID:   origin.ProjectID,
		}
		return InsertWithFirstVersion(ctx, tx, d, nil, models.Metadata{"duplicated_from": id})
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: duplicate %s: %w", id, err)
	}
	return d, nil
}

// Deprecate marks a decision deprecated. Repeating it is allowed and
// records another event.
func (s *Service) Deprecate(ctx context.Context, id string) (*models.Decision, error) {
	return s.SetStatus(ctx, id, models.DecisionDeprecated)
}

// SetStatus moves a decision to status and records an updated event.
func (s *Service) SetStatus(ctx context.Context, id string, status models.DecisionStatus) (*models.Decision, error) {
	if !status.Valid() {
		return nil, invalid(fmt.Errorf("unknown status %q", status))
	}
	var d *models.Decision
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateDecisionStatus(ctx, id, status); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, models.EntityDecision, id, models.EventUpdated,
			models.Metadata{"status": string(status)}); err != nil {
			return err
		}
		var err error
		d, err = tx.GetDecision(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: set status %s: %w", id, err)
	}
	return d, nil
}

// AssignStakeholders creates pending acknowledgments for each person.
// Existing acknowledgments are left untouched.
func (s *Service) AssignStakeholders(ctx context.Context, id string, personIDs []string) ([]models.Acknowledgment, error) {
	if len(personIDs) == 0 {
		return nil, invalid(fmt.Errorf("person_ids: cannot be blank"))
	}
	out := make([]models.Acknowledgment, 0, len(personIDs))
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetDecision(ctx, id); err != nil {
			return err
		}
		for _, pid := range personIDs {
			if _, err := tx.GetPerson(ctx, pid); err != nil {
				return err
			}
			a, _, err := tx.EnsureAcknowledgment(ctx, id, pid)
			if err != nil {
				return err
			}
			out = append(out, *a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: assign stakeholders %s: %w", id, err)
	}
	return out, nil
}

// Acknowledge records that personID has seen decisionID. The person must
// already be a stakeholder. Acknowledging twice keeps the first timestamp
// and records no second event.
func (s *Service) Acknowledge(ctx context.Context, decisionID, personID string) (*models.Acknowledgment, error) {
	var a *models.Acknowledgment
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		at := s.now()
		var err error
		a, err = tx.MarkAcknowledged(ctx, decisionID, personID, at)
		if err != nil {
			return err
		}
		if a.AcknowledgedAt == nil || !a.AcknowledgedAt.Equal(at) {
			return nil
		}
		_, err = tx.AppendEvent(ctx, models.EntityDecision, decisionID, models.EventAcknowledged,
			models.Metadata{"person_id": personID})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: acknowledge %s: %w", decisionID, err)
	}
	return a, nil
}
