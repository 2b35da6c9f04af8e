package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/starford/alignos/internal/models"
)

const decisionColumns = `id, title, description, rationale, status, project_id, created_by, created_at, updated_at`

func scanDecision(s scanner) (*models.Decision, error) {
	var (
		d         models.Decision
		rationale sql.NullString
		projectID sql.NullString
		createdBy sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Title, &d.Description, &rationale, &d.Status, &projectID, &createdBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Rationale = stringPtr(rationale)
	d.ProjectID = stringPtr(projectID)
	d.CreatedBy = stringPtr(createdBy)
	return &d, nil
}

// InsertDecision stores d. Status defaults to draft; timestamps default to now.
func (q *Queries) InsertDecision(ctx context.Context, d *models.Decision) error {
	if d.ID == "" {
		d.ID = newID()
	}
	now := q.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}
	if d.Status == "" {
		d.Status = models.DecisionDraft
	}
	_, err := q.q.ExecContext(ctx, `INSERT INTO decisions (`+decisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.Description, nullString(d.Rationale), d.Status,
		nullString(d.ProjectID), nullString(d.CreatedBy), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return mapErr("insert decision", err)
	}
	q.record(TableDecisions, OpInsert, d.ID)
	return nil
}

func (q *Queries) GetDecision(ctx context.Context, id string) (*models.Decision, error) {
	d, err := scanDecision(q.q.QueryRowContext(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("get decision", err)
	}
	return d, nil
}

// DecisionFilter narrows ListDecisions. Empty fields match everything.
type DecisionFilter struct {
	Search string
	Status models.DecisionStatus
	Limit  int
}

// ListDecisions returns decisions ordered by updated_at, most recent first.
// Search matches title or description case-insensitively.
func (q *Queries) ListDecisions(ctx context.Context, f DecisionFilter) ([]models.Decision, error) {
	var (
		where []string
		args  []any
	)
	if f.Search != "" {
		where = append(where, `(lower(title) LIKE ? OR lower(description) LIKE ?)`)
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like)
	}
	if f.Status != "" {
		where = append(where, `status = ?`)
		args = append(args, f.Status)
	}
	query := `SELECT ` + decisionColumns + ` FROM decisions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, rowid DESC LIMIT ?`
	args = append(args, sqlLimit(f.Limit))

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list decisions", err)
	}
	defer rows.Close()

	out := []models.Decision{}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, mapErr("scan decision", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateDecisionContent replaces title, description and rationale and bumps updated_at.
func (q *Queries) UpdateDecisionContent(ctx context.Context, id string, c models.VersionContent) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE decisions SET title = ?, description = ?, rationale = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.Description, nullString(c.Rationale), q.now(), id)
	if err != nil {
		return mapErr("update decision", err)
	}
	if err := mustAffect("update decision", res); err != nil {
		return err
	}
	q.record(TableDecisions, OpUpdate, id)
	return nil
}

// UpdateDecisionStatus sets the status and bumps updated_at.
func (q *Queries) UpdateDecisionStatus(ctx context.Context, id string, status models.DecisionStatus) error {
	res, err := q.q.ExecContext(ctx,
		`UPDATE decisions SET status = ?, updated_at = ? WHERE id = ?`, status, q.now(), id)
	if err != nil {
		return mapErr("update decision status", err)
	}
	if err := mustAffect("update decision status", res); err != nil {
		return err
	}
	q.record(TableDecisions, OpUpdate, id)
	return nil
}

// CountDecisionsSince counts decisions created at or after since.
func (q *Queries) CountDecisionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, `SELECT count(*) FROM decisions WHERE created_at >= ?`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count decisions since: %w", err)
	}
	return n, nil
}

const versionColumns = `id, decision_id, version, content, change_summary, changed_by, changed_at`

func scanVersion(s scanner) (*models.DecisionVersion, error) {
	var (
		v         models.DecisionVersion
		content   string
		summary   sql.NullString
		changedBy sql.NullString
	)
	if err := s.Scan(&v.ID, &v.DecisionID, &v.Version, &content, &summary, &changedBy, &v.ChangedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &v.Content); err != nil {
		return nil, fmt.Errorf("decode version content: %w", err)
	}
	v.ChangeSummary = stringPtr(summary)
	v.ChangedBy = stringPtr(changedBy)
	return &v, nil
}

// InsertNextVersion appends a version whose number is assigned by the
// database as MAX(version)+1 for the decision. The UNIQUE(decision_id,
// version) constraint turns a lost race into apperr.ErrConflict.
func (q *Queries) InsertNextVersion(ctx context.Context, decisionID string, content models.VersionContent, summary, changedBy *string) (*models.DecisionVersion, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("store: encode version content: %w", err)
	}
	v := &models.DecisionVersion{
		ID:            newID(),
		DecisionID:    decisionID,
		Content:       content,
		ChangeSummary: summary,
		ChangedBy:     changedBy,
		ChangedAt:     q.now(),
	}
	err = q.q.QueryRowContext(ctx, `
		INSERT INTO decision_versions (`+versionColumns+`)
		SELECT ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?
		FROM decision_versions WHERE decision_id = ?
		RETURNING version`,
		v.ID, decisionID, string(raw), nullString(summary), nullString(changedBy), v.ChangedAt, decisionID,
	).Scan(&v.Version)
	if err != nil {
		return nil, mapErr("insert version", err)
	}
	q.record(TableDecisionVersions, OpInsert, v.ID)
	return v, nil
}

// ListVersions returns the versions of one decision, newest first.
func (q *Queries) ListVersions(ctx context.Context, decisionID string) ([]models.DecisionVersion, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM decision_versions WHERE decision_id = ? ORDER BY version DESC`, decisionID)
	if err != nil {
		return nil, mapErr("list versions", err)
	}
	defer rows.Close()

	out := []models.DecisionVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, mapErr("scan version", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// VersionsByDecision returns every version grouped by decision id, newest first.
func (q *Queries) VersionsByDecision(ctx context.Context) (map[string][]models.DecisionVersion, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM decision_versions ORDER BY decision_id, version DESC`)
	if err != nil {
		return nil, mapErr("list all versions", err)
	}
	defer rows.Close()

	out := make(map[string][]models.DecisionVersion)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, mapErr("scan version", err)
		}
		out[v.DecisionID] = append(out[v.DecisionID], *v)
	}
	return out, rows.Err()
}
