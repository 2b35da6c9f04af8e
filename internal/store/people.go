package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/alignos/internal/models"
)

const personColumns = `id, name, email, role, team_id, avatar_url, created_at`

func scanPerson(s scanner) (*models.Person, error) {
	var (
		p      models.Person
		teamID sql.NullString
		avatar sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &teamID, &avatar, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.TeamID = stringPtr(teamID)
	p.AvatarURL = stringPtr(avatar)
	return &p, nil
}

// InsertPerson stores p, assigning ID and CreatedAt when empty.
func (q *Queries) InsertPerson(ctx context.Context, p *models.Person) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = q.now()
	}
	_, err := q.q.ExecContext(ctx, `INSERT INTO persons (`+personColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Email, p.Role, nullString(p.TeamID), nullString(p.AvatarURL), p.CreatedAt)
	if err != nil {
		return mapErr("insert person", err)
	}
	q.record(TablePersons, OpInsert, p.ID)
	return nil
}

// GetPerson returns the person with id or apperr.ErrNotFound.
func (q *Queries) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	p, err := scanPerson(q.q.QueryRowContext(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("get person", err)
	}
	return p, nil
}

// PersonByEmail looks a person up by email. Both sides are folded by
// SQLite's lower(), so ASCII case is ignored and other letters match exactly.
func (q *Queries) PersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	p, err := scanPerson(q.q.QueryRowContext(ctx,
		`SELECT `+personColumns+` FROM persons WHERE lower(email) = lower(?) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(email)))
	if err != nil {
		return nil, mapErr("person by email", err)
	}
	return p, nil
}

// ListPersons returns people, newest first. limit <= 0 means no limit.
func (q *Queries) ListPersons(ctx context.Context, limit int) ([]models.Person, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+personColumns+` FROM persons ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, mapErr("list persons", err)
	}
	defer rows.Close()

	out := []models.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, mapErr("scan person", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const teamColumns = `id, name, description, parent_team_id, created_at`

func scanTeam(s scanner) (*models.Team, error) {
	var (
		t      models.Team
		desc   sql.NullString
		parent sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Name, &desc, &parent, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Description = stringPtr(desc)
	t.ParentTeamID = stringPtr(parent)
	return &t, nil
}

// InsertTeam stores t, assigning ID and CreatedAt when empty.
func (q *Queries) InsertTeam(ctx context.Context, t *models.Team) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = q.now()
	}
	_, err := q.q.ExecContext(ctx, `INSERT INTO teams (`+teamColumns+`) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, nullString(t.Description), nullString(t.ParentTeamID), t.CreatedAt)
	if err != nil {
		return mapErr("insert team", err)
	}
	q.record(TableTeams, OpInsert, t.ID)
	return nil
}

func (q *Queries) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	t, err := scanTeam(q.q.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("get team", err)
	}
	return t, nil
}

// ListTeams returns teams ordered by name.
func (q *Queries) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY name, rowid`)
	if err != nil {
		return nil, mapErr("list teams", err)
	}
	defer rows.Close()

	out := []models.Team{}
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, mapErr("scan team", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

const projectColumns = `id, name, description, owner_id, team_id, status, created_at`

func scanProject(s scanner) (*models.Project, error) {
	var (
		p       models.Project
		ownerID sql.NullString
		teamID  sql.NullString
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &ownerID, &teamID, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.OwnerID = stringPtr(ownerID)
	p.TeamID = stringPtr(teamID)
	return &p, nil
}

// InsertProject stores p. Status defaults to active.
func (q *Queries) InsertProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = q.now()
	}
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	_, err := q.q.ExecContext(ctx, `INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, nullString(p.OwnerID), nullString(p.TeamID), p.Status, p.CreatedAt)
	if err != nil {
		return mapErr("insert project", err)
	}
	q.record(TableProjects, OpInsert, p.ID)
	return nil
}

func (q *Queries) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := scanProject(q.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("get project", err)
	}
	return p, nil
}

// ListProjects returns projects, newest first. limit <= 0 means no limit.
func (q *Queries) ListProjects(ctx context.Context, limit int) ([]models.Project, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, mapErr("list projects", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapErr("scan project", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// Totals holds row counts for the dashboard.
type Totals struct {
	Persons          int `json:"persons"`
	Teams            int `json:"teams"`
	Projects         int `json:"projects"`
	Decisions        int `json:"decisions"`
	UnownedProjects  int `json:"unowned_projects"`
	PendingAcks      int `json:"pending_acknowledgments"`
	OpenConflicts    int `json:"open_conflicts"`
	RelationshipRows int `json:"relationships"`
}

// CountTotals computes all dashboard counters in a single round trip.
func (q *Queries) CountTotals(ctx context.Context) (Totals, error) {
	var t Totals
	err := q.q.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM persons),
			(SELECT count(*) FROM teams),
			(SELECT count(*) FROM projects),
			(SELECT count(*) FROM decisions),
			(SELECT count(*) FROM projects WHERE owner_id IS NULL),
			(SELECT count(*) FROM acknowledgments WHERE acknowledged_at IS NULL),
			(SELECT count(*) FROM conflicts WHERE status IN ('detected', 'reviewing')),
			(SELECT count(*) FROM relationships)
	`).Scan(&t.Persons, &t.Teams, &t.Projects, &t.Decisions, &t.UnownedProjects, &t.PendingAcks, &t.OpenConflicts, &t.RelationshipRows)
	if err != nil {
		return Totals{}, fmt.Errorf("store: count totals: %w", err)
	}
	return t, nil
}
