package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/starford/alignos/internal/models"
)

const conflictColumns = `id, type, entity_ids, status, description, suggested_resolution, created_at, resolved_at`

func scanConflict(s scanner) (*models.Conflict, error) {
	var (
		c          models.Conflict
		entityIDs  string
		suggested  sql.NullString
		resolvedAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Type, &entityIDs, &c.Status, &c.Description, &suggested, &c.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(entityIDs), &c.EntityIDs); err != nil || c.EntityIDs == nil {
		c.EntityIDs = []string{}
	}
	c.SuggestedResolution = stringPtr(suggested)
	c.ResolvedAt = timePtr(resolvedAt)
	return &c, nil
}

// InsertConflict stores an externally detected conflict. Status defaults to detected.
func (q *Queries) InsertConflict(ctx context.Context, c *models.Conflict) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = q.now()
	}
	if c.Status == "" {
		c.Status = models.ConflictDetected
	}
	if c.EntityIDs == nil {
		c.EntityIDs = []string{}
	}
	ids, err := json.Marshal(c.EntityIDs)
	if err != nil {
		return fmt.Errorf("store: encode entity ids: %w", err)
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO conflicts (`+conflictColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Type, string(ids), c.Status, c.Description, nullString(c.SuggestedResolution), c.CreatedAt, nullTime(c.ResolvedAt))
	if err != nil {
		return mapErr("insert conflict", err)
	}
	q.record(TableConflicts, OpInsert, c.ID)
	return nil
}

func (q *Queries) GetConflict(ctx context.Context, id string) (*models.Conflict, error) {
	c, err := scanConflict(q.q.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("get conflict", err)
	}
	return c, nil
}

// ListConflicts returns conflicts, newest first.
func (q *Queries) ListConflicts(ctx context.Context) ([]models.Conflict, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+conflictColumns+` FROM conflicts ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, mapErr("list conflicts", err)
	}
	defer rows.Close()

	out := []models.Conflict{}
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, mapErr("scan conflict", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateConflictStatus moves a conflict to status; resolvedAt is stored as given.
func (q *Queries) UpdateConflictStatus(ctx context.Context, id string, status models.ConflictStatus, resolvedAt *time.Time) error {
	res, err := q.q.ExecContext(ctx, `UPDATE conflicts SET status = ?, resolved_at = ? WHERE id = ?`,
		status, nullTime(resolvedAt), id)
	if err != nil {
		return mapErr("update conflict", err)
	}
	if err := mustAffect("update conflict", res); err != nil {
		return err
	}
	q.record(TableConflicts, OpUpdate, id)
	return nil
}

const eventColumns = `id, entity_type, entity_id, event_type, metadata, created_at`

func scanEvent(s scanner) (*models.Event, error) {
	var (
		e    models.Event
		meta sql.NullString
	)
	if err := s.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.EventType, &meta, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Metadata = decodeMetadata(meta)
	return &e, nil
}

// AppendEvent writes one row to the append-only activity log.
func (q *Queries) AppendEvent(ctx context.Context, entityType models.EntityType, entityID string, eventType models.EventType, meta models.Metadata) (*models.Event, error) {
	e := &models.Event{
		ID:         newID(),
		EntityType: entityType,
		EntityID:   entityID,
		EventType:  eventType,
		Metadata:   meta,
		CreatedAt:  q.now(),
	}
	raw, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.EntityType, e.EntityID, e.EventType, raw, e.CreatedAt)
	if err != nil {
		return nil, mapErr("append event", err)
	}
	q.record(TableEvents, OpInsert, e.ID)
	return e, nil
}

// ListEvents returns the most recent events, newest first.
func (q *Queries) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return q.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
}

// EventsForEntity returns the events of one entity, newest first.
func (q *Queries) EventsForEntity(ctx context.Context, entityID string) ([]models.Event, error) {
	return q.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE entity_id = ? ORDER BY created_at DESC, rowid DESC`, entityID)
}

func (q *Queries) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr("list events", err)
	}
	defer rows.Close()

	out := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, mapErr("scan event", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}
