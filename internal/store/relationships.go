package store

import (
	"context"
	"database/sql"

	"github.com/starford/alignos/internal/models"
)

const relationshipColumns = `id, source_type, source_id, target_type, target_id, relationship_type, metadata, created_at`

func scanRelationship(s scanner) (*models.Relationship, error) {
	var (
		r    models.Relationship
		meta sql.NullString
	)
	if err := s.Scan(&r.ID, &r.SourceType, &r.SourceID, &r.TargetType, &r.TargetID, &r.RelationshipType, &meta, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Metadata = decodeMetadata(meta)
	return &r, nil
}

// InsertRelationship stores an explicit edge. Endpoint existence is not checked.
func (q *Queries) InsertRelationship(ctx context.Context, r *models.Relationship) error {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = q.now()
	}
	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO relationships (`+relationshipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SourceType, r.SourceID, r.TargetType, r.TargetID, r.RelationshipType, meta, r.CreatedAt)
	if err != nil {
		return mapErr("insert relationship", err)
	}
	q.record(TableRelationships, OpInsert, r.ID)
	return nil
}

// ListRelationships returns all explicit edges, oldest first.
func (q *Queries) ListRelationships(ctx context.Context) ([]models.Relationship, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+relationshipColumns+` FROM relationships ORDER BY created_at, rowid`)
	if err != nil {
		return nil, mapErr("list relationships", err)
	}
	defer rows.Close()

	out := []models.Relationship{}
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, mapErr("scan relationship", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
