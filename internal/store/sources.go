package store

import (
	"context"
	"database/sql"

	"github.com/starford/alignos/internal/models"
)

const sourceColumns = `id, type, raw_content, processed_content, metadata, created_at`

func scanSource(s scanner) (*models.Source, error) {
	var (
		src       models.Source
		processed sql.NullString
		meta      sql.NullString
	)
	if err := s.Scan(&src.ID, &src.Type, &src.RawContent, &processed, &meta, &src.CreatedAt); err != nil {
		return nil, err
	}
	src.ProcessedContent = stringPtr(processed)
	src.Metadata = decodeMetadata(meta)
	return &src, nil
}

// InsertSource stores raw ingested content.
func (q *Queries) InsertSource(ctx context.Context, s *models.Source) error {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = q.now()
	}
	meta, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}
	_, err = q.q.ExecContext(ctx, `INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Type, s.RawContent, nullString(s.ProcessedContent), meta, s.CreatedAt)
	if err != nil {
		return mapErr("insert source", err)
	}
	q.record(TableSources, OpInsert, s.ID)
	return nil
}

// SetSourceProcessed stores the processed form (e.g. extraction summary) of a source.
func (q *Queries) SetSourceProcessed(ctx context.Context, id, processed string) error {
	res, err := q.q.ExecContext(ctx, `UPDATE sources SET processed_content = ? WHERE id = ?`, processed, id)
	if err != nil {
		return mapErr("update source", err)
	}
	if err := mustAffect("update source", res); err != nil {
		return err
	}
	q.record(TableSources, OpUpdate, id)
	return nil
}

// SourceByChecksum finds a source whose metadata carries the given checksum.
func (q *Queries) SourceByChecksum(ctx context.Context, sum string) (*models.Source, error) {
	s, err := scanSource(q.q.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE json_extract(metadata, '$.checksum') = ? LIMIT 1`, sum))
	if err != nil {
		return nil, mapErr("source by checksum", err)
	}
	return s, nil
}

// ListSources returns sources, newest first.
func (q *Queries) ListSources(ctx context.Context, limit int) ([]models.Source, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, mapErr("list sources", err)
	}
	defer rows.Close()

	out := []models.Source{}
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, mapErr("scan source", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

const documentColumns = `id, title, content, source_url, type, created_at`

func scanDocument(s scanner) (*models.Document, error) {
	var (
		d       models.Document
		content sql.NullString
		url     sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Title, &content, &url, &d.Type, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Content = stringPtr(content)
	d.SourceURL = stringPtr(url)
	return &d, nil
}

// InsertDocument stores a document. Type defaults to document.
func (q *Queries) InsertDocument(ctx context.Context, d *models.Document) error {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = q.now()
	}
	if d.Type == "" {
		d.Type = models.DocumentDocument
	}
	_, err := q.q.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, nullString(d.Content), nullString(d.SourceURL), d.Type, d.CreatedAt)
	if err != nil {
		return mapErr("insert document", err)
	}
	q.record(TableDocuments, OpInsert, d.ID)
	return nil
}

// ListDocuments returns documents, newest first.
func (q *Queries) ListDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, mapErr("list documents", err)
	}
	defer rows.Close()

	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, mapErr("scan document", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
