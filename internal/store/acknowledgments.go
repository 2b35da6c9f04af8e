package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/starford/alignos/internal/models"
)

const ackColumns = `id, decision_id, person_id, acknowledged_at, created_at`

func scanAck(s scanner) (*models.Acknowledgment, error) {
	var (
		a  models.Acknowledgment
		at sql.NullTime
	)
	if err := s.Scan(&a.ID, &a.DecisionID, &a.PersonID, &at, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.AcknowledgedAt = timePtr(at)
	return &a, nil
}

// EnsureAcknowledgment creates a pending acknowledgment for (decision, person)
// unless one already exists, and returns the stored row.
func (q *Queries) EnsureAcknowledgment(ctx context.Context, decisionID, personID string) (*models.Acknowledgment, bool, error) {
	id := newID()
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO acknowledgments (`+ackColumns+`) VALUES (?, ?, ?, NULL, ?)
		ON CONFLICT(decision_id, person_id) DO NOTHING`,
		id, decisionID, personID, q.now())
	if err != nil {
		return nil, false, mapErr("insert acknowledgment", err)
	}
	n, _ := res.RowsAffected()
	created := n > 0
	if created {
		q.record(TableAcknowledgments, OpInsert, id)
	}
	a, err := scanAck(q.q.QueryRowContext(ctx,
		`SELECT `+ackColumns+` FROM acknowledgments WHERE decision_id = ? AND person_id = ?`, decisionID, personID))
	if err != nil {
		return nil, false, mapErr("get acknowledgment", err)
	}
	return a, created, nil
}

// MarkAcknowledged stamps the acknowledgment of personID on decisionID.
// Already acknowledged rows keep their original timestamp.
func (q *Queries) MarkAcknowledged(ctx context.Context, decisionID, personID string, at time.Time) (*models.Acknowledgment, error) {
	a, err := scanAck(q.q.QueryRowContext(ctx,
		`SELECT `+ackColumns+` FROM acknowledgments WHERE decision_id = ? AND person_id = ?`, decisionID, personID))
	if err != nil {
		return nil, mapErr("get acknowledgment", err)
	}
	if a.AcknowledgedAt != nil {
		return a, nil
	}
	if _, err := q.q.ExecContext(ctx, `UPDATE acknowledgments SET acknowledged_at = ? WHERE id = ?`, at, a.ID); err != nil {
		return nil, mapErr("acknowledge", err)
	}
	a.AcknowledgedAt = &at
	q.record(TableAcknowledgments, OpUpdate, a.ID)
	return a, nil
}

// ListAcknowledgments returns the stakeholders of a decision.
func (q *Queries) ListAcknowledgments(ctx context.Context, decisionID string) ([]models.Acknowledgment, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+ackColumns+` FROM acknowledgments WHERE decision_id = ? ORDER BY created_at, rowid`, decisionID)
	if err != nil {
		return nil, mapErr("list acknowledgments", err)
	}
	defer rows.Close()

	out := []models.Acknowledgment{}
	for rows.Next() {
		a, err := scanAck(rows)
		if err != nil {
			return nil, mapErr("scan acknowledgment", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AckCount is the acknowledgment tally of one decision.
type AckCount struct {
	Total        int `json:"total"`
	Acknowledged int `json:"acknowledged"`
}

// AckCounts tallies acknowledgments per decision id.
func (q *Queries) AckCounts(ctx context.Context) (map[string]AckCount, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT decision_id, count(*), count(acknowledged_at)
		FROM acknowledgments GROUP BY decision_id`)
	if err != nil {
		return nil, mapErr("ack counts", err)
	}
	defer rows.Close()

	out := make(map[string]AckCount)
	for rows.Next() {
		var (
			id string
			c  AckCount
		)
		if err := rows.Scan(&id, &c.Total, &c.Acknowledged); err != nil {
			return nil, mapErr("scan ack count", err)
		}
		out[id] = c
	}
	return out, rows.Err()
}
