package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/alignos/internal/apperr"
	"github.com/starford/alignos/internal/models"
)

// Notifier receives one call per committed row change.
type Notifier interface {
	Notify(table, op, id string)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every table operation. It runs either directly on the
// connection (DB) or inside a transaction (Tx).
type Queries struct {
	q      querier
	now    func() time.Time
	record func(table, op, id string)
}

// DB wraps a sql.DB with AlignOS table operations.
type DB struct {
	*Queries
	conn     *sql.DB
	notifier Notifier
}

// Tx is a transaction; changes are reported to the Notifier after commit.
type Tx struct {
	*Queries
	pending []change
}

type change struct {
	table, op, id string
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	db := &DB{conn: conn}
	db.Queries = &Queries{q: conn, now: utcNow, record: db.notify}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// SetNotifier installs the change listener. Call before serving traffic.
func (db *DB) SetNotifier(n Notifier) {
	db.notifier = n
}

// SetClock overrides the timestamp source; used by tests.
func (db *DB) SetClock(now func() time.Time) {
	db.Queries.now = now
}

func (db *DB) notify(table, op, id string) {
	if db.notifier != nil {
		db.notifier.Notify(table, op, id)
	}
}

// WithTx runs fn inside a single transaction. The transaction is committed
// when fn returns nil and rolled back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // no-op after commit

	tx := &Tx{}
	tx.Queries = &Queries{
		q:   sqlTx,
		now: db.Queries.now,
		record: func(table, op, id string) {
			tx.pending = append(tx.pending, change{table: table, op: op, id: id})
		},
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	for _, c := range tx.pending {
		db.notify(c.table, c.op, c.id)
	}
	return nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func newID() string {
	return uuid.NewString()
}

// mapErr translates driver errors into apperr sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrNotFound)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("store: %s: %w: %v", op, apperr.ErrConflict, err)
		}
		return fmt.Errorf("store: %s: %w: %v", op, apperr.ErrValidation, err)
	}
	return fmt.Errorf("store: %s: %w", op, err)
}

// mustAffect returns ErrNotFound when an update matched no row.
func mustAffect(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: %s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", op, apperr.ErrNotFound)
	}
	return nil
}

func encodeMetadata(m models.Metadata) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(s sql.NullString) models.Metadata {
	if !s.Valid || s.String == "" {
		return nil
	}
	var m models.Metadata
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
