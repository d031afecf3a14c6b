package eventsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the journal in a SQLite database. Optimistic
// concurrency is enforced by the (stream_id, version) primary key plus a
// version check inside the insert transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a journal database at path. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventsource: open database: %w", err)
	}
	// SQLite handles at most one writer.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventsource: migrate: %w", err)
	}
	return s, nil
}

// migrate creates the journal schema if it doesn't exist.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		data TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (stream_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, version);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, streamID string, expectedVersion int, events []*Event) (int, error) {
	if len(events) == 0 {
		return expectedVersion, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return -1, fmt.Errorf("eventsource: begin: %w", err)
	}
	defer tx.Rollback()

	current, err := streamVersionTx(ctx, tx, streamID)
	if err != nil {
		return -1, err
	}
	if expectedVersion != current {
		return current, ErrConcurrencyConflict
	}

	version := current
	for _, e := range events {
		version++
		e.StreamID = streamID
		e.Version = version
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream_id, version, id, type, data, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.StreamID, e.Version, e.ID, e.Type, string(e.Data), e.Timestamp.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return -1, fmt.Errorf("eventsource: insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return -1, fmt.Errorf("eventsource: commit: %w", err)
	}
	return version, nil
}

func streamVersionTx(ctx context.Context, tx *sql.Tx, streamID string) (int, error) {
	var v sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&v)
	if err != nil {
		return -1, fmt.Errorf("eventsource: stream version: %w", err)
	}
	if !v.Valid {
		return -1, nil
	}
	return int(v.Int64), nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, streamID string, fromVersion int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stream_id, version, id, type, data, created_at
		 FROM events WHERE stream_id = ? AND version >= ?
		 ORDER BY version`,
		streamID, fromVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("eventsource: read: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ReadAll implements Store.
func (s *SQLiteStore) ReadAll(ctx context.Context, filter EventFilter) ([]*Event, error) {
	query := `SELECT stream_id, version, id, type, data, created_at FROM events`
	var clauses []string
	var args []any
	if filter.StreamID != "" {
		clauses = append(clauses, "stream_id = ?")
		args = append(args, filter.StreamID)
	}
	if len(filter.Types) > 0 {
		placeholders := "?"
		args = append(args, filter.Types[0])
		for _, t := range filter.Types[1:] {
			placeholders += ", ?"
			args = append(args, t)
		}
		clauses = append(clauses, "type IN ("+placeholders+")")
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventsource: read all: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var e Event
		var data sql.NullString
		var createdAt string
		if err := rows.Scan(&e.StreamID, &e.Version, &e.ID, &e.Type, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("eventsource: scan event: %w", err)
		}
		if data.Valid && data.String != "" {
			e.Data = []byte(data.String)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("eventsource: parse timestamp: %w", err)
		}
		e.Timestamp = ts
		out = append(out, &e)
	}
	return out, rows.Err()
}

// StreamVersion implements Store.
func (s *SQLiteStore) StreamVersion(ctx context.Context, streamID string) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM events WHERE stream_id = ?`, streamID,
	).Scan(&v)
	if err != nil {
		return -1, fmt.Errorf("eventsource: stream version: %w", err)
	}
	if !v.Valid {
		return -1, nil
	}
	return int(v.Int64), nil
}

// DeleteStream implements Store.
func (s *SQLiteStore) DeleteStream(ctx context.Context, streamID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE stream_id = ?`, streamID)
	if err != nil {
		return fmt.Errorf("eventsource: delete stream: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
