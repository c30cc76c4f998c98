package trace

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	frames INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_name ON recordings (name, created_at);
`

// Recording summarizes one stored session.
type Recording struct {
	ID        string
	Name      string
	Frames    int
	CreatedAt time.Time
}

// SQLiteStore archives every saved session under a name. Load returns the
// newest recording for that name.
type SQLiteStore struct {
	db   *sql.DB
	name string
}

// OpenSQLite opens (and if needed creates) the archive at path. Use ":memory:"
// for a private in-memory database.
func OpenSQLite(path, name string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrUnavailable, err)
	}
	return NewSQLiteStore(db, name), nil
}

// NewSQLiteStore wraps an already initialized database.
func NewSQLiteStore(db *sql.DB, name string) *SQLiteStore {
	if name == "" {
		name = "default"
	}
	return &SQLiteStore{db: db, name: name}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Probe(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		"SELECT body FROM recordings WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
		s.name,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no recording named %q", ErrUnavailable, s.name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load recording: %v", ErrUnavailable, err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO recordings (id, name, frames, body, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), s.name, bytes.Count(data, []byte("\n")), string(data), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: save recording: %v", ErrUnavailable, err)
	}
	return nil
}

// List returns every recording, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, frames, created_at FROM recordings ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var recs []Recording
	for rows.Next() {
		var r Recording
		if err := rows.Scan(&r.ID, &r.Name, &r.Frames, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
