// Package sqlite provides a contact.Store persisted in a SQLite database
// (pure-Go driver, no cgo). The schema is bootstrapped on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calweave/calweave/contact"
)

const schema = `
CREATE TABLE IF NOT EXISTS contacts (
	name       TEXT PRIMARY KEY,
	email      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is a SQLite-backed contact directory. Names are stored lowercased so
// lookups are case-insensitive.
type Store struct {
	db *sql.DB
}

var _ contact.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open contact db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap contact schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an existing database handle, ensuring the schema exists.
func NewFromDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("bootstrap contact schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindByName implements contact.Store.
func (s *Store) FindByName(ctx context.Context, name string) (*contact.Contact, error) {
	key := normalizeName(name)

	var c contact.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT name, email FROM contacts WHERE name = ?`, key,
	).Scan(&c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact %q: %w", name, err)
	}
	return &c, nil
}

// Save implements contact.Store, overwriting any existing mapping.
func (s *Store) Save(ctx context.Context, name, email string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at`,
		normalizeName(name), strings.TrimSpace(email), now, now,
	)
	if err != nil {
		return fmt.Errorf("save contact %q: %w", name, err)
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
