// Package sqlite persists chores in a SQLite database (pure-Go driver). The
// schema is bootstrapped on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calweave/calweave/chore"
)

const schema = `
CREATE TABLE IF NOT EXISTS chores (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	name                 TEXT    NOT NULL,
	frequency_days       INTEGER NOT NULL,
	duration_minutes     INTEGER NOT NULL,
	preferred_time_start TEXT    NOT NULL,
	preferred_time_end   TEXT    NOT NULL,
	last_done            TEXT,
	next_due             TEXT    NOT NULL,
	assigned_to          TEXT    NOT NULL,
	calendar_event_id    TEXT,
	active               INTEGER NOT NULL DEFAULT 1
);
`

const choreColumns = `id, name, frequency_days, duration_minutes, preferred_time_start,
	preferred_time_end, COALESCE(last_done, ''), next_due, assigned_to,
	COALESCE(calendar_event_id, ''), active`

// Store is a SQLite-backed chore.Store.
type Store struct {
	db *sql.DB
}

var _ chore.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open chore db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap chore schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add implements chore.Store. An empty NextDue defaults to today.
func (s *Store) Add(ctx context.Context, c chore.Chore) (chore.Chore, error) {
	if c.NextDue == "" {
		c.NextDue = time.Now().Format("2006-01-02")
	}
	c.Active = true

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chores (name, frequency_days, duration_minutes, preferred_time_start,
			preferred_time_end, last_done, next_due, assigned_to, calendar_event_id, active)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?, NULLIF(?, ''), 1)`,
		c.Name, c.FrequencyDays, c.DurationMinutes, c.PreferredStart,
		c.PreferredEnd, c.NextDue, c.AssignedTo, c.CalendarEventID,
	)
	if err != nil {
		return chore.Chore{}, fmt.Errorf("add chore %q: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return chore.Chore{}, fmt.Errorf("add chore %q: %w", c.Name, err)
	}
	c.ID = id
	return c, nil
}

// Get implements chore.Store.
func (s *Store) Get(ctx context.Context, id int64) (chore.Chore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+choreColumns+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chore.Chore{}, chore.ErrNotFound
	}
	if err != nil {
		return chore.Chore{}, fmt.Errorf("get chore %d: %w", id, err)
	}
	return c, nil
}

// List implements chore.Store.
func (s *Store) List(ctx context.Context, activeOnly bool) ([]chore.Chore, error) {
	query := `SELECT ` + choreColumns + ` FROM chores`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY next_due, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

// ListDue implements chore.Store.
func (s *Store) ListDue(ctx context.Context, date string) ([]chore.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreColumns+` FROM chores WHERE active = 1 AND next_due <= ? ORDER BY next_due, id`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list due chores: %w", err)
	}
	defer rows.Close()
	return collectChores(rows)
}

// MarkDone implements chore.Store.
func (s *Store) MarkDone(ctx context.Context, id int64, doneDate string) (chore.Chore, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return chore.Chore{}, err
	}

	done, err := time.Parse("2006-01-02", doneDate)
	if err != nil {
		return chore.Chore{}, fmt.Errorf("mark chore %d done: invalid date %q", id, doneDate)
	}
	nextDue := done.AddDate(0, 0, c.FrequencyDays).Format("2006-01-02")

	if _, err := s.db.ExecContext(ctx,
		`UPDATE chores SET last_done = ?, next_due = ? WHERE id = ?`,
		doneDate, nextDue, id,
	); err != nil {
		return chore.Chore{}, fmt.Errorf("mark chore %d done: %w", id, err)
	}

	c.LastDone = doneDate
	c.NextDue = nextDue
	return c, nil
}

// Delete implements chore.Store (soft delete).
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return fmt.Errorf("delete chore %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chore %d: %w", id, err)
	}
	if n == 0 {
		return chore.ErrNotFound
	}
	return nil
}

// SetCalendarEventID implements chore.Store.
func (s *Store) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET calendar_event_id = NULLIF(?, '') WHERE id = ?`, eventID, id)
	if err != nil {
		return fmt.Errorf("link chore %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("link chore %d: %w", id, err)
	}
	if n == 0 {
		return chore.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChore(row scanner) (chore.Chore, error) {
	var c chore.Chore
	var active int
	err := row.Scan(&c.ID, &c.Name, &c.FrequencyDays, &c.DurationMinutes,
		&c.PreferredStart, &c.PreferredEnd, &c.LastDone, &c.NextDue,
		&c.AssignedTo, &c.CalendarEventID, &active)
	if err != nil {
		return chore.Chore{}, err
	}
	c.Active = active != 0
	return c, nil
}

func collectChores(rows *sql.Rows) ([]chore.Chore, error) {
	var out []chore.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chores: %w", err)
	}
	return out, nil
}
