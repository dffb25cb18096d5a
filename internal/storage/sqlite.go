package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pfrederiksen/avl-events/internal/event"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		address TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL DEFAULT 0,
		image_url TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		venue_id INTEGER NOT NULL REFERENCES venues(id),
		start_date TEXT NOT NULL,
		end_date TEXT,
		start_time TEXT NOT NULL DEFAULT '',
		end_time TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL DEFAULT '',
		ticket_url TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		age_restriction TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		artist_info TEXT NOT NULL DEFAULT '',
		is_featured BOOLEAN NOT NULL DEFAULT FALSE,
		is_sold_out BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'upcoming' CHECK (status IN ('upcoming', 'past', 'cancelled')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_venue_start ON events(venue_id, start_date)`,
	`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
}

const eventColumns = `id, title, description, venue_id, start_date, end_date, start_time, end_time,
	price, ticket_url, genre, age_restriction, image_url, artist_info, is_featured, is_sold_out,
	status, created_at, updated_at`

// SQLite is a Store backed by a SQLite database file
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the database at path and applies the schema.
// ":memory:" opens a private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; venue pipelines insert concurrently
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

// VenueByName returns the venue with the exact name, or ErrNotFound
func (s *SQLite) VenueByName(ctx context.Context, name string) (*event.Venue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, website, description, capacity, image_url FROM venues WHERE name = ?`, name)

	v := &event.Venue{}
	err := row.Scan(&v.ID, &v.Name, &v.Address, &v.Website, &v.Description, &v.Capacity, &v.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying venue %q: %w", name, err)
	}
	return v, nil
}

// AllVenues returns every venue ordered by name
func (s *SQLite) AllVenues(ctx context.Context) ([]*event.Venue, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, website, description, capacity, image_url FROM venues ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying venues: %w", err)
	}
	defer rows.Close()

	venues := make([]*event.Venue, 0)
	for rows.Next() {
		v := &event.Venue{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Address, &v.Website, &v.Description, &v.Capacity, &v.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// CreateVenue stores venue and returns it with its assigned ID
func (s *SQLite) CreateVenue(ctx context.Context, venue *event.Venue) (*event.Venue, error) {
	if venue.Name == "" {
		return nil, errors.New("venue name is required")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO venues (name, address, website, description, capacity, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		venue.Name, venue.Address, venue.Website, venue.Description, venue.Capacity, venue.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("inserting venue %q: %w", venue.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading venue id: %w", err)
	}

	stored := *venue
	stored.ID = id
	return &stored, nil
}

// EventsByVenue returns a venue's events, latest start first
func (s *SQLite) EventsByVenue(ctx context.Context, venueID int64) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE venue_id = ? ORDER BY start_date DESC`, venueID)
	if err != nil {
		return nil, fmt.Errorf("querying events for venue %d: %w", venueID, err)
	}
	return scanEvents(rows)
}

// AllEvents returns every event, latest start first
func (s *SQLite) AllEvents(ctx context.Context) ([]*event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return scanEvents(rows)
}

// CreateEvent stores evt and returns it with its ID and timestamps set
func (s *SQLite) CreateEvent(ctx context.Context, evt *event.Event) (*event.Event, error) {
	stored := *evt
	if stored.Status == "" {
		stored.Status = event.StatusUpcoming
	}
	if err := validateEvent(&stored); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	var endDate interface{}
	if stored.EndDate != nil {
		endDate = formatTime(*stored.EndDate)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, description, venue_id, start_date, end_date, start_time, end_time,
			price, ticket_url, genre, age_restriction, image_url, artist_info, is_featured, is_sold_out,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.Title, stored.Description, stored.VenueID, formatTime(stored.StartDate), endDate,
		stored.StartTime, stored.EndTime, stored.Price, stored.TicketURL, stored.Genre,
		stored.AgeRestriction, stored.ImageURL, stored.ArtistInfo, stored.IsFeatured, stored.IsSoldOut,
		string(stored.Status), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting event %q: %w", stored.Title, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading event id: %w", err)
	}
	stored.ID = id
	return &stored, nil
}

// UpdateEventStatus sets an event's status, or returns ErrNotFound
func (s *SQLite) UpdateEventStatus(ctx context.Context, id int64, status event.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid event status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("updating event %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating event %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", id, ErrNotFound)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]*event.Event, error) {
	defer rows.Close()

	events := make([]*event.Event, 0)
	for rows.Next() {
		var (
			evt                 event.Event
			start, created, upd string
			end                 sql.NullString
			status              string
		)
		err := rows.Scan(&evt.ID, &evt.Title, &evt.Description, &evt.VenueID, &start, &end,
			&evt.StartTime, &evt.EndTime, &evt.Price, &evt.TicketURL, &evt.Genre, &evt.AgeRestriction,
			&evt.ImageURL, &evt.ArtistInfo, &evt.IsFeatured, &evt.IsSoldOut, &status, &created, &upd)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		if evt.StartDate, err = parseTime(start); err != nil {
			return nil, err
		}
		if end.Valid {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, err
			}
			evt.EndDate = &t
		}
		if evt.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if evt.UpdatedAt, err = parseTime(upd); err != nil {
			return nil, err
		}
		evt.Status = event.Status(status)

		events = append(events, &evt)
	}
	return events, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
