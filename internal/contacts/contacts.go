// Package contacts stores the assistant's per-contact recommendations.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a contact has no details yet.
var ErrNotFound = errors.New("contact not found")

// Details is one row of the contact details table.
type Details struct {
	ContactID        string    `json:"contactId"`
	CallerTranscript string    `json:"callerTranscript"`
	RecommendedSOP   string    `json:"recommendedSOP"`
	Jurisdiction     string    `json:"jurisdiction"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

const schema = `
	CREATE TABLE IF NOT EXISTS contact_details (
		contactId TEXT PRIMARY KEY,
		callerTranscript TEXT NOT NULL DEFAULT '',
		recommendedSOP TEXT NOT NULL DEFAULT '',
		jurisdiction TEXT NOT NULL DEFAULT '',
		updatedAt REAL NOT NULL
	);
`

// Store provides access to the contact details table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the table exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert sets the transcript, recommended procedures and jurisdiction for a contact.
func (s *Store) Upsert(ctx context.Context, d Details) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_details (contactId, callerTranscript, recommendedSOP, jurisdiction, updatedAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contactId) DO UPDATE SET
			callerTranscript = excluded.callerTranscript,
			recommendedSOP = excluded.recommendedSOP,
			jurisdiction = excluded.jurisdiction,
			updatedAt = excluded.updatedAt
	`, d.ContactID, d.CallerTranscript, d.RecommendedSOP, d.Jurisdiction, unixFromTime(d.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert contact %s: %w", d.ContactID, err)
	}
	return nil
}

// Get returns the details for a contact.
func (s *Store) Get(ctx context.Context, contactID string) (Details, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT contactId, callerTranscript, recommendedSOP, jurisdiction, updatedAt
		FROM contact_details
		WHERE contactId = ?
	`, contactID)

	var d Details
	var updatedAt float64
	if err := row.Scan(&d.ContactID, &d.CallerTranscript, &d.RecommendedSOP, &d.Jurisdiction, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Details{}, fmt.Errorf("%w: %s", ErrNotFound, contactID)
		}
		return Details{}, fmt.Errorf("get contact %s: %w", contactID, err)
	}
	d.UpdatedAt = timeFromUnix(updatedAt)
	return d, nil
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
