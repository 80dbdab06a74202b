// Package audit keeps an observability journal of selection
// transitions and confirm attempts. It records what users did, not
// booking state; losing journal rows never fails a transition.
package audit

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Event is one journaled selection transition.
type Event struct {
	ID        int64
	SessionID string
	EventType string // set_date, set_time, set_duration, index_updated, confirm
	Date      string
	Time      string
	Duration  int
	Reason    string
	Outcome   string // applied, rejected, blocked_by_floor, submitted
	CreatedAt time.Time
}

// Journal is a sqlite-backed append-only event log.
type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS selection_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	date TEXT,
	time TEXT,
	duration INTEGER,
	reason TEXT,
	outcome TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_selection_events_session ON selection_events(session_id);
`

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an event.
func (j *Journal) Record(ctx context.Context, e Event) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO selection_events (session_id, event_type, date, time, duration, reason, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.EventType, e.Date, e.Time, e.Duration, e.Reason, e.Outcome, time.Now().UTC(),
	)
	return err
}

// Events returns journaled events for a session, oldest first.
func (j *Journal) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, date, time, duration, reason, outcome, created_at
		 FROM selection_events WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Date, &e.Time,
			&e.Duration, &e.Reason, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// AllEvents returns the whole journal, oldest first.
func (j *Journal) AllEvents(ctx context.Context) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, date, time, duration, reason, outcome, created_at
		 FROM selection_events ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &e.Date, &e.Time,
			&e.Duration, &e.Reason, &e.Outcome, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
