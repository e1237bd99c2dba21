package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// LoggedEvent is one entry of the event audit trail.
type LoggedEvent struct {
	ID        int64
	Name      string
	Resource  string
	RecordID  string
	CreatedAt time.Time
}

// EventLog records the push events emitted by the backend.
type EventLog struct {
	db *sql.DB
}

// NewEventLog creates a new EventLog with the given database connection
func NewEventLog(db *sql.DB) *EventLog {
	return &EventLog{db: db}
}

// Append stores an event
func (l *EventLog) Append(name, resource, recordID string) error {
	_, err := l.db.Exec(
		`INSERT INTO record_events (name, resource, record_id, created_at) VALUES (?, ?, ?, ?)`,
		name, resource, recordID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first
func (l *EventLog) Recent(limit int) ([]LoggedEvent, error) {
	rows, err := l.db.Query(
		`SELECT id, name, resource, record_id, created_at FROM record_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []LoggedEvent
	for rows.Next() {
		var e LoggedEvent
		if err := rows.Scan(&e.ID, &e.Name, &e.Resource, &e.RecordID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}
