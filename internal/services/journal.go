package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stagesync/pkg/models"
)

// Journal is an append-only operational log of room sessions. Writes are fed
// through a buffered channel and applied on the journal's own goroutine, so
// the synchronization core's hot path never touches the database. The
// journal is never read back to restore rooms.
type Journal struct {
	database *sql.DB
	entries  chan journalEntry
	done     chan struct{}
}

type journalEntry struct {
	kind          string // "opened" or "closed"
	roomCode      string
	at            time.Time
	peakDevices   int
	eventsApplied int
}

// NewJournal creates a journal backed by the given database
func NewJournal(database *sql.DB) *Journal {
	return &Journal{
		database: database,
		entries:  make(chan journalEntry, 256),
		done:     make(chan struct{}),
	}
}

// Run drains the entry channel until Close is called
func (j *Journal) Run() {
	for entry := range j.entries {
		var err error
		switch entry.kind {
		case "opened":
			err = j.insertOpened(entry)
		case "closed":
			err = j.updateClosed(entry)
		}
		if err != nil {
			log.Printf("Journal write failed for room %s: %v", entry.roomCode, err)
		}
	}
	close(j.done)
}

// Close stops the journal after draining pending entries
func (j *Journal) Close() {
	close(j.entries)
	<-j.done
}

// RoomOpened records that a room session started
func (j *Journal) RoomOpened(roomCode string) {
	j.submit(journalEntry{kind: "opened", roomCode: roomCode, at: time.Now()})
}

// RoomClosed records that a room session ended, with its final counters
func (j *Journal) RoomClosed(roomCode string, peakDevices, eventsApplied int) {
	j.submit(journalEntry{
		kind:          "closed",
		roomCode:      roomCode,
		at:            time.Now(),
		peakDevices:   peakDevices,
		eventsApplied: eventsApplied,
	})
}

// submit never blocks the caller; a full buffer drops the entry
func (j *Journal) submit(entry journalEntry) {
	select {
	case j.entries <- entry:
	default:
		log.Printf("Journal buffer full, dropping %s entry for room %s", entry.kind, entry.roomCode)
	}
}

func (j *Journal) insertOpened(entry journalEntry) error {
	query := `INSERT INTO room_sessions (id, room_code, opened_at) VALUES (?, ?, ?)`
	if _, err := j.database.Exec(query, uuid.New().String(), entry.roomCode, entry.at); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (j *Journal) updateClosed(entry journalEntry) error {
	// Close the most recent open session for this room code
	query := `UPDATE room_sessions
		SET closed_at = ?, peak_devices = ?, events_applied = ?
		WHERE id = (
			SELECT id FROM room_sessions
			WHERE room_code = ? AND closed_at IS NULL
			ORDER BY opened_at DESC LIMIT 1
		)`
	result, err := j.database.Exec(query, entry.at, entry.peakDevices, entry.eventsApplied, entry.roomCode)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no open session for room %s", entry.roomCode)
	}
	return nil
}

// Recent returns the most recently opened sessions, newest first. It reads
// directly from the database and is safe to call from HTTP handlers.
func (j *Journal) Recent(limit int) ([]models.SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, room_code, opened_at, closed_at, peak_devices, events_applied
		FROM room_sessions ORDER BY opened_at DESC LIMIT ?`

	rows, err := j.database.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var record models.SessionRecord
		var closedAt sql.NullTime
		if err := rows.Scan(
			&record.ID,
			&record.RoomCode,
			&record.OpenedAt,
			&closedAt,
			&record.PeakDevices,
			&record.EventsApplied,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if closedAt.Valid {
			record.ClosedAt = &closedAt.Time
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
