package services

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"stagesync/internal/db"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	database, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.CreateTables(database); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return NewJournal(database)
}

func TestJournalRecordsSessionLifecycle(t *testing.T) {
	j := newTestJournal(t)
	go j.Run()

	j.RoomOpened("ABC123")
	j.RoomClosed("ABC123", 3, 42)
	j.Close() // drains pending entries

	records, err := j.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	record := records[0]
	if record.RoomCode != "ABC123" {
		t.Errorf("unexpected room code %q", record.RoomCode)
	}
	if record.ClosedAt == nil {
		t.Fatal("expected session to be closed")
	}
	if record.PeakDevices != 3 || record.EventsApplied != 42 {
		t.Errorf("unexpected counters: %+v", record)
	}
}

func TestJournalClosesMostRecentOpenSession(t *testing.T) {
	j := newTestJournal(t)
	go j.Run()

	// Same code opened twice: a room died and was recreated
	j.RoomOpened("ABC123")
	j.RoomClosed("ABC123", 1, 5)
	j.RoomOpened("ABC123")
	j.RoomClosed("ABC123", 4, 9)
	j.Close()

	records, err := j.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	for _, record := range records {
		if record.ClosedAt == nil {
			t.Errorf("session %s left open: %+v", record.ID, record)
		}
	}
}

func TestJournalRecentLimit(t *testing.T) {
	j := newTestJournal(t)
	go j.Run()

	for _, code := range []string{"AAAAAA", "BBBBBB", "CCCCCC"} {
		j.RoomOpened(code)
	}
	j.Close()

	records, err := j.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected limit to apply, got %d records", len(records))
	}
}
