package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"stagesync/internal/db"
	"stagesync/internal/services"
)

func newTestSessionHandler(t *testing.T) *SessionHandler {
	t.Helper()
	database, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.CreateTables(database); err != nil {
		t.Fatalf("create tables: %v", err)
	}

	journal := services.NewJournal(database)
	go journal.Run()
	journal.RoomOpened("ABC123")
	journal.RoomClosed("ABC123", 2, 17)
	journal.Close()

	return NewSessionHandler(journal)
}

func TestRecentSessions(t *testing.T) {
	handler := newTestSessionHandler(t)

	request := httptest.NewRequest(http.MethodGet, "/api/sessions/recent", nil)
	recorder := httptest.NewRecorder()
	handler.RecentSessions(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}

	var response RecentSessionsResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !response.Success || len(response.Sessions) != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
	session := response.Sessions[0]
	if session.RoomCode != "ABC123" || session.PeakDevices != 2 || session.EventsApplied != 17 {
		t.Errorf("unexpected session: %+v", session)
	}
}

func TestRecentSessionsRejectsBadLimit(t *testing.T) {
	handler := newTestSessionHandler(t)

	for _, limit := range []string{"0", "-3", "junk", "9999"} {
		request := httptest.NewRequest(http.MethodGet, "/api/sessions/recent?limit="+limit, nil)
		recorder := httptest.NewRecorder()
		handler.RecentSessions(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Errorf("limit %q: expected 400, got %d", limit, recorder.Code)
		}
	}
}
