package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"stagesync/internal/services"
	"stagesync/pkg/models"
)

// SessionHandler exposes the session journal for operators
type SessionHandler struct {
	journal *services.Journal
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(journal *services.Journal) *SessionHandler {
	return &SessionHandler{journal: journal}
}

// RecentSessionsResponse lists recently opened room sessions
type RecentSessionsResponse struct {
	Success  bool                   `json:"success"`
	Sessions []models.SessionRecord `json:"sessions"`
}

// RecentSessions returns the most recently opened room sessions
// GET /api/sessions/recent?limit=20
func (h *SessionHandler) RecentSessions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be a positive integer up to 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	sessions, err := h.journal.Recent(limit)
	if err != nil {
		log.Printf("Failed to read session journal: %v", err)
		http.Error(w, "failed to read sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []models.SessionRecord{}
	}

	response := RecentSessionsResponse{
		Success:  true,
		Sessions: sessions,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
