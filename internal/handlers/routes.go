package handlers

import (
	"github.com/gorilla/mux"
)

// SetupRoutes wires all handlers into the router. sessionHandler may be nil
// when the service runs without the session journal.
func SetupRoutes(wsHandler *WebSocketHandler, healthHandler *HealthHandler, sessionHandler *SessionHandler) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/ws", wsHandler.ServeWS)
	router.HandleFunc("/health", healthHandler.HealthCheck).Methods("GET")
	if sessionHandler != nil {
		router.HandleFunc("/api/sessions/recent", sessionHandler.RecentSessions).Methods("GET")
	}

	return router
}
