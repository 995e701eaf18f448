package handlers

import (
	"encoding/json"
	"net/http"

	"stagesync/internal/services"
)

// HealthHandler exposes the liveness probe
type HealthHandler struct {
	service *services.WebSocketService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.WebSocketService) *HealthHandler {
	return &HealthHandler{service: service}
}

// HealthResponse reports service status and current load
type HealthResponse struct {
	Status            string `json:"status"`
	ActiveConnections int    `json:"activeConnections"`
	ActiveRooms       int    `json:"activeRooms"`
}

// HealthCheck returns the health status of the service
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:            "ok",
		ActiveConnections: h.service.ActiveConnections(),
		ActiveRooms:       h.service.ActiveRooms(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
