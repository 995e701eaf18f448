package services

import (
	"errors"
	"time"

	"stagesync/pkg/models"
)

// ErrNotRegistered is returned when an operation targets a connection that is
// not currently a member of any room.
var ErrNotRegistered = errors.New("connection is not registered in any room")

// roomMembers keeps a room's devices both indexed by connection id and in
// join order, so the roster broadcast is stable.
type roomMembers struct {
	byID  map[string]*models.Device
	order []*models.Device
}

func (m *roomMembers) remove(connID string) {
	if _, ok := m.byID[connID]; !ok {
		return
	}
	delete(m.byID, connID)
	for i, d := range m.order {
		if d.ID == connID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Registry tracks which devices, with which role and name, are members of
// which room. It is owned exclusively by the synchronization core's event
// loop; nothing here is safe for concurrent use.
type Registry struct {
	rooms      map[string]*roomMembers
	membership map[string]string // connection id -> room code
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]*roomMembers),
		membership: make(map[string]string),
	}
}

// Register inserts or overwrites the device entry for connID in roomID,
// creating the room entry if absent. If the connection was registered in a
// different room it is removed from that room first; priorRoom names it and
// priorEmptied reports whether the removal left it empty (the caller is
// responsible for tearing down its state).
func (r *Registry) Register(roomID, connID string, role models.Role, name string) (priorRoom string, priorEmptied bool) {
	if current, ok := r.membership[connID]; ok && current != roomID {
		priorRoom = current
		priorEmptied = r.removeFromRoom(current, connID)
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = &roomMembers{byID: make(map[string]*models.Device)}
		r.rooms[roomID] = room
	}

	if existing, ok := room.byID[connID]; ok {
		// Re-join of the same room just refreshes role and name
		existing.Role = role
		existing.Name = name
	} else {
		device := &models.Device{ID: connID, Role: role, Name: name, JoinedAt: time.Now()}
		room.byID[connID] = device
		room.order = append(room.order, device)
	}
	r.membership[connID] = roomID
	return priorRoom, priorEmptied
}

// UpdateRole mutates the role and name of an existing device entry
func (r *Registry) UpdateRole(connID string, role models.Role, name string) (string, error) {
	roomID, ok := r.membership[connID]
	if !ok {
		return "", ErrNotRegistered
	}
	device := r.rooms[roomID].byID[connID]
	device.Role = role
	if name != "" {
		device.Name = name
	}
	return roomID, nil
}

// Unregister removes the device from whichever room it belongs to.
// emptied reports whether the room's device set became empty.
func (r *Registry) Unregister(connID string) (roomID string, emptied bool, ok bool) {
	roomID, ok = r.membership[connID]
	if !ok {
		return "", false, false
	}
	emptied = r.removeFromRoom(roomID, connID)
	return roomID, emptied, true
}

func (r *Registry) removeFromRoom(roomID, connID string) (emptied bool) {
	delete(r.membership, connID)
	room, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	room.remove(connID)
	if len(room.byID) == 0 {
		delete(r.rooms, roomID)
		return true
	}
	return false
}

// ListDevices returns the room's devices ordered by join time. An unknown
// room yields an empty slice: room absence is a normal transient state.
func (r *Registry) ListDevices(roomID string) []models.Device {
	room, ok := r.rooms[roomID]
	if !ok {
		return []models.Device{}
	}
	devices := make([]models.Device, 0, len(room.order))
	for _, d := range room.order {
		devices = append(devices, *d)
	}
	return devices
}

// RoomOf returns the room a connection currently belongs to
func (r *Registry) RoomOf(connID string) (string, bool) {
	roomID, ok := r.membership[connID]
	return roomID, ok
}

// DeviceCount returns the number of devices in a room
func (r *Registry) DeviceCount(roomID string) int {
	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.byID)
}

// RoomCount returns the number of active rooms
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}
