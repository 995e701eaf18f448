package services

import (
	"encoding/json"
	"time"

	"stagesync/pkg/models"
)

// StateStore holds the authoritative state record per room. Like the
// registry, it is owned by the synchronization core's event loop and is not
// safe for concurrent use.
type StateStore struct {
	rooms map[string]*models.RoomState
}

// NewStateStore creates an empty store
func NewStateStore() *StateStore {
	return &StateStore{rooms: make(map[string]*models.RoomState)}
}

// GetOrCreate returns the room's state, creating the default record if the
// room has not been seen before. created reports whether it was new.
func (s *StateStore) GetOrCreate(roomID string) (state *models.RoomState, created bool) {
	if state, ok := s.rooms[roomID]; ok {
		return state, false
	}
	state = models.NewRoomState(roomID)
	s.rooms[roomID] = state
	return state, true
}

// Get returns the room's state if it exists
func (s *StateStore) Get(roomID string) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	return state, ok
}

// SetSlide overwrites the slide position unconditionally. The authoritative
// device is trusted to send a sane value; no clamping happens here. A
// totalSlides value is only taken when positive, so an unknown count can
// never overwrite a known one.
func (s *StateStore) SetSlide(roomID string, slideIndex int, totalSlides *int) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	state.SlideIndex = slideIndex
	if totalSlides != nil && *totalSlides > 0 {
		state.TotalSlides = *totalSlides
	}
	state.Touch()
	return state, true
}

// SetTotalSlides overwrites the slide count only, used when the stage device
// finishes rendering before any navigation happens. Values <= 0 are ignored.
func (s *StateStore) SetTotalSlides(roomID string, totalSlides int) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	if totalSlides > 0 {
		state.TotalSlides = totalSlides
	}
	state.Touch()
	return state, true
}

// SetToggle overwrites exactly one of the four boolean toggles
func (s *StateStore) SetToggle(roomID string, toggle models.Toggle, value bool) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	switch toggle {
	case models.ToggleFullscreen:
		state.IsFullscreen = value
	case models.TogglePlay:
		state.IsPlaying = value
	case models.ToggleGrid:
		state.ShowGrid = value
	case models.TogglePrivacy:
		state.IsPrivacyMode = value
	default:
		return nil, false
	}
	state.Touch()
	return state, true
}

// SetTimer overwrites the opaque timer payload without interpreting it
func (s *StateStore) SetTimer(roomID string, timerState json.RawMessage) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	state.TimerState = timerState
	state.Touch()
	return state, true
}

// Tick overwrites the last-broadcast remaining-seconds value
func (s *StateStore) Tick(roomID string, remaining int) (*models.RoomState, bool) {
	state, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	state.TimerRemaining = remaining
	state.Touch()
	return state, true
}

// Destroy drops the state record for a room
func (s *StateStore) Destroy(roomID string) {
	delete(s.rooms, roomID)
}

// Len returns the number of rooms with live state
func (s *StateStore) Len() int {
	return len(s.rooms)
}

// IdleSince returns the codes of rooms whose last activity is older than the
// cutoff. The sweep is a defensive backstop: empty rooms are destroyed the
// moment their last device leaves, so anything found here is leaked state.
func (s *StateStore) IdleSince(cutoff time.Time) []string {
	var idle []string
	for code, state := range s.rooms {
		if state.LastActivity.Before(cutoff) {
			idle = append(idle, code)
		}
	}
	return idle
}
