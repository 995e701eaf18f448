package models

import (
	"encoding/json"
	"regexp"
	"time"
)

// Role describes what a device does inside a room
type Role string

const (
	RoleStage        Role = "stage"
	RoleRemote       Role = "remote"
	RoleTeleprompter Role = "teleprompter"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStage, RoleRemote, RoleTeleprompter:
		return true
	}
	return false
}

// Toggle identifies one of the four boolean presentation modes
type Toggle string

const (
	ToggleFullscreen Toggle = "fullscreen"
	TogglePlay       Toggle = "play"
	ToggleGrid       Toggle = "grid"
	TogglePrivacy    Toggle = "privacy"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ValidRoomCode reports whether code is a well-formed 6-character room code
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// Device represents one connected client registered in a room
type Device struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"-"`
}

// RoomState is the authoritative mutable record for one room.
// Timer payloads are opaque: the server stores and relays them without
// interpreting the contents.
type RoomState struct {
	Code           string          `json:"roomId"`
	SlideIndex     int             `json:"slideIndex"`
	TotalSlides    int             `json:"totalSlides"`
	IsFullscreen   bool            `json:"isFullscreen"`
	IsPlaying      bool            `json:"isPlaying"`
	ShowGrid       bool            `json:"showGrid"`
	IsPrivacyMode  bool            `json:"isPrivacyMode"`
	TimerState     json.RawMessage `json:"timerState,omitempty"`
	TimerRemaining int             `json:"timerRemaining,omitempty"`
	CreatedAt      time.Time       `json:"-"`
	LastActivity   time.Time       `json:"-"`
}

// NewRoomState creates the default state for a freshly opened room
func NewRoomState(code string) *RoomState {
	now := time.Now()
	return &RoomState{
		Code:         code,
		SlideIndex:   1,
		TotalSlides:  0,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity on the room
func (s *RoomState) Touch() {
	s.LastActivity = time.Now()
}

// SessionRecord is one row of the session journal
type SessionRecord struct {
	ID            string     `json:"id"`
	RoomCode      string     `json:"roomCode"`
	OpenedAt      time.Time  `json:"openedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	PeakDevices   int        `json:"peakDevices"`
	EventsApplied int        `json:"eventsApplied"`
}
