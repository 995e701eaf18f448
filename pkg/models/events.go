package models

import "encoding/json"

// Client-to-server event names
const (
	EventJoinRoom         = "join-room"
	EventLeaveRoom        = "leave-room"
	EventSlideChange      = "slide-change"
	EventSetTotalSlides   = "set-total-slides"
	EventToggleFullscreen = "toggle-fullscreen"
	EventTogglePlay       = "toggle-play"
	EventToggleGrid       = "toggle-grid"
	EventTogglePrivacy    = "toggle-privacy"
	EventTimerUpdate      = "timer-update"
	EventTimerTick        = "timer-tick"
	EventUpdateRole       = "update-role"
	EventAnnotationData   = "annotation-data"
	EventClearAnnotations = "clear-annotations"
)

// Server-to-client event names
const (
	EventSlideSync          = "slide-sync"
	EventRoomUpdated        = "room-updated"
	EventStateSync          = "state-sync"
	EventFullscreenSync     = "fullscreen-sync"
	EventPlaySync           = "play-sync"
	EventGridSync           = "grid-sync"
	EventPrivacySync        = "privacy-sync"
	EventTimerSync          = "timer-sync"
	EventTimerTickSync      = "timer-tick"
	EventAnnotationReceived = "annotation-received"
	EventAnnotationsCleared = "annotations-cleared"
)

// ClientEvent is the flat inbound envelope for every client-to-server event.
// Optional fields are pointers so a missing field is distinguishable from a
// zero value; events with a required field absent are dropped.
type ClientEvent struct {
	Event       string          `json:"event"`
	RoomID      string          `json:"roomId"`
	Role        Role            `json:"role,omitempty"`
	DeviceName  string          `json:"deviceName,omitempty"`
	SlideIndex  *int            `json:"slideIndex,omitempty"`
	TotalSlides *int            `json:"totalSlides,omitempty"`
	Value       *bool           `json:"value,omitempty"`
	Remaining   *int            `json:"remaining,omitempty"`
	TimerState  json.RawMessage `json:"timerState,omitempty"`
	SlideID     string          `json:"slideId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// SlideSync tells every device in a room where the presentation is now.
// It is echoed to the sender as well, so a remote can confirm the stage
// really landed on the slide it asked for.
type SlideSync struct {
	Event       string `json:"event"`
	RoomID      string `json:"roomId"`
	SlideIndex  int    `json:"slideIndex"`
	TotalSlides int    `json:"totalSlides"`
	SourceID    string `json:"sourceId,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// RoomUpdated carries the current device roster of a room
type RoomUpdated struct {
	Event        string   `json:"event"`
	RoomID       string   `json:"roomId"`
	Devices      []Device `json:"devices"`
	TotalDevices int      `json:"totalDevices"`
	TotalSlides  int      `json:"totalSlides,omitempty"`
}

// StateSync is unicast to a device right after it joins, carrying the full
// current room state so a reconnecting device can resynchronize.
type StateSync struct {
	Event string `json:"event"`
	State RoomState
}

// MarshalJSON flattens the room state next to the event discriminator
func (s StateSync) MarshalJSON() ([]byte, error) {
	type alias RoomState
	return json.Marshal(struct {
		Event string `json:"event"`
		alias
	}{Event: s.Event, alias: alias(s.State)})
}

// ToggleSync carries one boolean presentation mode to the other devices
type ToggleSync struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId"`
	Value  bool   `json:"value"`
}

// TimerSync relays an opaque timer payload to the other devices
type TimerSync struct {
	Event      string          `json:"event"`
	RoomID     string          `json:"roomId"`
	TimerState json.RawMessage `json:"timerState"`
}

// TimerTick relays the remaining-seconds counter to the other devices
type TimerTick struct {
	Event     string `json:"event"`
	RoomID    string `json:"roomId"`
	Remaining int    `json:"remaining"`
}

// AnnotationEvent relays an opaque annotation payload, tagged with the
// connection that produced it
type AnnotationEvent struct {
	Event    string          `json:"event"`
	RoomID   string          `json:"roomId"`
	SlideID  string          `json:"slideId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SourceID string          `json:"sourceId"`
}
