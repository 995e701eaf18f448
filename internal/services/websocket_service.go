package services

import (
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"stagesync/internal/config"
	"stagesync/pkg/models"
)

// Conn is the core's view of one connected device. Send must not block:
// it reports false when the connection's output buffer is full, and the
// core responds by dropping the connection.
type Conn interface {
	ID() string
	Send(message []byte) bool
	Close()
}

type inboundEvent struct {
	conn Conn
	data []byte
}

// roomStats accumulates per-room counters for the session journal
type roomStats struct {
	peakDevices   int
	eventsApplied int
}

// WebSocketService is the synchronization core: a single event-processing
// loop that owns the device registry and the room state store. Every
// inbound event, registration, and disconnect funnels through Run's
// goroutine, so each read-modify-write is atomic relative to all others and
// the stores need no locks.
type WebSocketService struct {
	cfg      *config.Config
	registry *Registry
	store    *StateStore
	journal  *Journal // optional

	conns map[string]Conn
	stats map[string]*roomStats

	register   chan Conn
	unregister chan Conn
	inbound    chan inboundEvent
	stop       chan struct{}

	connCount atomic.Int64
	roomCount atomic.Int64
}

// NewWebSocketService creates the core. journal may be nil to run without
// the session log.
func NewWebSocketService(cfg *config.Config, journal *Journal) *WebSocketService {
	return &WebSocketService{
		cfg:        cfg,
		registry:   NewRegistry(),
		store:      NewStateStore(),
		journal:    journal,
		conns:      make(map[string]Conn),
		stats:      make(map[string]*roomStats),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		inbound:    make(chan inboundEvent, 256),
		stop:       make(chan struct{}),
	}
}

// Register hands a new connection to the event loop
func (s *WebSocketService) Register(conn Conn) {
	s.register <- conn
}

// Unregister hands a closed connection to the event loop
func (s *WebSocketService) Unregister(conn Conn) {
	s.unregister <- conn
}

// Dispatch queues one raw inbound message. The channel send preserves the
// per-connection FIFO order the ordering guarantees depend on.
func (s *WebSocketService) Dispatch(conn Conn, data []byte) {
	s.inbound <- inboundEvent{conn: conn, data: data}
}

// Stop terminates the event loop
func (s *WebSocketService) Stop() {
	close(s.stop)
}

// ActiveConnections returns the current connection count for the health probe
func (s *WebSocketService) ActiveConnections() int {
	return int(s.connCount.Load())
}

// ActiveRooms returns the current room count for the health probe
func (s *WebSocketService) ActiveRooms() int {
	return int(s.roomCount.Load())
}

// Run is the core's main loop. All room-mutating logic happens here.
func (s *WebSocketService) Run() {
	sweep := time.NewTicker(s.cfg.Rooms.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleDisconnect(conn)
		case event := <-s.inbound:
			s.handleEvent(event.conn, event.data)
		case <-sweep.C:
			s.sweepIdleRooms()
		case <-s.stop:
			return
		}
	}
}

func (s *WebSocketService) handleRegister(conn Conn) {
	if len(s.conns) >= s.cfg.Rooms.MaxConnections {
		log.Printf("Connection limit reached, rejecting %s", conn.ID())
		conn.Close()
		return
	}
	s.conns[conn.ID()] = conn
	s.connCount.Store(int64(len(s.conns)))
}

// handleDisconnect treats a transport-level disconnect as an implicit leave
func (s *WebSocketService) handleDisconnect(conn Conn) {
	if _, ok := s.conns[conn.ID()]; !ok {
		return
	}
	delete(s.conns, conn.ID())
	s.connCount.Store(int64(len(s.conns)))

	roomID, emptied, wasMember := s.registry.Unregister(conn.ID())
	if !wasMember {
		return
	}
	if emptied {
		s.destroyRoom(roomID)
		return
	}
	s.broadcastRoomUpdated(roomID)
}

func (s *WebSocketService) handleEvent(conn Conn, data []byte) {
	var event models.ClientEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// A single bad event must not disconnect a live presentation
		log.Printf("Dropping malformed event from %s: %v", conn.ID(), err)
		return
	}

	switch event.Event {
	case models.EventJoinRoom:
		s.handleJoin(conn, event)
	case models.EventLeaveRoom:
		s.handleLeave(conn, event)
	case models.EventSlideChange:
		s.handleSlideChange(conn, event)
	case models.EventSetTotalSlides:
		s.handleSetTotalSlides(conn, event)
	case models.EventToggleFullscreen:
		s.handleToggle(conn, event, models.ToggleFullscreen, models.EventFullscreenSync)
	case models.EventTogglePlay:
		s.handleToggle(conn, event, models.TogglePlay, models.EventPlaySync)
	case models.EventToggleGrid:
		s.handleToggle(conn, event, models.ToggleGrid, models.EventGridSync)
	case models.EventTogglePrivacy:
		s.handleToggle(conn, event, models.TogglePrivacy, models.EventPrivacySync)
	case models.EventTimerUpdate:
		s.handleTimerUpdate(conn, event)
	case models.EventTimerTick:
		s.handleTimerTick(conn, event)
	case models.EventUpdateRole:
		s.handleUpdateRole(conn, event)
	case models.EventAnnotationData:
		s.handleAnnotation(conn, event, models.EventAnnotationReceived)
	case models.EventClearAnnotations:
		s.handleAnnotation(conn, event, models.EventAnnotationsCleared)
	default:
		log.Printf("Dropping unknown event %q from %s", event.Event, conn.ID())
	}
}

func (s *WebSocketService) handleJoin(conn Conn, event models.ClientEvent) {
	if !models.ValidRoomCode(event.RoomID) {
		log.Printf("Dropping join with invalid room code %q from %s", event.RoomID, conn.ID())
		return
	}
	if !event.Role.Valid() {
		log.Printf("Dropping join with invalid role %q from %s", event.Role, conn.ID())
		return
	}
	name := event.DeviceName
	if name == "" {
		name = string(event.Role)
	}

	// A join for a different room is an implicit leave of the current one
	priorRoom, priorEmptied := s.registry.Register(event.RoomID, conn.ID(), event.Role, name)
	if priorEmptied {
		s.destroyRoom(priorRoom)
	} else if priorRoom != "" {
		s.broadcastRoomUpdated(priorRoom)
	}

	state, created := s.store.GetOrCreate(event.RoomID)
	if created {
		s.roomCount.Store(int64(s.store.Len()))
		s.stats[event.RoomID] = &roomStats{}
		if s.journal != nil {
			s.journal.RoomOpened(event.RoomID)
		}
		log.Printf("Room %s opened by %s (%s)", event.RoomID, conn.ID(), event.Role)
	}
	if stats, ok := s.stats[event.RoomID]; ok {
		if count := s.registry.DeviceCount(event.RoomID); count > stats.peakDevices {
			stats.peakDevices = count
		}
	}
	state.Touch()

	s.broadcastRoomUpdated(event.RoomID)
	s.unicast(conn, models.StateSync{Event: models.EventStateSync, State: *state})
}

func (s *WebSocketService) handleLeave(conn Conn, event models.ClientEvent) {
	if roomID, ok := s.registry.RoomOf(conn.ID()); !ok || roomID != event.RoomID {
		return
	}
	roomID, emptied, _ := s.registry.Unregister(conn.ID())
	if emptied {
		s.destroyRoom(roomID)
		return
	}
	s.broadcastRoomUpdated(roomID)
}

func (s *WebSocketService) handleSlideChange(conn Conn, event models.ClientEvent) {
	if event.SlideIndex == nil {
		log.Printf("Dropping slide-change without slideIndex from %s", conn.ID())
		return
	}
	state, ok := s.store.SetSlide(event.RoomID, *event.SlideIndex, event.TotalSlides)
	if !ok {
		// The room died between send and receipt; the event is stale
		log.Printf("Ignoring slide-change for unknown room %s", event.RoomID)
		return
	}
	s.countEvent(event.RoomID)

	// Echoed to the sender as well: slide navigation must be visually
	// confirmed even on the initiating device.
	s.broadcastToRoom(event.RoomID, models.SlideSync{
		Event:       models.EventSlideSync,
		RoomID:      event.RoomID,
		SlideIndex:  state.SlideIndex,
		TotalSlides: state.TotalSlides,
		SourceID:    conn.ID(),
		Timestamp:   time.Now().UnixMilli(),
	}, "")
}

func (s *WebSocketService) handleSetTotalSlides(conn Conn, event models.ClientEvent) {
	if event.TotalSlides == nil {
		log.Printf("Dropping set-total-slides without totalSlides from %s", conn.ID())
		return
	}
	state, ok := s.store.SetTotalSlides(event.RoomID, *event.TotalSlides)
	if !ok {
		log.Printf("Ignoring set-total-slides for unknown room %s", event.RoomID)
		return
	}
	s.countEvent(event.RoomID)

	s.broadcastToRoom(event.RoomID, models.SlideSync{
		Event:       models.EventSlideSync,
		RoomID:      event.RoomID,
		SlideIndex:  state.SlideIndex,
		TotalSlides: state.TotalSlides,
		SourceID:    conn.ID(),
		Timestamp:   time.Now().UnixMilli(),
	}, "")
}

func (s *WebSocketService) handleToggle(conn Conn, event models.ClientEvent, toggle models.Toggle, syncEvent string) {
	if event.Value == nil {
		log.Printf("Dropping %s without value from %s", event.Event, conn.ID())
		return
	}
	if _, ok := s.store.SetToggle(event.RoomID, toggle, *event.Value); !ok {
		log.Printf("Ignoring %s for unknown room %s", event.Event, event.RoomID)
		return
	}
	s.countEvent(event.RoomID)

	// The sender already applied the toggle optimistically; only the other
	// devices need to hear about it.
	s.broadcastToRoom(event.RoomID, models.ToggleSync{
		Event:  syncEvent,
		RoomID: event.RoomID,
		Value:  *event.Value,
	}, conn.ID())
}

func (s *WebSocketService) handleTimerUpdate(conn Conn, event models.ClientEvent) {
	if len(event.TimerState) == 0 {
		log.Printf("Dropping timer-update without timerState from %s", conn.ID())
		return
	}
	if _, ok := s.store.SetTimer(event.RoomID, event.TimerState); !ok {
		log.Printf("Ignoring timer-update for unknown room %s", event.RoomID)
		return
	}
	s.countEvent(event.RoomID)

	s.broadcastToRoom(event.RoomID, models.TimerSync{
		Event:      models.EventTimerSync,
		RoomID:     event.RoomID,
		TimerState: event.TimerState,
	}, conn.ID())
}

func (s *WebSocketService) handleTimerTick(conn Conn, event models.ClientEvent) {
	if event.Remaining == nil {
		log.Printf("Dropping timer-tick without remaining from %s", conn.ID())
		return
	}
	if _, ok := s.store.Tick(event.RoomID, *event.Remaining); !ok {
		log.Printf("Ignoring timer-tick for unknown room %s", event.RoomID)
		return
	}
	s.countEvent(event.RoomID)

	s.broadcastToRoom(event.RoomID, models.TimerTick{
		Event:     models.EventTimerTickSync,
		RoomID:    event.RoomID,
		Remaining: *event.Remaining,
	}, conn.ID())
}

func (s *WebSocketService) handleUpdateRole(conn Conn, event models.ClientEvent) {
	if !event.Role.Valid() {
		log.Printf("Dropping update-role with invalid role %q from %s", event.Role, conn.ID())
		return
	}
	if roomID, ok := s.registry.RoomOf(conn.ID()); !ok || roomID != event.RoomID {
		log.Printf("Ignoring update-role from %s: not a member of %s", conn.ID(), event.RoomID)
		return
	}
	if _, err := s.registry.UpdateRole(conn.ID(), event.Role, event.DeviceName); err != nil {
		log.Printf("Ignoring update-role from %s: %v", conn.ID(), err)
		return
	}
	s.broadcastRoomUpdated(event.RoomID)
}

// handleAnnotation relays annotation payloads without inspecting them
func (s *WebSocketService) handleAnnotation(conn Conn, event models.ClientEvent, outEvent string) {
	if _, ok := s.store.Get(event.RoomID); !ok {
		log.Printf("Ignoring %s for unknown room %s", event.Event, event.RoomID)
		return
	}
	s.broadcastToRoom(event.RoomID, models.AnnotationEvent{
		Event:    outEvent,
		RoomID:   event.RoomID,
		SlideID:  event.SlideID,
		Payload:  event.Payload,
		SourceID: conn.ID(),
	}, conn.ID())
}

// destroyRoom drops a room's state the instant its device set empties
func (s *WebSocketService) destroyRoom(roomID string) {
	s.store.Destroy(roomID)
	s.roomCount.Store(int64(s.store.Len()))
	if stats, ok := s.stats[roomID]; ok {
		if s.journal != nil {
			s.journal.RoomClosed(roomID, stats.peakDevices, stats.eventsApplied)
		}
		delete(s.stats, roomID)
	}
	log.Printf("Room %s destroyed", roomID)
}

func (s *WebSocketService) countEvent(roomID string) {
	if stats, ok := s.stats[roomID]; ok {
		stats.eventsApplied++
	}
}

func (s *WebSocketService) broadcastRoomUpdated(roomID string) {
	devices := s.registry.ListDevices(roomID)
	if len(devices) == 0 {
		return
	}
	payload := models.RoomUpdated{
		Event:        models.EventRoomUpdated,
		RoomID:       roomID,
		Devices:      devices,
		TotalDevices: len(devices),
	}
	if state, ok := s.store.Get(roomID); ok {
		payload.TotalSlides = state.TotalSlides
	}
	s.broadcastToRoom(roomID, payload, "")
}

// broadcastToRoom fans a payload out to every device registered in the room,
// optionally excluding one connection. A device whose send buffer is full is
// closed; its disconnect then flows through the normal leave path.
func (s *WebSocketService) broadcastToRoom(roomID string, payload any, excludeID string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast for room %s: %v", roomID, err)
		return
	}
	for _, device := range s.registry.ListDevices(roomID) {
		if device.ID == excludeID {
			continue
		}
		conn, ok := s.conns[device.ID]
		if !ok {
			continue
		}
		if !conn.Send(data) {
			log.Printf("Send buffer full, closing slow device %s in room %s", device.ID, roomID)
			conn.Close()
		}
	}
}

func (s *WebSocketService) unicast(conn Conn, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal unicast for %s: %v", conn.ID(), err)
		return
	}
	if !conn.Send(data) {
		conn.Close()
	}
}

// sweepIdleRooms is a defensive backstop. Empty rooms are destroyed the
// moment their last device leaves, so anything this finds with no devices
// is leaked state.
func (s *WebSocketService) sweepIdleRooms() {
	cutoff := time.Now().Add(-s.cfg.Rooms.IdleThreshold)
	for _, roomID := range s.store.IdleSince(cutoff) {
		if s.registry.DeviceCount(roomID) > 0 {
			continue
		}
		log.Printf("Sweeping leaked idle room %s", roomID)
		s.destroyRoom(roomID)
	}
}
