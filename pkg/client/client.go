// Package client implements the device side of the room synchronization
// protocol: it dials the server, joins a room, surfaces broadcasts through
// callbacks, and transparently rejoins after a transport loss. The server
// cannot tell a rejoin apart from a fresh join; resynchronization relies on
// the state-sync unicast that follows every join.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stagesync/pkg/models"
)

// Config describes one device's connection to a room
type Config struct {
	URL        string // e.g. ws://localhost:8080/ws
	RoomID     string
	Role       models.Role
	DeviceName string

	// MaxRetries bounds reconnection attempts per outage; 0 means the
	// default of 10.
	MaxRetries int
	// RetryDelay is the initial backoff between attempts; doubles per
	// attempt, capped at 30s. 0 means the default of 1s.
	RetryDelay time.Duration
	// RejoinDelay is the pause between the transport coming up and the
	// join being sent, so the join never races the handshake. 0 means the
	// default of 500ms.
	RejoinDelay time.Duration
}

// Events carries the callbacks invoked from the read loop. Nil callbacks
// are skipped.
type Events struct {
	StateSync    func(models.RoomState)
	SlideSync    func(models.SlideSync)
	RoomUpdated  func(models.RoomUpdated)
	ToggleSync   func(event string, value bool)
	TimerSync    func(models.TimerSync)
	TimerTick    func(models.TimerTick)
	Annotation   func(models.AnnotationEvent)
	Connected    func()
	Disconnected func(err error)
}

// Client is a reconnecting room-protocol client
type Client struct {
	cfg    Config
	events Events

	mu   sync.Mutex
	conn *websocket.Conn
	role models.Role
	name string
}

// New creates a client; Run must be called to connect
func New(cfg Config, events Events) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 10
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RejoinDelay == 0 {
		cfg.RejoinDelay = 500 * time.Millisecond
	}
	return &Client{
		cfg:    cfg,
		events: events,
		role:   cfg.Role,
		name:   cfg.DeviceName,
	}
}

// Run connects and processes broadcasts until ctx is cancelled or the retry
// budget for an outage is exhausted.
func (c *Client) Run(ctx context.Context) error {
	retries := 0
	delay := c.cfg.RetryDelay

	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			retries++
			if retries > c.cfg.MaxRetries {
				return fmt.Errorf("giving up after %d attempts: %w", retries-1, err)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if delay *= 2; delay > 30*time.Second {
				delay = 30 * time.Second
			}
			continue
		}
		retries = 0
		delay = c.cfg.RetryDelay

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		if c.events.Connected != nil {
			c.events.Connected()
		}

		// Let the handshake settle before re-issuing the join
		select {
		case <-time.After(c.cfg.RejoinDelay):
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		}
		if err := c.join(); err != nil {
			conn.Close()
			continue
		}

		err = c.readLoop(ctx, conn)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		if c.events.Disconnected != nil {
			c.events.Disconnected(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(message)
	}
}

func (c *Client) dispatch(message []byte) {
	var envelope struct {
		Event string `json:"event"`
		Value bool   `json:"value"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		log.Printf("Dropping unparseable broadcast: %v", err)
		return
	}

	switch envelope.Event {
	case models.EventStateSync:
		var state models.RoomState
		if json.Unmarshal(message, &state) == nil && c.events.StateSync != nil {
			c.events.StateSync(state)
		}
	case models.EventSlideSync:
		var sync models.SlideSync
		if json.Unmarshal(message, &sync) == nil && c.events.SlideSync != nil {
			c.events.SlideSync(sync)
		}
	case models.EventRoomUpdated:
		var updated models.RoomUpdated
		if json.Unmarshal(message, &updated) == nil && c.events.RoomUpdated != nil {
			c.events.RoomUpdated(updated)
		}
	case models.EventFullscreenSync, models.EventPlaySync, models.EventGridSync, models.EventPrivacySync:
		if c.events.ToggleSync != nil {
			c.events.ToggleSync(envelope.Event, envelope.Value)
		}
	case models.EventTimerSync:
		var sync models.TimerSync
		if json.Unmarshal(message, &sync) == nil && c.events.TimerSync != nil {
			c.events.TimerSync(sync)
		}
	case models.EventTimerTickSync:
		var tick models.TimerTick
		if json.Unmarshal(message, &tick) == nil && c.events.TimerTick != nil {
			c.events.TimerTick(tick)
		}
	case models.EventAnnotationReceived, models.EventAnnotationsCleared:
		var annotation models.AnnotationEvent
		if json.Unmarshal(message, &annotation) == nil && c.events.Annotation != nil {
			c.events.Annotation(annotation)
		}
	}
}

func (c *Client) join() error {
	c.mu.Lock()
	role, name := c.role, c.name
	c.mu.Unlock()
	return c.send(models.ClientEvent{
		Event:      models.EventJoinRoom,
		RoomID:     c.cfg.RoomID,
		Role:       role,
		DeviceName: name,
	})
}

func (c *Client) send(event models.ClientEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ChangeSlide navigates the room to a slide. totalSlides may be nil when
// the count is unknown.
func (c *Client) ChangeSlide(slideIndex int, totalSlides *int) error {
	return c.send(models.ClientEvent{
		Event:       models.EventSlideChange,
		RoomID:      c.cfg.RoomID,
		SlideIndex:  &slideIndex,
		TotalSlides: totalSlides,
	})
}

// SetTotalSlides reports the slide count once rendering finishes
func (c *Client) SetTotalSlides(totalSlides int) error {
	return c.send(models.ClientEvent{
		Event:       models.EventSetTotalSlides,
		RoomID:      c.cfg.RoomID,
		TotalSlides: &totalSlides,
	})
}

// SetToggle sets one of the toggle events (toggle-fullscreen, toggle-play,
// toggle-grid, toggle-privacy)
func (c *Client) SetToggle(event string, value bool) error {
	return c.send(models.ClientEvent{
		Event:  event,
		RoomID: c.cfg.RoomID,
		Value:  &value,
	})
}

// SendTimer relays an opaque timer payload to the other devices
func (c *Client) SendTimer(timerState json.RawMessage) error {
	return c.send(models.ClientEvent{
		Event:      models.EventTimerUpdate,
		RoomID:     c.cfg.RoomID,
		TimerState: timerState,
	})
}

// SendTick relays the remaining-seconds counter
func (c *Client) SendTick(remaining int) error {
	return c.send(models.ClientEvent{
		Event:     models.EventTimerTick,
		RoomID:    c.cfg.RoomID,
		Remaining: &remaining,
	})
}

// UpdateRole changes this device's role and name in place. The new values
// are remembered for any future rejoin.
func (c *Client) UpdateRole(role models.Role, name string) error {
	c.mu.Lock()
	c.role = role
	if name != "" {
		c.name = name
	}
	c.mu.Unlock()
	return c.send(models.ClientEvent{
		Event:      models.EventUpdateRole,
		RoomID:     c.cfg.RoomID,
		Role:       role,
		DeviceName: name,
	})
}

// SendAnnotation relays an opaque stroke payload scoped to a slide
func (c *Client) SendAnnotation(slideID string, payload json.RawMessage) error {
	return c.send(models.ClientEvent{
		Event:   models.EventAnnotationData,
		RoomID:  c.cfg.RoomID,
		SlideID: slideID,
		Payload: payload,
	})
}

// ClearAnnotations asks the other devices to clear a slide's annotations
func (c *Client) ClearAnnotations(slideID string) error {
	return c.send(models.ClientEvent{
		Event:   models.EventClearAnnotations,
		RoomID:  c.cfg.RoomID,
		SlideID: slideID,
	})
}

// Leave departs the room explicitly
func (c *Client) Leave() error {
	return c.send(models.ClientEvent{
		Event:  models.EventLeaveRoom,
		RoomID: c.cfg.RoomID,
	})
}
