// Package realtime implements the Realtime Hub: per-function groups of
// websocket sessions that receive seat-state broadcasts (held,
// released, confirmed) as they happen, plus a full snapshot on join so
// a client that connects mid-sale sees accurate state immediately
// instead of waiting for the next event. Generalized from the
// room-based broadcast model of the original websocket service, with
// the in-memory map-of-sets replaced by a hub goroutine in the manner
// the task-board example uses for the same problem.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

// MessageType enumerates the frames sent down a realtime session, named
// after §6's outbound message type list verbatim.
type MessageType string

const (
	MessageConnectionEstablished MessageType = "connection_established"
	MessageSnapshot              MessageType = "snapshot"
	MessageSelectionConfirmed    MessageType = "selection_confirmed"
	MessageSelectionFailed       MessageType = "selection_failed"
	MessageSeatHeld              MessageType = "seat_held"
	MessageSeatFree              MessageType = "seat_released"
	MessageSeatSold              MessageType = "sale_confirmed"
	MessageHoldExpired           MessageType = "hold_expired"
	MessageError                 MessageType = "error"
)

// Message is the envelope every frame is marshalled as. Every outbound
// message carries a timestamp per §6; Conflicts is populated only for
// selection_failed, UserID only for seat_held/seat_released so
// observers can tell which user acted.
type Message struct {
	Type       MessageType            `json:"type"`
	FunctionID uint64                  `json:"function_id"`
	UserID     uint64                  `json:"user_id,omitempty"`
	Seats      []inventory.SeatStatus  `json:"seats,omitempty"`
	SeatCodes  []string                `json:"seat_codes,omitempty"`
	Conflicts  []string                `json:"conflicts,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
}

// Session is one connected client's outbound half: the Hub only ever
// writes to Send, never touches the underlying transport directly, so
// it has no knowledge of websocket, SSE or any other wire protocol.
type Session struct {
	ID         uint64
	FunctionID uint64
	UserID     uint64
	Send       chan []byte
}

// Hub fans out seat-state broadcasts to every session grouped by
// function. Registration, unregistration and broadcast all flow
// through channels into a single goroutine (Run), which holds mu while
// it changes the group map, so callers never lock around those
// compound operations themselves.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uint64]map[*Session]bool

	register   chan *Session
	unregister chan *Session
	broadcast  chan broadcastRequest
	direct     chan directRequest

	bufferSize int
}

type broadcastRequest struct {
	functionID uint64
	payload    []byte
	except     *Session
}

type directRequest struct {
	session *Session
	payload []byte
}

// New builds a Hub whose sessions are given outbound buffers of
// bufferSize messages; a session that cannot keep up is disconnected
// rather than allowed to block the broadcaster.
func New(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		sessions:   make(map[uint64]map[*Session]bool),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		broadcast:  make(chan broadcastRequest, 256),
		direct:     make(chan directRequest, 256),
		bufferSize: bufferSize,
	}
}

// Run drives the hub's event loop until ctx is cancelled. It must be
// started exactly once, typically from main before the HTTP server
// starts accepting websocket upgrades.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.mu.Lock()
			if h.sessions[s.FunctionID] == nil {
				h.sessions[s.FunctionID] = make(map[*Session]bool)
			}
			h.sessions[s.FunctionID][s] = true
			h.mu.Unlock()
		case s := <-h.unregister:
			h.drop(s)
		case req := <-h.broadcast:
			h.mu.RLock()
			group := h.sessions[req.functionID]
			targets := make([]*Session, 0, len(group))
			for s := range group {
				if s == req.except {
					continue
				}
				targets = append(targets, s)
			}
			h.mu.RUnlock()
			for _, s := range targets {
				select {
				case s.Send <- req.payload:
				default:
					// Session's buffer is full; it is falling behind
					// the broadcast rate and is dropped rather than
					// allowed to stall fan-out to everyone else. Dropped
					// inline (not via the unregister channel) since Run
					// is the only reader of that channel and would
					// deadlock sending to itself.
					h.drop(s)
				}
			}
		case req := <-h.direct:
			select {
			case req.session.Send <- req.payload:
			default:
				h.drop(req.session)
			}
		}
	}
}

// drop removes a session from its group and closes its outbound
// channel. Must only be called from the Run goroutine.
func (h *Hub) drop(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.sessions[s.FunctionID]
	if !ok {
		return
	}
	if _, ok := group[s]; !ok {
		return
	}
	delete(group, s)
	close(s.Send)
	if len(group) == 0 {
		delete(h.sessions, s.FunctionID)
	}
}

// NewSession registers a session for the given function/user and
// returns it with its outbound channel ready to drain. Callers must
// arrange for Unregister to run exactly once when the underlying
// connection closes.
func (h *Hub) NewSession(id, functionID, userID uint64) *Session {
	s := &Session{ID: id, FunctionID: functionID, UserID: userID, Send: make(chan []byte, h.bufferSize)}
	h.register <- s
	return s
}

// Unregister removes a session from its group and closes its buffer.
func (h *Hub) Unregister(s *Session) {
	h.unregister <- s
}

// Broadcast encodes msg and fans it out to every session on the
// function, dropping (and disconnecting) any session whose buffer is
// full.
func (h *Hub) Broadcast(functionID uint64, msg Message) {
	h.broadcastTo(functionID, msg, nil)
}

// BroadcastExcept is Broadcast but skips except — used for seat_held so
// the originating session instead receives its own selection_confirmed
// acknowledgement via Send, never a duplicate seat_held.
func (h *Hub) BroadcastExcept(functionID uint64, msg Message, except *Session) {
	h.broadcastTo(functionID, msg, except)
}

func (h *Hub) broadcastTo(functionID uint64, msg Message, except *Session) {
	msg.FunctionID = functionID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast <- broadcastRequest{functionID: functionID, payload: payload, except: except}
}

// Send delivers msg to exactly one session (selection_confirmed,
// selection_failed, connection_established, errors) without fanning it
// out to the rest of the function's group. Dropped the same way a slow
// broadcast recipient would be if the session's buffer is full.
func (h *Hub) Send(s *Session, msg Message) {
	msg.FunctionID = s.FunctionID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.direct <- directRequest{session: s, payload: payload}
}

// PublishEvent translates a domain event from the Event Sink Bus into a
// realtime broadcast, letting the purchase/inventory layers stay
// ignorant of the websocket wire format entirely.
func (h *Hub) PublishEvent(ev model.Event) {
	var mt MessageType
	switch ev.Type {
	case model.EventSeatHeld:
		mt = MessageSeatHeld
	case model.EventSeatReleased:
		mt = MessageSeatFree
	case model.EventHoldExpired:
		mt = MessageHoldExpired
	case model.EventSaleConfirmed:
		mt = MessageSeatSold
	default:
		return
	}
	h.Broadcast(ev.FunctionID, Message{Type: mt, UserID: ev.UserID, SeatCodes: ev.SeatCodes})
}

// Snapshot sends the current seat map to a single newly joined session,
// so it doesn't have to wait for the next broadcast to know what's
// already held or sold.
func (h *Hub) Snapshot(s *Session, seats []inventory.SeatStatus) {
	payload, err := json.Marshal(Message{Type: MessageSnapshot, FunctionID: s.FunctionID, Seats: seats, Timestamp: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case s.Send <- payload:
	default:
	}
}
