package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-reservation/internal/bizerr"
	"github.com/iliyamo/cinema-seat-reservation/internal/inventory"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/realtime"
	"github.com/iliyamo/cinema-seat-reservation/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var nextSessionID uint64

// inboundMessage is the fixed schema every inbound websocket frame is
// parsed as, per §6: {"action":"select"|"deselect","seats":[...]}.
type inboundMessage struct {
	Action string   `json:"action"`
	Seats  []string `json:"seats"`
}

// RealtimeHandler upgrades a function's seat-map channel to a
// websocket and keeps it registered with the Realtime Hub for the
// life of the connection, mirroring the register/read-pump/unregister
// shape of the reference hub's websocket endpoint. It also owns the
// select/deselect message loop (§4.F): every inbound action is
// resolved against the Seat Inventory Service under the function's
// lock before any broadcast happens, so observers never see seat
// state diverge from what the hub reports.
type RealtimeHandler struct {
	hub       *realtime.Hub
	inv       *inventory.Service
	store     store.Store
	jwtSecret string
}

// NewRealtimeHandler wires the handler to the hub, inventory service
// and store. jwtSecret validates the token query parameter, since a
// browser WebSocket client cannot set the Authorization header the
// REST routes rely on.
func NewRealtimeHandler(hub *realtime.Hub, inv *inventory.Service, st store.Store, jwtSecret string) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, inv: inv, store: st, jwtSecret: jwtSecret}
}

// authenticate validates the ?token= query parameter the same way
// JWTAuth validates the Authorization header, since the upgrade
// request cannot carry custom headers from a browser client.
func (h *RealtimeHandler) authenticate(c echo.Context) (uint64, bool) {
	raw := c.QueryParam("token")
	if raw == "" {
		return 0, false
	}
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return 0, echo.ErrUnauthorized
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !tok.Valid {
		return 0, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}
	c.Set("user_id", claims["sub"])
	userID, err := getUserID(c)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Subscribe handles GET /v1/ws/functions/:id. The client receives
// connection_established immediately, an optional full seat-map
// snapshot if it passed a seats query parameter, then every
// subsequent broadcast and select/deselect acknowledgement for the
// function until it disconnects.
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
	userID, ok := h.authenticate(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or invalid token"})
	}

	f, err := loadFunctionByParam(c, h.store)
	if err != nil {
		return writeBizErr(c, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	sessionID := atomic.AddUint64(&nextSessionID, 1)
	session := h.hub.NewSession(sessionID, f.ID, userID)

	// held tracks seats this session currently has a live hold on, so
	// the deferred cleanup below can release every one of them on
	// close (abandoned-cart cleanup, §4.F "Session lifecycle"). Only
	// the read pump goroutine touches it until done is closed, and every
	// return below waits for done first, so it needs no lock of its own.
	held := map[string]bool{}
	ctx := context.Background()
	defer func() {
		h.hub.Unregister(session)
		if len(held) == 0 {
			return
		}
		codes := make([]string, 0, len(held))
		for code := range held {
			codes = append(codes, code)
		}
		_ = h.inv.Release(ctx, f, userID, codes)
	}()

	h.hub.Send(session, realtime.Message{Type: realtime.MessageConnectionEstablished})

	if codes := c.QueryParams()["seats"]; len(codes) > 0 {
		if statuses, err := h.inv.QueryMap(ctx, f, codes); err == nil {
			h.hub.Snapshot(session, statuses)
		}
	}

	done := make(chan struct{})
	go h.readPump(ctx, conn, f, session, held, done)

	for {
		select {
		case <-done:
			return nil
		case payload, ok := <-session.Send:
			if !ok {
				conn.Close()
				<-done
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				conn.Close()
				<-done
				return nil
			}
		}
	}
}

// readPump blocks on inbound frames, dispatching select/deselect to
// the Seat Inventory Service and broadcasting the outcome, until the
// connection errors or closes.
func (h *RealtimeHandler) readPump(ctx context.Context, conn *websocket.Conn, f model.Function, session *realtime.Session, held map[string]bool, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in inboundMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			h.hub.Send(session, realtime.Message{Type: realtime.MessageError, Error: "malformed message"})
			continue
		}
		switch in.Action {
		case "select":
			h.handleSelect(ctx, f, session, held, in.Seats)
		case "deselect":
			h.handleDeselect(ctx, f, session, held, in.Seats)
		default:
			h.hub.Send(session, realtime.Message{Type: realtime.MessageError, Error: "unknown action"})
		}
	}
}

// handleSelect tries to hold the requested seats for the session's
// user. On success every other session in the function group hears
// seat_held and the originator hears selection_confirmed; on failure
// only the originator hears selection_failed with the conflicting
// codes (§4.F step 2).
func (h *RealtimeHandler) handleSelect(ctx context.Context, f model.Function, session *realtime.Session, held map[string]bool, codes []string) {
	sels, err := h.inv.TryHold(ctx, f, session.UserID, codes)
	if err != nil {
		if be, ok := bizerr.As(err); ok && be.Kind == bizerr.KindSeatUnavailable {
			h.hub.Send(session, realtime.Message{Type: realtime.MessageSelectionFailed, Conflicts: be.Conflicts})
			return
		}
		h.hub.Send(session, realtime.Message{Type: realtime.MessageError, Error: err.Error()})
		return
	}
	heldCodes := make([]string, len(sels))
	for i, sel := range sels {
		held[sel.SeatCode] = true
		heldCodes[i] = sel.SeatCode
	}
	h.hub.BroadcastExcept(f.ID, realtime.Message{Type: realtime.MessageSeatHeld, UserID: session.UserID, SeatCodes: heldCodes}, session)
	h.hub.Send(session, realtime.Message{Type: realtime.MessageSelectionConfirmed, SeatCodes: heldCodes})
}

// handleDeselect releases the session's holds on the requested seats
// and, on success, broadcasts seat_released to the whole group
// including the originator, so every client's seat map converges on
// the same state (§4.F step 3).
func (h *RealtimeHandler) handleDeselect(ctx context.Context, f model.Function, session *realtime.Session, held map[string]bool, codes []string) {
	if err := h.inv.Release(ctx, f, session.UserID, codes); err != nil {
		h.hub.Send(session, realtime.Message{Type: realtime.MessageError, Error: err.Error()})
		return
	}
	for _, code := range codes {
		delete(held, code)
	}
	h.hub.Broadcast(f.ID, realtime.Message{Type: realtime.MessageSeatFree, UserID: session.UserID, SeatCodes: codes})
}
