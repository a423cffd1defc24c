package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

func startHub(t *testing.T, bufferSize int) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New(bufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func recv(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case payload, ok := <-s.Send:
		require.True(t, ok, "session channel closed unexpectedly")
		var msg Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
		return Message{}
	}
}

func TestBroadcast_OnlyReachesSameFunctionGroup(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s1 := h.NewSession(1, 100, 0)
	s2 := h.NewSession(2, 200, 0)
	defer h.Unregister(s1)
	defer h.Unregister(s2)

	h.Broadcast(100, Message{Type: MessageSeatHeld, SeatCodes: []string{"A1"}})

	msg := recv(t, s1)
	assert.Equal(t, MessageSeatHeld, msg.Type)
	assert.Equal(t, uint64(100), msg.FunctionID)

	select {
	case <-s2.Send:
		t.Fatal("session on a different function must not receive the broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregister_ClosesSendChannel(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s := h.NewSession(1, 1, 0)
	h.Unregister(s)

	_, ok := <-s.Send
	assert.False(t, ok, "Send must be closed after Unregister")
}

func TestBroadcast_DropsSlowSessionInsteadOfBlocking(t *testing.T) {
	h, cancel := startHub(t, 1)
	defer cancel()

	slow := h.NewSession(1, 7, 0)
	fast := h.NewSession(2, 7, 0)
	defer h.Unregister(fast)

	// Fill both one-slot buffers, then drain only the fast session so the
	// next broadcast finds slow's buffer still full while fast has room.
	h.Broadcast(7, Message{Type: MessageSeatHeld})
	recv(t, fast)
	h.Broadcast(7, Message{Type: MessageSeatSold, SeatCodes: []string{"Z9"}})

	// The hub must still be alive to serve the fast session afterwards -
	// if dropping the slow session deadlocked Run, this would time out.
	msg := recv(t, fast)
	assert.Equal(t, MessageSeatSold, msg.Type)

	<-slow.Send // the first broadcast, still buffered when the hub closed the channel
	_, ok := <-slow.Send
	assert.False(t, ok, "the slow session must have been dropped and its channel closed")
}

func TestPublishEvent_TranslatesDomainEventToMessage(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s := h.NewSession(1, 42, 0)
	defer h.Unregister(s)

	h.PublishEvent(model.Event{Type: model.EventSaleConfirmed, FunctionID: 42, SeatCodes: []string{"C3"}})

	msg := recv(t, s)
	assert.Equal(t, MessageSeatSold, msg.Type)
	assert.Equal(t, []string{"C3"}, msg.SeatCodes)
}

func TestPublishEvent_UnknownTypeIsIgnored(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s := h.NewSession(1, 5, 0)
	defer h.Unregister(s)

	h.PublishEvent(model.Event{Type: model.EventType("something_else"), FunctionID: 5})

	select {
	case <-s.Send:
		t.Fatal("an unmapped event type must not produce a broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastExcept_SkipsTheExcludedSession(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	originator := h.NewSession(1, 50, 10)
	observer := h.NewSession(2, 50, 20)
	defer h.Unregister(originator)
	defer h.Unregister(observer)

	h.BroadcastExcept(50, Message{Type: MessageSeatHeld, SeatCodes: []string{"A1"}}, originator)

	msg := recv(t, observer)
	assert.Equal(t, MessageSeatHeld, msg.Type)

	select {
	case <-originator.Send:
		t.Fatal("the excluded session must not receive the broadcast")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSend_DeliversOnlyToTheTargetSession(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s1 := h.NewSession(1, 60, 0)
	s2 := h.NewSession(2, 60, 0)
	defer h.Unregister(s1)
	defer h.Unregister(s2)

	h.Send(s1, Message{Type: MessageSelectionConfirmed, SeatCodes: []string{"B2"}})

	msg := recv(t, s1)
	assert.Equal(t, MessageSelectionConfirmed, msg.Type)
	assert.False(t, msg.Timestamp.IsZero())

	select {
	case <-s2.Send:
		t.Fatal("Send must not reach any session other than the target")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSnapshot_DeliversSeatStatusesToJoiningSession(t *testing.T) {
	h, cancel := startHub(t, 4)
	defer cancel()

	s := h.NewSession(1, 9, 0)
	defer h.Unregister(s)

	h.Snapshot(s, nil)

	msg := recv(t, s)
	assert.Equal(t, MessageSnapshot, msg.Type)
}
