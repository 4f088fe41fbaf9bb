package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_PublishReachesClients(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h)

	h.Publish(Envelope{Type: "ping", Payload: map[string]int{"n": 1}})

	env := read(t, conn)
	assert.JSONEq(t, `"ping"`, string(env["type"]))
	assert.JSONEq(t, `{"n":1}`, string(env["payload"]))
}

func TestHub_HelloIsSentFirst(t *testing.T) {
	h := NewHub(func(o *Options) {
		o.Hello = func() Envelope { return Envelope{Type: "state"} }
	})
	defer h.Close()
	conn := dial(t, h)

	h.Publish(Envelope{Type: "later"})

	assert.JSONEq(t, `"state"`, string(read(t, conn)["type"]))
	assert.JSONEq(t, `"later"`, string(read(t, conn)["type"]))
}

func TestHub_CallbackForwardsEngineEvents(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h)

	cb := h.Callback()
	assert.Equal(t, core.EventAny, cb.Type())

	ev := core.NewTurnEvent(core.EventTurn, "s1", core.DialogueTurn{SpeakerID: "jobs", Text: "One more thing."}, "#000")
	require.NoError(t, cb.Execute(context.Background(), &engine.CallbackContext{Event: ev}))

	env := read(t, conn)
	assert.JSONEq(t, `"turn"`, string(env["type"]))

	var got core.Event
	require.NoError(t, json.Unmarshal(env["payload"], &got))
	assert.Equal(t, "s1", got.SessionID)
	require.NotNil(t, got.Turn)
	assert.Equal(t, "One more thing.", got.Turn.Text)
}

func TestHub_ClientDisconnectIsRemoved(t *testing.T) {
	h := NewHub()
	defer h.Close()
	conn := dial(t, h)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	h.Close()
	assert.Zero(t, h.Len())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := NewHub(func(o *Options) { o.Buffer = 1 })
	defer h.Close()
	_ = dial(t, h)

	// The client never reads; once its queue and socket buffers fill up the
	// hub drops it rather than block.
	payload := strings.Repeat("x", 64<<10)
	require.Eventually(t, func() bool {
		h.Publish(Envelope{Type: "flood", Payload: payload})
		return h.Len() == 0
	}, 5*time.Second, time.Millisecond)
}
