package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/internal/testutil"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/memory"
	"github.com/hupe1980/encounter/memory/remote"
	"github.com/hupe1980/encounter/model"
	"github.com/hupe1980/encounter/proximity"
	"github.com/hupe1980/encounter/session"
)

type stubGenerator struct{ release chan struct{} }

func (g stubGenerator) Generate(ctx context.Context, _, _ core.Participant) content.Result {
	select {
	case <-g.release:
	case <-ctx.Done():
	}
	return content.Result{}
}

func newTestServer(t *testing.T, optFns ...func(o *Options)) (*Server, *engine.Engine, *testutil.StatusBoard) {
	t.Helper()
	board := testutil.NewStatusBoard("alice", "bob")
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	eng := engine.New(testutil.NewRegistry(testutil.Participants("alice", "bob")...), func(o *engine.Options) {
		cfg := engine.DefaultConfig
		cfg.EngagementChance = 1
		cfg.SilenceGrace = time.Millisecond
		cfg.TranscriptGrace = 10 * time.Millisecond
		o.Config = cfg
		o.Statuses = board
		o.Generator = stubGenerator{release: release}
		o.Random = testutil.Always()
	})
	t.Cleanup(eng.Close)
	return New(eng, optFns...), eng, board
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "idle", resp["phase"])

	require.True(t, eng.Encounter("alice", "bob"))
	rec = do(t, srv, http.MethodGet, "/health", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting_content", resp["phase"])
	assert.Equal(t, float64(2), resp["participants"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGenerate(t *testing.T) {
	backend := testutil.NewScriptedBackend(`[{"speaker":"Alice","text":"hi"},{"speaker":"mallory","text":"psst"},{"speaker":"bob","text":"hey"}]`)
	srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = backend })

	rec := do(t, srv, http.MethodPost, "/api/conversation", map[string]any{
		"participant1": map[string]string{"id": "alice"},
		"participant2": map[string]string{"id": "bob"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var turns []core.DialogueTurn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turns))
	assert.Equal(t, []core.DialogueTurn{{SpeakerID: "alice", Text: "hi"}, {SpeakerID: "bob", Text: "hey"}}, turns)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Alice", reqs[0].Participant1.DisplayName, "registry fills in id-only participants")
}

func TestGenerate_Errors(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		rec := do(t, srv, http.MethodPost, "/api/conversation", map[string]any{})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = testutil.NewScriptedBackend("[]") })
		req := httptest.NewRequest(http.MethodPost, "/api/conversation", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing ids", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = testutil.NewScriptedBackend("[]") })
		rec := do(t, srv, http.MethodPost, "/api/conversation", map[string]any{
			"participant1": map[string]string{"id": "alice"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "participant2.id")
	})

	t.Run("backend failure", func(t *testing.T) {
		backend := testutil.NewScriptedBackend("")
		backend.Err = errors.New("upstream down")
		srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = backend })
		rec := do(t, srv, http.MethodPost, "/api/conversation", map[string]any{
			"participant1": map[string]string{"id": "alice"},
			"participant2": map[string]string{"id": "bob"},
		})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "upstream down")
	})

	t.Run("unusable output", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = testutil.NewScriptedBackend("I'd rather not.") })
		rec := do(t, srv, http.MethodPost, "/api/conversation", map[string]any{
			"participant1": map[string]string{"id": "alice"},
			"participant2": map[string]string{"id": "bob"},
		})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestChat(t *testing.T) {
	m := model.NewMockModel("mock").AddResponse("Hello there, friend.")
	srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = content.NewModelBackend(m) })

	rec := do(t, srv, http.MethodPost, "/api/chat", map[string]string{"personaId": "alice", "message": "Hi!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"text":"Hello there, friend.","personaId":"alice"}`, rec.Body.String())

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are Alice")
	assert.Equal(t, "Hi!", reqs[0].Messages[0].Content)
}

func TestChat_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Backend = testutil.NewScriptedBackend("[]") })
		rec := do(t, srv, http.MethodPost, "/api/chat", map[string]string{"personaId": "alice", "message": "Hi"})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	backend := content.NewModelBackend(model.NewMockModel("mock").AddError(errors.New("quota exceeded")))

	t.Run("missing fields", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Chat = backend })
		rec := do(t, srv, http.MethodPost, "/api/chat", map[string]string{"personaId": "alice", "message": " "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "message")
	})

	t.Run("unknown persona", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Chat = backend })
		rec := do(t, srv, http.MethodPost, "/api/chat", map[string]string{"personaId": "zed", "message": "Hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("model failure", func(t *testing.T) {
		srv, _, _ := newTestServer(t, func(o *Options) { o.Chat = backend })
		rec := do(t, srv, http.MethodPost, "/api/chat", map[string]string{"personaId": "bob", "message": "Hi"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "quota exceeded")
	})
}

func TestConversations_AppendAndRecent(t *testing.T) {
	store := memory.NewInMemoryStore()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	srv, _, _ := newTestServer(t, func(o *Options) {
		o.Memory = store
		o.RecordTurns = 2
		o.Now = func() time.Time { return now }
	})

	rec := do(t, srv, http.MethodPost, "/api/conversations", remote.AppendRequest{
		ParticipantIDs: []string{"bob", "alice"},
		Turns:          testutil.Turns("alice", "one", "bob", "two", "alice", "three"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"alice-bob"`)

	rec = do(t, srv, http.MethodGet, "/api/conversations?pair=alice-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var recs []core.ConversationRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Turns, 2, "record is trimmed to RecordTurns")
	assert.True(t, now.Equal(recs[0].Timestamp))
}

func TestConversations_Validation(t *testing.T) {
	srv, _, _ := newTestServer(t, func(o *Options) { o.Memory = memory.NewInMemoryStore() })

	rec := do(t, srv, http.MethodGet, "/api/conversations", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/conversations?pair=nobody-else", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/conversations", remote.AppendRequest{ParticipantIDs: []string{"alice"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/conversations", remote.AppendRequest{
		PairKey:        "alice-carol",
		ParticipantIDs: []string{"alice", "bob"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "pairKey")

	rec = do(t, srv, http.MethodPost, "/api/conversations", remote.AppendRequest{
		ParticipantIDs: []string{"alice", "bob"},
		Turns:          []core.DialogueTurn{{SpeakerID: "alice"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversations_NoMemory(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/conversations?pair=a-b", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionControl(t *testing.T) {
	srv, eng, board := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/session/force-end", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ended":false}`, rec.Body.String())

	require.True(t, eng.Encounter("alice", "bob"))

	rec = do(t, srv, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Session session.Snapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, session.AwaitingContent, resp.Session.Phase)

	rec = do(t, srv, http.MethodPost, "/api/session/force-end", nil)
	assert.JSONEq(t, `{"ended":true}`, rec.Body.String())
	assert.False(t, eng.Active())
	assert.Equal(t, core.StatusIdle, board.Status("alice"))

	board.SetStatus("bob", core.StatusTalking)
	rec = do(t, srv, http.MethodPost, "/api/participants/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset":["bob"]}`, rec.Body.String())
}

type timingLogger struct {
	logging.NoOpLogger
	stopped atomic.Bool
}

func (l *timingLogger) StartTimer(string) func() { return func() { l.stopped.Store(true) } }

func TestStart_ShutsDownOnCancel(t *testing.T) {
	log := &timingLogger{}
	srv, _, _ := newTestServer(t, func(o *Options) {
		o.Addr = "127.0.0.1:0"
		o.Logger = log
	})

	ctx, cancel := context.WithCancel(context.Background())
	addr, err := srv.Start(ctx)
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + "/health")
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Eventually(t, log.stopped.Load, 2*time.Second, 10*time.Millisecond)
}

func TestParticipants_Positions(t *testing.T) {
	world := proximity.NewWorld()
	srv, _, _ := newTestServer(t, func(o *Options) { o.World = world })

	rec := do(t, srv, http.MethodPut, "/api/participants/alice/position", proximity.Position{X: 3, Y: 4})
	require.Equal(t, http.StatusNoContent, rec.Code)
	pos, ok := world.Position("alice")
	require.True(t, ok)
	assert.Equal(t, proximity.Position{X: 3, Y: 4}, pos)

	rec = do(t, srv, http.MethodPut, "/api/participants/mallory/position", proximity.Position{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/participants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var states []struct {
		ID       string              `json:"id"`
		Position *proximity.Position `json:"position"`
		Status   core.Status         `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "alice", states[0].ID)
	require.NotNil(t, states[0].Position)
	assert.Nil(t, states[1].Position)
	assert.Equal(t, core.StatusIdle, states[1].Status)
}

func TestParticipants_RoutesNeedWorld(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/participants", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
