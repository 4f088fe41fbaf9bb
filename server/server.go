// Package server exposes the encounter engine over HTTP.
//
// Routes:
//
//	GET  /health                     liveness plus session phase and counts
//	POST /api/conversation           generate dialogue for two participants
//	POST /api/chat                   one in-character reply from a persona
//	GET  /api/conversations?pair=    recent memory records for a pair key
//	POST /api/conversations          append a memory record
//	GET  /api/session                snapshot of the active session
//	POST /api/session/force-end      abandon the active session
//	POST /api/participants/reset     reset participants stuck talking
//	PUT  /api/participants/{id}/position  report a participant's position
//	GET  /api/participants           positions and statuses
//	GET  /ws                         event stream
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/hupe1980/encounter/content"
	"github.com/hupe1980/encounter/core"
	"github.com/hupe1980/encounter/engine"
	"github.com/hupe1980/encounter/internal/util"
	"github.com/hupe1980/encounter/logging"
	"github.com/hupe1980/encounter/memory/remote"
	"github.com/hupe1980/encounter/proximity"
	"github.com/hupe1980/encounter/session"
	"github.com/hupe1980/encounter/stream"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configure a Server.
type Options struct {
	// Addr is the listen address. Defaults to ":3001".
	Addr string
	// Backend answers POST /api/conversation. Without it the route
	// responds 503.
	Backend content.Backend
	// Chat answers POST /api/chat. Defaults to Backend when it is a
	// content.Chatter; otherwise the route responds 503.
	Chat content.Chatter
	// Memory serves the conversations API. Without it the routes respond
	// 503.
	Memory core.MemoryStore
	// RecordTurns caps turns stored per appended record.
	RecordTurns int
	// Hub serves /ws when set.
	Hub *stream.Hub
	// World receives position reports. Without it the participant routes
	// are not registered.
	World *proximity.World
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server is the HTTP surface of an engine.
type Server struct {
	engine      *engine.Engine
	addr        string
	backend     content.Backend
	chat        content.Chatter
	memory      core.MemoryStore
	recordTurns int
	hub         *stream.Hub
	world       *proximity.World
	logger      logging.Logger
	now         func() time.Time
	router      *mux.Router
	startedAt   time.Time
	httpServer  *http.Server
}

// New creates a server for e and registers its routes.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:        ":3001",
		RecordTurns: core.DefaultRecordTurns,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Chat == nil {
		opts.Chat, _ = opts.Backend.(content.Chatter)
	}

	s := &Server{
		engine:      e,
		addr:        opts.Addr,
		backend:     opts.Backend,
		chat:        opts.Chat,
		memory:      opts.Memory,
		recordTurns: opts.RecordTurns,
		hub:         opts.Hub,
		world:       opts.World,
		logger:      opts.Logger,
		now:         opts.Now,
		router:      mux.NewRouter(),
		startedAt:   opts.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversation", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/conversations", s.handleRecent).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleAppend).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/session/force-end", s.handleForceEnd).Methods(http.MethodPost)
	api.HandleFunc("/participants/reset", s.handleReset).Methods(http.MethodPost)
	if s.world != nil {
		api.HandleFunc("/participants", s.handleParticipants).Methods(http.MethodGet)
		api.HandleFunc("/participants/{id}/position", s.handleMove).Methods(http.MethodPut)
	}

	if s.hub != nil {
		r.Handle("/ws", s.hub)
	}
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening in the background and shuts down when ctx is
// cancelled. It returns once the listener is established.
func (s *Server) Start(ctx context.Context) (net.Addr, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if tl, ok := s.logger.(timerLogger); ok {
			defer tl.StartTimer("server shutdown")()
		}
		if s.hub != nil {
			s.hub.Close()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown error", "error", err)
		}
	}()
	return ln.Addr(), nil
}

type timerLogger interface {
	StartTimer(op string) func()
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status        string        `json:"status"`
	Phase         session.Phase `json:"phase"`
	Participants  int           `json:"participants"`
	ActiveBubbles int           `json:"activeBubbles"`
	StreamClients int           `json:"streamClients"`
	UptimeSecs    float64       `json:"uptimeSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.engine.Snapshot()
	resp := healthResponse{
		Status:        "ok",
		Phase:         snap.Phase,
		Participants:  len(snap.Participants),
		ActiveBubbles: len(s.engine.Bubbles().Active()),
		UptimeSecs:    s.now().Sub(s.startedAt).Seconds(),
	}
	if s.hub != nil {
		resp.StreamClients = s.hub.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGenerate runs the backend and answers with the parsed turns. It does
// not fall back: callers own their fallback.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeError(w, http.StatusServiceUnavailable, "generation backend not configured")
		return
	}
	var req content.Request
	if !decode(w, r, &req) {
		return
	}
	req.Participant1 = s.resolve(req.Participant1)
	req.Participant2 = s.resolve(req.Participant2)

	v := &util.Validator{}
	if req.Participant1.ID == "" {
		v.Add("participant1.id", req.Participant1.ID, "is required")
	}
	if req.Participant2.ID == "" {
		v.Add("participant2.id", req.Participant2.ID, "is required")
	}
	if err := v.Err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := s.backend.Generate(r.Context(), req)
	if err != nil {
		s.logger.Warn("generation failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	turns, err := content.ParseTurns(raw)
	if err == nil {
		turns = content.ResolveSpeakers(turns, req.Participants())
		if len(turns) == 0 {
			err = content.ErrNoTurns
		}
	}
	if err != nil {
		s.logger.Warn("unusable generation output", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

type chatRequest struct {
	PersonaID string `json:"personaId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Text      string `json:"text"`
	PersonaID string `json:"personaId"`
}

// handleChat answers a single user message in the voice of one persona.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusServiceUnavailable, "chat not configured")
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	v := &util.Validator{}
	if req.PersonaID == "" {
		v.Add("personaId", req.PersonaID, "is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		v.Add("message", req.Message, "is required")
	}
	if err := v.Err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, ok := s.engine.Registry().Lookup(req.PersonaID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown persona "+req.PersonaID)
		return
	}

	text, err := s.chat.Chat(r.Context(), p, req.Message)
	if err != nil {
		s.logger.Warn("chat failed", "persona", p.ID, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Text: text, PersonaID: p.ID})
}

// resolve fills in registry details for a participant given by id only.
func (s *Server) resolve(p core.Participant) core.Participant {
	if p.ID == "" || p.DisplayName != "" {
		return p
	}
	if known, ok := s.engine.Registry().Lookup(p.ID); ok {
		return known
	}
	return p
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory not configured")
		return
	}
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required")
		return
	}
	recs, err := s.memory.Recent(r.Context(), core.PairKey(pair))
	if err != nil {
		s.logger.Warn("memory lookup failed", "pair", pair, "error", err)
		writeError(w, http.StatusInternalServerError, "memory lookup failed")
		return
	}
	if recs == nil {
		recs = []core.ConversationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		writeError(w, http.StatusServiceUnavailable, "memory not configured")
		return
	}
	var req remote.AppendRequest
	if !decode(w, r, &req) {
		return
	}

	v := &util.Validator{}
	if len(req.ParticipantIDs) < 2 {
		v.Add("participantIds", req.ParticipantIDs, "needs at least two participants")
	}
	if req.PairKey != "" && req.PairKey != core.NewPairKey(req.ParticipantIDs...) {
		v.Add("pairKey", req.PairKey, "does not match participantIds")
	}
	for i, t := range req.Turns {
		if !t.Valid() {
			v.Add(fmt.Sprintf("turns[%d]", i), t, "needs speaker and text")
		}
	}
	if err := v.Err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := req.Record(s.now())
	rec = core.NewConversationRecord(rec.ParticipantIDs, rec.Turns, rec.Timestamp, s.recordTurns)
	if err := s.memory.Append(r.Context(), rec); err != nil {
		s.logger.Warn("memory append failed", "pair", rec.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "memory append failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"pairKey": rec.Key()})
}

// sessionResponse is returned by GET /api/session.
type sessionResponse struct {
	Session    session.Snapshot `json:"session"`
	Transcript *core.Transcript `json:"transcript,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	resp := sessionResponse{Session: s.engine.Snapshot()}
	if t, ok := s.engine.Transcript(); ok {
		resp.Transcript = &t
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleForceEnd(w http.ResponseWriter, _ *http.Request) {
	ended := s.engine.ForceEnd()
	s.logger.Info("force-end requested", "ended", ended)
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	reset := s.engine.ResetStuck()
	if reset == nil {
		reset = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"reset": reset})
}

// participantState is one entry of GET /api/participants.
type participantState struct {
	core.Participant
	Position *proximity.Position `json:"position,omitempty"`
	Status   core.Status         `json:"status"`
}

func (s *Server) handleParticipants(w http.ResponseWriter, _ *http.Request) {
	list := s.engine.Registry().List()
	out := make([]participantState, 0, len(list))
	for _, p := range list {
		st := participantState{Participant: p, Status: s.world.Status(p.ID)}
		if pos, ok := s.world.Position(p.ID); ok {
			st.Position = &pos
		}
		out = append(out, st)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.engine.Registry().Lookup(id); !ok {
		writeError(w, http.StatusNotFound, "unknown participant "+id)
		return
	}
	var pos proximity.Position
	if !decode(w, r, &pos) {
		return
	}
	s.world.Move(id, pos)
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
