// Package httpapi exposes the game server's REST surface. Every
// operation of a room maps to one route; responses carry the caller's
// role-filtered view of the state so no follow-up fetch is needed.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/network"
	"github.com/codewords-live/server/internal/platform/logger"
	"github.com/codewords-live/server/internal/platform/metrics"
	"github.com/codewords-live/server/internal/room"
	"github.com/codewords-live/server/internal/storage"
)

// Server wires the room registry, the websocket hub and the history
// store into an http.Handler.
type Server struct {
	rooms   *room.Manager
	hub     *network.Hub
	history storage.HistoryStore
	log     *logger.Logger

	// baseURL is the externally reachable address, used for QR join links.
	baseURL string
}

// Options configures the HTTP server.
type Options struct {
	Rooms   *room.Manager
	Hub     *network.Hub
	History storage.HistoryStore
	Log     *logger.Logger
	BaseURL string
}

// NewServer builds the API server.
func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logger.NewLogger()
	}
	return &Server{
		rooms:   opts.Rooms,
		hub:     opts.Hub,
		history: opts.History,
		log:     opts.Log,
		baseURL: opts.BaseURL,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := httprouter.New()

	r.HandlerFunc(http.MethodGet, "/healthz", s.handleHealth)
	r.HandlerFunc(http.MethodGet, "/metrics", metrics.Handler())
	r.HandlerFunc(http.MethodGet, "/metrics/prometheus", metrics.PrometheusHandler())

	r.POST("/api/rooms", s.handleCreateRoom)
	r.GET("/api/rooms", s.handleListRooms)
	r.GET("/api/rooms/:id", s.handleGetState)
	r.GET("/api/rooms/:id/qr", s.handleQRCode)
	r.GET("/api/rooms/:id/history", s.handleHistory)

	r.POST("/api/rooms/:id/configure", s.handleConfigure)
	r.POST("/api/rooms/:id/join", s.handleJoin)
	r.POST("/api/rooms/:id/kick", s.handleKick)
	r.POST("/api/rooms/:id/start", s.handleStart)
	r.POST("/api/rooms/:id/replay", s.handleReplay)

	r.POST("/api/rooms/:id/clue", s.handleSubmitClue)
	r.POST("/api/rooms/:id/guess", s.handleSubmitGuess)
	r.POST("/api/rooms/:id/end-turn", s.handleEndTurn)
	r.POST("/api/rooms/:id/pause", s.handlePause)
	r.POST("/api/rooms/:id/resume", s.handleResume)
	r.POST("/api/rooms/:id/assassin-behavior", s.handleAssassinBehavior)
	r.POST("/api/rooms/:id/turn-timer", s.handleTurnTimer)
	r.POST("/api/rooms/:id/toggle-reasoning", s.handleToggleReasoning)

	r.POST("/api/rooms/:id/ai/clue", s.handleRequestClue)
	r.POST("/api/rooms/:id/ai/clue/confirm", s.handleConfirmClue)
	r.POST("/api/rooms/:id/ai/clue/discard", s.handleDiscardClue)
	r.POST("/api/rooms/:id/ai/clue/job", s.handleStartClueJob)
	r.GET("/api/rooms/:id/ai/clue/job/:job", s.handleClueJobStatus)
	r.GET("/api/rooms/:id/ai/pending", s.handlePendingState)
	r.POST("/api/rooms/:id/ai/suggestions", s.handleSuggestions)
	r.POST("/api/rooms/:id/ai/play", s.handleAIPlay)

	if s.hub != nil {
		r.GET("/ws/rooms/:id", s.handleWebSocket)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveRoom accepts either a room id or a join code in the path.
func (s *Server) resolveRoom(r *http.Request, ps httprouter.Params) (*room.Room, error) {
	id := ps.ByName("id")
	if rm, err := s.rooms.GetByCode(id); err == nil {
		return rm, nil
	}
	return s.rooms.Get(r.Context(), id)
}

// viewerSeat extracts the caller's seat for view filtering. Absent or
// invalid means observer.
func viewerSeat(r *http.Request) game.SeatID {
	seat := game.SeatID(r.URL.Query().Get("seat"))
	if seat.Valid() {
		return seat
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Class string `json:"class,omitempty"`
}

// writeError maps error classes onto HTTP statuses: illegal moves are
// 400, conflicts (stale AI results) 409, AI upstream failures 502, and
// missing AI configuration 503.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var ge *game.Error
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrRoomClosed):
		status = http.StatusGone
	case errors.As(err, &ge):
		body.Code = ge.Code
		body.Class = string(ge.Class)
		switch ge.Class {
		case game.ClassValidation:
			status = http.StatusBadRequest
		case game.ClassConflict:
			status = http.StatusConflict
		case game.ClassUpstream:
			status = http.StatusBadGateway
		case game.ClassConfig:
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, body)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && err != io.EOF {
		return &game.Error{Class: game.ClassValidation, Code: "bad_json", Message: "request body is not valid JSON", Err: err}
	}
	return nil
}
