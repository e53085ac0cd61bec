package httpapi

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/room"
)

// createdRoom is the creation response: ids the client needs plus the
// initial state.
type createdRoom struct {
	ID    string         `json:"id"`
	Code  string         `json:"code"`
	State *game.Snapshot `json:"state"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rm, err := s.rooms.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Snapshot(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdRoom{ID: rm.ID, Code: rm.Code, State: snap})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.rooms.List(r.Context()))
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Snapshot(r.Context(), viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleQRCode renders the join link as a PNG for the lobby screen.
func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}

	joinURL := fmt.Sprintf("%s/join/%s", s.baseURL, rm.Code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		writeError(w, fmt.Errorf("failed to render QR code: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	games, err := s.history.ListByRoom(r.Context(), rm.ID, 20)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req game.ConfigureRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Configure(r.Context(), req, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		PlayerID string      `json:"player_id"`
		Name     string      `json:"name"`
		Seat     game.SeatID `json:"seat"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Join(r.Context(), req.PlayerID, req.Name, req.Seat)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Kick(r.Context(), req.PlayerID, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.Start(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.Replay(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleSubmitClue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Word   string `json:"word"`
		Number int    `json:"number"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.SubmitClue(r.Context(), req.Word, req.Number, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// guessResponse pairs the resolved guess with the updated state.
type guessResponse struct {
	Outcome *game.GuessOutcome `json:"outcome"`
	State   *game.Snapshot     `json:"state"`
}

func (s *Server) handleSubmitGuess(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Word string `json:"word"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	outcome, snap, err := rm.SubmitGuess(r.Context(), req.Word, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guessResponse{Outcome: outcome, State: snap})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.EndTurn(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.Pause(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.Resume(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleAssassinBehavior(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Behavior game.AssassinBehavior `json:"behavior"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.SetAssassinBehavior(r.Context(), req.Behavior, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTurnTimer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.SetTurnTimer(r.Context(), req.Seconds, viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleToggleReasoning(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.ToggleAIReasoning(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleRequestClue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	prop, err := rm.RequestClue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}

func (s *Server) handleConfirmClue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.simpleMutation(w, r, ps, func(rm *room.Room) (*game.Snapshot, error) {
		return rm.ConfirmClue(r.Context(), viewerSeat(r))
	})
}

func (s *Server) handleDiscardClue(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rm.DiscardClue(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

// startedJob is the background-generation response.
type startedJob struct {
	JobID string `json:"job_id"`
}

func (s *Server) handleStartClueJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := rm.StartClueJob(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startedJob{JobID: jobID})
}

func (s *Server) handleClueJobStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := rm.ClueJobStatus(r.Context(), ps.ByName("job"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePendingState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := rm.PendingState(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	sug, err := rm.RequestSuggestions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (s *Server) handleAIPlay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rm.AIPlay(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	snap, err := rm.Snapshot(r.Context(), viewerSeat(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ServeWS(w, r, rm.ID)
}

// simpleMutation factors the resolve-call-respond shape shared by the
// bodyless operations.
func (s *Server) simpleMutation(w http.ResponseWriter, r *http.Request, ps httprouter.Params, fn func(*room.Room) (*game.Snapshot, error)) {
	rm, err := s.resolveRoom(r, ps)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := fn(rm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
