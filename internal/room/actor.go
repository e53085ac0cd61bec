// Package room hosts the per-room actor: a single goroutine that owns
// one game state and serializes every mutation through a request
// channel. AI calls never run on the actor goroutine; they snapshot the
// state, work outside, and re-enter with a staleness check before
// committing anything.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/codewords-live/server/internal/ai"
	"github.com/codewords-live/server/internal/domain/board"
	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/platform/logger"
	"github.com/codewords-live/server/internal/platform/metrics"
	"github.com/codewords-live/server/internal/storage"
)

// ErrRoomClosed is returned for operations posted to a closed room.
var ErrRoomClosed = errors.New("room is closed")

const (
	aiCacheSize = 64
	aiCacheTTL  = 30 * time.Second
)

// Broadcaster pushes role-filtered snapshots to connected clients. The
// views map carries one snapshot per seat plus the observer view under
// the empty key. The websocket hub implements this; nil is allowed.
type Broadcaster interface {
	BroadcastState(roomID string, views map[game.SeatID]*game.Snapshot)
}

// Deps are the external collaborators of a room. Store, History,
// Broadcast and AI may each be nil; the room degrades gracefully.
type Deps struct {
	Store     storage.RoomStore
	History   storage.HistoryStore
	AI        ai.Service
	Broadcast Broadcaster
	Log       *logger.Logger
	Words     board.WordSource

	// DisableAutoPlay turns off the background AI move loop; moves then
	// happen only through explicit calls. Used by tools and tests.
	DisableAutoPlay bool
}

// Room is one game room. All state access happens on the actor
// goroutine; exported methods post closures and wait.
type Room struct {
	ID   string
	Code string

	deps  Deps
	state *game.State
	rng   *rand.Rand

	reqCh chan func()
	quit  chan struct{}

	// AI orchestration state, actor-goroutine only.
	pending  *pendingClue
	job      *clueJob
	autoBusy bool

	// flight and cache are safe for concurrent use; the AI paths touch
	// them from outside the actor goroutine.
	flight singleflight.Group
	cache  *expirable.LRU[string, any]

	historyRecorded bool
	lastActive      time.Time
}

// New creates a room around a fresh state and starts its actor.
func New(id, code string, deps Deps) *Room {
	return newRoom(id, code, game.NewState(id, time.Now()), deps)
}

// Resurrect creates a room around a state loaded from storage.
func Resurrect(id, code string, state *game.State, deps Deps) *Room {
	r := newRoom(id, code, state, deps)
	// A reloaded finished game is already in the history table.
	r.historyRecorded = state.Phase == game.PhaseFinished
	return r
}

func newRoom(id, code string, state *game.State, deps Deps) *Room {
	if deps.Log == nil {
		deps.Log = logger.NewLogger()
	}
	if deps.Words == nil {
		deps.Words = board.DefaultPool()
	}

	r := &Room{
		ID:         id,
		Code:       code,
		deps:       deps,
		state:      state,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		reqCh:      make(chan func(), 16),
		quit:       make(chan struct{}),
		cache:      expirable.NewLRU[string, any](aiCacheSize, nil, aiCacheTTL),
		lastActive: time.Now(),
	}
	go r.run()
	go r.runTurnTimer()
	return r
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.reqCh:
			fn()
		case <-r.quit:
			return
		}
	}
}

// Close stops the actor. Pending posts fail with ErrRoomClosed.
func (r *Room) Close() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
}

// do runs fn on the actor goroutine and waits for it to finish.
func (r *Room) do(ctx context.Context, fn func()) error {
	start := time.Now()
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case r.reqCh <- wrapped:
	case <-r.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		metrics.Get().RecordActorRequest(time.Since(start))
		return nil
	case <-r.quit:
		return ErrRoomClosed
	}
}

// mutate is the template for every state-changing operation: run the
// mutation on the actor, commit on success, and hand back the caller's
// view of the result.
func (r *Room) mutate(ctx context.Context, viewer game.SeatID, event string, fn func(now time.Time) error) (*game.Snapshot, error) {
	var snap *game.Snapshot
	var opErr error

	err := r.do(ctx, func() {
		now := time.Now()
		if opErr = fn(now); opErr != nil {
			return
		}
		r.commit(event, now)
		snap = r.state.SnapshotFor(viewer, now)
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return snap, nil
}

// commit runs on the actor goroutine after every successful mutation:
// reconcile AI bookkeeping, persist, push to clients, and poke the
// auto-play loop.
func (r *Room) commit(event string, now time.Time) {
	r.lastActive = now
	r.reconcilePending()
	r.persist(now)
	r.recordHistory(now)

	if r.deps.Broadcast != nil {
		views := make(map[game.SeatID]*game.Snapshot, len(game.AllSeats)+1)
		views[""] = r.state.SnapshotFor("", now)
		for _, seat := range game.AllSeats {
			views[seat] = r.state.SnapshotFor(seat, now)
		}
		r.deps.Broadcast.BroadcastState(r.ID, views)
	}
	r.deps.Log.Event(event, r.ID, fmt.Sprintf("phase=%s turn=%s team=%s", r.state.Phase, r.state.TurnPhase, r.state.CurrentTeam))

	r.scheduleAutoPlay()
}

func (r *Room) persist(now time.Time) {
	if r.deps.Store == nil {
		return
	}
	blob, err := json.Marshal(r.state)
	if err != nil {
		r.deps.Log.Error(fmt.Sprintf("room %s: failed to marshal state: %v", r.ID, err))
		return
	}
	rec := storage.RoomRecord{
		RoomID:        r.ID,
		Code:          r.Code,
		SchemaVersion: storage.CurrentSchemaVersion,
		State:         blob,
		UpdatedAt:     now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.Store.Save(ctx, rec); err != nil {
		// Persistence is best effort; the in-memory state stays
		// authoritative for the life of the process.
		r.deps.Log.Error(fmt.Sprintf("room %s: failed to persist state: %v", r.ID, err))
	}
}

func (r *Room) recordHistory(now time.Time) {
	if r.deps.History == nil || r.state.Phase != game.PhaseFinished || r.historyRecorded {
		if r.state.Phase != game.PhaseFinished {
			r.historyRecorded = false
		}
		return
	}
	r.historyRecorded = true

	transcript, err := json.Marshal(r.state.ClueHistory)
	if err != nil {
		r.deps.Log.Error(fmt.Sprintf("room %s: failed to marshal transcript: %v", r.ID, err))
		return
	}
	g := storage.FinishedGame{
		ID:         uuid.NewString(),
		RoomID:     r.ID,
		Winner:     string(r.state.Winner),
		ClueCount:  len(r.state.ClueHistory),
		DurationMS: r.state.Timing.TeamTotalMS(game.TeamRed) + r.state.Timing.TeamTotalMS(game.TeamBlue),
		Transcript: transcript,
		FinishedAt: now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.deps.History.Append(ctx, g); err != nil {
		r.deps.Log.Error(fmt.Sprintf("room %s: failed to append history: %v", r.ID, err))
	}
}

// Snapshot returns the viewer's role-filtered state without mutating.
func (r *Room) Snapshot(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	var snap *game.Snapshot
	err := r.do(ctx, func() {
		snap = r.state.SnapshotFor(viewer, time.Now())
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LastActive reports when the room last committed a mutation, for the
// idle reaper.
func (r *Room) LastActive(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := r.do(ctx, func() { t = r.lastActive })
	return t, err
}

// Configure updates lobby roles, per-seat model lists and the
// simulation count. SETUP only.
func (r *Room) Configure(ctx context.Context, req game.ConfigureRequest, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "CONFIGURE", func(now time.Time) error {
		return r.state.Configure(req, now)
	})
}

// Join seats a player.
func (r *Room) Join(ctx context.Context, playerID, name string, seat game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, seat, "JOIN", func(now time.Time) error {
		return r.state.Join(playerID, name, seat, now)
	})
}

// Kick removes a player.
func (r *Room) Kick(ctx context.Context, playerID string, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "KICK", func(now time.Time) error {
		return r.state.Kick(playerID, now)
	})
}

// Start deals a board and begins play.
func (r *Room) Start(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "START", func(now time.Time) error {
		return r.state.Start(r.deps.Words, r.rng, now)
	})
}

// Replay starts a fresh game in a finished room, keeping the lobby.
func (r *Room) Replay(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "REPLAY", func(now time.Time) error {
		return r.state.Replay(r.deps.Words, r.rng, now)
	})
}

// SubmitClue applies a human-authored clue for the current team.
func (r *Room) SubmitClue(ctx context.Context, word string, number int, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "CLUE", func(now time.Time) error {
		return r.state.ApplyClue(&game.Clue{Word: word, Number: number}, now)
	})
}

// SubmitGuess resolves one guess and returns its outcome alongside the
// updated view.
func (r *Room) SubmitGuess(ctx context.Context, word string, viewer game.SeatID) (*game.GuessOutcome, *game.Snapshot, error) {
	var outcome *game.GuessOutcome
	snap, err := r.mutate(ctx, viewer, "GUESS", func(now time.Time) error {
		var err error
		outcome, err = r.state.ApplyGuess(word, r.rng, now)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return outcome, snap, nil
}

// EndTurn is the explicit pass action.
func (r *Room) EndTurn(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "END_TURN", func(now time.Time) error {
		return r.state.EndTurn(now)
	})
}

// Pause stops the clocks and blocks moves, timers and auto-play.
func (r *Room) Pause(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "PAUSE", func(now time.Time) error {
		return r.state.Pause(now)
	})
}

// Resume restarts the clocks.
func (r *Room) Resume(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "RESUME", func(now time.Time) error {
		return r.state.Resume(now)
	})
}

// SetAssassinBehavior selects the assassin variant.
func (r *Room) SetAssassinBehavior(ctx context.Context, b game.AssassinBehavior, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "ASSASSIN_MODE", func(now time.Time) error {
		return r.state.SetAssassinBehavior(b, now)
	})
}

// SetTurnTimer sets the per-turn countdown in seconds, 0 disables.
func (r *Room) SetTurnTimer(ctx context.Context, seconds int, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "TURN_TIMER", func(now time.Time) error {
		return r.state.SetTurnTimer(seconds, now)
	})
}

// ToggleAIReasoning flips visibility of AI intent for non-spymasters.
func (r *Room) ToggleAIReasoning(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "TOGGLE_REASONING", func(now time.Time) error {
		r.state.ToggleAIReasoning(now)
		return nil
	})
}

// cloneState deep-copies the state so AI calls can read it off the
// actor goroutine while the live copy keeps mutating.
func cloneState(s *game.State) (*game.State, error) {
	blob, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to clone state: %w", err)
	}
	var c game.State
	if err := json.Unmarshal(blob, &c); err != nil {
		return nil, fmt.Errorf("failed to clone state: %w", err)
	}
	return &c, nil
}
