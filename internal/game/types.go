// Package game owns the per-room game state and the turn state machine.
// Everything here is single-threaded: the room actor is the only caller
// that mutates a State, so no locking happens at this layer.
package game

import (
	"time"

	"github.com/codewords-live/server/internal/domain/board"
)

// Team and CardType are shared with the board package.
type (
	Team     = board.Team
	CardType = board.CardType
)

const (
	TeamRed  = board.TeamRed
	TeamBlue = board.TeamBlue
)

// Phase is the room lifecycle phase.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// TurnPhase cycles within PLAYING: the spymaster gives a clue, then the
// guessers act, then the other team's spymaster is up.
type TurnPhase string

const (
	TurnClue  TurnPhase = "clue"
	TurnGuess TurnPhase = "guess"
)

// AssassinBehavior selects what happens when a guess lands on the assassin.
type AssassinBehavior string

const (
	AssassinInstantLoss    AssassinBehavior = "instant_loss"
	AssassinRevealOpponent AssassinBehavior = "reveal_opponent"
	AssassinAddOwnCards    AssassinBehavior = "add_own_cards"
)

// Controller says whether a seat is played by a human or the AI.
type Controller string

const (
	ControllerHuman Controller = "human"
	ControllerAI    Controller = "ai"
)

// SeatID identifies one of the four seats.
type SeatID string

const (
	SeatRedSpymaster  SeatID = "red_spymaster"
	SeatRedGuesser    SeatID = "red_guesser"
	SeatBlueSpymaster SeatID = "blue_spymaster"
	SeatBlueGuesser   SeatID = "blue_guesser"
)

// AllSeats lists the four seats in a stable order.
var AllSeats = []SeatID{SeatRedSpymaster, SeatRedGuesser, SeatBlueSpymaster, SeatBlueGuesser}

// Team returns the team a seat belongs to.
func (s SeatID) Team() Team {
	if s == SeatRedSpymaster || s == SeatRedGuesser {
		return TeamRed
	}
	return TeamBlue
}

// IsSpymaster reports whether the seat is a spymaster seat.
func (s SeatID) IsSpymaster() bool {
	return s == SeatRedSpymaster || s == SeatBlueSpymaster
}

// Valid reports whether the seat id is one of the four seats.
func (s SeatID) Valid() bool {
	for _, seat := range AllSeats {
		if s == seat {
			return true
		}
	}
	return false
}

// SeatFor returns the seat for a team and role.
func SeatFor(team Team, spymaster bool) SeatID {
	switch {
	case team == TeamRed && spymaster:
		return SeatRedSpymaster
	case team == TeamRed:
		return SeatRedGuesser
	case spymaster:
		return SeatBlueSpymaster
	default:
		return SeatBlueGuesser
	}
}

// DefaultModel is used for AI seats that were never configured explicitly.
const DefaultModel = "gpt-4o-mini"

// ModelEntry is one language-model configuration for a seat. A seat with
// several entries picks one at random per invocation.
type ModelEntry struct {
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
}

// Player is a joined human occupying a seat.
type Player struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Seat     SeatID    `json:"seat"`
	JoinedAt time.Time `json:"joined_at"`
}

// Guess is one resolved guess against a clue.
type Guess struct {
	Word      string    `json:"word"`
	Index     int       `json:"index"`
	Card      CardType  `json:"card"`
	Team      Team      `json:"team"`
	Correct   bool      `json:"correct"`
	EndedTurn bool      `json:"ended_turn"`
	At        time.Time `json:"at"`
}

// Clue is a one-word hint plus a count. The intent fields are populated
// only when the clue was AI-authored.
type Clue struct {
	Word       string  `json:"word"`
	Number     int     `json:"number"`
	Team       Team    `json:"team"`
	AIAuthored bool    `json:"ai_authored,omitempty"`
	Targets    []string `json:"targets,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Risk       string  `json:"risk,omitempty"`
	Guesses    []Guess `json:"guesses"`
}

// State is the single source of truth for one room. It is persisted as a
// single JSON record after every mutation.
type State struct {
	RoomID       string    `json:"room_id"`
	Phase        Phase     `json:"phase"`
	TurnPhase    TurnPhase `json:"turn_phase"`
	CurrentTeam  Team      `json:"current_team"`
	StartingTeam Team      `json:"starting_team"`

	Board    *board.Board `json:"board,omitempty"`
	Revealed []bool       `json:"revealed,omitempty"`

	RedRemaining  int `json:"red_remaining"`
	BlueRemaining int `json:"blue_remaining"`

	CurrentClue      *Clue   `json:"current_clue,omitempty"`
	GuessesRemaining int     `json:"guesses_remaining"`
	ClueHistory      []*Clue `json:"clue_history"`
	GuessHistory     []Guess `json:"guess_history"`

	Roles  map[SeatID]Controller   `json:"roles"`
	Models map[SeatID][]ModelEntry `json:"models"`

	SimulationCount  int              `json:"simulation_count"`
	AssassinBehavior AssassinBehavior `json:"assassin_behavior"`
	TurnTimerSeconds int              `json:"turn_timer_seconds"`

	Paused          bool   `json:"paused"`
	Timing          Timing `json:"timing"`
	ShowAIReasoning bool   `json:"show_ai_reasoning"`

	Winner Team `json:"winner,omitempty"`

	Players map[string]*Player `json:"players"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState creates a fresh room state in SETUP with the board still empty.
func NewState(roomID string, now time.Time) *State {
	roles := make(map[SeatID]Controller, len(AllSeats))
	models := make(map[SeatID][]ModelEntry, len(AllSeats))
	for _, seat := range AllSeats {
		roles[seat] = ControllerHuman
		models[seat] = []ModelEntry{{Model: DefaultModel}}
	}

	return &State{
		RoomID:           roomID,
		Phase:            PhaseSetup,
		TurnPhase:        TurnClue,
		Roles:            roles,
		Models:           models,
		AssassinBehavior: AssassinInstantLoss,
		Players:          make(map[string]*Player),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SeatModels returns the configured model list for a seat, falling back
// to a single default entry so the list is never empty.
func (s *State) SeatModels(seat SeatID) []ModelEntry {
	if entries := s.Models[seat]; len(entries) > 0 {
		return entries
	}
	return []ModelEntry{{Model: DefaultModel}}
}

// RemainingFor returns the unrevealed card count of a team.
func (s *State) RemainingFor(team Team) int {
	if team == TeamRed {
		return s.RedRemaining
	}
	return s.BlueRemaining
}
