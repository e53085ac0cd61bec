package game

import (
	"time"

	"github.com/codewords-live/server/internal/domain/board"
)

// CardView is one board card as seen by a viewer. Card is only populated
// once revealed, or for spymasters who see the full key.
type CardView struct {
	Word     string   `json:"word"`
	Revealed bool     `json:"revealed"`
	Card     CardType `json:"card,omitempty"`
}

// ClueView is a clue with AI intent fields stripped for viewers that are
// not allowed to see them.
type ClueView struct {
	Word       string   `json:"word"`
	Number     int      `json:"number"`
	Team       Team     `json:"team"`
	AIAuthored bool     `json:"ai_authored,omitempty"`
	Targets    []string `json:"targets,omitempty"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Risk       string   `json:"risk,omitempty"`
	Guesses    []Guess  `json:"guesses"`
}

// TimingView adds the live sub-phase clock to the accumulated buckets.
type TimingView struct {
	RedSpymasterMS  int64 `json:"red_spymaster_ms"`
	RedGuesserMS    int64 `json:"red_guesser_ms"`
	BlueSpymasterMS int64 `json:"blue_spymaster_ms"`
	BlueGuesserMS   int64 `json:"blue_guesser_ms"`
	PhaseElapsedMS  int64 `json:"phase_elapsed_ms"`
	TurnElapsedMS   int64 `json:"turn_elapsed_ms"`
}

// Snapshot is the role-filtered public state returned by every mutating
// call, so callers never need a separate fetch to see their effect.
type Snapshot struct {
	RoomID       string    `json:"room_id"`
	Phase        Phase     `json:"phase"`
	TurnPhase    TurnPhase `json:"turn_phase"`
	CurrentTeam  Team      `json:"current_team"`
	StartingTeam Team      `json:"starting_team,omitempty"`

	Cards []CardView `json:"cards,omitempty"`

	RedRemaining  int `json:"red_remaining"`
	BlueRemaining int `json:"blue_remaining"`

	CurrentClue      *ClueView  `json:"current_clue,omitempty"`
	GuessesRemaining int        `json:"guesses_remaining"`
	ClueHistory      []ClueView `json:"clue_history"`

	Roles  map[SeatID]Controller   `json:"roles"`
	Models map[SeatID][]ModelEntry `json:"models"`

	SimulationCount  int              `json:"simulation_count"`
	AssassinBehavior AssassinBehavior `json:"assassin_behavior"`
	TurnTimerSeconds int              `json:"turn_timer_seconds"`

	Paused          bool       `json:"paused"`
	Timing          TimingView `json:"timing"`
	ShowAIReasoning bool       `json:"show_ai_reasoning"`

	Winner  Team     `json:"winner,omitempty"`
	Players []Player `json:"players"`
}

// SnapshotFor builds the state view for one seat. An empty seat id is an
// observer: no key, no hidden reasoning. The snapshot shares no maps or
// slices with the live state: it is handed to HTTP handlers and the hub,
// which marshal it off the actor goroutine.
func (s *State) SnapshotFor(viewer SeatID, now time.Time) *Snapshot {
	spymaster := viewer.Valid() && viewer.IsSpymaster()
	showIntent := spymaster || s.ShowAIReasoning || s.Phase == PhaseFinished

	snap := &Snapshot{
		RoomID:           s.RoomID,
		Phase:            s.Phase,
		TurnPhase:        s.TurnPhase,
		CurrentTeam:      s.CurrentTeam,
		StartingTeam:     s.StartingTeam,
		RedRemaining:     s.RedRemaining,
		BlueRemaining:    s.BlueRemaining,
		GuessesRemaining: s.GuessesRemaining,
		Roles:            make(map[SeatID]Controller, len(s.Roles)),
		Models:           make(map[SeatID][]ModelEntry, len(s.Models)),
		SimulationCount:  s.SimulationCount,
		AssassinBehavior: s.AssassinBehavior,
		TurnTimerSeconds: s.TurnTimerSeconds,
		Paused:           s.Paused,
		ShowAIReasoning:  s.ShowAIReasoning,
		Winner:           s.Winner,
		Timing: TimingView{
			RedSpymasterMS:  s.Timing.RedSpymasterMS,
			RedGuesserMS:    s.Timing.RedGuesserMS,
			BlueSpymasterMS: s.Timing.BlueSpymasterMS,
			BlueGuesserMS:   s.Timing.BlueGuesserMS,
			PhaseElapsedMS:  s.Timing.phaseElapsed(now).Milliseconds(),
			TurnElapsedMS:   s.Timing.turnElapsed(now).Milliseconds(),
		},
	}

	for seat, ctrl := range s.Roles {
		snap.Roles[seat] = ctrl
	}
	for seat, entries := range s.Models {
		snap.Models[seat] = append([]ModelEntry(nil), entries...)
	}

	if s.Board != nil {
		snap.Cards = make([]CardView, len(s.Board.Words))
		for i, w := range s.Board.Words {
			cv := CardView{Word: w, Revealed: s.Revealed[i]}
			if s.Revealed[i] || spymaster || s.Phase == PhaseFinished {
				cv.Card = s.Board.Key[i]
			}
			snap.Cards[i] = cv
		}
	}

	if s.CurrentClue != nil {
		v := clueView(s.CurrentClue, showIntent)
		snap.CurrentClue = &v
	}
	snap.ClueHistory = make([]ClueView, 0, len(s.ClueHistory))
	for _, c := range s.ClueHistory {
		snap.ClueHistory = append(snap.ClueHistory, clueView(c, showIntent))
	}

	snap.Players = make([]Player, 0, len(s.Players))
	for _, p := range s.Players {
		snap.Players = append(snap.Players, *p)
	}

	return snap
}

func clueView(c *Clue, showIntent bool) ClueView {
	v := ClueView{
		Word:       c.Word,
		Number:     c.Number,
		Team:       c.Team,
		AIAuthored: c.AIAuthored,
		Guesses:    append([]Guess(nil), c.Guesses...),
	}
	if showIntent {
		v.Targets = append([]string(nil), c.Targets...)
		v.Reasoning = c.Reasoning
		v.Risk = c.Risk
	}
	return v
}

// UnrevealedWords lists the words still on the table, optionally only
// those of one card type (used by prompts and the simulation evaluator).
func (s *State) UnrevealedWords(ct CardType) []string {
	if s.Board == nil {
		return nil
	}
	var out []string
	for i, w := range s.Board.Words {
		if s.Revealed[i] {
			continue
		}
		if ct != "" && s.Board.Key[i] != ct {
			continue
		}
		out = append(out, w)
	}
	return out
}

// AssassinRemaining reports whether the assassin card is still on the
// table. The add_own_cards variant never removes it from the key.
func (s *State) AssassinRemaining() bool {
	if s.Board == nil {
		return false
	}
	for i, k := range s.Board.Key {
		if k == board.CardAssassin && !s.Revealed[i] {
			return true
		}
	}
	return false
}
