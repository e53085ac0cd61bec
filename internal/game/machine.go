package game

import (
	"math/rand"
	"strings"
	"time"

	"github.com/codewords-live/server/internal/domain/board"
)

// maxAssassinSideEffects bounds the free reveals / conversions applied by
// the non-instant assassin behavior variants.
const maxAssassinSideEffects = 2

// ConfigureRequest carries lobby configuration. Nil maps leave the
// corresponding setting untouched.
type ConfigureRequest struct {
	Roles           map[SeatID]Controller   `json:"roles,omitempty"`
	Models          map[SeatID][]ModelEntry `json:"models,omitempty"`
	SimulationCount *int                    `json:"simulation_count,omitempty"`
}

// Configure updates lobby configuration. Only allowed in SETUP.
func (s *State) Configure(req ConfigureRequest, now time.Time) error {
	if s.Phase != PhaseSetup {
		return ErrNotInSetup
	}
	for seat, ctrl := range req.Roles {
		if !seat.Valid() {
			return ErrUnknownSeat
		}
		if ctrl != ControllerHuman && ctrl != ControllerAI {
			return validation("bad_controller", "controller must be human or ai")
		}
	}
	for seat, entries := range req.Models {
		if !seat.Valid() {
			return ErrUnknownSeat
		}
		if len(entries) == 0 {
			return ErrEmptyModelList
		}
		for _, entry := range entries {
			if entry.Model == "" {
				return ErrEmptyModelList
			}
		}
	}
	if req.SimulationCount != nil && (*req.SimulationCount < 0 || *req.SimulationCount > 16) {
		return validation("bad_simulation_count", "simulation count must be between 0 and 16")
	}

	for seat, ctrl := range req.Roles {
		s.Roles[seat] = ctrl
	}
	for seat, entries := range req.Models {
		s.Models[seat] = entries
	}
	if req.SimulationCount != nil {
		s.SimulationCount = *req.SimulationCount
	}
	s.UpdatedAt = now
	return nil
}

// Join seats a player. Rejoining with the same player id moves the player
// to the new seat.
func (s *State) Join(playerID, name string, seat SeatID, now time.Time) error {
	if !seat.Valid() {
		return ErrUnknownSeat
	}
	for id, p := range s.Players {
		if p.Seat == seat && id != playerID {
			return ErrSeatTaken
		}
	}
	s.Players[playerID] = &Player{ID: playerID, Name: name, Seat: seat, JoinedAt: now}
	s.UpdatedAt = now
	return nil
}

// Kick removes a player from the room.
func (s *State) Kick(playerID string, now time.Time) error {
	if _, ok := s.Players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	delete(s.Players, playerID)
	s.UpdatedAt = now
	return nil
}

// seatFilled reports whether any joined player occupies the seat.
func (s *State) seatFilled(seat SeatID) bool {
	for _, p := range s.Players {
		if p.Seat == seat {
			return true
		}
	}
	return false
}

// Start transitions SETUP to PLAYING. Every seat configured as human must
// have a joined player. The starting team is drawn at random and receives
// nine cards.
func (s *State) Start(src board.WordSource, rng *rand.Rand, now time.Time) error {
	if s.Phase != PhaseSetup {
		return ErrNotInSetup
	}
	for _, seat := range AllSeats {
		if s.Roles[seat] == ControllerHuman && !s.seatFilled(seat) {
			return ErrHumanSeatUnfilled
		}
	}

	starting := TeamRed
	if rng.Intn(2) == 1 {
		starting = TeamBlue
	}
	return s.deal(src, rng, starting, now)
}

// deal generates a fresh board and resets all turn fields. Shared by
// Start and Replay.
func (s *State) deal(src board.WordSource, rng *rand.Rand, starting Team, now time.Time) error {
	b, err := board.Generate(src, rng, starting)
	if err != nil {
		return err
	}

	s.Board = b
	s.Revealed = make([]bool, board.Size)
	s.RedRemaining = b.Count(board.CardRed)
	s.BlueRemaining = b.Count(board.CardBlue)
	s.StartingTeam = starting
	s.CurrentTeam = starting
	s.Phase = PhasePlaying
	s.TurnPhase = TurnClue
	s.CurrentClue = nil
	s.GuessesRemaining = 0
	s.ClueHistory = nil
	s.GuessHistory = nil
	s.Winner = ""
	s.Paused = false
	s.Timing.reset(now)
	s.UpdatedAt = now
	return nil
}

// Replay regenerates the board and resets turn and timing fields while
// preserving lobby configuration and player seats. Only finished games
// can be replayed.
func (s *State) Replay(src board.WordSource, rng *rand.Rand, now time.Time) error {
	if s.Phase != PhaseFinished {
		return ErrNotFinished
	}
	starting := TeamRed
	if rng.Intn(2) == 1 {
		starting = TeamBlue
	}
	return s.deal(src, rng, starting, now)
}

// playable rejects mutations that require a running, unpaused game.
func (s *State) playable() error {
	switch s.Phase {
	case PhaseSetup:
		return ErrNotPlaying
	case PhaseFinished:
		return ErrGameFinished
	}
	if s.Paused {
		return ErrGamePaused
	}
	return nil
}

// ApplyClue validates and applies a clue for the current team, switching
// the turn to the guess sub-phase. The clue may be human- or AI-authored;
// the intent fields are simply carried along.
func (s *State) ApplyClue(c *Clue, now time.Time) error {
	if err := s.playable(); err != nil {
		return err
	}
	if s.TurnPhase != TurnClue {
		return ErrNotCluePhase
	}
	if c.Number < 0 || c.Number > 9 {
		return ErrClueNumberRange
	}
	if strings.TrimSpace(c.Word) == "" {
		return validation("empty_clue", "clue word required")
	}
	if s.Board.IndexOf(c.Word) >= 0 {
		return ErrClueIsBoardWord
	}

	c.Word = strings.ToUpper(strings.TrimSpace(c.Word))
	c.Team = s.CurrentTeam
	c.Guesses = nil

	s.Timing.recordSpymaster(s.CurrentTeam, now)
	s.CurrentClue = c
	s.ClueHistory = append(s.ClueHistory, c)
	s.GuessesRemaining = c.Number + 1 // the bonus guess is part of the rules
	s.TurnPhase = TurnGuess
	s.UpdatedAt = now
	return nil
}

// GuessOutcome describes how a single guess resolved.
type GuessOutcome struct {
	Guess      Guess `json:"guess"`
	TurnEnded  bool  `json:"turn_ended"`
	GameEnded  bool  `json:"game_ended"`
	Winner     Team  `json:"winner,omitempty"`
	// BonusReveals are opponent cards revealed for free by the
	// reveal_opponent assassin variant.
	BonusReveals []int `json:"bonus_reveals,omitempty"`
	// ConvertedCards are neutral cards converted to the guessing team's
	// color by the add_own_cards assassin variant.
	ConvertedCards []int `json:"converted_cards,omitempty"`
}

// ApplyGuess resolves one guess for the current team. Win conditions are
// checked after every reveal, before turn-end conditions, since winning
// takes precedence over continuing to guess.
func (s *State) ApplyGuess(word string, rng *rand.Rand, now time.Time) (*GuessOutcome, error) {
	if err := s.playable(); err != nil {
		return nil, err
	}
	if s.TurnPhase != TurnGuess {
		return nil, ErrNotGuessPhase
	}
	if s.GuessesRemaining <= 0 {
		return nil, ErrNoGuessesRemaining
	}

	idx := s.Board.IndexOf(word)
	if idx < 0 {
		return nil, ErrUnknownWord
	}
	if s.Revealed[idx] {
		return nil, ErrAlreadyRevealed
	}

	card := s.Board.Key[idx]
	s.reveal(idx)

	guess := Guess{
		Word:    s.Board.Words[idx],
		Index:   idx,
		Card:    card,
		Team:    s.CurrentTeam,
		Correct: card == s.CurrentTeam.Card(),
		At:      now,
	}
	outcome := &GuessOutcome{}

	switch {
	case card == board.CardAssassin:
		s.resolveAssassin(outcome, rng, now)

	case guess.Correct:
		s.GuessesRemaining--
		if winner, won := s.checkWin(); won {
			s.finish(winner, now)
			outcome.GameEnded = true
			outcome.Winner = winner
		} else if s.GuessesRemaining == 0 {
			s.endTurn(now)
			outcome.TurnEnded = true
		}

	default:
		// Wrong color or neutral: the reveal may still hand the
		// opponent their last card.
		if winner, won := s.checkWin(); won {
			s.finish(winner, now)
			outcome.GameEnded = true
			outcome.Winner = winner
		} else {
			s.endTurn(now)
			outcome.TurnEnded = true
		}
	}

	guess.EndedTurn = outcome.TurnEnded || outcome.GameEnded
	if s.CurrentClue != nil {
		s.CurrentClue.Guesses = append(s.CurrentClue.Guesses, guess)
	} else if len(s.ClueHistory) > 0 {
		// endTurn already cleared the current clue pointer.
		last := s.ClueHistory[len(s.ClueHistory)-1]
		last.Guesses = append(last.Guesses, guess)
	}
	s.GuessHistory = append(s.GuessHistory, guess)
	outcome.Guess = guess
	s.UpdatedAt = now

	if outcome.GameEnded {
		outcome.Winner = s.Winner
	}
	return outcome, nil
}

// reveal flips a card and keeps the derived remaining counts consistent
// with key + revealed.
func (s *State) reveal(idx int) {
	s.Revealed[idx] = true
	switch s.Board.Key[idx] {
	case board.CardRed:
		s.RedRemaining--
	case board.CardBlue:
		s.BlueRemaining--
	}
}

// resolveAssassin branches on the configured assassin behavior. The
// guessing team's turn always ends; only instant_loss ends the game
// directly, though reveal_opponent can hand the opponent the win.
func (s *State) resolveAssassin(outcome *GuessOutcome, rng *rand.Rand, now time.Time) {
	team := s.CurrentTeam
	opponent := team.Opponent()

	switch s.AssassinBehavior {
	case AssassinRevealOpponent:
		for _, idx := range s.randomUnrevealed(opponent.Card(), maxAssassinSideEffects, rng) {
			s.reveal(idx)
			outcome.BonusReveals = append(outcome.BonusReveals, idx)
		}

	case AssassinAddOwnCards:
		// Converting neutrals to own cards raises the team's remaining
		// count: more work, not a literal penalty.
		for _, idx := range s.randomUnrevealed(board.CardNeutral, maxAssassinSideEffects, rng) {
			s.Board.Key[idx] = team.Card()
			if team == TeamRed {
				s.RedRemaining++
			} else {
				s.BlueRemaining++
			}
			outcome.ConvertedCards = append(outcome.ConvertedCards, idx)
		}

	default: // instant_loss
		s.finish(opponent, now)
		outcome.GameEnded = true
		outcome.Winner = opponent
		return
	}

	// Re-check wins after side effects: reveal_opponent can finish the
	// opponent's board immediately.
	if winner, won := s.checkWin(); won {
		s.finish(winner, now)
		outcome.GameEnded = true
		outcome.Winner = winner
		return
	}
	s.endTurn(now)
	outcome.TurnEnded = true
}

// randomUnrevealed picks up to n random unrevealed cards of the given type.
func (s *State) randomUnrevealed(ct CardType, n int, rng *rand.Rand) []int {
	var candidates []int
	for i, k := range s.Board.Key {
		if k == ct && !s.Revealed[i] {
			candidates = append(candidates, i)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func (s *State) checkWin() (Team, bool) {
	if s.RedRemaining == 0 {
		return TeamRed, true
	}
	if s.BlueRemaining == 0 {
		return TeamBlue, true
	}
	return "", false
}

func (s *State) finish(winner Team, now time.Time) {
	s.Timing.recordGuesser(s.CurrentTeam, now)
	s.Phase = PhaseFinished
	s.Winner = winner
	s.CurrentClue = nil
	s.GuessesRemaining = 0
	s.UpdatedAt = now
}

// EndTurn is the explicit pass action.
func (s *State) EndTurn(now time.Time) error {
	if err := s.playable(); err != nil {
		return err
	}
	if s.TurnPhase != TurnGuess {
		return ErrNotGuessPhase
	}
	s.endTurn(now)
	s.UpdatedAt = now
	return nil
}

// endTurn records elapsed guesser time, flips the current team, clears
// the clue state and restarts the turn clock.
func (s *State) endTurn(now time.Time) {
	s.Timing.recordGuesser(s.CurrentTeam, now)
	s.CurrentTeam = s.CurrentTeam.Opponent()
	s.CurrentClue = nil
	s.GuessesRemaining = 0
	s.TurnPhase = TurnClue
	s.Timing.begin(now)
}

// ExpireTurn passes the turn when the countdown runs out. In the clue
// sub-phase the spymaster's elapsed time is charged before the flip so
// the guesser bucket is not billed for it.
func (s *State) ExpireTurn(now time.Time) error {
	if err := s.playable(); err != nil {
		return err
	}
	if !s.TurnExpired(now) {
		return ErrTurnNotExpired
	}
	if s.TurnPhase == TurnClue {
		s.Timing.recordSpymaster(s.CurrentTeam, now)
	}
	s.endTurn(now)
	s.UpdatedAt = now
	return nil
}

// Pause stops the clocks. Turn timers and AI auto-play must not fire
// while paused.
func (s *State) Pause(now time.Time) error {
	if s.Phase != PhasePlaying {
		return ErrNotPlaying
	}
	if s.Paused {
		return ErrGamePaused
	}
	s.Paused = true
	s.Timing.pause(now)
	s.UpdatedAt = now
	return nil
}

// Resume restarts the clocks without losing accrued time.
func (s *State) Resume(now time.Time) error {
	if !s.Paused {
		return ErrNotPaused
	}
	s.Paused = false
	s.Timing.resume(now)
	s.UpdatedAt = now
	return nil
}

// SetAssassinBehavior switches the assassin variant.
func (s *State) SetAssassinBehavior(b AssassinBehavior, now time.Time) error {
	switch b {
	case AssassinInstantLoss, AssassinRevealOpponent, AssassinAddOwnCards:
		s.AssassinBehavior = b
		s.UpdatedAt = now
		return nil
	default:
		return ErrBadAssassinMode
	}
}

// SetTurnTimer sets the optional per-turn countdown, 0 disables it.
func (s *State) SetTurnTimer(seconds int, now time.Time) error {
	if seconds < 0 || seconds > 3600 {
		return ErrBadTurnTimer
	}
	s.TurnTimerSeconds = seconds
	s.UpdatedAt = now
	return nil
}

// ToggleAIReasoning flips whether AI reasoning fields are visible to
// non-spymasters.
func (s *State) ToggleAIReasoning(now time.Time) {
	s.ShowAIReasoning = !s.ShowAIReasoning
	s.UpdatedAt = now
}
