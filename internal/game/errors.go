package game

import "errors"

// ErrorClass buckets rejections so callers can decide how to react:
// validation errors are illegal moves, conflicts are safe to retry or
// discard, upstream errors are recoverable AI-service failures, and
// config errors mean AI play is not available at all.
type ErrorClass string

const (
	ClassValidation ErrorClass = "validation"
	ClassConflict   ErrorClass = "conflict"
	ClassUpstream   ErrorClass = "upstream"
	ClassConfig     ErrorClass = "config"
)

// Error is a typed rejection with a machine-readable reason code.
// State is never mutated when an Error is returned.
type Error struct {
	Class   ErrorClass
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two game errors by class and code, so sentinel values below
// work with errors.Is.
func (e *Error) Is(target error) bool {
	var ge *Error
	if !errors.As(target, &ge) {
		return false
	}
	return e.Class == ge.Class && e.Code == ge.Code
}

func validation(code, msg string) *Error {
	return &Error{Class: ClassValidation, Code: code, Message: msg}
}

func conflict(code, msg string) *Error {
	return &Error{Class: ClassConflict, Code: code, Message: msg}
}

// Upstream wraps an external-dependency failure (AI service call).
func Upstream(code, msg string, err error) *Error {
	return &Error{Class: ClassUpstream, Code: code, Message: msg, Err: err}
}

// Config marks a configuration failure that disables AI-dependent
// operations only.
func Config(code, msg string) *Error {
	return &Error{Class: ClassConfig, Code: code, Message: msg}
}

// ClassOf returns the error class, or "" for untyped errors.
func ClassOf(err error) ErrorClass {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Class
	}
	return ""
}

var (
	ErrNotInSetup         = validation("not_in_setup", "room is no longer in setup")
	ErrNotPlaying         = validation("not_playing", "game is not in progress")
	ErrGameFinished       = validation("game_finished", "game is already finished")
	ErrGamePaused         = validation("game_paused", "game is paused")
	ErrNotPaused          = validation("not_paused", "game is not paused")
	ErrNotCluePhase       = validation("not_clue_phase", "a clue has already been given this turn")
	ErrNotGuessPhase      = validation("not_guess_phase", "no clue has been given yet")
	ErrClueIsBoardWord    = validation("clue_is_board_word", "clue word appears on the board")
	ErrClueNumberRange    = validation("clue_number_range", "clue number must be between 0 and 9")
	ErrUnknownWord        = validation("unknown_word", "word is not on the board")
	ErrAlreadyRevealed    = validation("already_revealed", "card has already been revealed")
	ErrNoGuessesRemaining = validation("no_guesses_remaining", "no guesses remaining this turn")
	ErrSeatTaken          = validation("seat_taken", "seat is already occupied")
	ErrUnknownSeat        = validation("unknown_seat", "no such seat")
	ErrUnknownPlayer      = validation("unknown_player", "no such player in this room")
	ErrHumanSeatUnfilled  = validation("human_seat_unfilled", "every human seat needs a joined player before start")
	ErrNotFinished        = validation("not_finished", "game has not finished yet")
	ErrBadAssassinMode    = validation("bad_assassin_mode", "unknown assassin behavior")
	ErrBadTurnTimer       = validation("bad_turn_timer", "turn timer out of range")
	ErrEmptyModelList     = validation("empty_model_list", "each seat needs at least one model entry")
	ErrTurnNotExpired     = validation("turn_not_expired", "turn timer has not run out")

	ErrStaleResult   = conflict("stale_result", "AI result no longer matches current game state")
	ErrNoPendingClue = conflict("no_pending_clue", "no pending AI clue to confirm")
	ErrNoPendingJob  = conflict("no_pending_job", "no background AI job for this room")

	ErrAIUnavailable = Config("ai_unavailable", "AI service is not configured")
)
