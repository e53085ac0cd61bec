package game

import "time"

// Timing accumulates elapsed wall-clock time per team per sub-phase
// (spymaster thinking vs. guessers acting). The running sub-phase and
// turn are tracked through start timestamps; pausing parks the clock by
// remembering when the pause began, and resuming shifts the start
// timestamps forward by the paused duration so elapsed-time arithmetic
// continues seamlessly.
type Timing struct {
	RedSpymasterMS  int64 `json:"red_spymaster_ms"`
	RedGuesserMS    int64 `json:"red_guesser_ms"`
	BlueSpymasterMS int64 `json:"blue_spymaster_ms"`
	BlueGuesserMS   int64 `json:"blue_guesser_ms"`

	PhaseStart time.Time `json:"phase_start"`
	TurnStart  time.Time `json:"turn_start"`
	PausedAt   time.Time `json:"paused_at,omitzero"`
}

func (t *Timing) reset(now time.Time) {
	t.RedSpymasterMS = 0
	t.RedGuesserMS = 0
	t.BlueSpymasterMS = 0
	t.BlueGuesserMS = 0
	t.PausedAt = time.Time{}
	t.begin(now)
}

func (t *Timing) begin(now time.Time) {
	t.PhaseStart = now
	t.TurnStart = now
}

func (t *Timing) recordSpymaster(team Team, now time.Time) {
	ms := t.phaseElapsed(now).Milliseconds()
	if team == TeamRed {
		t.RedSpymasterMS += ms
	} else {
		t.BlueSpymasterMS += ms
	}
	t.PhaseStart = now
}

func (t *Timing) recordGuesser(team Team, now time.Time) {
	ms := t.phaseElapsed(now).Milliseconds()
	if team == TeamRed {
		t.RedGuesserMS += ms
	} else {
		t.BlueGuesserMS += ms
	}
	t.PhaseStart = now
}

func (t *Timing) pause(now time.Time) {
	t.PausedAt = now
}

func (t *Timing) resume(now time.Time) {
	if t.PausedAt.IsZero() {
		return
	}
	pausedFor := now.Sub(t.PausedAt)
	t.PhaseStart = t.PhaseStart.Add(pausedFor)
	t.TurnStart = t.TurnStart.Add(pausedFor)
	t.PausedAt = time.Time{}
}

// phaseElapsed is the live elapsed time of the current sub-phase. While
// paused the clock reads as of the pause instant.
func (t *Timing) phaseElapsed(now time.Time) time.Duration {
	if t.PhaseStart.IsZero() {
		return 0
	}
	end := now
	if !t.PausedAt.IsZero() && t.PausedAt.Before(now) {
		end = t.PausedAt
	}
	if end.Before(t.PhaseStart) {
		return 0
	}
	return end.Sub(t.PhaseStart)
}

// turnElapsed is the live elapsed time of the current turn, used for the
// optional turn timer.
func (t *Timing) turnElapsed(now time.Time) time.Duration {
	if t.TurnStart.IsZero() {
		return 0
	}
	end := now
	if !t.PausedAt.IsZero() && t.PausedAt.Before(now) {
		end = t.PausedAt
	}
	if end.Before(t.TurnStart) {
		return 0
	}
	return end.Sub(t.TurnStart)
}

// TeamTotalMS returns the accumulated milliseconds of a team across both
// sub-phases, not counting the live sub-phase.
func (t *Timing) TeamTotalMS(team Team) int64 {
	if team == TeamRed {
		return t.RedSpymasterMS + t.RedGuesserMS
	}
	return t.BlueSpymasterMS + t.BlueGuesserMS
}

// PhaseElapsed exposes the live sub-phase clock for snapshots and tests.
func (s *State) PhaseElapsed(now time.Time) time.Duration {
	return s.Timing.phaseElapsed(now)
}

// TurnElapsed exposes the live turn clock for the turn timer.
func (s *State) TurnElapsed(now time.Time) time.Duration {
	return s.Timing.turnElapsed(now)
}

// TurnExpired reports whether the optional turn timer has run out.
// A paused game never expires.
func (s *State) TurnExpired(now time.Time) bool {
	if s.Phase != PhasePlaying || s.Paused || s.TurnTimerSeconds <= 0 {
		return false
	}
	return s.Timing.turnElapsed(now) >= time.Duration(s.TurnTimerSeconds)*time.Second
}
