package room

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codewords-live/server/internal/ai"
	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/platform/metrics"
)

// aiJobTimeout bounds a background clue generation end to end.
const aiJobTimeout = 3 * time.Minute

// jobPollInterval paces provider status polls for background jobs.
// Variable so tests can shorten it.
var jobPollInterval = 2 * time.Second

// autoPlayDelay paces the AI-vs-AI loop so spectators can follow.
const autoPlayDelay = 1500 * time.Millisecond

// signature pins an AI request to the game position it was computed
// for. Any mutation that could invalidate the result changes at least
// one field, so comparing signatures is the whole staleness check.
type signature struct {
	Team     game.Team
	Phase    game.TurnPhase
	Revealed int
	Clues    int
	Guesses  int
}

func sigOf(s *game.State) signature {
	revealed := 0
	for _, r := range s.Revealed {
		if r {
			revealed++
		}
	}
	return signature{
		Team:     s.CurrentTeam,
		Phase:    s.TurnPhase,
		Revealed: revealed,
		Clues:    len(s.ClueHistory),
		Guesses:  len(s.GuessHistory),
	}
}

// key derives the dedup/cache key for one request kind at one position.
func (sig signature) key(kind string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%d|%d", kind, sig.Team, sig.Phase, sig.Revealed, sig.Clues, sig.Guesses)
}

// ClueProposal is an AI-generated clue awaiting spymaster confirmation.
type ClueProposal struct {
	Word      string           `json:"word"`
	Number    int              `json:"number"`
	Targets   []string         `json:"targets,omitempty"`
	Reasoning string           `json:"reasoning,omitempty"`
	Risk      string           `json:"risk,omitempty"`
	Model     string           `json:"model"`
	Scores    []CandidateScore `json:"scores,omitempty"`
	At        time.Time        `json:"at"`
}

// GuessSuggestion is an AI-generated ordered guess list. It is advice
// only; nothing is revealed until a guess is submitted.
type GuessSuggestion struct {
	Guesses   []string  `json:"guesses"`
	Reasoning string    `json:"reasoning,omitempty"`
	Model     string    `json:"model"`
	At        time.Time `json:"at"`
}

type pendingClue struct {
	Proposal *ClueProposal
	Sig      signature
}

type clueJob struct {
	ID       string
	Sig      signature
	Status   ai.JobStatus
	Proposal *ClueProposal
	Err      string
	At       time.Time
}

// JobView is the poll response for a background clue job.
type JobView struct {
	ID       string        `json:"id"`
	Status   ai.JobStatus  `json:"status"`
	Proposal *ClueProposal `json:"proposal,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// PendingView reports the room's current AI bookkeeping.
type PendingView struct {
	Pending *ClueProposal `json:"pending,omitempty"`
	Job     *JobView      `json:"job,omitempty"`
}

// reconcilePending drops a pending proposal or completed job whose
// position no longer matches the live state. Runs on every commit.
func (r *Room) reconcilePending() {
	sig := sigOf(r.state)
	if r.pending != nil && r.pending.Sig != sig {
		r.deps.Log.Warn(fmt.Sprintf("room %s: dropping stale pending clue %q", r.ID, r.pending.Proposal.Word))
		metrics.Get().RecordStaleRejection()
		r.pending = nil
	}
	if r.job != nil && r.job.Status == ai.JobCompleted && r.job.Sig != sig {
		r.job = nil
	}
}

// aiPrep is the read-only input of one AI call, captured on the actor
// goroutine and then used outside it.
type aiPrep struct {
	st    *game.State
	sig   signature
	team  game.Team
	entry game.ModelEntry
	sims  int
}

// prepareAICall snapshots everything an AI call needs: a state clone,
// the position signature, and one model entry picked at random from the
// seat's configured list.
func (r *Room) prepareAICall(ctx context.Context, spymaster bool) (*aiPrep, error) {
	if r.deps.AI == nil || !r.deps.AI.IsAvailable() {
		return nil, game.ErrAIUnavailable
	}

	var prep *aiPrep
	var opErr error
	err := r.do(ctx, func() {
		if r.state.Phase != game.PhasePlaying {
			opErr = game.ErrNotPlaying
			return
		}
		if r.state.Paused {
			opErr = game.ErrGamePaused
			return
		}
		if spymaster && r.state.TurnPhase != game.TurnClue {
			opErr = game.ErrNotCluePhase
			return
		}
		if !spymaster && r.state.TurnPhase != game.TurnGuess {
			opErr = game.ErrNotGuessPhase
			return
		}

		clone, err := cloneState(r.state)
		if err != nil {
			opErr = err
			return
		}
		seat := game.SeatFor(r.state.CurrentTeam, spymaster)
		entries := r.state.SeatModels(seat)
		prep = &aiPrep{
			st:    clone,
			sig:   sigOf(r.state),
			team:  r.state.CurrentTeam,
			entry: entries[r.rng.Intn(len(entries))],
			sims:  r.state.SimulationCount,
		}
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return prep, nil
}

// generateClue produces a proposal for the prepared position, running
// the simulation evaluator when the room has it enabled.
func (r *Room) generateClue(ctx context.Context, prep *aiPrep) (*ClueProposal, error) {
	if prep.sims > 0 {
		return r.generateSimulatedClue(ctx, prep)
	}

	res, err := r.deps.AI.Complete(ctx, ai.BuildCluePrompt(prep.st, prep.team, prep.entry))
	if err != nil {
		return nil, game.Upstream("ai_clue", "clue generation failed", err)
	}
	resp, err := ai.ParseClueResponse(res.Content, prep.st)
	if err != nil {
		return nil, game.Upstream("ai_clue_invalid", "clue response invalid", err)
	}
	return proposalFrom(resp, res.Model, nil), nil
}

func proposalFrom(resp *ai.ClueResponse, model string, scores []CandidateScore) *ClueProposal {
	return &ClueProposal{
		Word:      resp.Word,
		Number:    resp.Number,
		Targets:   resp.Targets,
		Reasoning: resp.Reasoning,
		Risk:      resp.Risk,
		Model:     model,
		Scores:    scores,
		At:        time.Now(),
	}
}

// dedupedClue collapses concurrent identical requests into one provider
// call and caches the winner for a short window.
func (r *Room) dedupedClue(ctx context.Context, prep *aiPrep) (*ClueProposal, error) {
	key := prep.sig.key("clue")
	v, err, shared := r.flight.Do(key, func() (any, error) {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		prop, err := r.generateClue(ctx, prep)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, prop)
		return prop, nil
	})
	if shared {
		metrics.Get().RecordDedupedRequest()
	}
	if err != nil {
		return nil, err
	}
	return v.(*ClueProposal), nil
}

// RequestClue generates (or reuses) an AI clue proposal for the current
// spymaster and parks it for confirmation. The game state is untouched
// until ConfirmClue.
func (r *Room) RequestClue(ctx context.Context) (*ClueProposal, error) {
	prep, err := r.prepareAICall(ctx, true)
	if err != nil {
		return nil, err
	}

	prop, err := r.dedupedClue(ctx, prep)
	if err != nil {
		return nil, err
	}

	var opErr error
	err = r.do(ctx, func() {
		if sigOf(r.state) != prep.sig {
			metrics.Get().RecordStaleRejection()
			opErr = game.ErrStaleResult
			return
		}
		r.pending = &pendingClue{Proposal: prop, Sig: prep.sig}
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return prop, nil
}

// ConfirmClue applies the pending AI proposal as the current team's
// clue. Rejected if the position moved since the proposal was made.
func (r *Room) ConfirmClue(ctx context.Context, viewer game.SeatID) (*game.Snapshot, error) {
	return r.mutate(ctx, viewer, "CONFIRM_CLUE", func(now time.Time) error {
		if r.pending == nil {
			return game.ErrNoPendingClue
		}
		if r.pending.Sig != sigOf(r.state) {
			metrics.Get().RecordStaleRejection()
			r.pending = nil
			return game.ErrStaleResult
		}
		p := r.pending.Proposal
		err := r.state.ApplyClue(&game.Clue{
			Word:       p.Word,
			Number:     p.Number,
			AIAuthored: true,
			Targets:    p.Targets,
			Reasoning:  p.Reasoning,
			Risk:       p.Risk,
		}, now)
		if err != nil {
			return err
		}
		r.pending = nil
		return nil
	})
}

// DiscardClue throws away the pending proposal without applying it.
func (r *Room) DiscardClue(ctx context.Context) error {
	var opErr error
	err := r.do(ctx, func() {
		if r.pending == nil {
			opErr = game.ErrNoPendingClue
			return
		}
		r.pending = nil
	})
	if err != nil {
		return err
	}
	return opErr
}

// PendingState reports the pending proposal and background job, if any.
func (r *Room) PendingState(ctx context.Context) (*PendingView, error) {
	var view PendingView
	err := r.do(ctx, func() {
		if r.pending != nil {
			view.Pending = r.pending.Proposal
		}
		if r.job != nil {
			view.Job = r.jobView()
		}
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *Room) jobView() *JobView {
	return &JobView{
		ID:       r.job.ID,
		Status:   r.job.Status,
		Proposal: r.job.Proposal,
		Error:    r.job.Err,
	}
}

// StartClueJob kicks off clue generation in the background and returns
// a job id to poll. A second start against the same position returns
// the running job instead of spawning another.
func (r *Room) StartClueJob(ctx context.Context) (string, error) {
	prep, err := r.prepareAICall(ctx, true)
	if err != nil {
		return "", err
	}

	var jobID string
	err = r.do(ctx, func() {
		if r.job != nil && r.job.Sig == prep.sig &&
			(r.job.Status == ai.JobQueued || r.job.Status == ai.JobInProgress) {
			metrics.Get().RecordDedupedRequest()
			jobID = r.job.ID
			return
		}
		job := &clueJob{
			ID:     uuid.NewString(),
			Sig:    prep.sig,
			Status: ai.JobQueued,
			At:     time.Now(),
		}
		r.job = job
		jobID = job.ID
		go r.runClueJob(job.ID, prep)
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// runClueJob executes one background generation through the provider's
// job API and lands the result on the actor. Status mirrors are guarded
// by job identity, and the landing additionally by position signature.
func (r *Room) runClueJob(jobID string, prep *aiPrep) {
	ctx, cancel := context.WithTimeout(context.Background(), aiJobTimeout)
	defer cancel()

	prop, genErr := r.backgroundClue(ctx, jobID, prep)

	_ = r.do(context.Background(), func() {
		if r.job == nil || r.job.ID != jobID {
			return // superseded
		}
		if genErr != nil {
			r.job.Status = ai.JobFailed
			r.job.Err = genErr.Error()
			return
		}
		if sigOf(r.state) != prep.sig {
			metrics.Get().RecordStaleRejection()
			r.job.Status = ai.JobFailed
			r.job.Err = game.ErrStaleResult.Error()
			return
		}
		r.job.Status = ai.JobCompleted
		r.job.Proposal = prop
		r.pending = &pendingClue{Proposal: prop, Sig: prep.sig}
	})
}

// backgroundClue submits the request in the provider's background mode
// and polls the returned handle until a terminal status. The overall
// context deadline bounds the polling loop. Simulation rooms use the
// synchronous evaluator instead: rollouts need completed responses, not
// job handles.
func (r *Room) backgroundClue(ctx context.Context, jobID string, prep *aiPrep) (*ClueProposal, error) {
	if prep.sims > 0 {
		r.setJobStatus(jobID, ai.JobInProgress)
		return r.generateSimulatedClue(ctx, prep)
	}

	providerID, err := r.deps.AI.StartJob(ctx, ai.BuildCluePrompt(prep.st, prep.team, prep.entry))
	if err != nil {
		return nil, game.Upstream("ai_job_start", "background clue submission failed", err)
	}

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, game.Upstream("ai_job_timeout", "background clue timed out", ctx.Err())
		case <-ticker.C:
		}

		status, res, err := r.deps.AI.PollJob(ctx, providerID)
		if err != nil {
			return nil, game.Upstream("ai_job_poll", "background clue poll failed", err)
		}
		r.setJobStatus(jobID, status)

		switch status {
		case ai.JobCompleted:
			resp, perr := ai.ParseClueResponse(res.Content, prep.st)
			if perr != nil {
				return nil, game.Upstream("ai_clue_invalid", "clue response invalid", perr)
			}
			return proposalFrom(resp, res.Model, nil), nil
		case ai.JobFailed:
			return nil, game.Upstream("ai_job_failed", "background clue failed", fmt.Errorf("provider reported failure"))
		}
	}
}

// setJobStatus mirrors a non-terminal provider status into the room's
// job record. Terminal statuses land through runClueJob so the position
// guard applies.
func (r *Room) setJobStatus(jobID string, status ai.JobStatus) {
	if status != ai.JobQueued && status != ai.JobInProgress {
		return
	}
	_ = r.do(context.Background(), func() {
		if r.job != nil && r.job.ID == jobID {
			r.job.Status = status
		}
	})
}

// ClueJobStatus polls a background job by id.
func (r *Room) ClueJobStatus(ctx context.Context, jobID string) (*JobView, error) {
	var view *JobView
	var opErr error
	err := r.do(ctx, func() {
		if r.job == nil || r.job.ID != jobID {
			opErr = game.ErrNoPendingJob
			return
		}
		view = r.jobView()
	})
	if err != nil {
		return nil, err
	}
	if opErr != nil {
		return nil, opErr
	}
	return view, nil
}

// RequestSuggestions asks the guesser model for an ordered guess list.
// Advisory only: the human decides what to actually submit.
func (r *Room) RequestSuggestions(ctx context.Context) (*GuessSuggestion, error) {
	prep, err := r.prepareAICall(ctx, false)
	if err != nil {
		return nil, err
	}

	key := prep.sig.key("guess")
	v, err, shared := r.flight.Do(key, func() (any, error) {
		if cached, ok := r.cache.Get(key); ok {
			return cached, nil
		}
		res, err := r.deps.AI.Complete(ctx, ai.BuildGuessPrompt(prep.st, prep.team, prep.entry))
		if err != nil {
			return nil, game.Upstream("ai_guess", "guess suggestion failed", err)
		}
		resp, err := ai.ParseGuessResponse(res.Content, prep.st)
		if err != nil {
			return nil, game.Upstream("ai_guess_invalid", "guess response invalid", err)
		}
		sug := &GuessSuggestion{
			Guesses:   resp.Guesses,
			Reasoning: resp.Reasoning,
			Model:     res.Model,
			At:        time.Now(),
		}
		r.cache.Add(key, sug)
		return sug, nil
	})
	if shared {
		metrics.Get().RecordDedupedRequest()
	}
	if err != nil {
		return nil, err
	}

	sug := v.(*GuessSuggestion)

	// Suggestions do not mutate, but serving one computed for an older
	// position would be misleading.
	var opErr error
	if derr := r.do(ctx, func() {
		if sigOf(r.state) != prep.sig {
			metrics.Get().RecordStaleRejection()
			opErr = game.ErrStaleResult
		}
	}); derr != nil {
		return nil, derr
	}
	if opErr != nil {
		return nil, opErr
	}
	return sug, nil
}

// AIPlay executes one full move for the seat whose turn it is, when
// that seat is AI-controlled: a clue in the clue sub-phase, a guess
// sequence in the guess sub-phase.
func (r *Room) AIPlay(ctx context.Context) error {
	var spymaster bool
	var opErr error
	err := r.do(ctx, func() {
		if r.state.Phase != game.PhasePlaying {
			opErr = game.ErrNotPlaying
			return
		}
		if r.state.Paused {
			opErr = game.ErrGamePaused
			return
		}
		spymaster = r.state.TurnPhase == game.TurnClue
		seat := game.SeatFor(r.state.CurrentTeam, spymaster)
		if r.state.Roles[seat] != game.ControllerAI {
			opErr = game.Config("seat_not_ai", "current seat is human-controlled")
		}
	})
	if err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}

	if spymaster {
		return r.aiPlayClue(ctx)
	}
	return r.aiPlayGuesses(ctx)
}

// aiPlayClue generates and applies a clue directly. AI seats skip the
// two-step confirmation; that flow exists for the human in the loop.
func (r *Room) aiPlayClue(ctx context.Context) error {
	prep, err := r.prepareAICall(ctx, true)
	if err != nil {
		return err
	}
	prop, err := r.dedupedClue(ctx, prep)
	if err != nil {
		return err
	}

	_, err = r.mutate(ctx, "", "AI_CLUE", func(now time.Time) error {
		if sigOf(r.state) != prep.sig {
			metrics.Get().RecordStaleRejection()
			return game.ErrStaleResult
		}
		return r.state.ApplyClue(&game.Clue{
			Word:       prop.Word,
			Number:     prop.Number,
			AIAuthored: true,
			Targets:    prop.Targets,
			Reasoning:  prop.Reasoning,
			Risk:       prop.Risk,
		}, now)
	})
	return err
}

// aiPlayGuesses fetches an ordered guess list once, then submits the
// guesses one at a time, re-entering the actor between reveals so each
// application is validated against the live state. Guesses land only
// against the clue they were suggested for. The list running out before
// the guesses do is a voluntary stop.
func (r *Room) aiPlayGuesses(ctx context.Context) error {
	prep, err := r.prepareAICall(ctx, false)
	if err != nil {
		return err
	}

	res, err := r.deps.AI.Complete(ctx, ai.BuildGuessPrompt(prep.st, prep.team, prep.entry))
	if err != nil {
		return game.Upstream("ai_guess", "guess generation failed", err)
	}
	resp, err := ai.ParseGuessResponse(res.Content, prep.st)
	if err != nil {
		return game.Upstream("ai_guess_invalid", "guess response invalid", err)
	}

	for _, word := range resp.Guesses {
		var done bool
		var opErr error
		var outcome *game.GuessOutcome
		err := r.do(ctx, func() {
			now := time.Now()
			if r.state.Phase != game.PhasePlaying || r.state.Paused ||
				r.state.TurnPhase != game.TurnGuess || r.state.CurrentTeam != prep.team ||
				len(r.state.ClueHistory) != prep.sig.Clues {
				done = true
				return
			}
			outcome, opErr = r.state.ApplyGuess(word, r.rng, now)
			if opErr != nil {
				return
			}
			r.commit("AI_GUESS", now)
		})
		if err != nil {
			return err
		}
		if opErr != nil {
			return opErr
		}
		if done || outcome.TurnEnded || outcome.GameEnded {
			return nil
		}
	}

	// Out of suggestions with guesses still available: pass.
	var opErr error
	err = r.do(ctx, func() {
		now := time.Now()
		if r.state.Phase != game.PhasePlaying || r.state.Paused ||
			r.state.TurnPhase != game.TurnGuess || r.state.CurrentTeam != prep.team ||
			len(r.state.ClueHistory) != prep.sig.Clues {
			return
		}
		if opErr = r.state.EndTurn(now); opErr != nil {
			return
		}
		r.commit("AI_PASS", now)
	})
	if err != nil {
		return err
	}
	return opErr
}

// scheduleAutoPlay arms one background AI move when the seat on turn is
// AI-controlled. Runs on the actor goroutine as part of commit; the
// busy flag keeps at most one auto-play in flight per room.
func (r *Room) scheduleAutoPlay() {
	if r.deps.DisableAutoPlay || r.autoBusy || r.deps.AI == nil || !r.deps.AI.IsAvailable() {
		return
	}
	if r.state.Phase != game.PhasePlaying || r.state.Paused {
		return
	}
	seat := game.SeatFor(r.state.CurrentTeam, r.state.TurnPhase == game.TurnClue)
	if r.state.Roles[seat] != game.ControllerAI {
		return
	}

	r.autoBusy = true
	go func() {
		defer func() {
			// Clear the flag and re-arm: the next seat may also be AI.
			_ = r.do(context.Background(), func() {
				r.autoBusy = false
				r.scheduleAutoPlay()
			})
		}()

		select {
		case <-time.After(autoPlayDelay):
		case <-r.quit:
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), aiJobTimeout)
		defer cancel()
		if err := r.AIPlay(ctx); err != nil {
			if game.ClassOf(err) == game.ClassUpstream {
				r.deps.Log.Error(fmt.Sprintf("room %s: auto-play failed: %v", r.ID, err))
			}
		}
	}()
}
