package room

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/codewords-live/server/internal/ai"
	"github.com/codewords-live/server/internal/domain/board"
	"github.com/codewords-live/server/internal/game"
	"github.com/codewords-live/server/internal/platform/metrics"
)

// simulationConcurrency caps the candidate fan-out per evaluation.
const simulationConcurrency = 4

// Rollout scoring. A rollout replays one candidate clue against a
// simulated guesser and scores what the real key says they would hit.
const (
	scoreOwnCard  = 1.0
	scoreNeutral  = -0.3
	scoreOpponent = -1.0
	scoreAssassin = -10.0

	// outstandingCredit values each own card the candidate leaves
	// untargeted, so narrow clues are not punished for saving words
	// for later turns.
	outstandingCredit = 0.4

	// opponentHelpWeight penalizes rollouts in proportion to how much
	// of the opponent's remaining board they revealed for free.
	opponentHelpWeight = 0.5
)

// CandidateScore is the evaluation verdict for one candidate clue.
type CandidateScore struct {
	Word         string  `json:"word"`
	Number       int     `json:"number"`
	Score        float64 `json:"score"`
	Rollouts     int     `json:"rollouts"`
	AssassinHits int     `json:"assassin_hits"`
}

// generateSimulatedClue evaluates the room's configured number of
// candidate clues. Each candidate is an independent spymaster
// completion scored with a single simulated guesser rollout; the best
// scorer becomes the proposal. Candidates run concurrently under one
// join barrier, and the first failure cancels the rest.
func (r *Room) generateSimulatedClue(ctx context.Context, prep *aiPrep) (*ClueProposal, error) {
	type candidate struct {
		clue  ai.ClueResponse
		model string
	}
	cands := make([]candidate, prep.sims)
	scores := make([]CandidateScore, prep.sims)

	// Rollout guessers use the team's guesser-seat model, not the
	// spymaster's: the point is predicting what the guessers will do.
	guessEntry := prep.st.SeatModels(game.SeatFor(prep.team, false))[0]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(simulationConcurrency)
	for i := 0; i < prep.sims; i++ {
		i := i
		g.Go(func() error {
			res, err := r.deps.AI.Complete(gctx, ai.BuildCluePrompt(prep.st, prep.team, prep.entry))
			if err != nil {
				return game.Upstream("ai_candidate", "candidate generation failed", err)
			}
			clue, err := ai.ParseClueResponse(res.Content, prep.st)
			if err != nil {
				return game.Upstream("ai_candidate_invalid", "candidate response invalid", err)
			}
			score, hit, err := r.rolloutScore(gctx, prep, guessEntry, clue)
			if err != nil {
				return game.Upstream("ai_rollout", "simulation rollout failed", err)
			}

			cs := CandidateScore{Word: clue.Word, Number: clue.Number, Score: score, Rollouts: 1}
			if hit {
				cs.AssassinHits = 1
			}
			cs.Score += outstandingCredit * float64(untargetedOwn(prep, clue))
			cands[i] = candidate{clue: *clue, model: res.Model}
			scores[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Score > scores[best].Score {
			best = i
		}
	}
	metrics.Get().RecordSimulation(prep.sims)
	r.deps.Log.Info(fmt.Sprintf("room %s: simulation picked %q %d (score %.2f of %d candidates)",
		r.ID, cands[best].clue.Word, cands[best].clue.Number, scores[best].Score, prep.sims))

	return proposalFrom(&cands[best].clue, cands[best].model, scores), nil
}

// untargetedOwn counts the team's unrevealed words the candidate does
// not target.
func untargetedOwn(prep *aiPrep, cand *ai.ClueResponse) int {
	targets := make(map[string]bool, len(cand.Targets))
	for _, t := range cand.Targets {
		targets[t] = true
	}
	n := 0
	for _, w := range prep.st.UnrevealedWords(prep.team.Card()) {
		if !targets[w] {
			n++
		}
	}
	return n
}

// rolloutScore plays one simulated guess sequence for a candidate and
// scores it against the real key. The simulated guesser stops where the
// rules would stop it: a wrong reveal or the guess allowance.
func (r *Room) rolloutScore(ctx context.Context, prep *aiPrep, guessEntry game.ModelEntry, cand *ai.ClueResponse) (float64, bool, error) {
	res, err := r.deps.AI.Complete(ctx, ai.BuildRolloutGuessPrompt(prep.st, prep.team, guessEntry, cand.Word, cand.Number))
	if err != nil {
		return 0, false, err
	}
	resp, err := ai.ParseGuessResponse(res.Content, prep.st)
	if err != nil {
		return 0, false, err
	}

	own := prep.team.Card()
	oppCard := prep.team.Opponent().Card()
	oppStart := prep.st.RemainingFor(prep.team.Opponent())

	var score float64
	var assassinHit bool
	oppRevealed := 0
	allowed := cand.Number + 1

	for n, word := range resp.Guesses {
		if n >= allowed {
			break
		}
		idx := prep.st.Board.IndexOf(word)
		if idx < 0 {
			continue
		}
		card := prep.st.Board.Key[idx]
		switch card {
		case own:
			score += scoreOwnCard
		case oppCard:
			score += scoreOpponent
			oppRevealed++
		case board.CardAssassin:
			score += scoreAssassin
			assassinHit = true
		default:
			score += scoreNeutral
		}
		if card != own {
			break
		}
	}

	if oppStart > 0 {
		score -= opponentHelpWeight * float64(oppRevealed) / float64(oppStart)
	}
	return score, assassinHit, nil
}
