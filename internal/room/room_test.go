package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codewords-live/server/internal/ai"
	"github.com/codewords-live/server/internal/game"
)

// fakeAI scripts provider responses so orchestration can be tested
// without a network. jobStatuses scripts the background-job path: one
// status per poll, the last one repeating.
type fakeAI struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	respond func(req ai.Request) (string, error)

	jobStatuses []ai.JobStatus
	jobResult   string
	jobPolls    int
}

func (f *fakeAI) Complete(ctx context.Context, req ai.Request) (*ai.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	body, err := f.respond(req)
	if err != nil {
		return nil, err
	}
	return &ai.Result{Content: json.RawMessage(body), Model: "fake-model"}, nil
}

func (f *fakeAI) StartJob(ctx context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobStatuses) == 0 {
		return "", errors.New("background jobs not scripted")
	}
	f.calls++
	return "provider-job-1", nil
}

func (f *fakeAI) PollJob(ctx context.Context, jobID string) (ai.JobStatus, *ai.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobStatuses) == 0 {
		return ai.JobFailed, nil, errors.New("background jobs not scripted")
	}
	idx := f.jobPolls
	if idx >= len(f.jobStatuses) {
		idx = len(f.jobStatuses) - 1
	}
	f.jobPolls++

	switch status := f.jobStatuses[idx]; status {
	case ai.JobCompleted:
		return status, &ai.Result{Content: json.RawMessage(f.jobResult), Model: "fake-model"}, nil
	case ai.JobFailed:
		return status, nil, errors.New("scripted provider failure")
	default:
		return status, nil, nil
	}
}

func (f *fakeAI) Name() string      { return "fake" }
func (f *fakeAI) IsAvailable() bool { return true }

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobPolls
}

// shortJobPolls speeds the background poll loop up for tests.
func shortJobPolls(t *testing.T) {
	t.Helper()
	old := jobPollInterval
	jobPollInterval = 20 * time.Millisecond
	t.Cleanup(func() { jobPollInterval = old })
}

func clueJSON(word string, number int, targets ...string) string {
	b, _ := json.Marshal(map[string]any{
		"word": word, "number": number, "targets": targets, "reasoning": "test",
	})
	return string(b)
}

func guessJSON(words ...string) string {
	b, _ := json.Marshal(map[string]any{"guesses": words})
	return string(b)
}

func newTestRoom(t *testing.T, svc ai.Service) *Room {
	t.Helper()
	r := New("room-under-test", "TESTCD", Deps{AI: svc, DisableAutoPlay: true})
	t.Cleanup(r.Close)
	return r
}

// startGame joins humans into the human seats and starts play.
func startGame(t *testing.T, r *Room) *game.Snapshot {
	t.Helper()
	ctx := context.Background()

	setup, err := r.Snapshot(ctx, "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for i, seat := range game.AllSeats {
		if setup.Roles[seat] != game.ControllerHuman {
			continue
		}
		if _, err := r.Join(ctx, fmt.Sprintf("p%d", i), fmt.Sprintf("Player %d", i), seat); err != nil {
			t.Fatalf("Join %s: %v", seat, err)
		}
	}
	snap, err := r.Start(ctx, "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return snap
}

// keyOf reads the full key through a spymaster view.
func keyOf(t *testing.T, r *Room) map[string]game.CardType {
	t.Helper()
	snap, err := r.Snapshot(context.Background(), game.SeatRedSpymaster)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	key := make(map[string]game.CardType, len(snap.Cards))
	for _, c := range snap.Cards {
		key[c.Word] = c.Card
	}
	return key
}

// wordsOf picks unrevealed words of one card type from a spymaster view.
func wordsOf(t *testing.T, r *Room, ct game.CardType) []string {
	t.Helper()
	snap, err := r.Snapshot(context.Background(), game.SeatRedSpymaster)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	var out []string
	for _, c := range snap.Cards {
		if !c.Revealed && c.Card == ct {
			out = append(out, c.Word)
		}
	}
	return out
}

func TestRequestClueDedupsConcurrentCalls(t *testing.T) {
	fake := &fakeAI{
		delay:   50 * time.Millisecond,
		respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 1), nil },
	}
	r := newTestRoom(t, fake)
	startGame(t, r)

	const callers = 8
	var wg sync.WaitGroup
	props := make([]*ClueProposal, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			props[i], errs[i] = r.RequestClue(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if props[i].Word != "QUASAR" {
			t.Errorf("caller %d got clue %q", i, props[i].Word)
		}
	}
	if got := fake.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1", got)
	}
}

func TestRequestClueCachedAcrossSequentialCalls(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 1), nil }}
	r := newTestRoom(t, fake)
	startGame(t, r)

	if _, err := r.RequestClue(context.Background()); err != nil {
		t.Fatalf("first RequestClue: %v", err)
	}
	if _, err := r.RequestClue(context.Background()); err != nil {
		t.Fatalf("second RequestClue: %v", err)
	}
	if got := fake.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1 (second hit should come from cache)", got)
	}
}

func TestConfirmClueAppliesPendingProposal(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 2), nil }}
	r := newTestRoom(t, fake)
	snap := startGame(t, r)

	if _, err := r.RequestClue(context.Background()); err != nil {
		t.Fatalf("RequestClue: %v", err)
	}
	spymaster := game.SeatFor(snap.CurrentTeam, true)
	after, err := r.ConfirmClue(context.Background(), spymaster)
	if err != nil {
		t.Fatalf("ConfirmClue: %v", err)
	}

	if after.TurnPhase != game.TurnGuess {
		t.Errorf("turn phase = %s, want guess", after.TurnPhase)
	}
	if after.CurrentClue == nil || after.CurrentClue.Word != "QUASAR" {
		t.Fatalf("current clue = %+v, want QUASAR", after.CurrentClue)
	}
	if !after.CurrentClue.AIAuthored {
		t.Error("confirmed clue should be marked AI-authored")
	}
	if after.GuessesRemaining != 3 {
		t.Errorf("guesses remaining = %d, want 3", after.GuessesRemaining)
	}
}

func TestConfirmRejectedAfterHumanMovesFirst(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 1), nil }}
	r := newTestRoom(t, fake)
	snap := startGame(t, r)

	if _, err := r.RequestClue(context.Background()); err != nil {
		t.Fatalf("RequestClue: %v", err)
	}

	// The human spymaster types their own clue before confirming.
	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 1, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}

	spymaster := game.SeatFor(snap.CurrentTeam, true)
	_, err := r.ConfirmClue(context.Background(), spymaster)
	if err == nil {
		t.Fatal("expected confirm to be rejected after the position moved")
	}
	if game.ClassOf(err) != game.ClassConflict {
		t.Errorf("error class = %s, want conflict", game.ClassOf(err))
	}

	view, err := r.PendingState(context.Background())
	if err != nil {
		t.Fatalf("PendingState: %v", err)
	}
	if view.Pending != nil {
		t.Error("stale pending proposal should have been dropped")
	}
}

func TestDiscardClue(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 1), nil }}
	r := newTestRoom(t, fake)
	startGame(t, r)

	if _, err := r.RequestClue(context.Background()); err != nil {
		t.Fatalf("RequestClue: %v", err)
	}
	if err := r.DiscardClue(context.Background()); err != nil {
		t.Fatalf("DiscardClue: %v", err)
	}
	if err := r.DiscardClue(context.Background()); !errors.Is(err, game.ErrNoPendingClue) {
		t.Errorf("second discard = %v, want ErrNoPendingClue", err)
	}
}

func TestClueJobLifecycle(t *testing.T) {
	shortJobPolls(t)
	// No respond func: the background path must go through the
	// provider's job API, not a synchronous completion.
	fake := &fakeAI{
		jobStatuses: []ai.JobStatus{ai.JobQueued, ai.JobInProgress, ai.JobCompleted},
		jobResult:   clueJSON("QUASAR", 1),
	}
	r := newTestRoom(t, fake)
	snap := startGame(t, r)

	jobID, err := r.StartClueJob(context.Background())
	if err != nil {
		t.Fatalf("StartClueJob: %v", err)
	}

	view, err := r.ClueJobStatus(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ClueJobStatus: %v", err)
	}
	if view.Status == ai.JobFailed || view.Status == ai.JobCompleted {
		t.Fatalf("fresh job status = %s", view.Status)
	}

	// A second start against the same position joins the running job.
	again, err := r.StartClueJob(context.Background())
	if err != nil {
		t.Fatalf("second StartClueJob: %v", err)
	}
	if again != jobID {
		t.Errorf("duplicate start created a new job: %s vs %s", again, jobID)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		view, err = r.ClueJobStatus(context.Background(), jobID)
		if err != nil {
			t.Fatalf("ClueJobStatus: %v", err)
		}
		if view.Status == ai.JobCompleted || view.Status == ai.JobFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", view.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if view.Status != ai.JobCompleted {
		t.Fatalf("job status = %s (%s), want completed", view.Status, view.Error)
	}
	if view.Proposal == nil || view.Proposal.Word != "QUASAR" {
		t.Fatalf("job proposal = %+v", view.Proposal)
	}
	if got := fake.pollCount(); got < 3 {
		t.Errorf("provider polled %d times, want the full queued/in_progress/completed walk", got)
	}

	// Completion installs the proposal for the normal confirm flow.
	spymaster := game.SeatFor(snap.CurrentTeam, true)
	after, err := r.ConfirmClue(context.Background(), spymaster)
	if err != nil {
		t.Fatalf("ConfirmClue: %v", err)
	}
	if after.CurrentClue == nil || after.CurrentClue.Word != "QUASAR" {
		t.Fatalf("current clue = %+v", after.CurrentClue)
	}
}

func TestClueJobFailsWhenPositionMoves(t *testing.T) {
	shortJobPolls(t)
	fake := &fakeAI{
		jobStatuses: []ai.JobStatus{ai.JobQueued, ai.JobQueued, ai.JobInProgress, ai.JobCompleted},
		jobResult:   clueJSON("QUASAR", 1),
	}
	r := newTestRoom(t, fake)
	startGame(t, r)

	jobID, err := r.StartClueJob(context.Background())
	if err != nil {
		t.Fatalf("StartClueJob: %v", err)
	}

	// The human beats the job to the punch.
	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 0, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		view, err := r.ClueJobStatus(context.Background(), jobID)
		if err != nil {
			t.Fatalf("ClueJobStatus: %v", err)
		}
		if view.Status == ai.JobFailed {
			break
		}
		if view.Status == ai.JobCompleted {
			t.Fatal("job completed against a moved position")
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", view.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestClueJobSurfacesProviderFailure(t *testing.T) {
	shortJobPolls(t)
	fake := &fakeAI{jobStatuses: []ai.JobStatus{ai.JobQueued, ai.JobFailed}}
	r := newTestRoom(t, fake)
	startGame(t, r)

	jobID, err := r.StartClueJob(context.Background())
	if err != nil {
		t.Fatalf("StartClueJob: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		view, err := r.ClueJobStatus(context.Background(), jobID)
		if err != nil {
			t.Fatalf("ClueJobStatus: %v", err)
		}
		if view.Status == ai.JobFailed {
			if view.Error == "" {
				t.Error("failed job should carry the provider error")
			}
			return
		}
		if view.Status == ai.JobCompleted {
			t.Fatal("job completed despite a failing provider")
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", view.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRequestSuggestionsNeedsGuessPhase(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return guessJSON("ANYTHING"), nil }}
	r := newTestRoom(t, fake)
	startGame(t, r)

	if _, err := r.RequestSuggestions(context.Background()); !errors.Is(err, game.ErrNotGuessPhase) {
		t.Fatalf("err = %v, want ErrNotGuessPhase", err)
	}
}

func TestRequestSuggestionsReturnsOrderedList(t *testing.T) {
	r := newTestRoom(t, nil) // wired below once the board exists
	snap := startGame(t, r)

	own := snap.CurrentTeam.Card()
	ownWords := wordsOf(t, r, own)

	fake := &fakeAI{respond: func(ai.Request) (string, error) {
		return guessJSON(ownWords[0], ownWords[1]), nil
	}}
	r.deps.AI = fake

	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 1, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}

	sug, err := r.RequestSuggestions(context.Background())
	if err != nil {
		t.Fatalf("RequestSuggestions: %v", err)
	}
	if len(sug.Guesses) != 2 || sug.Guesses[0] != ownWords[0] {
		t.Fatalf("suggestions = %v", sug.Guesses)
	}

	// Advice only: nothing was revealed.
	after, err := r.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, c := range after.Cards {
		if c.Revealed {
			t.Fatalf("suggestion revealed %s", c.Word)
		}
	}
}

func TestAIPlayGuessSequenceStopsOnWrongCard(t *testing.T) {
	r := newTestRoom(t, nil)

	// Guessers are AI, spymasters human.
	if _, err := r.Configure(context.Background(), game.ConfigureRequest{
		Roles: map[game.SeatID]game.Controller{
			game.SeatRedGuesser:  game.ControllerAI,
			game.SeatBlueGuesser: game.ControllerAI,
		},
	}, ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	snap := startGame(t, r)

	team := snap.CurrentTeam
	ownWords := wordsOf(t, r, team.Card())
	oppWords := wordsOf(t, r, team.Opponent().Card())

	fake := &fakeAI{respond: func(ai.Request) (string, error) {
		return guessJSON(ownWords[0], ownWords[1], oppWords[0]), nil
	}}
	r.deps.AI = fake

	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 3, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}
	if err := r.AIPlay(context.Background()); err != nil {
		t.Fatalf("AIPlay: %v", err)
	}

	after, err := r.Snapshot(context.Background(), game.SeatRedSpymaster)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	revealed := make(map[string]bool)
	for _, c := range after.Cards {
		if c.Revealed {
			revealed[c.Word] = true
		}
	}
	if !revealed[ownWords[0]] || !revealed[ownWords[1]] || !revealed[oppWords[0]] {
		t.Errorf("revealed = %v, want both own words and the wrong one", revealed)
	}
	if len(revealed) != 3 {
		t.Errorf("%d cards revealed, want 3", len(revealed))
	}
	if after.CurrentTeam != team.Opponent() {
		t.Errorf("turn did not pass after the wrong reveal")
	}
}

func TestAIPlayGuessesDropWhenClueChangesMidFlight(t *testing.T) {
	r := newTestRoom(t, nil)
	if _, err := r.Configure(context.Background(), game.ConfigureRequest{
		Roles: map[game.SeatID]game.Controller{
			game.SeatRedGuesser:  game.ControllerAI,
			game.SeatBlueGuesser: game.ControllerAI,
		},
	}, ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	snap := startGame(t, r)

	team := snap.CurrentTeam
	ownWords := wordsOf(t, r, team.Card())

	// The model stalls on the first clue while the table moves on.
	release := make(chan struct{})
	fake := &fakeAI{respond: func(ai.Request) (string, error) {
		<-release
		return guessJSON(ownWords[0]), nil
	}}
	r.deps.AI = fake

	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 1, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.AIPlay(context.Background()) }()

	deadline := time.Now().Add(3 * time.Second)
	for fake.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("AI guess call never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// The turn flips and comes back with a fresh clue: same team, same
	// sub-phase, but the stale guesses must no longer land.
	if _, err := r.EndTurn(context.Background(), ""); err != nil {
		t.Fatalf("EndTurn: %v", err)
	}
	if _, err := r.SubmitClue(context.Background(), "QQQQX", 0, ""); err != nil {
		t.Fatalf("opponent SubmitClue: %v", err)
	}
	if _, _, err := r.SubmitGuess(context.Background(), ownWords[1], ""); err != nil {
		t.Fatalf("opponent SubmitGuess: %v", err)
	}
	if _, err := r.SubmitClue(context.Background(), "YYYYX", 1, ""); err != nil {
		t.Fatalf("second SubmitClue: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("AIPlay: %v", err)
	}

	after, err := r.Snapshot(context.Background(), game.SeatRedSpymaster)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, c := range after.Cards {
		if c.Word == ownWords[0] && c.Revealed {
			t.Error("stale guess was applied against the new clue")
		}
	}
	if after.CurrentClue == nil || after.CurrentClue.Word != "YYYYX" {
		t.Fatalf("current clue = %+v, want YYYYX", after.CurrentClue)
	}
	if after.GuessesRemaining != 2 {
		t.Errorf("guesses remaining = %d, want the new clue untouched", after.GuessesRemaining)
	}
	if after.CurrentTeam != team || after.TurnPhase != game.TurnGuess {
		t.Errorf("position = %s/%s, want %s guess phase", after.CurrentTeam, after.TurnPhase, team)
	}
}

func TestAIPlayPassesWhenOutOfSuggestions(t *testing.T) {
	r := newTestRoom(t, nil)
	if _, err := r.Configure(context.Background(), game.ConfigureRequest{
		Roles: map[game.SeatID]game.Controller{
			game.SeatRedGuesser:  game.ControllerAI,
			game.SeatBlueGuesser: game.ControllerAI,
		},
	}, ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	snap := startGame(t, r)

	team := snap.CurrentTeam
	ownWords := wordsOf(t, r, team.Card())

	// One confident guess against a three-guess allowance.
	fake := &fakeAI{respond: func(ai.Request) (string, error) {
		return guessJSON(ownWords[0]), nil
	}}
	r.deps.AI = fake

	if _, err := r.SubmitClue(context.Background(), "ZZYZX", 2, ""); err != nil {
		t.Fatalf("SubmitClue: %v", err)
	}
	if err := r.AIPlay(context.Background()); err != nil {
		t.Fatalf("AIPlay: %v", err)
	}

	after, err := r.Snapshot(context.Background(), "")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if after.CurrentTeam != team.Opponent() {
		t.Error("voluntary stop should pass the turn")
	}
}

func TestAIPlayRejectsHumanSeat(t *testing.T) {
	fake := &fakeAI{respond: func(ai.Request) (string, error) { return clueJSON("QUASAR", 1), nil }}
	r := newTestRoom(t, fake)
	startGame(t, r)

	err := r.AIPlay(context.Background())
	if err == nil {
		t.Fatal("AIPlay should refuse to act for a human seat")
	}
	if game.ClassOf(err) != game.ClassConfig {
		t.Errorf("error class = %s, want config", game.ClassOf(err))
	}
}

func TestSimulationPicksHigherScoringCandidate(t *testing.T) {
	r := newTestRoom(t, nil)
	sims := 2
	if _, err := r.Configure(context.Background(), game.ConfigureRequest{SimulationCount: &sims}, ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	snap := startGame(t, r)

	team := snap.CurrentTeam
	ownWords := wordsOf(t, r, team.Card())
	assassin := wordsOf(t, r, "assassin")[0]

	// Each candidate is its own spymaster completion; alternate so the
	// two draws come out distinct.
	var genCalls int32
	fake := &fakeAI{respond: func(req ai.Request) (string, error) {
		user := req.Messages[len(req.Messages)-1].Content
		switch {
		case strings.Contains(user, "YOUR WORDS"):
			if atomic.AddInt32(&genCalls, 1) == 1 {
				return clueJSON("SAFE", 1, ownWords[0]), nil
			}
			return clueJSON("RISKY", 1, ownWords[1]), nil
		case strings.Contains(user, "CURRENT CLUE: SAFE"):
			return guessJSON(ownWords[0]), nil
		case strings.Contains(user, "CURRENT CLUE: RISKY"):
			return guessJSON(assassin), nil
		default:
			return "", fmt.Errorf("unexpected prompt: %s", user)
		}
	}}
	r.deps.AI = fake

	prop, err := r.RequestClue(context.Background())
	if err != nil {
		t.Fatalf("RequestClue: %v", err)
	}
	if prop.Word != "SAFE" {
		t.Errorf("simulation proposed %q, want the safe candidate", prop.Word)
	}
	if len(prop.Scores) != 2 {
		t.Fatalf("got %d candidate scores, want 2", len(prop.Scores))
	}
	var safe, risky CandidateScore
	for _, s := range prop.Scores {
		switch s.Word {
		case "SAFE":
			safe = s
		case "RISKY":
			risky = s
		}
	}
	if safe.Score <= risky.Score {
		t.Errorf("safe score %.2f not above risky %.2f", safe.Score, risky.Score)
	}
	if risky.AssassinHits != 1 || risky.Rollouts != 1 {
		t.Errorf("risky rollout = %+v, want one rollout with one assassin hit", risky)
	}
	// 2 candidate completions + 1 rollout each
	if got := fake.callCount(); got != 4 {
		t.Errorf("provider called %d times, want 4", got)
	}
}

func TestTurnTimerForcesPass(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on a real 1s turn timer")
	}
	r := newTestRoom(t, nil)
	snap := startGame(t, r)
	team := snap.CurrentTeam

	if _, err := r.SetTurnTimer(context.Background(), 1, ""); err != nil {
		t.Fatalf("SetTurnTimer: %v", err)
	}

	deadline := time.Now().Add(4 * time.Second)
	for {
		after, err := r.Snapshot(context.Background(), "")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if after.CurrentTeam == team.Opponent() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("turn timer never passed the turn")
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestAutoPlayDrivesAIOnlyGame(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on the real auto-play pacing delay")
	}

	var rm *Room
	fake := &fakeAI{respond: func(req ai.Request) (string, error) {
		user := req.Messages[len(req.Messages)-1].Content
		if strings.Contains(user, "YOUR WORDS") {
			return clueJSON("QQQX", 0), nil
		}

		// Guess prompt: play an own-team word, read through the key.
		var team string
		var unrevealed []string
		for _, ln := range strings.Split(user, "\n") {
			if rest, ok := strings.CutPrefix(ln, "You play team "); ok {
				team = strings.TrimSuffix(rest, ".")
			}
			if rest, ok := strings.CutPrefix(ln, "UNREVEALED WORDS: "); ok {
				unrevealed = strings.Split(rest, ", ")
			}
		}
		snap, err := rm.Snapshot(context.Background(), game.SeatRedSpymaster)
		if err != nil {
			return "", err
		}
		key := make(map[string]game.CardType, len(snap.Cards))
		for _, c := range snap.Cards {
			key[c.Word] = c.Card
		}
		for _, w := range unrevealed {
			if key[w] == game.Team(team).Card() {
				return guessJSON(w), nil
			}
		}
		return guessJSON(unrevealed[0]), nil
	}}

	rm = New("auto-room", "AUTO11", Deps{AI: fake})
	t.Cleanup(rm.Close)

	roles := make(map[game.SeatID]game.Controller, len(game.AllSeats))
	for _, seat := range game.AllSeats {
		roles[seat] = game.ControllerAI
	}
	if _, err := rm.Configure(context.Background(), game.ConfigureRequest{Roles: roles}, ""); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := rm.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		snap, err := rm.Snapshot(context.Background(), "")
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		revealed := 0
		for _, c := range snap.Cards {
			if c.Revealed {
				revealed++
			}
		}
		if len(snap.ClueHistory) >= 1 && revealed >= 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-play made no progress: %d clues, %d revealed", len(snap.ClueHistory), revealed)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestManagerCreateAndLookup(t *testing.T) {
	m := NewManager(Deps{DisableAutoPlay: true})
	r, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(m.CloseAll)

	got, err := m.Get(context.Background(), r.ID)
	if err != nil || got != r {
		t.Fatalf("Get = %v, %v", got, err)
	}
	byCode, err := m.GetByCode(strings.ToLower(r.Code))
	if err != nil || byCode != r {
		t.Fatalf("GetByCode = %v, %v (codes should be case-insensitive)", byCode, err)
	}
	if _, err := m.Get(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("missing room err = %v", err)
	}

	infos := m.List(context.Background())
	if len(infos) != 1 || infos[0].ID != r.ID || infos[0].Phase != game.PhaseSetup {
		t.Errorf("List = %+v", infos)
	}
}

func TestManagerForgetClosesRoom(t *testing.T) {
	m := NewManager(Deps{DisableAutoPlay: true})
	r, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	m.Forget(r.ID)
	if _, err := m.Get(context.Background(), r.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("forgotten room still resolvable: %v", err)
	}
	if _, err := r.Snapshot(context.Background(), ""); !errors.Is(err, ErrRoomClosed) {
		t.Errorf("closed room op = %v, want ErrRoomClosed", err)
	}
}
