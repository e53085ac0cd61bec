package ai

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/codewords-live/server/internal/domain/board"
	"github.com/codewords-live/server/internal/game"
)

func testState(t *testing.T) *game.State {
	t.Helper()

	words := []string{"OCEAN", "WAVE", "SHARK", "MOON", "PIANO"}
	key := []board.CardType{board.CardRed, board.CardRed, board.CardBlue, board.CardNeutral, board.CardAssassin}

	s := game.NewState("test-room", time.Now())
	s.Phase = game.PhasePlaying
	s.Board = &board.Board{Words: words, Key: key}
	s.Revealed = make([]bool, len(words))
	s.RedRemaining = 2
	s.BlueRemaining = 1
	s.CurrentTeam = game.TeamRed
	s.GuessesRemaining = 3
	return s
}

func TestValidateClueRejectsBoardWord(t *testing.T) {
	s := testState(t)
	r := &ClueResponse{Word: "shark", Number: 2}
	if err := r.Validate(s); err == nil {
		t.Fatal("expected board word clue to be rejected")
	}
}

func TestValidateClueRejectsMultiWord(t *testing.T) {
	s := testState(t)
	r := &ClueResponse{Word: "big fish", Number: 1}
	if err := r.Validate(s); err == nil {
		t.Fatal("expected multi-word clue to be rejected")
	}
}

func TestValidateClueRejectsBadNumber(t *testing.T) {
	s := testState(t)
	for _, n := range []int{-1, 10} {
		r := &ClueResponse{Word: "WATER", Number: n}
		if err := r.Validate(s); err == nil {
			t.Fatalf("expected clue number %d to be rejected", n)
		}
	}
}

func TestValidateClueNormalizesWordAndTargets(t *testing.T) {
	s := testState(t)
	r := &ClueResponse{Word: " water ", Number: 2, Targets: []string{"ocean", " wave "}}
	if err := r.Validate(s); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.Word != "WATER" {
		t.Errorf("clue word not normalized: %q", r.Word)
	}
	if r.Targets[0] != "OCEAN" || r.Targets[1] != "WAVE" {
		t.Errorf("targets not normalized: %v", r.Targets)
	}
}

func TestValidateClueRejectsOffBoardTarget(t *testing.T) {
	s := testState(t)
	r := &ClueResponse{Word: "WATER", Number: 1, Targets: []string{"SUBMARINE"}}
	if err := r.Validate(s); err == nil {
		t.Fatal("expected off-board target to be rejected")
	}
}

func TestParseGuessResponseSalvagesValidGuesses(t *testing.T) {
	s := testState(t)
	s.Revealed[1] = true // WAVE already revealed

	raw := json.RawMessage(`{"guesses": ["ocean", "WAVE", "submarine", "shark"], "reasoning": "sea things"}`)
	resp, err := ParseGuessResponse(raw, s)
	if err != nil {
		t.Fatalf("ParseGuessResponse: %v", err)
	}
	want := []string{"OCEAN", "SHARK"}
	if len(resp.Guesses) != len(want) {
		t.Fatalf("got guesses %v, want %v", resp.Guesses, want)
	}
	for i := range want {
		if resp.Guesses[i] != want[i] {
			t.Errorf("guess %d = %q, want %q", i, resp.Guesses[i], want[i])
		}
	}
}

func TestParseGuessResponseRejectsAllInvalid(t *testing.T) {
	s := testState(t)
	raw := json.RawMessage(`{"guesses": ["SUBMARINE", "CORAL"]}`)
	if _, err := ParseGuessResponse(raw, s); err == nil {
		t.Fatal("expected error when no guess is a live board word")
	}
}

func TestBuildCluePromptIncludesKey(t *testing.T) {
	s := testState(t)
	req := BuildCluePrompt(s, game.TeamRed, game.ModelEntry{Model: "gpt-4o"})

	if req.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", req.Model)
	}
	user := req.Messages[len(req.Messages)-1].Content
	for _, want := range []string{"OCEAN", "WAVE", "SHARK", "MOON", "PIANO"} {
		if !strings.Contains(user, want) {
			t.Errorf("spymaster prompt missing %q", want)
		}
	}
	if !strings.Contains(user, "ASSASSIN: PIANO") {
		t.Error("spymaster prompt does not identify the assassin")
	}
}

func TestBuildGuessPromptHidesKey(t *testing.T) {
	s := testState(t)
	s.CurrentClue = &game.Clue{Word: "WATER", Number: 2, Team: game.TeamRed}

	req := BuildGuessPrompt(s, game.TeamRed, game.ModelEntry{})
	user := req.Messages[len(req.Messages)-1].Content

	if strings.Contains(user, "ASSASSIN") {
		t.Error("guesser prompt leaks the assassin")
	}
	if !strings.Contains(user, "WATER 2") {
		t.Error("guesser prompt missing the current clue")
	}
}

func TestBuildCluePromptAppendsSeatInstructions(t *testing.T) {
	s := testState(t)
	req := BuildCluePrompt(s, game.TeamRed, game.ModelEntry{Instructions: "Play aggressively."})

	found := false
	for _, m := range req.Messages {
		if m.Role == "system" && m.Content == "Play aggressively." {
			found = true
		}
	}
	if !found {
		t.Error("seat instructions not carried into the prompt")
	}
}
