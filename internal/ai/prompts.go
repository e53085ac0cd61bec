package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codewords-live/server/internal/domain/board"
	"github.com/codewords-live/server/internal/game"
)

// ClueResponse is the structured output expected from a spymaster model.
type ClueResponse struct {
	Word      string   `json:"word"`
	Number    int      `json:"number"`
	Targets   []string `json:"targets"`
	Reasoning string   `json:"reasoning"`
	Risk      string   `json:"risk"`
}

// GuessResponse is the structured output expected from a guesser model.
// Guesses are ordered most-confident first; the model may return fewer
// than the allowed count to signal a voluntary stop.
type GuessResponse struct {
	Guesses   []string `json:"guesses"`
	Reasoning string   `json:"reasoning"`
}

// clueSchema is the JSON shape the spymaster model must produce.
var clueSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"word": {"type": "string"},
		"number": {"type": "integer", "minimum": 0, "maximum": 9},
		"targets": {"type": "array", "items": {"type": "string"}},
		"reasoning": {"type": "string"},
		"risk": {"type": "string", "enum": ["low", "medium", "high"]}
	},
	"required": ["word", "number", "targets", "reasoning"]
}`)

// guessSchema is the JSON shape the guesser model must produce.
var guessSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"guesses": {"type": "array", "items": {"type": "string"}},
		"reasoning": {"type": "string"}
	},
	"required": ["guesses"]
}`)

const clueSystemPrompt = `You are the spymaster in a word-association board game.
Your team must find its words before the other team finds theirs.
Give a single-word clue and a number. The clue must relate to your
team's unrevealed words and must NOT be any word on the board.
Avoid clues that point at the assassin word: guessing it loses the
game instantly. Respond with JSON only.`

const guessSystemPrompt = `You are a guesser in a word-association board game.
Your spymaster gave a clue relating to some of the unrevealed words.
Pick the words most likely intended, in order of confidence. Return
fewer words than allowed if you are unsure: a wrong guess ends your
turn and may help the other team. Respond with JSON only.`

// BuildCluePrompt assembles the spymaster prompt. The spymaster sees
// the full key: their own words, the opponent's, neutrals, and the
// assassin.
func BuildCluePrompt(s *game.State, team game.Team, entry game.ModelEntry) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You play team %s.\n\n", team)
	fmt.Fprintf(&b, "YOUR WORDS (unrevealed): %s\n", strings.Join(s.UnrevealedWords(team.Card()), ", "))
	fmt.Fprintf(&b, "OPPONENT WORDS (unrevealed): %s\n", strings.Join(s.UnrevealedWords(team.Opponent().Card()), ", "))
	fmt.Fprintf(&b, "NEUTRAL WORDS (unrevealed): %s\n", strings.Join(s.UnrevealedWords(board.CardNeutral), ", "))
	fmt.Fprintf(&b, "ASSASSIN: %s\n\n", strings.Join(s.UnrevealedWords(board.CardAssassin), ", "))
	writeClueHistory(&b, s)
	fmt.Fprintf(&b, "Your team has %d words left; the opponent has %d.\n", s.RemainingFor(team), s.RemainingFor(team.Opponent()))
	b.WriteString("Give your clue now.\n")

	messages := []Message{{Role: "system", Content: clueSystemPrompt}}
	if entry.Instructions != "" {
		messages = append(messages, Message{Role: "system", Content: entry.Instructions})
	}
	messages = append(messages, Message{Role: "user", Content: b.String()})

	return Request{
		Messages:        messages,
		Schema:          clueSchema,
		Model:           entry.Model,
		ReasoningEffort: entry.ReasoningEffort,
		MaxTokens:       1024,
	}
}

// BuildGuessPrompt assembles the guesser prompt. The guesser sees only
// unrevealed words, never the key.
func BuildGuessPrompt(s *game.State, team game.Team, entry game.ModelEntry) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You play team %s.\n\n", team)
	fmt.Fprintf(&b, "UNREVEALED WORDS: %s\n\n", strings.Join(s.UnrevealedWords(""), ", "))
	writeClueHistory(&b, s)
	if s.CurrentClue != nil {
		fmt.Fprintf(&b, "CURRENT CLUE: %s %d\n", s.CurrentClue.Word, s.CurrentClue.Number)
	}
	fmt.Fprintf(&b, "You may guess up to %d words this turn.\n", s.GuessesRemaining)
	b.WriteString("List your guesses in order of confidence.\n")

	messages := []Message{{Role: "system", Content: guessSystemPrompt}}
	if entry.Instructions != "" {
		messages = append(messages, Message{Role: "system", Content: entry.Instructions})
	}
	messages = append(messages, Message{Role: "user", Content: b.String()})

	return Request{
		Messages:        messages,
		Schema:          guessSchema,
		Model:           entry.Model,
		ReasoningEffort: entry.ReasoningEffort,
		MaxTokens:       512,
	}
}

// BuildRolloutGuessPrompt assembles a simulated-guesser prompt for
// evaluating one candidate clue against the live board.
func BuildRolloutGuessPrompt(s *game.State, team game.Team, entry game.ModelEntry, clueWord string, clueNumber int) Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You play team %s.\n\n", team)
	fmt.Fprintf(&b, "UNREVEALED WORDS: %s\n\n", strings.Join(s.UnrevealedWords(""), ", "))
	writeClueHistory(&b, s)
	fmt.Fprintf(&b, "CURRENT CLUE: %s %d\n", clueWord, clueNumber)
	fmt.Fprintf(&b, "You may guess up to %d words this turn.\n", clueNumber+1)
	b.WriteString("List your guesses in order of confidence.\n")

	return Request{
		Messages: []Message{
			{Role: "system", Content: guessSystemPrompt},
			{Role: "user", Content: b.String()},
		},
		Schema:          guessSchema,
		Model:           entry.Model,
		ReasoningEffort: entry.ReasoningEffort,
		MaxTokens:       512,
	}
}

func writeClueHistory(b *strings.Builder, s *game.State) {
	if len(s.ClueHistory) == 0 {
		return
	}
	b.WriteString("CLUE HISTORY:\n")
	for _, c := range s.ClueHistory {
		var outcomes []string
		for _, g := range c.Guesses {
			mark := "wrong"
			if g.Correct {
				mark = "correct"
			}
			outcomes = append(outcomes, fmt.Sprintf("%s (%s)", g.Word, mark))
		}
		fmt.Fprintf(b, "  %s: %s %d -> %s\n", c.Team, c.Word, c.Number, strings.Join(outcomes, ", "))
	}
	b.WriteString("\n")
}

// ParseClueResponse parses and validates a spymaster result against the
// live board. The returned clue word is upper-cased.
func ParseClueResponse(raw json.RawMessage, s *game.State) (*ClueResponse, error) {
	var resp ClueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse clue response: %w", err)
	}
	if err := resp.Validate(s); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate checks a clue response for the structural rules: single
// word, legal number, not a board word, targets on the board.
func (r *ClueResponse) Validate(s *game.State) error {
	r.Word = strings.ToUpper(strings.TrimSpace(r.Word))
	if r.Word == "" {
		return fmt.Errorf("model returned an empty clue word")
	}
	if strings.ContainsAny(r.Word, " \t") {
		return fmt.Errorf("model returned a multi-word clue %q", r.Word)
	}
	if r.Number < 0 || r.Number > 9 {
		return fmt.Errorf("model returned clue number %d outside 0-9", r.Number)
	}
	if s.Board != nil && s.Board.IndexOf(r.Word) >= 0 {
		return fmt.Errorf("model returned board word %q as clue", r.Word)
	}
	for i, t := range r.Targets {
		t = strings.ToUpper(strings.TrimSpace(t))
		r.Targets[i] = t
		if s.Board != nil && s.Board.IndexOf(t) < 0 {
			return fmt.Errorf("clue target %q is not on the board", t)
		}
	}
	return nil
}

// ParseGuessResponse parses a guesser result and drops any guesses that
// are not unrevealed board words. Partial salvage is deliberate: one
// hallucinated word should not discard the rest of an ordered list.
func ParseGuessResponse(raw json.RawMessage, s *game.State) (*GuessResponse, error) {
	var resp GuessResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse guess response: %w", err)
	}

	valid := resp.Guesses[:0]
	for _, w := range resp.Guesses {
		w = strings.ToUpper(strings.TrimSpace(w))
		idx := s.Board.IndexOf(w)
		if idx < 0 || s.Revealed[idx] {
			continue
		}
		valid = append(valid, w)
	}
	resp.Guesses = valid
	if len(resp.Guesses) == 0 {
		return nil, fmt.Errorf("model returned no valid guesses")
	}
	return &resp, nil
}

