package board

import (
	"math/rand"
	"testing"
)

func TestGenerateComposition(t *testing.T) {
	b, err := Generate(DefaultPool(), rand.New(rand.NewSource(1)), TeamRed)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(b.Words) != Size {
		t.Fatalf("expected %d words, got %d", Size, len(b.Words))
	}
	if len(b.Key) != Size {
		t.Fatalf("expected %d key entries, got %d", Size, len(b.Key))
	}

	if got := b.Count(CardRed); got != FirstTeamCards {
		t.Errorf("expected %d red cards, got %d", FirstTeamCards, got)
	}
	if got := b.Count(CardBlue); got != SecondTeamCards {
		t.Errorf("expected %d blue cards, got %d", SecondTeamCards, got)
	}
	if got := b.Count(CardNeutral); got != NeutralCards {
		t.Errorf("expected %d neutral cards, got %d", NeutralCards, got)
	}
	if got := b.Count(CardAssassin); got != AssassinCards {
		t.Errorf("expected exactly %d assassin card, got %d", AssassinCards, got)
	}
}

func TestGenerateStartingTeamGetsNine(t *testing.T) {
	b, err := Generate(DefaultPool(), rand.New(rand.NewSource(7)), TeamBlue)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := b.Count(CardBlue); got != FirstTeamCards {
		t.Errorf("blue starts, expected %d blue cards, got %d", FirstTeamCards, got)
	}
	if got := b.Count(CardRed); got != SecondTeamCards {
		t.Errorf("expected %d red cards, got %d", SecondTeamCards, got)
	}
}

func TestGenerateWordsDistinct(t *testing.T) {
	b, err := Generate(DefaultPool(), rand.New(rand.NewSource(3)), TeamRed)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, w := range b.Words {
		if seen[w] {
			t.Errorf("duplicate word on board: %s", w)
		}
		seen[w] = true
	}
}

func TestGenerateVariesWithSeed(t *testing.T) {
	b1, _ := Generate(DefaultPool(), rand.New(rand.NewSource(1)), TeamRed)
	b2, _ := Generate(DefaultPool(), rand.New(rand.NewSource(2)), TeamRed)

	same := true
	for i := range b1.Words {
		if b1.Words[i] != b2.Words[i] {
			same = false
			break
		}
	}
	if same {
		t.Errorf("two different seeds produced identical boards")
	}
}

func TestIndexOfCaseInsensitive(t *testing.T) {
	b := &Board{Words: []string{"OCEAN", "MOON"}, Key: []CardType{CardRed, CardBlue}}
	if got := b.IndexOf("ocean"); got != 0 {
		t.Errorf("expected index 0 for 'ocean', got %d", got)
	}
	if got := b.IndexOf(" Moon "); got != 1 {
		t.Errorf("expected index 1 for ' Moon ', got %d", got)
	}
	if got := b.IndexOf("COMET"); got != -1 {
		t.Errorf("expected -1 for unknown word, got %d", got)
	}
}

func TestDefaultPoolLargeEnough(t *testing.T) {
	if n := DefaultPool().Len(); n < Size {
		t.Fatalf("embedded pool has only %d words", n)
	}
}
