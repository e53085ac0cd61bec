// Package board generates Codenames boards: 25 distinct words with a
// hidden key assigning each card to a team, neutral, or the assassin.
package board

import (
	"fmt"
	"math/rand"
	"strings"
)

const (
	// Size is the number of cards on a board.
	Size = 25
	// FirstTeamCards is the card count for the team that moves first.
	FirstTeamCards = 9
	// SecondTeamCards is the card count for the team that moves second.
	SecondTeamCards = 8
	// NeutralCards is the number of neutral cards.
	NeutralCards = 7
	// AssassinCards is the number of assassin cards.
	AssassinCards = 1
)

// CardType is the hidden affiliation of one card.
type CardType string

const (
	CardRed      CardType = "red"
	CardBlue     CardType = "blue"
	CardNeutral  CardType = "neutral"
	CardAssassin CardType = "assassin"
)

// Team identifies one of the two playing teams.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Opponent returns the other team.
func (t Team) Opponent() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

// Card returns the card type owned by the team.
func (t Team) Card() CardType {
	if t == TeamRed {
		return CardRed
	}
	return CardBlue
}

// Board holds the words and the hidden key of one game.
type Board struct {
	Words []string   `json:"words"`
	Key   []CardType `json:"key"`
}

// Generate draws Size distinct words from the source and assigns the key
// with a fair shuffle. The starting team receives FirstTeamCards cards.
func Generate(src WordSource, rng *rand.Rand, startingTeam Team) (*Board, error) {
	words, err := src.Sample(rng, Size)
	if err != nil {
		return nil, fmt.Errorf("failed to sample board words: %w", err)
	}

	key := make([]CardType, 0, Size)
	for i := 0; i < FirstTeamCards; i++ {
		key = append(key, startingTeam.Card())
	}
	for i := 0; i < SecondTeamCards; i++ {
		key = append(key, startingTeam.Opponent().Card())
	}
	for i := 0; i < NeutralCards; i++ {
		key = append(key, CardNeutral)
	}
	key = append(key, CardAssassin)

	rng.Shuffle(len(key), func(i, j int) {
		key[i], key[j] = key[j], key[i]
	})

	return &Board{Words: words, Key: key}, nil
}

// IndexOf returns the board index of a word, case-insensitively, or -1.
func (b *Board) IndexOf(word string) int {
	needle := strings.ToUpper(strings.TrimSpace(word))
	for i, w := range b.Words {
		if w == needle {
			return i
		}
	}
	return -1
}

// Count returns the number of cards of the given type.
func (b *Board) Count(ct CardType) int {
	n := 0
	for _, k := range b.Key {
		if k == ct {
			n++
		}
	}
	return n
}
