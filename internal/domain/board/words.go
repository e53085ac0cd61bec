package board

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

//go:embed wordlist.txt
var defaultWordList []byte

// WordSource supplies distinct candidate words for board generation.
type WordSource interface {
	// Sample draws n distinct words, uppercased.
	Sample(rng *rand.Rand, n int) ([]string, error)
}

// Pool is an in-memory word source backed by a fixed word list.
type Pool struct {
	words []string
}

// DefaultPool returns the pool backed by the embedded word list.
func DefaultPool() *Pool {
	p, err := parsePool(defaultWordList)
	if err != nil {
		// The embedded list is validated by tests; a broken build asset
		// is a programming error, not a runtime condition.
		panic(err)
	}
	return p
}

// PoolFromFile loads a word list from disk, one word per line.
// Blank lines and lines starting with '#' are skipped.
func PoolFromFile(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}
	return parsePool(data)
}

func parsePool(data []byte) (*Pool, error) {
	seen := make(map[string]bool)
	var words []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		word := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		if seen[word] {
			continue
		}
		seen[word] = true
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan word list: %w", err)
	}

	if len(words) < Size {
		return nil, fmt.Errorf("word list too small: need at least %d words, got %d", Size, len(words))
	}
	return &Pool{words: words}, nil
}

// Len returns the number of words in the pool.
func (p *Pool) Len() int {
	return len(p.words)
}

// Sample draws n distinct words via a partial Fisher-Yates shuffle.
func (p *Pool) Sample(rng *rand.Rand, n int) ([]string, error) {
	if n > len(p.words) {
		return nil, fmt.Errorf("cannot sample %d words from a pool of %d", n, len(p.words))
	}

	candidates := make([]string, len(p.words))
	copy(candidates, p.words)

	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:n], nil
}
