package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrConfiguration is the sentinel matched by every ConfigurationError
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports a pair count the symbol alphabet cannot serve
type ConfigurationError struct {
	PairCount    int
	AlphabetSize int
}

func (e *ConfigurationError) Error() string {
	if e.PairCount < MinPairs {
		return fmt.Sprintf("configuration error: pair count must be at least %d, got %d", MinPairs, e.PairCount)
	}
	return fmt.Sprintf("configuration error: %d pairs requested but the alphabet only has %d symbols",
		e.PairCount, e.AlphabetSize)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// GenerateDeck deals two cards for each of the first pairCount symbols and
// shuffles them. Ids are deterministic (2k and 2k+1 for symbol k); only the
// final order is random.
func GenerateDeck(alphabet []string, pairCount int, rng *rand.Rand) (Deck, error) {
	if pairCount < MinPairs || pairCount > len(alphabet) {
		return nil, &ConfigurationError{PairCount: pairCount, AlphabetSize: len(alphabet)}
	}

	deck := make(Deck, 0, pairCount*2)
	for k, symbol := range alphabet[:pairCount] {
		deck = append(deck,
			Card{ID: 2 * k, Content: symbol},
			Card{ID: 2*k + 1, Content: symbol},
		)
	}

	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	// Fisher-Yates
	shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return deck, nil
}

// Find returns the index of the card with the given id, or -1
func (d Deck) Find(id int) int {
	for i := range d {
		if d[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that can be modified without touching d
func (d Deck) Clone() Deck {
	if d == nil {
		return nil
	}
	out := make(Deck, len(d))
	copy(out, d)
	return out
}
