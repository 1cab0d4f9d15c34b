package engine

// CountMatchedCards counts the face-up, resolved cards in the deck
func CountMatchedCards(deck Deck) int {
	count := 0
	for _, card := range deck {
		if card.IsMatched {
			count++
		}
	}
	return count
}

// FaceDownIDs returns the ids of all cards that are not showing
func FaceDownIDs(deck Deck) []int {
	ids := []int{}
	for _, card := range deck {
		if !card.IsFlipped {
			ids = append(ids, card.ID)
		}
	}
	return ids
}

// RemainingPairs returns the number of pairs still to be found
func RemainingPairs(state *GameState) int {
	if state == nil {
		return 0
	}
	return state.PairCount - state.MatchedPairs
}

// Accuracy returns the share of attempts that found a pair, 0 when no
// attempt has been made
func Accuracy(state *GameState) float64 {
	if state == nil || state.Attempts == 0 {
		return 0
	}
	return float64(state.MatchedPairs) / float64(state.Attempts)
}

// RateAttempts grades a finished game by how many attempts it took
// compared with the pair count
func RateAttempts(pairs, attempts int) string {
	if pairs <= 0 || attempts < pairs {
		return "UNKNOWN"
	}

	switch ratio := float64(attempts) / float64(pairs); {
	case attempts == pairs:
		return "PERFECT"
	case ratio <= 1.5:
		return "GREAT"
	case ratio <= 2:
		return "GOOD"
	case ratio <= 3:
		return "FAIR"
	default:
		return "KEEP_PRACTICING"
	}
}
