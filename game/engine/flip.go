package engine

import "fmt"

// canFlip checks whether a tap on the card would be accepted
func (gs *GameState) canFlip(cardID int) bool {
	if gs == nil || len(gs.FlippedIDs) >= MaxFlippedCards {
		return false
	}
	idx := gs.Cards.Find(cardID)
	if idx < 0 {
		return false
	}
	card := gs.Cards[idx]
	return !card.IsFlipped && !card.IsMatched
}

// flip applies a tap. The deck is replaced, never mutated in place, so
// holders of an older slice keep a consistent view.
func (gs *GameState) flip(cardID int, config *GameConfig, timestamp int64) FlipResult {
	result := FlipResult{CardID: cardID, Outcome: OutcomeIgnored}
	if !gs.canFlip(cardID) {
		return result
	}

	cards := gs.Cards.Clone()
	idx := cards.Find(cardID)
	cards[idx].IsFlipped = true

	flipped := make([]int, 0, MaxFlippedCards)
	flipped = append(flipped, gs.FlippedIDs...)
	flipped = append(flipped, cardID)

	gs.Cards = cards
	gs.FlippedIDs = flipped

	if len(flipped) < MaxFlippedCards {
		result.Outcome = OutcomeRevealed
		gs.setMessage(config.Messages.Revealed)
		gs.addFlipToHistory(FlipActionTap, cardID, result.Outcome, timestamp)
		return result
	}

	// Second card of the pair: one attempt, compared by content
	gs.Attempts++
	first := cards[cards.Find(flipped[0])]
	second := cards[idx]
	result.PairIDs = []int{first.ID, second.ID}

	if first.Content == second.Content {
		matched := cards.Clone()
		for _, id := range result.PairIDs {
			i := matched.Find(id)
			matched[i].IsMatched = true
			matched[i].IsFlipped = true
		}
		gs.Cards = matched
		gs.FlippedIDs = []int{}
		gs.MatchedPairs++

		result.Outcome = OutcomeMatched
		result.Won = gs.IsWon()
		if result.Won {
			gs.Message = fmt.Sprintf(config.Messages.Victory, gs.Attempts)
		} else if config.Messages.Match != "" {
			gs.Message = fmt.Sprintf(config.Messages.Match, gs.MatchedPairs, gs.PairCount)
		}
	} else {
		result.Outcome = OutcomeMismatched
		gs.setMessage(config.Messages.Mismatch)
	}

	gs.addFlipToHistory(FlipActionTap, cardID, result.Outcome, timestamp)
	return result
}

// resolveMismatch turns a pending mismatched pair face-down again. It
// reports false when no mismatch is pending.
func (gs *GameState) resolveMismatch(timestamp int64) bool {
	if gs == nil || len(gs.FlippedIDs) != MaxFlippedCards {
		return false
	}

	cards := gs.Cards.Clone()
	for _, id := range gs.FlippedIDs {
		if i := cards.Find(id); i >= 0 && !cards[i].IsMatched {
			cards[i].IsFlipped = false
		}
	}
	last := gs.FlippedIDs[len(gs.FlippedIDs)-1]

	gs.Cards = cards
	gs.FlippedIDs = []int{}
	gs.addFlipToHistory(FlipActionResolution, last, OutcomeMismatched, timestamp)
	return true
}

func (gs *GameState) setMessage(msg string) {
	if msg != "" {
		gs.Message = msg
	}
}

// addFlipToHistory records an accepted flip or a resolution
func (gs *GameState) addFlipToHistory(action string, cardID int, outcome FlipOutcome, timestamp int64) {
	gs.TotalFlips++
	entry := FlipHistoryEntry{
		Action:     action,
		CardID:     cardID,
		Outcome:    outcome,
		Attempt:    gs.Attempts,
		Game:       gs.GamesPlayed,
		Timestamp:  timestamp,
		FlipNumber: gs.TotalFlips,
	}

	gs.FlipHistory = append(gs.FlipHistory, entry)
	gs.CurrentFlips = append(gs.CurrentFlips, entry)
	gs.CurrentFlipsCount = len(gs.CurrentFlips)
}

// clone deep-copies the state so callers never share slices with the engine
func (gs *GameState) clone() *GameState {
	if gs == nil {
		return nil
	}
	out := *gs
	out.Cards = gs.Cards.Clone()
	out.FlippedIDs = append([]int{}, gs.FlippedIDs...)
	out.FlipHistory = append([]FlipHistoryEntry{}, gs.FlipHistory...)
	out.CurrentFlips = append([]FlipHistoryEntry{}, gs.CurrentFlips...)
	return &out
}

// validate checks the invariants of a state restored from storage
func (gs *GameState) validate() error {
	if len(gs.Cards) != gs.PairCount*2 {
		return fmt.Errorf("state has %d cards for %d pairs", len(gs.Cards), gs.PairCount)
	}
	if len(gs.FlippedIDs) > MaxFlippedCards {
		return fmt.Errorf("state has %d flipped cards, at most %d allowed", len(gs.FlippedIDs), MaxFlippedCards)
	}
	if gs.MatchedPairs < 0 || gs.MatchedPairs > gs.PairCount {
		return fmt.Errorf("state has %d matched pairs out of %d", gs.MatchedPairs, gs.PairCount)
	}

	for _, card := range gs.Cards {
		if card.IsMatched && !card.IsFlipped {
			return fmt.Errorf("card %d is matched but face-down", card.ID)
		}
	}
	if matchedCards := CountMatchedCards(gs.Cards); matchedCards != gs.MatchedPairs*2 {
		return fmt.Errorf("state has %d matched cards for %d matched pairs", matchedCards, gs.MatchedPairs)
	}

	for _, id := range gs.FlippedIDs {
		i := gs.Cards.Find(id)
		if i < 0 {
			return fmt.Errorf("flipped card %d is not in the deck", id)
		}
		if !gs.Cards[i].IsFlipped || gs.Cards[i].IsMatched {
			return fmt.Errorf("flipped card %d must be face-up and unmatched", id)
		}
	}
	return nil
}
