package engine

// CardView is the observer-facing representation of a card.
// Content is only included when the card is face-up.
type CardView struct {
	ID        int    `json:"id"`
	Content   string `json:"content,omitempty"`
	Hidden    bool   `json:"hidden"`
	IsFlipped bool   `json:"is_flipped"`
	IsMatched bool   `json:"is_matched"`
}

// Snapshot is the read-only state handed to rendering clients
type Snapshot struct {
	Cards        []CardView `json:"cards"`
	FlippedIDs   []int      `json:"flipped_ids"`
	Attempts     int        `json:"attempts"`
	MatchedPairs int        `json:"matched_pairs"`
	PairCount    int        `json:"pair_count"`
	IsWon        bool       `json:"is_won"`
	Phase        Phase      `json:"phase"`
	Pending      bool       `json:"pending"`
	Difficulty   string     `json:"difficulty"`
	Message      string     `json:"message"`
	GamesPlayed  int        `json:"games_played"`
	TotalFlips   int        `json:"total_flips"`
}

// BuildCardViews projects a deck for observers. Face-down cards never
// expose their content.
func BuildCardViews(deck Deck) []CardView {
	views := make([]CardView, len(deck))
	for i, card := range deck {
		cv := CardView{
			ID:        card.ID,
			Hidden:    !card.IsFlipped,
			IsFlipped: card.IsFlipped,
			IsMatched: card.IsMatched,
		}
		if card.IsFlipped {
			cv.Content = card.Content
		}
		views[i] = cv
	}
	return views
}

// BuildSnapshot projects a game state for observers
func BuildSnapshot(state *GameState) *Snapshot {
	if state == nil {
		return &Snapshot{Cards: []CardView{}, FlippedIDs: []int{}, Phase: PhaseIdle}
	}

	flipped := make([]int, len(state.FlippedIDs))
	copy(flipped, state.FlippedIDs)

	return &Snapshot{
		Cards:        BuildCardViews(state.Cards),
		FlippedIDs:   flipped,
		Attempts:     state.Attempts,
		MatchedPairs: state.MatchedPairs,
		PairCount:    state.PairCount,
		IsWon:        state.IsWon(),
		Phase:        state.Phase(),
		Pending:      len(state.FlippedIDs) == MaxFlippedCards,
		Difficulty:   state.Difficulty,
		Message:      state.Message,
		GamesPlayed:  state.GamesPlayed,
		TotalFlips:   state.TotalFlips,
	}
}

// IsWon reports whether every pair has been found
func (gs *GameState) IsWon() bool {
	return gs.PairCount > 0 && gs.MatchedPairs == gs.PairCount
}

// Phase derives the state machine phase from the counters
func (gs *GameState) Phase() Phase {
	switch {
	case gs == nil || len(gs.Cards) == 0:
		return PhaseIdle
	case gs.IsWon():
		return PhaseWon
	case len(gs.FlippedIDs) == 1:
		return PhaseOneFlipped
	case len(gs.FlippedIDs) >= MaxFlippedCards:
		return PhaseEvaluating
	default:
		return PhaseDealt
	}
}
