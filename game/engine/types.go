package engine

// Phase describes where a game is in its flip cycle
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDealt      Phase = "dealt"
	PhaseOneFlipped Phase = "one_flipped"
	PhaseEvaluating Phase = "evaluating"
	PhaseWon        Phase = "won"
)

// FlipOutcome is the result of a single tap on a card
type FlipOutcome string

const (
	OutcomeIgnored    FlipOutcome = "ignored"
	OutcomeRevealed   FlipOutcome = "revealed"
	OutcomeMatched    FlipOutcome = "matched"
	OutcomeMismatched FlipOutcome = "mismatched"
)

const (
	// Validation constants
	MinPairs             = 1
	MaxAlphabetSize      = 64
	MaxBulkFlips         = 20
	MaxFlippedCards      = 2
	DefaultResolveDelay  = 1000 // milliseconds
	MaxResolveDelay      = 60000
	WebSocketBufferSize  = 256
	DefaultDifficulty    = "easy"
	HiddenContentMarker  = "?"
	FlipActionTap        = "flip"
	FlipActionResolution = "resolve"
)

// Card is one face of a pair. ID is stable for the lifetime of a deal.
type Card struct {
	ID        int    `json:"id"`
	Content   string `json:"content"`
	IsFlipped bool   `json:"is_flipped"`
	IsMatched bool   `json:"is_matched"`
}

// Deck is the ordered sequence of cards on the table
type Deck []Card

// Difficulty selects how many pairs are dealt
type Difficulty struct {
	Name  string `json:"name" toml:"name"`
	Pairs int    `json:"pairs" toml:"pairs"`
}

// Messages holds the player-facing texts for game events
type Messages struct {
	Welcome  string `json:"welcome" toml:"welcome"`
	Revealed string `json:"revealed" toml:"revealed"`
	Match    string `json:"match" toml:"match"`
	Mismatch string `json:"mismatch" toml:"mismatch"`
	Ignored  string `json:"ignored" toml:"ignored"`
	Victory  string `json:"victory" toml:"victory"`
}

// GameConfig represents the game rules loaded from a TOML file
type GameConfig struct {
	Name              string       `json:"name" toml:"name"`
	Description       string       `json:"description" toml:"description"`
	Alphabet          []string     `json:"alphabet" toml:"alphabet"`
	ResolveDelayMS    int          `json:"resolve_delay_ms" toml:"resolve_delay_ms"`
	DefaultDifficulty string       `json:"default_difficulty" toml:"default_difficulty"`
	Difficulties      []Difficulty `json:"difficulties" toml:"difficulties"`
	Messages          Messages     `json:"messages" toml:"messages"`
}

// GameState represents the complete game state
type GameState struct {
	Cards        Deck   `json:"cards"`
	FlippedIDs   []int  `json:"flipped_ids"`
	MatchedPairs int    `json:"matched_pairs"`
	Attempts     int    `json:"attempts"`
	PairCount    int    `json:"pair_count"`
	Difficulty   string `json:"difficulty"`
	Message      string `json:"message"`
	GamesPlayed  int    `json:"games_played"`

	FlipHistory []FlipHistoryEntry `json:"flip_history"`
	TotalFlips  int                `json:"total_flips"`

	// CurrentFlips mirrors FlipHistory for the current deal only; it is
	// cleared by a new game while FlipHistory stays cumulative.
	CurrentFlips      []FlipHistoryEntry `json:"current_flips"`
	CurrentFlipsCount int                `json:"current_flips_count"`
}

// FlipHistoryEntry represents a single tap or resolution in the game history
type FlipHistoryEntry struct {
	Action     string      `json:"action"`
	CardID     int         `json:"card_id"`
	Outcome    FlipOutcome `json:"outcome"`
	Attempt    int         `json:"attempt"`
	Game       int         `json:"game"`
	Timestamp  int64       `json:"timestamp"`
	FlipNumber int         `json:"flip_number"`
}

// FlipResult describes what a single Flip call did
type FlipResult struct {
	CardID  int         `json:"card_id"`
	Outcome FlipOutcome `json:"outcome"`
	// PairIDs holds the two evaluated card ids when Outcome is matched or mismatched
	PairIDs []int `json:"pair_ids,omitempty"`
	Won     bool  `json:"won"`
}
