package service

import (
	"time"

	"github.com/idanshlomo1/memorygame-app/game/engine"
)

// Event types reported in GameEvent.Type
const (
	EventRevealed = "revealed"
	EventMatch    = "match"
	EventMismatch = "mismatch"
	EventIgnored  = "ignored"
	EventVictory  = "victory"
	EventNewGame  = "new_game"
	EventResolved = "resolved"
)

// Bulk flip stop codes reported in BulkFlipResult.StopReasonCode
const (
	StopMismatchPending = "mismatch_pending"
	StopVictory         = "victory"
	StopAlreadyWon      = "already_won"
)

// SessionInfo provides information about a game session. GameState is the
// observer view, so face-down cards carry no content.
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	GameState      *engine.Snapshot   `json:"game_state"`
	GameConfig     *engine.GameConfig `json:"game_config"`
}

// FlipResult contains the result of a single flip
type FlipResult struct {
	Success   bool               `json:"success"`
	CardID    int                `json:"card_id"`
	Outcome   engine.FlipOutcome `json:"outcome"`
	PairIDs   []int              `json:"pair_ids,omitempty"`
	GameState *engine.Snapshot   `json:"game_state"`
	Message   string             `json:"message"`
	Events    []GameEvent        `json:"events,omitempty"`
	Step      *FlipStep          `json:"step,omitempty"`
}

// BulkFlipResult contains the result of several flips in one call
type BulkFlipResult struct {
	// Summary
	FlipsExecuted  int              `json:"flips_executed"`
	RequestedFlips int              `json:"requested_flips"`
	Success        bool             `json:"success"`
	GameState      *engine.Snapshot `json:"game_state"`
	Events         []GameEvent      `json:"events"`
	StoppedReason  string           `json:"stopped_reason,omitempty"`
	StopReasonCode string           `json:"stop_reason_code,omitempty"` // mismatch_pending|victory|already_won
	StoppedOnFlip  int              `json:"stopped_on_flip,omitempty"`  // 1-based index of the flip that caused the stop
	Truncated      bool             `json:"truncated,omitempty"`
	Limit          int              `json:"limit,omitempty"`

	// Counters before and after the call
	StartAttempts     int `json:"start_attempts"`
	EndAttempts       int `json:"end_attempts"`
	MatchedPairsDelta int `json:"matched_pairs_delta"`

	// Per-flip trace (only for this call)
	Steps []FlipStep `json:"steps,omitempty"`

	// Final status aids
	IsWon          bool   `json:"is_won"`
	Rating         string `json:"rating,omitempty"`
	Message        string `json:"message,omitempty"`
	FlippableCards []int  `json:"flippable_cards,omitempty"`
}

// FlipStep is a compact record for each tap. Content is what the tap
// revealed and is empty for ignored taps.
type FlipStep struct {
	Idx     int                `json:"idx"`
	CardID  int                `json:"card_id"`
	Outcome engine.FlipOutcome `json:"outcome"`
	Content string             `json:"content,omitempty"`
	Attempt int                `json:"attempt"`
	Success bool               `json:"success"`
	Victory bool               `json:"victory,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string    `json:"type"` // revealed|match|mismatch|ignored|victory|new_game|resolved
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	CardIDs   []int     `json:"card_ids,omitempty"`
}

// HistoryOptions configures flip history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated flip history
type HistoryResponse struct {
	Flips       []engine.FlipHistoryEntry `json:"flips"`
	TotalFlips  int                       `json:"total_flips"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigInfo provides information about a game configuration
type ConfigInfo struct {
	Filename          string              `json:"filename"`
	ConfigID          string              `json:"config_id"` // The identifier to use for session creation
	Name              string              `json:"name"`      // Display name
	Description       string              `json:"description"`
	SymbolCount       int                 `json:"symbol_count"`
	ResolveDelayMS    int                 `json:"resolve_delay_ms"`
	DefaultDifficulty string              `json:"default_difficulty"`
	Difficulties      []engine.Difficulty `json:"difficulties"`
}

// NewConfigInfo summarizes a configuration stored under configID
func NewConfigInfo(configID string, config *engine.GameConfig) *ConfigInfo {
	difficulties := make([]engine.Difficulty, len(config.Difficulties))
	copy(difficulties, config.Difficulties)

	return &ConfigInfo{
		Filename:          configID + ".toml",
		ConfigID:          configID,
		Name:              config.Name,
		Description:       config.Description,
		SymbolCount:       len(config.Alphabet),
		ResolveDelayMS:    config.ResolveDelayMS,
		DefaultDifficulty: config.DefaultDifficulty,
		Difficulties:      difficulties,
	}
}
