package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	NewGame(difficulty Difficulty) (*GameState, error)
	Snapshot() *Snapshot
	IsWon() bool
	GetAttempts() int
	GetMatchedPairs() int
	GetPhase() Phase

	// Flip operations
	Flip(cardID int) FlipResult
	CanFlip(cardID int) bool
	GetFlippableCards() []int
	ResolvePending() bool

	// Configuration
	GetConfig() *GameConfig
	SetConfig(config *GameConfig) error

	// History
	GetFlipHistory() []FlipHistoryEntry
	GetLastFlip() *FlipHistoryEntry

	// Lifecycle
	OnResolve(fn func(*Snapshot))
	Close()
}

// GameEngine implements the Engine interface. All methods are safe for
// concurrent use; the deferred mismatch resolution runs on the scheduler's
// goroutine and takes the same lock.
type GameEngine struct {
	mu        sync.Mutex
	state     *GameState
	config    *GameConfig
	rng       *rand.Rand
	scheduler Scheduler
	delay     time.Duration

	// pending is the mismatch resolution timer, nil when nothing is pending.
	// generation increments on every deal and resolution so a callback that
	// fires after being superseded is a no-op.
	pending    Timer
	generation uint64

	onResolve func(*Snapshot)
	now       func() time.Time

	// initial overrides the configured default difficulty for the first deal
	initial *Difficulty
}

// Option customizes a GameEngine
type Option func(*GameEngine)

// WithScheduler replaces the time.AfterFunc based scheduler
func WithScheduler(s Scheduler) Option {
	return func(e *GameEngine) {
		e.scheduler = s
	}
}

// WithRand fixes the shuffle source, mostly for tests and simulations
func WithRand(rng *rand.Rand) Option {
	return func(e *GameEngine) {
		e.rng = rng
	}
}

// WithResolveDelay overrides the configured mismatch delay
func WithResolveDelay(d time.Duration) Option {
	return func(e *GameEngine) {
		e.delay = d
	}
}

// WithDifficulty makes the first deal use d instead of the default difficulty
func WithDifficulty(d Difficulty) Option {
	return func(e *GameEngine) {
		e.initial = &d
	}
}

// WithClock overrides the timestamp source used for history entries
func WithClock(now func() time.Time) Option {
	return func(e *GameEngine) {
		e.now = now
	}
}

// NewEngine creates a new game engine and deals the default difficulty
func NewEngine(config *GameConfig, opts ...Option) (*GameEngine, error) {
	if err := ValidateGameConfig(config); err != nil {
		return nil, err
	}

	e := &GameEngine{
		config:    config,
		scheduler: RealScheduler(),
		delay:     config.ResolveDelay(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	difficulty, err := config.ResolveDifficulty("")
	if err != nil {
		return nil, err
	}
	if e.initial != nil {
		difficulty = *e.initial
	}
	if _, err := e.NewGame(difficulty); err != nil {
		return nil, err
	}

	return e, nil
}

// NewEngineWithDefaults creates a new game engine with the built-in configuration
func NewEngineWithDefaults(opts ...Option) *GameEngine {
	e, err := NewEngine(DefaultGameConfig(), opts...)
	if err != nil {
		// The built-in config is always valid
		panic(fmt.Sprintf("engine: default config rejected: %v", err))
	}
	return e
}

// GetState returns a copy of the current game state
func (e *GameEngine) GetState() *GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// SetState replaces the game state (used for persistence loading). A state
// saved while a mismatch was pending gets a fresh resolution timer.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if err := state.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelPendingLocked()
	e.state = state.clone()
	if len(e.state.FlippedIDs) == MaxFlippedCards {
		e.scheduleResolutionLocked()
	}
	return nil
}

// NewGame deals a fresh deck for the difficulty. Any pending mismatch
// resolution from the previous deal is cancelled. On a configuration error
// the current game is left untouched.
func (e *GameEngine) NewGame(difficulty Difficulty) (*GameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deck, err := GenerateDeck(e.config.Alphabet, difficulty.Pairs, e.rng)
	if err != nil {
		return nil, err
	}

	e.cancelPendingLocked()

	// Preserve cumulative history across deals; clear only the current segment
	var history []FlipHistoryEntry
	totalFlips, gamesPlayed := 0, 0
	if e.state != nil {
		history = e.state.FlipHistory
		totalFlips = e.state.TotalFlips
		gamesPlayed = e.state.GamesPlayed
	}
	if history == nil {
		history = []FlipHistoryEntry{}
	}

	e.state = &GameState{
		Cards:             deck,
		FlippedIDs:        []int{},
		MatchedPairs:      0,
		Attempts:          0,
		PairCount:         difficulty.Pairs,
		Difficulty:        difficulty.Name,
		Message:           e.config.Messages.Welcome,
		GamesPlayed:       gamesPlayed + 1,
		FlipHistory:       history,
		TotalFlips:        totalFlips,
		CurrentFlips:      []FlipHistoryEntry{},
		CurrentFlipsCount: 0,
	}

	return e.state.clone(), nil
}

// NewGameWithPairs deals a fresh deck with an ad-hoc pair count
func (e *GameEngine) NewGameWithPairs(pairCount int) (*GameState, error) {
	name := fmt.Sprintf("%d pairs", pairCount)
	if d, ok := e.difficultyForPairs(pairCount); ok {
		name = d.Name
	}
	return e.NewGame(Difficulty{Name: name, Pairs: pairCount})
}

func (e *GameEngine) difficultyForPairs(pairCount int) (Difficulty, bool) {
	for _, d := range e.config.Difficulties {
		if d.Pairs == pairCount {
			return d, true
		}
	}
	return Difficulty{}, false
}

// Snapshot returns the observer-facing view of the current game
func (e *GameEngine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BuildSnapshot(e.state)
}

// IsWon returns whether every pair has been found
func (e *GameEngine) IsWon() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsWon()
}

// GetAttempts returns the number of completed two-card evaluations
func (e *GameEngine) GetAttempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Attempts
}

// GetMatchedPairs returns the number of pairs found so far
func (e *GameEngine) GetMatchedPairs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.MatchedPairs
}

// GetPhase returns the current state machine phase
func (e *GameEngine) GetPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Phase()
}

// Flip reveals a card. Taps are ignored while two cards are face-up, and
// on unknown, flipped or matched cards; an ignored tap changes nothing.
func (e *GameEngine) Flip(cardID int) FlipResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := e.state.flip(cardID, e.config, e.now().UnixMilli())
	if result.Outcome == OutcomeMismatched {
		e.scheduleResolutionLocked()
	}
	return result
}

// CanFlip checks whether a tap on the card would be accepted
func (e *GameEngine) CanFlip(cardID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.canFlip(cardID)
}

// GetFlippableCards returns the ids of all cards a tap would currently flip
func (e *GameEngine) GetFlippableCards() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := []int{}
	for _, card := range e.state.Cards {
		if e.state.canFlip(card.ID) {
			ids = append(ids, card.ID)
		}
	}
	return ids
}

// ResolvePending flips a pending mismatch back immediately instead of
// waiting for the timer. It reports whether anything was resolved.
func (e *GameEngine) ResolvePending() bool {
	e.mu.Lock()
	e.cancelPendingLocked()
	resolved := e.state.resolveMismatch(e.now().UnixMilli())
	snap := BuildSnapshot(e.state)
	hook := e.onResolve
	e.mu.Unlock()

	if resolved && hook != nil {
		hook(snap)
	}
	return resolved
}

// GetConfig returns the current game configuration
func (e *GameEngine) GetConfig() *GameConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// SetConfig sets a new game configuration and deals its default difficulty
func (e *GameEngine) SetConfig(config *GameConfig) error {
	if err := ValidateGameConfig(config); err != nil {
		return err
	}
	difficulty, err := config.ResolveDifficulty("")
	if err != nil {
		return err
	}

	e.mu.Lock()
	prev := e.config
	e.config = config
	e.delay = config.ResolveDelay()
	e.mu.Unlock()

	if _, err := e.NewGame(difficulty); err != nil {
		e.mu.Lock()
		e.config = prev
		e.delay = prev.ResolveDelay()
		e.mu.Unlock()
		return err
	}
	return nil
}

// GetFlipHistory returns the complete flip history
func (e *GameEngine) GetFlipHistory() []FlipHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := make([]FlipHistoryEntry, len(e.state.FlipHistory))
	copy(history, e.state.FlipHistory)
	return history
}

// GetLastFlip returns the last recorded flip, or nil if no flips
func (e *GameEngine) GetLastFlip() *FlipHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.state.FlipHistory) == 0 {
		return nil
	}
	last := e.state.FlipHistory[len(e.state.FlipHistory)-1]
	return &last
}

// OnResolve registers a hook that runs after a deferred mismatch
// resolution, outside the engine lock
func (e *GameEngine) OnResolve(fn func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onResolve = fn
}

// HasPendingResolution reports whether a mismatch timer is outstanding
func (e *GameEngine) HasPendingResolution() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// Close cancels any outstanding timer; the engine stays readable
func (e *GameEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPendingLocked()
}

// BulkFlip executes several taps in order and stops at the first tap that
// leaves a mismatch pending, since every later tap would be ignored
func (e *GameEngine) BulkFlip(cardIDs []int) []FlipResult {
	results := make([]FlipResult, 0, len(cardIDs))

	for _, id := range cardIDs {
		if e.IsWon() {
			break
		}

		result := e.Flip(id)
		results = append(results, result)
		if result.Outcome == OutcomeMismatched {
			break
		}
	}

	return results
}

func (e *GameEngine) scheduleResolutionLocked() {
	e.cancelPendingLocked()
	gen := e.generation
	e.pending = e.scheduler.AfterFunc(e.delay, func() {
		e.resolveFromTimer(gen)
	})
}

func (e *GameEngine) cancelPendingLocked() {
	e.generation++
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

func (e *GameEngine) resolveFromTimer(gen uint64) {
	e.mu.Lock()
	if gen != e.generation {
		// Superseded by a new game, a manual resolution or Close
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.generation++
	resolved := e.state.resolveMismatch(e.now().UnixMilli())
	snap := BuildSnapshot(e.state)
	hook := e.onResolve
	e.mu.Unlock()

	if resolved && hook != nil {
		hook(snap)
	}
}
