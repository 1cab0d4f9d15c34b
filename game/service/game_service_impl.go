package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/logging"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	mu       sync.RWMutex

	subMu       sync.RWMutex
	subscribers map[int]StateListener
	nextSubID   int
}

// NewGameService creates a new game service instance. It registers itself as
// the session manager's resolve listener so deferred mismatch resolutions
// are persisted and pushed like any other change.
func NewGameService(sessions SessionManager, configs ConfigManager) GameService {
	s := &gameServiceImpl{
		sessions:    sessions,
		configs:     configs,
		subscribers: make(map[int]StateListener),
	}
	sessions.SetResolveListener(s.handleResolved)
	return s
}

// getConfigID returns the config_id for a given config name, used for consistent API responses
func (s *gameServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	// Fallback: return as-is or "default"
	if configName == "" {
		return "default"
	}
	return configName
}

// CreateSession creates a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName, difficulty string) (*SessionInfo, error) {
	info, snap, err := s.createSession(configName, difficulty)
	if err != nil {
		return nil, err
	}
	s.notify(info.ID, snap)
	return info, nil
}

func (s *gameServiceImpl) createSession(configName, difficulty string) (*SessionInfo, *engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.GameConfig
	var err error
	configID := strings.TrimSuffix(configName, ".toml")
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if strings.Contains(err.Error(), "configuration not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrUnknownConfig, configName, configIDs)
				}
				return nil, nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrUnknownConfig, configName)
			}
			return nil, nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.getConfigID(config.Name)
	}

	var opts []engine.Option
	if difficulty != "" {
		d, ok := config.FindDifficulty(difficulty)
		if !ok {
			return nil, nil, fmt.Errorf("%w '%s' for config '%s' (available: %s)",
				ErrUnknownDifficulty, difficulty, configID, difficultyNames(config))
		}
		opts = append(opts, engine.WithDifficulty(d))
	}

	// Let session manager generate a proper 4-character ID
	session, err := s.sessions.Create("", configID, config, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return s.sessionInfo(session), session.Engine.Snapshot(), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return s.sessionInfo(session), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}

	return result, nil
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	configID := sess.ConfigID
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.Snapshot(),
		GameConfig:     sess.Config,
	}
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions.Delete(sessionID)
}

// Flip executes a single tap for a session. With resolvePending set, a
// mismatch still waiting for its timer is turned back first.
func (s *gameServiceImpl) Flip(ctx context.Context, sessionID string, cardID int, resolvePending bool) (*FlipResult, error) {
	result, changed, err := s.flip(sessionID, cardID, resolvePending)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(sessionID, result.GameState)
	}
	return result, nil
}

func (s *gameServiceImpl) flip(sessionID string, cardID int, resolvePending bool) (*FlipResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("session not found: %w", err)
	}

	// Update last accessed time
	s.sessions.UpdateLastAccessed(sessionID)

	events := []GameEvent{}
	changed := false
	if resolvePending && sess.Engine.ResolvePending() {
		events = append(events, resolvedEvent())
		changed = true
	}

	flip := sess.Engine.Flip(cardID)
	state := sess.Engine.GetState()

	result := &FlipResult{
		Success:   flip.Outcome != engine.OutcomeIgnored,
		CardID:    cardID,
		Outcome:   flip.Outcome,
		PairIDs:   flip.PairIDs,
		GameState: engine.BuildSnapshot(state),
		Message:   state.Message,
	}

	step := buildStep(1, flip, state)
	result.Step = &step
	result.Events = append(events, flipEvents(flip, state, sess.Config)...)

	if !result.Success {
		result.Message = ignoredMessage(cardID, sess.Config)
		return result, changed, nil
	}

	// Auto-save session after flip
	if err := s.sessions.Save(sessionID); err != nil {
		logging.Warn("Failed to persist session %s after flip: %v", sessionID, err)
	}

	return result, true, nil
}

// BulkFlip executes several taps in sequence. It stops after a tap leaves a
// mismatch pending, since every later tap would be ignored, and after the
// winning match.
func (s *gameServiceImpl) BulkFlip(ctx context.Context, sessionID string, cardIDs []int, resolvePending bool) (*BulkFlipResult, error) {
	result, changed, err := s.bulkFlip(sessionID, cardIDs, resolvePending)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notify(sessionID, result.GameState)
	}
	return result, nil
}

func (s *gameServiceImpl) bulkFlip(sessionID string, cardIDs []int, resolvePending bool) (*BulkFlipResult, bool, error) {
	if len(cardIDs) == 0 {
		return nil, false, ErrNoFlips
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("session not found: %w", err)
	}

	// Update last accessed
	s.sessions.UpdateLastAccessed(sessionID)

	start := sess.Engine.GetState()
	result := &BulkFlipResult{
		RequestedFlips: len(cardIDs),
		Events:         make([]GameEvent, 0),
		Success:        true,
		StartAttempts:  start.Attempts,
	}

	changed := false
	if resolvePending && sess.Engine.ResolvePending() {
		result.Events = append(result.Events, resolvedEvent())
		changed = true
	}

	// Limit flips to prevent abuse
	if len(cardIDs) > engine.MaxBulkFlips {
		result.Truncated = true
		result.Limit = engine.MaxBulkFlips
		cardIDs = cardIDs[:engine.MaxBulkFlips]
	}

	if start.IsWon() {
		result.Success = false
		result.StopReasonCode = StopAlreadyWon
		result.StoppedReason = "game already won; start a new game"
		result.StoppedOnFlip = 1
	}

	flips := sess.Engine.BulkFlip(cardIDs)
	end := sess.Engine.GetState()

	for i, flip := range flips {
		step := buildStep(i+1, flip, end)
		result.Steps = append(result.Steps, step)
		result.Events = append(result.Events, flipEvents(flip, end, sess.Config)...)

		if flip.Outcome == engine.OutcomeIgnored {
			result.Success = false
			continue
		}
		result.FlipsExecuted++
	}

	if n := len(flips); n > 0 {
		last := flips[n-1]
		switch {
		case last.Won:
			result.StopReasonCode = StopVictory
			result.StoppedReason = "all pairs found"
			if n < len(cardIDs) {
				result.StoppedOnFlip = n
			}
		case last.Outcome == engine.OutcomeMismatched && n < len(cardIDs):
			result.StopReasonCode = StopMismatchPending
			result.StoppedReason = fmt.Sprintf("flip %d left a mismatch pending; remaining flips skipped", n)
			result.StoppedOnFlip = n
		}
	}

	result.GameState = engine.BuildSnapshot(end)
	result.EndAttempts = end.Attempts
	result.MatchedPairsDelta = end.MatchedPairs - start.MatchedPairs
	result.IsWon = end.IsWon()
	result.Message = end.Message
	result.FlippableCards = sess.Engine.GetFlippableCards()
	if result.IsWon {
		result.Rating = engine.RateAttempts(end.PairCount, end.Attempts)
	}

	if result.FlipsExecuted > 0 {
		changed = true
		if err := s.sessions.Save(sessionID); err != nil {
			logging.Warn("Failed to persist session %s after bulk flips: %v", sessionID, err)
		}
	}

	return result, changed, nil
}

// NewGame deals a fresh deck. An empty difficulty keeps the current one.
func (s *gameServiceImpl) NewGame(ctx context.Context, sessionID, difficulty string) (*engine.Snapshot, error) {
	snap, err := s.newGame(sessionID, difficulty)
	if err != nil {
		return nil, err
	}
	s.notify(sessionID, snap)
	return snap, nil
}

func (s *gameServiceImpl) newGame(sessionID, difficulty string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)

	d, err := s.resolveDifficulty(sess, difficulty)
	if err != nil {
		return nil, err
	}

	state, err := sess.Engine.NewGame(d)
	if err != nil {
		return nil, fmt.Errorf("failed to deal new game: %w", err)
	}

	if err := s.sessions.Save(sessionID); err != nil {
		logging.Warn("Failed to persist session %s after new game: %v", sessionID, err)
	}

	return engine.BuildSnapshot(state), nil
}

func (s *gameServiceImpl) resolveDifficulty(sess *Session, name string) (engine.Difficulty, error) {
	if name == "" {
		current := sess.Engine.GetState().Difficulty
		if d, ok := sess.Config.FindDifficulty(current); ok {
			return d, nil
		}
		return sess.Config.ResolveDifficulty("")
	}

	d, ok := sess.Config.FindDifficulty(name)
	if !ok {
		return engine.Difficulty{}, fmt.Errorf("%w '%s' (available: %s)", ErrUnknownDifficulty, name, difficultyNames(sess.Config))
	}
	return d, nil
}

// GetGameState returns the observer view of a session's game
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess.Engine.Snapshot(), nil
}

// GetFlipHistory returns a page of the session's cumulative flip history
func (s *gameServiceImpl) GetFlipHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.Engine.GetFlipHistory()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var flips []engine.FlipHistoryEntry
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			flips = append(flips, history[i])
		}
	} else if start < total {
		flips = history[start:end]
	}

	if flips == nil {
		flips = []engine.FlipHistoryEntry{}
	}

	return &HistoryResponse{
		Flips:       flips,
		TotalFlips:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error) {
	return s.configs.LoadConfig(configName)
}

func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// Subscribe registers a listener for every state change of every session
func (s *gameServiceImpl) Subscribe(listener StateListener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = listener

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *gameServiceImpl) notify(sessionID string, snap *engine.Snapshot) {
	s.subMu.RLock()
	listeners := make([]StateListener, 0, len(s.subscribers))
	for _, l := range s.subscribers {
		listeners = append(listeners, l)
	}
	s.subMu.RUnlock()

	for _, l := range listeners {
		l(sessionID, snap)
	}
}

// handleResolved runs on the timer goroutine after a mismatch turned back.
// It must not take s.mu: a flip holding it may be waiting on the engine.
func (s *gameServiceImpl) handleResolved(sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		logging.Warn("Failed to persist session %s after resolution: %v", sess.ID, err)
	}
	s.notify(sess.ID, sess.Engine.Snapshot())
}

func buildStep(idx int, flip engine.FlipResult, state *engine.GameState) FlipStep {
	step := FlipStep{
		Idx:     idx,
		CardID:  flip.CardID,
		Outcome: flip.Outcome,
		Attempt: state.Attempts,
		Success: flip.Outcome != engine.OutcomeIgnored,
		Victory: flip.Won,
	}
	if step.Success {
		if i := state.Cards.Find(flip.CardID); i >= 0 {
			step.Content = state.Cards[i].Content
		}
	}
	return step
}

func flipEvents(flip engine.FlipResult, state *engine.GameState, config *engine.GameConfig) []GameEvent {
	now := time.Now()
	switch flip.Outcome {
	case engine.OutcomeRevealed:
		return []GameEvent{{
			Type:      EventRevealed,
			Message:   fmt.Sprintf("Revealed card %d", flip.CardID),
			Timestamp: now,
			CardIDs:   []int{flip.CardID},
		}}
	case engine.OutcomeMatched:
		events := []GameEvent{{
			Type:      EventMatch,
			Message:   fmt.Sprintf("Cards %d and %d match; %d pairs left", flip.PairIDs[0], flip.PairIDs[1], engine.RemainingPairs(state)),
			Timestamp: now,
			CardIDs:   flip.PairIDs,
		}}
		if flip.Won {
			events = append(events, GameEvent{
				Type:      EventVictory,
				Message:   fmt.Sprintf(config.Messages.Victory, state.Attempts) + fmt.Sprintf(" (accuracy %.0f%%)", 100*engine.Accuracy(state)),
				Timestamp: now,
			})
		}
		return events
	case engine.OutcomeMismatched:
		return []GameEvent{{
			Type: EventMismatch,
			Message: fmt.Sprintf("Cards %d and %d do not match; they turn back after %dms",
				flip.PairIDs[0], flip.PairIDs[1], config.ResolveDelayMS),
			Timestamp: now,
			CardIDs:   flip.PairIDs,
		}}
	default:
		return []GameEvent{{
			Type:      EventIgnored,
			Message:   ignoredMessage(flip.CardID, config),
			Timestamp: now,
			CardIDs:   []int{flip.CardID},
		}}
	}
}

func resolvedEvent() GameEvent {
	return GameEvent{
		Type:      EventResolved,
		Message:   "Pending mismatch turned back",
		Timestamp: time.Now(),
	}
}

func ignoredMessage(cardID int, config *engine.GameConfig) string {
	if config.Messages.Ignored != "" {
		return config.Messages.Ignored
	}
	return fmt.Sprintf("Card %d cannot be flipped right now", cardID)
}

func difficultyNames(config *engine.GameConfig) string {
	names := make([]string, 0, len(config.Difficulties))
	for _, d := range config.Difficulties {
		names = append(names, d.Name)
	}
	return strings.Join(names, ", ")
}
