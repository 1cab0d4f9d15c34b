package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/game/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*service.Session
	scheduler *engine.ManualScheduler
	listener  func(*service.Session)
	saves     int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions:  make(map[string]*service.Session),
		scheduler: engine.NewManualScheduler(),
	}
}

func (m *MockSessionManager) Create(id, configID string, config *engine.GameConfig, opts ...engine.Option) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	base := []engine.Option{
		engine.WithScheduler(m.scheduler),
		engine.WithRand(rand.New(rand.NewPCG(uint64(len(m.sessions)), 9))),
	}
	eng, err := engine.NewEngine(config, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		ConfigID:       configID,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	eng.OnResolve(func(*engine.Snapshot) {
		m.mu.Lock()
		fn := m.listener
		m.mu.Unlock()
		if fn != nil {
			fn(session)
		}
	})

	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id, configID string, config *engine.GameConfig, opts ...engine.Option) (*service.Session, error) {
	if session, err := m.Get(id); err == nil {
		return session, nil
	}
	return m.Create(id, configID, config, opts...)
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return errors.New("session not found")
	}
	session.Engine.Close()
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return errors.New("session not found")
}

func (m *MockSessionManager) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; !exists {
		return errors.New("session not found")
	}
	m.saves++
	return nil
}

func (m *MockSessionManager) SetResolveListener(fn func(*service.Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = fn
}

func (m *MockSessionManager) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.GameConfig
}

func testConfig(name string) *engine.GameConfig {
	return &engine.GameConfig{
		Name:              name,
		Description:       "Test configuration",
		Alphabet:          []string{"A", "B", "C", "D", "E", "F"},
		ResolveDelayMS:    1000,
		DefaultDifficulty: "easy",
		Difficulties: []engine.Difficulty{
			{Name: "easy", Pairs: 2},
			{Name: "hard", Pairs: 6},
		},
		Messages: engine.Messages{
			Welcome:  "Welcome!",
			Revealed: "Pick another",
			Match:    "Match %d/%d",
			Mismatch: "Nope",
			Ignored:  "Not now",
			Victory:  "Won in %d attempts",
		},
	}
}

func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		configs: map[string]*engine.GameConfig{
			"test":  testConfig("test"),
			"other": testConfig("Other Display Name"),
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.GameConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, errors.New("configuration not found")
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	var result []*service.ConfigInfo
	for id, config := range m.configs {
		result = append(result, service.NewConfigInfo(id, config))
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.GameConfig {
	return m.configs["test"]
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.GameConfig) error {
	if err := engine.ValidateGameConfig(config); err != nil {
		return err
	}
	m.configs[name] = config
	return nil
}

func newTestService(t *testing.T) (service.GameService, *MockSessionManager) {
	t.Helper()
	sessions := NewMockSessionManager()
	return service.NewGameService(sessions, NewMockConfigManager()), sessions
}

func createSession(t *testing.T, svc service.GameService, difficulty string) *service.SessionInfo {
	t.Helper()
	info, err := svc.CreateSession(context.Background(), "test", difficulty)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return info
}

// pairIDs finds two face-down cards that match, and two that do not. The
// mismatch avoids the pair's cards when the deck allows it.
func pairIDs(t *testing.T, sessions *MockSessionManager, id string) (match [2]int, mismatch [2]int) {
	t.Helper()
	sess, err := sessions.Get(id)
	if err != nil {
		t.Fatalf("Session %s missing: %v", id, err)
	}
	cards := sess.Engine.GetState().Cards

	foundMatch := false
	for i, a := range cards {
		for _, b := range cards[i+1:] {
			if !a.IsFlipped && !b.IsFlipped && a.Content == b.Content {
				match = [2]int{a.ID, b.ID}
				foundMatch = true
				break
			}
		}
		if foundMatch {
			break
		}
	}
	if !foundMatch {
		t.Fatal("Deck has no face-down pair")
	}

	inMatch := func(id int) bool { return id == match[0] || id == match[1] }
	for _, avoid := range []bool{true, false} {
		for i, a := range cards {
			for _, b := range cards[i+1:] {
				if a.IsFlipped || b.IsFlipped || a.Content == b.Content {
					continue
				}
				if avoid && (inMatch(a.ID) || inMatch(b.ID)) {
					continue
				}
				return match, [2]int{a.ID, b.ID}
			}
		}
	}
	t.Fatal("Deck has no face-down mismatch")
	return match, mismatch
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("default config", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "", "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "test" {
			t.Errorf("Expected config_id test, got %s", info.ConfigName)
		}
		if len(info.GameState.Cards) != 4 || info.GameState.Difficulty != "easy" {
			t.Errorf("Expected an easy deal of 4 cards, got %d (%s)", len(info.GameState.Cards), info.GameState.Difficulty)
		}
	})

	t.Run("named config keeps its id", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "other", "")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if info.ConfigName != "other" || info.GameConfig.Name != "Other Display Name" {
			t.Errorf("Unexpected config %s / %s", info.ConfigName, info.GameConfig.Name)
		}
	})

	t.Run("difficulty", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, "test", "HARD")
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if len(info.GameState.Cards) != 12 || info.GameState.GamesPlayed != 1 {
			t.Errorf("Expected a first hard deal of 12 cards, got %d (game %d)",
				len(info.GameState.Cards), info.GameState.GamesPlayed)
		}
	})

	t.Run("unknown config lists alternatives", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "missing", "")
		if err == nil {
			t.Fatal("Expected error for unknown config")
		}
		if !strings.Contains(err.Error(), "Available configs") {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("unknown difficulty", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "test", "nightmare")
		if !errors.Is(err, service.ErrUnknownDifficulty) {
			t.Errorf("Expected ErrUnknownDifficulty, got %v", err)
		}
	})
}

func TestGameService_SnapshotsHideContent(t *testing.T) {
	svc, _ := newTestService(t)
	info := createSession(t, svc, "")

	for _, card := range info.GameState.Cards {
		if card.Content != "" || !card.Hidden {
			t.Errorf("Card %d leaked content %q in a fresh session", card.ID, card.Content)
		}
	}
}

func TestGameService_FlipMatch(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "")
	match, _ := pairIDs(t, sessions, info.ID)

	first, err := svc.Flip(ctx, info.ID, match[0], false)
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	if !first.Success || first.Outcome != engine.OutcomeRevealed {
		t.Errorf("Expected revealed, got %+v", first)
	}
	if first.Step == nil || first.Step.Content == "" {
		t.Error("Expected the revealed content in the step")
	}

	second, err := svc.Flip(ctx, info.ID, match[1], false)
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	if second.Outcome != engine.OutcomeMatched {
		t.Fatalf("Expected matched, got %s", second.Outcome)
	}
	if second.GameState.MatchedPairs != 1 || second.GameState.Attempts != 1 {
		t.Errorf("Unexpected counters: %+v", second.GameState)
	}
	if !hasEvent(second.Events, service.EventMatch) {
		t.Errorf("Expected a match event, got %+v", second.Events)
	}
	if sessions.saveCount() < 2 {
		t.Errorf("Expected a save per accepted flip, got %d", sessions.saveCount())
	}
}

func TestGameService_FlipMismatchAndResolution(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "")
	_, mismatch := pairIDs(t, sessions, info.ID)

	var mu sync.Mutex
	var pushed []*engine.Snapshot
	unsubscribe := svc.Subscribe(func(sessionID string, snap *engine.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if sessionID == info.ID {
			pushed = append(pushed, snap)
		}
	})
	defer unsubscribe()

	svc.Flip(ctx, info.ID, mismatch[0], false)
	result, err := svc.Flip(ctx, info.ID, mismatch[1], false)
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	if result.Outcome != engine.OutcomeMismatched || !result.GameState.Pending {
		t.Fatalf("Expected a pending mismatch, got %s pending=%v", result.Outcome, result.GameState.Pending)
	}

	// Taps are ignored until the pair turns back
	ignored, _ := svc.Flip(ctx, info.ID, mismatch[0], false)
	if ignored.Success || ignored.Message != "Not now" {
		t.Errorf("Expected ignored tap with configured message, got %+v", ignored)
	}

	savesBefore := sessions.saveCount()
	if fired := sessions.scheduler.FireAll(); fired != 1 {
		t.Fatalf("Expected one timer, fired %d", fired)
	}

	state, _ := svc.GetGameState(ctx, info.ID)
	if state.Pending || len(state.FlippedIDs) != 0 {
		t.Error("Expected the mismatch to be resolved")
	}
	if sessions.saveCount() != savesBefore+1 {
		t.Error("Expected the resolution to be persisted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(pushed) != 3 {
		t.Fatalf("Expected 3 pushes (two flips and the resolution), got %d", len(pushed))
	}
	if pushed[2].Pending {
		t.Error("Last push should be the resolved state")
	}
}

func TestGameService_FlipResolvePending(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "")
	_, mismatch := pairIDs(t, sessions, info.ID)

	svc.Flip(ctx, info.ID, mismatch[0], false)
	svc.Flip(ctx, info.ID, mismatch[1], false)

	result, err := svc.Flip(ctx, info.ID, mismatch[0], true)
	if err != nil {
		t.Fatalf("Flip failed: %v", err)
	}
	if !result.Success || result.Outcome != engine.OutcomeRevealed {
		t.Errorf("Expected the tap to be accepted after resolving, got %+v", result)
	}
	if !hasEvent(result.Events, service.EventResolved) {
		t.Error("Expected a resolved event")
	}
	if sessions.scheduler.Pending() != 0 {
		t.Error("Resolving early should cancel the timer")
	}
}

func TestGameService_BulkFlip(t *testing.T) {
	ctx := context.Background()

	t.Run("stops at mismatch", func(t *testing.T) {
		svc, sessions := newTestService(t)
		info := createSession(t, svc, "hard")
		match, mismatch := pairIDs(t, sessions, info.ID)
		ids := []int{match[0], match[1], mismatch[0], mismatch[1], match[0]}
		result, err := svc.BulkFlip(ctx, info.ID, ids, false)
		if err != nil {
			t.Fatalf("BulkFlip failed: %v", err)
		}
		if result.FlipsExecuted != 4 || len(result.Steps) != 4 {
			t.Errorf("Expected 4 flips, got %d (%d steps)", result.FlipsExecuted, len(result.Steps))
		}
		if result.StopReasonCode != service.StopMismatchPending || result.StoppedOnFlip != 4 {
			t.Errorf("Expected mismatch stop on flip 4, got %s/%d", result.StopReasonCode, result.StoppedOnFlip)
		}
		if result.MatchedPairsDelta != 1 || result.EndAttempts != 2 {
			t.Errorf("Unexpected counters: delta=%d attempts=%d", result.MatchedPairsDelta, result.EndAttempts)
		}
	})

	t.Run("wins", func(t *testing.T) {
		svc, sessions := newTestService(t)
		info := createSession(t, svc, "")
		sess, _ := sessions.Get(info.ID)

		// Group ids by content for a perfect game
		byContent := map[string][]int{}
		for _, card := range sess.Engine.GetState().Cards {
			byContent[card.Content] = append(byContent[card.Content], card.ID)
		}
		var ids []int
		for _, pair := range byContent {
			ids = append(ids, pair...)
		}

		result, err := svc.BulkFlip(ctx, info.ID, ids, false)
		if err != nil {
			t.Fatalf("BulkFlip failed: %v", err)
		}
		if !result.IsWon || result.StopReasonCode != service.StopVictory {
			t.Errorf("Expected victory, got %+v", result)
		}
		if result.Rating != "PERFECT" {
			t.Errorf("Expected PERFECT rating, got %s", result.Rating)
		}
		if !hasEvent(result.Events, service.EventVictory) {
			t.Error("Expected a victory event")
		}

		again, _ := svc.BulkFlip(ctx, info.ID, []int{0}, false)
		if again.StopReasonCode != service.StopAlreadyWon || again.FlipsExecuted != 0 {
			t.Errorf("Expected already_won, got %+v", again)
		}
	})

	t.Run("truncates", func(t *testing.T) {
		svc, _ := newTestService(t)
		info := createSession(t, svc, "")
		ids := make([]int, engine.MaxBulkFlips+5)
		for i := range ids {
			ids[i] = 999
		}

		result, err := svc.BulkFlip(ctx, info.ID, ids, false)
		if err != nil {
			t.Fatalf("BulkFlip failed: %v", err)
		}
		if !result.Truncated || result.Limit != engine.MaxBulkFlips {
			t.Errorf("Expected truncation at %d, got %+v", engine.MaxBulkFlips, result)
		}
		if result.Success || result.FlipsExecuted != 0 {
			t.Error("Unknown ids should all be ignored")
		}
	})

	t.Run("empty", func(t *testing.T) {
		svc, _ := newTestService(t)
		info := createSession(t, svc, "")
		if _, err := svc.BulkFlip(ctx, info.ID, nil, false); !errors.Is(err, service.ErrNoFlips) {
			t.Errorf("Expected ErrNoFlips, got %v", err)
		}
	})
}

func TestGameService_NewGame(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "hard")
	_, mismatch := pairIDs(t, sessions, info.ID)
	svc.Flip(ctx, info.ID, mismatch[0], false)
	svc.Flip(ctx, info.ID, mismatch[1], false)

	snap, err := svc.NewGame(ctx, info.ID, "")
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	if snap.Difficulty != "hard" || len(snap.Cards) != 12 {
		t.Errorf("Expected the current difficulty to be kept, got %s", snap.Difficulty)
	}
	if snap.Attempts != 0 || snap.Pending {
		t.Error("Expected a clean deal")
	}
	if sessions.scheduler.Pending() != 0 {
		t.Error("Expected the pending timer to be cancelled")
	}

	snap, err = svc.NewGame(ctx, info.ID, "easy")
	if err != nil || len(snap.Cards) != 4 {
		t.Errorf("Expected an easy deal, got %v (%v)", snap, err)
	}

	if _, err := svc.NewGame(ctx, info.ID, "impossible"); !errors.Is(err, service.ErrUnknownDifficulty) {
		t.Errorf("Expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestGameService_GetFlipHistory(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "hard")
	match, _ := pairIDs(t, sessions, info.ID)
	svc.Flip(ctx, info.ID, match[0], false)
	svc.Flip(ctx, info.ID, match[1], false)
	svc.Flip(ctx, info.ID, 999, false)

	desc, err := svc.GetFlipHistory(ctx, info.ID, service.HistoryOptions{})
	if err != nil {
		t.Fatalf("GetFlipHistory failed: %v", err)
	}
	if desc.TotalFlips != 2 || len(desc.Flips) != 2 {
		t.Fatalf("Expected 2 recorded flips, got %d", desc.TotalFlips)
	}
	if desc.Flips[0].Outcome != engine.OutcomeMatched {
		t.Errorf("Expected newest first, got %s", desc.Flips[0].Outcome)
	}

	asc, _ := svc.GetFlipHistory(ctx, info.ID, service.HistoryOptions{Order: "asc", Limit: 1, Page: 1})
	if len(asc.Flips) != 1 || asc.Flips[0].Outcome != engine.OutcomeRevealed {
		t.Errorf("Expected oldest first, got %+v", asc.Flips)
	}
	if !asc.HasNext || asc.HasPrevious || asc.TotalPages != 2 {
		t.Errorf("Unexpected pagination: %+v", asc)
	}

	empty, _ := svc.GetFlipHistory(ctx, info.ID, service.HistoryOptions{Page: 5})
	if len(empty.Flips) != 0 {
		t.Error("Expected an empty page past the end")
	}
}

func TestGameService_SessionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	info := createSession(t, svc, "")

	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}

	got, err := svc.GetSession(ctx, info.ID)
	if err != nil || got.ID != info.ID {
		t.Fatalf("GetSession failed: %v", err)
	}

	if err := svc.DeleteSession(ctx, info.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	for _, call := range []func() error{
		func() error { _, err := svc.GetSession(ctx, info.ID); return err },
		func() error { _, err := svc.GetGameState(ctx, info.ID); return err },
		func() error { _, err := svc.Flip(ctx, info.ID, 0, false); return err },
		func() error { _, err := svc.NewGame(ctx, info.ID, ""); return err },
	} {
		if err := call(); err == nil {
			t.Error("Expected error for a deleted session")
		}
	}
}

func TestGameService_Unsubscribe(t *testing.T) {
	svc, _ := newTestService(t)
	calls := 0
	unsubscribe := svc.Subscribe(func(string, *engine.Snapshot) { calls++ })

	info := createSession(t, svc, "")
	unsubscribe()
	svc.NewGame(context.Background(), info.ID, "")

	if calls != 1 {
		t.Errorf("Expected 1 notification before unsubscribing, got %d", calls)
	}
}

func TestGameService_Configs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	configs, err := svc.ListConfigs(ctx)
	if err != nil || len(configs) != 2 {
		t.Fatalf("Expected 2 configs, got %d (%v)", len(configs), err)
	}

	cfg := testConfig("saved")
	if err := svc.SaveConfig(ctx, "saved", cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := svc.LoadConfig(ctx, "saved")
	if err != nil || loaded.Name != "saved" {
		t.Errorf("Expected saved config back, got %v (%v)", loaded, err)
	}
}

func hasEvent(events []service.GameEvent, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}
