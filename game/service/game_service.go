package service

import (
	"context"
	"errors"
	"time"

	"github.com/idanshlomo1/memorygame-app/game/engine"
)

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrNoFlips           = errors.New("no card ids provided")
	ErrUnknownConfig     = errors.New("config not found")
)

// StateListener receives the observer view of a session after every change
type StateListener func(sessionID string, snap *engine.Snapshot)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName, difficulty string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Flip(ctx context.Context, sessionID string, cardID int, resolvePending bool) (*FlipResult, error)
	BulkFlip(ctx context.Context, sessionID string, cardIDs []int, resolvePending bool) (*BulkFlipResult, error)
	NewGame(ctx context.Context, sessionID, difficulty string) (*engine.Snapshot, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetFlipHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.GameConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.GameConfig) error

	// Notifications
	Subscribe(listener StateListener) (unsubscribe func())
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.GameConfig, opts ...engine.Option) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, config *engine.GameConfig, opts ...engine.Option) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	SetResolveListener(fn func(*Session))
}

// ConfigManager handles game configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.GameConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.GameConfig
	SaveConfig(name string, config *engine.GameConfig) error
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	Config         *engine.GameConfig
	ConfigID       string
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
