// Package service provides the business logic layer for the memory game.
//
// The service package implements:
//   - Multi-session game management
//   - Configuration management and loading
//   - Flip processing with per-flip events
//   - Session lifecycle management
//   - Flip history tracking
//   - Change notifications for push transports
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages game configuration loading and validation.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine, providing session isolation, configuration management, and
// business logic orchestration. Each session maintains its own game engine
// instance with independent state. Results carry engine snapshots, never the
// raw deck, so face-down symbols do not leave the process.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	gameService := service.NewGameService(sessionMgr, configMgr)
//
//	// Create a new session on the hard level
//	sessionInfo, err := gameService.CreateSession(ctx, "classic", "hard")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Flip a card
//	result, err := gameService.Flip(ctx, sessionInfo.ID, 3, false)
//
// Notifications:
//
// Subscribe registers a listener that receives a snapshot after every
// change, including the deferred turn-back of a mismatched pair, which
// happens on a timer rather than in response to a request.
package service
