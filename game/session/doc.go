// Package session provides session management for the memory game.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - File persistence of game state
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Session represents an individual game session with its own engine instance
// and metadata like creation time and last access time.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Lookups are
// case-insensitive and generated IDs never collide with a live session.
//
// Timers:
//
// Every engine may hold a pending mismatch timer. Deleting, expiring or
// unloading a session closes its engine so no timer outlives it. The
// manager routes each engine's resolve hook to the listener registered
// with SetResolveListener, which the service layer uses to persist and
// broadcast the turn-back.
//
// Usage:
//
//	manager := session.NewManager()
//
//	// Create a new session
//	sess, err := manager.Create("", "classic", config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Retrieve existing session
//	sess, err = manager.Get(sessionID)
//
//	// List all active sessions
//	sessions := manager.List()
package session
