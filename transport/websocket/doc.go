// Package websocket provides WebSocket transport for the memory game.
//
// The websocket package implements:
//   - Session-aware WebSocket connections
//   - State broadcasting after every change, including deferred turn-backs
//   - Inbound flip and new game commands
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a reader and
// a writer goroutine. The client map is guarded by a mutex so broadcasts
// may come from any goroutine, including engine timer callbacks.
//
// Message Protocol:
//
// Every frame is one JSON document:
//   - Incoming: {"action": "flip", "card_id": 3} or {"action": "new_game", "difficulty": "hard"}
//   - Outgoing: {"session_id": "ab12", "event": "state_update", "game_state": {...}}
//
// Outgoing game states are observer snapshots: face-down cards never carry
// their content. Command failures are answered to the sender only with an
// "error" event.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	hub.SetCommandHandler(func(sessionID string, cmd websocket.Command) error {
//		...
//	})
//	hub.ServeWS(w, r, sessionID, snapshot)
//
// Connection Lifecycle:
//
// 1. Client connects with session ID
// 2. The client receives a "connected" event with its client id
// 3. Initial state is sent to the client
// 4. Client sends commands, receives state updates
// 5. Disconnection triggers cleanup
package websocket
