// Package api provides HTTP REST API handlers for the memory game.
//
// The api package implements:
//   - RESTful endpoints for game operations
//   - Session management endpoints
//   - Configuration listing and upload
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session {config_id, difficulty}
//   - GET /api/sessions - List sessions (sort=created|accessed, order, limit)
//   - GET /api/sessions/unified - Several sessions with aggregate progress
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Observer view of the table
//   - POST /api/sessions/{id}/flip - Flip one card {card_id, resolve_pending}
//   - POST /api/sessions/{id}/bulk-flip - Flip several cards {card_ids, resolve_pending}
//   - POST /api/sessions/{id}/new-game - Deal again {difficulty}
//   - GET /api/sessions/{id}/history - Flip history with pagination
//
// Configuration:
//   - GET /api/configs - List available configurations
//   - POST /api/configs - Validate and store a configuration
//   - GET /api/configs/{name} - Full configuration
//
// Other:
//   - GET /api/health - Liveness probe
//   - GET /ws?session={id} - WebSocket state stream
//
// Game states returned by every endpoint are snapshots: a face-down card
// carries its id but never its content.
//
// Error Handling:
//
// Errors are returned as JSON with an HTTP status code: 404 for unknown
// sessions and configs, 400 for malformed bodies, unknown difficulties and
// configuration errors.
//
//	{
//	  "error": "error message"
//	}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	server := api.NewServer(gameService, hub)
//	defer server.Close()
//	http.ListenAndServe(":8080", server)
package api
