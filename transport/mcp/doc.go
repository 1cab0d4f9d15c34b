// Package mcp exposes the memory game to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a REST request
// against a running game server, so agents and browsers share sessions.
//
// MCP Tools:
//   - create_session: Create a session, optionally picking config and difficulty
//   - list_sessions: List all active sessions
//   - get_session: Get specific session details
//   - game_state: Render the table; face-down cards show only their id
//   - flip_card: Flip one card by id
//   - flip_cards: Flip several cards in order
//   - new_game: Deal a fresh deck
//   - flip_history: Retrieve flip history with pagination
//   - list_configs: List available game configurations
//   - game_instructions: Rules and strategy notes
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: mount client.HTTPHandler() on POST /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//	    logging.Fatal("MCP server error: %v", err)
//	}
package mcp
