package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/game/service"
)

const (
	ServerName    = "Memory Match Game"
	ServerVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Memory Match Game - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Cards are dealt face-down in pairs. Flip two cards per attempt; equal symbols
stay face-up. Find every pair in as few attempts as possible.

AVAILABLE TOOLS:
- create_session: Create new game session (optional config and difficulty)
- list_sessions: List all active sessions
- get_session: Get session details
- game_state: Get the table; face-down cards show only their id
- flip_card: Flip one card by id
- flip_cards: Flip several cards in order (stops on a mismatch)
- new_game: Deal a fresh deck, optionally at another difficulty
- flip_history: View past flips
- list_configs: List available configurations and difficulties
- game_instructions: Get the full rules and strategy notes

NOTE: A mismatched pair stays face-up only briefly. Pass resolve_pending to
turn it back immediately instead of waiting.`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func resolvePendingProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "boolean",
		"description": "Turn a pending mismatched pair face-down before flipping",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session with optional config and difficulty selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use (see list_configs, optional)",
				},
				"difficulty": map[string]interface{}{
					"type":        "string",
					"description": "Difficulty name defined by the config (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current table. Face-down cards show only their id.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_card",
		Description: "Flip one face-down card. Taps on face-up or matched cards, or while a mismatch is pending, are ignored.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"card_id": map[string]interface{}{
					"type":        "integer",
					"description": "Id of the card to flip",
				},
				"resolve_pending": resolvePendingProperty(),
			},
			Required: []string{"session_id", "card_id"},
		},
	}, c.handleFlipCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_cards",
		Description: fmt.Sprintf("Flip several cards in order, at most %d. Stops after a mismatch or a win.", engine.MaxBulkFlips),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"card_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Card ids to flip in order",
				},
				"resolve_pending": resolvePendingProperty(),
			},
			Required: []string{"session_id", "card_ids"},
		},
	}, c.handleFlipCards)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "new_game",
		Description: "Deal a fresh deck. Without a difficulty the current one is kept.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"difficulty": map[string]interface{}{
					"type":        "string",
					"description": "Difficulty name (optional)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleNewGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "flip_history",
		Description: "Get flip history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleFlipHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available game configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions and rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves single JSON-RPC messages posted to it
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		if response == nil {
			// Notifications have no reply
			w.WriteHeader(http.StatusAccepted)
			return
		}
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// apiCall makes an HTTP request to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Argument helpers. JSON numbers arrive as float64.

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

func intArg(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	configID, _ := args["config_id"].(string)
	if configID == "" {
		configID, _ = args["config_name"].(string)
	}
	difficulty, _ := args["difficulty"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}
	if difficulty != "" {
		body["difficulty"] = difficulty
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created " + formatSessionInfo(&session)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		progress := ""
		if s.GameState != nil {
			progress = fmt.Sprintf(", Pairs: %d/%d, Attempts: %d", s.GameState.MatchedPairs, s.GameState.PairCount, s.GameState.Attempts)
		}
		fmt.Fprintf(&result, "- %s (Config: %s%s, Created: %s)\n",
			s.ID, s.ConfigName, progress, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var state engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleFlipCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	resolvePending, _ := args["resolve_pending"].(bool)
	cardID, ok := intArg(args["card_id"])
	if sessionID == "" || !ok {
		return mcp.NewToolResultError("session_id and an integer card_id are required"), nil
	}

	body := map[string]interface{}{
		"card_id":         cardID,
		"resolve_pending": resolvePending,
	}

	var result service.FlipResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/flip"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatFlipResult(&result)), nil
}

func (c *Client) handleFlipCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	resolvePending, _ := args["resolve_pending"].(bool)
	raw, _ := args["card_ids"].([]interface{})
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	cardIDs := make([]int, 0, len(raw))
	for _, v := range raw {
		id, ok := intArg(v)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("card id %v is not an integer", v)), nil
		}
		cardIDs = append(cardIDs, id)
	}

	body := map[string]interface{}{
		"card_ids":        cardIDs,
		"resolve_pending": resolvePending,
	}

	var result service.BulkFlipResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-flip"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkFlipResult(sessionID, &result)), nil
}

func (c *Client) handleNewGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	difficulty, _ := args["difficulty"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	var response struct {
		Message string           `json:"message"`
		State   *engine.Snapshot `json:"state"`
	}
	body := map[string]string{"difficulty": difficulty}
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/new-game"), body, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message + "\n\n" + formatGameState(response.State)), nil
}

func (c *Client) handleFlipHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	query := url.Values{}
	if page, ok := intArg(args["page"]); ok && page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit, ok := intArg(args["limit"]); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}

	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString("Available Configurations:\n\n")
	for _, cfg := range configs {
		names := make([]string, 0, len(cfg.Difficulties))
		for _, d := range cfg.Difficulties {
			names = append(names, fmt.Sprintf("%s=%d pairs", d.Name, d.Pairs))
		}
		fmt.Fprintf(&result, "- %s: %s\n  symbols: %d, mismatch delay: %dms, default: %s\n  difficulties: %s\n",
			cfg.ConfigID, cfg.Description, cfg.SymbolCount, cfg.ResolveDelayMS,
			cfg.DefaultDifficulty, strings.Join(names, ", "))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(gameInstructions), nil
}

const gameInstructions = `Memory Match Game - Complete Instructions

GAME OBJECTIVE:
Find every pair of matching symbols. The game is won when all pairs are
matched. Fewer attempts is better; a perfect game uses one attempt per pair.

THE TABLE:
- Every card has a stable integer id for the whole deal.
- Face-down cards show only their id. Their symbol is never revealed until
  they are flipped.
- Matched cards stay face-up for the rest of the deal.

TURN STRUCTURE:
1. Flip a face-down card; it stays face-up.
2. Flip a second face-down card. This counts as one attempt.
3. If both symbols are equal the pair is matched immediately.
4. If they differ the pair stays visible for the config's mismatch delay,
   then both cards turn face-down again.

IGNORED TAPS:
- Flipping a card that is already face-up or matched does nothing.
- Flipping while a mismatched pair is still visible does nothing. Either wait
  for the delay or pass resolve_pending=true to turn the pair back first.
- Unknown card ids do nothing.
Ignored taps never count as attempts.

STRATEGY:
- Remember every symbol you have seen and where.
- When a first flip reveals a symbol you have already seen elsewhere, flip
  its partner next.
- Otherwise flip a card you have never seen.
- flip_cards lets you play several known pairs in one call; it stops as soon
  as a mismatch is pending.

RATINGS (attempts per pair):
PERFECT (1.0), GREAT (<=1.5), GOOD (<=2), FAIR (<=3), KEEP_PRACTICING.

Good luck and sharp memory!`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

// cardLabel renders one card: "?" face-down, the symbol when face-up,
// and the symbol in brackets once matched
func cardLabel(card engine.CardView) string {
	switch {
	case card.IsMatched:
		return "[" + card.Content + "]"
	case card.IsFlipped:
		return card.Content
	default:
		return "?"
	}
}

// gridColumns picks a near-square layout for n cards
func gridColumns(n int) int {
	if n <= 0 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

func formatGameState(state *engine.Snapshot) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder
	fmt.Fprintf(&result, "Difficulty: %s | Pairs: %d/%d | Attempts: %d | Phase: %s\n",
		state.Difficulty, state.MatchedPairs, state.PairCount, state.Attempts, state.Phase)
	if state.Message != "" {
		fmt.Fprintf(&result, "Message: %s\n", state.Message)
	}
	result.WriteString("\n")

	cols := gridColumns(len(state.Cards))
	for i, card := range state.Cards {
		fmt.Fprintf(&result, "%3d:%-5s", card.ID, cardLabel(card))
		if (i+1)%cols == 0 || i == len(state.Cards)-1 {
			result.WriteString("\n")
		}
	}

	if state.Pending {
		result.WriteString("\nMismatch pending: the face-up pair will turn back shortly.\n")
	}
	if state.IsWon {
		result.WriteString("\n🎉 VICTORY! All pairs found.\n")
	} else {
		fmt.Fprintf(&result, "\nFace-down ids: %s\n", joinInts(faceDownIDs(state)))
	}

	return result.String()
}

func faceDownIDs(state *engine.Snapshot) []int {
	ids := make([]int, 0, len(state.Cards))
	for _, card := range state.Cards {
		if !card.IsFlipped {
			ids = append(ids, card.ID)
		}
	}
	return ids
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func formatFlipResult(result *service.FlipResult) string {
	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✓ Card %d: %s", result.CardID, result.Outcome)
		if result.Step != nil && result.Step.Content != "" {
			fmt.Fprintf(&b, " (%s)", result.Step.Content)
		}
	} else {
		fmt.Fprintf(&b, "✗ Card %d ignored", result.CardID)
	}
	b.WriteString("\n")
	if result.Message != "" {
		b.WriteString(result.Message + "\n")
	}
	for _, ev := range result.Events {
		fmt.Fprintf(&b, "- %s: %s\n", ev.Type, ev.Message)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkFlipResult(sessionID string, result *service.BulkFlipResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: executed %d/%d flips", sessionID, result.FlipsExecuted, result.RequestedFlips)
	if result.Truncated {
		fmt.Fprintf(&b, " (truncated to %d)", result.Limit)
	}
	b.WriteString("\n")
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped on flip %d: %s (%s)\n", result.StoppedOnFlip, result.StoppedReason, result.StopReasonCode)
	}
	fmt.Fprintf(&b, "Attempts: %d -> %d | New pairs: %d\n", result.StartAttempts, result.EndAttempts, result.MatchedPairsDelta)

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, step := range result.Steps {
			content := step.Content
			if content == "" {
				content = "-"
			}
			fmt.Fprintf(&b, "%2d. card %d %s %s\n", step.Idx, step.CardID, content, step.Outcome)
		}
	}

	if result.IsWon && result.Rating != "" {
		fmt.Fprintf(&b, "\nRating: %s\n", result.Rating)
	}
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flip History (page %d/%d, %d total):\n\n", history.Page, history.TotalPages, history.TotalFlips)
	for _, entry := range history.Flips {
		fmt.Fprintf(&b, "#%d game %d attempt %d: %s card %d -> %s\n",
			entry.FlipNumber, entry.Game, entry.Attempt, entry.Action, entry.CardID, entry.Outcome)
	}
	if history.HasNext {
		b.WriteString("\nMore entries on the next page.\n")
	}
	return b.String()
}
