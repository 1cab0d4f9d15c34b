package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/idanshlomo1/memorygame-app/game/config"
	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/game/service"
	"github.com/idanshlomo1/memorygame-app/game/session"
	"github.com/idanshlomo1/memorygame-app/logging"
	"github.com/idanshlomo1/memorygame-app/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service     service.GameService
	hub         *websocket.Hub
	router      *mux.Router
	unsubscribe func()
}

// NewServer creates a new API server. When hub is not nil every state change
// of the service, including deferred mismatch resolutions, is pushed to the
// session's WebSocket clients and client commands are routed to the service.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	if hub != nil {
		s.unsubscribe = gameService.Subscribe(hub.BroadcastToSession)
		hub.SetCommandHandler(s.handleCommand)
	}

	s.setupRoutes()
	return s
}

// Close detaches the server from the service's state notifications
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	// Unified sessions for multi-session view (must be before {id} pattern)
	api.HandleFunc("/sessions/unified", s.handleUnifiedSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/flip", s.handleFlip).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-flip", s.handleBulkFlip).Methods("POST")
	api.HandleFunc("/sessions/{id}/new-game", s.handleNewGame).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes, using fallback for
// anything unrecognized
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, service.ErrUnknownConfig),
		errors.Is(err, config.ErrConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnknownDifficulty),
		errors.Is(err, service.ErrNoFlips),
		errors.Is(err, engine.ErrConfiguration),
		errors.Is(err, config.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID   string `json:"config_id,omitempty"`
		ConfigName string `json:"config_name,omitempty"` // Deprecated, use config_id
		Difficulty string `json:"difficulty,omitempty"`
	}

	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Support both parameter names, but prefer config_id
	configID := req.ConfigID
	if configID == "" && req.ConfigName != "" {
		configID = req.ConfigName
	}

	session, err := s.service.CreateSession(r.Context(), configID, req.Difficulty)
	if err != nil {
		respondError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	logging.Info("[SESSION] created %s config=%s", session.ID, session.ConfigName)

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Parse query parameters
	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of sessions to return

	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err, http.StatusNotFound), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondError(w, statusFor(err, http.StatusNotFound), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.GetGameState(r.Context(), sessionID)
	if err != nil {
		respondError(w, statusFor(err, http.StatusNotFound), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleFlip(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		CardID         *int `json:"card_id"`
		ResolvePending bool `json:"resolve_pending,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CardID == nil {
		respondError(w, http.StatusBadRequest, "card_id is required")
		return
	}

	result, err := s.service.Flip(r.Context(), sessionID, *req.CardID, req.ResolvePending)
	if err != nil {
		respondError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	// Compact server log for observability
	if st := result.GameState; st != nil {
		logging.Info("[FLIP] session=%s card=%d outcome=%s attempts=%d matched=%d/%d",
			sessionID, result.CardID, result.Outcome, st.Attempts, st.MatchedPairs, st.PairCount)
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkFlip(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		CardIDs        []int `json:"card_ids"`
		ResolvePending bool  `json:"resolve_pending,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.service.BulkFlip(r.Context(), sessionID, req.CardIDs, req.ResolvePending)
	if err != nil {
		respondError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	// Compact server log for observability
	stop := result.StopReasonCode
	if stop == "" {
		stop = "none"
	}
	logging.Info("[BULK] session=%s exec=%d/%d stop=%s attempts=%d->%d pairsΔ=%d",
		sessionID, result.FlipsExecuted, result.RequestedFlips, stop,
		result.StartAttempts, result.EndAttempts, result.MatchedPairsDelta)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Difficulty string `json:"difficulty,omitempty"`
	}

	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.service.NewGame(r.Context(), sessionID, req.Difficulty)
	if err != nil {
		respondError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "New game dealt",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetFlipHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondError(w, statusFor(err, http.StatusNotFound), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".toml")

	cfg, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondError(w, statusFor(err, http.StatusNotFound), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
		engine.GameConfig
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = req.Name
	}

	gameConfig := req.GameConfig
	if err := s.service.SaveConfig(r.Context(), configID, &gameConfig); err != nil {
		respondError(w, statusFor(err, http.StatusInternalServerError), fmt.Sprintf("Failed to save config: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

// Unified Sessions Handler

func (s *Server) handleUnifiedSessions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var sessions []*service.SessionInfo

	if sessionIDs := query.Get("sessionIds"); sessionIDs != "" {
		// Specific sessions by IDs; unknown ones are skipped
		ids := strings.Split(sessionIDs, ",")
		sessions = make([]*service.SessionInfo, 0, len(ids))
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if session, err := s.service.GetSession(r.Context(), id); err == nil {
				sessions = append(sessions, session)
			}
		}
	} else {
		allSessions, err := s.service.ListSessions(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		sessions = allSessions

		if configName := query.Get("configName"); configName != "" {
			filtered := make([]*service.SessionInfo, 0, len(sessions))
			for _, session := range sessions {
				if session.ConfigName == configName {
					filtered = append(filtered, session)
				}
			}
			sessions = filtered
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})

	configName := ""
	if len(sessions) > 0 {
		configName = sessions[0].ConfigName
	}

	entries := make([]map[string]interface{}, 0, len(sessions))
	totalPairs, matchedPairs, won := 0, 0, 0
	for _, session := range sessions {
		entries = append(entries, map[string]interface{}{
			"session_id":    session.ID,
			"config_name":   session.ConfigName,
			"game_state":    session.GameState,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessedAt,
		})
		if session.GameState != nil {
			totalPairs += session.GameState.PairCount
			matchedPairs += session.GameState.MatchedPairs
			if session.GameState.IsWon {
				won++
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"config_name":   configName,
		"total_pairs":   totalPairs,
		"matched_pairs": matchedPairs,
		"won":           won,
		"sessions":      entries,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if s.hub == nil {
		http.Error(w, "WebSocket not available", http.StatusServiceUnavailable)
		return
	}

	// Verify session exists
	info, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, info.ID, info.GameState)
}

// handleCommand executes a command received over a WebSocket connection.
// The resulting state reaches clients through the service subscription.
func (s *Server) handleCommand(sessionID string, cmd websocket.Command) error {
	ctx := context.Background()

	switch cmd.Action {
	case websocket.ActionFlip:
		if cmd.CardID == nil {
			return fmt.Errorf("card_id is required")
		}
		_, err := s.service.Flip(ctx, sessionID, *cmd.CardID, cmd.ResolvePending)
		return err
	case websocket.ActionNewGame:
		_, err := s.service.NewGame(ctx, sessionID, cmd.Difficulty)
		return err
	default:
		return fmt.Errorf("%w '%s'", websocket.ErrUnknownAction, cmd.Action)
	}
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
