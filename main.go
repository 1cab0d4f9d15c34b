// Command memorygame starts the Memory Match Game.
//
// It supports three modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" – plays a local game in the terminal without any server
//
// Flags (each with an environment fallback) control host/port, config and
// session directories, log level, the statsviz dashboard, and optional ngrok
// tunneling for easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/idanshlomo1/memorygame-app/api"
	"github.com/idanshlomo1/memorygame-app/game/config"
	"github.com/idanshlomo1/memorygame-app/game/engine"
	"github.com/idanshlomo1/memorygame-app/game/service"
	"github.com/idanshlomo1/memorygame-app/game/session"
	"github.com/idanshlomo1/memorygame-app/logging"
	"github.com/idanshlomo1/memorygame-app/metrics"
	"github.com/idanshlomo1/memorygame-app/transport/mcp"
	"github.com/idanshlomo1/memorygame-app/transport/terminal"
	"github.com/idanshlomo1/memorygame-app/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Match Game Server"
)

const (
	sessionMaxAge       = 24 * time.Hour
	sessionCleanupEvery = 1 * time.Hour
	filesystemSyncEvery = 5 * time.Second
)

// options holds the resolved command-line settings
type options struct {
	host        string
	port        int
	configDir   string
	sessionsDir string
	logLevel    string
	statsviz    bool
	ngrok       bool
	ngrokAuth   string
	ngrokDomain string
}

func (o options) addr() string {
	return fmt.Sprintf("%s:%d", o.host, o.port)
}

// services bundles everything the run modes share
type services struct {
	game        service.GameService
	sessions    *session.Manager
	persistence *session.FilePersistence
	configs     *config.Manager
}

func main() {
	loadDotEnv()

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		logging.Fatal("%v", err)
	}
}

// loadDotEnv loads .env when present; a missing file is not an error
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Error loading .env file: %v", err)
		}
		return
	}
	logging.Info("Loaded environment variables from .env file")
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "memorygame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing game configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "sessions-dir",
				Value:   "sessions",
				Usage:   "Directory where sessions are persisted",
				Sources: cli.EnvVars("SESSIONS_DIR"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging (same as --log-level debug)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level: debug, info, warn, error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "statsviz",
				Usage:   "Serve the runtime dashboard at " + metrics.DashboardPath,
				Sources: cli.EnvVars("STATSVIZ_ENABLED"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			opts := optionsFrom(cmd)
			logging.Init("memorygame", opts.logLevel)
			return ctx, nil
		},
		Action: serverAction,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action:  serverAction,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts := optionsFrom(cmd)
					svc, err := initializeServices(opts)
					if err != nil {
						return err
					}
					return runStdioMCPWithInternalServer(ctx, opts, svc)
				},
			},
			{
				Name:  "play",
				Usage: "Play a local game in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Config to play (defaults to the default config)",
					},
					&cli.StringFlag{
						Name:  "difficulty",
						Usage: "Difficulty to deal",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTerminal(ctx, optionsFrom(cmd), cmd.String("config"), cmd.String("difficulty"))
				},
			},
		},
	}
}

// optionsFrom reads the resolved flag values
func optionsFrom(cmd *cli.Command) options {
	opts := options{
		host:        cmd.String("host"),
		port:        int(cmd.Int("port")),
		configDir:   cmd.String("config-dir"),
		sessionsDir: cmd.String("sessions-dir"),
		logLevel:    cmd.String("log-level"),
		statsviz:    cmd.Bool("statsviz"),
		ngrok:       cmd.Bool("ngrok"),
		ngrokAuth:   cmd.String("ngrok-auth"),
		ngrokDomain: cmd.String("ngrok-domain"),
	}
	if cmd.Bool("debug") {
		opts.logLevel = "debug"
	}
	return opts
}

func serverAction(ctx context.Context, cmd *cli.Command) error {
	opts := optionsFrom(cmd)
	logging.Info("Starting %s v%s", AppName, Version)

	svc, err := initializeServices(opts)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, opts, svc)
}

// initializeServices wires the config and session managers into the game service
func initializeServices(opts options) (*services, error) {
	configManager, err := config.NewManager(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(opts.sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)

	// The service installs the resolve listener, so create it before
	// restoring sessions that may have a mismatch pending
	gameService := service.NewGameService(sessionManager, configManager)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logging.Warn("Failed to load persisted sessions: %v", err)
	}

	return &services{
		game:        gameService,
		sessions:    sessionManager,
		persistence: persistence,
		configs:     configManager,
	}, nil
}

// newRouter combines the API, the /mcp endpoint and optionally statsviz
func newRouter(opts options, apiServer http.Handler, mcpClient *mcp.Client) (*http.ServeMux, error) {
	router := http.NewServeMux()
	router.Handle("/", apiServer)
	router.Handle("/mcp", mcpClient.HTTPHandler())

	if opts.statsviz {
		if err := metrics.Register(router); err != nil {
			return nil, err
		}
	}
	return router, nil
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, opts options, svc *services) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	apiServer := api.NewServer(svc.game, hub)
	defer apiServer.Close()

	addr := opts.addr()
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	router, err := newRouter(opts, apiServer, mcpClient)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svc.sessions, sessionCleanupEvery)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, svc.sessions, svc.persistence, filesystemSyncEvery)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening on %s", addr)
		logging.Info("REST API: http://%s/api", addr)
		logging.Info("WebSocket: ws://%s/ws?session=<session_id>", addr)
		logging.Info("MCP endpoint: http://%s/mcp", addr)
		if opts.statsviz {
			logging.Info("Runtime dashboard: http://%s%s", addr, metrics.DashboardPath)
		}

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if opts.ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, opts, router)
		}()
	}

	select {
	case <-ctx.Done():
		logging.Info("Shutting down...")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP server shutdown error: %v", err)
	}

	wg.Wait()

	if err := svc.sessions.SaveAllSessions(); err != nil {
		logging.Error("Failed to save sessions: %v", err)
	}
	logging.Info("Server stopped")
	return nil
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx ends
func runNgrokTunnel(ctx context.Context, opts options, handler http.Handler) {
	if opts.ngrokAuth == "" {
		logging.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logging.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.ngrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.ngrokDomain))
		logging.Info("Using custom ngrok domain: %s", opts.ngrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.ngrokAuth))
	if err != nil {
		logging.Error("Failed to start ngrok tunnel: %v", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logging.Error("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	logging.Info("🚀 Ngrok tunnel established: %s", ngrokURL)
	logging.Info("  REST API (ngrok): %s/api", ngrokURL)
	logging.Info("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	logging.Info("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logging.Error("Ngrok server error: %v", err)
	}
	logging.Info("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been
// accessed within sessionMaxAge
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logging.Info("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine periodically drops sessions whose files were deleted
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, every time.Duration) {
	if persistence == nil {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence); pruned > 0 {
				logging.Info("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

// syncWithFilesystem removes in-memory sessions whose file no longer exists
func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logging.Debug("Pruned session %s from memory (file deleted)", sess.ID)
		}
	}
	return pruned
}

// externalAPIAvailable reports whether a game server already answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalAPI serves the REST API on a random loopback port and
// returns its base URL and a stop function
func startInternalAPI(svc *services) (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to get available port: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	apiServer := api.NewServer(svc.game, hub)
	httpServer := &http.Server{Handler: apiServer}

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Internal HTTP server error: %v", err)
		}
	}()

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
		apiServer.Close()
		hub.Stop()
	}
	return "http://" + listener.Addr().String(), stop, nil
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an external API at the configured address when one answers;
// otherwise it starts an internal HTTP API on a random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, opts options, svc *services) error {
	baseURL := fmt.Sprintf("http://%s", opts.addr())
	logging.Info("Checking for external API server at %s...", baseURL)

	if externalAPIAvailable(baseURL) {
		logging.Info("External API server found at %s, using it for MCP", baseURL)
	} else {
		logging.Info("No external API server found, starting internal HTTP server")
		internalURL, stop, err := startInternalAPI(svc)
		if err != nil {
			return err
		}
		defer stop()
		baseURL = internalURL
		logging.Info("Internal HTTP server for MCP stdio on %s", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logging.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return svc.sessions.SaveAllSessions()
}

// newTerminalEngine builds an engine for the named config and difficulty
func newTerminalEngine(configs *config.Manager, configName, difficulty string) (*engine.GameEngine, error) {
	cfg := configs.GetDefault()
	if configName != "" {
		loaded, err := configs.LoadConfig(configName)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	d, err := cfg.ResolveDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(cfg, engine.WithDifficulty(d))
}

// runTerminal plays a local game on stdin/stdout
func runTerminal(ctx context.Context, opts options, configName, difficulty string) error {
	configManager, err := config.NewManager(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}

	eng, err := newTerminalEngine(configManager, configName, difficulty)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = terminal.New(eng, os.Stdout).Run(ctx, os.Stdin)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
