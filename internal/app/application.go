package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"roomlink/internal/api"
	"roomlink/internal/config"
	"roomlink/internal/database"
	"roomlink/internal/gateway"
	"roomlink/internal/metrics"
	"roomlink/internal/presence"
	"roomlink/internal/relay"
	"roomlink/internal/token"
	"roomlink/internal/websocket"
	pkgdatabase "roomlink/pkg/database"
	"roomlink/pkg/middleware"
)

// Application coordinates all system components
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	journal    *database.Manager
	registry   *presence.Registry
	relay      *relay.Relay
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Journal → Metrics → Registry → Tokens → Gateway → Relay → WebSocket → API → HTTP
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	// STEP 1: Presence journal (foundation layer)
	journal, err := database.NewManager(&pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}, logger.With("component", "journal"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize presence journal: %w", err)
	}

	// STEP 2: Metrics collector observes the registry
	collector := metrics.NewCollector()

	// STEP 3: Presence registry
	registryOpts := []presence.Option{
		presence.WithLogger(logger.With("component", "presence")),
		presence.WithObserver(collector),
	}
	if cfg.Presence.StrictDisplayNames {
		registryOpts = append(registryOpts, presence.WithStrictDisplayNames())
	}
	registry := presence.NewRegistry(registryOpts...)

	// STEP 4: Room tokens
	issuer, err := token.NewIssuer(cfg.Token.Secret, cfg.Token.TTL)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	// STEP 5: Profile gateway is optional
	var profiles api.Profiles
	if cfg.Gateway.URL != "" {
		client, err := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Timeout)
		if err != nil {
			_ = journal.Close()
			return nil, fmt.Errorf("failed to initialize profile gateway: %w", err)
		}
		profiles = client
	} else {
		logger.Warn("profile gateway URL not set, profile endpoints disabled")
	}

	// STEP 6: Chat relay
	chatRelay := relay.NewRelay(registry,
		relay.NewRateLimiter(cfg.RateLimit.Messages, cfg.RateLimit.Window),
		logger.With("component", "relay"))

	// STEP 7: WebSocket accept layer
	wsHandler := websocket.NewHandler(registry, issuer, chatRelay, journal, websocket.Options{
		PingInterval:   cfg.WebSocket.PingInterval,
		ReadTimeout:    cfg.WebSocket.ReadTimeout,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		BufferSize:     cfg.WebSocket.BufferSize,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
	}, logger.With("component", "websocket"))

	// STEP 8: Administrative API
	apiServer := api.NewServer(api.Dependencies{
		Registry:       registry,
		Journal:        journal,
		Profiles:       profiles,
		Tokens:         issuer,
		Metrics:        collector.Handler(),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger.With("component", "api"),
	})

	// STEP 9: HTTP server with both API and WebSocket endpoints, one span per request
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/chat/{room_id}", wsHandler.HandleChat)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      middleware.Tracing("roomlink", nil)(mux),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		journal:    journal,
		registry:   registry,
		relay:      chatRelay,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start binds the listener and serves in the background. It returns once
// the address is bound, so Addr is valid afterwards.
func (app *Application) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return errors.New("application already started")
	}

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	runCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	app.done = make(chan struct{})

	// Idle rate limiter state is swept once per window
	go app.relay.Run(runCtx, app.config.RateLimit.Window)

	go func() {
		defer close(app.done)
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("HTTP server error", "error", err)
		}
	}()

	app.logger.Info("roomlink started", "addr", listener.Addr().String())
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → chat sockets → relay → journal
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down roomlink")
	var errs []error

	// STEP 1: Stop accepting new requests
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	// STEP 2: Hijacked chat sockets are not covered by Shutdown; close them so
	// every member runs the leave protocol while the journal is still open
	if err := app.wsHandler.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("websocket shutdown: %w", err))
	}

	app.mu.Lock()
	if app.cancel != nil {
		app.cancel()
	}
	done := app.done
	app.mu.Unlock()
	if done != nil {
		<-done
	}

	// STEP 3: Close the journal last
	if err := app.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("journal close: %w", err))
	}

	app.logger.Info("roomlink shutdown complete")
	return errors.Join(errs...)
}

// Addr returns the bound listen address, or the configured one before Start
func (app *Application) Addr() string {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// Registry exposes the presence registry for in-process inspection
func (app *Application) Registry() *presence.Registry {
	return app.registry
}
