// Package application wires Alger's layers together: configuration,
// logging, the persistence gateway, the DAG engine, and the websocket
// gateway server (spec §2).
package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/domain/dag"
	"github.com/ngoclaw/alger/internal/domain/repository"
	"github.com/ngoclaw/alger/internal/infrastructure/config"
	"github.com/ngoclaw/alger/internal/infrastructure/persistence"
	"github.com/ngoclaw/alger/internal/interfaces/websocket"
)

// App is the application's dependency-injection container.
type App struct {
	config *config.Config
	logger *zap.Logger

	gateway  repository.PersistenceGateway
	registry *dag.Registry
	engine   *dag.Engine
	state    *websocket.ServerState

	wsServer   *websocket.Server
	httpServer *http.Server
}

// NewApp constructs the full container: gateway backend selected by
// database.type, builtin DAG registry, and the websocket server.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	gateway, err := app.initGateway()
	if err != nil {
		return nil, fmt.Errorf("failed to init persistence gateway: %w", err)
	}
	app.gateway = gateway

	if err := persistence.SeedDefaults(context.Background(), app.gateway, cfg.Gateway.Username); err != nil {
		return nil, fmt.Errorf("failed to seed default data: %w", err)
	}

	app.registry = dag.NewBuiltinRegistry()
	app.engine = dag.NewEngine(app.registry)

	app.state = &websocket.ServerState{
		MaxConcurrentExecutions: cfg.Execution.MaxConcurrent,
		ExecutionsHalted:        cfg.Execution.Halted,
		MaintenanceMode:         cfg.Execution.MaintenanceMode,
	}

	deps := &websocket.Deps{
		Gateway:  app.gateway,
		Engine:   app.engine,
		Registry: app.registry,
		State:    app.state,
		Logger:   logger,
		Username: cfg.Gateway.Username,
		Password: cfg.Gateway.Password,
	}
	app.wsServer = websocket.NewServer(deps, cfg.Gateway.SubProtocol)

	mux := http.NewServeMux()
	mux.Handle("/", app.wsServer)
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
		Handler: mux,
	}

	return app, nil
}

// initGateway selects the persistence backend named by database.type.
// "memory" is accepted alongside the GORM-backed drivers for tests and
// single-shot CLI usage (SPEC_FULL §4.4).
func (app *App) initGateway() (repository.PersistenceGateway, error) {
	if app.config.Database.Type == "memory" {
		app.logger.Info("Using in-memory persistence gateway")
		return persistence.NewMemoryGateway(), nil
	}

	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.logger.Info("Connected to database", zap.String("type", app.config.Database.Type))
	return persistence.NewGormGateway(db), nil
}

// Start begins serving websocket connections. It does not block.
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting gateway",
		zap.String("addr", app.httpServer.Addr),
		zap.String("subprotocol", app.config.Gateway.SubProtocol),
	)

	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("gateway server stopped with error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping gateway")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return app.httpServer.Shutdown(shutdownCtx)
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger { return app.logger }

// AppConfig returns the application config.
func (app *App) AppConfig() *config.Config { return app.config }

// Gateway returns the persistence gateway (used by the migrate command).
func (app *App) Gateway() repository.PersistenceGateway { return app.gateway }
