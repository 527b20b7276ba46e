package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"wardline/internal/auth"
	"wardline/internal/config"
	"wardline/internal/database"
	"wardline/internal/dispatch"
	"wardline/internal/registry"
	"wardline/internal/router"
	dbconfig "wardline/pkg/database"
)

// Application coordinates all system components. Initialization follows
// strict dependency order: Database → Supervisor → Dispatcher → Router →
// HTTP.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	supervisor *registry.Supervisor
	dispatcher *dispatch.Dispatcher
	httpServer *http.Server
}

// NewApplication creates the application with all components initialized.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbconfig.DefaultConfig(cfg.Database.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	verifier := auth.NewVerifier(cfg.Auth.TokenSecret)
	supervisor := registry.NewSupervisor(cfg, verifier, dbManager)
	dispatcher := dispatch.New(supervisor)
	handler := router.New(supervisor, dispatcher, dbManager, cfg.Auth.InternalKey)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		supervisor: supervisor,
		dispatcher: dispatcher,
		httpServer: httpServer,
	}, nil
}

// Start brings the HTTP server up and verifies it is accepting connections
// before returning. Actors spawn lazily on first use, so nothing else needs
// a startup step.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting wardline on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		app.supervisor.Shutdown()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Wardline started successfully")
		return nil
	case <-ctx.Done():
		app.supervisor.Shutdown()
		return ctx.Err()
	}
}

// Stop shuts the application down in reverse dependency order: HTTP →
// actors → database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down wardline")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.supervisor.Shutdown()

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("Wardline shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
