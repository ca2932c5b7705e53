// -----------------------------------------------------------------------
// Last Modified: Saturday, 15th November 2025 9:41:07 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/handlers"
	"github.com/ternarybob/scribo/internal/httpclient"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/services/catalog"
	"github.com/ternarybob/scribo/internal/services/events"
	"github.com/ternarybob/scribo/internal/services/publish"
	"github.com/ternarybob/scribo/internal/services/session"
	"github.com/ternarybob/scribo/internal/services/status"
	"github.com/ternarybob/scribo/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Editor services
	EventService   interfaces.EventService
	CatalogService interfaces.CatalogService
	Saver          interfaces.EntrySaver
	SessionManager *session.Manager
	StatusService  *status.Service
	PublishService interfaces.PublishService

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	EntryHandler   *handlers.EntryHandler
	ImageHandler   *handlers.ImageHandler
	WSHandler      *handlers.WebSocketHandler
	StatusHandler  *handlers.StatusHandler
	PublishHandler *handlers.PublishHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	// Start the idle session reaper for the life of the process
	app.SessionManager.Start()

	// Log initialization summary
	logger.Info().
		Bool("publish_enabled", cfg.Publish.Enabled).
		Bool("remote_saves", cfg.Remote.SaveURL != "").
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// Event service first: sessions, status, and publish all fan out through it
	a.EventService = events.NewService(a.Logger)

	// Image catalog resolves card URLs under the API base path
	a.CatalogService = catalog.NewService(a.StorageManager.ImageStorage(), "/api", a.Logger)
	a.Logger.Debug().Msg("Catalog service initialized")

	// A configured remote endpoint takes over entry persistence
	if a.Config.Remote.SaveURL != "" {
		a.Saver = httpclient.NewRemoteSaver(&a.Config.Remote, a.Logger)
		a.Logger.Debug().
			Str("save_url", a.Config.Remote.SaveURL).
			Msg("Remote saver initialized")
	} else {
		a.Saver = storage.NewLocalSaver(a.StorageManager.EntryStorage(), a.Logger)
		a.Logger.Debug().Msg("Local saver initialized")
	}

	a.SessionManager = session.NewManager(
		a.StorageManager.EntryStorage(),
		a.CatalogService,
		a.Saver,
		a.EventService,
		a.Config.Editor,
		a.Config.Autosave,
		a.Logger,
	)
	a.Logger.Debug().Msg("Session manager initialized")

	a.StatusService = status.NewService(
		a.StorageManager.EntryStorage(),
		a.SessionManager,
		a.EventService,
		a.Logger,
	)
	a.StatusService.SubscribeToSessionEvents()
	a.Logger.Debug().Msg("Status service initialized")

	a.PublishService = publish.NewService(
		a.StorageManager.EntryStorage(),
		a.EventService,
		&a.Config.Publish,
		a.Config.Storage.Filesystem.Publish,
		a.Logger,
	)
	if err := a.PublishService.Start(); err != nil {
		return fmt.Errorf("failed to start publish service: %w", err)
	}

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.StorageManager.EntryStorage())
	a.EntryHandler = handlers.NewEntryHandler(a.StorageManager.EntryStorage(), a.Saver, a.Logger)
	a.ImageHandler = handlers.NewImageHandler(a.CatalogService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.SessionManager, a.EventService, a.Config.WebSocket, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
	a.PublishHandler = handlers.NewPublishHandler(a.PublishService, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	// Open sessions flush pending work before anything below them stops
	if a.SessionManager != nil {
		a.SessionManager.Stop()
		a.Logger.Info().Msg("Session manager stopped")
	}

	// Stop publish scheduler
	if a.PublishService != nil {
		a.PublishService.Stop()
	}

	// Drop the status subscription
	if a.StatusService != nil {
		a.StatusService.Close()
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
