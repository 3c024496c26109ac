// Package internal contains core application wiring.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"visitorstats/internal/config"
	"visitorstats/internal/database"
	"visitorstats/internal/jobs"
	"visitorstats/internal/logging"
	"visitorstats/internal/pkg/geo"
	"visitorstats/internal/settings"
	"visitorstats/internal/visits"
)

// Application holds every long-lived component, constructed once at startup
// and passed explicitly to the handlers.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Recorder  *visits.Recorder
	Jobs      *jobs.Jobs

	server *fiber.App
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := logging.NewLogger(cfg)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	geoChain, err := buildGeoChain(cfg, logger)
	if err != nil {
		return nil, err
	}

	recorder := visits.NewRecorder(logger, geoChain, cfg.PrivateKey, cfg.UniqueWindowHours)

	jobsManager, err := jobs.NewJobs(dbManager, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app := &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Recorder:  recorder,
		Jobs:      jobsManager,
	}

	app.server = fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: cfg.IsProduction(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	app.MountRoutes(app.server)

	return app, nil
}

// buildGeoChain assembles the geolocation fallback chain: an optional local
// GeoLite2 database first, then the HTTP providers.
func buildGeoChain(cfg *config.Config, logger *slog.Logger) (*geo.Chain, error) {
	timeout := cfg.GetGeoProviderTimeout()
	httpClient := &http.Client{Timeout: timeout}

	var providers []geo.Provider

	maxmind, err := geo.OpenMaxMind(cfg.GeoDBPath)
	if err != nil {
		// A broken database file disables the provider, it does not stop boot.
		logger.Warn("GeoLite2 database unavailable", slog.Any("error", err))
	} else if maxmind != nil {
		providers = append(providers, maxmind)
	}

	providers = append(providers,
		geo.NewIPAPI(httpClient),
		geo.NewIPInfo(httpClient),
		geo.NewIPAPITLS(httpClient),
	)

	return geo.NewChain(logger, timeout, providers...), nil
}

// Setup migrates the database and seeds default settings.
func (a *Application) Setup() error {
	if err := a.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := settings.SetupDefaultSettings(a.DBManager.GetConnection()); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}
	return nil
}

// Server exposes the fiber app, used by tests.
func (a *Application) Server() *fiber.App {
	return a.server
}

// Start runs background jobs and serves HTTP. Blocks until the listener
// stops.
func (a *Application) Start() error {
	a.Jobs.Start()
	addr := fmt.Sprintf(":%s", a.Config.AppPort)
	a.Logger.Info("Starting server", slog.String("addr", addr))
	return a.server.Listen(addr)
}

// Shutdown stops the HTTP server and background jobs, then checkpoints and
// closes the database.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	a.Jobs.Stop()

	if err := a.DBManager.CheckpointWAL("FULL"); err != nil {
		a.Logger.Warn("Failed to checkpoint WAL on shutdown", slog.Any("error", err))
	}

	return nil
}
