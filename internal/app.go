package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"

	"github.com/JoeBashe/stl-scraper/internal/adapters/airbnb"
	"github.com/JoeBashe/stl-scraper/internal/adapters/csvfile"
	elastic_adapter "github.com/JoeBashe/stl-scraper/internal/adapters/elastic"
	logger_adapter "github.com/JoeBashe/stl-scraper/internal/adapters/logger"
	postgres_adapter "github.com/JoeBashe/stl-scraper/internal/adapters/postgres"
	rabbitmq_adapter "github.com/JoeBashe/stl-scraper/internal/adapters/rabbitmq"
	"github.com/JoeBashe/stl-scraper/internal/adapters/rest"
	"github.com/JoeBashe/stl-scraper/internal/configs"
	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
	"github.com/JoeBashe/stl-scraper/internal/core/usecase"
	"github.com/JoeBashe/stl-scraper/internal/geo"
)

// Options are the per-invocation overrides the CLI layers on top of the
// environment configuration.
type Options struct {
	// Storage overrides STORAGE_TYPE when non-empty.
	Storage string
	// CSVPath is the flat-file destination for csv storage. The search
	// command derives it from the query; defaults to "stl.csv".
	CSVPath string
}

// App is the composition root: every adapter and use case is created and
// wired here, once, and handed to whichever entrypoint (CLI or REST) runs.
type App struct {
	config       *configs.AppConfig
	logger       port.LoggerPort
	fluentClient *fluent.Fluent

	persistence port.PersistencePort
	events      port.EventsPort
	pgStore     *postgres_adapter.Store
	pricing     port.PricingPort
	pdp         port.PdpPort

	searchUC  *usecase.SearchScrapeUseCase
	refreshUC *usecase.CalendarRefreshUseCase
}

func NewApp(opts Options) (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}
	if opts.Storage != "" {
		appConfig.StorageType = opts.Storage
	}

	// --- Loggers ---
	var activeLoggers []port.LoggerPort

	stdoutLogger := logger_adapter.NewSlogAdapter(logger_adapter.SlogConfig{
		Level:    parseLogLevel(appConfig.StdoutLogger.Level),
		UseColor: true,
	})
	activeLoggers = append(activeLoggers, stdoutLogger)

	var fluentClient *fluent.Fluent
	if appConfig.FluentBit.Enabled {
		fluentClient, err = logger_adapter.NewFluentClient(appConfig.FluentBit.Host, appConfig.FluentBit.Port, appConfig.AppName)
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit client", err, nil)
			return nil, fmt.Errorf("failed to create fluentbit client: %w", err)
		}
		fluentAdapter, err := logger_adapter.NewFluentLoggerAdapter(fluentClient, parseLogLevel(appConfig.FluentBit.Level))
		if err != nil {
			stdoutLogger.Error("Failed to create fluentbit adapter", err, nil)
			_ = fluentClient.Close()
			return nil, err
		}
		activeLoggers = append(activeLoggers, fluentAdapter)
	}

	multiLogger, err := logger_adapter.NewMultiloggerAdapter(activeLoggers...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-logger: %w", err)
	}
	baseLogger := multiLogger.WithFields(port.Fields{"service_name": appConfig.AppName})

	appLogger := baseLogger.WithFields(port.Fields{"component": "app"})
	appLogger.Info("Logger system initialized", port.Fields{
		"active_loggers": len(activeLoggers), "fluent_enabled": appConfig.FluentBit.Enabled,
	})

	app := &App{
		config:       appConfig,
		logger:       baseLogger,
		fluentClient: fluentClient,
	}

	// --- Storage ---
	switch appConfig.StorageType {
	case configs.StorageCSV:
		path := opts.CSVPath
		if path == "" {
			path = "stl.csv"
		}
		app.persistence = csvfile.NewWriter(path)
		appLogger.Info("CSV storage initialized", port.Fields{"path": path})
	case configs.StorageElastic:
		store, err := elastic_adapter.NewStore(context.Background(), elastic_adapter.Config{
			Hosts:    appConfig.Elastic.Hosts,
			Username: appConfig.Elastic.Username,
			Password: appConfig.Elastic.Password,
			Index:    appConfig.Elastic.Index,
		})
		if err != nil {
			appLogger.Error("Failed to connect to Elasticsearch", err, nil)
			app.Close()
			return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
		}
		app.persistence = store
		appLogger.Info("Elasticsearch storage initialized", port.Fields{"index": appConfig.Elastic.Index})
	case configs.StoragePostgres:
		store, err := postgres_adapter.NewStore(context.Background(), appConfig.Postgres.DatabaseURL)
		if err != nil {
			appLogger.Error("Failed to connect to PostgreSQL", err, nil)
			app.Close()
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		app.persistence = store
		app.pgStore = store
		appLogger.Info("PostgreSQL storage initialized", nil)
	default:
		app.Close()
		return nil, fmt.Errorf("unknown storage type %q", appConfig.StorageType)
	}

	// --- Events (optional) ---
	if appConfig.RabbitMQ.Enabled {
		publisher, err := rabbitmq_adapter.NewListingEventsPublisher(appConfig.RabbitMQ.URL)
		if err != nil {
			appLogger.Error("Failed to connect to RabbitMQ", err, nil)
			app.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		app.events = publisher
		appLogger.Info("RabbitMQ event publisher initialized.", nil)
	}

	// --- Outgoing adapters ---
	client, err := airbnb.NewClient(airbnb.ClientConfig{
		APIKey:   appConfig.Airbnb.APIKey,
		Proxy:    appConfig.Airbnb.Proxy,
		Throttle: appConfig.Airbnb.Throttle,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	currency := appConfig.Airbnb.Currency
	explore := airbnb.NewExplore(client, currency)
	pdp := airbnb.NewPdp(client, currency)
	reviews := airbnb.NewReviews(client, currency)
	calendar := airbnb.NewCalendar(client, currency)
	pricing := airbnb.NewPricing(client, currency)
	existence, err := airbnb.NewExistenceChecker(appConfig.Airbnb.Proxy)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create existence checker: %w", err)
	}
	app.pricing = pricing
	app.pdp = pdp

	resolver := geo.NewResolver(geo.NewGeocoder())
	appLogger.Info("All outgoing adapters initialized.", nil)

	// --- Use cases ---
	app.searchUC = usecase.NewSearchScrapeUseCase(
		explore, pdp, reviews,
		app.persistence, app.events, resolver,
		appConfig.Scraper.Workers,
	)
	app.refreshUC = usecase.NewCalendarRefreshUseCase(
		calendar, pricing, existence, app.persistence,
		usecase.RefreshConfig{
			StripNights: appConfig.Scraper.StripNights,
			WarnNights:  appConfig.Scraper.WarnNights,
			Workers:     appConfig.Scraper.Workers,
		},
	)
	appLogger.Info("All use cases initialized.", nil)

	return app, nil
}

// Logger returns the base application logger.
func (a *App) Logger() port.LoggerPort {
	return a.logger
}

// Staleness returns the configured refresh window.
func (a *App) Staleness() time.Duration {
	return a.config.Scraper.StalenessWindow
}

// BaseContext attaches the application logger to a context so downstream
// code picks it up via contextkeys.
func (a *App) BaseContext(ctx context.Context) context.Context {
	return contextkeys.ContextWithLogger(ctx, a.logger)
}

// Search runs the full search pipeline for one query.
func (a *App) Search(ctx context.Context, query string, filters domain.SearchFilters) error {
	return a.searchUC.Execute(ctx, query, filters)
}

// RefreshAll refreshes every listing not updated within olderThan.
func (a *App) RefreshAll(ctx context.Context, olderThan time.Duration) error {
	if a.config.StorageType == configs.StorageCSV {
		return fmt.Errorf("csv storage does not support incremental refresh; use elasticsearch or postgres")
	}
	return a.refreshUC.ExecuteAll(ctx, olderThan)
}

// RefreshOne refreshes a single listing's calendar and pricing in storage.
func (a *App) RefreshOne(ctx context.Context, listingID string) error {
	if a.config.StorageType == configs.StorageCSV {
		return fmt.Errorf("csv storage does not support incremental refresh; use elasticsearch or postgres")
	}
	return a.refreshUC.RefreshOne(ctx, listingID)
}

// InspectCalendar fetches one listing's calendar and probed quotes without
// touching storage.
func (a *App) InspectCalendar(ctx context.Context, listingID string) (domain.BookingCalendar, map[int]*domain.PricingQuote, error) {
	return a.refreshUC.Inspect(ctx, listingID)
}

// Pricing fetches one quote for specific dates.
func (a *App) Pricing(ctx context.Context, checkin, checkout, listingID string) (*domain.PricingQuote, error) {
	return a.pricing.GetPricing(ctx, checkin, checkout, listingID)
}

// RawListing returns the unparsed detail document of a listing.
func (a *App) RawListing(ctx context.Context, listingID string) (json.RawMessage, error) {
	return a.pdp.GetRawListing(ctx, listingID)
}

// Serve runs the REST server until SIGINT/SIGTERM, then shuts down
// gracefully.
func (a *App) Serve() error {
	incremental := a.config.StorageType != configs.StorageCSV
	handlers := rest.NewScrapeHandlers(a.searchUC, a.refreshUC, a.logger, a.config.Scraper.StalenessWindow, incremental)
	server := rest.NewServer(a.config.Rest.Port, handlers, a.logger)

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("REST server starting", port.Fields{"port": a.config.Rest.Port})
		serverErrors <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case receivedSignal := <-quit:
		a.logger.Warn("Received signal, shutting down", port.Fields{"signal": receivedSignal.String()})
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rest server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		a.logger.Error("Error during server shutdown", err, nil)
		return err
	}
	a.logger.Info("REST server stopped gracefully.", nil)
	return nil
}

// Close releases every resource the app holds. Safe to call on a partially
// constructed app.
func (a *App) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Error("Error closing event publisher", err, nil)
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.fluentClient != nil {
		if err := a.fluentClient.Close(); err != nil {
			log.Printf("App: error closing fluent client: %v", err)
		}
	}
}

func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		log.Printf("Warning: unknown log level %q. Defaulting to 'info'.", levelStr)
		return slog.LevelInfo
	}
}
