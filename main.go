package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Zutavern/apo-sub001/pkg/auth"
	"github.com/Zutavern/apo-sub001/pkg/config"
	"github.com/Zutavern/apo-sub001/pkg/database"
	"github.com/Zutavern/apo-sub001/pkg/handlers"
	"github.com/Zutavern/apo-sub001/pkg/logging"
	"github.com/Zutavern/apo-sub001/pkg/middleware"
	"github.com/Zutavern/apo-sub001/pkg/repositories"
	"github.com/Zutavern/apo-sub001/pkg/scheduler"
	"github.com/Zutavern/apo-sub001/pkg/services"
	"github.com/Zutavern/apo-sub001/pkg/weather"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// A missing .env is fine; containers configure via real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("oauth_provider", cfg.OAuth.ProviderName))

	auth.InitSessionStore(cfg.SessionSecret, cfg.Env != "local")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrateDatabase(cfg, logger); err != nil {
		logger.Fatal("Migrations failed", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	locationRepo := repositories.NewLocationRepository(db)
	observationRepo := repositories.NewObservationRepository(db)
	forecastRepo := repositories.NewForecastRepository(db)
	domainRepo := repositories.NewDomainForecastRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)

	weatherClient := weather.NewClient(weather.Config{
		WeatherBaseURL:    cfg.Provider.WeatherBaseURL,
		AirQualityBaseURL: cfg.Provider.AirQualityBaseURL,
		Timeout:           cfg.Provider.Timeout,
		MaxRetries:        cfg.Provider.MaxRetries,
	}, nil, logger)

	refreshService := services.NewRefreshService(weatherClient, locationRepo, observationRepo, forecastRepo, domainRepo, logger)
	oauthService := services.NewOAuthService(cfg, tokenRepo, logger)
	assetService := services.NewAssetService(cfg, nil, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewWeatherHandler(cfg, refreshService, locationRepo, observationRepo, forecastRepo, domainRepo, logger).RegisterRoutes(mux)
	handlers.NewOAuthHandler(cfg, oauthService, logger).RegisterRoutes(mux)
	handlers.NewLocationHandler(locationRepo, logger).RegisterRoutes(mux)
	handlers.NewAssetHandler(assetService, logger).RegisterRoutes(mux)

	sched := scheduler.New(cfg.Scheduler, refreshService, locationRepo, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("Scheduler failed to start", zap.Error(err))
	}
	defer sched.Stop()

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting portal-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// migrateDatabase applies pending schema migrations over a short-lived
// database/sql connection, separate from the pgx pool the app uses.
func migrateDatabase(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return database.RunMigrations(db, cfg.MigrationsPath, logger)
}
