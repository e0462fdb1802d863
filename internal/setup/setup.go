package setup

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/migrations"
	"github.com/robalyx/autoban/internal/redis"
	"github.com/robalyx/autoban/internal/setup/config"
	"github.com/robalyx/autoban/internal/setup/telemetry"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

// ErrMigrationsPending is returned when the operator declines pending migrations.
var ErrMigrationsPending = errors.New("database migrations are pending")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Database connection pool
	RedisManager *redis.Manager     // Redis connection manager
	RuleCache    autoban.RuleCache  // Enabled rule cache, nil when Redis is not configured
	LogManager   *telemetry.Manager // Log management system
	tracing      bool               // OpenTelemetry export configured
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	// Load app configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	forwardErrors := cfg.Common.Uptrace.DSN != ""
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Common.Debug, forwardErrors)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	tracing := telemetry.ConfigureTracing(&cfg.Common.Uptrace, serviceType, logger)

	// Redis manager provides connection pools for various subsystems
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	// Initialize database with migration check
	db, err := checkAndRunMigrations(ctx, &cfg.Common.PostgreSQL, dbLogger)
	if err != nil {
		redisManager.Close()
		return nil, err
	}

	app := &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		RedisManager: redisManager,
		LogManager:   logManager,
		tracing:      tracing,
	}

	// Rule cache is optional and only used by the bot
	if serviceType == telemetry.ServiceBot && cfg.Bot.Autoban.CacheTTL() > 0 {
		ruleCache, err := redis.NewRuleCacheFromManager(redisManager, cfg.Bot.Autoban.CacheTTL(), logger)
		if err != nil {
			logger.Warn("Rule cache disabled", zap.Error(err))
		} else if ruleCache != nil {
			app.RuleCache = ruleCache
		}
	}

	return app, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(ctx context.Context) {
	// Flush spans before the loggers go away
	if s.tracing {
		if err := telemetry.ShutdownTracing(ctx); err != nil {
			s.Logger.Error("Failed to shutdown tracing", zap.Error(err))
		}
	}

	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup
	s.RedisManager.Close()
}

// checkAndRunMigrations runs database migrations if needed.
func checkAndRunMigrations(ctx context.Context, cfg *config.PostgreSQL, dbLogger *zap.Logger) (database.Client, error) {
	tempDB, err := database.NewConnection(ctx, cfg, dbLogger, false)
	if err != nil {
		return nil, err
	}

	migrator := migrate.NewMigrator(tempDB.DB(), migrations.Migrations)

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		tempDB.Close()
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}

	unapplied := ms.Unapplied()
	if len(unapplied) == 0 {
		return tempDB, nil
	}

	log.Printf("%d database migrations are pending. Would you like to run them now? (y/N)", len(unapplied))

	var response string

	_, _ = fmt.Scanln(&response)

	if response != "y" && response != "Y" {
		tempDB.Close()
		return nil, ErrMigrationsPending
	}

	tempDB.Close()

	return database.NewConnection(ctx, cfg, dbLogger, true)
}
