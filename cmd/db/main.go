package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/autoban/cmd/db/commands"
	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/migrations"
	"github.com/robalyx/autoban/internal/redis"
	"github.com/robalyx/autoban/internal/setup/config"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Setup dependencies
	deps, cleanup, err := setupDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup dependencies: %w", err)
	}
	defer cleanup()

	var cmds []*cli.Command
	cmds = append(cmds, commands.MigrationCommands(deps)...)
	cmds = append(cmds, commands.RuleCommands(deps)...)
	cmds = append(cmds, commands.CleanupCommands(deps)...)

	app := &cli.Command{
		Name:     "db",
		Usage:    "Database management tool",
		Commands: cmds,
	}

	return app.Run(ctx, os.Args)
}

// setupDependencies initializes the database connection, migrator and rule admin.
func setupDependencies(ctx context.Context) (*commands.CLIDependencies, func(), error) {
	// Load full configuration
	cfg, _, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Create development logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	// Connect to database
	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, logger, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Rule changes invalidate the bot's rule cache when Redis is configured
	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	var ruleCache autoban.RuleCache

	cache, err := redis.NewRuleCacheFromManager(redisManager, cfg.Bot.Autoban.CacheTTL(), logger)
	if err != nil {
		logger.Warn("Rule cache invalidation disabled", zap.Error(err))
	} else if cache != nil {
		ruleCache = cache
	}

	deps := &commands.CLIDependencies{
		DB:       db,
		Migrator: migrate.NewMigrator(db.DB(), migrations.Migrations),
		Admin:    autoban.NewAdmin(db, ruleCache, logger),
		Logger:   logger,
	}

	cleanup := func() {
		redisManager.Close()
		db.Close()
		_ = logger.Sync()
	}

	return deps, cleanup, nil
}
