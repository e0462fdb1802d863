package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robalyx/autoban/internal/bot"
	"github.com/robalyx/autoban/internal/health"
	"github.com/robalyx/autoban/internal/setup"
	"github.com/robalyx/autoban/internal/setup/telemetry"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	boot := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(context.Background())

	botCfg := app.Config.Bot

	// Create bot instance
	discordBot, err := bot.New(botCfg.Discord.Token, app.DB, app.RuleCache, bot.Options{
		RequestTimeout:  botCfg.Timeout(),
		EventTimeout:    2 * botCfg.Timeout(),
		MaxConcurrent:   botCfg.Autoban.Concurrency(),
		ActionBucket:    botCfg.Autoban.Bucket(),
		RegisterCommand: botCfg.Discord.SyncCommands,
	}, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to create bot", zap.Error(err))
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		app.Logger.Error("Failed to start bot", zap.Error(err))
		return
	}

	// Heartbeats start once the gateway is ready so latency and guild counts are real
	var wg conc.WaitGroup
	wg.Go(func() {
		select {
		case <-discordBot.Ready():
		case <-ctx.Done():
			return
		}

		worker := health.NewWorker(
			app.DB,
			discordBot.Gateway(),
			discordBot.Platform(),
			botCfg.Health.HeartbeatInterval(),
			botCfg.Health.Retention(),
			boot,
			app.Logger,
		)
		worker.Start(ctx)
	})

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	<-ctx.Done()

	// Cleanly close down the Discord session and wait for background work
	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	discordBot.Close(closeCtx)
	wg.Wait()
}
