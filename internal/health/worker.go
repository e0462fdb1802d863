package health

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/service"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const maxConcurrentSends = 5

// Gateway reports the live state of the bot connection.
type Gateway interface {
	Latency() time.Duration
	GuildCount() int
}

// Notifier delivers embeds to channels.
type Notifier interface {
	SendEmbed(ctx context.Context, channelID string, embed discord.Embed) error
}

// Worker sends the deploy notice once and a heartbeat every interval.
// Each iteration also removes expired dedup ledger entries.
type Worker struct {
	db        database.Client
	gateway   Gateway
	notifier  Notifier
	interval  time.Duration
	retention time.Duration
	boot      time.Time
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorker creates a new health worker. boot is the process start time.
func NewWorker(
	db database.Client, gateway Gateway, notifier Notifier,
	interval, retention time.Duration, boot time.Time, logger *zap.Logger,
) *Worker {
	return &Worker{
		db:        db,
		gateway:   gateway,
		notifier:  notifier,
		interval:  interval,
		retention: retention,
		boot:      boot,
		logger:    logger.Named("health_worker"),
		now:       time.Now,
	}
}

// Start sends the deploy notice and runs heartbeats until ctx is cancelled.
// It should be called once the gateway is ready.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Health worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))

	w.AnnounceDeploy(ctx)

	utils.RunEvery(ctx, w.interval, w.logger, "health worker", func(ctx context.Context) {
		w.Beat(ctx)
	})
}

// AnnounceDeploy sends the startup notice if no other instance has sent it
// for the same boot minute. It reports whether the notice was sent.
func (w *Worker) AnnounceDeploy(ctx context.Context) bool {
	configs := w.configs(ctx)
	if len(configs) == 0 {
		return false
	}

	if !w.db.Service().Event().Claim(ctx, service.DeployKey(w.boot)) {
		w.logger.Info("Deploy notice already sent by another instance")
		return false
	}

	w.broadcast(ctx, configs, BuildDeployEmbed(w.boot, w.gateway.GuildCount(), w.now()), "deploy")

	return true
}

// Beat measures health, sends the heartbeat if this instance claims the
// period, and cleans up the ledger.
func (w *Worker) Beat(ctx context.Context) Report {
	now := w.now()
	latency := w.gateway.Latency()

	report := Report{
		Status:  Classify(latency),
		Uptime:  now.Sub(w.boot),
		Latency: latency,
		Guilds:  w.gateway.GuildCount(),
		Boot:    w.boot,
		Time:    now,
	}

	w.logger.Info("Heartbeat",
		zap.String("status", string(report.Status)),
		zap.String("uptime", FormatUptime(report.Uptime)),
		zap.Int64("latencyMs", latency.Milliseconds()),
		zap.Int("guilds", report.Guilds))

	if configs := w.configs(ctx); len(configs) > 0 {
		if w.db.Service().Event().Claim(ctx, service.HeartbeatKey(now)) {
			w.broadcast(ctx, configs, BuildHeartbeatEmbed(report), "heartbeat")
		}
	}

	if removed := w.db.Service().Event().Cleanup(ctx, w.retention); removed > 0 {
		w.logger.Info("Cleaned up expired event records", zap.Int("count", removed))
	}

	return report
}

func (w *Worker) configs(ctx context.Context) []*types.HealthConfig {
	configs, err := w.db.Model().Health().List(ctx)
	if err != nil {
		w.logger.Error("Failed to fetch health configs", zap.Error(err))
		return nil
	}

	return configs
}

// broadcast sends embed to every configured channel. Failures are logged per channel.
func (w *Worker) broadcast(ctx context.Context, configs []*types.HealthConfig, embed discord.Embed, label string) {
	p := pool.New().WithMaxGoroutines(maxConcurrentSends)

	for _, cfg := range configs {
		p.Go(func() {
			if err := w.notifier.SendEmbed(ctx, cfg.ChannelID, embed); err != nil {
				w.logger.Error("Failed to send health notice",
					zap.String("kind", label),
					zap.String("guildID", cfg.GuildID),
					zap.String("channelID", cfg.ChannelID),
					zap.Error(err))
			}
		})
	}

	p.Wait()
}
