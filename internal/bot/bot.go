package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/bot/constants"
	"github.com/robalyx/autoban/internal/bot/utils"
	"github.com/robalyx/autoban/internal/database"
	platform "github.com/robalyx/autoban/internal/discord"
	"github.com/robalyx/autoban/internal/health"
	"go.uber.org/zap"
)

// Options tunes the bot runtime.
type Options struct {
	RequestTimeout  time.Duration // per platform request
	EventTimeout    time.Duration // per dispatched event
	MaxConcurrent   int64         // dispatches running at once
	ActionBucket    time.Duration // action dedup window
	RegisterCommand bool          // sync global slash commands on start
}

// Bot owns the Discord client and routes gateway events to the autoban engine.
type Bot struct {
	client   bot.Client
	handler  *EventHandler
	commands *Commands
	platform *platform.Platform
	ready    chan struct{}
	once     sync.Once
	opts     Options
	logger   *zap.Logger
}

// New creates the Discord client and the engine components bound to it.
func New(
	token string,
	db database.Client,
	ruleCache autoban.RuleCache,
	opts Options,
	logger *zap.Logger,
) (*Bot, error) {
	b := &Bot{
		ready:  make(chan struct{}),
		opts:   opts,
		logger: logger.Named("bot"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildModeration,
				gateway.IntentGuildMessages,
				gateway.IntentGuildVoiceStates,
			),
		),
		bot.WithCacheConfigOpts(
			cacheFlags(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	b.platform = platform.NewPlatform(client.Rest(), client.Caches().Channel, opts.RequestTimeout, logger)

	sessions := autoban.NewSessions(db, ruleCache)
	executor := autoban.NewExecutor(sessions, b.platform, logger)
	dispatcher := autoban.NewDispatcher(sessions, b.platform, executor, opts.ActionBucket, logger)

	b.handler = NewEventHandler(dispatcher, opts.MaxConcurrent, opts.EventTimeout, logger)
	b.commands = NewCommands(autoban.NewAdmin(db, ruleCache, logger), db, logger)

	client.AddEventListeners(&events.ListenerAdapter{
		OnGuildMemberJoin:               b.handler.OnGuildMemberJoin,
		OnGuildMemberUpdate:             b.handler.OnGuildMemberUpdate,
		OnGuildVoiceStateUpdate:         b.handler.OnGuildVoiceStateUpdate,
		OnGuildMessageCreate:            b.handler.OnGuildMessageCreate,
		OnGuildBan:                      b.handler.OnGuildBan,
		OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		OnReady:                         b.onReady,
	})

	return b, nil
}

// Start registers global commands with Discord and opens the gateway connection.
func (b *Bot) Start(ctx context.Context) error {
	if b.opts.RegisterCommand {
		b.logger.Info("Registering commands")

		_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), CommandDefinitions())
		if err != nil {
			return fmt.Errorf("failed to register commands: %w", err)
		}
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Ready is closed once the gateway has delivered the ready event.
func (b *Bot) Ready() <-chan struct{} {
	return b.ready
}

// Platform returns the platform adapter bound to this client.
func (b *Bot) Platform() *platform.Platform {
	return b.platform
}

// Gateway returns connection stats for health reporting.
func (b *Bot) Gateway() health.Gateway {
	return gatewayStats{client: b.client}
}

// Close shuts down the gateway and waits for running dispatches.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
	b.handler.Wait()
}

func (b *Bot) onReady(event *events.Ready) {
	b.logger.Info("Bot is ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))

	b.once.Do(func() { close(b.ready) })
}

// handleApplicationCommandInteraction defers the response, checks that the
// caller administers the guild, then runs the command in a goroutine.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		data := event.SlashCommandInteractionData()
		subcommand := ""
		if data.SubCommandName != nil {
			subcommand = *data.SubCommandName
		}

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respond(event, utils.BuildMessageEmbed("Error",
					"Internal error. Please report this to an administrator.", constants.ErrorEmbedColor))
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.String("subcommand", subcommand),
				zap.Duration("duration", time.Since(start)))
		}()

		guildID := event.GuildID()
		member := event.Member()
		if guildID == nil || member == nil {
			b.respond(event, utils.BuildMessageEmbed("Unavailable",
				"This command can only be used in a server.", constants.ErrorEmbedColor))
			return
		}

		if !member.Permissions.Has(discord.PermissionAdministrator) {
			b.respond(event, utils.BuildMessageEmbed("Missing Permissions",
				"You need the Administrator permission to use this command.", constants.ErrorEmbedColor))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.opts.EventTimeout)
		defer cancel()

		embed := b.commands.Handle(ctx, guildID.String(), data.CommandName(), subcommand, data)
		b.respond(event, embed)
	}()
}

func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, embed discord.Embed) {
	update := discord.NewMessageUpdateBuilder().SetEmbeds(embed).Build()

	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

func cacheFlags() cache.ConfigOpt {
	return cache.WithCaches(
		cache.FlagGuilds,
		cache.FlagChannels,
		cache.FlagMembers,
		cache.FlagVoiceStates,
	)
}
