// Package discord adapts the disgo client to the autoban engine.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/autoban/internal/autoban"
	"go.uber.org/zap"
)

var ErrInvalidID = errors.New("invalid snowflake id")

// API is the subset of the disgo REST client the platform adapter uses.
type API interface {
	AddBan(guildID, userID snowflake.ID, deleteMessageDuration time.Duration, opts ...rest.RequestOpt) error
	RemoveMember(guildID, userID snowflake.ID, opts ...rest.RequestOpt) error
	GetBan(guildID, userID snowflake.ID, opts ...rest.RequestOpt) (*discord.Ban, error)
	CreateMessage(channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt) (*discord.Message, error)
}

// ChannelLookup returns a cached guild channel.
type ChannelLookup func(channelID snowflake.ID) (discord.GuildChannel, bool)

// Platform implements autoban.Platform over the Discord REST API.
type Platform struct {
	api      API
	channels ChannelLookup
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPlatform creates a new platform adapter. channels may be nil to skip cache checks.
func NewPlatform(api API, channels ChannelLookup, timeout time.Duration, logger *zap.Logger) *Platform {
	return &Platform{
		api:      api,
		channels: channels,
		timeout:  timeout,
		logger:   logger.Named("discord_platform"),
	}
}

// Ban bans the user without deleting message history.
func (p *Platform) Ban(ctx context.Context, guildID, userID, reason string) error {
	guild, user, err := parsePair(guildID, userID)
	if err != nil {
		return err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.api.AddBan(guild, user, 0, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classifyError("ban member", err)
	}

	return nil
}

// Kick removes the member from the guild.
func (p *Platform) Kick(ctx context.Context, guildID, userID, reason string) error {
	guild, user, err := parsePair(guildID, userID)
	if err != nil {
		return err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if err := p.api.RemoveMember(guild, user, rest.WithCtx(ctx), rest.WithReason(reason)); err != nil {
		return classifyError("kick member", err)
	}

	return nil
}

// FetchBanReason returns the audit reason of a ban, or nil if none was given.
func (p *Platform) FetchBanReason(ctx context.Context, guildID, userID string) (*string, error) {
	guild, user, err := parsePair(guildID, userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	ban, err := p.api.GetBan(guild, user, rest.WithCtx(ctx))
	if err != nil {
		return nil, classifyError("fetch ban", err)
	}

	return ban.Reason, nil
}

// SendEmbed posts an embed to a guild text channel.
func (p *Platform) SendEmbed(ctx context.Context, channelID string, embed discord.Embed) error {
	channel, err := snowflake.Parse(channelID)
	if err != nil {
		return fmt.Errorf("%w: channel %q", ErrInvalidID, channelID)
	}

	if p.channels != nil {
		cached, ok := p.channels(channel)
		if !ok {
			return fmt.Errorf("%w: %s", autoban.ErrChannelNotFound, channelID)
		}

		if _, ok := cached.(discord.GuildMessageChannel); !ok {
			return fmt.Errorf("%w: %s (type %d)", autoban.ErrWrongChannelKind, channelID, cached.Type())
		}
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	message := discord.NewMessageCreateBuilder().SetEmbeds(embed).Build()
	if _, err := p.api.CreateMessage(channel, message, rest.WithCtx(ctx)); err != nil {
		return classifyError("send message", err)
	}

	return nil
}

func (p *Platform) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// classifyError maps disgo REST failures to the engine's error kinds.
func classifyError(op string, err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", autoban.ErrPermissionDenied, op, err)
		case http.StatusNotFound:
			if op == "send message" {
				return fmt.Errorf("%w: %s: %w", autoban.ErrChannelNotFound, op, err)
			}
		}
	}

	return fmt.Errorf("%w: %s: %w", autoban.ErrTransport, op, err)
}

func parsePair(guildID, userID string) (snowflake.ID, snowflake.ID, error) {
	guild, err := snowflake.Parse(guildID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: guild %q", ErrInvalidID, guildID)
	}

	user, err := snowflake.Parse(userID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: user %q", ErrInvalidID, userID)
	}

	return guild, user, nil
}
