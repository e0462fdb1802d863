package autoban

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
)

var (
	// ErrPermissionDenied means the bot lacks the rights for the operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransport means the platform request failed for any other reason.
	ErrTransport = errors.New("platform request failed")
	// ErrChannelNotFound means the destination channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrWrongChannelKind means the destination channel cannot receive messages.
	ErrWrongChannelKind = errors.New("channel cannot receive messages")
)

// Platform is the chat platform capability used by the engine.
// Implementations classify failures with the errors above.
type Platform interface {
	// Ban bans the user from the guild with an audit reason.
	Ban(ctx context.Context, guildID, userID, reason string) error
	// Kick removes the user from the guild with an audit reason.
	Kick(ctx context.Context, guildID, userID, reason string) error
	// FetchBanReason returns the audit reason of an existing ban, nil if none was given.
	FetchBanReason(ctx context.Context, guildID, userID string) (*string, error)
	// SendEmbed posts an embed to a channel.
	SendEmbed(ctx context.Context, channelID string, embed discord.Embed) error
}
