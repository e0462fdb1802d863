package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/bot/constants"
	"github.com/robalyx/autoban/internal/bot/utils"
	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"go.uber.org/zap"
)

var (
	// ErrUnknownSubcommand is returned for subcommands the bot does not handle.
	ErrUnknownSubcommand = errors.New("unknown subcommand")
	// ErrMissingOption is returned when a required option is absent.
	ErrMissingOption = errors.New("missing option")
)

// OptionReader reads typed slash command options.
// discord.SlashCommandInteractionData satisfies it.
type OptionReader interface {
	OptString(name string) (string, bool)
	OptInt(name string) (int, bool)
	OptBool(name string) (bool, bool)
	OptSnowflake(name string) (snowflake.ID, bool)
}

// Commands executes the administrative slash commands.
type Commands struct {
	admin  *autoban.Admin
	db     database.Client
	logger *zap.Logger
}

// NewCommands creates the command handler.
func NewCommands(admin *autoban.Admin, db database.Client, logger *zap.Logger) *Commands {
	return &Commands{
		admin:  admin,
		db:     db,
		logger: logger.Named("commands"),
	}
}

// Handle runs one subcommand for a guild and returns the response embed.
func (c *Commands) Handle(ctx context.Context, guildID, command, subcommand string, opts OptionReader) discord.Embed {
	var (
		embed discord.Embed
		err   error
	)

	switch command {
	case constants.AutobanCommandName:
		embed, err = c.handleAutoban(ctx, guildID, subcommand, opts)
	case constants.HealthCommandName:
		embed, err = c.handleHealth(ctx, guildID, subcommand, opts)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownSubcommand, command)
	}

	if err != nil {
		return c.errorEmbed(guildID, command, subcommand, err)
	}

	return embed
}

func (c *Commands) handleAutoban(
	ctx context.Context, guildID, subcommand string, opts OptionReader,
) (discord.Embed, error) {
	switch subcommand {
	case constants.AutobanAddSubcommand:
		rule := RuleFromOptions(guildID, opts)
		if err := c.admin.AddRule(ctx, rule); err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildMessageEmbed("Rule Added",
			fmt.Sprintf("Rule #%d: %s", rule.ID, utils.FormatRuleLine(rule)),
			constants.SuccessEmbedColor), nil

	case constants.AutobanRemoveSubcommand:
		ruleID, _ := opts.OptInt(constants.OptionRuleID)
		if err := c.admin.RemoveRule(ctx, guildID, int64(ruleID)); err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildMessageEmbed("Rule Removed",
			fmt.Sprintf("Rule #%d was removed.", ruleID), constants.SuccessEmbedColor), nil

	case constants.AutobanToggleSubcommand:
		ruleID, _ := opts.OptInt(constants.OptionRuleID)
		rule, err := c.admin.ToggleRule(ctx, guildID, int64(ruleID))
		if err != nil {
			return discord.Embed{}, err
		}

		state := "enabled"
		if !rule.IsEnabled {
			state = "disabled"
		}

		return utils.BuildMessageEmbed("Rule Updated",
			fmt.Sprintf("Rule #%d is now %s.", rule.ID, state), constants.SuccessEmbedColor), nil

	case constants.AutobanListSubcommand:
		rules, err := c.admin.ListRules(ctx, guildID)
		if err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildRulesEmbed(rules), nil

	case constants.AutobanLogsSubcommand:
		limit, _ := opts.OptInt(constants.OptionLimit)
		logs, err := c.admin.RecentLogs(ctx, guildID, limit)
		if err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildLogsEmbed(logs), nil

	case constants.AutobanBansSubcommand:
		limit, _ := opts.OptInt(constants.OptionLimit)
		logs, err := c.admin.RecentBanLogs(ctx, guildID, limit)
		if err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildBanLogsEmbed(logs), nil

	case constants.AutobanLogChannelSubcommand:
		channelID := ""
		if id, ok := opts.OptSnowflake(constants.OptionChannel); ok {
			channelID = id.String()
		}

		if err := c.admin.SetLogChannel(ctx, guildID, channelID); err != nil {
			return discord.Embed{}, err
		}

		if channelID == "" {
			return utils.BuildMessageEmbed("Log Channel Cleared",
				"Autoban notifications are disabled.", constants.SuccessEmbedColor), nil
		}

		return utils.BuildMessageEmbed("Log Channel Set",
			fmt.Sprintf("Autoban notifications will be posted in <#%s>.", channelID),
			constants.SuccessEmbedColor), nil
	}

	return discord.Embed{}, fmt.Errorf("%w: %s", ErrUnknownSubcommand, subcommand)
}

func (c *Commands) handleHealth(
	ctx context.Context, guildID, subcommand string, opts OptionReader,
) (discord.Embed, error) {
	switch subcommand {
	case constants.HealthSetupSubcommand:
		id, ok := opts.OptSnowflake(constants.OptionChannel)
		if !ok {
			return discord.Embed{}, fmt.Errorf("%w: %s", ErrMissingOption, constants.OptionChannel)
		}

		if err := c.db.Model().Health().Set(ctx, guildID, id.String()); err != nil {
			return discord.Embed{}, err
		}

		return utils.BuildMessageEmbed("Health Monitoring Enabled",
			fmt.Sprintf("Heartbeats will be posted in <#%s>.", id), constants.SuccessEmbedColor), nil

	case constants.HealthDisableSubcommand:
		removed, err := c.db.Model().Health().Delete(ctx, guildID)
		if err != nil {
			return discord.Embed{}, err
		}

		if !removed {
			return utils.BuildMessageEmbed("Health Monitoring",
				"Health monitoring was not enabled.", constants.DefaultEmbedColor), nil
		}

		return utils.BuildMessageEmbed("Health Monitoring Disabled", "", constants.SuccessEmbedColor), nil
	}

	return discord.Embed{}, fmt.Errorf("%w: %s", ErrUnknownSubcommand, subcommand)
}

// errorEmbed turns a failure into a user-facing message. Only unexpected
// failures are logged.
func (c *Commands) errorEmbed(guildID, command, subcommand string, err error) discord.Embed {
	switch {
	case errors.Is(err, types.ErrInvalidRule), errors.Is(err, ErrMissingOption):
		return utils.BuildMessageEmbed("Invalid Input", err.Error(), constants.ErrorEmbedColor)
	case errors.Is(err, types.ErrRuleNotFound):
		return utils.BuildMessageEmbed("Not Found", "No rule with that id exists in this server.", constants.ErrorEmbedColor)
	case errors.Is(err, ErrUnknownSubcommand):
		return utils.BuildMessageEmbed("Unknown Command", "This command is not available.", constants.ErrorEmbedColor)
	}

	c.logger.Error("Command failed",
		zap.String("guildID", guildID),
		zap.String("command", command),
		zap.String("subcommand", subcommand),
		zap.Error(err))

	return utils.BuildMessageEmbed("Error", "Internal error. Please try again later.", constants.ErrorEmbedColor)
}

// RuleFromOptions builds an unvalidated rule from the add subcommand options.
func RuleFromOptions(guildID string, opts OptionReader) *types.AutoBanRule {
	rule := &types.AutoBanRule{GuildID: guildID}

	if ruleType, ok := opts.OptString(constants.OptionRuleType); ok {
		rule.RuleType = enum.RuleType(ruleType)
	}
	if action, ok := opts.OptString(constants.OptionAction); ok {
		rule.Action = enum.RuleAction(action)
	}
	if pattern, ok := opts.OptString(constants.OptionPattern); ok {
		rule.Pattern = &pattern
	}
	if wildcard, ok := opts.OptBool(constants.OptionWildcard); ok {
		rule.UseWildcard = wildcard
	}
	if hours, ok := opts.OptInt(constants.OptionHours); ok {
		rule.ThresholdHours = &hours
	}
	if seconds, ok := opts.OptInt(constants.OptionSeconds); ok {
		rule.ThresholdSeconds = &seconds
	}
	if channel, ok := opts.OptSnowflake(constants.OptionChannel); ok {
		id := strconv.FormatUint(uint64(channel), 10)
		rule.RequiredChannelID = &id
	}

	return rule
}

// CommandDefinitions returns the global slash commands of the bot.
func CommandDefinitions() []discord.ApplicationCommandCreate {
	minHours, maxHours := 1, 336
	minSeconds, maxSeconds := 1, 3600
	minRuleID := 1
	minLimit, maxLimit := 1, constants.OptionLogsLimit
	maxPattern := autoban.MaxPatternLength
	textChannels := []discord.ChannelType{discord.ChannelTypeGuildText, discord.ChannelTypeGuildNews}

	ruleTypes := make([]discord.ApplicationCommandOptionChoiceString, 0, len(enum.RuleTypes))
	for _, ruleType := range enum.RuleTypes {
		ruleTypes = append(ruleTypes, discord.ApplicationCommandOptionChoiceString{
			Name:  ruleType.String(),
			Value: ruleType.String(),
		})
	}

	ruleIDOption := discord.ApplicationCommandOptionInt{
		Name:        constants.OptionRuleID,
		Description: "Rule id from /autoban list",
		Required:    true,
		MinValue:    &minRuleID,
	}
	limitOption := discord.ApplicationCommandOptionInt{
		Name:        constants.OptionLimit,
		Description: "Number of entries to show",
		MinValue:    &minLimit,
		MaxValue:    &maxLimit,
	}

	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.AutobanCommandName,
			Description: "Manage autoban rules",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanAddSubcommand,
					Description: "Add an autoban rule",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionString{
							Name:        constants.OptionRuleType,
							Description: "What the rule checks",
							Required:    true,
							Choices:     ruleTypes,
						},
						discord.ApplicationCommandOptionString{
							Name:        constants.OptionAction,
							Description: "Action taken on match (default ban)",
							Choices: []discord.ApplicationCommandOptionChoiceString{
								{Name: enum.RuleActionBan.String(), Value: enum.RuleActionBan.String()},
								{Name: enum.RuleActionKick.String(), Value: enum.RuleActionKick.String()},
							},
						},
						discord.ApplicationCommandOptionString{
							Name:        constants.OptionPattern,
							Description: "Username pattern for username_match",
							MaxLength:   &maxPattern,
						},
						discord.ApplicationCommandOptionBool{
							Name:        constants.OptionWildcard,
							Description: "Match the pattern anywhere in the username (characters are literal)",
						},
						discord.ApplicationCommandOptionInt{
							Name:        constants.OptionHours,
							Description: "Minimum account age in hours for account_age",
							MinValue:    &minHours,
							MaxValue:    &maxHours,
						},
						discord.ApplicationCommandOptionInt{
							Name:        constants.OptionSeconds,
							Description: "Window after joining in seconds for timing rules",
							MinValue:    &minSeconds,
							MaxValue:    &maxSeconds,
						},
						discord.ApplicationCommandOptionChannel{
							Name:         constants.OptionChannel,
							Description:  "Introduction channel for intro rules",
							ChannelTypes: textChannels,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanRemoveSubcommand,
					Description: "Remove an autoban rule",
					Options:     []discord.ApplicationCommandOption{ruleIDOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanToggleSubcommand,
					Description: "Enable or disable an autoban rule",
					Options:     []discord.ApplicationCommandOption{ruleIDOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanListSubcommand,
					Description: "List autoban rules",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanLogsSubcommand,
					Description: "Show recent autoban actions",
					Options:     []discord.ApplicationCommandOption{limitOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanBansSubcommand,
					Description: "Show recently observed bans",
					Options:     []discord.ApplicationCommandOption{limitOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.AutobanLogChannelSubcommand,
					Description: "Set or clear the autoban notification channel",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionChannel{
							Name:         constants.OptionChannel,
							Description:  "Channel for notifications, omit to clear",
							ChannelTypes: textChannels,
						},
					},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.HealthCommandName,
			Description: "Manage health monitoring",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.HealthSetupSubcommand,
					Description: "Post heartbeats to a channel",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionChannel{
							Name:         constants.OptionChannel,
							Description:  "Channel for heartbeats",
							Required:     true,
							ChannelTypes: textChannels,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        constants.HealthDisableSubcommand,
					Description: "Stop posting heartbeats",
				},
			},
		},
	}
}
