package utils

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/bot/constants"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/pkg/utils"
)

// FormatRuleLine renders one rule for list views.
func FormatRuleLine(rule *types.AutoBanRule) string {
	state := "enabled"
	if !rule.IsEnabled {
		state = "disabled"
	}

	return fmt.Sprintf("%s | %s | %s", rule.Action, autoban.DescribeRule(rule), state)
}

// BuildRulesEmbed lists the rules of a guild in evaluation order.
func BuildRulesEmbed(rules []*types.AutoBanRule) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Autoban Rules").
		SetColor(constants.AutobanEmbedColor)

	if len(rules) == 0 {
		return builder.SetDescription("No autoban rules configured.").Build()
	}

	for i, rule := range rules {
		if i == constants.MaxEmbedFields {
			builder.SetFooterText(fmt.Sprintf("%d more rules not shown", len(rules)-i))
			break
		}

		builder.AddField(fmt.Sprintf("#%d %s", rule.ID, rule.RuleType), FormatRuleLine(rule), false)
	}

	return builder.Build()
}

// BuildLogsEmbed lists recent autoban actions, newest first.
func BuildLogsEmbed(logs []*types.AutoBanLog) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Autoban Logs (Last %d)", len(logs))).
		SetColor(constants.AutobanEmbedColor)

	if len(logs) == 0 {
		return builder.SetTitle("Autoban Logs").SetDescription("No autoban logs found.").Build()
	}

	lines := make([]string, 0, len(logs))
	for _, log := range logs {
		lines = append(lines, fmt.Sprintf("%s **%s** <@%s> (`%s`) rule #%d: %s",
			utils.DiscordTimestamp(log.CreatedAt, "R"),
			log.ActionTaken,
			log.UserID,
			utils.NormalizeString(log.Username),
			log.RuleID,
			utils.TruncateString(utils.NormalizeString(log.Reason), 120)))
	}

	return builder.SetDescription(utils.TruncateString(strings.Join(lines, "\n"), 4096)).Build()
}

// BuildBanLogsEmbed lists recently observed bans, newest first.
func BuildBanLogsEmbed(logs []*types.BanLog) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle("Ban Logs").
		SetColor(constants.AutobanEmbedColor)

	if len(logs) == 0 {
		return builder.SetDescription("No bans recorded.").Build()
	}

	lines := make([]string, 0, len(logs))
	for _, log := range logs {
		source := "manual"
		if log.IsAutoban {
			source = "autoban"
		}

		reason := "no reason"
		if log.Reason != nil {
			reason = utils.NormalizeString(*log.Reason)
		}

		lines = append(lines, fmt.Sprintf("%s <@%s> (`%s`) %s: %s",
			utils.DiscordTimestamp(log.CreatedAt, "R"),
			log.UserID,
			utils.NormalizeString(log.Username),
			source,
			utils.TruncateString(reason, 120)))
	}

	return builder.SetDescription(utils.TruncateString(strings.Join(lines, "\n"), 4096)).Build()
}

// BuildMessageEmbed builds a plain response embed.
func BuildMessageEmbed(title, description string, color int) discord.Embed {
	builder := discord.NewEmbedBuilder().SetTitle(title).SetColor(color)
	if description != "" {
		builder.SetDescription(description)
	}

	return builder.Build()
}
