package autoban

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/robalyx/autoban/pkg/utils"
)

const (
	colorBanned = 0xE74C3C
	colorKicked = 0xE67E22
)

// BuildNotification builds the log channel embed for an executed action.
func BuildNotification(
	member *Member, rule *types.AutoBanRule, reason string, taken enum.ActionTaken, now time.Time,
) discord.Embed {
	title := "Autoban: Member Banned"
	color := colorBanned

	if taken == enum.ActionTakenKicked {
		title = "Autoban: Member Kicked"
		color = colorKicked
	}

	builder := discord.NewEmbedBuilder().
		SetTitle(title).
		SetColor(color).
		AddField("User", fmt.Sprintf("%s (`%s`)", member.Name(), utils.NormalizeString(member.Username)), true).
		AddField("User ID", fmt.Sprintf("`%s`", member.UserID), true).
		AddField("Action", taken.String(), true).
		AddField("Rule", fmt.Sprintf("#%d (%s)", rule.ID, rule.RuleType), true).
		AddField("Reason", utils.TruncateString(reason, 1024), false).
		SetTimestamp(now)

	if !member.CreatedAt.IsZero() {
		builder.AddField("Account Created", utils.DiscordTimestamp(member.CreatedAt, "F"), true)
	}

	if member.JoinedAt != nil {
		builder.AddField("Time Since Join", utils.FormatDuration(now.Sub(*member.JoinedAt)), true)
	}

	if member.AvatarURL != "" {
		builder.SetThumbnail(member.AvatarURL)
	}

	return builder.Build()
}
