package discord

import (
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/autoban/internal/autoban"
)

// MemberSnapshot converts a disgo member into the engine's member view.
func MemberSnapshot(guildID snowflake.ID, member discord.Member) *autoban.Member {
	user := member.User

	var joinedAt *time.Time
	if !member.JoinedAt.IsZero() {
		joined := member.JoinedAt
		joinedAt = &joined
	}

	roleIDs := make([]string, 0, len(member.RoleIDs))
	for _, roleID := range member.RoleIDs {
		roleIDs = append(roleIDs, roleID.String())
	}

	return &autoban.Member{
		GuildID:     guildID.String(),
		UserID:      user.ID.String(),
		Username:    user.Username,
		DisplayName: member.EffectiveName(),
		AvatarURL:   member.EffectiveAvatarURL(),
		HasAvatar:   user.Avatar != nil || member.Avatar != nil,
		Bot:         user.Bot,
		CreatedAt:   user.CreatedAt(),
		JoinedAt:    joinedAt,
		RoleIDs:     roleIDs,
	}
}

// MessageAuthorSnapshot converts the author of a guild message. Message members
// carry no user object, so the author fills it in.
func MessageAuthorSnapshot(guildID snowflake.ID, message discord.Message) *autoban.Member {
	member := discord.Member{User: message.Author}
	if message.Member != nil {
		member = *message.Member
		member.User = message.Author
	}

	return MemberSnapshot(guildID, member)
}

// ChannelIDString renders an optional channel id.
func ChannelIDString(id *snowflake.ID) *string {
	if id == nil {
		return nil
	}

	s := id.String()

	return &s
}
