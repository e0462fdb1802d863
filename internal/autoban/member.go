package autoban

import (
	"time"
)

// ReasonPrefix marks audit reasons of actions taken by the autoban engine.
// The ban hook relies on it to tell automatic bans from manual ones.
const ReasonPrefix = "[Autoban] "

// Member is the point-in-time view of a guild member delivered with an event.
type Member struct {
	GuildID     string
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	HasAvatar   bool
	Bot         bool
	CreatedAt   time.Time
	JoinedAt    *time.Time
	RoleIDs     []string
}

// Name returns the display name, falling back to the username.
func (m *Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}

// IntroLookup reports whether the member has posted in the given channel.
type IntroLookup func(channelID string) bool

// EvalContext carries the event state a rule is evaluated against.
type EvalContext struct {
	// Now is the evaluation time.
	Now time.Time
	// ChannelID is the channel a triggering message was posted in.
	ChannelID string
	// Intro checks intro posts. It is consulted only after the join-time exemption.
	Intro IntroLookup
}
