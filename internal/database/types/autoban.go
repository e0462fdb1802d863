package types

import (
	"errors"
	"time"

	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/uptrace/bun"
)

var (
	ErrRuleNotFound = errors.New("autoban rule not found")
	ErrInvalidRule  = errors.New("invalid autoban rule")
)

// AutoBanRule is a per-guild moderation rule evaluated against member events.
// Only the parameters relevant to RuleType are meaningful.
type AutoBanRule struct {
	bun.BaseModel `bun:"table:autoban_rules,alias:r"`

	ID                int64           `bun:"id,pk,autoincrement"                         json:"id"`
	GuildID           string          `bun:"guild_id,notnull"                            json:"guildId"`
	RuleType          enum.RuleType   `bun:"rule_type,notnull"                           json:"ruleType"`
	IsEnabled         bool            `bun:"is_enabled,notnull,default:true"             json:"isEnabled"`
	Action            enum.RuleAction `bun:"action,notnull,default:'ban'"                json:"action"`
	Pattern           *string         `bun:"pattern"                                     json:"pattern,omitempty"`           // username_match
	UseWildcard       bool            `bun:"use_wildcard,notnull,default:false"          json:"useWildcard"`                 // username_match
	ThresholdHours    *int            `bun:"threshold_hours"                             json:"thresholdHours,omitempty"`    // account_age
	ThresholdSeconds  *int            `bun:"threshold_seconds"                           json:"thresholdSeconds,omitempty"`  // timing rules
	RequiredChannelID *string         `bun:"required_channel_id"                         json:"requiredChannelId,omitempty"` // intro-gated rules
	CreatedAt         time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// AutoBanLog is the audit record of one executed autoban action.
type AutoBanLog struct {
	bun.BaseModel `bun:"table:autoban_logs,alias:al"`

	ID          int64            `bun:"id,pk,autoincrement"`
	GuildID     string           `bun:"guild_id,notnull"`
	UserID      string           `bun:"user_id,notnull"`
	Username    string           `bun:"username,notnull"`
	RuleID      int64            `bun:"rule_id,notnull"`
	ActionTaken enum.ActionTaken `bun:"action_taken,notnull"`
	Reason      string           `bun:"reason,notnull"`
	CreatedAt   time.Time        `bun:"created_at,notnull,default:current_timestamp"`
}

// AutoBanConfig holds per-guild autoban settings.
type AutoBanConfig struct {
	bun.BaseModel `bun:"table:autoban_configs,alias:ac"`

	ID           int64     `bun:"id,pk,autoincrement"`
	GuildID      string    `bun:"guild_id,notnull,unique"`
	LogChannelID *string   `bun:"log_channel_id"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BanLog records every ban observed in a guild, manual or automatic.
type BanLog struct {
	bun.BaseModel `bun:"table:ban_logs,alias:bl"`

	ID        int64     `bun:"id,pk,autoincrement"`
	GuildID   string    `bun:"guild_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Username  string    `bun:"username,notnull"`
	Reason    *string   `bun:"reason"`
	IsAutoban bool      `bun:"is_autoban,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// IntroPost marks that a user has posted in an intro channel.
type IntroPost struct {
	bun.BaseModel `bun:"table:autoban_intro_posts,alias:ip"`

	ID        int64     `bun:"id,pk,autoincrement"`
	GuildID   string    `bun:"guild_id,notnull,unique:uq_intro_guild_user_channel"`
	UserID    string    `bun:"user_id,notnull,unique:uq_intro_guild_user_channel"`
	ChannelID string    `bun:"channel_id,notnull,unique:uq_intro_guild_user_channel"`
	PostedAt  time.Time `bun:"posted_at,notnull,default:current_timestamp"`
}
