package types

import (
	"time"

	"github.com/uptrace/bun"
)

// ProcessedEvent is a claim in the cross-instance dedup ledger.
// A row's existence means the key has been claimed.
type ProcessedEvent struct {
	bun.BaseModel `bun:"table:processed_events,alias:pe"`

	ID        int64     `bun:"id,pk,autoincrement"`
	EventKey  string    `bun:"event_key,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// HealthConfig is the heartbeat destination for a guild.
type HealthConfig struct {
	bun.BaseModel `bun:"table:health_configs,alias:hc"`

	ID        int64     `bun:"id,pk,autoincrement"`
	GuildID   string    `bun:"guild_id,notnull,unique"`
	ChannelID string    `bun:"channel_id,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
