package models

import (
	"context"
	"fmt"
	"time"

	"github.com/robalyx/autoban/internal/database/dbretry"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// HealthModel handles heartbeat channel configuration.
type HealthModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewHealth creates a new health model instance.
func NewHealth(db bun.IDB, logger *zap.Logger) *HealthModel {
	return &HealthModel{
		db:     db,
		logger: logger.Named("db_health"),
	}
}

// Set upserts the heartbeat channel of a guild.
func (m *HealthModel) Set(ctx context.Context, guildID, channelID string) error {
	config := &types.HealthConfig{
		GuildID:   guildID,
		ChannelID: channelID,
		CreatedAt: time.Now().UTC(),
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("channel_id = EXCLUDED.channel_id").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save health config: %w (guildID=%s)", err, guildID)
		}

		return nil
	})
}

// Delete removes the heartbeat channel of a guild and reports whether one existed.
func (m *HealthModel) Delete(ctx context.Context, guildID string) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		result, err := m.db.NewDelete().
			Model((*types.HealthConfig)(nil)).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to delete health config: %w (guildID=%s)", err, guildID)
		}

		affected, _ := result.RowsAffected()

		return affected > 0, nil
	})
}

// List returns every configured heartbeat channel.
func (m *HealthModel) List(ctx context.Context) ([]*types.HealthConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.HealthConfig, error) {
		var configs []*types.HealthConfig

		if err := m.db.NewSelect().Model(&configs).Order("id ASC").Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to list health configs: %w", err)
		}

		return configs, nil
	})
}
