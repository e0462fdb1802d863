package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/autoban/internal/database/dbretry"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ConfigModel handles per-guild autoban settings.
type ConfigModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewConfig creates a new config model instance.
func NewConfig(db bun.IDB, logger *zap.Logger) *ConfigModel {
	return &ConfigModel{
		db:     db,
		logger: logger.Named("db_autoban_config"),
	}
}

// Get returns the guild's autoban config, or nil if none has been saved.
func (m *ConfigModel) Get(ctx context.Context, guildID string) (*types.AutoBanConfig, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.AutoBanConfig, error) {
		config := new(types.AutoBanConfig)

		err := m.db.NewSelect().
			Model(config).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil //nolint:nilnil // no config is a valid state
			}
			return nil, fmt.Errorf("failed to get autoban config: %w (guildID=%s)", err, guildID)
		}

		return config, nil
	})
}

// SetLogChannel upserts the notification channel of a guild. A nil channel clears it.
func (m *ConfigModel) SetLogChannel(ctx context.Context, guildID string, channelID *string) error {
	now := time.Now().UTC()
	config := &types.AutoBanConfig{
		GuildID:      guildID,
		LogChannelID: channelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(config).
			On("CONFLICT (guild_id) DO UPDATE").
			Set("log_channel_id = EXCLUDED.log_channel_id").
			Set("updated_at = EXCLUDED.updated_at").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save autoban config: %w (guildID=%s)", err, guildID)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Saved autoban log channel", zap.String("guildID", guildID))

	return nil
}
