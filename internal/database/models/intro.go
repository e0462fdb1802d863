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

// IntroPostModel tracks which members have posted in intro channels.
type IntroPostModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewIntroPost creates a new intro post model instance.
func NewIntroPost(db bun.IDB, logger *zap.Logger) *IntroPostModel {
	return &IntroPostModel{
		db:     db,
		logger: logger.Named("db_intro_post"),
	}
}

// Record marks that the user has posted in the channel. Recording twice is a no-op.
func (m *IntroPostModel) Record(ctx context.Context, guildID, userID, channelID string) error {
	post := &types.IntroPost{
		GuildID:   guildID,
		UserID:    userID,
		ChannelID: channelID,
		PostedAt:  time.Now().UTC(),
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewInsert().
			Model(post).
			On("CONFLICT (guild_id, user_id, channel_id) DO NOTHING").
			Returning("NULL").
			Exec(ctx)
		if err != nil {
			if dbretry.IsUniqueViolation(err) {
				return nil
			}
			return fmt.Errorf("failed to record intro post: %w (guildID=%s, userID=%s)", err, guildID, userID)
		}

		if affected, _ := result.RowsAffected(); affected > 0 {
			m.logger.Debug("Recorded intro post",
				zap.String("guildID", guildID),
				zap.String("userID", userID),
				zap.String("channelID", channelID))
		}

		return nil
	})
}

// HasPost reports whether the user has posted in the channel.
func (m *IntroPostModel) HasPost(ctx context.Context, guildID, userID, channelID string) (bool, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		exists, err := m.db.NewSelect().
			Model((*types.IntroPost)(nil)).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Where("channel_id = ?", channelID).
			Exists(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to check intro post: %w (guildID=%s, userID=%s)", err, guildID, userID)
		}

		return exists, nil
	})
}
