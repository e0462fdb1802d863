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

// AuditModel handles the append-only autoban and ban logs.
type AuditModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewAudit creates a new audit model instance.
func NewAudit(db bun.IDB, logger *zap.Logger) *AuditModel {
	return &AuditModel{
		db:     db,
		logger: logger.Named("db_audit"),
	}
}

// CreateAutoBanLog appends a record of an executed autoban action.
func (m *AuditModel) CreateAutoBanLog(ctx context.Context, log *types.AutoBanLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(log).Returning("id").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create autoban log: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Created autoban log",
		zap.String("guildID", log.GuildID),
		zap.String("userID", log.UserID),
		zap.Int64("ruleID", log.RuleID),
		zap.String("action", log.ActionTaken.String()))

	return nil
}

// GetAutoBanLogs returns the newest autoban logs of a guild.
func (m *AuditModel) GetAutoBanLogs(ctx context.Context, guildID string, limit int) ([]*types.AutoBanLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AutoBanLog, error) {
		var logs []*types.AutoBanLog

		err := m.db.NewSelect().
			Model(&logs).
			Where("guild_id = ?", guildID).
			Order("created_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get autoban logs: %w (guildID=%s)", err, guildID)
		}

		return logs, nil
	})
}

// CreateBanLog appends a record of an observed ban.
func (m *AuditModel) CreateBanLog(ctx context.Context, log *types.BanLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(log).Returning("id").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create ban log: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Created ban log",
		zap.String("guildID", log.GuildID),
		zap.String("userID", log.UserID),
		zap.Bool("autoban", log.IsAutoban))

	return nil
}

// GetBanLogs returns the newest ban logs of a guild.
func (m *AuditModel) GetBanLogs(ctx context.Context, guildID string, limit int) ([]*types.BanLog, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.BanLog, error) {
		var logs []*types.BanLog

		err := m.db.NewSelect().
			Model(&logs).
			Where("guild_id = ?", guildID).
			Order("created_at DESC", "id DESC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get ban logs: %w (guildID=%s)", err, guildID)
		}

		return logs, nil
	})
}

// StreamAutoBanLogs calls fn for every autoban log created in [since, until), oldest first.
func (m *AuditModel) StreamAutoBanLogs(
	ctx context.Context, since, until time.Time, batchSize int, fn func([]*types.AutoBanLog) error,
) error {
	var lastID int64

	for {
		var batch []*types.AutoBanLog

		err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			batch = batch[:0]

			return m.db.NewSelect().
				Model(&batch).
				Where("id > ?", lastID).
				Where("created_at >= ?", since).
				Where("created_at < ?", until).
				Order("id ASC").
				Limit(batchSize).
				Scan(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to stream autoban logs: %w", err)
		}

		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		lastID = batch[len(batch)-1].ID
	}
}

// StreamBanLogs calls fn for every ban log created in [since, until), oldest first.
func (m *AuditModel) StreamBanLogs(
	ctx context.Context, since, until time.Time, batchSize int, fn func([]*types.BanLog) error,
) error {
	var lastID int64

	for {
		var batch []*types.BanLog

		err := dbretry.NoResult(ctx, func(ctx context.Context) error {
			batch = batch[:0]

			return m.db.NewSelect().
				Model(&batch).
				Where("id > ?", lastID).
				Where("created_at >= ?", since).
				Where("created_at < ?", until).
				Order("id ASC").
				Limit(batchSize).
				Scan(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to stream ban logs: %w", err)
		}

		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}

		lastID = batch[len(batch)-1].ID
	}
}
