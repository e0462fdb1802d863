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

// RuleModel handles database operations for autoban rules.
// Every listing is ordered by ascending id so that first-match selection is deterministic.
type RuleModel struct {
	db     bun.IDB
	logger *zap.Logger
}

// NewRule creates a new rule model instance.
func NewRule(db bun.IDB, logger *zap.Logger) *RuleModel {
	return &RuleModel{
		db:     db,
		logger: logger.Named("db_rule"),
	}
}

// GetEnabledByGuild returns the enabled rules of a guild in evaluation order.
func (m *RuleModel) GetEnabledByGuild(ctx context.Context, guildID string) ([]*types.AutoBanRule, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AutoBanRule, error) {
		var rules []*types.AutoBanRule

		err := m.db.NewSelect().
			Model(&rules).
			Where("guild_id = ?", guildID).
			Where("is_enabled = ?", true).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get enabled rules: %w (guildID=%s)", err, guildID)
		}

		return rules, nil
	})
}

// GetByGuild returns every rule of a guild, enabled or not.
func (m *RuleModel) GetByGuild(ctx context.Context, guildID string) ([]*types.AutoBanRule, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.AutoBanRule, error) {
		var rules []*types.AutoBanRule

		err := m.db.NewSelect().
			Model(&rules).
			Where("guild_id = ?", guildID).
			Order("id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get rules: %w (guildID=%s)", err, guildID)
		}

		return rules, nil
	})
}

// Get returns a single rule scoped to its guild.
func (m *RuleModel) Get(ctx context.Context, guildID string, ruleID int64) (*types.AutoBanRule, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.AutoBanRule, error) {
		rule := new(types.AutoBanRule)

		err := m.db.NewSelect().
			Model(rule).
			Where("id = ?", ruleID).
			Where("guild_id = ?", guildID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrRuleNotFound
			}
			return nil, fmt.Errorf("failed to get rule: %w (ruleID=%d)", err, ruleID)
		}

		return rule, nil
	})
}

// Create inserts a new rule and fills in its id.
func (m *RuleModel) Create(ctx context.Context, rule *types.AutoBanRule) error {
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		// A zero-valued field with a default tag would otherwise be written as DEFAULT
		_, err := m.db.NewInsert().
			Model(rule).
			Value("is_enabled", "?", rule.IsEnabled).
			Returning("id").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Created autoban rule",
		zap.Int64("ruleID", rule.ID),
		zap.String("guildID", rule.GuildID),
		zap.String("type", rule.RuleType.String()))

	return nil
}

// Toggle flips the enabled flag of a rule and returns the updated rule.
func (m *RuleModel) Toggle(ctx context.Context, guildID string, ruleID int64) (*types.AutoBanRule, error) {
	rule, err := m.Get(ctx, guildID, ruleID)
	if err != nil {
		return nil, err
	}

	rule.IsEnabled = !rule.IsEnabled

	err = dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().
			Model(rule).
			Column("is_enabled").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to toggle rule: %w (ruleID=%d)", err, ruleID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Toggled autoban rule",
		zap.Int64("ruleID", ruleID),
		zap.Bool("enabled", rule.IsEnabled))

	return rule, nil
}

// Delete removes a rule. Its audit logs are removed by the cascading foreign key.
func (m *RuleModel) Delete(ctx context.Context, guildID string, ruleID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewDelete().
			Model((*types.AutoBanRule)(nil)).
			Where("id = ?", ruleID).
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete rule: %w (ruleID=%d)", err, ruleID)
		}

		if affected, _ := result.RowsAffected(); affected == 0 {
			return types.ErrRuleNotFound
		}

		return nil
	})
}
