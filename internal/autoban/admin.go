package autoban

import (
	"context"

	"github.com/robalyx/autoban/internal/database"
	"github.com/robalyx/autoban/internal/database/types"
	"go.uber.org/zap"
)

// DefaultLogLimit is the number of audit rows shown when no limit is given.
const DefaultLogLimit = 10

// Admin manages rules and guild settings for the command surfaces.
// It never evaluates rules.
type Admin struct {
	db     database.Client
	cache  RuleCache
	logger *zap.Logger
}

// NewAdmin creates a new admin service. cache may be nil.
func NewAdmin(db database.Client, cache RuleCache, logger *zap.Logger) *Admin {
	return &Admin{
		db:     db,
		cache:  cache,
		logger: logger.Named("autoban_admin"),
	}
}

// AddRule validates and stores a new rule.
func (a *Admin) AddRule(ctx context.Context, rule *types.AutoBanRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}

	rule.IsEnabled = true

	if err := a.db.Model().Rule().Create(ctx, rule); err != nil {
		return err
	}

	a.invalidate(ctx, rule.GuildID)

	a.logger.Info("Added autoban rule",
		zap.String("guildID", rule.GuildID),
		zap.Int64("ruleID", rule.ID),
		zap.String("type", rule.RuleType.String()))

	return nil
}

// RemoveRule deletes a rule of the guild.
func (a *Admin) RemoveRule(ctx context.Context, guildID string, ruleID int64) error {
	if err := a.db.Model().Rule().Delete(ctx, guildID, ruleID); err != nil {
		return err
	}

	a.invalidate(ctx, guildID)

	a.logger.Info("Removed autoban rule", zap.String("guildID", guildID), zap.Int64("ruleID", ruleID))

	return nil
}

// ToggleRule flips whether a rule is enabled and returns it.
func (a *Admin) ToggleRule(ctx context.Context, guildID string, ruleID int64) (*types.AutoBanRule, error) {
	rule, err := a.db.Model().Rule().Toggle(ctx, guildID, ruleID)
	if err != nil {
		return nil, err
	}

	a.invalidate(ctx, guildID)

	return rule, nil
}

// ListRules returns every rule of the guild in evaluation order.
func (a *Admin) ListRules(ctx context.Context, guildID string) ([]*types.AutoBanRule, error) {
	return a.db.Model().Rule().GetByGuild(ctx, guildID)
}

// RecentLogs returns the newest autoban actions of the guild.
func (a *Admin) RecentLogs(ctx context.Context, guildID string, limit int) ([]*types.AutoBanLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return a.db.Model().Audit().GetAutoBanLogs(ctx, guildID, limit)
}

// RecentBanLogs returns the newest observed bans of the guild.
func (a *Admin) RecentBanLogs(ctx context.Context, guildID string, limit int) ([]*types.BanLog, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	return a.db.Model().Audit().GetBanLogs(ctx, guildID, limit)
}

// SetLogChannel sets the notification channel of the guild. An empty id clears it.
func (a *Admin) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	var channel *string
	if channelID != "" {
		channel = &channelID
	}

	return a.db.Model().Config().SetLogChannel(ctx, guildID, channel)
}

// LogChannel returns the notification channel of the guild, or "" if none.
func (a *Admin) LogChannel(ctx context.Context, guildID string) (string, error) {
	cfg, err := a.db.Model().Config().Get(ctx, guildID)
	if err != nil {
		return "", err
	}

	if cfg == nil || cfg.LogChannelID == nil {
		return "", nil
	}

	return *cfg.LogChannelID, nil
}

func (a *Admin) invalidate(ctx context.Context, guildID string) {
	if a.cache != nil {
		a.cache.Invalidate(ctx, guildID)
	}
}
