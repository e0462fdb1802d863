package autoban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"go.uber.org/zap"
)

// Executor performs the moderation action of a matched rule and records it.
type Executor struct {
	sessions Sessions
	platform Platform
	logger   *zap.Logger
	now      func() time.Time
}

// NewExecutor creates a new action executor.
func NewExecutor(sessions Sessions, platform Platform, logger *zap.Logger) *Executor {
	return &Executor{
		sessions: sessions,
		platform: platform,
		logger:   logger.Named("autoban_executor"),
		now:      time.Now,
	}
}

// Execute bans or kicks the member for rule. It reports whether the platform
// action succeeded. Platform failures are logged and never returned; the
// returned error only reports a failure to write the audit log after a
// successful action.
func (e *Executor) Execute(ctx context.Context, member *Member, rule *types.AutoBanRule, reason string) (bool, error) {
	snapshot := *member
	auditReason := ReasonPrefix + reason

	logger := e.logger.With(
		zap.String("guildID", snapshot.GuildID),
		zap.String("userID", snapshot.UserID),
		zap.Int64("ruleID", rule.ID),
		zap.String("ruleType", rule.RuleType.String()),
		zap.String("action", rule.Action.String()))

	var err error

	switch rule.Action {
	case enum.RuleActionBan:
		err = e.platform.Ban(ctx, snapshot.GuildID, snapshot.UserID, auditReason)
	case enum.RuleActionKick:
		err = e.platform.Kick(ctx, snapshot.GuildID, snapshot.UserID, auditReason)
	default:
		logger.Error("Unknown autoban action")
		return false, nil
	}

	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			logger.Warn("Missing permissions to execute autoban action", zap.Error(err))
		} else {
			logger.Error("Failed to execute autoban action", zap.Error(err))
		}

		return false, nil
	}

	taken := rule.Action.Taken()
	logger.Info("Executed autoban action", zap.String("reason", reason))

	// Audit log write
	logErr := e.sessions.WithSession(ctx, func(ctx context.Context, store Store) error {
		return store.CreateAutoBanLog(ctx, &types.AutoBanLog{
			GuildID:     snapshot.GuildID,
			UserID:      snapshot.UserID,
			Username:    snapshot.Username,
			RuleID:      rule.ID,
			ActionTaken: taken,
			Reason:      reason,
		})
	})
	if logErr != nil {
		logger.Error("Failed to write autoban log", zap.Error(logErr))
		logErr = fmt.Errorf("failed to write autoban log: %w", logErr)
	}

	// Log channel lookup runs in its own session so a failed audit write does not hide it
	var channelID *string

	err = e.sessions.WithSession(ctx, func(ctx context.Context, store Store) error {
		cfg, err := store.AutoBanConfig(ctx, snapshot.GuildID)
		if err != nil {
			return err
		}

		if cfg != nil {
			channelID = cfg.LogChannelID
		}

		return nil
	})
	if err != nil {
		logger.Error("Failed to load autoban config", zap.Error(err))
	}

	if channelID != nil && *channelID != "" {
		embed := BuildNotification(&snapshot, rule, reason, taken, e.now())
		if err := e.platform.SendEmbed(ctx, *channelID, embed); err != nil {
			logger.Warn("Failed to send autoban notification",
				zap.String("channelID", *channelID),
				zap.Error(err))
		}
	}

	return true, logErr
}
