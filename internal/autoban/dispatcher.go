package autoban

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/robalyx/autoban/internal/database/service"
	"github.com/robalyx/autoban/internal/database/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultActionBucket is the claim window for actions on the same member.
const DefaultActionBucket = time.Minute

// Dispatcher routes platform events to rule evaluation and action execution.
type Dispatcher struct {
	sessions Sessions
	platform Platform
	executor *Executor
	bucket   time.Duration
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(
	sessions Sessions, platform Platform, executor *Executor, bucket time.Duration, logger *zap.Logger,
) *Dispatcher {
	if bucket < time.Second {
		bucket = DefaultActionBucket
	}

	return &Dispatcher{
		sessions: sessions,
		platform: platform,
		executor: executor,
		bucket:   bucket,
		tracer:   otel.Tracer("github.com/robalyx/autoban/internal/autoban"),
		logger:   logger.Named("autoban_dispatcher"),
		now:      time.Now,
	}
}

// OnMemberJoin evaluates the join-time rules for a new member.
func (d *Dispatcher) OnMemberJoin(ctx context.Context, member *Member) error {
	return d.dispatch(ctx, EventMemberJoin, member, "")
}

// OnMemberUpdate evaluates role rules when the member gained at least one role.
// Role removals are ignored, as are updates without a previous snapshot.
func (d *Dispatcher) OnMemberUpdate(ctx context.Context, before, after *Member) error {
	if before == nil || after == nil {
		return nil
	}

	gained := false
	for _, roleID := range after.RoleIDs {
		if !slices.Contains(before.RoleIDs, roleID) {
			gained = true
			break
		}
	}

	if !gained {
		return nil
	}

	return d.dispatch(ctx, EventRoleAcquired, after, "")
}

// OnVoiceStateUpdate evaluates voice rules when the member connects to voice.
// Moves between channels and disconnects are ignored.
func (d *Dispatcher) OnVoiceStateUpdate(ctx context.Context, member *Member, before, after *string) error {
	if before != nil || after == nil {
		return nil
	}

	return d.dispatch(ctx, EventVoiceJoin, member, "")
}

// OnMessage records intro posts and evaluates message rules.
func (d *Dispatcher) OnMessage(ctx context.Context, member *Member, channelID string) error {
	return d.dispatch(ctx, EventMessage, member, channelID)
}

// OnBan records an observed ban and classifies it by its audit reason.
func (d *Dispatcher) OnBan(ctx context.Context, guildID, userID, username string) error {
	ctx, span := d.tracer.Start(ctx, "autoban.ban", trace.WithAttributes(
		attribute.String("guild_id", guildID),
		attribute.String("user_id", userID)))
	defer span.End()

	logger := d.logger.With(zap.String("guildID", guildID), zap.String("userID", userID))

	// An unknown reason is recorded as a manual ban
	reason, err := d.platform.FetchBanReason(ctx, guildID, userID)
	if err != nil {
		logger.Warn("Failed to fetch ban reason", zap.Error(err))
		reason = nil
	}

	isAutoban := reason != nil && strings.HasPrefix(*reason, ReasonPrefix)

	if !d.claim(ctx, service.BanLogKey(guildID, userID, d.now()), logger) {
		return nil
	}

	err = d.sessions.WithSession(ctx, func(ctx context.Context, store Store) error {
		return store.CreateBanLog(ctx, &types.BanLog{
			GuildID:   guildID,
			UserID:    userID,
			Username:  username,
			Reason:    reason,
			IsAutoban: isAutoban,
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ban log write failed")
		return fmt.Errorf("failed to write ban log: %w", err)
	}

	logger.Debug("Recorded ban", zap.Bool("isAutoban", isAutoban))

	return nil
}

// dispatch runs the shared evaluation flow for one event.
func (d *Dispatcher) dispatch(ctx context.Context, kind EventKind, member *Member, channelID string) error {
	if member == nil || member.Bot {
		return nil
	}

	ctx, span := d.tracer.Start(ctx, "autoban."+string(kind), trace.WithAttributes(
		attribute.String("guild_id", member.GuildID),
		attribute.String("user_id", member.UserID)))
	defer span.End()

	logger := d.logger.With(
		zap.String("event", string(kind)),
		zap.String("guildID", member.GuildID),
		zap.String("userID", member.UserID))

	now := d.now()

	var match *Match

	err := d.sessions.WithSession(ctx, func(ctx context.Context, store Store) error {
		rules, err := store.EnabledRules(ctx, member.GuildID)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}

		if kind == EventMessage && channelID != "" && slices.Contains(introChannels(rules), channelID) {
			if err := store.RecordIntroPost(ctx, member.GuildID, member.UserID, channelID); err != nil {
				return fmt.Errorf("failed to record intro post: %w", err)
			}
		}

		ectx := EvalContext{
			Now:       now,
			ChannelID: channelID,
			Intro: func(required string) bool {
				has, err := store.HasIntroPost(ctx, member.GuildID, member.UserID, required)
				if err != nil {
					// Unknown intro state never triggers an action
					logger.Warn("Failed to check intro post", zap.String("channelID", required), zap.Error(err))
					return true
				}
				return has
			},
		}

		match = SelectFirstMatch(rules, kind, member, ectx)

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		logger.Error("Failed to evaluate autoban rules", zap.Error(err))

		return err
	}

	if match == nil {
		return nil
	}

	span.SetAttributes(
		attribute.Int64("rule_id", match.Rule.ID),
		attribute.String("rule_type", match.Rule.RuleType.String()))

	if !d.claim(ctx, service.ActionKey(string(kind), member.GuildID, member.UserID, now, d.bucket), logger) {
		return nil
	}

	if _, err := d.executor.Execute(ctx, member, match.Rule, match.Reason); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit log write failed")

		return err
	}

	return nil
}

// claim claims key across instances in a session of its own.
// A failed claim session proceeds as if the claim was won.
func (d *Dispatcher) claim(ctx context.Context, key string, logger *zap.Logger) bool {
	won := true
	decided := false

	err := d.sessions.WithSession(ctx, func(ctx context.Context, store Store) error {
		won = service.ClaimOrProceed(ctx, store, key, logger)
		decided = true
		return nil
	})
	if err != nil && !decided {
		logger.Debug("Claim session failed, proceeding", zap.String("key", key), zap.Error(err))
		return true
	}

	return won
}
