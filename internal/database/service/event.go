package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// HeartbeatPeriod is the bucket width of heartbeat claim keys.
const HeartbeatPeriod = 10 * time.Minute

// Claimer inserts a claim key and reports whether this caller won it.
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// Cleaner deletes claim keys older than a retention window.
type Cleaner interface {
	CleanupExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// ClaimOrProceed claims key and fails open: if the claim itself errors,
// the caller is told to proceed as if it had won.
func ClaimOrProceed(ctx context.Context, claimer Claimer, key string, logger *zap.Logger) bool {
	won, err := claimer.Claim(ctx, key)
	if err != nil {
		logger.Debug("Event claim failed, proceeding",
			zap.String("key", key),
			zap.Error(err))

		return true
	}

	if !won {
		logger.Debug("Event already claimed by another instance", zap.String("key", key))
	}

	return won
}

// HeartbeatKey returns the claim key for the heartbeat period containing now.
func HeartbeatKey(now time.Time) string {
	return "heartbeat:" + strconv.FormatInt(now.Unix()/int64(HeartbeatPeriod/time.Second), 10)
}

// DeployKey returns the claim key for a startup notice at the given boot time.
func DeployKey(boot time.Time) string {
	return "deploy:" + boot.UTC().Format("200601021504")
}

// ActionKey returns the claim key for a moderation action on a member within a bucket.
func ActionKey(kind, guildID, userID string, now time.Time, bucket time.Duration) string {
	return fmt.Sprintf("autoban:%s:%s:%s:%d", kind, guildID, userID, now.Unix()/int64(bucket/time.Second))
}

// BanLogKey returns the claim key for recording an observed ban.
func BanLogKey(guildID, userID string, now time.Time) string {
	return fmt.Sprintf("banlog:%s:%s:%d", guildID, userID, now.Unix()/60)
}

// EventService applies the ledger policies on top of the event model.
type EventService struct {
	claimer Claimer
	cleaner Cleaner
	logger  *zap.Logger
}

// NewEvent creates a new event service.
func NewEvent(claimer Claimer, cleaner Cleaner, logger *zap.Logger) *EventService {
	return &EventService{
		claimer: claimer,
		cleaner: cleaner,
		logger:  logger.Named("event_service"),
	}
}

// Claim claims key with the fail-open policy.
func (s *EventService) Claim(ctx context.Context, key string) bool {
	return ClaimOrProceed(ctx, s.claimer, key, s.logger)
}

// Cleanup removes claims older than ttl. Failures are logged and reported as zero.
func (s *EventService) Cleanup(ctx context.Context, ttl time.Duration) int {
	count, err := s.cleaner.CleanupExpired(ctx, ttl)
	if err != nil {
		s.logger.Warn("Failed to clean up processed events", zap.Error(err))
		return 0
	}

	if count > 0 {
		s.logger.Debug("Cleaned up processed events", zap.Int("count", count))
	}

	return count
}
