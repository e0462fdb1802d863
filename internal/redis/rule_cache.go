package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/autoban/internal/database/types"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// RuleKeyPrefix identifies cached enabled-rule lists in Redis.
	RuleKeyPrefix = "autoban:rules:"
	// RuleGenKeyPrefix identifies the per-guild invalidation counters.
	RuleGenKeyPrefix = "autoban:rulegen:"
)

// storeIfCurrent writes the rule list only while the guild's generation is
// still the one read before loading.
var storeIfCurrent = rueidis.NewLuaScript(`
if (redis.call("GET", KEYS[2]) or "0") == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
	return 1
end
return 0
`) //nolint:gochecknoglobals // -

// RuleCache caches the enabled rules of each guild. Only enabled rules are
// stored, in store order. Redis failures fall back to the loader.
type RuleCache struct {
	client rueidis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewRuleCache creates a rule cache on the given client.
func NewRuleCache(client rueidis.Client, ttl time.Duration, logger *zap.Logger) *RuleCache {
	return &RuleCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("rule_cache"),
	}
}

// NewRuleCacheFromManager creates a rule cache on the rule cache database.
// It returns nil when Redis is not configured or ttl disables caching.
func NewRuleCacheFromManager(manager *Manager, ttl time.Duration, logger *zap.Logger) (*RuleCache, error) {
	if manager == nil || !manager.Enabled() || ttl <= 0 {
		return nil, nil //nolint:nilnil // caching disabled
	}

	client, err := manager.GetClient(RuleCacheDBIndex)
	if err != nil {
		return nil, err
	}

	return NewRuleCache(client, ttl, logger), nil
}

// EnabledRules returns the cached rules of a guild, calling load on a miss.
// Concurrent misses for one guild share a single load. A load that overlaps
// an Invalidate is returned but not cached.
func (c *RuleCache) EnabledRules(
	ctx context.Context, guildID string, load func(context.Context) ([]*types.AutoBanRule, error),
) ([]*types.AutoBanRule, error) {
	key := RuleKeyPrefix + guildID

	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if err == nil {
		var rules []*types.AutoBanRule
		if err := sonic.Unmarshal(data, &rules); err == nil {
			return rules, nil
		}

		c.logger.Warn("Invalid cached rules, reloading", zap.String("guildID", guildID))
	} else if !rueidis.IsRedisNil(err) {
		c.logger.Warn("Failed to read cached rules", zap.String("guildID", guildID), zap.Error(err))
	}

	result, err, _ := c.group.Do(guildID, func() (any, error) {
		gen, genErr := c.generation(ctx, guildID)

		rules, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			c.store(ctx, guildID, gen, rules)
		}

		return rules, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]*types.AutoBanRule), nil
}

// Invalidate drops the cached rules of a guild. Loads already in flight
// are prevented from caching their result.
func (c *RuleCache) Invalidate(ctx context.Context, guildID string) {
	c.group.Forget(guildID)

	cmds := rueidis.Commands{
		c.client.B().Incr().Key(RuleGenKeyPrefix + guildID).Build(),
		c.client.B().Del().Key(RuleKeyPrefix + guildID).Build(),
	}

	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			c.logger.Warn("Failed to invalidate cached rules", zap.String("guildID", guildID), zap.Error(err))
			return
		}
	}

	c.logger.Debug("Invalidated cached rules", zap.String("guildID", guildID))
}

// generation returns the guild's invalidation counter, "0" when never invalidated.
func (c *RuleCache) generation(ctx context.Context, guildID string) (string, error) {
	gen, err := c.client.Do(ctx, c.client.B().Get().Key(RuleGenKeyPrefix+guildID).Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return "0", nil
	}

	if err != nil {
		c.logger.Warn("Failed to read rule generation, skipping cache", zap.String("guildID", guildID), zap.Error(err))
		return "", err
	}

	return gen, nil
}

func (c *RuleCache) store(ctx context.Context, guildID, gen string, rules []*types.AutoBanRule) {
	key := RuleKeyPrefix + guildID

	enabled := make([]*types.AutoBanRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsEnabled {
			enabled = append(enabled, rule)
		}
	}

	data, err := sonic.Marshal(enabled)
	if err != nil {
		c.logger.Warn("Failed to encode rules for cache", zap.String("key", key), zap.Error(err))
		return
	}

	ttl := strconv.FormatInt(max(int64(c.ttl/time.Second), 1), 10)

	stored, err := storeIfCurrent.Exec(ctx, c.client,
		[]string{key, RuleGenKeyPrefix + guildID},
		[]string{gen, rueidis.BinaryString(data), ttl},
	).AsInt64()
	if err != nil {
		c.logger.Warn("Failed to cache rules", zap.String("key", key), zap.Error(err))
		return
	}

	if stored == 0 {
		c.logger.Debug("Rules changed during load, not caching", zap.String("guildID", guildID))
	}
}
