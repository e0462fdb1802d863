package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/robalyx/autoban/internal/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*redis.RuleCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return redis.NewRuleCache(client, 30*time.Second, zap.NewNop()), mr
}

func testRules() []*types.AutoBanRule {
	pattern := "spam"

	return []*types.AutoBanRule{
		{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeUsernameMatch, IsEnabled: true, Action: enum.RuleActionBan, Pattern: &pattern},
		{ID: 2, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, IsEnabled: true, Action: enum.RuleActionKick},
	}
}

func TestRuleCacheHitAfterLoad(t *testing.T) {
	t.Parallel()

	cache, mr := setupTest(t)

	var loads atomic.Int32
	load := func(context.Context) ([]*types.AutoBanRule, error) {
		loads.Add(1)
		return testRules(), nil
	}

	first, err := cache.EnabledRules(t.Context(), "g1", load)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := cache.EnabledRules(t.Context(), "g1", load)
	require.NoError(t, err)

	assert.Equal(t, int32(1), loads.Load())
	require.Len(t, second, 2)
	assert.Equal(t, int64(1), second[0].ID)
	assert.Equal(t, "spam", *second[0].Pattern)
	assert.Equal(t, enum.RuleActionKick, second[1].Action)

	assert.True(t, mr.Exists(redis.RuleKeyPrefix+"g1"))
	assert.Equal(t, 30*time.Second, mr.TTL(redis.RuleKeyPrefix+"g1"))
}

func TestRuleCacheStoresOnlyEnabled(t *testing.T) {
	t.Parallel()

	cache, _ := setupTest(t)

	rules := testRules()
	rules[0].IsEnabled = false

	_, err := cache.EnabledRules(t.Context(), "g1", func(context.Context) ([]*types.AutoBanRule, error) {
		return rules, nil
	})
	require.NoError(t, err)

	cached, err := cache.EnabledRules(t.Context(), "g1", func(context.Context) ([]*types.AutoBanRule, error) {
		t.Fatal("loader called on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, int64(2), cached[0].ID)
}

func TestRuleCacheInvalidate(t *testing.T) {
	t.Parallel()

	cache, mr := setupTest(t)

	var loads atomic.Int32
	load := func(context.Context) ([]*types.AutoBanRule, error) {
		loads.Add(1)
		return testRules(), nil
	}

	_, err := cache.EnabledRules(t.Context(), "g1", load)
	require.NoError(t, err)

	cache.Invalidate(t.Context(), "g1")
	assert.False(t, mr.Exists(redis.RuleKeyPrefix+"g1"))

	_, err = cache.EnabledRules(t.Context(), "g1", load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestRuleCacheFallsBackWhenRedisDown(t *testing.T) {
	t.Parallel()

	cache, mr := setupTest(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	rules, err := cache.EnabledRules(ctx, "g1", func(context.Context) ([]*types.AutoBanRule, error) {
		return testRules(), nil
	})
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestRuleCacheLoadError(t *testing.T) {
	t.Parallel()

	cache, mr := setupTest(t)

	_, err := cache.EnabledRules(t.Context(), "g1", func(context.Context) ([]*types.AutoBanRule, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists(redis.RuleKeyPrefix+"g1"))
}

func TestRuleCacheConcurrentMisses(t *testing.T) {
	t.Parallel()

	cache, _ := setupTest(t)

	release := make(chan struct{})
	var loads atomic.Int32
	load := func(context.Context) ([]*types.AutoBanRule, error) {
		loads.Add(1)
		<-release
		return testRules(), nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			rules, err := cache.EnabledRules(t.Context(), "g2", load)
			assert.NoError(t, err)
			assert.Len(t, rules, 2)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(5))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

func TestRuleCacheInvalidateDuringLoad(t *testing.T) {
	t.Parallel()

	cache, mr := setupTest(t)

	started := make(chan struct{})
	release := make(chan struct{})
	stale := func(context.Context) ([]*types.AutoBanRule, error) {
		close(started)
		<-release
		return testRules(), nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		rules, err := cache.EnabledRules(t.Context(), "g1", stale)
		assert.NoError(t, err)
		assert.Len(t, rules, 2)
	}()

	<-started
	cache.Invalidate(t.Context(), "g1")
	close(release)
	<-done

	assert.False(t, mr.Exists(redis.RuleKeyPrefix+"g1"))

	var loads atomic.Int32
	fresh := func(context.Context) ([]*types.AutoBanRule, error) {
		loads.Add(1)
		return testRules()[1:], nil
	}

	rules, err := cache.EnabledRules(t.Context(), "g1", fresh)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, int64(2), rules[0].ID)

	rules, err = cache.EnabledRules(t.Context(), "g1", fresh)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	assert.Equal(t, int32(1), loads.Load())
}
