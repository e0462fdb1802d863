package autoban_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/robalyx/autoban/internal/autoban"
	"github.com/robalyx/autoban/internal/database/types"
	"github.com/robalyx/autoban/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMember() *autoban.Member {
	joined := time.Now().Add(-30 * time.Second)

	return &autoban.Member{
		GuildID:   "g1",
		UserID:    "u1",
		Username:  "spammer",
		AvatarURL: "https://cdn.example/avatar.png",
		HasAvatar: true,
		CreatedAt: time.Now().Add(-time.Hour),
		JoinedAt:  &joined,
	}
}

func TestExecuteBanWritesLogAndNotifies(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.configs["g1"] = &types.AutoBanConfig{GuildID: "g1", LogChannelID: ptr("log")}
	platform := newFakePlatform()
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 3, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionBan}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.NoError(t, err)
	assert.True(t, executed)

	calls := platform.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ban", calls[0].Op)
	assert.Equal(t, "[Autoban] No avatar set", calls[0].Reason)

	require.Len(t, store.logs, 1)
	assert.Equal(t, enum.ActionTakenBanned, store.logs[0].ActionTaken)
	assert.Equal(t, int64(3), store.logs[0].RuleID)
	assert.Equal(t, "No avatar set", store.logs[0].Reason)

	embeds := platform.embeds["log"]
	require.Len(t, embeds, 1)
	assert.Equal(t, "Autoban: Member Banned", embeds[0].Title)
}

func TestExecuteKick(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	platform := newFakePlatform()
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionKick}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.NoError(t, err)
	assert.True(t, executed)

	assert.Equal(t, "kick", platform.Calls()[0].Op)
	require.Len(t, store.logs, 1)
	assert.Equal(t, enum.ActionTakenKicked, store.logs[0].ActionTaken)
	assert.Empty(t, platform.embeds)
}

func TestExecutePlatformFailureAborts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{name: "permission denied", err: fmt.Errorf("missing ban members: %w", autoban.ErrPermissionDenied)},
		{name: "transport", err: fmt.Errorf("gateway timeout: %w", autoban.ErrTransport)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			store.configs["g1"] = &types.AutoBanConfig{GuildID: "g1", LogChannelID: ptr("log")}
			platform := newFakePlatform()
			platform.banErr = tt.err
			executor := autoban.NewExecutor(store, platform, zap.NewNop())

			rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionBan}

			executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
			require.NoError(t, err)
			assert.False(t, executed)
			assert.Empty(t, store.logs)
			assert.Empty(t, platform.embeds)
		})
	}
}

func TestExecuteUnknownActionDoesNothing(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	platform := newFakePlatform()
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleAction("mute")}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.NoError(t, err)
	assert.False(t, executed)
	assert.Empty(t, platform.Calls())
}

func TestExecuteNotificationFailureKeepsLog(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.configs["g1"] = &types.AutoBanConfig{GuildID: "g1", LogChannelID: ptr("missing")}
	platform := newFakePlatform()
	platform.sendErr = autoban.ErrChannelNotFound
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionBan}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Len(t, store.logs, 1)
}

func TestExecuteLogFailureStillNotifies(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.logErr = errBroken
	store.configs["g1"] = &types.AutoBanConfig{GuildID: "g1", LogChannelID: ptr("log")}
	platform := newFakePlatform()
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionBan}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.ErrorIs(t, err, errBroken)
	assert.True(t, executed)
	assert.Len(t, platform.Calls(), 1)
	assert.Len(t, platform.embeds["log"], 1)
}

func TestExecuteConfigFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.cfgErr = errBroken
	platform := newFakePlatform()
	executor := autoban.NewExecutor(store, platform, zap.NewNop())

	rule := &types.AutoBanRule{ID: 1, GuildID: "g1", RuleType: enum.RuleTypeNoAvatar, Action: enum.RuleActionBan}

	executed, err := executor.Execute(t.Context(), testMember(), rule, "No avatar set")
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Len(t, store.logs, 1)
	assert.Empty(t, platform.embeds)
}

func TestBuildNotification(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	joined := now.Add(-90 * time.Second)
	member := &autoban.Member{
		UserID:      "42",
		Username:    "spammer",
		DisplayName: "Spam King",
		AvatarURL:   "https://cdn.example/a.png",
		CreatedAt:   now.Add(-2 * time.Hour),
		JoinedAt:    &joined,
	}
	rule := &types.AutoBanRule{ID: 9, RuleType: enum.RuleTypeVCJoin}

	embed := autoban.BuildNotification(member, rule, "Joined a voice channel 90.0s after joining", enum.ActionTakenKicked, now)

	assert.Equal(t, "Autoban: Member Kicked", embed.Title)
	assert.Equal(t, 0xE67E22, embed.Color)
	require.NotNil(t, embed.Thumbnail)
	assert.Equal(t, "https://cdn.example/a.png", embed.Thumbnail.URL)

	fields := make(map[string]string)
	for _, field := range embed.Fields {
		fields[field.Name] = field.Value
	}

	assert.Equal(t, "`42`", fields["User ID"])
	assert.Equal(t, "kicked", fields["Action"])
	assert.Equal(t, "#9 (vc_join)", fields["Rule"])
	assert.Contains(t, fields["User"], "Spam King")
	assert.Contains(t, fields["Account Created"], "<t:")
	assert.Equal(t, "1m 30s", fields["Time Since Join"])
}
